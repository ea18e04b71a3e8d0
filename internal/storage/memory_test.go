package storage_test

import (
	"testing"

	"loyaltyDex/internal/storage"
	"loyaltyDex/internal/storage/storagetest"
)

func TestMemoryStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		return storage.NewMemoryStore()
	})
}
