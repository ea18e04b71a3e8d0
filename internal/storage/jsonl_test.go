package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"loyaltyDex/internal/model"
)

func TestJsonlStorageAppendsEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "events.jsonl")
	sink := NewJsonlStorage(path)

	first := model.Event{Name: model.EventPoolCreated, Timestamp: 1, Data: model.PoolCreatedData{TokenA: "0xa", TokenB: "0xb"}}
	second := model.Event{Name: model.EventSwap, Timestamp: 2, Data: model.SwapEventData{Trader: "0xc", AmountIn: "150", AmountOut: "543"}}

	if err := sink.Publish(context.Background(), first); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := sink.PutEventBatch([]model.Event{second}); err != nil {
		t.Fatalf("put batch: %v", err)
	}
	if err := sink.PutEventBatch(nil); err != nil {
		t.Fatalf("empty batch: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer file.Close()

	var records []model.EventRecord
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var record model.EventRecord
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			t.Fatalf("decode line: %v", err)
		}
		records = append(records, record)
	}

	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[1].Name != model.EventSwap || records[1].Timestamp != 2 {
		t.Fatalf("unexpected record: %+v", records[1])
	}

	var swap model.SwapEventData
	if err := json.Unmarshal(records[1].Data, &swap); err != nil {
		t.Fatalf("decode swap: %v", err)
	}
	if swap.AmountOut != "543" {
		t.Fatalf("amount out mismatch: %+v", swap)
	}
}
