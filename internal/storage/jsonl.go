package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"loyaltyDex/internal/model"
)

// JsonlStorage appends domain events to a JSONL file.
type JsonlStorage struct {
	path string
	mu   sync.Mutex
}

func NewJsonlStorage(path string) *JsonlStorage {
	return &JsonlStorage{path: path}
}

// Publish appends a single event.
func (s *JsonlStorage) Publish(_ context.Context, event model.Event) error {
	return s.PutEventBatch([]model.Event{event})
}

// PutEventBatch appends a batch of events as JSON lines.
func (s *JsonlStorage) PutEventBatch(events []model.Event) error {
	records := make([]interface{}, 0, len(events))
	for _, event := range events {
		records = append(records, event)
	}
	return s.appendLines(records)
}

// UpsertWindowStats appends window statistics as JSON lines. Readers keep the
// last line seen for a (pool, window_start) pair.
func (s *JsonlStorage) UpsertWindowStats(_ context.Context, stats []model.PoolWindowStats) error {
	records := make([]interface{}, 0, len(stats))
	for _, row := range stats {
		records = append(records, row)
	}
	return s.appendLines(records)
}

func (s *JsonlStorage) appendLines(records []interface{}) error {
	if len(records) == 0 {
		return nil
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, record := range records {
		line, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	return nil
}
