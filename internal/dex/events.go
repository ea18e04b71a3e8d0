package dex

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"loyaltyDex/internal/model"
)

// EventSink receives domain events after a mutation has been committed.
type EventSink interface {
	Publish(ctx context.Context, event model.Event) error
}

// MultiSink fans an event out to every sink and joins their errors.
type MultiSink []EventSink

func (m MultiSink) Publish(ctx context.Context, event model.Event) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink writes events to a zap logger.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Publish(_ context.Context, event model.Event) error {
	s.logger.Info("event",
		zap.String("name", event.Name),
		zap.Uint64("timestamp", event.Timestamp),
		zap.Any("data", event.Data),
	)
	return nil
}

type nopSink struct{}

func (nopSink) Publish(context.Context, model.Event) error { return nil }
