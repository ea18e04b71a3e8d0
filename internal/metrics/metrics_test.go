package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"loyaltyDex/internal/model"
)

func TestSinkCountsEventsAndVolume(t *testing.T) {
	m, err := New()
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}
	sink := NewSink(m)
	ctx := context.Background()

	events := []model.Event{
		{Name: model.EventPoolCreated, Data: model.PoolCreatedData{TokenA: "0xa", TokenB: "0xb"}},
		{Name: model.EventSwap, Data: model.SwapEventData{FromToken: "0xa", AmountIn: "150", AmountOut: "543"}},
		{Name: model.EventSwap, Data: model.SwapEventData{FromToken: "0xa", AmountIn: "50", AmountOut: "10"}},
	}
	for _, event := range events {
		if err := sink.Publish(ctx, event); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	if got := testutil.ToFloat64(m.events.WithLabelValues(model.EventSwap)); got != 2 {
		t.Fatalf("swap events = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.events.WithLabelValues(model.EventPoolCreated)); got != 1 {
		t.Fatalf("pool_created events = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.swapVolume.WithLabelValues("0xa")); got != 200 {
		t.Fatalf("volume = %v, want 200", got)
	}
}

func TestSinkRejectsBadAmount(t *testing.T) {
	m, err := New()
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}
	err = NewSink(m).Publish(context.Background(), model.Event{Name: model.EventSwap, Data: model.SwapEventData{AmountIn: "x"}})
	if err == nil {
		t.Fatalf("expected error for bad amount")
	}
}

func TestHandlerExposesCounters(t *testing.T) {
	m, err := New()
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}
	m.ObserveRequest("/v1/swap", 200)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `dex_requests_total{code="200",route="/v1/swap"} 1`) {
		t.Fatalf("missing request counter in:\n%s", body)
	}
}
