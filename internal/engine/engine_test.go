package engine

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"stock_bot/internal/broker/kis"
	"stock_bot/internal/marketdata"
	"stock_bot/internal/models"
	"stock_bot/internal/modules/config"
	"stock_bot/internal/portfolio"
)

type stubSource struct{}

func (stubSource) GetBars(context.Context, string, string, int) (models.Bars, error) {
	return models.Bars{}, nil
}
func (stubSource) GetLastPrice(context.Context, string) (float64, error) { return 0, nil }
func (stubSource) GetStockName(_ context.Context, s string) (string, error) {
	return s, nil
}

// recordingStream — фиксирует каждый набор символов подписки.
type recordingStream struct {
	mu   sync.Mutex
	subs [][]string
}

func (r *recordingStream) StreamTicks(_ context.Context, symbols []string) <-chan kis.Tick {
	r.mu.Lock()
	r.subs = append(r.subs, append([]string(nil), symbols...))
	r.mu.Unlock()

	out := make(chan kis.Tick)
	close(out)
	return out
}

func (r *recordingStream) snapshot() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.subs...)
}

func TestStreamResubscribesOnUniverseChange(t *testing.T) {
	ctx := context.Background()

	pf := portfolio.New(portfolio.NewStateStore(filepath.Join(t.TempDir(), "positions.json")), nil)
	md := marketdata.NewService(stubSource{}, time.Second)
	stream := &recordingStream{}

	e := New(nil, pf, md, nil, nil, stream, config.SystemConfig{
		Universe: []string{"005930"},
	})

	e.refreshUniverse(ctx)

	// купленная руками бумага появляется на счету между обновлениями
	pf.UpdatePosition("000660", 10, 100000, "manual")
	e.refreshUniverse(ctx)

	// та же вселенная: переподписка не нужна
	e.refreshUniverse(ctx)

	subs := stream.snapshot()
	if len(subs) != 2 {
		t.Fatalf("expected 2 subscriptions, got %d: %v", len(subs), subs)
	}
	if len(subs[0]) != 1 || subs[0][0] != "005930" {
		t.Fatalf("first subscription = %v, want [005930]", subs[0])
	}
	if len(subs[1]) != 2 || subs[1][0] != "005930" || subs[1][1] != "000660" {
		t.Fatalf("second subscription = %v, want [005930 000660]", subs[1])
	}
}
