package history

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"stock_bot/internal/models"
)

type captureSink struct {
	mu     sync.Mutex
	events []models.TradeEvent
	done   chan struct{}
}

func newCaptureSink() *captureSink {
	return &captureSink{done: make(chan struct{}, 8)}
}

func (s *captureSink) Insert(_ context.Context, ev models.TradeEvent) error {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
	s.done <- struct{}{}
	return nil
}

func (s *captureSink) wait(t *testing.T) models.TradeEvent {
	t.Helper()
	select {
	case <-s.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for trade event insert")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[len(s.events)-1]
}

type captureNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (n *captureNotifier) Notify(text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, text)
}

func TestRecorderSellComputesPnLWithFees(t *testing.T) {
	sink := newCaptureSink()
	rec := NewRecorder(sink, nil, "ma_trend")

	rec.OnPositionChange(models.PositionChange{
		Type:        models.SellFilled,
		Symbol:      "005930",
		Name:        "Samsung",
		Tag:         "ma_trend",
		ExecQty:     10,
		ExecPrice:   72000,
		NewQty:      0,
		OldAvgPrice: 70000,
		TotalAsset:  10_000_000,
	})

	ev := sink.wait(t)
	if ev.Side != models.SideSell {
		t.Fatalf("side = %s, want SELL", ev.Side)
	}
	if ev.PnL == nil || ev.PnLPct == nil {
		t.Fatal("sell event must carry pnl")
	}
	// (72000-70000)*10 - 72000*10*0.0025 = 20000 - 1800 = 18200
	if *ev.PnL != 18200 {
		t.Errorf("pnl = %f, want 18200", *ev.PnL)
	}
	wantPct := 18200.0 / 700000.0
	if diff := *ev.PnLPct - wantPct; diff > 1e-12 || diff < -1e-12 {
		t.Errorf("pnl pct = %f, want %f", *ev.PnLPct, wantPct)
	}
	if !strings.HasPrefix(ev.OrderID, "fill_") {
		t.Errorf("order id = %s, want fill_ prefix", ev.OrderID)
	}
}

func TestRecorderBuyHasNoPnL(t *testing.T) {
	sink := newCaptureSink()
	rec := NewRecorder(sink, nil, "ma_trend")

	rec.OnPositionChange(models.PositionChange{
		Type:        models.BuyFilled,
		Symbol:      "005930",
		ExecQty:     10,
		ExecPrice:   70000,
		NewQty:      10,
		NewAvgPrice: 70000,
	})

	ev := sink.wait(t)
	if ev.Side != models.SideBuy {
		t.Fatalf("side = %s, want BUY", ev.Side)
	}
	if ev.PnL != nil || ev.PnLPct != nil {
		t.Error("buy event must not carry pnl")
	}
	if ev.ExecAmt != 700000 {
		t.Errorf("exec amt = %f, want 700000", ev.ExecAmt)
	}
}

func TestRecorderFallsBackToDefaultStrategy(t *testing.T) {
	sink := newCaptureSink()
	notifier := &captureNotifier{}
	rec := NewRecorder(sink, notifier, "breakout")

	rec.OnPositionChange(models.PositionChange{
		Type:      models.PositionClosed,
		Symbol:    "000660",
		Name:      "SK Hynix",
		ExecQty:   3,
		ExecPrice: 151000,
	})

	ev := sink.wait(t)
	if ev.StrategyID != "breakout" {
		t.Errorf("strategy id = %s, want breakout fallback", ev.StrategyID)
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.msgs) != 1 || !strings.Contains(notifier.msgs[0], "CLOSED") {
		t.Errorf("unexpected notifications: %v", notifier.msgs)
	}
}
