package portfolio

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"stock_bot/internal/models"
)

type stubHistory struct {
	entry time.Time
	calls int
}

func (h *stubHistory) LastEntryTime(_ context.Context, symbol string) (time.Time, bool, error) {
	h.calls++
	if h.entry.IsZero() {
		return time.Time{}, false, nil
	}
	return h.entry, true, nil
}

func newTestPortfolio(t *testing.T) (*Portfolio, *StateStore) {
	t.Helper()
	store := NewStateStore(filepath.Join(t.TempDir(), "positions.json"))
	return New(store, nil), store
}

func balance(holdings []models.Holding, totalAsset string) *models.BrokerBalance {
	return &models.BrokerBalance{
		Holdings: holdings,
		Summary: []models.BalanceSummary{{
			Cash:       "1000000",
			DepositD1:  "1000000",
			DepositD2:  "1000000",
			TotalAsset: totalAsset,
		}},
	}
}

func holding(symbol string, qty, avg, cur string) models.Holding {
	return models.Holding{Symbol: symbol, Name: "TEST " + symbol, Qty: qty, AvgPrice: avg, CurrentPrice: cur}
}

func TestSyncRejectsEmptyHoldingsWithLocalPositions(t *testing.T) {
	p, _ := newTestPortfolio(t)
	ctx := context.Background()

	p.SyncWithBroker(ctx, balance([]models.Holding{holding("005930", "10", "70000", "71000")}, "2000000"), false, nil)
	if !p.HasPosition("005930") {
		t.Fatal("expected position after initial sync")
	}

	var events []models.PositionChange
	p.Subscribe(func(c models.PositionChange) { events = append(events, c) })

	p.SyncWithBroker(ctx, balance(nil, "2000000"), true, nil)

	if !p.HasPosition("005930") {
		t.Fatal("empty broker response must not wipe local positions")
	}
	if len(events) != 0 {
		t.Fatalf("expected no events, got %d", len(events))
	}
}

func TestSyncEmptyHoldingsWithEmptyLocalIsFine(t *testing.T) {
	p, _ := newTestPortfolio(t)
	p.SyncWithBroker(context.Background(), balance(nil, "1000000"), true, nil)
	if p.OpenPositions() != 0 {
		t.Fatal("expected empty portfolio")
	}
	if p.TotalAsset() != 1000000 {
		t.Fatalf("summary must still apply, got %f", p.TotalAsset())
	}
}

func TestEmptySyncAfterCloseEmitsNothing(t *testing.T) {
	p, _ := newTestPortfolio(t)
	ctx := context.Background()

	p.SyncWithBroker(ctx, balance([]models.Holding{holding("005930", "5", "70000", "71000")}, "2000000"), false, nil)

	var events []models.PositionChange
	p.Subscribe(func(c models.PositionChange) { events = append(events, c) })

	// брокер показал нулевой остаток: ровно одно POSITION_CLOSED
	p.SyncWithBroker(ctx, balance([]models.Holding{holding("005930", "0", "70000", "71000")}, "2000000"), true, nil)
	if len(events) != 1 || events[0].Type != models.PositionClosed {
		t.Fatalf("expected single close event, got %+v", events)
	}

	// следующая пустая сверка по уже пустому локальному состоянию — тишина
	p.SyncWithBroker(ctx, balance(nil, "2000000"), true, nil)
	if len(events) != 1 {
		t.Fatalf("empty sync after close must emit nothing, got %d events", len(events))
	}
	if p.OpenPositions() != 0 {
		t.Fatal("portfolio must stay empty")
	}
}

func TestSyncClassifiesQuantityDiffs(t *testing.T) {
	tests := []struct {
		name      string
		oldQty    string
		newQty    string
		wantType  models.ChangeType
		wantExec  int
		wantPrice float64 // avg=70000 cur=71000
	}{
		{"buy fill", "10", "15", models.BuyFilled, 5, 70000},
		{"sell fill", "10", "4", models.SellFilled, 6, 71000},
		{"closed", "10", "0", models.PositionClosed, 10, 71000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newTestPortfolio(t)
			ctx := context.Background()
			p.SyncWithBroker(ctx, balance([]models.Holding{holding("005930", tt.oldQty, "70000", "71000")}, "2000000"), false, nil)

			var events []models.PositionChange
			p.Subscribe(func(c models.PositionChange) { events = append(events, c) })

			p.SyncWithBroker(ctx, balance([]models.Holding{holding("005930", tt.newQty, "70000", "71000")}, "2000000"), true, nil)

			if len(events) != 1 {
				t.Fatalf("expected exactly 1 event, got %d", len(events))
			}
			e := events[0]
			if e.Type != tt.wantType {
				t.Errorf("type = %s, want %s", e.Type, tt.wantType)
			}
			if e.ExecQty != tt.wantExec {
				t.Errorf("exec qty = %d, want %d", e.ExecQty, tt.wantExec)
			}
			if e.ExecPrice != tt.wantPrice {
				t.Errorf("exec price = %f, want %f", e.ExecPrice, tt.wantPrice)
			}
			if tt.wantType == models.PositionClosed && p.HasPosition("005930") {
				t.Error("closed position must be removed")
			}
		})
	}
}

func TestSyncNewHoldingEmitsBuyFilled(t *testing.T) {
	p, _ := newTestPortfolio(t)

	var events []models.PositionChange
	p.Subscribe(func(c models.PositionChange) { events = append(events, c) })

	p.SyncWithBroker(context.Background(), balance([]models.Holding{holding("000660", "3", "150000", "151000")}, "2000000"), true, nil)

	if len(events) != 1 || events[0].Type != models.BuyFilled {
		t.Fatalf("expected single BUY_FILLED, got %+v", events)
	}
	if events[0].ExecQty != 3 || events[0].ExecPrice != 150000 {
		t.Errorf("unexpected fill details: %+v", events[0])
	}
}

func TestSyncRemovesBrokerAbsentPosition(t *testing.T) {
	p, _ := newTestPortfolio(t)
	ctx := context.Background()
	p.SyncWithBroker(ctx, balance([]models.Holding{
		holding("005930", "10", "70000", "71000"),
		holding("000660", "3", "150000", "151000"),
	}, "2000000"), false, nil)

	var events []models.PositionChange
	p.Subscribe(func(c models.PositionChange) { events = append(events, c) })

	p.SyncWithBroker(ctx, balance([]models.Holding{holding("005930", "10", "70000", "71000")}, "2000000"), true, nil)

	if p.HasPosition("000660") {
		t.Fatal("position absent from broker must be removed")
	}
	if len(events) != 1 || events[0].Type != models.PositionClosed {
		t.Fatalf("expected POSITION_CLOSED for removed symbol, got %+v", events)
	}
	if events[0].ExecPrice != 151000 {
		t.Errorf("exit price must be last known local price, got %f", events[0].ExecPrice)
	}
}

func TestFreshStreamPriceSurvivesSync(t *testing.T) {
	p, _ := newTestPortfolio(t)
	ctx := context.Background()
	p.SyncWithBroker(ctx, balance([]models.Holding{holding("005930", "10", "70000", "71000")}, "2000000"), false, nil)

	p.UpdateMarketPrice("005930", 72500)

	p.SyncWithBroker(ctx, balance([]models.Holding{holding("005930", "10", "70000", "69000")}, "2000000"), false, nil)

	pos, _ := p.GetPosition("005930")
	if pos.CurrentPrice != 72500 {
		t.Fatalf("stale broker snapshot overwrote fresh stream price: %f", pos.CurrentPrice)
	}
}

func TestStaleLocalPriceTakenFromSync(t *testing.T) {
	p, _ := newTestPortfolio(t)
	ctx := context.Background()
	// Без стримовых тиков LastUpdate нулевой, снапшот брокера — лучшая цена.
	p.SyncWithBroker(ctx, balance([]models.Holding{holding("005930", "10", "70000", "71000")}, "2000000"), false, nil)
	p.SyncWithBroker(ctx, balance([]models.Holding{holding("005930", "10", "70000", "72000")}, "2000000"), false, nil)

	pos, _ := p.GetPosition("005930")
	if pos.CurrentPrice != 72000 {
		t.Fatalf("expected broker price 72000, got %f", pos.CurrentPrice)
	}
}

func TestMetaRestoredAcrossRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "positions.json")
	ctx := context.Background()

	p := New(NewStateStore(path), nil)
	p.SyncWithBroker(ctx, balance([]models.Holding{holding("005930", "10", "70000", "71000")}, "2000000"), false, nil)
	p.MarkPartialTaken("005930")
	p.RaiseMaxPrice("005930", 74000)

	p2 := New(NewStateStore(path), nil)
	p2.SyncWithBroker(ctx, balance([]models.Holding{holding("005930", "10", "70000", "71000")}, "2000000"), false, nil)

	pos, ok := p2.GetPosition("005930")
	if !ok {
		t.Fatal("position missing after restart")
	}
	if !pos.PartialTaken {
		t.Error("partial_taken flag lost across restart")
	}
	if pos.MaxPrice != 74000 {
		t.Errorf("max price = %f, want 74000", pos.MaxPrice)
	}
}

func TestAcquiredTimeBackfilledOncePerSymbol(t *testing.T) {
	entry := time.Now().Add(-48 * time.Hour).Truncate(time.Second)
	hist := &stubHistory{entry: entry}
	store := NewStateStore(filepath.Join(t.TempDir(), "positions.json"))
	p := New(store, hist)
	ctx := context.Background()

	bal := balance([]models.Holding{holding("005930", "10", "70000", "71000")}, "2000000")
	p.SyncWithBroker(ctx, bal, false, nil)
	p.SyncWithBroker(ctx, bal, false, nil)
	p.SyncWithBroker(ctx, bal, false, nil)

	if hist.calls != 1 {
		t.Fatalf("history queried %d times, want 1", hist.calls)
	}
	pos, _ := p.GetPosition("005930")
	if !pos.FirstAcquired.Equal(entry) {
		t.Errorf("acquired time = %v, want %v", pos.FirstAcquired, entry)
	}
}

func TestUpdatePositionAveragesBuys(t *testing.T) {
	p, _ := newTestPortfolio(t)
	p.UpdatePosition("005930", 10, 70000, "ma_trend")
	p.UpdatePosition("005930", 10, 72000, "ma_trend")

	pos, _ := p.GetPosition("005930")
	if pos.Qty != 20 {
		t.Fatalf("qty = %d, want 20", pos.Qty)
	}
	if pos.AvgPrice != 71000 {
		t.Errorf("avg = %f, want 71000", pos.AvgPrice)
	}

	p.UpdatePosition("005930", -20, 73000, "ma_trend")
	if p.HasPosition("005930") {
		t.Error("fully sold position must be removed")
	}
}
