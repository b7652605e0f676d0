package marketdata

import (
	"context"
	"testing"
	"time"

	"stock_bot/internal/models"
)

type countingSource struct {
	barsCalls  int
	priceCalls int
	nameCalls  int
	bars       models.Bars
	price      float64
}

func (s *countingSource) GetBars(context.Context, string, string, int) (models.Bars, error) {
	s.barsCalls++
	return s.bars, nil
}

func (s *countingSource) GetLastPrice(context.Context, string) (float64, error) {
	s.priceCalls++
	return s.price, nil
}

func (s *countingSource) GetStockName(_ context.Context, symbol string) (string, error) {
	s.nameCalls++
	return "NAME " + symbol, nil
}

func seriesOf(n int) models.Bars {
	var bars models.Bars
	for i := 0; i < n; i++ {
		bars = bars.Append(models.Bar{Close: float64(1000 + i), Volume: 100})
	}
	return bars
}

func TestGetBarsCachesWithinTTL(t *testing.T) {
	src := &countingSource{bars: seriesOf(30)}
	svc := NewService(src, time.Second)
	ctx := context.Background()

	if _, err := svc.GetBars(ctx, "005930", "5", 20); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.GetBars(ctx, "005930", "5", 20); err != nil {
		t.Fatal(err)
	}
	if src.barsCalls != 1 {
		t.Fatalf("bars fetched %d times, want 1 (cached)", src.barsCalls)
	}

	// больший lookback пробивает кеш
	if _, err := svc.GetBars(ctx, "005930", "5", 40); err != nil {
		t.Fatal(err)
	}
	if src.barsCalls != 2 {
		t.Fatalf("bars fetched %d times, want 2", src.barsCalls)
	}
}

func TestFreshTickBeatsRESTPrice(t *testing.T) {
	src := &countingSource{price: 70000}
	svc := NewService(src, time.Second)
	ctx := context.Background()

	svc.PushTick("005930", "100000", 71500, 10)

	price, err := svc.GetLastPrice(ctx, "005930")
	if err != nil {
		t.Fatal(err)
	}
	if price != 71500 {
		t.Fatalf("price = %f, want streamed 71500", price)
	}
	if src.priceCalls != 0 {
		t.Fatalf("REST hit %d times despite fresh tick", src.priceCalls)
	}
}

func TestPushTickEmitsEvent(t *testing.T) {
	svc := NewService(&countingSource{}, time.Second)
	svc.PushTick("005930", "100000", 71500, 10)

	select {
	case ev := <-svc.Events():
		if ev.Symbol != "005930" || ev.Bar.Close != 71500 || ev.Bar.Time != "100000" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	default:
		t.Fatal("no event emitted for pushed tick")
	}
}

func TestStockNameCachedForever(t *testing.T) {
	src := &countingSource{}
	svc := NewService(src, time.Second)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		name, err := svc.GetStockName(ctx, "005930")
		if err != nil || name != "NAME 005930" {
			t.Fatalf("name = %q, err = %v", name, err)
		}
	}
	if src.nameCalls != 1 {
		t.Fatalf("name fetched %d times, want 1", src.nameCalls)
	}
}
