package sim

import (
	"context"
	"testing"
)

type fixedPrices map[string]float64

func (p fixedPrices) GetLastPrice(_ context.Context, symbol string) (float64, error) {
	return p[symbol], nil
}

func TestBuySellRoundTrip(t *testing.T) {
	ctx := context.Background()
	prices := fixedPrices{"005930": 70000}
	b := New(prices, 10_000_000)

	if !b.BuyMarket(ctx, "005930", 100, "test") {
		t.Fatal("buy rejected with enough cash")
	}
	if b.BuyMarket(ctx, "005930", 1000, "test") {
		t.Fatal("buy accepted beyond cash")
	}

	bal, err := b.GetBalance(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(bal.Holdings) != 1 || bal.Holdings[0].Qty != "100" {
		t.Fatalf("unexpected holdings: %+v", bal.Holdings)
	}

	if b.SellMarket(ctx, "005930", 101, "test") {
		t.Fatal("oversell accepted")
	}
	if !b.SellMarket(ctx, "005930", 100, "test") {
		t.Fatal("sell rejected")
	}

	bal, _ = b.GetBalance(ctx)
	if len(bal.Holdings) != 0 {
		t.Fatalf("holdings must be empty after full sale: %+v", bal.Holdings)
	}
}

func TestFeesReduceCash(t *testing.T) {
	ctx := context.Background()
	b := New(fixedPrices{"005930": 10000}, 1_000_000)

	b.BuyMarket(ctx, "005930", 10, "test")
	b.SellMarket(ctx, "005930", 10, "test")

	bal, _ := b.GetBalance(ctx)
	// купили и продали по одной цене, комиссии с двух сторон
	want := 1_000_000 - 10000.0*10*feeRate*2
	if got := bal.Summary[0].TotalAsset; got != "999500.00" {
		t.Fatalf("total asset = %s, want %.2f", got, want)
	}
}
