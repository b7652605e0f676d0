package risk

import "testing"

type stubPortfolio struct {
	held        map[string]bool
	open        int
	buyingPower float64
	totalAsset  float64
}

func (s *stubPortfolio) HasPosition(symbol string) bool { return s.held[symbol] }
func (s *stubPortfolio) OpenPositions() int             { return s.open }
func (s *stubPortfolio) BuyingPower() float64           { return s.buyingPower }
func (s *stubPortfolio) TotalAsset() float64            { return s.totalAsset }

func TestDailyLossLimitBlocksAllEntries(t *testing.T) {
	pf := &stubPortfolio{buyingPower: 10_000_000, totalAsset: 9_600_000}
	g := NewGate(pf, 0.03, 10)
	g.SetDailyStartEquity("2026-08-28", 10_000_000)

	if g.AllowEntry("005930", 1, 70000) {
		t.Fatal("entry allowed at -4% daily loss with 3% limit")
	}

	pf.totalAsset = 9_800_000 // -2%, внутри лимита
	if !g.AllowEntry("005930", 1, 70000) {
		t.Fatal("entry blocked inside daily loss limit")
	}
}

func TestDailyStartEquitySetOncePerDate(t *testing.T) {
	pf := &stubPortfolio{buyingPower: 10_000_000, totalAsset: 9_000_000}
	g := NewGate(pf, 0.03, 10)
	g.SetDailyStartEquity("2026-08-28", 10_000_000)
	g.SetDailyStartEquity("2026-08-28", 9_000_000) // повтор в тот же день игнорируется

	if g.AllowEntry("005930", 1, 70000) {
		t.Fatal("repeat SetDailyStartEquity must not rebase the loss limit")
	}

	g.SetDailyStartEquity("2026-08-29", 9_000_000)
	if !g.AllowEntry("005930", 1, 70000) {
		t.Fatal("new trading date must rebase daily start equity")
	}
}

func TestPositionCapBlocksOnlyNewSymbols(t *testing.T) {
	pf := &stubPortfolio{
		held:        map[string]bool{"005930": true},
		open:        3,
		buyingPower: 10_000_000,
		totalAsset:  10_000_000,
	}
	g := NewGate(pf, 0.03, 3)

	if g.AllowEntry("000660", 1, 150000) {
		t.Fatal("new symbol allowed at position cap")
	}
	if !g.AllowEntry("005930", 1, 70000) {
		t.Fatal("pyramiding into held symbol must bypass the position cap")
	}
}

func TestBuyingPowerIncludesFeeBuffer(t *testing.T) {
	pf := &stubPortfolio{buyingPower: 700_000, totalAsset: 10_000_000}
	g := NewGate(pf, 0.03, 10)

	// 10 * 70000 = 700000 ровно, но с буфером 0.25% уже не хватает.
	if g.AllowEntry("005930", 10, 70000) {
		t.Fatal("order at exact deposit must be blocked by fee buffer")
	}
	if !g.AllowEntry("005930", 9, 70000) {
		t.Fatal("affordable order blocked")
	}
}

func TestZeroStartEquitySkipsLossCheck(t *testing.T) {
	pf := &stubPortfolio{buyingPower: 10_000_000, totalAsset: 5_000_000}
	g := NewGate(pf, 0.03, 10)

	if !g.AllowEntry("005930", 1, 70000) {
		t.Fatal("loss check must be inert before start equity is primed")
	}
}
