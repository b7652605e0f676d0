package risk

import (
	"sync"

	"stock_bot/pkg/logger"
)

// PortfolioView — то, что нужно гейту от портфеля; полный Portfolio не тащим.
type PortfolioView interface {
	HasPosition(symbol string) bool
	OpenPositions() int
	BuyingPower() float64
	TotalAsset() float64
}

// Gate — последний рубеж перед отправкой ордера на покупку. Стратегия может
// хотеть что угодно, гейт отвечает за счёт целиком.
type Gate struct {
	mu sync.Mutex

	portfolio PortfolioView

	maxDailyLossPct float64 // доля, 0.03 = -3% от утреннего эквити
	maxPositions    int

	dailyStartEquity float64
	tradingDate      string
}

func NewGate(portfolio PortfolioView, maxDailyLossPct float64, maxPositions int) *Gate {
	return &Gate{
		portfolio:       portfolio,
		maxDailyLossPct: maxDailyLossPct,
		maxPositions:    maxPositions,
	}
}

// SetDailyStartEquity — фиксация утреннего эквити; вызывается движком на
// первом тике торгового дня и при смене даты.
func (g *Gate) SetDailyStartEquity(date string, equity float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.tradingDate == date && g.dailyStartEquity > 0 {
		return
	}
	g.tradingDate = date
	g.dailyStartEquity = equity
	logger.Info("[risk] daily start equity for %s: %.0f", date, equity)
}

// AllowEntry — проверка входа. qty и price — параметры предполагаемого ордера.
func (g *Gate) AllowEntry(symbol string, qty int, price float64) bool {
	g.mu.Lock()
	start := g.dailyStartEquity
	maxLoss := g.maxDailyLossPct
	maxPos := g.maxPositions
	g.mu.Unlock()

	if start > 0 && maxLoss > 0 {
		equity := g.portfolio.TotalAsset()
		dailyPnL := (equity - start) / start
		if dailyPnL <= -maxLoss {
			logger.Warn("[risk] daily loss limit hit (%.2f%% <= -%.2f%%), blocking %s", dailyPnL*100, maxLoss*100, symbol)
			return false
		}
	}

	// Пирамидинг в уже открытую позицию лимит по числу позиций не трогает.
	if maxPos > 0 && !g.portfolio.HasPosition(symbol) && g.portfolio.OpenPositions() >= maxPos {
		logger.Warn("[risk] position cap reached (%d), blocking new symbol %s", maxPos, symbol)
		return false
	}

	// 0.25% сверху на комиссии и проскальзывание рыночного ордера.
	required := float64(qty) * price * 1.0025
	if available := g.portfolio.BuyingPower(); required > available {
		logger.Warn("[risk] insufficient buying power for %s: need %.0f, have %.0f", symbol, required, available)
		return false
	}

	return true
}
