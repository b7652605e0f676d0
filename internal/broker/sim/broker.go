package sim

import (
	"context"
	"strconv"
	"sync"

	"stock_bot/internal/helper"
	"stock_bot/internal/models"
	"stock_bot/pkg/logger"
)

// комиссия за сторону, как в боевом расчёте
const feeRate = 0.0025

type PriceSource interface {
	GetLastPrice(ctx context.Context, symbol string) (float64, error)
}

type holding struct {
	qty int
	avg float64
}

// Broker — песочница: мгновенные исполнения по последней цене, свой кошелёк,
// снапшот баланса в том же формате, что у настоящего брокера. Остальной
// конвейер (сверка, события, журнал) не знает, что торгует в вакууме.
type Broker struct {
	mu       sync.Mutex
	prices   PriceSource
	cash     float64
	holdings map[string]*holding
}

func New(prices PriceSource, startingCash float64) *Broker {
	return &Broker{
		prices:   prices,
		cash:     startingCash,
		holdings: make(map[string]*holding),
	}
}

func (b *Broker) BuyMarket(ctx context.Context, symbol string, qty int, tag string) bool {
	last, err := b.prices.GetLastPrice(ctx, symbol)
	if err != nil || last <= 0 {
		logger.Error("[sim] no price for %s: %v", symbol, err)
		return false
	}
	// рыночная покупка заполняется по верхней границе шага цены
	price := helper.RoundUpToTick(last, helper.KRXTickSize(last))

	b.mu.Lock()
	defer b.mu.Unlock()

	cost := price * float64(qty) * (1 + feeRate)
	if cost > b.cash {
		logger.Warn("[sim] insufficient cash for %s x%d: need %.0f, have %.0f", symbol, qty, cost, b.cash)
		return false
	}

	h := b.holdings[symbol]
	if h == nil {
		h = &holding{}
		b.holdings[symbol] = h
	}
	total := h.avg*float64(h.qty) + price*float64(qty)
	h.qty += qty
	h.avg = total / float64(h.qty)
	b.cash -= cost

	logger.Info("[sim] BUY %s x%d @ %.0f (%s)", symbol, qty, price, tag)
	return true
}

func (b *Broker) SellMarket(ctx context.Context, symbol string, qty int, tag string) bool {
	last, err := b.prices.GetLastPrice(ctx, symbol)
	if err != nil || last <= 0 {
		logger.Error("[sim] no price for %s: %v", symbol, err)
		return false
	}
	price := helper.RoundDownToTick(last, helper.KRXTickSize(last))

	b.mu.Lock()
	defer b.mu.Unlock()

	h := b.holdings[symbol]
	if h == nil || h.qty < qty {
		logger.Warn("[sim] oversell %s: want %d, have %d", symbol, qty, heldQty(h))
		return false
	}

	h.qty -= qty
	b.cash += price * float64(qty) * (1 - feeRate)
	if h.qty == 0 {
		delete(b.holdings, symbol)
	}

	logger.Info("[sim] SELL %s x%d @ %.0f (%s)", symbol, qty, price, tag)
	return true
}

// GetBalance — снапшот в брокерском формате: числа строками, как с провода.
func (b *Broker) GetBalance(ctx context.Context) (*models.BrokerBalance, error) {
	b.mu.Lock()
	symbols := make([]string, 0, len(b.holdings))
	for s := range b.holdings {
		symbols = append(symbols, s)
	}
	b.mu.Unlock()

	// цены тянем без локов, источник может ходить в сеть
	marks := make(map[string]float64, len(symbols))
	for _, s := range symbols {
		if p, err := b.prices.GetLastPrice(ctx, s); err == nil && p > 0 {
			marks[s] = p
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	out := &models.BrokerBalance{}
	var stockValue float64
	for symbol, h := range b.holdings {
		mark := marks[symbol]
		if mark <= 0 {
			mark = h.avg
		}
		stockValue += mark * float64(h.qty)
		out.Holdings = append(out.Holdings, models.Holding{
			Symbol:       symbol,
			Name:         symbol,
			Qty:          strconv.Itoa(h.qty),
			AvgPrice:     formatF(h.avg),
			CurrentPrice: formatF(mark),
		})
	}

	cash := formatF(b.cash)
	out.Summary = []models.BalanceSummary{{
		Cash:       cash,
		DepositD1:  cash,
		DepositD2:  cash,
		TotalAsset: formatF(b.cash + stockValue),
	}}
	return out, nil
}

func heldQty(h *holding) int {
	if h == nil {
		return 0
	}
	return h.qty
}

func formatF(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}
