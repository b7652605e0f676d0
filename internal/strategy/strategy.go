package strategy

import (
	"context"

	"stock_bot/internal/models"
)

// OrderIntent — желание стратегии или машины выходов. Qty=0 на входе
// означает "размер посчитает трейдер".
type OrderIntent struct {
	Side   models.Side
	Qty    int
	Reason string

	// StopLoss помечает выход как стоп: символ уходит в кулдаун до конца дня.
	StopLoss bool
}

// Strategy — входной предикат. Всё остальное (гейт, выходы, сайзинг,
// кулдаун) живёт в Trader и не наследуется.
type Strategy interface {
	ID() string
	EvaluateEntry(ctx context.Context, symbol string, bar models.Bar) *OrderIntent
}

// ExitEvaluator — необязательное расширение: собственные правила выхода
// стратегии, проверяются раньше общих (стоп, частичная фиксация, трейлинг).
type ExitEvaluator interface {
	EvaluateExit(ctx context.Context, pos models.Position, bar models.Bar) *OrderIntent
}

// Broker — то, что трейдеру нужно от брокера. false = ордер не принят,
// причина остаётся в логах слоя-обёртки.
type Broker interface {
	BuyMarket(ctx context.Context, symbol string, qty int, tag string) bool
	SellMarket(ctx context.Context, symbol string, qty int, tag string) bool
}

// MarketData — исторические бары и справочник.
type MarketData interface {
	GetBars(ctx context.Context, symbol, timeframe string, lookback int) (models.Bars, error)
	GetLastPrice(ctx context.Context, symbol string) (float64, error)
	GetStockName(ctx context.Context, symbol string) (string, error)
}

// TradeHistory — закрытые сделки: перф-вес в сайзинге и накопленный
// результат символа для режима восстановления.
type TradeHistory interface {
	RecentSells(ctx context.Context, symbol string, limit int) ([]models.TradeEvent, error)
	CumulativePnLPct(ctx context.Context, symbol string) (float64, error)
}
