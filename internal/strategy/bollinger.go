package strategy

import (
	"context"

	"stock_bot/internal/models"
	"stock_bot/internal/modules/config"
	"stock_bot/pkg/logger"
)

// BollingerMR — возврат к среднему: вход под нижней полосой при перепроданном
// RSI, выход своим правилом на средней полосе (общие стоп и трейлинг
// остаются страховкой).
type BollingerMR struct {
	md MarketData

	period    int
	width     float64
	timeframe string
	rsiMax    float64
}

func NewBollingerMR(md MarketData, v config.Values) (*BollingerMR, error) {
	if err := v.Require("band_period", "band_width", "stop_loss_pct"); err != nil {
		return nil, err
	}
	return &BollingerMR{
		md:        md,
		period:    v.Int("band_period", 20),
		width:     v.Float("band_width", 2.0),
		timeframe: v.String("timeframe", "5"),
		rsiMax:    v.Float("rsi_max", 30),
	}, nil
}

func (s *BollingerMR) ID() string { return "bollinger_mr" }

func (s *BollingerMR) bands(ctx context.Context, symbol string) (mid, lower float64, ok bool) {
	bars, err := s.md.GetBars(ctx, symbol, s.timeframe, s.period+1)
	if err != nil {
		logger.Warn("[bollinger_mr] bars fetch failed for %s: %v", symbol, err)
		return 0, 0, false
	}
	n := bars.Len()
	if n < s.period {
		return 0, 0, false
	}
	window := bars.Close[n-s.period:]
	mid = sma(window)
	lower = mid - s.width*stdDev(window)
	return mid, lower, true
}

func (s *BollingerMR) EvaluateEntry(ctx context.Context, symbol string, bar models.Bar) *OrderIntent {
	_, lower, ok := s.bands(ctx, symbol)
	if !ok || bar.Close > lower {
		return nil
	}

	bars, err := s.md.GetBars(ctx, symbol, s.timeframe, s.period*2)
	if err != nil {
		return nil
	}
	if rsi(bars.Close, 14) > s.rsiMax {
		return nil
	}

	return &OrderIntent{Side: models.SideBuy, Reason: "band_touch"}
}

// EvaluateExit — фиксация на средней полосе, цели выше у этой стратегии нет.
func (s *BollingerMR) EvaluateExit(ctx context.Context, pos models.Position, bar models.Bar) *OrderIntent {
	mid, _, ok := s.bands(ctx, pos.Symbol)
	if !ok {
		return nil
	}
	if bar.Close >= mid && bar.Close > pos.AvgPrice {
		return &OrderIntent{Side: models.SideSell, Reason: "mean_revert_target"}
	}
	return nil
}
