package strategy

import (
	"context"

	"stock_bot/internal/models"
	"stock_bot/internal/modules/config"
	"stock_bot/pkg/logger"
)

// VWAPScalp — откат к внутридневному VWAP в восходящем потоке: берём бар,
// закрывшийся над VWAP после касания снизу.
type VWAPScalp struct {
	md MarketData

	timeframe string
	lookback  int
	maxAbove  float64 // не гнаться за ценой, ушедшей далеко от VWAP
}

func NewVWAPScalp(md MarketData, v config.Values) (*VWAPScalp, error) {
	if err := v.Require("stop_loss_pct"); err != nil {
		return nil, err
	}
	return &VWAPScalp{
		md:        md,
		timeframe: v.String("timeframe", "1"),
		lookback:  v.Int("vwap_lookback", 60),
		maxAbove:  v.Float("vwap_max_above", 0.003),
	}, nil
}

func (s *VWAPScalp) ID() string { return "vwap_scalp" }

func (s *VWAPScalp) EvaluateEntry(ctx context.Context, symbol string, bar models.Bar) *OrderIntent {
	bars, err := s.md.GetBars(ctx, symbol, s.timeframe, s.lookback)
	if err != nil {
		logger.Warn("[vwap_scalp] bars fetch failed for %s: %v", symbol, err)
		return nil
	}
	n := bars.Len()
	if n < 10 {
		return nil
	}

	ref := vwap(bars)
	if ref <= 0 {
		return nil
	}

	prevClose := bars.Close[n-2]
	if prevClose > ref || bar.Close <= ref {
		return nil
	}
	if (bar.Close-ref)/ref > s.maxAbove {
		return nil
	}

	return &OrderIntent{Side: models.SideBuy, Reason: "vwap_reclaim"}
}
