package strategy

import (
	"context"

	"stock_bot/internal/models"
	"stock_bot/internal/modules/config"
	"stock_bot/pkg/logger"
)

// Breakout — пробой максимума за lookback баров с объёмным всплеском.
type Breakout struct {
	md MarketData

	lookback    int
	timeframe   string
	volumeRatio float64
	buffer      float64 // минимальный запас над уровнем, доля
}

func NewBreakout(md MarketData, v config.Values) (*Breakout, error) {
	if err := v.Require("lookback", "stop_loss_pct"); err != nil {
		return nil, err
	}
	return &Breakout{
		md:          md,
		lookback:    v.Int("lookback", 20),
		timeframe:   v.String("timeframe", "5"),
		volumeRatio: v.Float("volume_ratio", 2.0),
		buffer:      v.Float("breakout_buffer", 0.001),
	}, nil
}

func (s *Breakout) ID() string { return "breakout" }

func (s *Breakout) EvaluateEntry(ctx context.Context, symbol string, bar models.Bar) *OrderIntent {
	bars, err := s.md.GetBars(ctx, symbol, s.timeframe, s.lookback+1)
	if err != nil {
		logger.Warn("[breakout] bars fetch failed for %s: %v", symbol, err)
		return nil
	}
	n := bars.Len()
	if n < s.lookback+1 {
		return nil
	}

	// Уровень строим без текущего бара, иначе пробой сравнивается сам с собой.
	high := bars.High[n-1-s.lookback]
	for _, h := range bars.High[n-s.lookback : n-1] {
		if h > high {
			high = h
		}
	}
	if bar.Close < high*(1+s.buffer) {
		return nil
	}

	// объём текущей свечи из серии, не из события бара (там тиковый объём)
	if avgVol := smaTail(bars.Volume[:n-1], s.lookback); avgVol > 0 && bars.Volume[n-1] < s.volumeRatio*avgVol {
		return nil
	}

	return &OrderIntent{Side: models.SideBuy, Reason: "range_breakout"}
}
