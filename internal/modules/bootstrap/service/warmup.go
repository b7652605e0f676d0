package service

import (
	"context"

	"stock_bot/internal/marketdata"
	"stock_bot/pkg/logger"
)

// Warmuper прогревает кеши маркетдаты до старта торгового цикла: имена и
// дневные серии по вселенной. Первый бар утра не должен ждать десяток
// REST-запросов.
type Warmuper struct {
	md *marketdata.Service
}

func NewWarmuper(md *marketdata.Service) *Warmuper {
	return &Warmuper{md: md}
}

func (w *Warmuper) Warmup(ctx context.Context, symbols []string) error {
	for _, symbol := range symbols {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := w.md.GetStockName(ctx, symbol); err != nil {
			logger.Warn("[boot] name warmup %s: %v", symbol, err)
		}
		if _, err := w.md.GetBars(ctx, symbol, "D", 22); err != nil {
			logger.Warn("[boot] daily bars warmup %s: %v", symbol, err)
		}
	}
	return nil
}
