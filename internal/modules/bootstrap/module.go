package bootstrap

import (
	"context"
	"time"

	"go.uber.org/fx"

	bootstrap "stock_bot/internal/modules/bootstrap/service"
	"stock_bot/internal/modules/config"
	"stock_bot/pkg/logger"
)

func Module() fx.Option {
	return fx.Module("bootstrap",
		fx.Provide(
			bootstrap.NewWarmuper,
		),
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, wu *bootstrap.Warmuper) {
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					go func() {
						ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
						defer cancel()
						start := time.Now()
						if err := wu.Warmup(ctx, cfg.System.Universe); err != nil {
							logger.Warn("[boot] warmup aborted: %v", err)
							return
						}
						logger.Info("[boot] warmup done: %d symbols in %s", len(cfg.System.Universe), time.Since(start).Round(time.Millisecond))
					}()
					return nil
				},
			})
		}),
	)
}
