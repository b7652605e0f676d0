package kis

import (
	"go.uber.org/fx"

	"stock_bot/internal/modules/config"
	"stock_bot/internal/ratelimit"
)

func Module() fx.Option {
	return fx.Module("kis",
		fx.Provide(
			func(cfg *config.Config) *ratelimit.Limiter {
				return ratelimit.New("kis", cfg.KIS.TPSLimit)
			},
			func(cfg *config.Config, limiter *ratelimit.Limiter) (*Client, error) {
				return NewClient(cfg.KIS, limiter)
			},
		),
	)
}
