package notify

import (
	"context"

	"go.uber.org/fx"

	"stock_bot/internal/modules/config"
	"stock_bot/internal/portfolio"
	"stock_bot/pkg/logger"
)

func Module() fx.Option {
	return fx.Module("notify",
		fx.Provide(
			func(lc fx.Lifecycle, cfg *config.Config, pf *portfolio.Portfolio) Notifier {
				if cfg.Telegram.Token == "" {
					logger.Warn("telegram token is not set, notifications go to log only")
					return Stdout{}
				}

				tg, err := NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, pf)
				if err != nil {
					logger.Error("telegram init failed, falling back to log: %v", err)
					return Stdout{}
				}

				runCtx, cancel := context.WithCancel(context.Background())
				lc.Append(fx.Hook{
					OnStart: func(context.Context) error {
						go tg.Run(runCtx)
						return nil
					},
					OnStop: func(context.Context) error {
						cancel()
						return nil
					},
				})
				return tg
			},
		),
	)
}
