package strategy

import (
	"go.uber.org/fx"

	"stock_bot/internal/modules/config"
	"stock_bot/internal/portfolio"
	"stock_bot/internal/risk"
)

func Module() fx.Option {
	return fx.Module("strategy",
		fx.Provide(
			func(cfg *config.Config, md MarketData, hist TradeHistory) (Strategy, error) {
				return New(cfg.ActiveStrategy, md, hist, cfg.StrategyValues(cfg.ActiveStrategy))
			},
			func(cfg *config.Config, s Strategy, b Broker, md MarketData, pf *portfolio.Portfolio, gate *risk.Gate, hist TradeHistory) *Trader {
				return NewTrader(s, b, md, pf, gate, hist, cfg.StrategyValues(cfg.ActiveStrategy))
			},
		),
	)
}
