package engine

import (
	"context"

	"go.uber.org/fx"

	"stock_bot/internal/broker/kis"
	"stock_bot/internal/broker/sim"
	"stock_bot/internal/history"
	"stock_bot/internal/marketdata"
	"stock_bot/internal/modules/config"
	"stock_bot/internal/notify"
	"stock_bot/internal/portfolio"
	"stock_bot/internal/risk"
	"stock_bot/internal/strategy"
	"stock_bot/pkg/db"
)

func Module() fx.Option {
	return fx.Module("engine",
		fx.Provide(
			func(tx db.TxManager) *history.Store {
				return history.NewStore(tx)
			},
			func(s *history.Store) strategy.TradeHistory { return s },
			func(s *history.Store) portfolio.TradeHistory { return s },
			func(s *history.Store) history.EventSink { return s },

			func(cfg *config.Config, hist portfolio.TradeHistory) *portfolio.Portfolio {
				path := cfg.Common.String("state_file", "data/positions.json")
				return portfolio.New(portfolio.NewStateStore(path), hist)
			},
			func(cfg *config.Config, pf *portfolio.Portfolio) *risk.Gate {
				return risk.NewGate(pf,
					cfg.Common.Float("max_daily_loss_pct", 0.03),
					cfg.Common.Int("max_positions", 10),
				)
			},

			func(client *kis.Client, cfg *config.Config) *marketdata.Service {
				return marketdata.NewService(client, cfg.System.PollInterval)
			},
			func(svc *marketdata.Service) strategy.MarketData { return svc },

			newBroker,

			func(trader *strategy.Trader, pf *portfolio.Portfolio, md *marketdata.Service, balance BalanceSource, gate *risk.Gate, stream TickStream, cfg *config.Config) *Engine {
				return New(trader, pf, md, balance, gate, stream, cfg.System)
			},
		),
		fx.Invoke(
			// журнал и телеграм подписаны на события сверки
			func(pf *portfolio.Portfolio, sink history.EventSink, n notify.Notifier, cfg *config.Config) {
				rec := history.NewRecorder(sink, n, cfg.ActiveStrategy)
				pf.Subscribe(rec.OnPositionChange)
			},
			func(lc fx.Lifecycle, e *Engine) {
				runCtx, cancel := context.WithCancel(context.Background())
				lc.Append(fx.Hook{
					OnStart: func(context.Context) error {
						go e.Run(runCtx)
						return nil
					},
					OnStop: func(context.Context) error {
						cancel()
						return nil
					},
				})
			},
		),
	)
}

type brokerOut struct {
	fx.Out

	Broker  strategy.Broker
	Balance BalanceSource
	Stream  TickStream
}

// newBroker — выбор исполнения на старте, без глобальных флагов режима:
// симуляция получает песочницу с теми же контрактами, что и боевой клиент.
func newBroker(cfg *config.Config, client *kis.Client, md *marketdata.Service) brokerOut {
	if cfg.Common.Bool("is_simulation", false) {
		sb := sim.New(md, cfg.Common.Float("sim_cash", 10_000_000))
		return brokerOut{Broker: sb, Balance: sb, Stream: nil}
	}
	return brokerOut{Broker: client, Balance: client, Stream: client}
}
