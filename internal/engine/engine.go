package engine

import (
	"context"
	"sort"
	"strings"
	"time"

	"stock_bot/internal/broker/kis"
	"stock_bot/internal/helper"
	"stock_bot/internal/marketdata"
	"stock_bot/internal/models"
	"stock_bot/internal/modules/config"
	"stock_bot/internal/portfolio"
	"stock_bot/internal/risk"
	"stock_bot/internal/strategy"
	"stock_bot/pkg/logger"
)

const (
	universeInterval  = time.Minute
	heartbeatInterval = time.Minute
)

type BalanceSource interface {
	GetBalance(ctx context.Context) (*models.BrokerBalance, error)
}

// TickStream — реалтайм-поток цен; nil в симуляции.
type TickStream interface {
	StreamTicks(ctx context.Context, symbols []string) <-chan kis.Tick
}

// Engine — композиция торгового цикла. Все события (websocket-тики,
// REST-опрос) сливаются в один канал маркетдаты, и только эта горутина
// трогает портфель и трейдера: сверка и стратегия не гоняются друг с другом.
type Engine struct {
	trader  *strategy.Trader
	pf      *portfolio.Portfolio
	md      *marketdata.Service
	balance BalanceSource
	gate    *risk.Gate
	stream  TickStream

	system config.SystemConfig
	synced bool

	streamKey    string
	streamCancel context.CancelFunc
}

func New(trader *strategy.Trader, pf *portfolio.Portfolio, md *marketdata.Service, balance BalanceSource, gate *risk.Gate, stream TickStream, system config.SystemConfig) *Engine {
	return &Engine{
		trader:  trader,
		pf:      pf,
		md:      md,
		balance: balance,
		gate:    gate,
		stream:  stream,
		system:  system,
	}
}

// Run блокируется до отмены ctx.
func (e *Engine) Run(ctx context.Context) {
	// стартовая сверка молча: существующие позиции это не новые сделки
	e.sync(ctx)
	e.refreshUniverse(ctx)

	go e.md.Run(ctx)

	syncTicker := time.NewTicker(e.system.SyncInterval)
	defer syncTicker.Stop()
	universeTicker := time.NewTicker(universeInterval)
	defer universeTicker.Stop()
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	logger.Info("[engine] started: strategy %s, universe %d symbols, sync every %s",
		e.trader.Strategy().ID(), len(e.system.Universe), e.system.SyncInterval)

	for {
		select {
		case <-ctx.Done():
			logger.Info("[engine] stopped")
			return
		case ev := <-e.md.Events():
			e.onBar(ctx, ev)
		case <-syncTicker.C:
			e.sync(ctx)
		case <-universeTicker.C:
			e.refreshUniverse(ctx)
		case <-heartbeat.C:
			logger.Info("[engine] alive: equity %.0f, cash %.0f, positions %d",
				e.pf.TotalAsset(), e.pf.Cash(), e.pf.OpenPositions())
		}
	}
}

// onBar — одна итерация стратегии. Паника по одному символу не должна
// останавливать обработку остальных.
func (e *Engine) onBar(ctx context.Context, ev marketdata.Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("[engine] panic on %s: %v", ev.Symbol, r)
		}
	}()

	e.pf.UpdateMarketPrice(ev.Symbol, ev.Bar.Close)
	e.trader.OnBar(ctx, ev.Symbol, ev.Bar)
}

func (e *Engine) sync(ctx context.Context) {
	bal, err := e.balance.GetBalance(ctx)
	if err != nil {
		logger.Error("[engine] balance fetch failed: %v", err)
		return
	}

	tag := e.trader.Strategy().ID()
	e.pf.SyncWithBroker(ctx, bal, e.synced, func(string) string { return tag })
	e.synced = true

	e.gate.SetDailyStartEquity(helper.TradingDate(time.Now()), e.pf.TotalAsset())
}

// refreshUniverse — ручной список из конфига плюс всё, что реально висит
// на счету: купленное руками тоже должно сопровождаться.
func (e *Engine) refreshUniverse(ctx context.Context) {
	seen := make(map[string]bool)
	universe := make([]string, 0, len(e.system.Universe))
	for _, s := range e.system.Universe {
		s = helper.NormSymbol(s)
		if !seen[s] {
			seen[s] = true
			universe = append(universe, s)
		}
	}
	held := e.pf.Symbols()
	sort.Strings(held)
	for _, s := range held {
		if !seen[s] {
			seen[s] = true
			universe = append(universe, s)
		}
	}
	e.md.SetUniverse(universe)
	e.resubscribe(ctx, universe)
}

// resubscribe — переподписка стрима при смене вселенной: символ, купленный
// руками после старта, тоже должен получать реалтайм-тики.
func (e *Engine) resubscribe(ctx context.Context, symbols []string) {
	if e.stream == nil {
		return
	}
	key := strings.Join(symbols, ",")
	if key == e.streamKey {
		return
	}
	if e.streamCancel != nil {
		e.streamCancel()
	}
	subCtx, cancel := context.WithCancel(ctx)
	e.streamKey = key
	e.streamCancel = cancel
	go e.pipeStream(e.stream.StreamTicks(subCtx, symbols))
}

func (e *Engine) pipeStream(ticks <-chan kis.Tick) {
	for tick := range ticks {
		e.md.PushTick(tick.Symbol, tick.Time, tick.Price, tick.Volume)
	}
}
