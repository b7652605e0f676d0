package strategy

import (
	"context"
	"math"
	"time"

	"stock_bot/internal/helper"
	"stock_bot/internal/models"
	"stock_bot/internal/modules/config"
	"stock_bot/internal/portfolio"
	"stock_bot/internal/risk"
	"stock_bot/pkg/logger"
)

const (
	perfWindow    = 5
	dailyPeriod   = 20
	dailyLookback = 22
)

// TraderConfig — общие опции машины входов/выходов. Все проценты — доли
// (0.02 = 2%).
type TraderConfig struct {
	StopLossPct        float64
	TakeProfit1Pct     float64
	TrailActivationPct float64
	TrailStopPct       float64
	RiskPct            float64
	TargetWeight       float64
	EntryStartTime     string
	EvalInterval       time.Duration
	DailyVolumeRatio   float64
	IsSimulation       bool
}

func traderConfigFrom(v config.Values) TraderConfig {
	return TraderConfig{
		StopLossPct:        v.Float("stop_loss_pct", 0.02),
		TakeProfit1Pct:     v.Float("take_profit1_pct", 0.03),
		TrailActivationPct: v.Float("trail_activation_pct", 0.03),
		TrailStopPct:       v.Float("trail_stop_pct", 0.015),
		RiskPct:            v.Float("risk_pct", 0.03),
		TargetWeight:       v.Float("target_weight", 0),
		EntryStartTime:     v.String("entry_start_time", "090000"),
		EvalInterval:       time.Duration(v.Float("eval_interval_sec", 5) * float64(time.Second)),
		DailyVolumeRatio:   v.Float("daily_volume_ratio", 1.0),
		IsSimulation:       v.Bool("is_simulation", false),
	}
}

type dailyEntry struct {
	date string
	bars models.Bars
}

// Trader — гейткипер: на каждый бар сначала выходы, потом фильтры,
// потом входной предикат стратегии. Не потокобезопасен, движок зовёт
// OnBar из одной горутины.
type Trader struct {
	strategy  Strategy
	broker    Broker
	md        MarketData
	portfolio *portfolio.Portfolio
	risk      *risk.Gate
	history   TradeHistory

	cfg TraderConfig
	now func() time.Time

	tradingDate string
	stoppedOut  map[string]string // symbol -> дата стопа
	lastEval    map[string]time.Time
	lastLog     map[string]string
	dailyCache  map[string]*dailyEntry
}

func NewTrader(s Strategy, broker Broker, md MarketData, pf *portfolio.Portfolio, gate *risk.Gate, hist TradeHistory, values config.Values) *Trader {
	return &Trader{
		strategy:   s,
		broker:     broker,
		md:         md,
		portfolio:  pf,
		risk:       gate,
		history:    hist,
		cfg:        traderConfigFrom(values),
		now:        time.Now,
		stoppedOut: make(map[string]string),
		lastEval:   make(map[string]time.Time),
		lastLog:    make(map[string]string),
		dailyCache: make(map[string]*dailyEntry),
	}
}

func (t *Trader) Strategy() Strategy { return t.strategy }

// OnBar — единственная точка входа торгового цикла.
func (t *Trader) OnBar(ctx context.Context, symbol string, bar models.Bar) {
	if !t.preprocess(ctx, symbol, bar) {
		return
	}

	intent := t.strategy.EvaluateEntry(ctx, symbol, bar)
	if intent == nil || intent.Side != models.SideBuy {
		return
	}
	t.enter(ctx, symbol, bar.Close, intent.Reason)
}

// preprocess — гейт. Порядок шагов это контракт: выходы всегда раньше входов.
func (t *Trader) preprocess(ctx context.Context, symbol string, bar models.Bar) bool {
	t.rollover()

	if bar.Empty() {
		return false
	}

	if date, ok := t.stoppedOut[symbol]; ok {
		if date == t.tradingDate {
			t.logOnce(symbol, "cooling down after stop-loss, skipping")
			return false
		}
		delete(t.stoppedOut, symbol)
	}

	if !t.cfg.IsSimulation {
		if last, ok := t.lastEval[symbol]; ok && t.now().Sub(last) < t.cfg.EvalInterval {
			return false
		}
		t.lastEval[symbol] = t.now()
	}

	if helper.BarTimeBefore(bar.Time, t.cfg.EntryStartTime) {
		return false
	}

	if pos, ok := t.portfolio.GetPosition(symbol); ok {
		// Выход не обрывает тик: частичная фиксация и немедленный
		// доворот в ту же сторону на одном баре разрешены. После стопа
		// вход отрежет кулдаун, но только со следующего тика.
		t.managePosition(ctx, pos, symbol, bar)
	}

	return t.dailyTrendOK(ctx, symbol)
}

func (t *Trader) rollover() {
	date := helper.TradingDate(t.now())
	if date == t.tradingDate {
		return
	}
	t.tradingDate = date
	t.lastLog = make(map[string]string)
	for symbol, d := range t.stoppedOut {
		if d != date {
			delete(t.stoppedOut, symbol)
		}
	}
}

// managePosition — упорядоченные правила выхода, срабатывает максимум одно
// за тик. true = была продажа.
func (t *Trader) managePosition(ctx context.Context, pos models.Position, symbol string, bar models.Bar) bool {
	price := bar.Close

	if price > pos.MaxPrice {
		t.portfolio.RaiseMaxPrice(symbol, price)
		pos.MaxPrice = price
	}

	if ev, ok := t.strategy.(ExitEvaluator); ok {
		if intent := ev.EvaluateExit(ctx, pos, bar); intent != nil && intent.Side == models.SideSell {
			qty := intent.Qty
			if qty <= 0 || qty > pos.Qty {
				qty = pos.Qty
			}
			if t.execSell(ctx, symbol, qty, price, intent.Reason) {
				if intent.StopLoss {
					t.stoppedOut[symbol] = t.tradingDate
				}
				return true
			}
			return false
		}
	}

	pnl := pos.PnLRatio(price)

	if pnl <= -t.cfg.StopLossPct {
		logger.Warn("[%s] %s stop-loss: pnl %.2f%% at %.0f (avg %.0f)", t.strategy.ID(), symbol, pnl*100, price, pos.AvgPrice)
		if t.execSell(ctx, symbol, pos.Qty, price, "stop_loss") {
			t.stoppedOut[symbol] = t.tradingDate
			return true
		}
		return false
	}

	if !pos.PartialTaken && pnl >= t.cfg.TakeProfit1Pct {
		half := pos.Qty / 2
		if half == 0 {
			half = pos.Qty
		}
		logger.Info("[%s] %s partial take-profit: pnl %.2f%%, selling %d of %d", t.strategy.ID(), symbol, pnl*100, half, pos.Qty)
		if t.execSell(ctx, symbol, half, price, "take_profit_1") {
			t.portfolio.MarkPartialTaken(symbol)
			return true
		}
		return false
	}

	if pos.MaxPrice >= pos.AvgPrice*(1+t.cfg.TrailActivationPct) {
		drawdown := (price - pos.MaxPrice) / pos.MaxPrice
		if drawdown <= -t.cfg.TrailStopPct {
			if price < pos.AvgPrice {
				// Гэп вниз сквозь активированный трейлинг: убыточную
				// продажу здесь не делаем, пусть решает стоп-лосс.
				t.logOnce(symbol, "trailing breach below avg price, deferring to stop-loss")
				return false
			}
			logger.Info("[%s] %s trailing stop: %.2f%% off high %.0f", t.strategy.ID(), symbol, drawdown*100, pos.MaxPrice)
			return t.execSell(ctx, symbol, pos.Qty, price, "trailing_stop")
		}
	}

	return false
}

func (t *Trader) enter(ctx context.Context, symbol string, price float64, reason string) {
	qty := t.CalculateBuyQuantity(ctx, symbol, price)
	if qty <= 0 {
		t.logOnce(symbol, "entry signal with zero sized order, skipping")
		return
	}
	if !t.risk.AllowEntry(symbol, qty, price) {
		return
	}

	tag := t.strategy.ID()
	if !t.broker.BuyMarket(ctx, symbol, qty, tag) {
		logger.Error("[%s] buy order rejected: %s x%d @ %.0f", tag, symbol, qty, price)
		return
	}
	t.portfolio.UpdatePosition(symbol, qty, price, tag)
	logger.Info("[%s] BUY %s x%d @ %.0f (%s)", tag, symbol, qty, price, reason)
}

func (t *Trader) execSell(ctx context.Context, symbol string, qty int, price float64, reason string) bool {
	tag := t.strategy.ID()
	if !t.broker.SellMarket(ctx, symbol, qty, tag) {
		logger.Error("[%s] sell order rejected: %s x%d (%s)", tag, symbol, qty, reason)
		return false
	}
	t.portfolio.UpdatePosition(symbol, -qty, price, tag)
	logger.Info("[%s] SELL %s x%d @ %.0f (%s)", tag, symbol, qty, price, reason)
	return true
}

// CalculateBuyQuantity — риск-шаг с перф-весом, сверху кап по целевой доле.
func (t *Trader) CalculateBuyQuantity(ctx context.Context, symbol string, price float64) int {
	if price <= 0 {
		return 0
	}
	account := t.portfolio.AccountValue()
	if account <= 0 {
		return 0
	}

	weight := t.performanceWeight(ctx, symbol)
	step := int(math.Floor(account * t.cfg.RiskPct * weight / price))
	if step <= 0 {
		return 0
	}

	if t.cfg.TargetWeight > 0 {
		var held float64
		if pos, ok := t.portfolio.GetPosition(symbol); ok {
			held = float64(pos.Qty) * price
		}
		deficit := t.cfg.TargetWeight*account - held
		if deficit <= 0 {
			return 0
		}
		if room := int(math.Floor(deficit / price)); room < step {
			step = room
		}
	}
	return step
}

// performanceWeight — множитель из последних закрытий по символу:
// стабильным победителям добавка, лузстрику нейтральная единица.
func (t *Trader) performanceWeight(ctx context.Context, symbol string) float64 {
	if t.history == nil {
		return 1.0
	}
	sells, err := t.history.RecentSells(ctx, symbol, perfWindow)
	if err != nil {
		logger.Warn("failed to load recent sells for %s: %v", symbol, err)
		return 1.0
	}
	if len(sells) == 0 {
		return 1.0
	}

	var sum float64
	wins := 0
	for _, ev := range sells {
		if ev.PnLPct == nil {
			sum += 1.0
			continue
		}
		pct := *ev.PnLPct * 100
		if pct > 0 {
			wins++
			sum += 1 + math.Min(pct/10, 0.5)
		} else {
			sum += 1 + math.Max(pct/10, -0.5)
		}
	}

	weight := sum / float64(len(sells))
	winRate := float64(wins) / float64(len(sells))
	if winRate >= 0.8 {
		weight *= 1.5
	}
	if winRate <= 0.2 {
		weight = 1.0
	}
	return math.Min(3.0, math.Max(1.0, weight))
}

// dailyTrendOK — дневной фильтр: закрытие над SMA20, SMA20 не падает,
// вчерашний объём не мельче своего среднего.
func (t *Trader) dailyTrendOK(ctx context.Context, symbol string) bool {
	entry := t.dailyCache[symbol]
	if entry == nil || entry.date != t.tradingDate {
		bars, err := t.md.GetBars(ctx, symbol, "D", dailyLookback)
		if err != nil {
			// транзиентный сбой не кешируем: следующий тик попробует снова
			logger.Warn("failed to fetch daily bars for %s: %v", symbol, err)
			return false
		}
		entry = &dailyEntry{date: t.tradingDate, bars: bars}
		t.dailyCache[symbol] = entry
	}

	bars := entry.bars
	n := bars.Len()
	if n < dailyPeriod+1 {
		if t.cfg.IsSimulation {
			t.logOnce(symbol, "short daily history, trend filter pass-through")
			return true
		}
		t.logOnce(symbol, "insufficient daily history for trend filter")
		return false
	}

	closes := bars.Close
	latest := closes[n-1]
	smaNow := sma(closes[n-dailyPeriod:])
	smaPrev := sma(closes[n-dailyPeriod-1 : n-1])

	if latest < smaNow {
		t.logOnce(symbol, "below daily SMA20, no entries")
		return false
	}
	if smaNow < smaPrev {
		t.logOnce(symbol, "daily SMA20 declining, no entries")
		return false
	}

	if !t.cfg.IsSimulation && n >= dailyPeriod+2 {
		vols := bars.Volume
		prevVol := vols[n-2]
		avgVol := sma(vols[n-dailyPeriod-1 : n-1])
		if avgVol > 0 && prevVol < t.cfg.DailyVolumeRatio*avgVol {
			t.logOnce(symbol, "prior-day volume below average, no entries")
			return false
		}
	}
	return true
}

// logOnce — дедуп повторяющихся строк по символу, иначе гейт зальёт лог.
func (t *Trader) logOnce(symbol, msg string) {
	if t.lastLog[symbol] == msg {
		return
	}
	t.lastLog[symbol] = msg
	logger.Info("[%s] %s: %s", t.strategy.ID(), symbol, msg)
}
