package history

import (
	"context"
	"fmt"
	"time"

	"stock_bot/internal/models"
	"stock_bot/pkg/logger"
)

// Комиссии + налог на продажу, консервативная оценка для рыночных ордеров.
const feeRate = 0.0025

const insertTimeout = 5 * time.Second

type EventSink interface {
	Insert(ctx context.Context, ev models.TradeEvent) error
}

// PnLSource — опциональное расширение журнала: накопленный realized pnl
// стратегии, добавляется в сообщение о закрытии позиции.
type PnLSource interface {
	CumulativePnL(ctx context.Context, strategyID string) (float64, error)
}

type Notifier interface {
	Notify(text string)
}

// Recorder — мост между сверкой портфеля и журналом: каждое событие
// превращает в запись trade_events и сообщение в telegram. Запись асинхронная,
// торговый цикл на БД не ждёт.
type Recorder struct {
	sink       EventSink
	notifier   Notifier
	strategyID string
}

func NewRecorder(sink EventSink, notifier Notifier, strategyID string) *Recorder {
	return &Recorder{sink: sink, notifier: notifier, strategyID: strategyID}
}

func (r *Recorder) OnPositionChange(c models.PositionChange) {
	ev := r.buildEvent(c)

	if r.sink != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), insertTimeout)
			defer cancel()
			if err := r.sink.Insert(ctx, ev); err != nil {
				logger.Error("failed to record trade event %s: %v", ev.EventID, err)
				return
			}
			if c.Type == models.PositionClosed {
				r.notifyCumulative(ctx, ev.StrategyID)
			}
		}()
	}

	if r.notifier != nil {
		r.notifier.Notify(formatChange(c, ev))
	}
}

func (r *Recorder) notifyCumulative(ctx context.Context, strategyID string) {
	src, ok := r.sink.(PnLSource)
	if !ok || r.notifier == nil {
		return
	}
	total, err := src.CumulativePnL(ctx, strategyID)
	if err != nil {
		logger.Warn("failed to load cumulative pnl for %s: %v", strategyID, err)
		return
	}
	r.notifier.Notify(fmt.Sprintf("📈 %s total realized: %+.0f", strategyID, total))
}

func (r *Recorder) buildEvent(c models.PositionChange) models.TradeEvent {
	now := time.Now()
	strategyID := c.Tag
	if strategyID == "" {
		strategyID = r.strategyID
	}

	ev := models.TradeEvent{
		EventID:    fmt.Sprintf("%s_%s_%d", c.Type, c.Symbol, now.UnixMilli()),
		Timestamp:  now,
		Symbol:     c.Symbol,
		StrategyID: strategyID,
		EventType:  string(c.Type),
		Side:       c.Side(),
		Price:      c.ExecPrice,
		Qty:        c.ExecQty,
		ExecAmt:    c.ExecPrice * float64(c.ExecQty),
		OrderID:    fmt.Sprintf("fill_%d", now.UnixMilli()),
	}

	if ev.Side == models.SideSell && c.OldAvgPrice > 0 {
		pnl, pnlPct := sellPnL(c)
		ev.PnL = &pnl
		ev.PnLPct = &pnlPct
	}
	return ev
}

func sellPnL(c models.PositionChange) (pnl, pnlPct float64) {
	gross := (c.ExecPrice - c.OldAvgPrice) * float64(c.ExecQty)
	fee := c.ExecPrice * float64(c.ExecQty) * feeRate
	pnl = gross - fee
	cost := c.OldAvgPrice * float64(c.ExecQty)
	if cost > 0 {
		pnlPct = pnl / cost
	}
	return pnl, pnlPct
}

func formatChange(c models.PositionChange, ev models.TradeEvent) string {
	switch c.Type {
	case models.BuyFilled:
		return fmt.Sprintf("🟢 <b>BUY</b> %s (%s)\nqty: %d @ %.0f\nposition: %d @ %.0f\nequity: %.0f",
			c.Name, c.Symbol, c.ExecQty, c.ExecPrice, c.NewQty, c.NewAvgPrice, c.TotalAsset)
	case models.SellFilled:
		return fmt.Sprintf("🔴 <b>SELL</b> %s (%s)\nqty: %d @ %.0f\nleft: %d\npnl: %s\nequity: %.0f",
			c.Name, c.Symbol, c.ExecQty, c.ExecPrice, c.NewQty, pnlText(ev), c.TotalAsset)
	case models.PositionClosed:
		return fmt.Sprintf("⚪️ <b>CLOSED</b> %s (%s)\nqty: %d @ %.0f\npnl: %s\nequity: %.0f",
			c.Name, c.Symbol, c.ExecQty, c.ExecPrice, pnlText(ev), c.TotalAsset)
	}
	return fmt.Sprintf("%s %s qty %d @ %.0f", c.Type, c.Symbol, c.ExecQty, c.ExecPrice)
}

func pnlText(ev models.TradeEvent) string {
	if ev.PnL == nil || ev.PnLPct == nil {
		return "n/a"
	}
	return fmt.Sprintf("%+.0f (%+.2f%%)", *ev.PnL, *ev.PnLPct*100)
}
