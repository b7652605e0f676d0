package models

import "time"

// TradeEvent — запись журнала сделок (история исполнения).
type TradeEvent struct {
	EventID    string
	Timestamp  time.Time
	Symbol     string
	StrategyID string
	EventType  string // ORDER_SUBMITTED / BUY_FILLED / SELL_FILLED / POSITION_CLOSED
	Side       Side
	Price      float64
	Qty        int
	ExecAmt    float64
	OrderID    string
	PnL        *float64 // только для продаж
	PnLPct     *float64
}
