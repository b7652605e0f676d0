package history

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"stock_bot/internal/models"
	"stock_bot/pkg/db"
)

// Store — журнал сделок в postgres. Таблица trade_events append-only,
// event_id защищает от дублей при повторной доставке события.
type Store struct {
	tx db.TxManager
}

func NewStore(tx db.TxManager) *Store {
	return &Store{tx: tx}
}

func (s *Store) Insert(ctx context.Context, ev models.TradeEvent) error {
	return s.tx.RunMaster(ctx, func(ctx context.Context, tx db.Transaction) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO trade_events
				(event_id, ts, symbol, strategy_id, event_type, side,
				 price, qty, exec_amt, order_id, pnl, pnl_pct)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			ON CONFLICT (event_id) DO NOTHING`,
			ev.EventID, ev.Timestamp, ev.Symbol, ev.StrategyID, ev.EventType, ev.Side,
			ev.Price, ev.Qty, ev.ExecAmt, ev.OrderID, ev.PnL, ev.PnLPct,
		)
		return errors.Wrap(err, "insert trade event")
	})
}

// RecentSells — последние закрытия по символу с посчитанным pnl,
// свежие первыми. База для перф-веса в сайзинге.
func (s *Store) RecentSells(ctx context.Context, symbol string, limit int) ([]models.TradeEvent, error) {
	rows, err := s.tx.Conn().Query(ctx, `
		SELECT event_id, ts, symbol, strategy_id, event_type, side,
		       price, qty, exec_amt, order_id, pnl, pnl_pct
		FROM trade_events
		WHERE symbol = $1 AND side = 'SELL' AND pnl_pct IS NOT NULL
		ORDER BY ts DESC
		LIMIT $2`,
		symbol, limit,
	)
	if err != nil {
		return nil, errors.Wrap(err, "query recent sells")
	}
	defer rows.Close()

	var out []models.TradeEvent
	for rows.Next() {
		var ev models.TradeEvent
		if err := rows.Scan(
			&ev.EventID, &ev.Timestamp, &ev.Symbol, &ev.StrategyID, &ev.EventType, &ev.Side,
			&ev.Price, &ev.Qty, &ev.ExecAmt, &ev.OrderID, &ev.PnL, &ev.PnLPct,
		); err != nil {
			return nil, errors.Wrap(err, "scan trade event")
		}
		out = append(out, ev)
	}
	return out, errors.Wrap(rows.Err(), "iterate recent sells")
}

// CumulativePnLPct — суммарный реализованный результат символа в долях;
// отрицательное значение переводит ma_trend в режим восстановления.
func (s *Store) CumulativePnLPct(ctx context.Context, symbol string) (float64, error) {
	var total float64
	err := s.tx.Conn().QueryRow(ctx, `
		SELECT COALESCE(SUM(pnl_pct), 0)
		FROM trade_events
		WHERE symbol = $1 AND pnl_pct IS NOT NULL`,
		symbol,
	).Scan(&total)
	return total, errors.Wrap(err, "query cumulative pnl pct")
}

// CumulativePnL — суммарный реализованный pnl стратегии за всё время.
func (s *Store) CumulativePnL(ctx context.Context, strategyID string) (float64, error) {
	var total float64
	err := s.tx.Conn().QueryRow(ctx, `
		SELECT COALESCE(SUM(pnl), 0)
		FROM trade_events
		WHERE strategy_id = $1 AND pnl IS NOT NULL`,
		strategyID,
	).Scan(&total)
	return total, errors.Wrap(err, "query cumulative pnl")
}

// LastEntryTime — момент последнего открытия позиции по символу: реплей
// журнала с подсчётом остатка, ищем последний переход 0 -> положительное.
func (s *Store) LastEntryTime(ctx context.Context, symbol string) (time.Time, bool, error) {
	rows, err := s.tx.Conn().Query(ctx, `
		SELECT ts, side, qty
		FROM trade_events
		WHERE symbol = $1 AND side IN ('BUY', 'SELL')
		ORDER BY ts ASC`,
		symbol,
	)
	if err != nil {
		return time.Time{}, false, errors.Wrap(err, "query symbol trades")
	}
	defer rows.Close()

	var (
		running int
		entry   time.Time
		found   bool
	)
	for rows.Next() {
		var (
			ts   time.Time
			side string
			qty  int
		)
		if err := rows.Scan(&ts, &side, &qty); err != nil {
			return time.Time{}, false, errors.Wrap(err, "scan symbol trade")
		}
		before := running
		if side == "BUY" {
			running += qty
		} else {
			running -= qty
		}
		if running < 0 {
			// Журнал неполный (ручные сделки до запуска бота), остаток обнуляем.
			running = 0
		}
		if before == 0 && running > 0 {
			entry = ts
			found = true
		}
	}
	if err := rows.Err(); err != nil {
		return time.Time{}, false, errors.Wrap(err, "iterate symbol trades")
	}
	return entry, found, nil
}
