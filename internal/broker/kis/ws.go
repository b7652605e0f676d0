package kis

import (
	"context"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"stock_bot/internal/helper"
	"stock_bot/pkg/logger"
)

const (
	prodWSURL  = "ws://ops.koreainvestment.com:21000"
	paperWSURL = "ws://ops.koreainvestment.com:31000"

	// H0STCNT0 — поминутные сделки по акции, каретка как разделитель полей
	tickTrID = "H0STCNT0"
)

// Tick — одна сделка из реалтайм-потока.
type Tick struct {
	Symbol string
	Time   string // "HHMMSS"
	Price  float64
	Volume float64
}

// StreamTicks — один WebSocket на пачку символов, реконнект навсегда.
// Канал закрывается только по ctx.
func (c *Client) StreamTicks(ctx context.Context, symbols []string) <-chan Tick {
	out := make(chan Tick, 256)

	go func() {
		defer close(out)

		if len(symbols) == 0 {
			return
		}

		for {
			if ctx.Err() != nil {
				return
			}

			approval, err := c.tokens.ApprovalKey(ctx)
			if err != nil {
				logger.Error("[ws] approval key: %v", err)
				sleepCtx(ctx, 5*time.Second)
				continue
			}

			logger.Info("[ws] connecting, %d symbols", len(symbols))
			conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.wsURL, nil)
			if err != nil {
				logger.Error("[ws] dial: %v", err)
				sleepCtx(ctx, 3*time.Second)
				continue
			}

			if err := subscribeTicks(conn, approval, symbols); err != nil {
				logger.Error("[ws] subscribe: %v", err)
				_ = conn.Close()
				sleepCtx(ctx, 3*time.Second)
				continue
			}

			// рвём read-loop при отмене, иначе ReadMessage висит
			done := make(chan struct{})
			go func() {
				select {
				case <-ctx.Done():
					_ = conn.Close()
				case <-done:
				}
			}()

			readTicks(ctx, conn, out)
			close(done)
			_ = conn.Close()

			if ctx.Err() != nil {
				return
			}
			logger.Warn("[ws] disconnected, reconnecting")
			sleepCtx(ctx, time.Second)
		}
	}()

	return out
}

func subscribeTicks(conn *websocket.Conn, approval string, symbols []string) error {
	for _, symbol := range symbols {
		req := map[string]any{
			"header": map[string]string{
				"approval_key": approval,
				"custtype":     "P",
				"tr_type":      "1",
				"content-type": "utf-8",
			},
			"body": map[string]any{
				"input": map[string]string{
					"tr_id":  tickTrID,
					"tr_key": helper.NormSymbol(symbol),
				},
			},
		}
		payload, err := sonic.Marshal(req)
		if err != nil {
			return err
		}
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return err
		}
	}
	return nil
}

func readTicks(ctx context.Context, conn *websocket.Conn, out chan<- Tick) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				logger.Error("[ws] read: %v", err)
			}
			return
		}

		raw := string(msg)

		// контрольные кадры приходят как JSON, данные начинаются с "0|"
		if !strings.HasPrefix(raw, "0|") && !strings.HasPrefix(raw, "1|") {
			if strings.Contains(raw, "PINGPONG") {
				_ = conn.WriteMessage(websocket.TextMessage, msg)
			}
			continue
		}

		parts := strings.SplitN(raw, "|", 4)
		if len(parts) < 4 || parts[1] != tickTrID {
			continue
		}

		for _, rec := range splitRecords(parts[3]) {
			fields := strings.Split(rec, "^")
			if len(fields) < 13 {
				continue
			}
			tick := Tick{
				Symbol: fields[0],
				Time:   fields[1],
				Price:  parseF(fields[2]),
				Volume: parseF(fields[12]),
			}
			if tick.Price <= 0 {
				continue
			}
			select {
			case out <- tick:
			case <-ctx.Done():
				return
			default:
				// потребитель отстаёт, тик не критичен
			}
		}
	}
}

// В одном кадре бывает несколько записей подряд, длина одной записи
// фиксирована числом полей.
func splitRecords(data string) []string {
	const fieldsPerRecord = 46
	fields := strings.Split(data, "^")
	if len(fields) <= fieldsPerRecord {
		return []string{data}
	}
	var out []string
	for i := 0; i+fieldsPerRecord <= len(fields); i += fieldsPerRecord {
		out = append(out, strings.Join(fields[i:i+fieldsPerRecord], "^"))
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
