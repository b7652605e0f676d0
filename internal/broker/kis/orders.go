package kis

import (
	"context"
	"strconv"

	"stock_bot/internal/helper"
	"stock_bot/pkg/logger"
)

const orderCashPath = "/uapi/domestic-stock/v1/trading/order-cash"

type orderResponse struct {
	RtCd   string `json:"rt_cd"`
	MsgCd  string `json:"msg_cd"`
	Msg1   string `json:"msg1"`
	Output struct {
		OrderNo string `json:"ODNO"`
	} `json:"output"`
}

// BuyMarket — рыночная покупка. false на любом отказе: стратегия не
// различает причины, подробности остаются в логе.
func (c *Client) BuyMarket(ctx context.Context, symbol string, qty int, tag string) bool {
	return c.orderMarket(ctx, symbol, qty, tag, true)
}

func (c *Client) SellMarket(ctx context.Context, symbol string, qty int, tag string) bool {
	return c.orderMarket(ctx, symbol, qty, tag, false)
}

func (c *Client) orderMarket(ctx context.Context, symbol string, qty int, tag string, buy bool) bool {
	if qty <= 0 {
		return false
	}

	trID := c.trID("TTTC0801U") // продажа
	side := "SELL"
	if buy {
		trID = c.trID("TTTC0802U")
		side = "BUY"
	}

	body := map[string]string{
		"CANO":         c.cano,
		"ACNT_PRDT_CD": c.acntPrdt,
		"PDNO":         helper.NormSymbol(symbol),
		"ORD_DVSN":     "01", // рыночный
		"ORD_QTY":      strconv.Itoa(qty),
		"ORD_UNPR":     "0",
	}

	var resp orderResponse
	if err := c.doPost(ctx, orderCashPath, trID, body, &resp); err != nil {
		logger.Error("[kis] %s %s x%d failed: %v", side, symbol, qty, err)
		return false
	}
	if resp.RtCd != "0" {
		logger.Error("[kis] %s %s x%d rejected: %s %s (%s)", side, symbol, qty, resp.MsgCd, resp.Msg1, tag)
		return false
	}

	logger.Info("[kis] %s %s x%d accepted, order %s (%s)", side, symbol, qty, resp.Output.OrderNo, tag)
	return true
}
