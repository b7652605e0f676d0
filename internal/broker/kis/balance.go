package kis

import (
	"context"
	"net/url"

	"github.com/pkg/errors"

	"stock_bot/internal/models"
)

const balancePath = "/uapi/domestic-stock/v1/trading/inquire-balance"

type balanceResponse struct {
	RtCd        string                  `json:"rt_cd"`
	Msg1        string                  `json:"msg1"`
	CtxAreaFK   string                  `json:"ctx_area_fk100"`
	CtxAreaNK   string                  `json:"ctx_area_nk100"`
	TrCont      string                  `json:"tr_cont"`
	Output1     []models.Holding        `json:"output1"`
	Output2     []models.BalanceSummary `json:"output2"`
}

// GetBalance — полный снапшот счёта. Ответ постраничный, листаем по
// ctx_area_nk100 пока брокер не скажет что дальше пусто.
func (c *Client) GetBalance(ctx context.Context) (*models.BrokerBalance, error) {
	out := &models.BrokerBalance{}

	fk, nk := "", ""
	for page := 0; page < 10; page++ {
		q := url.Values{}
		q.Set("CANO", c.cano)
		q.Set("ACNT_PRDT_CD", c.acntPrdt)
		q.Set("AFHR_FLPR_YN", "N")
		q.Set("OFL_YN", "")
		q.Set("INQR_DVSN", "02")
		q.Set("UNPR_DVSN", "01")
		q.Set("FUND_STTL_ICLD_YN", "N")
		q.Set("FNCG_AMT_AUTO_RDPT_YN", "N")
		q.Set("PRCS_DVSN", "00")
		q.Set("CTX_AREA_FK100", fk)
		q.Set("CTX_AREA_NK100", nk)

		var resp balanceResponse
		if err := c.doGet(ctx, balancePath, c.trID("TTTC8434R"), q, &resp); err != nil {
			return nil, err
		}
		if resp.RtCd != "0" {
			return nil, errors.Errorf("kis balance: %s", resp.Msg1)
		}

		out.Holdings = append(out.Holdings, resp.Output1...)
		if len(out.Summary) == 0 {
			out.Summary = resp.Output2
		}

		if resp.TrCont != "F" && resp.TrCont != "M" {
			break
		}
		fk, nk = resp.CtxAreaFK, resp.CtxAreaNK
	}

	return out, nil
}
