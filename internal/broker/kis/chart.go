package kis

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"stock_bot/internal/helper"
	"stock_bot/internal/models"
)

const (
	minuteChartPath = "/uapi/domestic-stock/v1/quotations/inquire-time-itemchartprice"
	dailyChartPath  = "/uapi/domestic-stock/v1/quotations/inquire-daily-itemchartprice"
	pricePath       = "/uapi/domestic-stock/v1/quotations/inquire-price"
	stockInfoPath   = "/uapi/domestic-stock/v1/quotations/search-stock-info"
)

type minuteBar struct {
	Hour   string `json:"stck_cntg_hour"` // "HHMMSS"
	Close  string `json:"stck_prpr"`
	Open   string `json:"stck_oprc"`
	High   string `json:"stck_hgpr"`
	Low    string `json:"stck_lwpr"`
	Volume string `json:"cntg_vol"`
}

type dailyBar struct {
	Date   string `json:"stck_bsop_date"`
	Close  string `json:"stck_clpr"`
	Open   string `json:"stck_oprc"`
	High   string `json:"stck_hgpr"`
	Low    string `json:"stck_lwpr"`
	Volume string `json:"acml_vol"`
}

// GetBars — OHLCV-серия, старые свечи первыми. timeframe "D" — дневки,
// число — минуты (минутки брокер отдаёт только единичные, агрегируем сами).
func (c *Client) GetBars(ctx context.Context, symbol, timeframe string, lookback int) (models.Bars, error) {
	if helper.NormTF(timeframe) == "1d" {
		return c.dailyBars(ctx, symbol, lookback)
	}
	return c.minuteBars(ctx, symbol, timeframe, lookback)
}

func (c *Client) dailyBars(ctx context.Context, symbol string, lookback int) (models.Bars, error) {
	end := time.Now()
	// календарных дней нужно больше торговых: выходные и праздники
	start := end.AddDate(0, 0, -lookback*2-14)

	q := url.Values{}
	q.Set("FID_COND_MRKT_DIV_CODE", "J")
	q.Set("FID_INPUT_ISCD", helper.NormSymbol(symbol))
	q.Set("FID_INPUT_DATE_1", start.Format("20060102"))
	q.Set("FID_INPUT_DATE_2", end.Format("20060102"))
	q.Set("FID_PERIOD_DIV_CODE", "D")
	q.Set("FID_ORG_ADJ_PRC", "1")

	var resp struct {
		RtCd    string     `json:"rt_cd"`
		Msg1    string     `json:"msg1"`
		Output2 []dailyBar `json:"output2"`
	}
	if err := c.doGet(ctx, dailyChartPath, "FHKST03010100", q, &resp); err != nil {
		return models.Bars{}, err
	}
	if resp.RtCd != "0" {
		return models.Bars{}, errors.Errorf("kis daily chart %s: %s", symbol, resp.Msg1)
	}

	// брокер отдаёт свежие первыми
	var bars models.Bars
	for i := len(resp.Output2) - 1; i >= 0; i-- {
		d := resp.Output2[i]
		if d.Close == "" {
			continue
		}
		bars = bars.Append(models.Bar{
			Time:   d.Date,
			Open:   parseF(d.Open),
			High:   parseF(d.High),
			Low:    parseF(d.Low),
			Close:  parseF(d.Close),
			Volume: parseF(d.Volume),
		})
	}
	return bars.Tail(lookback), nil
}

func minuteChartQuery(symbol string, at time.Time) url.Values {
	q := url.Values{}
	q.Set("FID_ETC_CLS_CODE", "")
	q.Set("FID_COND_MRKT_DIV_CODE", "J")
	q.Set("FID_INPUT_ISCD", helper.NormSymbol(symbol))
	q.Set("FID_INPUT_HOUR_1", at.Format("150405"))
	// "Y": с учётом уже прошедшей части дня, иначе API отдаёт куцую историю
	q.Set("FID_PW_DATA_INCU_YN", "Y")
	return q
}

func (c *Client) minuteBars(ctx context.Context, symbol, timeframe string, lookback int) (models.Bars, error) {
	step, err := strconv.Atoi(strings.TrimSuffix(helper.NormTF(timeframe), "m"))
	if err != nil || step < 1 {
		step = 1
	}

	q := minuteChartQuery(symbol, time.Now())

	var resp struct {
		RtCd    string      `json:"rt_cd"`
		Msg1    string      `json:"msg1"`
		Output2 []minuteBar `json:"output2"`
	}
	if err := c.doGet(ctx, minuteChartPath, "FHKST03010200", q, &resp); err != nil {
		return models.Bars{}, err
	}
	if resp.RtCd != "0" {
		return models.Bars{}, errors.Errorf("kis minute chart %s: %s", symbol, resp.Msg1)
	}

	var ones models.Bars
	for i := len(resp.Output2) - 1; i >= 0; i-- {
		m := resp.Output2[i]
		if m.Close == "" {
			continue
		}
		ones = ones.Append(models.Bar{
			Time:   m.Hour,
			Open:   parseF(m.Open),
			High:   parseF(m.High),
			Low:    parseF(m.Low),
			Close:  parseF(m.Close),
			Volume: parseF(m.Volume),
		})
	}

	return aggregateBars(ones, step).Tail(lookback), nil
}

// aggregateBars — склейка минуток в N-минутные свечи, последняя может быть
// неполной (текущая формирующаяся).
func aggregateBars(ones models.Bars, step int) models.Bars {
	if step <= 1 {
		return ones
	}
	var out models.Bars
	for i := 0; i < ones.Len(); i += step {
		end := i + step
		if end > ones.Len() {
			end = ones.Len()
		}
		b := models.Bar{
			Open: ones.Open[i],
			High: ones.High[i],
			Low:  ones.Low[i],
		}
		for j := i; j < end; j++ {
			if ones.High[j] > b.High {
				b.High = ones.High[j]
			}
			if ones.Low[j] < b.Low {
				b.Low = ones.Low[j]
			}
			b.Volume += ones.Volume[j]
		}
		b.Close = ones.Close[end-1]
		out = out.Append(b)
	}
	return out
}

// GetLastPrice — текущая цена по REST, для символов вне websocket-подписки.
func (c *Client) GetLastPrice(ctx context.Context, symbol string) (float64, error) {
	q := url.Values{}
	q.Set("FID_COND_MRKT_DIV_CODE", "J")
	q.Set("FID_INPUT_ISCD", helper.NormSymbol(symbol))

	var resp struct {
		RtCd   string `json:"rt_cd"`
		Msg1   string `json:"msg1"`
		Output struct {
			Price string `json:"stck_prpr"`
		} `json:"output"`
	}
	if err := c.doGet(ctx, pricePath, "FHKST01010100", q, &resp); err != nil {
		return 0, err
	}
	if resp.RtCd != "0" {
		return 0, errors.Errorf("kis price %s: %s", symbol, resp.Msg1)
	}
	return parseF(resp.Output.Price), nil
}

func (c *Client) GetStockName(ctx context.Context, symbol string) (string, error) {
	q := url.Values{}
	q.Set("PRDT_TYPE_CD", "300")
	q.Set("PDNO", helper.NormSymbol(symbol))

	var resp struct {
		RtCd   string `json:"rt_cd"`
		Output struct {
			Name string `json:"prdt_abrv_name"`
		} `json:"output"`
	}
	if err := c.doGet(ctx, stockInfoPath, "CTPF1002R", q, &resp); err != nil {
		return symbol, err
	}
	if resp.RtCd != "0" || resp.Output.Name == "" {
		return symbol, nil
	}
	return resp.Output.Name, nil
}

func parseF(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
