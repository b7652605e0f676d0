package strategy

import (
	"math"

	"stock_bot/internal/models"
)

// Индикаторы считаются по хвосту среза, самый свежий бар последним.

func sma(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func smaTail(xs []float64, period int) float64 {
	if len(xs) < period {
		return 0
	}
	return sma(xs[len(xs)-period:])
}

func stdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	mean := sma(xs)
	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)))
}

// rsi по Уайлдеру, сглаживание скользящим средним прироста/падения.
func rsi(closes []float64, period int) float64 {
	if len(closes) < period+1 {
		return 50
	}
	var gain, loss float64
	start := len(closes) - period
	for i := start; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	if loss == 0 {
		return 100
	}
	rs := gain / loss
	return 100 - 100/(1+rs)
}

// adx по Уайлдеру: true range и directional movement со сглаживанием RMA.
func adx(bars models.Bars, period int) float64 {
	n := bars.Len()
	if n < period*2+1 {
		return 0
	}

	tr := make([]float64, 0, n-1)
	plusDM := make([]float64, 0, n-1)
	minusDM := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		h, l, pc := bars.High[i], bars.Low[i], bars.Close[i-1]
		tr = append(tr, math.Max(h-l, math.Max(math.Abs(h-pc), math.Abs(l-pc))))

		up := h - bars.High[i-1]
		down := bars.Low[i-1] - l
		var pdm, mdm float64
		if up > down && up > 0 {
			pdm = up
		}
		if down > up && down > 0 {
			mdm = down
		}
		plusDM = append(plusDM, pdm)
		minusDM = append(minusDM, mdm)
	}

	atr := rma(tr, period)
	pdi := rma(plusDM, period)
	mdi := rma(minusDM, period)

	dx := make([]float64, len(atr))
	for i := range atr {
		if atr[i] == 0 {
			continue
		}
		p := 100 * pdi[i] / atr[i]
		m := 100 * mdi[i] / atr[i]
		if p+m == 0 {
			continue
		}
		dx[i] = 100 * math.Abs(p-m) / (p + m)
	}
	out := rma(dx, period)
	if len(out) == 0 {
		return 0
	}
	return out[len(out)-1]
}

// rma — сглаживание Уайлдера: seed простым средним, дальше (prev*(n-1)+x)/n.
func rma(xs []float64, period int) []float64 {
	if len(xs) < period {
		return nil
	}
	out := make([]float64, 0, len(xs)-period+1)
	cur := sma(xs[:period])
	out = append(out, cur)
	for i := period; i < len(xs); i++ {
		cur = (cur*float64(period-1) + xs[i]) / float64(period)
		out = append(out, cur)
	}
	return out
}

// vwap по типичной цене (h+l+c)/3.
func vwap(bars models.Bars) float64 {
	var pv, vol float64
	for i := 0; i < bars.Len(); i++ {
		typical := (bars.High[i] + bars.Low[i] + bars.Close[i]) / 3
		pv += typical * bars.Volume[i]
		vol += bars.Volume[i]
	}
	if vol == 0 {
		return 0
	}
	return pv / vol
}

// crossCount — сколько раз быстрая MA пересекла медленную на последних
// lookback барах. Фильтр пилы.
func crossCount(closes []float64, short, long, lookback int) int {
	n := len(closes)
	if n < long+lookback {
		return 0
	}
	count := 0
	prevAbove := smaTail(closes[:n-lookback], short) > smaTail(closes[:n-lookback], long)
	for i := n - lookback + 1; i <= n; i++ {
		above := smaTail(closes[:i], short) > smaTail(closes[:i], long)
		if above != prevAbove {
			count++
			prevAbove = above
		}
	}
	return count
}
