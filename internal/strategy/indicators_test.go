package strategy

import (
	"math"
	"testing"

	"stock_bot/internal/models"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSMA(t *testing.T) {
	if got := sma([]float64{1, 2, 3, 4}); !almostEqual(got, 2.5) {
		t.Fatalf("sma = %f, want 2.5", got)
	}
	if got := smaTail([]float64{100, 1, 2, 3}, 3); !almostEqual(got, 2) {
		t.Fatalf("smaTail = %f, want 2", got)
	}
	if got := smaTail([]float64{1, 2}, 3); got != 0 {
		t.Fatalf("smaTail on short input = %f, want 0", got)
	}
}

func TestStdDev(t *testing.T) {
	if got := stdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9}); !almostEqual(got, 2) {
		t.Fatalf("stdDev = %f, want 2", got)
	}
	if got := stdDev([]float64{5, 5, 5}); !almostEqual(got, 0) {
		t.Fatalf("stdDev of flat series = %f, want 0", got)
	}
}

func TestRSIExtremes(t *testing.T) {
	up := make([]float64, 20)
	down := make([]float64, 20)
	for i := range up {
		up[i] = float64(100 + i)
		down[i] = float64(100 - i)
	}
	if got := rsi(up, 14); got != 100 {
		t.Fatalf("rsi of pure uptrend = %f, want 100", got)
	}
	if got := rsi(down, 14); got >= 1 {
		t.Fatalf("rsi of pure downtrend = %f, want ~0", got)
	}
	if got := rsi([]float64{1, 2}, 14); got != 50 {
		t.Fatalf("rsi on short input = %f, want neutral 50", got)
	}
}

func TestVWAPWeightsByVolume(t *testing.T) {
	var bars models.Bars
	bars = bars.Append(models.Bar{High: 100, Low: 100, Close: 100, Volume: 1})
	bars = bars.Append(models.Bar{High: 200, Low: 200, Close: 200, Volume: 3})

	// (100*1 + 200*3) / 4 = 175
	if got := vwap(bars); !almostEqual(got, 175) {
		t.Fatalf("vwap = %f, want 175", got)
	}

	var empty models.Bars
	if got := vwap(empty); got != 0 {
		t.Fatalf("vwap of no volume = %f, want 0", got)
	}
}

func TestADXTrendVsChop(t *testing.T) {
	trend := trendBars(80, 1000, 10)
	chop := chopBars(80, 1000)

	trendADX := adx(trend, 14)
	chopADX := adx(chop, 14)
	if trendADX <= chopADX {
		t.Fatalf("trend adx %f must exceed chop adx %f", trendADX, chopADX)
	}
	if trendADX < 25 {
		t.Fatalf("steady trend adx = %f, want strong (>=25)", trendADX)
	}
}

func trendBars(n int, start, step float64) models.Bars {
	var bars models.Bars
	for i := 0; i < n; i++ {
		c := start + float64(i)*step
		bars = bars.Append(models.Bar{Open: c - step, High: c + step/2, Low: c - step, Close: c, Volume: 1000})
	}
	return bars
}

func chopBars(n int, base float64) models.Bars {
	var bars models.Bars
	for i := 0; i < n; i++ {
		c := base
		if i%2 == 0 {
			c += 5
		} else {
			c -= 5
		}
		bars = bars.Append(models.Bar{Open: base, High: c + 5, Low: c - 5, Close: c, Volume: 1000})
	}
	return bars
}
