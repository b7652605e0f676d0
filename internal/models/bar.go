package models

// Bar — одна свеча из фида котировок.
type Bar struct {
	Time   string // "HHMMSS" exchange-local
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Empty — пустой тик (нет цены закрытия): пропускаем без обработки.
func (b Bar) Empty() bool {
	return b.Close <= 0
}

// Bars — OHLCV-серия, старые свечи первыми.
type Bars struct {
	Open   []float64
	High   []float64
	Low    []float64
	Close  []float64
	Volume []float64
}

func (b Bars) Len() int { return len(b.Close) }

func (b Bars) Append(bar Bar) Bars {
	b.Open = append(b.Open, bar.Open)
	b.High = append(b.High, bar.High)
	b.Low = append(b.Low, bar.Low)
	b.Close = append(b.Close, bar.Close)
	b.Volume = append(b.Volume, bar.Volume)
	return b
}

// Tail — последние n свечей (вся серия, если n больше длины).
func (b Bars) Tail(n int) Bars {
	if n >= b.Len() {
		return b
	}
	i := b.Len() - n
	return Bars{
		Open:   b.Open[i:],
		High:   b.High[i:],
		Low:    b.Low[i:],
		Close:  b.Close[i:],
		Volume: b.Volume[i:],
	}
}
