package models

import "time"

// Position — снимок одной бумаги в портфеле. Qty/AvgPrice меняются только
// через сверку с брокером (portfolio.SyncWithBroker), цены — через поток котировок.
type Position struct {
	Symbol       string
	Name         string
	Qty          int
	AvgPrice     float64
	CurrentPrice float64
	Tag          string // strategy id that owns the position
	PartialTaken bool   // first take-profit already fired this holding cycle
	MaxPrice     float64

	LastUpdate    time.Time // last realtime price refresh
	FirstAcquired time.Time // when qty first went 0 -> positive
}

// PnLRatio — (price-avg)/avg. Нулевая средняя цена -> 0.
func (p *Position) PnLRatio(price float64) float64 {
	if p.AvgPrice <= 0 {
		return 0
	}
	return (price - p.AvgPrice) / p.AvgPrice
}

func (p *Position) MarketValue() float64 {
	return float64(p.Qty) * p.CurrentPrice
}
