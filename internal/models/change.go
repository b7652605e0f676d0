package models

// ChangeType — классификация дельты при сверке с брокером.
type ChangeType string

const (
	BuyFilled      ChangeType = "BUY_FILLED"
	SellFilled     ChangeType = "SELL_FILLED"
	PositionClosed ChangeType = "POSITION_CLOSED"
)

// PositionChange — одно событие на символ за сверку; ровно одно на переход.
type PositionChange struct {
	Type        ChangeType
	Symbol      string
	Name        string
	Tag         string
	ExecQty     int
	ExecPrice   float64
	NewQty      int
	NewAvgPrice float64
	OldAvgPrice float64
	TotalAsset  float64
}

func (c PositionChange) Side() Side {
	if c.Type == BuyFilled {
		return SideBuy
	}
	return SideSell
}

// Side как в ордерах: "BUY"/"SELL".
type Side string

const (
	SideNone Side = ""
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)
