package models

// Holding — одна позиция из ответа брокера по балансу (поля приходят строками).
type Holding struct {
	Symbol       string `json:"pdno"`
	Name         string `json:"prdt_name"`
	Qty          string `json:"hldg_qty"`
	AvgPrice     string `json:"pchs_avg_pric"`
	CurrentPrice string `json:"prpr"`
}

// BalanceSummary — денежная часть ответа по балансу.
type BalanceSummary struct {
	Cash       string `json:"dnca_tot_amt"`       // settled deposit
	DepositD1  string `json:"nxdy_excc_amt"`      // T+1
	DepositD2  string `json:"prvs_rcdl_excc_amt"` // T+2, консервативная покупательная способность
	TotalAsset string `json:"tot_evlu_amt"`
}

// BrokerBalance — сырой снимок счёта от брокера, вход для сверки портфеля.
type BrokerBalance struct {
	Holdings []Holding        `json:"output1"`
	Summary  []BalanceSummary `json:"output2"`
}
