package strategy

import (
	"github.com/pkg/errors"

	"stock_bot/internal/modules/config"
)

// New — единственное место, где id стратегии превращается в реализацию.
// Обязательные ключи проверяются здесь же, на старте, а не на первом баре.
func New(id string, md MarketData, hist TradeHistory, values config.Values) (Strategy, error) {
	switch id {
	case "ma_trend":
		return NewMATrend(md, hist, values)
	case "breakout":
		return NewBreakout(md, values)
	case "bollinger_mr":
		return NewBollingerMR(md, values)
	case "vwap_scalp":
		return NewVWAPScalp(md, values)
	default:
		return nil, errors.Errorf("unknown strategy: %q", id)
	}
}
