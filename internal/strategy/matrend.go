package strategy

import (
	"context"
	"math"
	"time"

	"stock_bot/internal/models"
	"stock_bot/internal/modules/config"
	"stock_bot/pkg/logger"
)

// Убыточному символу мало формального сигнала: потенциал хода должен
// перекрывать хотя бы половину накопленного минуса.
const recoveryCoverage = 0.5

// MATrend — пересечение быстрой и медленной MA с подтверждением объёмом
// и силой тренда по ADX. Антипила: частые пересечения на хвосте отсекают
// сигнал целиком.
type MATrend struct {
	md   MarketData
	hist TradeHistory

	maShort       int
	maLong        int
	timeframe     string
	stopLossPct   float64
	volumeRatio   float64
	adxMin        float64
	crossLookback int
	maxCrosses    int
	rrMin         float64
	rrRecovery    float64
	scanInterval  time.Duration
	simulation    bool

	lastScan map[string]time.Time
}

func NewMATrend(md MarketData, hist TradeHistory, v config.Values) (*MATrend, error) {
	if err := v.Require("ma_short", "ma_long", "stop_loss_pct", "timeframe"); err != nil {
		return nil, err
	}
	return &MATrend{
		md:            md,
		hist:          hist,
		maShort:       v.Int("ma_short", 5),
		maLong:        v.Int("ma_long", 20),
		timeframe:     v.String("timeframe", "5"),
		stopLossPct:   v.Float("stop_loss_pct", 0.02),
		volumeRatio:   v.Float("volume_ratio", 1.5),
		adxMin:        v.Float("adx_min", 20),
		crossLookback: v.Int("cross_lookback", 3),
		maxCrosses:    v.Int("max_crosses", 3),
		rrMin:         v.Float("rr_min", 2.0),
		rrRecovery:    v.Float("rr_recovery", 3.0),
		scanInterval:  time.Duration(v.Float("scan_interval_sec", 60) * float64(time.Second)),
		simulation:    v.Bool("is_simulation", false),
		lastScan:      make(map[string]time.Time),
	}, nil
}

func (s *MATrend) ID() string { return "ma_trend" }

func (s *MATrend) EvaluateEntry(ctx context.Context, symbol string, bar models.Bar) *OrderIntent {
	if !s.simulation {
		if last, ok := s.lastScan[symbol]; ok && time.Since(last) < s.scanInterval {
			return nil
		}
		s.lastScan[symbol] = time.Now()
	}

	lookback := s.maLong*2 + s.crossLookback + 1
	bars, err := s.md.GetBars(ctx, symbol, s.timeframe, lookback)
	if err != nil {
		logger.Warn("[ma_trend] bars fetch failed for %s: %v", symbol, err)
		return nil
	}
	n := bars.Len()
	if n < s.maLong+s.crossLookback+1 {
		return nil
	}

	closes := bars.Close

	// Пересечение засчитываем в окне последних crossLookback баров: объём
	// нередко подтверждает пробой на бар-два позже самого креста.
	crossedAt := -1
	for back := 0; back < s.crossLookback; back++ {
		i := n - back
		fastNow := smaTail(closes[:i], s.maShort)
		slowNow := smaTail(closes[:i], s.maLong)
		fastPrev := smaTail(closes[:i-1], s.maShort)
		slowPrev := smaTail(closes[:i-1], s.maLong)
		if fastNow > slowNow && fastPrev <= slowPrev {
			crossedAt = back
			break
		}
	}
	if crossedAt < 0 {
		return nil
	}
	if smaTail(closes, s.maShort) <= smaTail(closes, s.maLong) {
		return nil
	}

	// Объём берём из текущей свечи серии: событие бара несёт объём одной
	// сделки (или ноль на REST-опросе) и для фильтра непригодно.
	if avgVol := smaTail(bars.Volume[:n-1], s.maLong); avgVol > 0 && bars.Volume[n-1] < s.volumeRatio*avgVol {
		return nil
	}

	if crossCount(closes, s.maShort, s.maLong, s.maLong) > s.maxCrosses {
		logger.Info("[ma_trend] %s: choppy tape, skipping cross", symbol)
		return nil
	}

	if adxVal := adx(bars, 14); adxVal < s.adxMin {
		return nil
	}

	if !s.riskRewardOK(ctx, symbol, bar.Close, bars) {
		return nil
	}

	return &OrderIntent{Side: models.SideBuy, Reason: "ma_cross"}
}

// riskRewardOK — фильтр соотношения потенциала к риску: размах последнего
// окна против стопа. Символ с накопленным минусом торгуется строже: RR выше
// и ход обязан перекрывать часть прошлых потерь.
func (s *MATrend) riskRewardOK(ctx context.Context, symbol string, price float64, bars models.Bars) bool {
	if price <= 0 || s.stopLossPct <= 0 {
		return false
	}

	n := bars.Len()
	window := s.maLong
	if window > n {
		window = n
	}
	hi, lo := bars.High[n-window], bars.Low[n-window]
	for i := n - window; i < n; i++ {
		if bars.High[i] > hi {
			hi = bars.High[i]
		}
		if bars.Low[i] < lo {
			lo = bars.Low[i]
		}
	}
	rewardPct := (hi - lo) / price * 100
	rr := rewardPct / (s.stopLossPct * 100)

	var cumPct float64
	if s.hist != nil {
		cum, err := s.hist.CumulativePnLPct(ctx, symbol)
		if err != nil {
			logger.Warn("[ma_trend] cumulative pnl lookup failed for %s: %v", symbol, err)
		} else {
			cumPct = cum * 100
		}
	}

	if cumPct < 0 {
		minReward := math.Abs(cumPct) * recoveryCoverage
		if rr < s.rrRecovery || rewardPct < minReward {
			logger.Info("[ma_trend] %s: recovery mode, rr %.2f < %.1f or reward %.2f%% < %.2f%%",
				symbol, rr, s.rrRecovery, rewardPct, minReward)
			return false
		}
		return true
	}

	if rr < s.rrMin {
		logger.Info("[ma_trend] %s: rr %.2f below %.1f, skipping", symbol, rr, s.rrMin)
		return false
	}
	return true
}
