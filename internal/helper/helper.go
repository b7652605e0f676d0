package helper

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// TradingDate — календарный ключ для дневных кешей и кулдаунов.
func TradingDate(t time.Time) string {
	return t.Format("2006-01-02")
}

// NormSymbol — KRX-код всегда 6 цифр с ведущими нулями.
func NormSymbol(raw string) string {
	s := strings.TrimSpace(raw)
	if len(s) >= 6 {
		return s
	}
	if _, err := strconv.Atoi(s); err != nil {
		return s
	}
	return fmt.Sprintf("%06s", s)
}

// KRXTickSize — шаг цены по ценовым диапазонам KOSPI/KOSDAQ.
func KRXTickSize(price float64) float64 {
	switch {
	case price < 2000:
		return 1
	case price < 5000:
		return 5
	case price < 20000:
		return 10
	case price < 50000:
		return 50
	case price < 200000:
		return 100
	case price < 500000:
		return 500
	default:
		return 1000
	}
}

func RoundDownToTick(px, tick float64) float64 {
	if tick <= 0 {
		return px
	}
	steps := math.Floor(px/tick + 1e-12)
	return steps * tick
}

func RoundUpToTick(px, tick float64) float64 {
	if tick <= 0 {
		return px
	}
	steps := math.Ceil(px/tick - 1e-12)
	return steps * tick
}

// BarTimeBefore — сравнение "HHMMSS"-строк; кривые значения не блокируют бар.
func BarTimeBefore(barTime, threshold string) bool {
	if len(barTime) != 6 || len(threshold) != 6 {
		return false
	}
	return barTime < threshold
}

// NormTF — нормализация таймфреймов из конфига.
func NormTF(raw string) string {
	s := strings.TrimSpace(strings.ToLower(raw))
	switch s {
	case "d", "1d", "day":
		return "1d"
	case "1", "1m", "":
		return "1m"
	case "3", "3m":
		return "3m"
	case "5", "5m":
		return "5m"
	default:
		return s
	}
}
