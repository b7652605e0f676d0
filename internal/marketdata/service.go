package marketdata

import (
	"context"
	"sync"
	"time"

	"stock_bot/internal/helper"
	"stock_bot/internal/models"
	"stock_bot/pkg/logger"
)

// держим котировку из REST-опроса не дольше одного цикла
const barsCacheTTL = 30 * time.Second

type Source interface {
	GetBars(ctx context.Context, symbol, timeframe string, lookback int) (models.Bars, error)
	GetLastPrice(ctx context.Context, symbol string) (float64, error)
	GetStockName(ctx context.Context, symbol string) (string, error)
}

// Event — тик для торгового цикла: символ и свежий бар.
type Event struct {
	Symbol string
	Bar    models.Bar
}

type priceAt struct {
	price float64
	at    time.Time
}

type cachedBars struct {
	bars models.Bars
	at   time.Time
}

// Service — прослойка между стратегиями и REST брокера: кеши цен, имён и
// баров плюс фоновый опрос вселенной по кругу. Websocket-тики заходят через
// PushTick и обгоняют опрос.
type Service struct {
	src          Source
	pollInterval time.Duration

	mu        sync.RWMutex
	universe  []string
	lastPrice map[string]priceAt
	names     map[string]string
	barsCache map[string]cachedBars

	out chan Event
}

func NewService(src Source, pollInterval time.Duration) *Service {
	return &Service{
		src:          src,
		pollInterval: pollInterval,
		lastPrice:    make(map[string]priceAt),
		names:        make(map[string]string),
		barsCache:    make(map[string]cachedBars),
		out:          make(chan Event, 256),
	}
}

func (s *Service) Events() <-chan Event { return s.out }

func (s *Service) SetUniverse(symbols []string) {
	s.mu.Lock()
	s.universe = append([]string(nil), symbols...)
	s.mu.Unlock()
}

// PushTick — реалтайм-цена из websocket-потока.
func (s *Service) PushTick(symbol, barTime string, price, volume float64) {
	s.mu.Lock()
	s.lastPrice[symbol] = priceAt{price: price, at: time.Now()}
	s.mu.Unlock()

	s.emit(Event{Symbol: symbol, Bar: models.Bar{
		Time:   barTime,
		Open:   price,
		High:   price,
		Low:    price,
		Close:  price,
		Volume: volume,
	}})
}

// Run — REST-опрос вселенной по одному символу за итерацию. Подстраховка
// для символов без websocket-подписки и на случай обрыва потока.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	idx := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		s.mu.RLock()
		n := len(s.universe)
		var symbol string
		if n > 0 {
			symbol = s.universe[idx%n]
		}
		s.mu.RUnlock()
		if symbol == "" {
			continue
		}
		idx++

		// свежий стрим уже кормит этот символ, REST не нужен
		if _, fresh := s.freshPrice(symbol, s.pollInterval); fresh {
			continue
		}

		price, err := s.src.GetLastPrice(ctx, symbol)
		if err != nil {
			logger.Warn("[marketdata] poll %s: %v", symbol, err)
			continue
		}
		if price <= 0 {
			continue
		}

		s.mu.Lock()
		s.lastPrice[symbol] = priceAt{price: price, at: time.Now()}
		s.mu.Unlock()

		s.emit(Event{Symbol: symbol, Bar: models.Bar{
			Time:  time.Now().Format("150405"),
			Open:  price,
			High:  price,
			Low:   price,
			Close: price,
		}})
	}
}

func (s *Service) emit(ev Event) {
	select {
	case s.out <- ev:
	default:
		logger.Warn("[marketdata] event queue full, dropping %s", ev.Symbol)
	}
}

func (s *Service) freshPrice(symbol string, maxAge time.Duration) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.lastPrice[symbol]
	if !ok || time.Since(p.at) > maxAge {
		return 0, false
	}
	return p.price, true
}

// GetBars — прокси к брокеру с коротким кешем: несколько фильтров одной
// стратегии на одном тике не должны дёргать REST по три раза.
func (s *Service) GetBars(ctx context.Context, symbol, timeframe string, lookback int) (models.Bars, error) {
	key := symbol + ":" + helper.NormTF(timeframe)

	s.mu.RLock()
	c, ok := s.barsCache[key]
	s.mu.RUnlock()
	if ok && time.Since(c.at) < barsCacheTTL && c.bars.Len() >= lookback {
		return c.bars.Tail(lookback), nil
	}

	bars, err := s.src.GetBars(ctx, symbol, timeframe, lookback)
	if err != nil {
		return models.Bars{}, err
	}

	s.mu.Lock()
	s.barsCache[key] = cachedBars{bars: bars, at: time.Now()}
	s.mu.Unlock()
	return bars, nil
}

func (s *Service) GetLastPrice(ctx context.Context, symbol string) (float64, error) {
	if price, ok := s.freshPrice(symbol, 10*time.Second); ok {
		return price, nil
	}
	price, err := s.src.GetLastPrice(ctx, symbol)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	s.lastPrice[symbol] = priceAt{price: price, at: time.Now()}
	s.mu.Unlock()
	return price, nil
}

// GetStockName — имена не меняются, кешируем навсегда.
func (s *Service) GetStockName(ctx context.Context, symbol string) (string, error) {
	s.mu.RLock()
	name, ok := s.names[symbol]
	s.mu.RUnlock()
	if ok {
		return name, nil
	}

	name, err := s.src.GetStockName(ctx, symbol)
	if err != nil {
		return symbol, err
	}
	s.mu.Lock()
	s.names[symbol] = name
	s.mu.Unlock()
	return name, nil
}
