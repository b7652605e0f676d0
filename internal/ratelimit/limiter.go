package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter — пейсинг исходящих вызовов брокера. burst=1: строгий минимальный
// интервал между запросами, все вызовы процесса сериализуются через Wait.
// Создаётся один раз в composition root и передаётся явно (никаких синглтонов).
type Limiter struct {
	name    string
	limiter *rate.Limiter
}

// New — perSecond запросов в секунду (у KIS жёсткий лимит, обычно 2-5 TPS).
func New(name string, perSecond float64) *Limiter {
	if perSecond <= 0 {
		perSecond = 2.0
	}
	return &Limiter{
		name:    name,
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
	}
}

// Wait блокирует до следующего слота либо до отмены контекста.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// Allow — неблокирующая проверка (для health-проб).
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}

func (l *Limiter) Name() string { return l.name }
