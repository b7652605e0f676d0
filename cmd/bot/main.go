package main

import (
	"context"
	"log"

	"go.uber.org/fx"

	"stock_bot/internal/broker/kis"
	"stock_bot/internal/engine"
	"stock_bot/internal/modules/bootstrap"
	"stock_bot/internal/modules/config"
	"stock_bot/internal/modules/health"
	"stock_bot/internal/modules/postgres"
	"stock_bot/internal/notify"
	"stock_bot/internal/strategy"
	"stock_bot/pkg/logger"
	"stock_bot/pkg/tracing"
)

func main() {
	if err := logger.Init("stock_bot"); err != nil {
		log.Fatal(err)
	}

	app := fx.New(
		fx.Provide(
			func() context.Context {
				return context.Background()
			},
		),
		config.Module(),
		postgres.Module(),
		kis.Module(),
		notify.Module(),
		strategy.Module(),
		engine.Module(),
		bootstrap.Module(),
		health.Module(),
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config) error {
			tracing.SetServiceName("stock_bot")
			_, closeTracer, err := tracing.InitTracer(tracing.Config{
				Host: cfg.Tracing.Host,
				Port: cfg.Tracing.Port,
			})
			if err != nil {
				return err
			}
			lc.Append(fx.Hook{OnStop: func(context.Context) error {
				closeTracer()
				return nil
			}})
			return nil
		}),
	)
	if err := app.Start(context.Background()); err != nil {
		log.Fatal(err)
	}
	<-app.Done()
	if err := app.Stop(context.Background()); err != nil {
		log.Fatal(err)
	}
}
