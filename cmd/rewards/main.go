package main

import (
	"log"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"rez-rewards-core/internal/httpapi"
	"rez-rewards-core/pkg/config"
	"rez-rewards-core/pkg/db"
	"rez-rewards-core/pkg/health"
	"rez-rewards-core/pkg/logger"
	"rez-rewards-core/pkg/redis"
	"rez-rewards-core/pkg/sequence"
	"rez-rewards-core/pkg/server"
	"rez-rewards-core/pkg/task"
	"rez-rewards-core/services/audit"
	"rez-rewards-core/services/claim"
	"rez-rewards-core/services/order"
	"rez-rewards-core/services/review"
	"rez-rewards-core/services/wallet"
)

func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		db.Module,
		redis.Module,
		task.Client,
		task.Server,
		sequence.Module,
		fx.Provide(
			provideTracerProvider,
			provideMeterProvider,
			provideSnowflakeNode,
		),
		health.Module,
		httpapi.Module,
		order.Module,
		audit.Module,
		audit.TaskModule,
		claim.Module,
		wallet.Module,
		review.Module,
		server.ProvideGRPCServer,
		server.ProvideHTTPServer,
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})

func provideTracerProvider() trace.TracerProvider {
	return otel.GetTracerProvider()
}

func provideMeterProvider() metric.MeterProvider {
	return otel.GetMeterProvider()
}

func provideSnowflakeNode() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
