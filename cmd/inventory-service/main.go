// cmd/inventory-service/main.go
package main

import (
	"context"
	"os"

	"marketbot/internal/pkg/bootstrap"
	"marketbot/internal/pkg/logger"
	"marketbot/internal/pkg/mq"
	"marketbot/internal/service/inventory"
	"marketbot/internal/service/inventory/interfaces"
)

const serviceName = "inventory-service"

func main() {
	cfg, err := bootstrap.LoadConfig(os.Getenv("INVENTORY_CONFIG"))
	logger.Init(serviceName, cfg.App.LogLevel)
	if err != nil {
		logger.Ctx(context.Background()).Fatal().Err(err).Msg("failed to load config")
	}
	ctx := context.Background()

	components, err := inventory.Build(ctx, cfg, true)
	if err != nil {
		logger.Ctx(ctx).Fatal().Err(err).Msg("failed to assemble inventory engine")
	}

	info := bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        cfg.App.Port,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			interfaces.NewInventoryHandler(components.Service).RegisterRoutes(appCtx.Mux)
		},
		Closers: components.Closers(),
	}

	if cfg.Infra.Kafka.Enabled {
		kafkaCfg := cfg.Infra.Kafka
		dltTopic := mq.DeadLetterTopic(kafkaCfg.PaymentTopic)
		dltWriter := mq.NewKafkaWriter(kafkaCfg.Brokers, dltTopic)
		info.Closers = append(info.Closers, func(context.Context) error { return dltWriter.Close() })

		payments := interfaces.NewPaymentConsumerAdapter(
			mq.NewKafkaReader(kafkaCfg.Brokers, kafkaCfg.PaymentTopic, kafkaCfg.GroupID),
			kafkaCfg.PaymentTopic,
			components.Service,
			mq.NewFailureHandler(dltWriter),
		)
		dlt := interfaces.NewDltConsumerAdapter(
			mq.NewKafkaReader(kafkaCfg.Brokers, dltTopic, kafkaCfg.GroupID+"-dlt"),
			dltTopic,
		)
		info.Workers = append(info.Workers, payments.Run, dlt.Run)
	}

	if err := bootstrap.StartService(info); err != nil {
		os.Exit(1)
	}
}
