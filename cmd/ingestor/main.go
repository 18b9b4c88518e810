package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ANIKETSHETTY47/household-energy-simulator/internal/cache"
	"github.com/ANIKETSHETTY47/household-energy-simulator/internal/cloud"
	"github.com/ANIKETSHETTY47/household-energy-simulator/internal/config"
	"github.com/ANIKETSHETTY47/household-energy-simulator/internal/database"
	"github.com/ANIKETSHETTY47/household-energy-simulator/internal/mqtt"
	"github.com/ANIKETSHETTY47/household-energy-simulator/internal/repository"
	"github.com/ANIKETSHETTY47/household-energy-simulator/internal/service"
)

const archiveFlushInterval = 30 * time.Second

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if err := config.Load(); err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	zerolog.SetGlobalLevel(config.LogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect()
	if err != nil {
		log.Fatal().Err(err).Msg("db connect failed")
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("db migrate failed")
	}

	var live service.LiveCache
	if rdb, err := cache.Connect(ctx, config.RedisAddr()); err != nil {
		log.Warn().Err(err).Msg("redis unavailable, live cache disabled")
	} else {
		defer rdb.Close()
		live = cache.New(rdb, cache.DefaultReadingTTL)
	}

	var archive service.ReadingArchive
	if config.UseCloudServices() {
		if dynamo, err := cloud.NewDynamoDBClient(ctx, config.AWSRegion()); err != nil {
			log.Warn().Err(err).Msg("dynamodb disabled")
		} else {
			archive = dynamo
		}
	}

	ingest := service.NewIngestService(repository.New(db), live, archive, log.Logger)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ingest.Run(ctx, archiveFlushInterval)
	}()

	client, err := mqtt.NewRealClient(config.MQTTBroker(), config.MQTTClientID()+"-ingestor")
	if err != nil {
		log.Fatal().Err(err).Msg("mqtt connect")
	}
	defer client.Close()

	handler := func(topic string, payload []byte) {
		if err := ingest.Handle(ctx, topic, payload); err != nil {
			log.Error().Err(err).Str("topic", topic).Msg("ingest failed")
		}
	}
	if err := client.Subscribe(mqtt.TelemetryWildcard, 1, handler); err != nil {
		log.Fatal().Err(err).Msg("subscribe failed")
	}

	log.Info().Str("topic", mqtt.TelemetryWildcard).Msg("ingestor running; Ctrl+C to stop")
	<-ctx.Done()
	<-done
}
