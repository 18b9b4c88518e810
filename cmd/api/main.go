package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ANIKETSHETTY47/household-energy-simulator/internal/cache"
	"github.com/ANIKETSHETTY47/household-energy-simulator/internal/cloud"
	"github.com/ANIKETSHETTY47/household-energy-simulator/internal/config"
	"github.com/ANIKETSHETTY47/household-energy-simulator/internal/database"
	httpHandlers "github.com/ANIKETSHETTY47/household-energy-simulator/internal/http"
	"github.com/ANIKETSHETTY47/household-energy-simulator/internal/mqtt"
	"github.com/ANIKETSHETTY47/household-energy-simulator/internal/repository"
	"github.com/ANIKETSHETTY47/household-energy-simulator/internal/service"
	"github.com/ANIKETSHETTY47/household-energy-simulator/internal/simulation"
	"github.com/ANIKETSHETTY47/household-energy-simulator/internal/stream"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if err := config.Load(); err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	zerolog.SetGlobalLevel(config.LogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	devices, err := config.Devices()
	if err != nil {
		log.Fatal().Err(err).Msg("devices load failed")
	}
	household := config.HouseholdID()

	engine := simulation.New(config.SimulationConfig(),
		simulation.WithLogger(log.With().Str("component", "simulation").Logger()),
		simulation.WithDevices(devices),
	)

	deps := service.Deps{Household: household, Source: engine, Log: log.Logger}
	routes := httpHandlers.Deps{Engine: engine, Household: household}
	if config.UseCloudServices() {
		wireCloud(ctx, &deps, &routes)
	}
	svcs := service.New(deps)
	engine.AddObserver(svcs.Analytics)
	engine.AddObserver(svcs.Alerts)
	engine.AddObserver(svcs.Statements)
	go svcs.Alerts.Run(ctx)
	go svcs.Statements.Run(ctx)

	if client, err := mqtt.NewRealClient(config.MQTTBroker(), config.MQTTClientID()); err != nil {
		log.Warn().Err(err).Msg("mqtt unavailable, bridge disabled")
	} else {
		defer client.Close()
		bridge := mqtt.NewBridge(client, household, log.Logger)
		if err := bridge.Listen(engine); err != nil {
			log.Warn().Err(err).Msg("command subscription failed")
		}
		engine.AddObserver(bridge)
		go bridge.Run(ctx)
	}

	if config.HistoryEnabled() {
		db, err := database.Connect()
		if err != nil {
			log.Fatal().Err(err).Msg("db connect failed")
		}
		defer db.Close()
		routes.History = repository.New(db)
	}
	if rdb, err := cache.Connect(ctx, config.RedisAddr()); err != nil {
		log.Warn().Err(err).Msg("redis unavailable, live routes disabled")
	} else {
		defer rdb.Close()
		routes.Live = cache.New(rdb, cache.DefaultReadingTTL)
	}

	if err := engine.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("simulation start failed")
	}
	defer engine.Stop()

	live := stream.New(engine, config.RefreshInterval(), config.AutoRefresh(), log.Logger)
	dashboard := &http.Server{Addr: config.DashboardAddr(), Handler: live}
	go live.Run(ctx)
	go func() {
		log.Info().Str("addr", dashboard.Addr).Msg("dashboard stream listening")
		if err := dashboard.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("dashboard server exit")
		}
	}()

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	routes.Services = svcs
	httpHandlers.Register(app, routes)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = dashboard.Shutdown(shutdownCtx)
		_ = app.ShutdownWithContext(shutdownCtx)
	}()

	addr := config.APIAddr()
	log.Info().Str("addr", addr).Str("household", household).Msg("api listening")
	if err := app.Listen(addr); err != nil {
		log.Error().Err(err).Msg("server exit")
	}
}

// wireCloud attaches the AWS collaborators that can be created. Failures
// leave the matching feature disabled.
func wireCloud(ctx context.Context, deps *service.Deps, routes *httpHandlers.Deps) {
	region := config.AWSRegion()

	if arn := config.SNSTopicArn(); arn != "" {
		if sns, err := cloud.NewSNSClient(ctx, region, arn); err != nil {
			log.Warn().Err(err).Msg("sns disabled")
		} else {
			deps.Notifier = sns
		}
	}
	if dynamo, err := cloud.NewDynamoDBClient(ctx, region); err != nil {
		log.Warn().Err(err).Msg("dynamodb alerts disabled")
	} else {
		deps.Alerts = dynamo
		routes.Alerts, routes.Archive = dynamo, dynamo
	}
	if bucket := config.S3Bucket(); bucket != "" {
		if s3, err := cloud.NewS3Client(ctx, region, bucket); err != nil {
			log.Warn().Err(err).Msg("statement archive disabled")
		} else {
			deps.Statements = s3
			routes.Statements = s3
		}
	}
}
