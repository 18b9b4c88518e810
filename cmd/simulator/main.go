package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ANIKETSHETTY47/household-energy-simulator/internal/config"
	"github.com/ANIKETSHETTY47/household-energy-simulator/internal/mqtt"
	"github.com/ANIKETSHETTY47/household-energy-simulator/internal/simulation"
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

	client, err := mqtt.NewRealClient(config.MQTTBroker(), config.MQTTClientID())
	if err != nil {
		log.Fatal().Err(err).Msg("mqtt connect")
	}
	defer client.Close()

	household := config.HouseholdID()
	bridge := mqtt.NewBridge(client, household, log.Logger)
	engine := simulation.New(config.SimulationConfig(),
		simulation.WithLogger(log.With().Str("component", "simulation").Logger()),
		simulation.WithDevices(devices),
		simulation.WithObserver(bridge),
	)
	if err := bridge.Listen(engine); err != nil {
		log.Fatal().Err(err).Msg("subscribe failed")
	}
	go bridge.Run(ctx)

	if err := engine.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("simulation start failed")
	}
	log.Info().Str("household", household).Msg("simulator running; Ctrl+C to stop")

	<-ctx.Done()
	engine.Stop()
}
