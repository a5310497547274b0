// bbh-server - multiplayer relay server for the legacy browser game client.
//
// The server authenticates players against a line-file account store, keeps
// them in a permanent lobby and ephemeral game rooms, and relays gameplay
// traffic between room members over a NUL-terminated TCP protocol. A REST
// API, SQLite-backed stats, MQTT telemetry, and an interactive CLI ride
// alongside the relay.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/schoolerbbh/bbh-server/internal/account"
	"github.com/schoolerbbh/bbh-server/internal/api"
	"github.com/schoolerbbh/bbh-server/internal/cli"
	"github.com/schoolerbbh/bbh-server/internal/config"
	"github.com/schoolerbbh/bbh-server/internal/db"
	"github.com/schoolerbbh/bbh-server/internal/events"
	"github.com/schoolerbbh/bbh-server/internal/game"
	"github.com/schoolerbbh/bbh-server/internal/network"
	"github.com/schoolerbbh/bbh-server/internal/telemetry"
	"github.com/schoolerbbh/bbh-server/internal/util"
)

const (
	AppName    = "bbh-server"
	AppVersion = api.Version
	Banner     = `
  _     _     _
 | |__ | |__ | |__        ___  ___ _ ____   _____ _ __
 | '_ \| '_ \| '_ \  ___ / __|/ _ \ '__\ \ / / _ \ '__|
 | |_) | |_) | | | ||___|\__ \  __/ |   \ V /  __/ |
 |_.__/|_.__/|_| |_|     |___/\___|_|    \_/ \___|_|  v%s
 Multiplayer Relay Server
`
)

func main() {
	fmt.Printf(Banner, AppVersion)
	fmt.Println()

	// Initialize logger with defaults first (reconfigured after config load)
	if err := util.InitLogger(util.DefaultLogConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.Info().
		Str("version", AppVersion).
		Str("platform", runtime.GOOS).
		Str("arch", runtime.GOARCH).
		Int("cpus", runtime.NumCPU()).
		Msg("starting bbh-server")

	cfg, err := config.Load(config.DefaultConfigDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Re-initialize logger with config-based settings
	appData := cfg.GetApplicationData()
	logCfg := util.LogConfig{
		Level:      appData.Logging.Level,
		Directory:  appData.Logging.Directory,
		MaxBackups: appData.Logging.MaxBackups,
		Console:    true,
	}
	if err := util.InitLogger(logCfg); err != nil {
		log.Warn().Err(err).Msg("failed to reconfigure logger, using defaults")
	}

	sysInfo := util.GetSystemInfo()
	log.Info().
		Str("hostname", sysInfo.Hostname).
		Str("os", sysInfo.OS).
		Str("cpu", sysInfo.CPUModel).
		Int("cores", sysInfo.CPUCores).
		Uint64("memory_mb", sysInfo.TotalMemory).
		Msg("system information")

	gameData := cfg.GetGameData()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Core components
	eventBus := events.NewEventBus()

	accounts, err := account.NewStore(gameData.AccountsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load account store")
	}

	database, err := db.NewDatabase(gameData.StatsDBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open stats database")
	}
	defer database.Close()

	statsStore, err := db.NewStatsStore(database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize stats store")
	}
	statsStore.Register(eventBus)

	registry := game.NewRegistry(gameData.MaxSlots, time.Duration(gameData.RoundLengthSec)*time.Second, eventBus)
	dispatcher := game.NewDispatcher(registry, accounts, gameData.Port)

	tcpListener := network.NewTCPListener(cfg, dispatcher)
	apiServer := api.NewServer(cfg, registry, statsStore)

	var mqttHandler *telemetry.MQTTHandler
	if appData.MQTT.Enabled {
		mqttHandler, err = telemetry.NewMQTTHandler(cfg, eventBus)
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize MQTT, telemetry disabled")
		}
	}

	cliHandler := cli.NewCLI(cfg, eventBus, registry, accounts, statsStore)

	// CLI 'quit' and other components request shutdown through the bus.
	shutdownCh := make(chan struct{}, 1)
	eventBus.Subscribe(events.EventShutdown, "main", func(ctx context.Context, event events.Event) error {
		if event.Source != "main" {
			select {
			case shutdownCh <- struct{}{}:
			default:
			}
		}
		return nil
	})

	var wg sync.WaitGroup
	errCh := make(chan error, 4)

	// Task 1: game TCP listener (fatal on failure)
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().Int("port", gameData.Port).Msg("starting game listener")
		if err := tcpListener.Start(ctx); err != nil {
			log.Error().Err(err).Msg("game listener failed")
			errCh <- fmt.Errorf("game listener: %w", err)
		}
	}()

	// Task 2: REST API server (non-fatal)
	if appData.API.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info().Int("port", appData.API.Port).Msg("starting REST API server")
			if err := apiServer.Start(ctx); err != nil {
				log.Warn().Err(err).Msg("API server failed (non-fatal)")
			}
		}()
	}

	// Task 3: MQTT telemetry (non-fatal)
	if mqttHandler != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info().Msg("starting MQTT telemetry")
			if err := mqttHandler.Start(ctx); err != nil {
				log.Warn().Err(err).Msg("MQTT telemetry failed")
			}
		}()
	}

	// Task 4: interactive CLI
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().Msg("starting interactive CLI")
		cliHandler.Start(ctx)
	}()

	// ---------------------------------------------------------------
	// Graceful shutdown handling
	// ---------------------------------------------------------------
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case err := <-errCh:
		log.Error().Err(err).Msg("critical error, initiating shutdown")
	case <-shutdownCh:
		log.Info().Msg("shutdown requested")
	}

	log.Info().Msg("initiating graceful shutdown...")

	cancel()

	eventBus.Emit(context.Background(), events.Event{
		Type:   events.EventShutdown,
		Source: "main",
	})

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("all tasks stopped gracefully")
	case <-time.After(30 * time.Second):
		log.Warn().Msg("shutdown timed out after 30 seconds, forcing exit")
	}

	eventBus.Stop()

	if mqttHandler != nil {
		mqttHandler.PublishShutdown()
	}

	log.Info().Msg("bbh-server stopped")
}
