package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	adactor "github.com/berfenger/s2mockrm/internal/adapter/actor"
	"github.com/berfenger/s2mockrm/internal/adapter/profile"
	"github.com/berfenger/s2mockrm/internal/adapter/websocket"
	"github.com/berfenger/s2mockrm/internal/config"
	"github.com/berfenger/s2mockrm/internal/core/actor"
	"github.com/berfenger/s2mockrm/internal/core/capability"
	"github.com/berfenger/s2mockrm/internal/core/device"
	"github.com/berfenger/s2mockrm/internal/core/domain"
	"github.com/berfenger/s2mockrm/internal/core/sim"
	"github.com/berfenger/s2mockrm/internal/server"
	"github.com/berfenger/s2mockrm/internal/trace"
	"github.com/berfenger/s2mockrm/internal/util/actorutil"
	"github.com/berfenger/s2mockrm/pkg/sunspec_modbus"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const DIAL_HANDSHAKE_TIMEOUT = 10 * time.Second

func gracefulShutdown(apiServer *http.Server, rootContext *pactor.RootContext, master *pactor.PID, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	// say goodbye to the CEM before the actors go away
	_, err := rootContext.RequestFuture(master, domain.TerminateSessionRequest{
		Reason:    "resource manager shutting down",
		Reconnect: false,
	}, 3*time.Second).Result()
	if err != nil {
		log.Printf("Session terminate failed: %v", err)
	}

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {

	// load and print config
	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		os.Exit(1)
	}
	safePrintConfig(*cfg)

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())
	defer logger.Sync()

	devCfg, err := device.ConfigFrom(cfg, versioninfo.Short())
	if err != nil {
		logger.Fatal("invalid device config", zap.Error(err))
	}
	providers, err := actorProviders(cfg, devCfg, logger)
	if err != nil {
		logger.Fatal("could not set up actors", zap.Error(err))
	}

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterOfPuppetsActor(*cfg, devCfg, providers, logger)
	})
	pid, err := ctx.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	if err != nil {
		logger.Fatal("could not spawn master actor", zap.Error(err))
	}

	server := server.NewServer(*cfg, ctx, pid)
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(server, ctx, pid, done)

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Println("Graceful shutdown complete.")

	if err := ctx.StopFuture(pid).Wait(); err != nil {
		logger.Warn("master actor did not stop cleanly", zap.Error(err))
	}
	as.Shutdown()
}

func actorProviders(cfg *config.Config, devCfg device.Config, logger *zap.Logger) (actor.Providers, error) {

	prof, err := sim.LoadProfile(profile.FromConfig(cfg.Simulation.ProfileFile))
	if err != nil {
		return actor.Providers{}, fmt.Errorf("load profile: %w", err)
	}
	logger.Info("profile loaded", zap.Time("start", prof.Start()), zap.Time("end", prof.End()))

	reconnectDelay := time.Duration(cfg.ReconnectDelaySeconds) * time.Second

	providers := actor.Providers{
		// a restarted session starts over with a fresh device
		Session: func(es *eventstream.EventStream) *actor.SessionActor {
			clock := sim.SystemClock{}
			dev, err := device.New(devCfg, prof, clock.Now(), logger)
			if err != nil {
				panic(err)
			}
			return actor.NewSessionActor(cfg, dev, clock, es, logger)
		},
		Transport: func(session *pactor.PID) *adactor.TransportActor {
			return adactor.NewTransportActor(websocket.Dialer(cfg.CEMURL, DIAL_HANDSHAKE_TIMEOUT), cfg.CEMURL, session, reconnectDelay, logger)
		},
	}

	if cfg.MQTT.Enable {
		providers.MQTT = func(es *eventstream.EventStream) *adactor.MQTTActor {
			return adactor.NewMQTTActor(cfg, es, logger)
		}
	}

	if cfg.Modbus.Enable {
		modbusServer, err := sunspec_modbus.NewServer(cfg.Modbus.URL, sunspec_modbus.DeviceInfo{
			Manufacturer: devCfg.Manufacturer,
			Model:        devCfg.Model,
			Version:      devCfg.FirmwareVersion,
			Serial:       devCfg.SerialNumber,
			UnitId:       cfg.Modbus.UnitId,
		}, devCfg.ControlType == capability.ControlTypeFRBC)
		if err != nil {
			return actor.Providers{}, fmt.Errorf("modbus server: %w", err)
		}
		maxChargeWatt := uint32(devCfg.Battery.MaxPowerW)
		providers.Modbus = func(es *eventstream.EventStream) *adactor.ModbusActor {
			return adactor.NewModbusActor(modbusServer, maxChargeWatt, es, logger)
		}
	}

	if cfg.Trace.File != "" {
		providers.Trace = func(es *eventstream.EventStream) *adactor.TraceActor {
			recorder, err := trace.OpenFile(cfg.Trace.File)
			if err != nil {
				// let supervisor decide
				panic(err)
			}
			return adactor.NewTraceActor(recorder, es, logger)
		}
	}

	return providers, nil
}

func initConfig() (*config.Config, error) {

	// alias PORT => S2RM_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("S2RM_PORT", port)
	}
	// alias CONTROL_TYPE => S2RM_CONTROL_TYPE
	if ct := os.Getenv("CONTROL_TYPE"); ct != "" && os.Getenv("S2RM_CONTROL_TYPE") == "" {
		os.Setenv("S2RM_CONTROL_TYPE", ct)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("s2rm")
	viper.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg config.Config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	// parse log level
	switch viper.GetString("log_level") {
	case "trace":
		cfg.LogLevel = zap.DebugLevel
	case "debug":
		cfg.LogLevel = zap.DebugLevel
	case "info":
		cfg.LogLevel = zap.InfoLevel
	case "error":
		cfg.LogLevel = zap.ErrorLevel
	case "warn":
		cfg.LogLevel = zap.WarnLevel
	case "fatal":
		cfg.LogLevel = zap.FatalLevel
	default:
		cfg.LogLevel = zap.InfoLevel
	}

	if err := config.CheckCEMURL(cfg.CEMURL); err != nil {
		return nil, err
	}
	if _, err := capability.ParseControlType(cfg.ControlType); err != nil {
		return nil, err
	}

	// check and fix base topic
	baseTopic, err := config.CheckMQTTTopic(cfg.MQTT.BaseTopic)
	if err != nil {
		return nil, errors.New("invalid base topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.BaseTopic = baseTopic

	// check and fix homeassistant discovery topic
	hadBaseTopic, err := config.CheckMQTTTopic(cfg.MQTT.HADiscoveryTopic)
	if err != nil {
		return nil, errors.New("invalid homeassistant discovery topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.HADiscoveryTopic = hadBaseTopic

	// check bounds
	if cfg.MeasurementIntervalMillis < 100 {
		return nil, errors.New("config param measurement_interval_millis should be >= 100")
	}
	if cfg.Simulation.InitialFillLevel < 0 || cfg.Simulation.InitialFillLevel > 1 {
		return nil, errors.New("config param simulation.initial_fill_level must be within [0, 1]")
	}
	if cfg.Modbus.Enable && cfg.Modbus.URL == "" {
		return nil, errors.New("config param modbus.url is required when modbus is enabled")
	}

	return &cfg, nil
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("cem_url", "ws://localhost:8765/s2")
	viper.SetDefault("control_type", "FRBC")
	viper.SetDefault("reconnect_delay_seconds", 5)
	viper.SetDefault("device.resource_id", "")
	viper.SetDefault("device.name", "S2 mock RM")
	viper.SetDefault("device.manufacturer", "s2mockrm")
	viper.SetDefault("device.model", "mock")
	viper.SetDefault("device.serial_number", "0000-0001")
	viper.SetDefault("measurement_interval_millis", 1000)
	viper.SetDefault("forecast_interval_seconds", 3600)
	viper.SetDefault("instruction_processing_delay_millis", 100)
	viper.SetDefault("simulation.start", device.DefaultSimulationStart.Format(time.RFC3339))
	viper.SetDefault("simulation.initial_fill_level", 0.5)
	viper.SetDefault("simulation.battery_capacity_wh", 20000)
	viper.SetDefault("simulation.battery_max_power_watt", 5000)
	viper.SetDefault("simulation.battery_leakage_watt", 0.5)
	viper.SetDefault("simulation.dwell_seconds", 300)
	viper.SetDefault("simulation.peak_power_watt", 2000)
	viper.SetDefault("simulation.profile_file", "")
	viper.SetDefault("mqtt.enable", false)
	viper.SetDefault("mqtt.host", "localhost")
	viper.SetDefault("mqtt.port", 1883)
	viper.SetDefault("mqtt.username", "")
	viper.SetDefault("mqtt.password", "")
	viper.SetDefault("mqtt.ha_discovery_enable", false)
	viper.SetDefault("mqtt.base_topic", "s2mockrm")
	viper.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
	viper.SetDefault("modbus.enable", false)
	viper.SetDefault("modbus.url", "tcp://0.0.0.0:5502")
	viper.SetDefault("modbus.unit_id", 1)
	viper.SetDefault("trace.file", "")
	viper.SetDefault("port", 8080)
	viper.SetDefault("http_log", false)
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	slog.Info("Using", "config", cfg)
}
