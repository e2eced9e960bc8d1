package actorutil

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/berfenger/s2mockrm/internal/core/domain"
	"github.com/berfenger/s2mockrm/internal/core/events"
	"github.com/berfenger/s2mockrm/internal/mqtt"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/lmittmann/tint"
	"go.uber.org/zap"
)

func PipeToSelfWithRecover(ctx actor.Context, future *actor.Future, mapFn func(error) any) {
	ctx.ReenterAfter(future, func(msg any, err error) {
		if err != nil {
			ctx.Send(ctx.Self(), mapFn(err))
			return
		}
		ctx.Send(ctx.Self(), msg)
	})
}

func NewActorSystemWithZapLogger(logger *zap.Logger) *actor.ActorSystem {
	stdOutLogger := zap.NewStdLog(logger)

	var slogLevel slog.Level = slog.LevelInfo

	switch logger.Level() {
	case zap.DebugLevel:
		slogLevel = slog.LevelDebug
	case zap.InfoLevel:
		slogLevel = slog.LevelInfo
	case zap.WarnLevel:
		slogLevel = slog.LevelWarn
	case zap.ErrorLevel:
		slogLevel = slog.LevelError
	case zap.PanicLevel:
		slogLevel = slog.LevelError
	}

	return actor.NewActorSystem(actor.WithLoggerFactory(func(system *actor.ActorSystem) *slog.Logger {

		// create a new logger
		return slog.New(tint.NewHandler(stdOutLogger.Writer(), &tint.Options{
			Level:      slogLevel,
			TimeFormat: time.DateTime,
		}))
	}))
}

func ActorLogger(actorName string, logger *zap.Logger) *zap.Logger {
	return logger.With(zap.String("actor", actorName))
}

// ParsedMQTTCommandToCommand maps a command received over MQTT to a session
// command. Unknown targets yield nil.
func ParsedMQTTCommandToCommand(cmd mqtt.ParsedMQTTCommand) (domain.SessionCommandRequest, error) {
	payload := strings.ToLower(strings.TrimSpace(cmd.Payload))
	switch {
	case cmd.Command == mqtt.MQTT_COMMAND_SWITCH && cmd.DeviceId == events.SWITCH_ID_SESSION:
		switch payload {
		case mqtt.MQTT_PAYLOAD_OFF:
			return domain.TerminateSessionRequest{
				Reason:    "terminated over MQTT",
				Reconnect: true,
			}, nil
		case mqtt.MQTT_PAYLOAD_ON:
			// the transport reconnects on its own
			return nil, nil
		}
		return nil, fmt.Errorf("invalid session switch payload %q", cmd.Payload)
	case cmd.Command == mqtt.MQTT_COMMAND_BUTTON && cmd.DeviceId == events.BUTTON_ID_FORECAST:
		if payload != strings.ToLower(mqtt.MQTT_PAYLOAD_PRESS) {
			return nil, fmt.Errorf("invalid button payload %q", cmd.Payload)
		}
		return domain.PublishForecastRequest{}, nil
	}
	return nil, nil
}
