package actor

import (
	"fmt"

	"github.com/berfenger/s2mockrm/internal/core/domain"
	"github.com/berfenger/s2mockrm/internal/trace"
	"github.com/berfenger/s2mockrm/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

// TraceActor writes every S2 frame published on the event stream to a
// trace recorder.
type TraceActor struct {
	recorder       *trace.Recorder
	eventStream    *eventstream.EventStream
	eventStreamSub *eventstream.Subscription
	failures       int
	logger         *zap.Logger
}

func NewTraceActor(recorder *trace.Recorder, eventStream *eventstream.EventStream, logger *zap.Logger) *TraceActor {
	return &TraceActor{
		recorder:    recorder,
		eventStream: eventStream,
		logger:      actorutil.ActorLogger(domain.ACTOR_ID_TRACE, logger),
	}
}

func (state *TraceActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("trace@default started")
		system := ctx.ActorSystem()
		self := ctx.Self()
		state.eventStreamSub = state.eventStream.SubscribeWithPredicate(func(value any) {
			system.Root.Send(self, value)
		}, func(value any) bool {
			_, ok := value.(domain.FrameEvent)
			return ok
		})
	case *actor.Stopping:
		if state.eventStreamSub != nil {
			state.eventStream.Unsubscribe(state.eventStreamSub)
			state.eventStreamSub = nil
		}
		if err := state.recorder.Close(); err != nil {
			state.logger.Warn("trace@default close", zap.Error(err))
		}
	case domain.FrameEvent:
		if err := state.recorder.Record(msg.At, string(msg.Direction), msg.Data); err != nil {
			state.failures++
			state.logger.Warn("trace@default could not record frame", zap.Error(err))
		}
	case domain.FlushTraceRequest:
		err := state.recorder.Sync()
		actorutil.ForRequest(msg).Respond(ctx, domain.FlushTraceResponse{
			ActorResponseMixIn: domain.ErrorResponse(err),
			Frames:             int(state.recorder.Count()),
		})
	case domain.ActorHealthRequest:
		state.logger.Debug("trace@default ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_TRACE,
			Healthy: state.failures == 0,
			State:   fmt.Sprintf("recording (%d frames)", state.recorder.Count()),
		})
	}
}
