package actor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/berfenger/s2mockrm/internal/core/domain"
	"github.com/berfenger/s2mockrm/internal/core/port"
	"github.com/berfenger/s2mockrm/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

const (
	DEFAULT_RECONNECT_DELAY = 5 * time.Second
	TRANSPORT_DIAL_TIMEOUT  = 15 * time.Second
	TRANSPORT_SEND_TIMEOUT  = 5 * time.Second
)

// TransportActor keeps one connection to the CEM open and moves frames
// between it and the session actor. A failed dial panics so the supervisor
// can restart the actor with backoff.
type TransportActor struct {
	behavior       actor.Behavior
	stash          *actorutil.Stash
	dial           port.TransportDialer
	remoteURL      string
	session        *actor.PID
	reconnectDelay time.Duration
	scheduler      *scheduler.TimerScheduler
	conn           port.MessageTransport
	// bumped on every connection so a stale reader is ignored
	generation int
	state      string
	logger     *zap.Logger
}

type dialResult struct {
	conn port.MessageTransport
	err  error
}

type readerStopped struct {
	generation int
	err        error
}

type redialTick struct{}

func NewTransportActor(dial port.TransportDialer, remoteURL string, session *actor.PID, reconnectDelay time.Duration, logger *zap.Logger) *TransportActor {
	if reconnectDelay <= 0 {
		reconnectDelay = DEFAULT_RECONNECT_DELAY
	}
	act := &TransportActor{
		behavior:       actor.NewBehavior(),
		stash:          &actorutil.Stash{},
		dial:           dial,
		remoteURL:      remoteURL,
		session:        session,
		reconnectDelay: reconnectDelay,
		logger:         actorutil.ActorLogger(domain.ACTOR_ID_TRANSPORT, logger),
	}
	act.become("starting", act.StartingReceive)
	return act
}

func (state *TransportActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *TransportActor) become(name string, receive actor.ReceiveFunc) {
	state.state = name
	state.behavior.Become(receive)
}

func (state *TransportActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("transport@starting started")
		state.scheduler = scheduler.NewTimerScheduler(ctx)
		state.startDial(ctx)
	case *actor.Restarting:
		state.closeConn()
	default:
		state.logger.Debug("transport@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *TransportActor) DialingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.respondHealth(ctx, true)
	case dialResult:
		if msg.err != nil {
			state.logger.Warn("transport@dialing dial failed", zap.String("url", state.remoteURL), zap.Error(msg.err))
			panic(msg.err)
		}
		state.logger.Info("transport@dialing connected", zap.String("url", state.remoteURL))
		state.conn = msg.conn
		state.generation++
		state.startReader(ctx, msg.conn, state.generation)
		state.become("connected", state.ConnectedReceive)
		ctx.Request(state.session, domain.TransportConnected{RemoteURL: state.remoteURL})
		state.stash.UnstashAll(ctx)
	case domain.SendFrameRequest:
		state.logger.Debug("transport@dialing drop frame, not connected")
		actorutil.ForRequest(msg).Respond(ctx, domain.SendFrameResponse{ActorResponseMixIn: domain.ErrorResponse(port.ErrTransportClosed)})
	case *actor.Restarting, *actor.Stopping:
		state.closeConn()
	default:
		state.logger.Debug("transport@dialing stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *TransportActor) ConnectedReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.respondHealth(ctx, true)
	case domain.SendFrameRequest:
		sendCtx, cancel := context.WithTimeout(context.Background(), TRANSPORT_SEND_TIMEOUT)
		err := state.conn.Send(sendCtx, msg.Data)
		cancel()
		if err != nil {
			state.logger.Warn("transport@connected send failed", zap.Error(err))
			state.lost(ctx, err)
		}
		actorutil.ForRequest(msg).Respond(ctx, domain.SendFrameResponse{ActorResponseMixIn: domain.ErrorResponse(err)})
	case domain.CloseTransportRequest:
		state.logger.Info("transport@connected close", zap.Bool("reconnect", msg.Reconnect))
		state.closeConn()
		if msg.Reconnect {
			state.waitAndRedial(ctx)
		} else {
			state.become("closed", state.ClosedReceive)
		}
	case readerStopped:
		if msg.generation != state.generation {
			return
		}
		if errors.Is(msg.err, port.ErrTransportClosed) {
			state.logger.Info("transport@connected closed by peer")
		} else {
			state.logger.Warn("transport@connected read failed", zap.Error(msg.err))
		}
		state.lost(ctx, msg.err)
	case *actor.Restarting, *actor.Stopping:
		state.closeConn()
	default:
		state.logger.Debug("transport@connected recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *TransportActor) WaitingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.respondHealth(ctx, true)
	case redialTick:
		state.startDial(ctx)
	case domain.SendFrameRequest:
		actorutil.ForRequest(msg).Respond(ctx, domain.SendFrameResponse{ActorResponseMixIn: domain.ErrorResponse(port.ErrTransportClosed)})
	default:
		state.logger.Debug("transport@waiting recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// ClosedReceive is terminal: the session was ended for good.
func (state *TransportActor) ClosedReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.respondHealth(ctx, true)
	case domain.SendFrameRequest:
		actorutil.ForRequest(msg).Respond(ctx, domain.SendFrameResponse{ActorResponseMixIn: domain.ErrorResponse(port.ErrTransportClosed)})
	default:
		state.logger.Debug("transport@closed recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *TransportActor) respondHealth(ctx actor.Context, healthy bool) {
	state.logger.Debug("transport@" + state.state + " ActorHealthRequest")
	ctx.Respond(domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_TRANSPORT,
		Healthy: healthy,
		State:   state.state,
	})
}

func (state *TransportActor) startDial(ctx actor.Context) {
	dial := state.dial
	actorutil.NewBackgroundTask(ctx, func(dialCtx context.Context) (dialResult, error) {
		conn, err := dial(dialCtx)
		if err != nil {
			return dialResult{}, err
		}
		return dialResult{conn: conn}, nil
	}).WithTimeout(TRANSPORT_DIAL_TIMEOUT).Recover(func(err error) dialResult {
		return dialResult{err: err}
	}).PipeToSelf().Start()
	state.become("dialing", state.DialingReceive)
}

// startReader pumps inbound frames to the session as this actor, so the
// session can always tell which transport a frame came from.
func (state *TransportActor) startReader(ctx actor.Context, conn port.MessageTransport, generation int) {
	system := ctx.ActorSystem()
	self := ctx.Self()
	session := state.session
	go func() {
		for {
			data, err := conn.Receive(context.Background())
			if err != nil {
				system.Root.Send(self, readerStopped{generation: generation, err: err})
				return
			}
			system.Root.RequestWithCustomSender(session, domain.InboundFrame{
				Data:       data,
				ReceivedAt: time.Now().UTC(),
			}, self)
		}
	}()
}

// lost handles a connection that broke underneath the session.
func (state *TransportActor) lost(ctx actor.Context, err error) {
	state.closeConn()
	if errors.Is(err, port.ErrTransportClosed) {
		err = nil
	}
	ctx.Send(state.session, domain.TransportClosed{Error: err})
	state.waitAndRedial(ctx)
}

func (state *TransportActor) waitAndRedial(ctx actor.Context) {
	state.logger.Info("transport: reconnecting", zap.Duration("delay", state.reconnectDelay))
	state.scheduler.SendOnce(state.reconnectDelay, ctx.Self(), redialTick{})
	state.become("waiting", state.WaitingReceive)
}

func (state *TransportActor) closeConn() {
	if state.conn == nil {
		return
	}
	state.generation++
	if err := state.conn.Close(); err != nil {
		state.logger.Debug("transport: close", zap.Error(err))
	}
	state.conn = nil
}
