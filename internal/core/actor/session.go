package actor

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/berfenger/s2mockrm/internal/config"
	"github.com/berfenger/s2mockrm/internal/core/device"
	"github.com/berfenger/s2mockrm/internal/core/domain"
	"github.com/berfenger/s2mockrm/internal/core/port"
	"github.com/berfenger/s2mockrm/internal/core/service"
	. "github.com/berfenger/s2mockrm/internal/util/actorutil"
	"github.com/berfenger/s2mockrm/pkg/s2"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

const (
	SESSION_STATE_DISCONNECTED        = "disconnected"
	SESSION_STATE_HANDSHAKING         = "handshaking"
	SESSION_STATE_CAPABILITY_EXCHANGE = "capability_exchange"
	SESSION_STATE_OPERATIONAL         = "operational"
	SESSION_STATE_TERMINATING         = "terminating"

	DEFAULT_MEASUREMENT_INTERVAL = 1 * time.Second
)

// SessionActor owns the S2 session with the CEM and the simulated device
// behind it. Every frame, report tick and instruction wake-up goes through
// its mailbox.
type SessionActor struct {
	ActorWithStates
	config      *config.Config
	device      *device.Adapter
	clock       port.Clock
	eventStream *eventstream.EventStream
	scheduler   *scheduler.TimerScheduler
	transport   *actor.PID
	session     *session
	cancelTick  scheduler.CancelFunc
	cancelWake  scheduler.CancelFunc

	logger *zap.Logger
}

type session struct {
	id              s2.ID
	connectedAt     time.Time
	lastSeen        time.Time
	selectedVersion string
	// capability description the CEM still has to acknowledge
	awaitingAck s2.ID
	reconnect   bool
}

type reportTick struct{}

type instructionWake struct{}

func NewSessionActor(config *config.Config, dev *device.Adapter, clock port.Clock, eventStream *eventstream.EventStream, logger *zap.Logger) *SessionActor {
	act := &SessionActor{
		config:      config,
		device:      dev,
		clock:       clock,
		eventStream: eventStream,
		logger:      ActorLogger(domain.ACTOR_ID_SESSION, logger),
		ActorWithStates: ActorWithStates{
			Behavior: actor.NewBehavior(),
		},
	}
	act.Become(SDisconnectedState{
		actor: act,
	})
	return act
}

func (state *SessionActor) Receive(context actor.Context) {
	state.Behavior.Receive(context)
}

// Disconnected state

type SDisconnectedState struct {
	ActorState
	actor *SessionActor
}

func (state SDisconnectedState) Name() string {
	return SESSION_STATE_DISCONNECTED
}

func (state SDisconnectedState) Receive(ctx actor.Context) {
	if state.actor.receiveCommon(ctx, state) {
		return
	}
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.actor.logger.Debug("session@disconnected started")
		state.actor.scheduler = scheduler.NewTimerScheduler(ctx)
		// a restarted actor starts clean, whatever the device was doing
		state.actor.device.Reset(state.actor.clock.Now())
		state.actor.publishState(SESSION_STATE_DISCONNECTED, "")
	case domain.TransportConnected:
		state.actor.logger.Info("session@disconnected transport connected", zap.String("url", msg.RemoteURL))
		now := state.actor.clock.Now()
		state.actor.transport = ctx.Sender()
		state.actor.session = &session{
			id:          s2.NewID(),
			connectedAt: now,
			lastSeen:    now,
		}
		state.actor.transition(SHandshakingState{
			actor: state.actor,
		})
		state.actor.send(ctx, &s2.Handshake{
			Header:                    s2.NewHeader(),
			Role:                      s2.RoleRM,
			SupportedProtocolVersions: []string{s2.ProtocolVersion},
		})
	case domain.InboundFrame:
		// frames from a connection this actor does not know about, e.g.
		// after a restart: have the transport start over
		state.actor.logger.Warn("session@disconnected frame without session")
		if ctx.Sender() != nil {
			ctx.Send(ctx.Sender(), domain.CloseTransportRequest{Reconnect: true})
		}
	case domain.TerminateSessionRequest:
		ForRequest(msg).Respond(ctx, domain.TerminateSessionResponse{Terminated: false})
	case domain.PublishForecastRequest:
		ForRequest(msg).Respond(ctx, domain.PublishForecastResponse{Sent: false})
	case reportTick, instructionWake:
	default:
		state.actor.logger.Debug("session@disconnected recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// Handshaking state

type SHandshakingState struct {
	ActorState
	actor *SessionActor
}

func (state SHandshakingState) Name() string {
	return SESSION_STATE_HANDSHAKING
}

func (state SHandshakingState) Receive(ctx actor.Context) {
	if state.actor.receiveCommon(ctx, state) {
		return
	}
	switch msg := ctx.Message().(type) {
	case domain.InboundFrame:
		in, err := state.actor.decode(msg)
		if err != nil {
			// nothing is tolerated before the handshake completes
			state.actor.fatal(ctx, decodeSubject(err), s2.StatusFor(err), err.Error())
			return
		}
		switch m := in.(type) {
		case *s2.ReceptionStatus:
			state.actor.onReceptionStatus(m)
		case *s2.Handshake:
			if m.Role != s2.RoleCEM {
				state.actor.fatal(ctx, m.ID(), s2.StatusInvalidContent, fmt.Sprintf("expected role %s, got %s", s2.RoleCEM, m.Role))
				return
			}
			if len(m.SupportedProtocolVersions) > 0 && !slices.Contains(m.SupportedProtocolVersions, s2.ProtocolVersion) {
				state.actor.fatal(ctx, m.ID(), s2.StatusInvalidContent, fmt.Sprintf("no common protocol version, RM supports %s", s2.ProtocolVersion))
				return
			}
			state.actor.logger.Debug("session@handshaking Handshake")
			state.actor.ack(ctx, m.ID(), s2.StatusOK, "")
			state.actor.send(ctx, state.actor.device.Details())
			state.actor.transition(SCapabilityExchangeState{
				actor: state.actor,
			})
		case *s2.HandshakeResponse:
			// the CEM may answer the RM handshake before sending its own
			state.actor.acceptHandshakeResponse(ctx, m)
		default:
			state.actor.fatal(ctx, in.ID(), s2.StatusInvalidMessage, fmt.Sprintf("%s not accepted while handshaking", in.Type()))
		}
	case domain.TerminateSessionRequest:
		state.actor.terminateNow(ctx, msg)
	case domain.PublishForecastRequest:
		ForRequest(msg).Respond(ctx, domain.PublishForecastResponse{Sent: false})
	case reportTick, instructionWake:
	default:
		state.actor.logger.Debug("session@handshaking recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// Capability exchange state

type SCapabilityExchangeState struct {
	ActorState
	actor *SessionActor
}

func (state SCapabilityExchangeState) Name() string {
	return SESSION_STATE_CAPABILITY_EXCHANGE
}

func (state SCapabilityExchangeState) Receive(ctx actor.Context) {
	if state.actor.receiveCommon(ctx, state) {
		return
	}
	switch msg := ctx.Message().(type) {
	case domain.InboundFrame:
		in, err := state.actor.decode(msg)
		if err != nil {
			state.actor.ack(ctx, decodeSubject(err), s2.StatusFor(err), err.Error())
			return
		}
		switch m := in.(type) {
		case *s2.ReceptionStatus:
			state.actor.onReceptionStatus(m)
			sess := state.actor.session
			if sess.awaitingAck == "" || m.SubjectMessageID != sess.awaitingAck {
				return
			}
			if m.Status != s2.StatusOK {
				state.actor.fatal(ctx, "", "", fmt.Sprintf("capability description refused: %s", m.Status))
				return
			}
			sess.awaitingAck = ""
			state.actor.transition(SOperationalState{
				actor: state.actor,
			}.OnEnter(ctx))
		case *s2.HandshakeResponse:
			state.actor.acceptHandshakeResponse(ctx, m)
		case *s2.SelectControlType:
			if !state.actor.device.AcceptsControlType(m.ControlType) {
				state.actor.logger.Warn("session@capability_exchange control type refused", zap.String("control_type", string(m.ControlType)))
				state.actor.ack(ctx, m.ID(), s2.StatusInvalidContent,
					fmt.Sprintf("control type %s not available, use %s", m.ControlType, state.actor.device.ControlType().S2()))
				return
			}
			state.actor.logger.Debug("session@capability_exchange SelectControlType", zap.String("control_type", string(m.ControlType)))
			state.actor.ack(ctx, m.ID(), s2.StatusOK, "")
			msgs := state.actor.device.CapabilityMessages(state.actor.clock.Now())
			for _, out := range msgs {
				state.actor.send(ctx, out)
			}
			if state.actor.device.Model().Controllable() && len(msgs) > 0 {
				state.actor.session.awaitingAck = msgs[0].ID()
				return
			}
			state.actor.transition(SOperationalState{
				actor: state.actor,
			}.OnEnter(ctx))
		case *s2.SessionRequest:
			state.actor.onSessionRequest(ctx, m)
		default:
			state.actor.ack(ctx, in.ID(), s2.StatusInvalidMessage, fmt.Sprintf("%s not accepted during capability exchange", in.Type()))
		}
	case domain.TerminateSessionRequest:
		state.actor.terminateNow(ctx, msg)
	case domain.PublishForecastRequest:
		ForRequest(msg).Respond(ctx, domain.PublishForecastResponse{Sent: false})
	case reportTick, instructionWake:
	default:
		state.actor.logger.Debug("session@capability_exchange recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// Operational state

type SOperationalState struct {
	ActorState
	actor *SessionActor
}

func (state SOperationalState) Name() string {
	return SESSION_STATE_OPERATIONAL
}

func (state SOperationalState) Receive(ctx actor.Context) {
	if state.actor.receiveCommon(ctx, state) {
		return
	}
	switch msg := ctx.Message().(type) {
	case domain.InboundFrame:
		in, err := state.actor.decode(msg)
		if err != nil {
			state.actor.ack(ctx, decodeSubject(err), s2.StatusFor(err), err.Error())
			return
		}
		switch m := in.(type) {
		case *s2.ReceptionStatus:
			state.actor.onReceptionStatus(m)
		case *s2.FRBCInstruction, *s2.PEBCInstruction:
			state.actor.submit(ctx, in, state.actor.arrival(msg))
		case *s2.RevokeObject:
			state.actor.revoke(ctx, m)
		case *s2.SessionRequest:
			state.actor.onSessionRequest(ctx, m)
		default:
			state.actor.ack(ctx, in.ID(), s2.StatusInvalidMessage, fmt.Sprintf("%s not accepted while operational", in.Type()))
		}
	case reportTick:
		state.actor.report(ctx)
	case instructionWake:
		state.actor.applyDue(ctx)
	case domain.PublishForecastRequest:
		state.actor.logger.Debug("session@operational PublishForecastRequest")
		state.actor.send(ctx, state.actor.device.Forecast(state.actor.clock.Now()))
		ForRequest(msg).Respond(ctx, domain.PublishForecastResponse{Sent: true})
	case domain.TerminateSessionRequest:
		state.actor.logger.Info("session@operational terminate", zap.String("reason", msg.Reason))
		state.actor.send(ctx, &s2.SessionRequest{
			Header:          s2.NewHeader(),
			Request:         s2.SessionRequestTerminate,
			DiagnosticLabel: optional(msg.Reason),
		})
		state.actor.enterTerminating(ctx, msg.Reconnect)
		ForRequest(msg).Respond(ctx, domain.TerminateSessionResponse{Terminated: true})
	default:
		state.actor.logger.Debug("session@operational recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state SOperationalState) OnEnter(ctx actor.Context) SOperationalState {
	interval := time.Duration(state.actor.config.MeasurementIntervalMillis) * time.Millisecond
	if interval <= 0 {
		interval = DEFAULT_MEASUREMENT_INTERVAL
	}
	state.actor.stopTimers()
	state.actor.cancelTick = state.actor.scheduler.SendRepeatedly(interval, interval, ctx.Self(), reportTick{})
	state.actor.report(ctx)
	return state
}

// Terminating state

type STerminatingState struct {
	ActorState
	actor *SessionActor
}

func (state STerminatingState) Name() string {
	return SESSION_STATE_TERMINATING
}

func (state STerminatingState) Receive(ctx actor.Context) {
	if state.actor.receiveCommon(ctx, state) {
		return
	}
	switch msg := ctx.Message().(type) {
	case domain.InboundFrame:
		in, err := state.actor.decode(msg)
		if err != nil {
			state.actor.ack(ctx, decodeSubject(err), s2.StatusFor(err), err.Error())
			return
		}
		switch m := in.(type) {
		case *s2.ReceptionStatus:
			state.actor.onReceptionStatus(m)
		case *s2.FRBCInstruction, *s2.PEBCInstruction:
			id := instructionID(in)
			state.actor.ack(ctx, m.ID(), s2.StatusInvalidContent, string(service.RejectSessionTerminating))
			state.actor.instructionStatus(ctx, id, s2.InstructionStatusRejected)
		default:
			state.actor.ack(ctx, in.ID(), s2.StatusInvalidMessage, fmt.Sprintf("%s not accepted while terminating", in.Type()))
		}
	case instructionWake:
		state.actor.applyDue(ctx)
		state.actor.releaseIfIdle(ctx)
	case reportTick:
		// already cancelled, may still be in the mailbox
	case domain.TerminateSessionRequest:
		ForRequest(msg).Respond(ctx, domain.TerminateSessionResponse{Terminated: true})
	case domain.PublishForecastRequest:
		ForRequest(msg).Respond(ctx, domain.PublishForecastResponse{Sent: false})
	default:
		state.actor.logger.Debug("session@terminating recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// Shared behaviour

// receiveCommon answers the messages every state handles the same way.
func (act *SessionActor) receiveCommon(ctx actor.Context, state ActorState) bool {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		act.logger.Debug("session@" + state.Name() + " ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_SESSION,
			Healthy: true,
			State:   state.Name(),
		})
	case domain.GetSessionStateRequest:
		ForRequest(msg).Respond(ctx, domain.GetSessionStateResponse{Snapshot: act.snapshot(state.Name())})
	case domain.GetCapabilitiesRequest:
		ForRequest(msg).Respond(ctx, domain.GetCapabilitiesResponse{
			Details:  act.device.Details(),
			Messages: act.device.Capabilities(act.clock.Now()),
		})
	case domain.TransportClosed:
		if state.Name() == SESSION_STATE_DISCONNECTED {
			return true
		}
		if msg.Error != nil {
			act.logger.Warn("session@"+state.Name()+" transport lost", zap.Error(msg.Error))
		} else {
			act.logger.Info("session@" + state.Name() + " transport closed")
		}
		act.transport = nil
		act.reset(ctx)
	case *actor.Restarting, *actor.Stopping:
		act.stopTimers()
	default:
		return false
	}
	return true
}

func (act *SessionActor) transition(state ActorState) {
	previous := act.StateName()
	act.Become(state)
	act.logger.Debug("session@"+state.Name()+" enter", zap.String("previous", previous))
	act.publishState(state.Name(), previous)
}

func (act *SessionActor) publishState(state, previous string) {
	act.eventStream.Publish(domain.SessionStateEvent{
		State:    state,
		Previous: previous,
		At:       act.clock.Now(),
	})
}

// arrival places the moment the transport received frame on the session
// clock: the time it waited in the mailbox is taken off the clock's now.
func (act *SessionActor) arrival(frame domain.InboundFrame) time.Time {
	now := act.clock.Now()
	if frame.ReceivedAt.IsZero() {
		return now
	}
	return now.Add(-max(time.Since(frame.ReceivedAt), 0))
}

func (act *SessionActor) decode(frame domain.InboundFrame) (s2.Message, error) {
	at := act.arrival(frame)
	act.eventStream.Publish(domain.FrameEvent{Direction: domain.FrameInbound, Data: frame.Data, At: at})
	if act.session != nil {
		act.session.lastSeen = at
	}
	msg, err := s2.Decode(frame.Data)
	if err != nil {
		act.logger.Warn("session: undecodable frame", zap.Error(err))
		return nil, err
	}
	act.logger.Debug("session: recv", zap.String("message_type", string(msg.Type())))
	return msg, nil
}

func (act *SessionActor) send(ctx actor.Context, msg s2.Message) {
	if act.transport == nil {
		act.logger.Warn("session: no transport, dropping", zap.String("message_type", string(msg.Type())))
		return
	}
	data, err := s2.Encode(msg)
	if err != nil {
		// only our own messages are encoded, so this is a bug
		act.logger.Error("session: encode failed", zap.String("message_type", string(msg.Type())), zap.Error(err))
		panic(err)
	}
	act.eventStream.Publish(domain.FrameEvent{Direction: domain.FrameOutbound, Data: data, At: act.clock.Now()})
	ctx.Send(act.transport, domain.SendFrameRequest{Data: data})
}

func (act *SessionActor) ack(ctx actor.Context, subject s2.ID, status s2.ReceptionStatusValue, label string) {
	act.send(ctx, &s2.ReceptionStatus{
		SubjectMessageID: subject,
		Status:           status,
		DiagnosticLabel:  optional(label),
	})
}

func (act *SessionActor) instructionStatus(ctx actor.Context, id s2.ID, status s2.InstructionStatus) {
	act.send(ctx, &s2.InstructionStatusUpdate{
		Header:        s2.NewHeader(),
		InstructionID: id,
		StatusType:    status,
		Timestamp:     act.clock.Now(),
	})
}

func (act *SessionActor) onReceptionStatus(msg *s2.ReceptionStatus) {
	if msg.Status != s2.StatusOK {
		act.logger.Warn("session: CEM reported an error",
			zap.String("subject", string(msg.SubjectMessageID)),
			zap.String("status", string(msg.Status)),
			zap.Stringp("label", msg.DiagnosticLabel))
	}
}

// acceptHandshakeResponse records the version picked by the CEM. A version
// the RM does not speak ends the session.
func (act *SessionActor) acceptHandshakeResponse(ctx actor.Context, msg *s2.HandshakeResponse) {
	if msg.SelectedProtocolVersion != s2.ProtocolVersion {
		act.fatal(ctx, msg.ID(), s2.StatusInvalidContent, fmt.Sprintf("unsupported protocol version %s", msg.SelectedProtocolVersion))
		return
	}
	act.ack(ctx, msg.ID(), s2.StatusOK, "")
	act.session.selectedVersion = msg.SelectedProtocolVersion
}

func (act *SessionActor) onSessionRequest(ctx actor.Context, msg *s2.SessionRequest) {
	act.ack(ctx, msg.ID(), s2.StatusOK, "")
	switch msg.Request {
	case s2.SessionRequestTerminate:
		act.logger.Info("session: CEM requested termination", zap.Stringp("label", msg.DiagnosticLabel))
		act.enterTerminating(ctx, true)
	case s2.SessionRequestReconnect:
		act.logger.Info("session: CEM requested reconnect", zap.Stringp("label", msg.DiagnosticLabel))
		act.release(ctx, true)
	}
}

// fatal reports a protocol error, if there is a subject to report it on, then
// terminates the session and has the transport reconnect.
func (act *SessionActor) fatal(ctx actor.Context, subject s2.ID, status s2.ReceptionStatusValue, label string) {
	act.logger.Error("session: fatal protocol error", zap.String("reason", label))
	if status != "" {
		act.ack(ctx, subject, status, label)
	}
	act.send(ctx, &s2.SessionRequest{
		Header:          s2.NewHeader(),
		Request:         s2.SessionRequestTerminate,
		DiagnosticLabel: optional(label),
	})
	act.release(ctx, true)
}

// terminateNow handles an RM-initiated termination before the session is
// operational; there can be no pending instruction yet.
func (act *SessionActor) terminateNow(ctx actor.Context, msg domain.TerminateSessionRequest) {
	act.send(ctx, &s2.SessionRequest{
		Header:          s2.NewHeader(),
		Request:         s2.SessionRequestTerminate,
		DiagnosticLabel: optional(msg.Reason),
	})
	act.release(ctx, msg.Reconnect)
	ForRequest(msg).Respond(ctx, domain.TerminateSessionResponse{Terminated: true})
}

func (act *SessionActor) enterTerminating(ctx actor.Context, reconnect bool) {
	act.session.reconnect = reconnect
	if act.cancelTick != nil {
		act.cancelTick()
		act.cancelTick = nil
	}
	act.transition(STerminatingState{
		actor: act,
	})
	act.releaseIfIdle(ctx)
}

func (act *SessionActor) releaseIfIdle(ctx actor.Context) {
	if _, pending := act.device.Pending(); pending {
		act.logger.Debug("session@terminating waiting for pending instruction")
		return
	}
	act.release(ctx, act.session.reconnect)
}

// release ends the session and closes the transport.
func (act *SessionActor) release(ctx actor.Context, reconnect bool) {
	if _, pending := act.device.Pending(); pending {
		for _, in := range act.device.Reset(act.clock.Now()) {
			act.instructionStatus(ctx, in.ID, s2.InstructionStatusAborted)
		}
	}
	if act.transport != nil {
		ctx.Send(act.transport, domain.CloseTransportRequest{Reconnect: reconnect})
	}
	act.transport = nil
	act.reset(ctx)
}

func (act *SessionActor) reset(ctx actor.Context) {
	act.stopTimers()
	act.device.Reset(act.clock.Now())
	act.session = nil
	act.transition(SDisconnectedState{
		actor: act,
	})
}

func (act *SessionActor) stopTimers() {
	if act.cancelTick != nil {
		act.cancelTick()
		act.cancelTick = nil
	}
	if act.cancelWake != nil {
		act.cancelWake()
		act.cancelWake = nil
	}
}

// submit validates msg against the time it arrived, not the time the
// mailbox got to it.
func (act *SessionActor) submit(ctx actor.Context, msg s2.Message, arrivedAt time.Time) {
	in, superseded, err := act.device.Submit(msg, arrivedAt)
	if err != nil {
		var verr *service.ValidationError
		label := err.Error()
		if errors.As(err, &verr) {
			label = string(verr.Reason)
		}
		act.logger.Info("session: instruction rejected", zap.String("instruction", string(instructionID(msg))), zap.Error(err))
		act.ack(ctx, msg.ID(), s2.StatusInvalidContent, label)
		act.instructionStatus(ctx, instructionID(msg), s2.InstructionStatusRejected)
		return
	}
	act.ack(ctx, msg.ID(), s2.StatusOK, "")
	for _, old := range superseded {
		act.instructionStatus(ctx, old.ID, s2.InstructionStatusAborted)
	}
	act.instructionStatus(ctx, in.ID, s2.InstructionStatusAccepted)
	if !in.ExecutionTime.After(act.clock.Now()) {
		act.applyDue(ctx)
		return
	}
	act.scheduleWake(ctx)
}

func (act *SessionActor) revoke(ctx actor.Context, msg *s2.RevokeObject) {
	switch msg.ObjectType {
	case s2.RevokableFRBCInstruction, s2.RevokablePEBCInstruction:
		if _, ok := act.device.Revoke(msg.ObjectID); !ok {
			act.ack(ctx, msg.ID(), s2.StatusInvalidContent, fmt.Sprintf("no pending instruction %s", msg.ObjectID))
			return
		}
		act.ack(ctx, msg.ID(), s2.StatusOK, "")
		act.instructionStatus(ctx, msg.ObjectID, s2.InstructionStatusRevoked)
		act.scheduleWake(ctx)
	default:
		act.ack(ctx, msg.ID(), s2.StatusInvalidContent, fmt.Sprintf("%s cannot be revoked", msg.ObjectType))
	}
}

// applyDue applies every instruction whose execution time has come and
// reports its lifecycle to the CEM.
func (act *SessionActor) applyDue(ctx actor.Context) {
	for _, app := range act.device.Advance(act.clock.Now()) {
		act.instructionStatus(ctx, app.Instruction.ID, s2.InstructionStatusStarted)
		if app.Err != nil {
			act.instructionStatus(ctx, app.Instruction.ID, s2.InstructionStatusAborted)
		} else {
			act.instructionStatus(ctx, app.Instruction.ID, s2.InstructionStatusSucceeded)
		}
	}
	act.scheduleWake(ctx)
}

func (act *SessionActor) scheduleWake(ctx actor.Context) {
	if act.cancelWake != nil {
		act.cancelWake()
		act.cancelWake = nil
	}
	due, ok := act.device.NextDue()
	if !ok {
		return
	}
	delay := max(due.Sub(act.clock.Now()), 0)
	act.cancelWake = act.scheduler.SendOnce(delay, ctx.Self(), instructionWake{})
}

func (act *SessionActor) report(ctx actor.Context) {
	act.applyDue(ctx)
	for _, msg := range act.device.Report(act.clock.Now()) {
		act.send(ctx, msg)
	}
	act.eventStream.Publish(domain.MeasurementEvent{Measurement: act.device.Measure()})
}

func (act *SessionActor) snapshot(state string) domain.SessionSnapshot {
	m := act.device.Measure()
	snap := domain.SessionSnapshot{
		State:       state,
		ControlType: act.device.ControlType().String(),
		Device:      &m,
	}
	if sess := act.session; sess != nil {
		connectedAt := sess.connectedAt
		lastSeen := sess.lastSeen
		snap.SessionID = string(sess.id)
		snap.SelectedVersion = sess.selectedVersion
		snap.ConnectedAt = &connectedAt
		snap.LastSeen = &lastSeen
	}
	if in, ok := act.device.Pending(); ok {
		snap.PendingInstruction = string(in.ID)
	}
	for id, until := range act.device.TimerBlocks() {
		if snap.TimersBlockedUntil == nil {
			snap.TimersBlockedUntil = map[string]time.Time{}
		}
		snap.TimersBlockedUntil[string(id)] = until
	}
	return snap
}

func decodeSubject(err error) s2.ID {
	var derr *s2.DecodeError
	if errors.As(err, &derr) {
		return derr.MessageID
	}
	return ""
}

func instructionID(msg s2.Message) s2.ID {
	switch m := msg.(type) {
	case *s2.FRBCInstruction:
		return m.InstructionID
	case *s2.PEBCInstruction:
		return m.InstructionID
	}
	return ""
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
