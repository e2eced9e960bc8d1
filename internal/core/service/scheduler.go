package service

import (
	"container/heap"
	"time"

	"github.com/berfenger/s2mockrm/internal/core/capability"
	"github.com/berfenger/s2mockrm/pkg/s2"
	"go.uber.org/zap"
)

// InstructionScheduler validates CEM instructions against the capability
// model and holds the accepted one until its execution time. It is not safe
// for concurrent use; the session actor owns it.
type InstructionScheduler struct {
	model        capability.Model
	defaultMode  s2.ID
	activeMode   s2.ID
	blockedUntil map[s2.ID]time.Time
	queue        instructionQueue
	seq          uint64
	logger       *zap.Logger
}

func NewInstructionScheduler(model capability.Model, defaultMode s2.ID, logger *zap.Logger) *InstructionScheduler {
	return &InstructionScheduler{
		model:        model,
		defaultMode:  defaultMode,
		activeMode:   defaultMode,
		blockedUntil: map[s2.ID]time.Time{},
		logger:       logger,
	}
}

// Submit validates in against the currently active state. On success it
// becomes the single pending instruction and any previously pending one is
// returned as superseded.
func (s *InstructionScheduler) Submit(in Instruction, now time.Time) ([]Instruction, error) {
	if err := s.validate(in, now); err != nil {
		s.logger.Debug("scheduler: rejected", zap.String("instruction", string(in.ID)), zap.String("reason", string(err.Reason)), zap.String("detail", err.Detail))
		return nil, err
	}
	superseded := s.queue.drain()
	s.seq++
	heap.Push(&s.queue, &queuedInstruction{instruction: in, seq: s.seq})
	for _, old := range superseded {
		s.logger.Debug("scheduler: superseded", zap.String("instruction", string(old.ID)), zap.String("by", string(in.ID)))
	}
	return superseded, nil
}

// PopDue removes and returns the pending instruction if its execution time
// is not after now.
func (s *InstructionScheduler) PopDue(now time.Time) (Instruction, bool) {
	if s.queue.Len() == 0 || s.queue[0].instruction.ExecutionTime.After(now) {
		return Instruction{}, false
	}
	item := heap.Pop(&s.queue).(*queuedInstruction)
	return item.instruction, true
}

// Applied records that in took effect: the active mode changes and the
// timers started by the transition are armed from its execution time.
func (s *InstructionScheduler) Applied(in Instruction) {
	if in.FRBC == nil || s.model.FRBC == nil {
		return
	}
	from, to := s.activeMode, in.FRBC.ModeID
	if from != to {
		if tr, ok := s.model.FRBC.Transition(from, to); ok {
			for _, id := range tr.StartTimers {
				timer, _ := s.model.FRBC.Timer(id)
				s.blockedUntil[id] = in.ExecutionTime.Add(timer.Duration)
			}
		}
	}
	s.activeMode = to
}

// Revoke drops the pending instruction with the given id.
func (s *InstructionScheduler) Revoke(id s2.ID) (Instruction, bool) {
	for i, item := range s.queue {
		if item.instruction.ID == id {
			heap.Remove(&s.queue, i)
			return item.instruction, true
		}
	}
	return Instruction{}, false
}

func (s *InstructionScheduler) Pending() (Instruction, bool) {
	if s.queue.Len() == 0 {
		return Instruction{}, false
	}
	return s.queue[0].instruction, true
}

// NextDue returns the execution time of the pending instruction.
func (s *InstructionScheduler) NextDue() (time.Time, bool) {
	in, ok := s.Pending()
	return in.ExecutionTime, ok
}

func (s *InstructionScheduler) currentMode() s2.ID {
	return s.activeMode
}

// BlockedUntil returns when timer stops blocking transitions. Timers that
// never started report false.
func (s *InstructionScheduler) BlockedUntil(timer s2.ID) (time.Time, bool) {
	t, ok := s.blockedUntil[timer]
	return t, ok
}

// Reset discards pending instructions and timers and returns to the default
// mode. Returns the discarded instructions.
func (s *InstructionScheduler) Reset() []Instruction {
	dropped := s.queue.drain()
	s.blockedUntil = map[s2.ID]time.Time{}
	s.activeMode = s.defaultMode
	return dropped
}

func (s *InstructionScheduler) validate(in Instruction, now time.Time) *ValidationError {
	if in.ExecutionTime.Before(now) {
		return reject(RejectExecutionTimeInPast, "execution time %s is before %s",
			in.ExecutionTime.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	}
	switch s.model.Type {
	case capability.ControlTypeFRBC:
		if in.FRBC == nil {
			return reject(RejectControlTypeMismatch, "device is controlled through FRBC")
		}
		return s.validateFRBC(in)
	case capability.ControlTypePEBC:
		if in.PEBC == nil {
			return reject(RejectControlTypeMismatch, "device is controlled through PEBC")
		}
		return s.validatePEBC(in)
	default:
		return reject(RejectControlTypeMismatch, "device is not controllable")
	}
}

func (s *InstructionScheduler) validateFRBC(in Instruction) *ValidationError {
	m := s.model.FRBC
	target := in.FRBC
	if target.ActuatorID != m.ActuatorID() {
		return reject(RejectUnknownActuator, "unknown actuator %q", target.ActuatorID)
	}
	mode, err := m.ModeByID(target.ModeID)
	if err != nil {
		return reject(RejectUnknownOperationMode, "unknown operation mode %q", target.ModeID)
	}
	if target.Factor < 0 || target.Factor > 1 {
		return reject(RejectFactorOutOfRange, "operation mode factor %g outside [0, 1]", target.Factor)
	}
	if mode.AbnormalConditionOnly && !in.AbnormalCondition {
		return reject(RejectAbnormalConditionOnly, "mode %s is reserved for abnormal conditions", mode.ID)
	}
	if s.activeMode == target.ModeID {
		return nil
	}
	tr, ok := m.Transition(s.activeMode, target.ModeID)
	if !ok {
		return reject(RejectNoTransition, "no transition from %s to %s", s.activeMode, target.ModeID)
	}
	if tr.AbnormalConditionOnly && !in.AbnormalCondition {
		return reject(RejectAbnormalConditionOnly, "transition %s is reserved for abnormal conditions", tr.ID)
	}
	for _, id := range tr.BlockingTimers {
		if until, ok := s.blockedUntil[id]; ok && until.After(in.ExecutionTime) {
			return reject(RejectTimerBlocked, "timer %s blocks transition %s until %s", id, tr.ID, until.Format(time.RFC3339Nano))
		}
	}
	return nil
}

func (s *InstructionScheduler) validatePEBC(in Instruction) *ValidationError {
	m := s.model.PEBC
	target := in.PEBC
	if target.ConstraintsID != m.ConstraintsID() {
		return reject(RejectUnknownPowerConstraints, "unknown power constraints %q", target.ConstraintsID)
	}
	if target.EnvelopeCount != 1 {
		return reject(RejectInvalidEnvelope, "expected exactly one power envelope, got %d", target.EnvelopeCount)
	}
	if target.CommodityQuantity != m.CommodityQuantity() {
		return reject(RejectUnknownCommodityQuantity, "commodity quantity %q not offered", target.CommodityQuantity)
	}
	if len(target.Elements) == 0 {
		return reject(RejectInvalidEnvelope, "power envelope has no elements")
	}
	upperRange, _ := m.AllowedRange(s2.LimitTypeUpper)
	lowerRange, _ := m.AllowedRange(s2.LimitTypeLower)
	for i, el := range target.Elements {
		if el.Duration <= 0 {
			return reject(RejectInvalidEnvelope, "element %d has a non-positive duration", i)
		}
		if el.Lower > el.Upper {
			return reject(RejectInvalidEnvelope, "element %d lower limit %g above upper limit %g", i, el.Lower, el.Upper)
		}
		if !upperRange.Contains(el.Upper) {
			return reject(RejectEnvelopeOutOfRange, "element %d upper limit %g outside [%g, %g]", i, el.Upper, upperRange.Min(), upperRange.Max())
		}
		if !lowerRange.Contains(el.Lower) {
			return reject(RejectEnvelopeOutOfRange, "element %d lower limit %g outside [%g, %g]", i, el.Lower, lowerRange.Min(), lowerRange.Max())
		}
	}
	return nil
}

type queuedInstruction struct {
	instruction Instruction
	seq         uint64
}

// instructionQueue is a min-heap on execution time; equal times keep
// submission order.
type instructionQueue []*queuedInstruction

func (q instructionQueue) Len() int { return len(q) }

func (q instructionQueue) Less(i, j int) bool {
	ti, tj := q[i].instruction.ExecutionTime, q[j].instruction.ExecutionTime
	if ti.Equal(tj) {
		return q[i].seq < q[j].seq
	}
	return ti.Before(tj)
}

func (q instructionQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *instructionQueue) Push(x any) {
	*q = append(*q, x.(*queuedInstruction))
}

func (q *instructionQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}

func (q *instructionQueue) drain() []Instruction {
	var out []Instruction
	for q.Len() > 0 {
		out = append(out, heap.Pop(q).(*queuedInstruction).instruction)
	}
	return out
}
