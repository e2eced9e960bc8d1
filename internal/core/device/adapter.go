// Package device binds a capability model, the instruction scheduler and a
// simulated physical process into one S2 controllable device.
package device

import (
	"errors"
	"fmt"
	"time"

	"github.com/berfenger/s2mockrm/internal/core/capability"
	"github.com/berfenger/s2mockrm/internal/core/domain"
	"github.com/berfenger/s2mockrm/internal/core/service"
	"github.com/berfenger/s2mockrm/internal/core/sim"
	"github.com/berfenger/s2mockrm/pkg/s2"
	"go.uber.org/zap"
)

const (
	forecastSteps = 24
	forecastStep  = time.Hour
)

var ErrProfileRequired = errors.New("a PV device needs an irradiance profile")

// Application is the outcome of applying one due instruction.
type Application struct {
	Instruction service.Instruction
	Err         error
}

type actuatorReport struct {
	modeID s2.ID
	factor float64
	valid  bool
}

// Adapter is a single simulated device. Battery is set for FRBC, PV for PEBC
// and NOT_CONTROLABLE. It is owned by the session actor and not safe for
// concurrent use.
type Adapter struct {
	cfg      Config
	model    capability.Model
	sched    *service.InstructionScheduler
	battery  *sim.Battery
	pv       *sim.PV
	reported actuatorReport
	logger   *zap.Logger
}

func New(cfg Config, profile *sim.Profile, now time.Time, logger *zap.Logger) (*Adapter, error) {
	switch cfg.ControlType {
	case capability.ControlTypeFRBC:
		return NewBattery(cfg, now, logger)
	case capability.ControlTypePEBC, capability.ControlTypeNotControllable:
		return NewPV(cfg, profile, now, logger)
	default:
		return nil, fmt.Errorf("unsupported control type %v", cfg.ControlType)
	}
}

func NewBattery(cfg Config, now time.Time, logger *zap.Logger) (*Adapter, error) {
	frbc, err := BatteryModel(cfg.Battery)
	if err != nil {
		return nil, err
	}
	battery, err := sim.NewBattery(frbc, sim.BatteryParams{
		CapacityWh:       cfg.Battery.CapacityWh,
		InitialFillLevel: cfg.Battery.InitialFillLevel,
		DefaultMode:      ModeIdle,
	}, now)
	if err != nil {
		return nil, err
	}
	cfg.ControlType = capability.ControlTypeFRBC
	model := capability.FRBC(frbc)
	return &Adapter{
		cfg:     cfg,
		model:   model,
		sched:   service.NewInstructionScheduler(model, ModeIdle, logger),
		battery: battery,
		logger:  logger,
	}, nil
}

// NewPV builds a PV installation. With PEBC it accepts power envelopes,
// otherwise it only reports.
func NewPV(cfg Config, profile *sim.Profile, now time.Time, logger *zap.Logger) (*Adapter, error) {
	if profile == nil {
		return nil, ErrProfileRequired
	}
	model := capability.NotControllable()
	if cfg.ControlType == capability.ControlTypePEBC {
		pebc, err := PVConstraintsModel(cfg.PV)
		if err != nil {
			return nil, err
		}
		model = capability.PEBC(pebc)
	} else {
		cfg.ControlType = capability.ControlTypeNotControllable
	}
	return &Adapter{
		cfg:    cfg,
		model:  model,
		sched:  service.NewInstructionScheduler(model, "", logger),
		pv:     sim.NewPV(profile, sim.PVParams{PeakPowerW: cfg.PV.PeakPowerW, SimStart: cfg.PV.SimStart}, now),
		logger: logger,
	}, nil
}

func (a *Adapter) ControlType() capability.ControlType {
	return a.cfg.ControlType
}

func (a *Adapter) Model() capability.Model {
	return a.model
}

// AcceptsControlType reports whether the CEM may select ct for this device.
func (a *Adapter) AcceptsControlType(ct s2.ControlType) bool {
	if ct == a.cfg.ControlType.S2() {
		return true
	}
	return a.cfg.ControlType == capability.ControlTypeNotControllable && ct == s2.ControlTypeNoSelection
}

func (a *Adapter) Details() *s2.ResourceManagerDetails {
	role := s2.RoleTypeEnergyProducer
	if a.battery != nil {
		role = s2.RoleTypeEnergyStorage
	}
	details := &s2.ResourceManagerDetails{
		Header:                        s2.NewHeader(),
		ResourceID:                    a.cfg.ResourceID,
		Name:                          optional(a.cfg.Name),
		Roles:                         []s2.Role{{Role: role, Commodity: s2.CommodityElectricity}},
		Manufacturer:                  optional(a.cfg.Manufacturer),
		Model:                         optional(a.cfg.Model),
		SerialNumber:                  optional(a.cfg.SerialNumber),
		FirmwareVersion:               optional(a.cfg.FirmwareVersion),
		InstructionProcessingDelay:    s2.DurationOf(a.cfg.InstructionProcessingDelay),
		AvailableControlTypes:         []s2.ControlType{a.cfg.ControlType.S2()},
		ProvidesForecast:              true,
		ProvidesPowerMeasurementTypes: []s2.CommodityQuantity{s2.CommodityQuantityElectricPower3PhaseSymm},
	}
	return details
}

// Capabilities returns the static capability description of the device.
func (a *Adapter) Capabilities(now time.Time) []s2.Message {
	switch a.cfg.ControlType {
	case capability.ControlTypeFRBC:
		return []s2.Message{a.model.FRBC.SystemDescription(now), a.model.FRBC.LeakageBehaviour(now)}
	case capability.ControlTypePEBC:
		return []s2.Message{a.model.PEBC.PowerConstraints(now)}
	default:
		return nil
	}
}

// CapabilityMessages returns the messages sent after the CEM selected the
// control type. The first one is the capability description the CEM has to
// acknowledge.
func (a *Adapter) CapabilityMessages(now time.Time) []s2.Message {
	a.advanceState(now)
	msgs := a.Capabilities(now)
	switch a.cfg.ControlType {
	case capability.ControlTypeFRBC:
		msgs = append(msgs, a.usageForecast(now), a.actuatorStatus(), a.storageStatus())
		a.markReported()
	default:
		msgs = append(msgs, a.powerForecast(now))
	}
	return msgs
}

// Submit validates an instruction message and queues it. The returned
// instructions were pending and are now superseded.
func (a *Adapter) Submit(msg s2.Message, now time.Time) (service.Instruction, []service.Instruction, error) {
	var in service.Instruction
	switch m := msg.(type) {
	case *s2.FRBCInstruction:
		in = service.FromFRBC(m, now)
	case *s2.PEBCInstruction:
		in = service.FromPEBC(m, now)
	default:
		return in, nil, &service.ValidationError{
			Reason: service.RejectControlTypeMismatch,
			Detail: fmt.Sprintf("%s is not an instruction", msg.Type()),
		}
	}
	superseded, err := a.sched.Submit(in, now)
	if err != nil {
		return in, nil, err
	}
	a.logger.Info("device: instruction accepted",
		zap.String("instruction", string(in.ID)),
		zap.Time("execution_time", in.ExecutionTime))
	return in, superseded, nil
}

func (a *Adapter) Revoke(id s2.ID) (service.Instruction, bool) {
	return a.sched.Revoke(id)
}

func (a *Adapter) Pending() (service.Instruction, bool) {
	return a.sched.Pending()
}

func (a *Adapter) NextDue() (time.Time, bool) {
	return a.sched.NextDue()
}

// Advance applies every instruction due at now, each at its own execution
// time, then brings the physical process up to now.
func (a *Adapter) Advance(now time.Time) []Application {
	var applied []Application
	for {
		in, ok := a.sched.PopDue(now)
		if !ok {
			break
		}
		err := a.apply(in)
		if err == nil {
			a.sched.Applied(in)
			a.logger.Info("device: instruction applied", zap.String("instruction", string(in.ID)))
		} else {
			a.logger.Error("device: instruction failed", zap.String("instruction", string(in.ID)), zap.Error(err))
		}
		applied = append(applied, Application{Instruction: in, Err: err})
	}
	a.advanceState(now)
	return applied
}

func (a *Adapter) apply(in service.Instruction) error {
	switch {
	case in.FRBC != nil && a.battery != nil:
		return a.battery.SetMode(in.FRBC.ModeID, in.FRBC.Factor, in.ExecutionTime)
	case in.PEBC != nil && a.pv != nil:
		a.pv.SetEnvelope(envelopeFrom(in.PEBC, in.ExecutionTime), in.ExecutionTime)
		return nil
	default:
		return fmt.Errorf("instruction %s does not match the device", in.ID)
	}
}

// envelopeFrom lays the envelope elements end to end from start and converts
// them to the production frame of the PV simulation.
func envelopeFrom(target *service.PEBCTarget, start time.Time) *sim.Envelope {
	env := &sim.Envelope{ID: target.EnvelopeID}
	at := start
	for _, el := range target.Elements {
		end := at.Add(el.Duration)
		env.Segments = append(env.Segments, sim.EnvelopeSegment{
			Start: at,
			End:   end,
			Lower: -el.Upper,
			Upper: -el.Lower,
		})
		at = end
	}
	return env
}

func (a *Adapter) advanceState(now time.Time) {
	if a.battery != nil {
		a.battery.Advance(now)
	}
	if a.pv != nil {
		a.pv.Advance(now)
	}
}

// TimerBlocks lists the FRBC timers that have been started and when each
// stops blocking.
func (a *Adapter) TimerBlocks() map[s2.ID]time.Time {
	if a.model.FRBC == nil {
		return nil
	}
	blocks := map[s2.ID]time.Time{}
	for _, timer := range a.model.FRBC.Timers() {
		if until, ok := a.sched.BlockedUntil(timer.ID); ok {
			blocks[timer.ID] = until
		}
	}
	return blocks
}

func (a *Adapter) State() sim.DeviceState {
	st := sim.DeviceState{Type: a.cfg.ControlType}
	if a.battery != nil {
		bs := a.battery.State()
		st.Battery = &bs
	}
	if a.pv != nil {
		ps := a.pv.State()
		st.PV = &ps
	}
	return st
}

// Measure reads the current device state without advancing it.
func (a *Adapter) Measure() domain.Measurement {
	m := domain.Measurement{ControlType: a.cfg.ControlType.String()}
	if a.battery != nil {
		bs := a.battery.State()
		fill := bs.FillLevel
		stored := a.battery.StoredEnergyWh()
		capacity := a.battery.CapacityWh()
		m.Timestamp = bs.UpdatedAt
		m.PowerW = bs.PowerW
		m.ActiveRef = string(bs.ActiveModeID)
		m.FillLevel = &fill
		m.StoredEnergyWh = &stored
		m.CapacityWh = &capacity
		m.Clamped = bs.Clamped
	}
	if a.pv != nil {
		ps := a.pv.State()
		available := -ps.AvailableW
		m.Timestamp = ps.UpdatedAt
		m.PowerW = -ps.PowerW
		m.ActiveRef = string(ps.EnvelopeID)
		m.AvailableW = &available
		m.Curtailed = ps.Curtailed
	}
	return m
}

// Report builds the periodic status messages: a PowerMeasurement for every
// device, plus FRBC storage status and an actuator status when the active
// mode changed since the last one sent.
func (a *Adapter) Report(now time.Time) []s2.Message {
	a.advanceState(now)
	m := a.Measure()
	msgs := []s2.Message{&s2.PowerMeasurement{
		Header:               s2.NewHeader(),
		MeasurementTimestamp: now,
		Values: []s2.PowerValue{{
			CommodityQuantity: s2.CommodityQuantityElectricPower3PhaseSymm,
			Value:             m.PowerW,
		}},
	}}
	if a.battery != nil {
		msgs = append(msgs, a.storageStatus())
		bs := a.battery.State()
		if !a.reported.valid || a.reported.modeID != bs.ActiveModeID || a.reported.factor != bs.Factor {
			msgs = append(msgs, a.actuatorStatus())
			a.markReported()
		}
	}
	return msgs
}

// Forecast returns the 24 h forecast: usage for the battery, production for
// the PV installation.
func (a *Adapter) Forecast(now time.Time) s2.Message {
	if a.battery != nil {
		return a.usageForecast(now)
	}
	return a.powerForecast(now)
}

// Reset drops pending instructions and timers and returns the device to its
// default mode or an unconstrained envelope. The physical state is kept.
func (a *Adapter) Reset(now time.Time) []service.Instruction {
	dropped := a.sched.Reset()
	if a.battery != nil {
		a.battery.Reset(now)
	}
	if a.pv != nil {
		a.pv.Reset(now)
	}
	a.reported = actuatorReport{}
	return dropped
}

func (a *Adapter) storageStatus() *s2.FRBCStorageStatus {
	return &s2.FRBCStorageStatus{
		Header:           s2.NewHeader(),
		PresentFillLevel: a.battery.State().FillLevel,
	}
}

func (a *Adapter) actuatorStatus() *s2.FRBCActuatorStatus {
	bs := a.battery.State()
	status := &s2.FRBCActuatorStatus{
		Header:                s2.NewHeader(),
		ActuatorID:            BatteryActuatorID,
		ActiveOperationModeID: bs.ActiveModeID,
		OperationModeFactor:   bs.Factor,
	}
	if bs.PreviousModeID != "" {
		status.PreviousOperationModeID = s2.Ptr(bs.PreviousModeID)
	}
	if !bs.ModeSince.IsZero() {
		status.TransitionTimestamp = s2.Ptr(bs.ModeSince)
	}
	return status
}

func (a *Adapter) markReported() {
	bs := a.battery.State()
	a.reported = actuatorReport{modeID: bs.ActiveModeID, factor: bs.Factor, valid: true}
}

// usageForecast is always zero: a home battery has no usage of its own.
func (a *Adapter) usageForecast(now time.Time) *s2.FRBCUsageForecast {
	elements := make([]s2.FRBCUsageForecastElement, forecastSteps)
	for i := range elements {
		elements[i] = s2.FRBCUsageForecastElement{Duration: s2.DurationOf(forecastStep)}
	}
	return &s2.FRBCUsageForecast{
		Header:    s2.NewHeader(),
		StartTime: now,
		Elements:  elements,
	}
}

func (a *Adapter) powerForecast(now time.Time) *s2.PowerForecast {
	points := a.pv.Forecast(now, forecastSteps, forecastStep)
	elements := make([]s2.PowerForecastElement, 0, len(points))
	for _, p := range points {
		elements = append(elements, s2.PowerForecastElement{
			Duration: s2.DurationOf(p.Duration),
			PowerValues: []s2.PowerForecastValue{{
				ValueExpected:     -p.AvailableW,
				CommodityQuantity: s2.CommodityQuantityElectricPower3PhaseSymm,
			}},
		})
	}
	return &s2.PowerForecast{
		Header:    s2.NewHeader(),
		StartTime: now,
		Elements:  elements,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
