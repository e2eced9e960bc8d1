package device

import (
	"fmt"

	"github.com/berfenger/s2mockrm/internal/core/capability"
	"github.com/berfenger/s2mockrm/pkg/s2"
)

const (
	BatteryActuatorID = s2.ID("battery-actuator")

	ModeIdle      = s2.ID("idle")
	ModeCharge    = s2.ID("charge")
	ModeDischarge = s2.ID("discharge")

	TimerChargeDwell    = s2.ID("charge-dwell")
	TimerDischargeDwell = s2.ID("discharge-dwell")
)

// BatteryModel builds the FRBC capability of a home battery. Charge and
// discharge run between half and full power; entering either starts a dwell
// timer that blocks leaving it.
func BatteryModel(cfg BatteryConfig) (*capability.FRBCModel, error) {
	if cfg.CapacityWh <= 0 || cfg.MaxPowerW <= 0 {
		return nil, fmt.Errorf("battery capacity and power must be positive")
	}
	full := cfg.MaxPowerW / cfg.CapacityWh / 3600
	storage := capability.Range{Start: 0, End: 1}

	return capability.NewFRBCModel(capability.FRBCConfig{
		ActuatorID:    BatteryActuatorID,
		ActuatorLabel: "Battery inverter",
		Modes: []capability.OperationMode{
			{
				ID:        ModeIdle,
				Label:     "Idle",
				FillLevel: storage,
			},
			{
				ID:        ModeCharge,
				Label:     "Charge",
				FillLevel: storage,
				FillRate:  capability.Range{Start: full / 2, End: full},
				Power:     capability.Range{Start: cfg.MaxPowerW / 2, End: cfg.MaxPowerW},
			},
			{
				ID:        ModeDischarge,
				Label:     "Discharge",
				FillLevel: storage,
				FillRate:  capability.Range{Start: -full / 2, End: -full},
				Power:     capability.Range{Start: -cfg.MaxPowerW / 2, End: -cfg.MaxPowerW},
			},
		},
		Transitions: []capability.Transition{
			{ID: "idle-to-charge", From: ModeIdle, To: ModeCharge, StartTimers: []s2.ID{TimerChargeDwell}},
			{ID: "idle-to-discharge", From: ModeIdle, To: ModeDischarge, StartTimers: []s2.ID{TimerDischargeDwell}},
			{ID: "charge-to-idle", From: ModeCharge, To: ModeIdle, BlockingTimers: []s2.ID{TimerChargeDwell}},
			{ID: "charge-to-discharge", From: ModeCharge, To: ModeDischarge,
				StartTimers: []s2.ID{TimerDischargeDwell}, BlockingTimers: []s2.ID{TimerChargeDwell}},
			{ID: "discharge-to-idle", From: ModeDischarge, To: ModeIdle, BlockingTimers: []s2.ID{TimerDischargeDwell}},
			{ID: "discharge-to-charge", From: ModeDischarge, To: ModeCharge,
				StartTimers: []s2.ID{TimerChargeDwell}, BlockingTimers: []s2.ID{TimerDischargeDwell}},
		},
		Timers: []capability.Timer{
			{ID: TimerChargeDwell, Label: "Minimum charge time", Duration: cfg.DwellTime},
			{ID: TimerDischargeDwell, Label: "Minimum discharge time", Duration: cfg.DwellTime},
		},
		StorageLabel:      "Home battery",
		FillLevelLabel:    "State of charge",
		FillLevel:         storage,
		LeakageRate:       cfg.LeakageW / cfg.CapacityWh / 3600,
		CommodityQuantity: s2.CommodityQuantityElectricPower3PhaseSymm,
	})
}
