package sim

import "github.com/berfenger/s2mockrm/internal/core/capability"

// DeviceState is a snapshot of the simulated device. Battery is set for FRBC
// devices, PV for PEBC and NOT_CONTROLABLE ones.
type DeviceState struct {
	Type    capability.ControlType
	Battery *BatteryState
	PV      *PVState
}
