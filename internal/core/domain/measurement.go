package domain

import "time"

// Measurement is a device snapshot in the S2 sign convention: consumption is
// positive, production negative.
type Measurement struct {
	Timestamp      time.Time `json:"timestamp"`
	ControlType    string    `json:"control_type"`
	PowerW         float64   `json:"power_w"`
	ActiveRef      string    `json:"active_ref,omitempty"`
	FillLevel      *float64  `json:"fill_level,omitempty"`
	StoredEnergyWh *float64  `json:"stored_energy_wh,omitempty"`
	CapacityWh     *float64  `json:"capacity_wh,omitempty"`
	AvailableW     *float64  `json:"available_w,omitempty"`
	Clamped        bool      `json:"clamped,omitempty"`
	Curtailed      bool      `json:"curtailed,omitempty"`
}
