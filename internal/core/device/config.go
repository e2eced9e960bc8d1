package device

import (
	"fmt"
	"time"

	"github.com/berfenger/s2mockrm/internal/config"
	"github.com/berfenger/s2mockrm/internal/core/capability"
	"github.com/berfenger/s2mockrm/pkg/s2"
)

var DefaultSimulationStart = time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)

type Config struct {
	ControlType                capability.ControlType
	ResourceID                 s2.ID
	Name                       string
	Manufacturer               string
	Model                      string
	SerialNumber               string
	FirmwareVersion            string
	InstructionProcessingDelay time.Duration
	Battery                    BatteryConfig
	PV                         PVConfig
}

type BatteryConfig struct {
	CapacityWh       float64
	MaxPowerW        float64
	LeakageW         float64
	InitialFillLevel float64
	// Minimum time spent in charge or discharge before leaving it.
	DwellTime time.Duration
}

type PVConfig struct {
	PeakPowerW float64
	SimStart   time.Time
}

func DefaultBatteryConfig() BatteryConfig {
	return BatteryConfig{
		CapacityWh:       20000,
		MaxPowerW:        5000,
		LeakageW:         0.5,
		InitialFillLevel: 0.5,
		DwellTime:        300 * time.Second,
	}
}

func DefaultPVConfig() PVConfig {
	return PVConfig{
		PeakPowerW: 2000,
		SimStart:   DefaultSimulationStart,
	}
}

// ConfigFrom builds the device configuration from the application config.
func ConfigFrom(cfg *config.Config, firmwareVersion string) (Config, error) {
	ct, err := capability.ParseControlType(cfg.ControlType)
	if err != nil {
		return Config{}, err
	}
	start := DefaultSimulationStart
	if cfg.Simulation.Start != "" {
		start, err = time.Parse(time.RFC3339, cfg.Simulation.Start)
		if err != nil {
			return Config{}, fmt.Errorf("simulation.start: %w", err)
		}
	}
	battery := DefaultBatteryConfig()
	if cfg.Simulation.BatteryCapacityWh > 0 {
		battery.CapacityWh = cfg.Simulation.BatteryCapacityWh
	}
	if cfg.Simulation.BatteryMaxPowerWatt > 0 {
		battery.MaxPowerW = cfg.Simulation.BatteryMaxPowerWatt
	}
	if cfg.Simulation.BatteryLeakageWatt >= 0 {
		battery.LeakageW = cfg.Simulation.BatteryLeakageWatt
	}
	battery.InitialFillLevel = cfg.Simulation.InitialFillLevel
	battery.DwellTime = time.Duration(cfg.Simulation.DwellSeconds) * time.Second
	pv := DefaultPVConfig()
	pv.SimStart = start.UTC()
	if cfg.Simulation.PeakPowerWatt > 0 {
		pv.PeakPowerW = cfg.Simulation.PeakPowerWatt
	}
	resourceID := s2.ID(cfg.Device.ResourceID)
	if resourceID == "" {
		resourceID = s2.NewID()
	}
	return Config{
		ControlType:                ct,
		ResourceID:                 resourceID,
		Name:                       cfg.Device.Name,
		Manufacturer:               cfg.Device.Manufacturer,
		Model:                      cfg.Device.Model,
		SerialNumber:               cfg.Device.SerialNumber,
		FirmwareVersion:            firmwareVersion,
		InstructionProcessingDelay: time.Duration(cfg.InstructionProcessingDelayMillis) * time.Millisecond,
		Battery:                    battery,
		PV:                         pv,
	}, nil
}
