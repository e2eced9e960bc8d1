package sunspec_modbus

import (
	"fmt"
)

const (
	SUNSPEC_BASE_ADDR = 40000

	SUNSPEC_WK_COMMON   = 1
	SUNSPEC_WK_INVERTER = 101
	SUNSPEC_WK_STORAGE  = 124
	SUNSPEC_WK_END      = 0xFFFF

	COMMON_BLOCK_LENGTH   = 66
	INVERTER_BLOCK_LENGTH = 50
	STORAGE_BLOCK_LENGTH  = 24
)

// Register offsets relative to the start of their block (the model id).
const (
	commonManufacturer = 2
	commonModel        = 18
	commonVersion      = 42
	commonSerial       = 50
	commonDeviceAddr   = 66

	inverterW      = 14
	inverterWSF    = 15
	inverterTmpCab = 33
	inverterTmpSF  = 37
	inverterSt     = 38

	storageWChaMax    = 2
	storageChaState   = 8
	storageChaSt      = 11
	storageWChaMaxSF  = 18
	storageChaStateSF = 22
)

// storage states
const (
	StorageChargeStatusOff         = 1
	StorageChargeStatusEmpty       = 2
	StorageChargeStatusDischarging = 3
	StorageChargeStatusCharging    = 4
	StorageChargeStatusFull        = 5
	StorageChargeStatusHolding     = 6
	StorageChargeStatusTest        = 7
)

// storage state strings
const (
	StorageChargeStatusOffStr         = "off"
	StorageChargeStatusEmptyStr       = "empty"
	StorageChargeStatusDischargingStr = "discharging"
	StorageChargeStatusChargingStr    = "charging"
	StorageChargeStatusFullStr        = "full"
	StorageChargeStatusHoldingStr     = "holding"
	StorageChargeStatusTestStr        = "test"
	StorageChargeStatusUnknownStr     = "unknown"
)

func StorageChargeStatusToString(storage uint16) string {
	switch storage {
	case StorageChargeStatusOff:
		return StorageChargeStatusOffStr
	case StorageChargeStatusEmpty:
		return StorageChargeStatusEmptyStr
	case StorageChargeStatusDischarging:
		return StorageChargeStatusDischargingStr
	case StorageChargeStatusCharging:
		return StorageChargeStatusChargingStr
	case StorageChargeStatusFull:
		return StorageChargeStatusFullStr
	case StorageChargeStatusHolding:
		return StorageChargeStatusHoldingStr
	case StorageChargeStatusTest:
		return StorageChargeStatusTestStr
	default:
		return fmt.Sprintf("%s(%d)", StorageChargeStatusUnknownStr, storage)
	}
}

const (
	InverterStatusOff          = 1
	InverterStatusSleeping     = 2
	InverterStatusStarting     = 3
	InverterStatusMPPT         = 4
	InverterStatusThrottled    = 5
	InverterStatusShuttingDown = 6
	InverterStatusFault        = 7
	InverterStatusStandby      = 8
)

const (
	InverterStatusOffStr          = "off"
	InverterStatusSleepingStr     = "sleeping"
	InverterStatusStartingStr     = "starting"
	InverterStatusMPPTStr         = "mppt_tracking"
	InverterStatusThrottledStr    = "throttled"
	InverterStatusShuttingDownStr = "shutting_down"
	InverterStatusFaultStr        = "fault"
	InverterStatusStandbyStr      = "standby"
	InverterStatusUnknown         = "unknown"
)

func InverterStatusToString(state uint16) string {
	switch state {
	case InverterStatusOff:
		return InverterStatusOffStr
	case InverterStatusSleeping:
		return InverterStatusSleepingStr
	case InverterStatusStarting:
		return InverterStatusStartingStr
	case InverterStatusMPPT:
		return InverterStatusMPPTStr
	case InverterStatusThrottled:
		return InverterStatusThrottledStr
	case InverterStatusShuttingDown:
		return InverterStatusShuttingDownStr
	case InverterStatusFault:
		return InverterStatusFaultStr
	case InverterStatusStandby:
		return InverterStatusStandbyStr
	default:
		return fmt.Sprintf("%s(%d)", InverterStatusUnknown, state)
	}
}

type DeviceInfo struct {
	Manufacturer string
	Model        string
	Version      string
	Serial       string
	UnitId       uint8
}

// DeviceState is the live part of the register image. Power follows the
// sign of the simulated device: consumption positive, production negative.
type DeviceState struct {
	PowerWatt      float64
	OperatingState uint16
	Storage        *StorageState
}

type StorageState struct {
	// percent, 0..100
	StateOfCharge   float64
	MaxChargeWatt   uint32
	ChargeStatus    uint16
	ChargeStatusStr string
}
