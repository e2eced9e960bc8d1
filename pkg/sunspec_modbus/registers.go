package sunspec_modbus

import (
	"math"
	"sync"

	"github.com/simonvetter/modbus"
)

// RegisterMap serves a read-only SunSpec image: common model, single phase
// inverter model and, for storage devices, the storage model. The same image
// answers holding and input register reads.
type RegisterMap struct {
	lock       sync.RWMutex
	unitId     uint8
	hasStorage bool
	regs       []uint16
	inverter   uint16
	storage    uint16
}

var _ modbus.RequestHandler = (*RegisterMap)(nil)

func NewRegisterMap(info DeviceInfo, hasStorage bool) *RegisterMap {
	m := &RegisterMap{
		unitId:     info.UnitId,
		hasStorage: hasStorage,
	}
	m.regs = append(m.regs, stringRegisters("SunS", 2)...)

	block := make([]uint16, COMMON_BLOCK_LENGTH+2)
	block[0] = SUNSPEC_WK_COMMON
	block[1] = COMMON_BLOCK_LENGTH
	copy(block[commonManufacturer:], stringRegisters(info.Manufacturer, 16))
	copy(block[commonModel:], stringRegisters(info.Model, 16))
	copy(block[commonVersion:], stringRegisters(info.Version, 8))
	copy(block[commonSerial:], stringRegisters(info.Serial, 16))
	block[commonDeviceAddr] = uint16(info.UnitId)
	m.regs = append(m.regs, block...)

	m.inverter = uint16(len(m.regs))
	block = make([]uint16, INVERTER_BLOCK_LENGTH+2)
	block[0] = SUNSPEC_WK_INVERTER
	block[1] = INVERTER_BLOCK_LENGTH
	block[inverterTmpCab] = 25
	block[inverterSt] = InverterStatusStandby
	m.regs = append(m.regs, block...)

	if hasStorage {
		m.storage = uint16(len(m.regs))
		block = make([]uint16, STORAGE_BLOCK_LENGTH+2)
		block[0] = SUNSPEC_WK_STORAGE
		block[1] = STORAGE_BLOCK_LENGTH
		block[storageChaSt] = StorageChargeStatusOff
		m.regs = append(m.regs, block...)
	}

	m.regs = append(m.regs, SUNSPEC_WK_END, 0)
	return m
}

// Update writes the live values into the image.
func (m *RegisterMap) Update(state DeviceState) {
	m.lock.Lock()
	defer m.lock.Unlock()

	w, sf := scaleInt16(state.PowerWatt)
	m.regs[m.inverter+inverterW] = uint16(w)
	m.regs[m.inverter+inverterWSF] = uint16(sf)
	m.regs[m.inverter+inverterSt] = state.OperatingState

	if m.hasStorage && state.Storage != nil {
		maxCharge, maxSF := scaleUint16(float64(state.Storage.MaxChargeWatt))
		m.regs[m.storage+storageWChaMax] = maxCharge
		m.regs[m.storage+storageWChaMaxSF] = uint16(maxSF)
		m.regs[m.storage+storageChaState] = uint16(math.Round(clamp(state.Storage.StateOfCharge, 0, 100) * 100))
		m.regs[m.storage+storageChaStateSF] = uint16(chaStateSF)
		m.regs[m.storage+storageChaSt] = state.Storage.ChargeStatus
	}
}

// state of charge is published in hundredths of a percent
var chaStateSF int16 = -2

func (m *RegisterMap) read(unitId uint8, addr, quantity uint16) ([]uint16, error) {
	if m.unitId != 0 && unitId != m.unitId {
		return nil, modbus.ErrIllegalFunction
	}
	if addr < SUNSPEC_BASE_ADDR {
		return nil, modbus.ErrIllegalDataAddress
	}
	start := int(addr - SUNSPEC_BASE_ADDR)
	m.lock.RLock()
	defer m.lock.RUnlock()
	if start+int(quantity) > len(m.regs) {
		return nil, modbus.ErrIllegalDataAddress
	}
	out := make([]uint16, quantity)
	copy(out, m.regs[start:start+int(quantity)])
	return out, nil
}

func (m *RegisterMap) HandleHoldingRegisters(req *modbus.HoldingRegistersRequest) ([]uint16, error) {
	if req.IsWrite {
		return nil, modbus.ErrIllegalFunction
	}
	return m.read(req.UnitId, req.Addr, req.Quantity)
}

func (m *RegisterMap) HandleInputRegisters(req *modbus.InputRegistersRequest) ([]uint16, error) {
	return m.read(req.UnitId, req.Addr, req.Quantity)
}

func (m *RegisterMap) HandleCoils(req *modbus.CoilsRequest) ([]bool, error) {
	return nil, modbus.ErrIllegalFunction
}

func (m *RegisterMap) HandleDiscreteInputs(req *modbus.DiscreteInputsRequest) ([]bool, error) {
	return nil, modbus.ErrIllegalFunction
}

// stringRegisters packs s into n registers, big endian, zero padded.
func stringRegisters(s string, n int) []uint16 {
	b := make([]byte, 2*n)
	copy(b, s)
	regs := make([]uint16, n)
	for i := range regs {
		regs[i] = uint16(b[2*i])<<8 | uint16(b[2*i+1])
	}
	return regs
}

func scaleInt16(value float64) (int16, int16) {
	var sf int16
	for math.Abs(value) > math.MaxInt16 && sf < 10 {
		value /= 10
		sf++
	}
	return int16(math.Round(value)), sf
}

func scaleUint16(value float64) (uint16, int16) {
	var sf int16
	for value > math.MaxUint16 && sf < 10 {
		value /= 10
		sf++
	}
	return uint16(math.Round(math.Max(value, 0))), sf
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
