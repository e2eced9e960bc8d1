package sunspec_modbus

import (
	"errors"
	"math"
	"slices"
	"time"

	"github.com/simonvetter/modbus"
	"go.uber.org/zap"
)

type ModbusClient struct {
	client     *modbus.ModbusClient
	instrument []ModbusInstrument
}

type ModbusInstrument struct {
	RecordTime func(fnName string, readTime time.Duration)
}

// Reader reads a SunSpec device image back over Modbus TCP.
type Reader struct {
	ModbusClient

	logger *zap.Logger
	blocks sunspecBlocks
}

type sunspecBlocks struct {
	common   uint16
	inverter uint16
	storage  uint16
}

type modbusBlock struct {
	id       uint16
	baseAddr uint16
	length   uint16
}

func (block *modbusBlock) isEndBlock() bool {
	return block.id == SUNSPEC_WK_END
}

func NewReader(url string, unitId uint8, timeout time.Duration, logger *zap.Logger) (*Reader, error) {
	client, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:     url,
		Timeout: timeout,
	})
	if err != nil {
		return nil, err
	}
	if unitId > 0 {
		if err := client.SetUnitId(unitId); err != nil {
			return nil, err
		}
	}
	return &Reader{
		ModbusClient: ModbusClient{
			client:     client,
			instrument: []ModbusInstrument{debugLoggerInstrumentation(logger)},
		},
		logger: logger,
	}, nil
}

func (r *Reader) Open() error {
	if err := r.client.Open(); err != nil {
		return err
	}
	return r.survey()
}

func (r *Reader) Close() error {
	return r.client.Close()
}

func (r *Reader) HasStorage() bool {
	return r.blocks.storage > 0
}

func (r *Reader) GetInfo() (*DeviceInfo, error) {
	manufacturer, err := r.readString(r.blocks.common+commonManufacturer, 32)
	if err != nil {
		return nil, err
	}
	model, err := r.readString(r.blocks.common+commonModel, 32)
	if err != nil {
		return nil, err
	}
	version, err := r.readString(r.blocks.common+commonVersion, 16)
	if err != nil {
		return nil, err
	}
	serial, err := r.readString(r.blocks.common+commonSerial, 32)
	if err != nil {
		return nil, err
	}
	unit, err := r.readRegister(r.blocks.common+commonDeviceAddr, modbus.HOLDING_REGISTER)
	if err != nil {
		return nil, err
	}
	return &DeviceInfo{
		Manufacturer: manufacturer,
		Model:        model,
		Version:      version,
		Serial:       serial,
		UnitId:       uint8(unit),
	}, nil
}

func (r *Reader) GetState() (*DeviceState, error) {
	regs, err := r.readRegisters(r.blocks.inverter+inverterW, 2, modbus.HOLDING_REGISTER)
	if err != nil {
		return nil, err
	}
	st, err := r.readRegister(r.blocks.inverter+inverterSt, modbus.HOLDING_REGISTER)
	if err != nil {
		return nil, err
	}
	state := &DeviceState{
		PowerWatt:      applySFint16(int16(regs[0]), regs[1]),
		OperatingState: st,
	}
	if r.HasStorage() {
		state.Storage, err = r.GetStorageState()
		if err != nil {
			return nil, err
		}
	}
	return state, nil
}

func (r *Reader) GetStorageState() (*StorageState, error) {
	if r.blocks.storage == 0 {
		return nil, errors.New("sunspec: storage block not supported")
	}
	regs, err := r.readRegisters(r.blocks.storage+storageWChaMax, 24, modbus.HOLDING_REGISTER)
	if err != nil {
		return nil, err
	}
	at := func(offset uint16) uint16 {
		return regs[offset-storageWChaMax]
	}
	chaSt := at(storageChaSt)
	return &StorageState{
		StateOfCharge:   applySF(at(storageChaState), at(storageChaStateSF)),
		MaxChargeWatt:   uint32(math.Round(applySF(at(storageWChaMax), at(storageWChaMaxSF)))),
		ChargeStatus:    chaSt,
		ChargeStatusStr: StorageChargeStatusToString(chaSt),
	}, nil
}

func (r *Reader) survey() error {
	str, err := r.readString(SUNSPEC_BASE_ADDR, 4)
	if err != nil {
		return err
	}
	if str != "SunS" {
		return errors.New("could not find a SunSpec device")
	}

	blocks := sunspecBlocks{}
	var baseAddr uint16 = SUNSPEC_BASE_ADDR + 2
	// ensure the loop has an ending
	for n := 0; n < 20; n++ {
		block, err := r.surveyBlock(baseAddr)
		if err != nil {
			return err
		}
		if block.isEndBlock() {
			break
		}
		switch block.id {
		case SUNSPEC_WK_COMMON:
			blocks.common = block.baseAddr
		case SUNSPEC_WK_INVERTER:
			blocks.inverter = block.baseAddr
		case SUNSPEC_WK_STORAGE:
			blocks.storage = block.baseAddr
		}
		baseAddr = baseAddr + block.length + 2
	}
	if blocks.common == 0 || blocks.inverter == 0 {
		return errors.New("could not find all required sunspec blocks (common, inverter)")
	}
	r.blocks = blocks
	return nil
}

func (r *Reader) surveyBlock(baseAddr uint16) (*modbusBlock, error) {
	regs, err := r.readRegisters(baseAddr, 2, modbus.HOLDING_REGISTER)
	if err != nil {
		return nil, err
	}
	return &modbusBlock{
		id:       regs[0],
		length:   regs[1],
		baseAddr: baseAddr,
	}, nil
}

func (reader ModbusClient) readString(address uint16, size uint16) (string, error) {
	bytes, err := reader.readRawBytes(address, size, modbus.HOLDING_REGISTER)
	if err != nil {
		return "", err
	}
	f := slices.Index(bytes, 0x00)
	if f >= 0 {
		return string(bytes[:f]), nil
	}
	return string(bytes), nil
}

func (reader ModbusClient) readRegister(addr uint16, regType modbus.RegType) (uint16, error) {
	defer RecordTimer("ReadRegister", reader.instrument)()
	return reader.client.ReadRegister(addr, regType)
}

func (reader ModbusClient) readRegisters(addr uint16, quantity uint16, regType modbus.RegType) ([]uint16, error) {
	defer RecordTimer("ReadRegisters", reader.instrument)()
	return reader.client.ReadRegisters(addr, quantity, regType)
}

func (reader ModbusClient) readRawBytes(addr uint16, quantity uint16, regType modbus.RegType) ([]byte, error) {
	defer RecordTimer("ReadRawBytes", reader.instrument)()
	return reader.client.ReadRawBytes(addr, quantity, regType)
}

func applySF(number uint16, sf uint16) float64 {
	return float64(number) * math.Pow(10, float64(int16(sf)))
}

func applySFint16(number int16, sf uint16) float64 {
	return float64(number) * math.Pow(10, float64(int16(sf)))
}

func RecordTimer(name string, instrument []ModbusInstrument) func() {
	if instrument == nil {
		return func() {}
	}

	start := time.Now()
	return func() {
		duration := time.Since(start)
		for i := range instrument {
			instrument[i].RecordTime(name, duration)
		}
	}
}

func debugLoggerInstrumentation(logger *zap.Logger) ModbusInstrument {
	return ModbusInstrument{
		RecordTime: func(fnName string, readTime time.Duration) {
			logger.Debug("modbus read", zap.String("fn", fnName), zap.Int64("millis", readTime.Milliseconds()))
		},
	}
}
