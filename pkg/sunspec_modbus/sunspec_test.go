package sunspec_modbus

import (
	"testing"
	"time"

	"github.com/simonvetter/modbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testInfo = DeviceInfo{
	Manufacturer: "ACME",
	Model:        "Battery 20",
	Version:      "1.0.0",
	Serial:       "SN-0001",
	UnitId:       1,
}

func TestRegisterMapLayout(t *testing.T) {
	m := NewRegisterMap(testInfo, true)

	regs, err := m.read(1, 40000, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint16{0x5375, 0x6e53}, regs)

	regs, err = m.read(1, 40002, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint16{SUNSPEC_WK_COMMON, COMMON_BLOCK_LENGTH}, regs)

	regs, err = m.read(1, 40070, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint16{SUNSPEC_WK_INVERTER, INVERTER_BLOCK_LENGTH}, regs)

	regs, err = m.read(1, 40122, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint16{SUNSPEC_WK_STORAGE, STORAGE_BLOCK_LENGTH}, regs)

	regs, err = m.read(1, 40148, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint16{SUNSPEC_WK_END, 0}, regs)

	_, err = m.read(1, 40149, 2)
	assert.ErrorIs(t, err, modbus.ErrIllegalDataAddress)
	_, err = m.read(1, 100, 1)
	assert.ErrorIs(t, err, modbus.ErrIllegalDataAddress)
	_, err = m.read(2, 40000, 1)
	assert.ErrorIs(t, err, modbus.ErrIllegalFunction)
}

func TestRegisterMapUpdate(t *testing.T) {
	m := NewRegisterMap(testInfo, true)
	m.Update(DeviceState{
		PowerWatt:      -1250,
		OperatingState: InverterStatusMPPT,
		Storage: &StorageState{
			StateOfCharge: 57.5,
			MaxChargeWatt: 5000,
			ChargeStatus:  StorageChargeStatusCharging,
		},
	})

	regs, err := m.read(1, 40070+inverterW, 2)
	require.NoError(t, err)
	assert.Equal(t, int16(-1250), int16(regs[0]))
	assert.Equal(t, uint16(0), regs[1])

	regs, err = m.read(1, 40122+storageChaState, 1)
	require.NoError(t, err)
	assert.Equal(t, uint16(5750), regs[0])

	// large values get a scale factor
	m.Update(DeviceState{PowerWatt: 50000})
	regs, err = m.read(1, 40070+inverterW, 2)
	require.NoError(t, err)
	assert.Equal(t, int16(5000), int16(regs[0]))
	assert.Equal(t, int16(1), int16(regs[1]))
}

func TestRegisterMapIsReadOnly(t *testing.T) {
	m := NewRegisterMap(testInfo, false)
	_, err := m.HandleHoldingRegisters(&modbus.HoldingRegistersRequest{UnitId: 1, Addr: 40000, Quantity: 1, IsWrite: true, Args: []uint16{1}})
	assert.ErrorIs(t, err, modbus.ErrIllegalFunction)
	_, err = m.HandleCoils(&modbus.CoilsRequest{UnitId: 1, Addr: 0, Quantity: 1})
	assert.ErrorIs(t, err, modbus.ErrIllegalFunction)

	// no storage block: the end marker follows the inverter model
	regs, err := m.read(1, 40122, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint16{SUNSPEC_WK_END, 0}, regs)
}

func TestServerRoundTrip(t *testing.T) {
	url := "tcp://127.0.0.1:15602"
	server, err := NewServer(url, testInfo, true)
	require.NoError(t, err)
	require.NoError(t, server.Start())
	defer server.Stop()

	server.Update(DeviceState{
		PowerWatt:      2500,
		OperatingState: InverterStatusStarting,
		Storage: &StorageState{
			StateOfCharge: 42.25,
			MaxChargeWatt: 5000,
			ChargeStatus:  StorageChargeStatusCharging,
		},
	})

	reader, err := NewReader(url, 1, time.Second, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, reader.Open())
	defer reader.Close()

	assert.True(t, reader.HasStorage())

	info, err := reader.GetInfo()
	require.NoError(t, err)
	assert.Equal(t, testInfo, *info)

	state, err := reader.GetState()
	require.NoError(t, err)
	assert.InDelta(t, 2500, state.PowerWatt, 0.001)
	assert.Equal(t, uint16(InverterStatusStarting), state.OperatingState)
	require.NotNil(t, state.Storage)
	assert.InDelta(t, 42.25, state.Storage.StateOfCharge, 0.001)
	assert.Equal(t, uint32(5000), state.Storage.MaxChargeWatt)
	assert.Equal(t, StorageChargeStatusChargingStr, state.Storage.ChargeStatusStr)
}
