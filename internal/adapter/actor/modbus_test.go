package actor

import (
	"testing"
	"time"

	"github.com/berfenger/s2mockrm/internal/core/domain"
	"github.com/berfenger/s2mockrm/internal/util/actorutil"
	"github.com/berfenger/s2mockrm/pkg/sunspec_modbus"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestModbusActorServesMeasurements(t *testing.T) {

	assert := assert.New(t)

	url := "tcp://127.0.0.1:15603"
	server, err := sunspec_modbus.NewServer(url, sunspec_modbus.DeviceInfo{
		Manufacturer: "ACME",
		Model:        "Battery 20",
		Version:      "test",
		Serial:       "SN-1",
		UnitId:       1,
	}, true)
	require.NoError(t, err)

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	defer as.Shutdown()

	context := as.Root

	props := actor.PropsFromProducer(func() actor.Actor { return NewModbusActor(server, 5000, as.EventStream, logger) })
	pid := context.Spawn(props)
	defer context.Stop(pid)

	result, err := context.RequestFuture(pid, domain.ActorHealthRequest{}, 2*time.Second).Result()
	require.NoError(t, err)
	assert.True(result.(domain.ActorHealthResponse).Healthy)

	fill := 0.8
	as.EventStream.Publish(domain.MeasurementEvent{Measurement: domain.Measurement{
		ControlType: "FRBC",
		PowerW:      -5000,
		FillLevel:   &fill,
	}})

	reader, err := sunspec_modbus.NewReader(url, 1, time.Second, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, reader.Open())
	defer reader.Close()

	require.Eventually(t, func() bool {
		st, err := reader.GetState()
		return err == nil && st.PowerWatt == -5000
	}, 2*time.Second, 50*time.Millisecond)

	st, err := reader.GetState()
	require.NoError(t, err)
	assert.Equal(uint16(sunspec_modbus.InverterStatusMPPT), st.OperatingState)
	require.NotNil(t, st.Storage)
	assert.InDelta(80, st.Storage.StateOfCharge, 0.001)
	assert.Equal(sunspec_modbus.StorageChargeStatusDischargingStr, st.Storage.ChargeStatusStr)
}

func TestMeasurementToDeviceState(t *testing.T) {
	pv := MeasurementToDeviceState(domain.Measurement{PowerW: -1200}, 0)
	assert.Equal(t, uint16(sunspec_modbus.InverterStatusMPPT), pv.OperatingState)
	assert.Nil(t, pv.Storage)

	night := MeasurementToDeviceState(domain.Measurement{PowerW: 0}, 0)
	assert.Equal(t, uint16(sunspec_modbus.InverterStatusSleeping), night.OperatingState)

	curtailed := MeasurementToDeviceState(domain.Measurement{PowerW: -300, Curtailed: true}, 0)
	assert.Equal(t, uint16(sunspec_modbus.InverterStatusThrottled), curtailed.OperatingState)

	full := 1.0
	idle := MeasurementToDeviceState(domain.Measurement{PowerW: 0, FillLevel: &full}, 5000)
	assert.Equal(t, uint16(sunspec_modbus.InverterStatusStandby), idle.OperatingState)
	assert.Equal(t, uint16(sunspec_modbus.StorageChargeStatusFull), idle.Storage.ChargeStatus)
	assert.Equal(t, uint32(5000), idle.Storage.MaxChargeWatt)
}
