package dbus

import (
	"fmt"
	"testing"

	dbus "github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bb-battery-state/config"
	"bb-battery-state/params"
)

type emitted struct {
	path   dbus.ObjectPath
	name   string
	values []interface{}
}

type fakeConn struct {
	signals []emitted
	closed  bool
	err     error
}

func (f *fakeConn) Emit(path dbus.ObjectPath, name string, values ...interface{}) error {
	f.signals = append(f.signals, emitted{path: path, name: name, values: values})
	return f.err
}

func (f *fakeConn) Close() error {
	f.closed = true
	return nil
}

func TestPublishEmitsSignal(t *testing.T) {
	conn := &fakeConn{}
	p := newPublisher(conn, config.DefaultConfig().DBus)

	state := params.BatteryState{
		Present:               true,
		Voltage:               7.4,
		Percentage:            0.37,
		JackVoltage:           12.1,
		PowerSupplyStatus:     params.PowerSupplyStatusCharging,
		PowerSupplyTechnology: params.PowerSupplyTechnologyLIPO,
	}
	require.NoError(t, p.Publish(state))

	require.Len(t, conn.signals, 1)
	sig := conn.signals[0]
	assert.Equal(t, dbus.ObjectPath("/org/bbblue/BatteryState"), sig.path)
	assert.Equal(t, "org.bbblue.BatteryState.Changed", sig.name)
	assert.Equal(t, []interface{}{
		true, 7.4, 0.37, 12.1,
		params.PowerSupplyStatusCharging,
		params.PowerSupplyHealthUnknown,
		params.PowerSupplyTechnologyLIPO,
	}, sig.values)

	require.NoError(t, p.Close())
	assert.True(t, conn.closed)
}

func TestPublishEmitError(t *testing.T) {
	conn := &fakeConn{err: fmt.Errorf("bus gone")}
	p := newPublisher(conn, config.DefaultConfig().DBus)

	err := p.Publish(params.BatteryState{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "bus gone")
}

func TestSignalBodyTypes(t *testing.T) {
	body := SignalBody(params.BatteryState{})
	sig := dbus.SignatureOf(body...)
	assert.Equal(t, "bdddyyy", sig.String())
}
