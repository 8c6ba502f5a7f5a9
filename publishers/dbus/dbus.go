package dbus

import (
	dbus "github.com/godbus/dbus/v5"
	"github.com/juju/loggo"
	"github.com/pkg/errors"

	"bb-battery-state/config"
	"bb-battery-state/params"
	"bb-battery-state/publishers/common"
)

var log = loggo.GetLogger("bbbs.dbus")

// SignalMember is the member name of the emitted signal.
const SignalMember = "Changed"

// emitter is the part of *dbus.Conn the publisher needs.
type emitter interface {
	Emit(path dbus.ObjectPath, name string, values ...interface{}) error
	Close() error
}

// NewPublisher connects to the system bus. Each record is broadcast as a
// signal with the signature (bdddyyy):
//
//	present, voltage, percentage, jack voltage,
//	power supply status, health, technology
func NewPublisher(cfg config.DBus) (common.Publisher, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, errors.Wrap(err, "creating dbus connection")
	}
	log.Infof("connected to system bus, emitting %s.%s on %s", cfg.Interface, SignalMember, cfg.Path)
	return newPublisher(conn, cfg), nil
}

func newPublisher(conn emitter, cfg config.DBus) *Publisher {
	return &Publisher{
		conn:   conn,
		path:   dbus.ObjectPath(cfg.Path),
		signal: cfg.Interface + "." + SignalMember,
	}
}

type Publisher struct {
	conn   emitter
	path   dbus.ObjectPath
	signal string
}

func (p *Publisher) Publish(state params.BatteryState) error {
	if err := p.conn.Emit(p.path, p.signal, SignalBody(state)...); err != nil {
		return errors.Wrapf(err, "emitting %s", p.signal)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.conn.Close()
}

// SignalBody returns the signal arguments for state.
func SignalBody(state params.BatteryState) []interface{} {
	return []interface{}{
		state.Present,
		state.Voltage,
		state.Percentage,
		state.JackVoltage,
		state.PowerSupplyStatus,
		state.PowerSupplyHealth,
		state.PowerSupplyTechnology,
	}
}
