package common

import (
	"fmt"

	"github.com/juju/loggo"

	"bb-battery-state/params"
)

var log = loggo.GetLogger("bbbs.publishers")

// Publisher delivers battery state records. Only the latest record
// matters; implementations are free to overwrite earlier ones.
type Publisher interface {
	Publish(state params.BatteryState) error
	Close() error
}

// Named is a Publisher with a name used in log messages.
type Named struct {
	Name string
	Publisher
}

// Multi publishes every record to all of its publishers.
type Multi []Named

var _ Publisher = Multi(nil)

// Publish calls every publisher, even when an earlier one fails.
func (m Multi) Publish(state params.BatteryState) error {
	var failed int
	for _, pub := range m {
		if err := pub.Publish(state.Copy()); err != nil {
			log.Errorf("publishing to %s: %q", pub.Name, err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d publishers failed", failed, len(m))
	}
	return nil
}

func (m Multi) Close() error {
	var failed int
	for _, pub := range m {
		if err := pub.Close(); err != nil {
			log.Errorf("closing %s: %q", pub.Name, err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("failed to close %d of %d publishers", failed, len(m))
	}
	return nil
}
