package leds

import (
	"math"

	"github.com/juju/loggo"
	"github.com/pkg/errors"
	"github.com/warthog618/go-gpiocdev"

	"bb-battery-state/config"
	"bb-battery-state/params"
	"bb-battery-state/publishers/common"
)

var log = loggo.GetLogger("bbbs.leds")

const consumer = "bb-battery-state"

// line is the part of *gpiocdev.Line the publisher needs.
type line interface {
	SetValue(value int) error
	Close() error
}

// NewPublisher requests the configured LED lines as outputs, initially off.
// The LEDs show the charge level as a bar graph.
func NewPublisher(cfg config.LEDs) (common.Publisher, error) {
	p := &Publisher{}
	for _, l := range cfg.Lines {
		gl, err := gpiocdev.RequestLine(l.Chip, l.Line,
			gpiocdev.AsOutput(0),
			gpiocdev.WithConsumer(consumer))
		if err != nil {
			p.Close()
			return nil, errors.Wrapf(err, "requesting line %d on %s", l.Line, l.Chip)
		}
		log.Debugf("configured battery led: chip=%s, line=%d", l.Chip, l.Line)
		p.lines = append(p.lines, gl)
	}
	return p, nil
}

type Publisher struct {
	lines []line
	lit   int
}

func (p *Publisher) Publish(state params.BatteryState) error {
	lit := Level(state, len(p.lines))
	for idx, l := range p.lines {
		val := 0
		if idx < lit {
			val = 1
		}
		if err := l.SetValue(val); err != nil {
			return errors.Wrapf(err, "setting led %d", idx)
		}
	}
	if lit != p.lit {
		log.Debugf("battery leds: %d of %d lit", lit, len(p.lines))
		p.lit = lit
	}
	return nil
}

// Close turns the LEDs off and releases the lines.
func (p *Publisher) Close() error {
	var firstErr error
	for idx, l := range p.lines {
		if err := l.SetValue(0); err != nil {
			log.Warningf("turning off led %d: %q", idx, err)
		}
		if err := l.Close(); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "releasing led %d", idx)
		}
	}
	p.lines = nil
	return firstErr
}

// Level returns how many of count LEDs are lit for state. Nothing is lit
// when no pack is present. Any charge above zero lights at least one LED.
func Level(state params.BatteryState, count int) int {
	if !state.Present || count <= 0 {
		return 0
	}
	lit := int(math.Ceil(state.Percentage * float64(count)))
	if lit < 0 {
		return 0
	}
	if lit > count {
		return count
	}
	return lit
}
