package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/juju/loggo"
	"github.com/pkg/errors"

	"bb-battery-state/adc"
	"bb-battery-state/config"
	"bb-battery-state/params"
	"bb-battery-state/publishers/common"
)

var log = loggo.GetLogger("bbbs.worker")

// LoopInterval is the time between two samples.
const LoopInterval = time.Second

// NewWorker returns a worker sampling reader and sending the result to
// publisher. The reader must already be initialized.
func NewWorker(ctx context.Context, cfg *config.Config, reader adc.ADC, publisher common.Publisher) (*Worker, error) {
	if reader == nil {
		return nil, fmt.Errorf("missing adc")
	}
	if publisher == nil {
		return nil, fmt.Errorf("missing publisher")
	}
	if err := cfg.Battery.Validate(); err != nil {
		return nil, errors.Wrap(err, "validating battery config")
	}
	return &Worker{
		ctx:       ctx,
		cfg:       cfg.Battery,
		adc:       reader,
		publisher: publisher,
		closed:    make(chan struct{}),
		quit:      make(chan struct{}),
		interval:  LoopInterval,
		now:       time.Now,
		state:     initialState(cfg.Battery),
	}, nil
}

// initialState is a present, full battery with nothing measured yet.
func initialState(cfg config.Battery) params.BatteryState {
	return params.BatteryState{
		Present:               true,
		Percentage:            1,
		PowerSupplyStatus:     params.PowerSupplyStatusUnknown,
		PowerSupplyHealth:     params.PowerSupplyHealthUnknown,
		PowerSupplyTechnology: cfg.PowerSupplyTechnology,
		MinCellVoltage:        cfg.MinCellVoltage,
		MaxCellVoltage:        cfg.MaxCellVoltage,
		CellVoltage:           make([]float64, CellCount),
	}
}

type Worker struct {
	cfg       config.Battery
	adc       adc.ADC
	publisher common.Publisher

	state params.BatteryState
	mux   sync.Mutex

	interval time.Duration
	now      func() time.Time

	ctx    context.Context
	closed chan struct{}
	quit   chan struct{}
}

// State returns a copy of the current battery state.
func (w *Worker) State() params.BatteryState {
	w.mux.Lock()
	defer w.mux.Unlock()
	return w.state.Copy()
}

func readVoltages(reader adc.ADC) (pack, jack float64, err error) {
	pack, err = reader.ReadPackVoltage()
	if err != nil {
		return pack, jack, errors.Wrap(err, "reading pack voltage")
	}
	jack, err = reader.ReadJackVoltage()
	if err != nil {
		return pack, jack, errors.Wrap(err, "reading jack voltage")
	}
	return pack, jack, nil
}

// sample reads the ADC and updates the battery state. On a failed read the
// state is left untouched.
func (w *Worker) sample() error {
	packVoltage, jackVoltage, err := readVoltages(w.adc)
	if err != nil {
		return errors.Wrap(err, "can't read voltages")
	}
	if packVoltage < 0 || jackVoltage < 0 {
		return fmt.Errorf("can't read voltages: pack=%.2f jack=%.2f", packVoltage, jackVoltage)
	}

	w.mux.Lock()
	defer w.mux.Unlock()

	present := true
	if Disconnected(packVoltage) {
		packVoltage = 0
		present = false
	}
	if Disconnected(jackVoltage) {
		jackVoltage = 0
	}
	if present != w.state.Present {
		log.Infof("battery pack present: %v", present)
	}

	cellVoltage := CellVoltage(packVoltage)
	percentage, full := Percentage(cellVoltage)

	w.state.Present = present
	w.state.Voltage = packVoltage
	w.state.JackVoltage = jackVoltage
	w.state.Percentage = percentage
	w.state.PowerSupplyStatus = ChargeStatus(present, full, jackVoltage > 0)
	w.state.CellVoltage = []float64{cellVoltage, cellVoltage}
	w.state.Timestamp = w.now()

	log.Infof("Pack: %0.2fV   Cell: %0.2fV   DC Jack: %0.2fV  Percentage: %0.2f",
		packVoltage, cellVoltage, jackVoltage, percentage*100)
	return nil
}

// publish sends the current state, whether or not the last sample succeeded.
func (w *Worker) publish() error {
	state := w.State()
	if err := w.publisher.Publish(state); err != nil {
		return errors.Wrap(err, "publishing battery state")
	}
	return nil
}

func (w *Worker) step() {
	if err := w.sample(); err != nil {
		log.Errorf("%s", err)
	}
	if err := w.publish(); err != nil {
		log.Errorf("failed to publish state: %s", err)
	}
}

func (w *Worker) loop() {
	timer := time.NewTicker(w.interval)
	defer func() {
		timer.Stop()
		close(w.closed)
	}()

	w.step()
	for {
		select {
		case <-timer.C:
			w.step()
		case <-w.quit:
			return
		case <-w.ctx.Done():
			return
		}
	}
}

func (w *Worker) Start() error {
	log.Infof("sampling battery every %s", w.interval)
	go w.loop()
	return nil
}

func (w *Worker) Stop() error {
	close(w.quit)
	select {
	case <-w.closed:
		return nil
	case <-time.After(30 * time.Second):
		return fmt.Errorf("timeout waiting for worker to exit")
	}
}
