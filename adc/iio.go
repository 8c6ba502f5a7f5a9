package adc

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/juju/loggo"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"bb-battery-state/config"
)

var log = loggo.GetLogger("bbbs.adc")

// NewIIO returns an ADC backed by the Linux IIO sysfs interface. Nothing
// is opened until Init is called.
func NewIIO(cfg config.ADC) *IIO {
	return &IIO{
		cfg: cfg,
		pack: &channel{
			path:    channelPath(cfg, cfg.PackChannel),
			divider: cfg.PackDivider,
			offset:  cfg.PackOffset,
			fd:      -1,
		},
		jack: &channel{
			path:    channelPath(cfg, cfg.JackChannel),
			divider: cfg.JackDivider,
			offset:  cfg.JackOffset,
			fd:      -1,
		},
	}
}

func channelPath(cfg config.ADC, ch int) string {
	return filepath.Join(cfg.SysfsRoot, cfg.Device, fmt.Sprintf("in_voltage%d_raw", ch))
}

type channel struct {
	path    string
	divider float64
	offset  float64
	fd      int
}

type IIO struct {
	cfg  config.ADC
	pack *channel
	jack *channel

	mux sync.Mutex
}

var _ ADC = (*IIO)(nil)

// Init opens both channel files. The descriptors stay open until Cleanup.
func (i *IIO) Init() error {
	i.mux.Lock()
	defer i.mux.Unlock()

	for _, ch := range []*channel{i.pack, i.jack} {
		if ch.fd >= 0 {
			continue
		}
		fd, err := unix.Open(ch.path, unix.O_RDONLY|unix.O_CLOEXEC, 0)
		if err != nil {
			i.closeLocked()
			return errors.Wrapf(err, "opening %s", ch.path)
		}
		ch.fd = fd
		log.Debugf("opened %s", ch.path)
	}
	return nil
}

func (i *IIO) ReadPackVoltage() (float64, error) {
	return i.readVolts(i.pack)
}

func (i *IIO) ReadJackVoltage() (float64, error) {
	return i.readVolts(i.jack)
}

func (i *IIO) readVolts(ch *channel) (float64, error) {
	i.mux.Lock()
	defer i.mux.Unlock()

	if ch.fd < 0 {
		return -1, fmt.Errorf("adc not initialized")
	}
	raw, err := readRaw(ch.fd)
	if err != nil {
		return -1, errors.Wrapf(err, "reading %s", ch.path)
	}
	return RawToVolts(raw, i.cfg.ReferenceVoltage, i.cfg.Resolution, ch.divider, ch.offset), nil
}

// readRaw reads the sysfs attribute from the start. IIO attributes are
// regenerated on every read from offset 0, so the descriptor can be reused.
func readRaw(fd int) (int, error) {
	buf := make([]byte, 32)
	n, err := unix.Pread(fd, buf, 0)
	if err != nil {
		return -1, err
	}
	value, err := strconv.Atoi(strings.TrimSpace(string(buf[:n])))
	if err != nil {
		return -1, errors.Wrap(err, "parsing raw value")
	}
	if value < 0 {
		return -1, fmt.Errorf("negative raw value %d", value)
	}
	return value, nil
}

// RawToVolts converts a raw ADC sample to volts at the divider input.
func RawToVolts(raw int, reference float64, resolution int, divider, offset float64) float64 {
	pin := float64(raw) * reference / float64(resolution)
	return pin*divider + offset
}

func (i *IIO) Cleanup() error {
	i.mux.Lock()
	defer i.mux.Unlock()
	return i.closeLocked()
}

func (i *IIO) closeLocked() error {
	var firstErr error
	for _, ch := range []*channel{i.pack, i.jack} {
		if ch.fd < 0 {
			continue
		}
		if err := unix.Close(ch.fd); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "closing %s", ch.path)
		}
		ch.fd = -1
	}
	return firstErr
}
