package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/godbus/dbus/v5"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

type LogLevel string

const (
	ClientID          = "bb-battery-state"
	Trace    LogLevel = "trace"
	Debug    LogLevel = "debug"
	Info     LogLevel = "info"
	Warning  LogLevel = "warning"
	Error    LogLevel = "error"
)

// Environment variables that override secrets from the config file.
const (
	EnvMQTTUsername  = "BB_BATTERY_MQTT_USERNAME"
	EnvMQTTPassword  = "BB_BATTERY_MQTT_PASSWORD"
	EnvRedisPassword = "BB_BATTERY_REDIS_PASSWORD"
)

// NewConfig decodes cfgFile on top of the defaults, applies environment
// overrides and validates the result.
func NewConfig(cfgFile string) (*Config, error) {
	config := DefaultConfig()
	if _, err := toml.DecodeFile(cfgFile, &config); err != nil {
		return nil, errors.Wrap(err, "decoding toml")
	}
	if err := config.loadEnv(); err != nil {
		return nil, errors.Wrap(err, "loading environment")
	}
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "validating config")
	}
	return &config, nil
}

// DefaultConfig returns the configuration used for any key missing from
// the config file.
func DefaultConfig() Config {
	return Config{
		LogLevel: Info,
		Battery: Battery{
			PowerSupplyTechnology: 3,
			MinCellVoltage:        3.3,
			MaxCellVoltage:        4.15,
		},
		ADC: ADC{
			SysfsRoot:        "/sys/bus/iio/devices",
			Device:           "iio:device0",
			PackChannel:      6,
			JackChannel:      5,
			ReferenceVoltage: 1.8,
			Resolution:       4095,
			PackDivider:      11.0,
			JackDivider:      11.0,
		},
		MQTT: MQTT{
			MQTTSettings: MQTTSettings{
				Port: 1883,
			},
			Topic: "battery_state",
		},
		Redis: Redis{
			Address: "127.0.0.1:6379",
			Hash:    "battery",
			Channel: "battery_state",
		},
		DBus: DBus{
			Path:      "/org/bbblue/BatteryState",
			Interface: "org.bbblue.BatteryState",
		},
	}
}

type Config struct {
	// LogFile is the path to the log on disk. Logs go to stdout when empty.
	LogFile string `toml:"log_file"`
	// LogLevel sets the logging output to desired level.
	LogLevel LogLevel `toml:"log_level"`
	// EnvFile is an optional dotenv file holding secrets.
	EnvFile string `toml:"env_file"`

	Battery Battery `toml:"battery"`
	ADC     ADC     `toml:"adc"`

	MQTT  MQTT  `toml:"mqtt"`
	Redis Redis `toml:"redis"`
	DBus  DBus  `toml:"dbus"`
	LEDs  LEDs  `toml:"leds"`
}

func (c *Config) loadEnv() error {
	if c.EnvFile != "" {
		if err := godotenv.Load(c.EnvFile); err != nil {
			return errors.Wrapf(err, "reading %s", c.EnvFile)
		}
	}
	if val := os.Getenv(EnvMQTTUsername); val != "" {
		c.MQTT.Username = val
	}
	if val := os.Getenv(EnvMQTTPassword); val != "" {
		c.MQTT.Password = val
	}
	if val := os.Getenv(EnvRedisPassword); val != "" {
		c.Redis.Password = val
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.LogLevel {
	case Trace, Debug, Info, Warning, Error:
	case "":
		c.LogLevel = Info
	default:
		return fmt.Errorf("invalid log_level: %q", c.LogLevel)
	}

	if err := c.Battery.Validate(); err != nil {
		return errors.Wrap(err, "validating battery")
	}

	if err := c.ADC.Validate(); err != nil {
		return errors.Wrap(err, "validating adc")
	}

	if !c.MQTT.Enabled && !c.Redis.Enabled && !c.DBus.Enabled && !c.LEDs.Enabled {
		return fmt.Errorf("no publishers enabled")
	}

	if c.MQTT.Enabled {
		if err := c.MQTT.Validate(); err != nil {
			return errors.Wrap(err, "validating mqtt")
		}
	}

	if c.Redis.Enabled {
		if err := c.Redis.Validate(); err != nil {
			return errors.Wrap(err, "validating redis")
		}
	}

	if c.DBus.Enabled {
		if err := c.DBus.Validate(); err != nil {
			return errors.Wrap(err, "validating dbus")
		}
	}

	if c.LEDs.Enabled {
		if err := c.LEDs.Validate(); err != nil {
			return errors.Wrap(err, "validating leds")
		}
	}
	return nil
}

type Battery struct {
	// PowerSupplyTechnology is reported as is on every record. The default
	// (3) is LIPO.
	PowerSupplyTechnology uint8 `toml:"power_supply_technology"`
	// MinCellVoltage and MaxCellVoltage are published with the record.
	// The charge curve keeps its own fixed 3.3V/4.15V endpoints.
	MinCellVoltage float64 `toml:"min_cell_voltage"`
	MaxCellVoltage float64 `toml:"max_cell_voltage"`
}

func (b *Battery) Validate() error {
	if b.MinCellVoltage <= 0 {
		return fmt.Errorf("min_cell_voltage must be positive")
	}
	if b.MinCellVoltage >= b.MaxCellVoltage {
		return fmt.Errorf("min_cell_voltage (%.2f) must be lower than max_cell_voltage (%.2f)", b.MinCellVoltage, b.MaxCellVoltage)
	}
	return nil
}

type ADC struct {
	// SysfsRoot is the directory holding the IIO devices.
	SysfsRoot string `toml:"sysfs_root"`
	// Device is the IIO device name, eg: iio:device0
	Device      string `toml:"device"`
	PackChannel int    `toml:"pack_channel"`
	JackChannel int    `toml:"jack_channel"`
	// ReferenceVoltage is the voltage of a full scale reading.
	ReferenceVoltage float64 `toml:"reference_voltage"`
	// Resolution is the raw value of a full scale reading.
	Resolution int `toml:"resolution"`
	// PackDivider and JackDivider undo the resistor dividers in front of the
	// ADC pins.
	PackDivider float64 `toml:"pack_divider"`
	JackDivider float64 `toml:"jack_divider"`
	PackOffset  float64 `toml:"pack_offset"`
	JackOffset  float64 `toml:"jack_offset"`
}

func (a *ADC) Validate() error {
	if a.SysfsRoot == "" || a.Device == "" {
		return fmt.Errorf("sysfs_root and device are required")
	}
	if a.PackChannel < 0 || a.JackChannel < 0 {
		return fmt.Errorf("invalid channel")
	}
	if a.PackChannel == a.JackChannel {
		return fmt.Errorf("pack_channel and jack_channel must differ")
	}
	if a.ReferenceVoltage <= 0 {
		return fmt.Errorf("reference_voltage must be positive")
	}
	if a.Resolution <= 0 {
		return fmt.Errorf("resolution must be positive")
	}
	if a.PackDivider == 0 {
		a.PackDivider = 1
	}
	if a.JackDivider == 0 {
		a.JackDivider = 1
	}
	return nil
}

type MQTT struct {
	MQTTSettings
	Enabled bool `toml:"enabled"`
	// Topic is the topic the battery state is published on.
	Topic string `toml:"topic"`
}

func (m *MQTT) Validate() error {
	if err := m.MQTTSettings.Validate(); err != nil {
		return err
	}
	if m.Topic == "" {
		return fmt.Errorf("topic cannot be empty")
	}
	return nil
}

type MQTTSettings struct {
	Broker   string `toml:"broker"`
	Port     int    `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	ClientID string `toml:"client_id"`
}

func (m *MQTTSettings) BrokerURI() (string, error) {
	if err := m.Validate(); err != nil {
		return "", errors.Wrap(err, "fetching broker URI")
	}

	uri := fmt.Sprintf("tcp://%s:%d", m.Broker, m.Port)
	return uri, nil
}

func (m *MQTTSettings) ClientOptions() (*mqtt.ClientOptions, error) {
	brokerURI, err := m.BrokerURI()
	if err != nil {
		return nil, errors.Wrap(err, "creating mqtt options")
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURI)
	if m.Username != "" {
		opts.SetUsername(m.Username)
	}
	if m.Password != "" {
		opts.SetPassword(m.Password)
	}
	opts.SetClientID(m.ClientID)
	return opts, nil
}

func (m *MQTTSettings) Validate() error {
	if m.Broker == "" {
		return fmt.Errorf("broker cannot be empty when mqtt is used")
	}

	if m.Port == 0 {
		m.Port = 1883
	}

	if m.ClientID == "" {
		m.ClientID = ClientID
	}
	return nil
}

type Redis struct {
	Enabled  bool   `toml:"enabled"`
	Address  string `toml:"address"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	// Hash holds the latest battery state, one field per value.
	Hash string `toml:"hash"`
	// Channel is notified after every update of Hash.
	Channel string `toml:"channel"`
}

func (r *Redis) Validate() error {
	if r.Address == "" {
		return fmt.Errorf("address cannot be empty when redis is used")
	}
	if r.Hash == "" || r.Channel == "" {
		return fmt.Errorf("hash and channel are required")
	}
	return nil
}

type DBus struct {
	Enabled bool `toml:"enabled"`
	// Path is the object path the signal is emitted from.
	Path string `toml:"path"`
	// Interface is the signal interface. The member is always "Changed".
	Interface string `toml:"interface"`
}

func (d *DBus) Validate() error {
	if !dbus.ObjectPath(d.Path).IsValid() {
		return fmt.Errorf("invalid object path: %q", d.Path)
	}
	if !validInterfaceName(d.Interface) {
		return fmt.Errorf("invalid interface name: %q", d.Interface)
	}
	return nil
}

// validInterfaceName checks the D-Bus rules for interface names: at most
// 255 bytes, two or more dot separated elements, each made of
// [A-Za-z0-9_] and not starting with a digit.
func validInterfaceName(name string) bool {
	if name == "" || len(name) > 255 {
		return false
	}
	elements := strings.Split(name, ".")
	if len(elements) < 2 {
		return false
	}
	for _, elem := range elements {
		if elem == "" || (elem[0] >= '0' && elem[0] <= '9') {
			return false
		}
		for _, c := range elem {
			switch {
			case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_':
			default:
				return false
			}
		}
	}
	return true
}

type LEDs struct {
	Enabled bool `toml:"enabled"`
	// Lines lists the battery LEDs, lowest level first.
	Lines []LEDLine `toml:"lines"`
}

func (l *LEDs) Validate() error {
	if len(l.Lines) == 0 {
		return fmt.Errorf("no led lines defined")
	}
	for _, line := range l.Lines {
		if err := line.Validate(); err != nil {
			return errors.Wrap(err, "validating led line")
		}
	}
	return nil
}

type LEDLine struct {
	// Chip is the gpiochip name, eg: gpiochip0
	Chip string `toml:"chip"`
	Line int    `toml:"line"`
}

func (l *LEDLine) Validate() error {
	if l.Chip == "" {
		return fmt.Errorf("chip cannot be empty")
	}
	if l.Line < 0 {
		return fmt.Errorf("invalid line %d on %s", l.Line, l.Chip)
	}
	return nil
}
