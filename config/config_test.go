package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestNewConfigDefaults(t *testing.T) {
	path := writeFile(t, "config.toml", `
[mqtt]
enabled = true
broker = "10.0.0.2"
`)

	cfg, err := NewConfig(path)
	require.NoError(t, err)

	assert.Equal(t, Info, cfg.LogLevel)
	assert.Equal(t, uint8(3), cfg.Battery.PowerSupplyTechnology)
	assert.Equal(t, 3.3, cfg.Battery.MinCellVoltage)
	assert.Equal(t, 4.15, cfg.Battery.MaxCellVoltage)
	assert.Equal(t, "iio:device0", cfg.ADC.Device)
	assert.Equal(t, 6, cfg.ADC.PackChannel)
	assert.Equal(t, 5, cfg.ADC.JackChannel)
	assert.Equal(t, 1883, cfg.MQTT.Port)
	assert.Equal(t, "battery_state", cfg.MQTT.Topic)
	assert.Equal(t, ClientID, cfg.MQTT.ClientID)
	assert.False(t, cfg.Redis.Enabled)
}

func TestNewConfigOverrides(t *testing.T) {
	path := writeFile(t, "config.toml", `
log_level = "debug"

[battery]
power_supply_technology = 2
min_cell_voltage = 3.0
max_cell_voltage = 4.2

[adc]
pack_channel = 1
jack_channel = 2

[redis]
enabled = true
address = "localhost:6380"
hash = "bb"
channel = "bb-changed"

[leds]
enabled = true
lines = [
  { chip = "gpiochip0", line = 27 },
  { chip = "gpiochip2", line = 3 },
]
`)

	cfg, err := NewConfig(path)
	require.NoError(t, err)

	assert.Equal(t, Debug, cfg.LogLevel)
	assert.Equal(t, uint8(2), cfg.Battery.PowerSupplyTechnology)
	assert.Equal(t, 3.0, cfg.Battery.MinCellVoltage)
	assert.Equal(t, 4.2, cfg.Battery.MaxCellVoltage)
	assert.Equal(t, 1, cfg.ADC.PackChannel)
	assert.Equal(t, 2, cfg.ADC.JackChannel)
	assert.Equal(t, "localhost:6380", cfg.Redis.Address)
	require.Len(t, cfg.LEDs.Lines, 2)
	assert.Equal(t, LEDLine{Chip: "gpiochip2", Line: 3}, cfg.LEDs.Lines[1])
}

func TestNewConfigInvalid(t *testing.T) {
	tests := []struct {
		name     string
		contents string
	}{
		{
			name:     "no publishers",
			contents: ``,
		},
		{
			name: "min above max",
			contents: `
[battery]
min_cell_voltage = 4.2
max_cell_voltage = 3.3
[dbus]
enabled = true
`,
		},
		{
			name: "same adc channel",
			contents: `
[adc]
pack_channel = 5
jack_channel = 5
[dbus]
enabled = true
`,
		},
		{
			name: "mqtt without broker",
			contents: `
[mqtt]
enabled = true
`,
		},
		{
			name: "leds without lines",
			contents: `
[leds]
enabled = true
`,
		},
		{
			name: "bad log level",
			contents: `
log_level = "loud"
[dbus]
enabled = true
`,
		},
		{
			name:     "not toml",
			contents: `[battery`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "config.toml", tt.contents)
			_, err := NewConfig(path)
			assert.Error(t, err)
		})
	}
}

func TestNewConfigEnvFile(t *testing.T) {
	envFile := writeFile(t, "secrets.env", "BB_BATTERY_MQTT_USERNAME=robot\nBB_BATTERY_MQTT_PASSWORD=hunter2\n")
	t.Cleanup(func() {
		os.Unsetenv(EnvMQTTUsername)
		os.Unsetenv(EnvMQTTPassword)
	})

	path := writeFile(t, "config.toml", `
env_file = "`+envFile+`"

[mqtt]
enabled = true
broker = "10.0.0.2"
username = "from-file"
`)

	cfg, err := NewConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "robot", cfg.MQTT.Username)
	assert.Equal(t, "hunter2", cfg.MQTT.Password)
}

func TestNewConfigEnvOverride(t *testing.T) {
	t.Setenv(EnvRedisPassword, "s3cret")

	path := writeFile(t, "config.toml", `
[redis]
enabled = true
`)

	cfg, err := NewConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Redis.Password)
}

func TestMQTTSettingsBrokerURI(t *testing.T) {
	m := MQTTSettings{Broker: "mosquitto.local"}
	uri, err := m.BrokerURI()
	require.NoError(t, err)
	assert.Equal(t, "tcp://mosquitto.local:1883", uri)

	opts, err := m.ClientOptions()
	require.NoError(t, err)
	assert.Equal(t, ClientID, opts.ClientID)

	empty := MQTTSettings{}
	_, err = empty.BrokerURI()
	assert.Error(t, err)
}

func TestDBusValidate(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		iface     string
		expectErr bool
	}{
		{name: "defaults", path: "/org/bbblue/BatteryState", iface: "org.bbblue.BatteryState"},
		{name: "underscores", path: "/battery_0", iface: "org._bbblue.Battery_State2"},
		{name: "relative path", path: "org/bbblue", iface: "org.bbblue.BatteryState", expectErr: true},
		{name: "trailing slash", path: "/org/bbblue/", iface: "org.bbblue.BatteryState", expectErr: true},
		{name: "empty path element", path: "/org//bbblue", iface: "org.bbblue.BatteryState", expectErr: true},
		{name: "single element", path: "/org/bbblue", iface: "battery", expectErr: true},
		{name: "empty element", path: "/org/bbblue", iface: "org..bbblue", expectErr: true},
		{name: "leading digit", path: "/org/bbblue", iface: "org.1bbblue", expectErr: true},
		{name: "dash", path: "/org/bbblue", iface: "org.bb-blue", expectErr: true},
		{name: "empty", path: "/org/bbblue", iface: "", expectErr: true},
		{name: "too long", path: "/org/bbblue", iface: "org." + strings.Repeat("a", 252), expectErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := DBus{Enabled: true, Path: tt.path, Interface: tt.iface}
			err := d.Validate()
			if tt.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewConfigInvalidDBusInterface(t *testing.T) {
	path := writeFile(t, "config.toml", `
[dbus]
enabled = true
interface = "battery"
`)
	_, err := NewConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid interface name")
}
