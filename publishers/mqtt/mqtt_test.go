package mqtt

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bb-battery-state/config"
	"bb-battery-state/params"
)

func TestEncodeState(t *testing.T) {
	state := params.BatteryState{
		Present:               true,
		Voltage:               7.4,
		Percentage:            0.3765,
		PowerSupplyStatus:     params.PowerSupplyStatusDischarging,
		PowerSupplyTechnology: params.PowerSupplyTechnologyLIPO,
		MinCellVoltage:        3.3,
		MaxCellVoltage:        4.15,
		CellVoltage:           []float64{3.7, 3.7},
	}

	payload, err := EncodeState(state)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, true, decoded["present"])
	assert.Equal(t, 7.4, decoded["voltage"])
	assert.Equal(t, 0.3765, decoded["percentage"])
	assert.Equal(t, 2.0, decoded["power_supply_status"])
	assert.Equal(t, 3.0, decoded["power_supply_technology"])
	assert.Equal(t, []interface{}{3.7, 3.7}, decoded["cell_voltage"])
}

func TestNewPublisherRequiresBroker(t *testing.T) {
	_, err := NewPublisher(config.MQTT{Enabled: true, Topic: "battery_state"})
	assert.Error(t, err)
}
