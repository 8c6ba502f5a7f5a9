package params

import "time"

// Power supply status codes, as defined by sensor_msgs/BatteryState.
const (
	PowerSupplyStatusUnknown     uint8 = 0
	PowerSupplyStatusCharging    uint8 = 1
	PowerSupplyStatusDischarging uint8 = 2
	PowerSupplyStatusNotCharging uint8 = 3
	PowerSupplyStatusFull        uint8 = 4
)

// Power supply health codes. Only unknown is ever reported.
const (
	PowerSupplyHealthUnknown uint8 = 0
)

// Power supply technology codes.
const (
	PowerSupplyTechnologyUnknown uint8 = 0
	PowerSupplyTechnologyNIMH    uint8 = 1
	PowerSupplyTechnologyLION    uint8 = 2
	PowerSupplyTechnologyLIPO    uint8 = 3
	PowerSupplyTechnologyLIFE    uint8 = 4
	PowerSupplyTechnologyNICD    uint8 = 5
	PowerSupplyTechnologyLIMN    uint8 = 6
)

// BatteryState is the record published on every loop iteration.
type BatteryState struct {
	Present               bool      `json:"present"`
	Voltage               float64   `json:"voltage"`
	Percentage            float64   `json:"percentage"`
	PowerSupplyStatus     uint8     `json:"power_supply_status"`
	PowerSupplyHealth     uint8     `json:"power_supply_health"`
	PowerSupplyTechnology uint8     `json:"power_supply_technology"`
	MinCellVoltage        float64   `json:"min_cell_voltage"`
	MaxCellVoltage        float64   `json:"max_cell_voltage"`
	CellVoltage           []float64 `json:"cell_voltage"`
	JackVoltage           float64   `json:"jack_voltage"`
	Timestamp             time.Time `json:"timestamp"`
}

// Copy returns a deep copy of the state, safe to hand to another goroutine.
func (b BatteryState) Copy() BatteryState {
	if b.CellVoltage != nil {
		cells := make([]float64, len(b.CellVoltage))
		copy(cells, b.CellVoltage)
		b.CellVoltage = cells
	}
	return b
}
