package worker

import (
	"math"

	"bb-battery-state/params"
)

const (
	// VoltageDisconnect is the reading below which nothing is considered
	// connected to a channel.
	VoltageDisconnect = 1.0
	// CellCount is the number of cells on the balance connector.
	CellCount = 2

	cellVoltageFull  = 4.15
	cellVoltageEmpty = 3.3

	// Linear fit through (3.3V, 0) and (4.15V, 1).
	percentageSlope     = 1.176470588
	percentageIntercept = -3.882352941
)

// Disconnected reports whether a channel reading means nothing is plugged in.
func Disconnected(volts float64) bool {
	return volts < VoltageDisconnect
}

// CellVoltage returns the voltage of a single cell of the pack.
func CellVoltage(packVoltage float64) float64 {
	return packVoltage / CellCount
}

// Percentage maps a cell voltage to a charge estimate in [0, 1]. The
// boolean is true when the cell counts as full.
func Percentage(cellVoltage float64) (float64, bool) {
	switch {
	case cellVoltage >= cellVoltageFull:
		return 1, true
	case cellVoltage <= cellVoltageEmpty:
		return 0, false
	default:
		// The rounded coefficients dip just below zero right above 3.3V.
		return math.Max(0, percentageSlope*cellVoltage+percentageIntercept), false
	}
}

// ChargeStatus derives the power supply status code. A full pack always
// reports full; otherwise a live DC jack means the pack is charging.
func ChargeStatus(present, full, jackConnected bool) uint8 {
	switch {
	case !present:
		return params.PowerSupplyStatusUnknown
	case full:
		return params.PowerSupplyStatusFull
	case jackConnected:
		return params.PowerSupplyStatusCharging
	default:
		return params.PowerSupplyStatusDischarging
	}
}
