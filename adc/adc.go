package adc

// ADC reads the two voltages the battery worker needs. Readings are in
// volts. An implementation may report a failed read either with an error
// or with a negative value.
type ADC interface {
	Init() error
	ReadPackVoltage() (float64, error)
	ReadJackVoltage() (float64, error)
	Cleanup() error
}
