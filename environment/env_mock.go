package environment

import (
	"context"

	"github.com/mklimuk/envsense"
)

var _ Reader = &MockEnvironmentSensor{}

// ReadingBehaviorFunc defines the function signature for environment sensor behavior.
// It returns a full reading or an error.
type ReadingBehaviorFunc func(ctx context.Context) (Reading, error)

// MockEnvironmentSensor is a mock implementation of a temperature, pressure and humidity sensor
// that uses a behavior function to produce results without requiring any hardware.
// The bus passed to Read is ignored and may be nil.
type MockEnvironmentSensor struct {
	behavior   ReadingBehaviorFunc
	resetCalls int
}

// NewMockEnvironmentSensor creates a new mock environment sensor with the given behavior function.
//
// Example usage:
//
//	sensor := NewMockEnvironmentSensor(func(ctx context.Context) (Reading, error) {
//		return Reading{Temperature: 21.5, Pressure: 101325, Humidity: 40}, nil
//	})
func NewMockEnvironmentSensor(behavior ReadingBehaviorFunc) *MockEnvironmentSensor {
	return &MockEnvironmentSensor{behavior: behavior}
}

// NewStaticEnvironmentSensor returns a mock that always reports r.
func NewStaticEnvironmentSensor(r Reading) *MockEnvironmentSensor {
	return NewMockEnvironmentSensor(func(ctx context.Context) (Reading, error) { return r, nil })
}

// Read returns the reading produced by the behavior function.
func (m *MockEnvironmentSensor) Read(ctx context.Context, _ envsense.I2CBus) (Reading, error) {
	return m.behavior(ctx)
}

// Reset only counts calls.
func (m *MockEnvironmentSensor) Reset(ctx context.Context, _ envsense.I2CBus) error {
	m.resetCalls++
	return nil
}

// ResetCalls returns how many times Reset was called.
func (m *MockEnvironmentSensor) ResetCalls() int {
	return m.resetCalls
}
