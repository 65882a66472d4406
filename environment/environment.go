package environment

import (
	"context"

	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/envsense"
)

// Reading is a compensated environmental sample.
type Reading struct {
	// Temperature in degrees Celsius
	Temperature float32 `json:"temperature" yaml:"temperature"`
	// Pressure in pascals
	Pressure float32 `json:"pressure" yaml:"pressure"`
	// Humidity in %RH, within [0, 100]
	Humidity float32 `json:"humidity" yaml:"humidity"`
}

// Env converts the reading into periph physical units.
func (r Reading) Env() physic.Env {
	return physic.Env{
		Temperature: physic.ZeroCelsius + physic.Temperature(float64(r.Temperature)*float64(physic.Kelvin)),
		Pressure:    physic.Pressure(float64(r.Pressure) * float64(physic.Pascal)),
		Humidity:    physic.RelativeHumidity(float64(r.Humidity) * float64(physic.PercentRH)),
	}
}

// Reader is implemented by sensors producing a full environmental reading.
// The bus is passed on every call and never retained.
type Reader interface {
	Read(ctx context.Context, bus envsense.I2CBus) (Reading, error)
}
