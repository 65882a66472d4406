package i2c

import (
	"context"
	"fmt"
	"log/slog"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"github.com/mklimuk/envsense"
	"github.com/mklimuk/envsense/snsctx"
)

var _ envsense.I2CBus = &GenericBus{}

// GenericBus is an I2C bus opened through periph host drivers (e.g. /dev/i2c-1).
type GenericBus struct {
	bus i2c.BusCloser
}

func NewGenericBus(dev string) (*GenericBus, error) {
	state, err := host.Init()
	if err != nil {
		return nil, fmt.Errorf("could not init host: %w", err)
	}
	for _, driver := range state.Loaded {
		slog.Debug("host driver loaded", "driver", driver.String())
	}
	bus, err := i2creg.Open(dev)
	if err != nil {
		return nil, fmt.Errorf("could not open i2c bus: %w", err)
	}
	return newGenericBus(bus), nil
}

func newGenericBus(bus i2c.BusCloser) *GenericBus {
	return &GenericBus{bus: bus}
}

// SetSpeed changes the bus clock.
func (b *GenericBus) SetSpeed(f physic.Frequency) error {
	err := b.bus.SetSpeed(f)
	if err != nil {
		return fmt.Errorf("could not set i2c bus speed to %s: %w", f, err)
	}
	return nil
}

func (b *GenericBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	err := b.bus.Tx(uint16(address), nil, buffer)
	if err != nil {
		return fmt.Errorf("could not read from i2c bus %x: %w", address, err)
	}
	snsctx.DumpTraffic(ctx, "i2c read", address, buffer)
	return nil
}

func (b *GenericBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	snsctx.DumpTraffic(ctx, "i2c write", address, buffer)
	err := b.bus.Tx(uint16(address), buffer, nil)
	if err != nil {
		return fmt.Errorf("could not write to i2c bus %x: %w", address, err)
	}
	return nil
}

// WriteReadFromAddr sends command and reads the response with a repeated start.
func (b *GenericBus) WriteReadFromAddr(ctx context.Context, address byte, command []byte, buffer []byte) error {
	snsctx.DumpTraffic(ctx, "i2c write", address, command)
	err := b.bus.Tx(uint16(address), command, buffer)
	if err != nil {
		return fmt.Errorf("could not write-read i2c bus %x: %w", address, err)
	}
	snsctx.DumpTraffic(ctx, "i2c read", address, buffer)
	return nil
}

func (b *GenericBus) Release(ctx context.Context) error {
	return nil
}

func (b *GenericBus) Close() error {
	return b.bus.Close()
}
