package i2c

import (
	"context"
	"fmt"
	"sync"

	"gobot.io/x/gobot/v2/drivers/i2c"

	"github.com/mklimuk/envsense"
	"github.com/mklimuk/envsense/snsctx"
)

var _ envsense.I2CBus = &GobotBus{}

// GobotBus adapts a gobot I2C connector (e.g. a NanoPi adaptor) to the
// address indexed bus interface. Gobot hands out one connection per device
// address; connections are opened lazily and kept until Close.
type GobotBus struct {
	mx        sync.Mutex
	connector i2c.Connector
	busNr     int
	conns     map[byte]i2c.Connection
}

func NewGobotBus(connector i2c.Connector, busNr int) *GobotBus {
	return &GobotBus{
		connector: connector,
		busNr:     busNr,
		conns:     map[byte]i2c.Connection{},
	}
}

func (b *GobotBus) conn(address byte) (i2c.Connection, error) {
	b.mx.Lock()
	defer b.mx.Unlock()
	if c, ok := b.conns[address]; ok {
		return c, nil
	}
	c, err := b.connector.GetI2cConnection(int(address), b.busNr)
	if err != nil {
		return nil, fmt.Errorf("could not open i2c connection to %x on bus %d: %w", address, b.busNr, err)
	}
	b.conns[address] = c
	return c, nil
}

func (b *GobotBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	c, err := b.conn(address)
	if err != nil {
		return err
	}
	n, err := c.Read(buffer)
	if err != nil {
		return fmt.Errorf("could not read from i2c bus %x: %w", address, err)
	}
	if n != len(buffer) {
		return fmt.Errorf("short read from i2c bus %x: %d of %d bytes", address, n, len(buffer))
	}
	snsctx.DumpTraffic(ctx, "i2c read", address, buffer)
	return nil
}

func (b *GobotBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	c, err := b.conn(address)
	if err != nil {
		return err
	}
	snsctx.DumpTraffic(ctx, "i2c write", address, buffer)
	_, err = c.Write(buffer)
	if err != nil {
		return fmt.Errorf("could not write to i2c bus %x: %w", address, err)
	}
	return nil
}

// WriteReadFromAddr uses an I2C block read for single byte register
// commands. Longer commands fall back to a write followed by a read.
func (b *GobotBus) WriteReadFromAddr(ctx context.Context, address byte, command []byte, buffer []byte) error {
	if len(command) != 1 {
		err := b.WriteToAddr(ctx, address, command)
		if err != nil {
			return err
		}
		return b.ReadFromAddr(ctx, address, buffer)
	}
	c, err := b.conn(address)
	if err != nil {
		return err
	}
	snsctx.DumpTraffic(ctx, "i2c write", address, command)
	err = c.ReadBlockData(command[0], buffer)
	if err != nil {
		return fmt.Errorf("could not read block %#x from i2c bus %x: %w", command[0], address, err)
	}
	snsctx.DumpTraffic(ctx, "i2c read", address, buffer)
	return nil
}

func (b *GobotBus) Release(ctx context.Context) error {
	return nil
}

func (b *GobotBus) Close() error {
	b.mx.Lock()
	defer b.mx.Unlock()
	var firstErr error
	for addr, c := range b.conns {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("could not close i2c connection to %x: %w", addr, err)
		}
		delete(b.conns, addr)
	}
	return firstErr
}
