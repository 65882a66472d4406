package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"
	"gobot.io/x/gobot/v2/platforms/friendlyelec/nanopi"

	"github.com/mklimuk/envsense"
	"github.com/mklimuk/envsense/adapter"
	"github.com/mklimuk/envsense/config"
	"github.com/mklimuk/envsense/environment"
	"github.com/mklimuk/envsense/i2c"
	"github.com/mklimuk/envsense/server"
)

var errMockAdapter = errors.New("not available with the mock adapter")

var busFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "adapter",
		Aliases: []string{"a"},
		Usage:   "bus adapter: mcp2221, generic, gobot or mock",
	},
	&cli.StringFlag{
		Name:    "device",
		Aliases: []string{"d"},
		Usage:   "periph bus name for the generic adapter",
	},
	&cli.IntFlag{
		Name:  "bus",
		Usage: "bus number for the gobot adapter",
	},
	&cli.StringFlag{
		Name:  "address",
		Usage: "sensor I2C address (0x76 or 0x77)",
	},
}

// mockReading is what the mock adapter reports.
var mockReading = environment.Reading{Temperature: 21.5, Pressure: 101325, Humidity: 40}

// session bundles an opened bus with the sensor bound to it.
type session struct {
	sensor server.Sensor
	bme    *environment.BME280
	bus    envsense.I2CBus
	close  func() error
}

func (s *session) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

func resolveConfig(c *cli.Context) (config.Config, error) {
	cfg := appConfig
	if c.IsSet("adapter") {
		cfg.Bus.Adapter = c.String("adapter")
	}
	if c.IsSet("device") {
		cfg.Bus.Device = c.String("device")
	}
	if c.IsSet("bus") {
		cfg.Bus.Number = c.Int("bus")
	}
	if c.IsSet("address") {
		addr, err := strconv.ParseUint(c.String("address"), 0, 8)
		if err != nil {
			return cfg, fmt.Errorf("invalid address %q: %w", c.String("address"), err)
		}
		cfg.Sensor.Address = uint8(addr)
	}
	return cfg, cfg.Validate()
}

func openSession(ctx context.Context, cfg config.Config) (*session, error) {
	if cfg.Bus.Adapter == config.AdapterMock {
		return &session{sensor: environment.NewStaticEnvironmentSensor(mockReading)}, nil
	}
	bus, closeBus, err := openBus(cfg)
	if err != nil {
		return nil, fmt.Errorf("adapter initialization error: %w", err)
	}
	bme, err := environment.NewBME280(ctx, bus, environment.WithBME280Address(cfg.Sensor.Address))
	if err != nil {
		_ = closeBus()
		return nil, err
	}
	return &session{sensor: bme, bme: bme, bus: bus, close: closeBus}, nil
}

func openBus(cfg config.Config) (envsense.I2CBus, func() error, error) {
	switch cfg.Bus.Adapter {
	case config.AdapterMCP2221:
		ad := adapter.NewMCP2221()
		if err := ad.Init(); err != nil {
			return nil, nil, err
		}
		return ad, func() error { return ad.Release(context.Background()) }, nil
	case config.AdapterGeneric:
		bus, err := i2c.NewGenericBus(cfg.Bus.Device)
		if err != nil {
			return nil, nil, err
		}
		return bus, bus.Close, nil
	case config.AdapterGobot:
		npi := nanopi.NewNeoAdaptor()
		err := npi.I2cBusAdaptor.Connect()
		if err != nil {
			return nil, nil, fmt.Errorf("adaptor connect error: %w", err)
		}
		bus := i2c.NewGobotBus(npi, cfg.Bus.Number)
		return bus, func() error {
			return errors.Join(bus.Close(), npi.I2cBusAdaptor.Finalize())
		}, nil
	}
	return nil, nil, fmt.Errorf("%w: %q", config.ErrUnknownAdapter, cfg.Bus.Adapter)
}
