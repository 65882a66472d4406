package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/mklimuk/envsense/cmd/sensors/console"
	"github.com/mklimuk/envsense/server"
	"github.com/mklimuk/envsense/snsctx"
)

var envCmd = cli.Command{
	Name:  "env",
	Usage: "BME280 temperature, pressure and humidity",
	Subcommands: cli.Commands{
		&envReadCmd,
		&envRawCmd,
		&envResetCmd,
		&envCalibrationCmd,
		&envServeCmd,
	},
}

// withSession resolves the bus configuration, opens the sensor and hands
// it to fn. The bus is closed afterwards.
func withSession(c *cli.Context, fn func(ctx context.Context, s *session) error) error {
	cfg, err := resolveConfig(c)
	if err != nil {
		return console.Exit(2, "configuration error: %s", console.Red(err))
	}
	ctx := snsctx.SetVerbose(c.Context, c.Bool("verbose"))
	s, err := openSession(ctx, cfg)
	if err != nil {
		return console.Exit(1, "sensor initialization error: %s", console.Red(err))
	}
	defer func() {
		err := s.Close()
		if err != nil {
			console.Errorf("error closing bus: %s", console.Red(err))
		}
	}()
	return fn(ctx, s)
}

func printYAML(v any) error {
	enc := yaml.NewEncoder(console.Writer())
	err := enc.Encode(v)
	if err != nil {
		return err
	}
	return enc.Close()
}

var envReadCmd = cli.Command{
	Name:    "read",
	Aliases: []string{"rd"},
	Usage:   "read compensated temperature, pressure and humidity",
	Flags: append([]cli.Flag{
		&cli.IntFlag{
			Name:  "count",
			Usage: "number of readings",
			Value: 1,
		},
		&cli.DurationFlag{
			Name:  "interval",
			Usage: "pause between readings",
			Value: time.Second,
		},
		&cli.BoolFlag{
			Name:  "yaml",
			Usage: "print readings as YAML",
		},
	}, busFlags...),
	Action: func(c *cli.Context) error {
		return withSession(c, func(ctx context.Context, s *session) error {
			for i := 0; i < c.Int("count"); i++ {
				if i > 0 {
					time.Sleep(c.Duration("interval"))
				}
				r, err := s.sensor.Read(ctx, s.bus)
				if err != nil {
					return console.Exit(1, "error reading sensor: %s", console.Red(err))
				}
				if c.Bool("yaml") {
					err = printYAML(r)
					if err != nil {
						return console.Exit(1, "encoding error: %s", console.Red(err))
					}
					continue
				}
				env := r.Env()
				console.PInfof(console.PictoThermometer, "%s (%.2f °C)", console.Bold(env.Temperature), r.Temperature)
				console.PInfof(console.PictoPressure, "%s (%.2f Pa)", console.Bold(env.Pressure), r.Pressure)
				console.PInfof(console.PictoHumidity, "%s (%.2f %%RH)", console.Bold(env.Humidity), r.Humidity)
			}
			return nil
		})
	},
}

var envRawCmd = cli.Command{
	Name:  "raw",
	Usage: "print uncompensated ADC codes",
	Flags: busFlags,
	Action: func(c *cli.Context) error {
		return withSession(c, func(ctx context.Context, s *session) error {
			if s.bme == nil {
				return console.Exit(1, "raw read: %s", console.Red(errMockAdapter))
			}
			raw, err := s.bme.ReadRaw(ctx, s.bus)
			if err != nil {
				return console.Exit(1, "error reading sensor: %s", console.Red(err))
			}
			console.Printf("adc_T: %d\nadc_P: %d\nadc_H: %d\n", raw.Temperature, raw.Pressure, raw.Humidity)
			return nil
		})
	},
}

var envResetCmd = cli.Command{
	Name:  "reset",
	Usage: "soft-reset the sensor; it stays in sleep mode unless --reconfigure is given",
	Flags: append([]cli.Flag{
		&cli.BoolFlag{
			Name:    "yes",
			Aliases: []string{"y"},
			Usage:   "do not ask for confirmation",
		},
		&cli.BoolFlag{
			Name:  "reconfigure",
			Usage: "write oversampling, mode and filter settings again after the reset",
		},
	}, busFlags...),
	Action: func(c *cli.Context) error {
		if !c.Bool("yes") {
			answer, err := console.YesOrNo("reset the sensor?")
			if err != nil {
				return console.Exit(1, "prompt error: %s", console.Red(err))
			}
			if answer != console.Yes {
				console.PInfof(console.PictoStop, "reset cancelled")
				return nil
			}
		}
		return withSession(c, func(ctx context.Context, s *session) error {
			err := s.sensor.Reset(ctx, s.bus)
			if err != nil {
				return console.Exit(1, "error resetting sensor: %s", console.Red(err))
			}
			if c.Bool("reconfigure") && s.bme != nil {
				err = s.bme.Configure(ctx, s.bus)
				if err != nil {
					return console.Exit(1, "error configuring sensor: %s", console.Red(err))
				}
			}
			console.PInfof(console.PictoFinish, "sensor %s", console.Green("reset"))
			if !c.Bool("reconfigure") {
				console.Warnf("sensor is in sleep mode until reconfigured")
			}
			return nil
		})
	},
}

var envCalibrationCmd = cli.Command{
	Name:  "calibration",
	Usage: "dump factory calibration coefficients as YAML",
	Flags: busFlags,
	Action: func(c *cli.Context) error {
		return withSession(c, func(ctx context.Context, s *session) error {
			if s.bme == nil {
				return console.Exit(1, "calibration: %s", console.Red(errMockAdapter))
			}
			err := printYAML(s.bme.Calibration())
			if err != nil {
				return console.Exit(1, "encoding error: %s", console.Red(err))
			}
			return nil
		})
	},
}

var envServeCmd = cli.Command{
	Name:  "serve",
	Usage: "serve readings over HTTP (GET /reading, POST /reset)",
	Flags: append([]cli.Flag{
		&cli.StringFlag{
			Name:  "listen",
			Usage: "listen address",
		},
	}, busFlags...),
	Action: func(c *cli.Context) error {
		listen := appConfig.Server.Listen
		if c.IsSet("listen") {
			listen = c.String("listen")
		}
		return withSession(c, func(ctx context.Context, s *session) error {
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			err := server.New(s.sensor, s.bus).ListenAndServe(ctx, listen)
			if err != nil && !errors.Is(err, context.Canceled) {
				return console.Exit(1, "server error: %s", console.Red(err))
			}
			return nil
		})
	},
}
