package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// build metadata, injected at link time by the dev tool
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

const (
	AdapterMCP2221 = "mcp2221"
	AdapterGeneric = "generic"
	AdapterGobot   = "gobot"
	AdapterMock    = "mock"
)

var ErrUnknownAdapter = errors.New("unknown bus adapter")

type Config struct {
	Bus    BusConfig    `yaml:"bus"`
	Sensor SensorConfig `yaml:"sensor"`
	Server ServerConfig `yaml:"server"`
}

type BusConfig struct {
	// Adapter is one of mcp2221, generic, gobot or mock.
	Adapter string `yaml:"adapter"`
	// Device is the periph bus name used by the generic adapter.
	Device string `yaml:"device"`
	// Number is the bus number used by the gobot adapter.
	Number int `yaml:"number"`
}

type SensorConfig struct {
	Address uint8 `yaml:"address"`
}

type ServerConfig struct {
	Listen string `yaml:"listen"`
}

func Default() Config {
	return Config{
		Bus: BusConfig{
			Adapter: AdapterMCP2221,
			Device:  "/dev/i2c-1",
			Number:  0,
		},
		Sensor: SensorConfig{Address: 0x76},
		Server: ServerConfig{Listen: "127.0.0.1:27315"},
	}
}

func BuildVersion() string {
	return fmt.Sprintf("%s-%s-%s", Version, Date, Commit)
}

// Load reads a YAML config file on top of the defaults. An empty path
// yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("could not read config file: %w", err)
	}
	err = Decode(data, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("could not load %s: %w", path, err)
	}
	return cfg, nil
}

// Decode overlays YAML data on cfg and validates the result.
func Decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	err := dec.Decode(cfg)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid yaml: %w", err)
	}
	return cfg.Validate()
}

func (c Config) Validate() error {
	switch c.Bus.Adapter {
	case AdapterMCP2221, AdapterGeneric, AdapterGobot, AdapterMock:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAdapter, c.Bus.Adapter)
	}
	if c.Sensor.Address > 0x7F {
		return fmt.Errorf("sensor address %#x is not a 7-bit address", c.Sensor.Address)
	}
	return nil
}
