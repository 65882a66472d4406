package environment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mklimuk/envsense"
)

var _ Reader = &BME280{}

// BME280DefaultAddress is the 7-bit address with SDO tied to GND.
// Use BME280AltAddress when SDO is tied to VDDIO.
const (
	BME280DefaultAddress = 0x76
	BME280AltAddress     = 0x77
)

const (
	bme280RegSoftReset = 0xE0
	bme280RegCtrlHum   = 0xF2
	bme280RegStatus    = 0xF3
	bme280RegCtrlMeas  = 0xF4
	bme280RegConfig    = 0xF5
	bme280RegData      = 0xF7
)

const (
	// osrs_h = x1
	bme280CtrlHumX1 = 0x01
	// osrs_t = x1, osrs_p = x1, mode = normal
	bme280CtrlMeasX1Normal = 0x27
	// filter off, t_sb = 0.5 ms
	bme280ConfigFilterOff = 0x00
	bme280ResetWord       = 0xB6

	// status bit 0: NVM data being copied to image registers
	bme280StatusImUpdate = 0x01

	bme280DataLen = 8
)

const (
	bme280PowerUpDelay = 3 * time.Millisecond
	bme280SettleDelay  = 10 * time.Millisecond
	bme280ResetDelay   = 5 * time.Millisecond
)

// ErrInit is returned by NewBME280 when the device is still copying its
// calibration NVM into the image registers.
var ErrInit = fmt.Errorf("bme280: calibration NVM not ready (image update in progress)")

type BME280Config struct {
	Address byte
	Delayer envsense.Delayer
}

type BME280ConfigOption func(*BME280Config)

// WithBME280Address overrides the default 0x76 address.
func WithBME280Address(address byte) BME280ConfigOption {
	return func(c *BME280Config) {
		c.Address = address
	}
}

// WithDelayer replaces the time.Sleep based delay.
func WithDelayer(d envsense.Delayer) BME280ConfigOption {
	return func(c *BME280Config) {
		c.Delayer = d
	}
}

// BME280Raw holds the uncompensated ADC codes of a single burst read.
// Pressure and temperature are 20-bit, humidity is 16-bit.
type BME280Raw struct {
	Pressure    int32 `yaml:"pressure"`
	Temperature int32 `yaml:"temperature"`
	Humidity    int32 `yaml:"humidity"`
}

// BME280 represents Bosch BME280 combined humidity, pressure and temperature sensor.
// See: https://www.bosch-sensortec.com/media/boschsensortec/downloads/datasheets/bst-bme280-ds002.pdf
//
// The driver does not keep the bus: every call takes it as an argument and
// the caller must hold it exclusively for the duration of that call.
// Typical usage:
//
//	s, err := NewBME280(ctx, bus)
//	r, err := s.Read(ctx, bus)
type BME280 struct {
	address byte
	calib   BME280Calibration
	delay   envsense.Delayer
}

// NewBME280 waits for the device to power up, checks that the calibration
// NVM is readable, loads it and puts the device into normal mode with x1
// oversampling and the filter off.
func NewBME280(ctx context.Context, bus envsense.I2CBus, opts ...BME280ConfigOption) (*BME280, error) {
	config := &BME280Config{
		Address: BME280DefaultAddress,
		Delayer: envsense.SleepDelayer{},
	}
	for _, opt := range opts {
		opt(config)
	}
	s := &BME280{address: config.Address, delay: config.Delayer}

	// datasheet requires at least 2ms after power-up
	s.delay.Delay(bme280PowerUpDelay)

	status := make([]byte, 1)
	err := bus.WriteReadFromAddr(ctx, s.address, []byte{bme280RegStatus}, status)
	if err != nil {
		return nil, fmt.Errorf("bme280: could not read status register: %w", err)
	}
	if status[0]&bme280StatusImUpdate != 0 {
		return nil, ErrInit
	}

	s.calib, err = s.readCalibration(ctx, bus)
	if err != nil {
		return nil, err
	}
	err = s.Configure(ctx, bus)
	if err != nil {
		return nil, err
	}
	slog.Debug("bme280 initialized", "addr", s.address)
	return s, nil
}

// Address returns the 7-bit bus address of the device.
func (s *BME280) Address() byte {
	return s.address
}

// Calibration returns a copy of the currently loaded calibration.
func (s *BME280) Calibration() BME280Calibration {
	return s.calib
}

// Configure sets x1 humidity, temperature and pressure oversampling, normal
// mode, filter off and minimum standby. Writes are not read back.
//
// Reset returns the device to its power-on register defaults (sleep mode),
// callers need to Configure again to resume sampling.
func (s *BME280) Configure(ctx context.Context, bus envsense.I2CBus) error {
	// ctrl_hum only takes effect after the following ctrl_meas write
	writes := []struct {
		name string
		reg  byte
		val  byte
	}{
		{"humidity oversampling", bme280RegCtrlHum, bme280CtrlHumX1},
		{"measurement control", bme280RegCtrlMeas, bme280CtrlMeasX1Normal},
		{"config", bme280RegConfig, bme280ConfigFilterOff},
	}
	for _, w := range writes {
		err := bus.WriteToAddr(ctx, s.address, []byte{w.reg, w.val})
		if err != nil {
			return fmt.Errorf("bme280: could not write %s register: %w", w.name, err)
		}
		s.delay.Delay(bme280SettleDelay)
	}
	return nil
}

// ReadRaw performs a single burst read of the data registers 0xF7..0xFE.
// There is no busy check: reading faster than the standby interval may
// return the previous cycle's values.
func (s *BME280) ReadRaw(ctx context.Context, bus envsense.I2CBus) (BME280Raw, error) {
	data := make([]byte, bme280DataLen)
	err := bus.WriteReadFromAddr(ctx, s.address, []byte{bme280RegData}, data)
	if err != nil {
		return BME280Raw{}, fmt.Errorf("bme280: could not read data registers: %w", err)
	}
	return parseBME280Raw(data), nil
}

func parseBME280Raw(data []byte) BME280Raw {
	return BME280Raw{
		Pressure:    int32(data[0])<<12 | int32(data[1])<<4 | int32(data[2])>>4,
		Temperature: int32(data[3])<<12 | int32(data[4])<<4 | int32(data[5])>>4,
		Humidity:    int32(data[6])<<8 | int32(data[7]),
	}
}

// Read returns a compensated reading.
func (s *BME280) Read(ctx context.Context, bus envsense.I2CBus) (Reading, error) {
	raw, err := s.ReadRaw(ctx, bus)
	if err != nil {
		return Reading{}, err
	}
	return s.calib.Compensate(raw), nil
}

// Reset issues a soft reset and reloads the calibration. Configuration is
// not restored, see Configure.
func (s *BME280) Reset(ctx context.Context, bus envsense.I2CBus) error {
	err := bus.WriteToAddr(ctx, s.address, []byte{bme280RegSoftReset, bme280ResetWord})
	if err != nil {
		return fmt.Errorf("bme280: could not write soft reset: %w", err)
	}
	s.delay.Delay(bme280ResetDelay)
	calib, err := s.readCalibration(ctx, bus)
	if err != nil {
		return err
	}
	s.calib = calib
	slog.Debug("bme280 reset", "addr", s.address)
	return nil
}

func (s *BME280) readCalibration(ctx context.Context, bus envsense.I2CBus) (BME280Calibration, error) {
	var tp [bme280CalibTPLen]byte
	var hum [bme280CalibHLen]byte
	err := bus.WriteReadFromAddr(ctx, s.address, []byte{bme280RegCalibTP}, tp[:])
	if err != nil {
		return BME280Calibration{}, fmt.Errorf("bme280: could not read temperature/pressure calibration: %w", err)
	}
	err = bus.WriteReadFromAddr(ctx, s.address, []byte{bme280RegCalibH1}, hum[:1])
	if err != nil {
		return BME280Calibration{}, fmt.Errorf("bme280: could not read humidity calibration: %w", err)
	}
	err = bus.WriteReadFromAddr(ctx, s.address, []byte{bme280RegCalibH2}, hum[1:])
	if err != nil {
		return BME280Calibration{}, fmt.Errorf("bme280: could not read humidity calibration: %w", err)
	}
	return ParseBME280Calibration(tp, hum), nil
}
