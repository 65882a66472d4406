package adapter

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/karalabe/hid"

	"github.com/mklimuk/envsense"
	"github.com/mklimuk/envsense/snsctx"
)

const VendorID = 0x04D8
const ProductID = 0x00DD

const (
	cmdStatus         = 0x10
	cmdI2CWrite       = 0x90
	cmdI2CRead        = 0x91
	cmdI2CReadRepeat  = 0x93
	cmdI2CWriteNoStop = 0x94
	cmdI2CGetData     = 0x40

	statusCancelTransfer = 0x10
	responseBusy         = 0x01
	responseReadError    = 0x41
	invalidDataSize      = 127

	reportLen = 64
	// bytes of payload carried by a single HID report
	maxTransferLen = reportLen - 4
)

var ErrCommandFailed = errors.New("command failed")
var ErrDeviceNotFound = errors.New("MCP2221 device not found")

var _ envsense.I2CBus = &MCP2221{}

// Device is a raw HID endpoint exchanging 64 byte reports.
type Device interface {
	Write(b []byte) (int, error)
	Read(b []byte) (int, error)
	Close() error
}

// Opener opens the HID endpoint for a single request/response exchange.
type Opener func() (Device, error)

// MCP2221 drives a Microchip MCP2221 USB to I2C bridge.
type MCP2221 struct {
	mx           sync.Mutex
	open         Opener
	request      []byte
	response     []byte
	responseWait time.Duration
}

type MCP2221Status struct {
	I2CDataBufferCounter   int    `yaml:"i2c_data_buffer_counter"`
	I2CSpeedDivider        int    `yaml:"i2c_speed_divider"`
	I2CTimeout             int    `yaml:"i2c_timeout"`
	CurrentAddress         string `yaml:"current_address"`
	LastWriteRequestedSize uint16 `yaml:"last_write_requested_size"`
	LastWriteSentSize      uint16 `yaml:"last_write_sent_size"`
	ReadPending            int    `yaml:"read_pending"`
}

type MCP2221Option func(*MCP2221)

// WithOpener replaces USB enumeration with a custom endpoint.
func WithOpener(open Opener) MCP2221Option {
	return func(d *MCP2221) {
		d.open = open
	}
}

// WithDeviceIndex selects one of several attached bridges.
func WithDeviceIndex(index int) MCP2221Option {
	return func(d *MCP2221) {
		d.open = enumerateOpener(index)
	}
}

func WithResponseWait(wait time.Duration) MCP2221Option {
	return func(d *MCP2221) {
		d.responseWait = wait
	}
}

func NewMCP2221(opts ...MCP2221Option) *MCP2221 {
	d := &MCP2221{
		open:         enumerateOpener(-1),
		request:      make([]byte, reportLen),
		response:     make([]byte, reportLen),
		responseWait: 50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// enumerateOpener finds the bridge by its USB ids. A negative index
// requires exactly one attached device.
func enumerateOpener(index int) Opener {
	return func() (Device, error) {
		devs := hid.Enumerate(VendorID, ProductID)
		if len(devs) == 0 {
			return nil, ErrDeviceNotFound
		}
		if index < 0 {
			if len(devs) > 1 {
				return nil, fmt.Errorf("ambiguous device identification: %d devices attached", len(devs))
			}
			index = 0
		}
		if index >= len(devs) {
			return nil, fmt.Errorf("no device with id %d", index)
		}
		dev, err := devs[index].Open()
		if err != nil {
			return nil, fmt.Errorf("error opening device: %w", err)
		}
		return dev, nil
	}
}

// Init checks that the bridge is attached and can be opened.
func (d *MCP2221) Init() error {
	dev, err := d.open()
	if err != nil {
		return err
	}
	return dev.Close()
}

func (d *MCP2221) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.write(ctx, cmdI2CWrite, address, buffer)
}

func (d *MCP2221) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.read(ctx, cmdI2CRead, address, buffer)
}

// WriteReadFromAddr writes command without a STOP condition and reads the
// response after a repeated START.
func (d *MCP2221) WriteReadFromAddr(ctx context.Context, address byte, command []byte, buffer []byte) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	err := d.write(ctx, cmdI2CWriteNoStop, address, command)
	if err != nil {
		return err
	}
	return d.read(ctx, cmdI2CReadRepeat, address, buffer)
}

func (d *MCP2221) write(ctx context.Context, cmd byte, address byte, buffer []byte) error {
	if len(buffer) > maxTransferLen {
		return fmt.Errorf("write to %x failed: %d bytes exceed single report", address, len(buffer))
	}
	d.resetBuffers()
	d.request[0] = cmd
	binary.LittleEndian.PutUint16(d.request[1:3], uint16(len(buffer)))
	d.request[3] = address << 1
	copy(d.request[4:], buffer)
	err := d.send(ctx)
	if err != nil {
		return fmt.Errorf("write to %x failed: %w", address, err)
	}
	if d.response[1] == responseBusy {
		slog.Debug("adapter busy", "address", fmt.Sprintf("%#x", address))
		return envsense.ErrBusBusy
	}
	return nil
}

func (d *MCP2221) read(ctx context.Context, cmd byte, address byte, buffer []byte) error {
	if len(buffer) > maxTransferLen {
		return fmt.Errorf("bus read from %x failed: %d bytes exceed single report", address, len(buffer))
	}
	d.resetBuffers()
	d.request[0] = cmd
	binary.LittleEndian.PutUint16(d.request[1:3], uint16(len(buffer)))
	d.request[3] = address<<1 + 1
	err := d.send(ctx)
	if err != nil {
		return fmt.Errorf("bus read from %x failed: %w", address, err)
	}
	if d.response[1] == responseBusy {
		return envsense.ErrBusBusy
	}
	d.resetBuffers()
	d.request[0] = cmdI2CGetData
	err = d.send(ctx)
	if err != nil {
		return fmt.Errorf("error getting read data from adapter: %w", err)
	}
	if d.response[1] == responseReadError {
		return fmt.Errorf("error reading the I2C slave data from the I2C engine: %w", ErrCommandFailed)
	}
	if d.response[3] == invalidDataSize || int(d.response[3]) != len(buffer) {
		return fmt.Errorf("invalid data size byte; expected %d, got %d", len(buffer), d.response[3])
	}
	copy(buffer, d.response[4:])
	return nil
}

func (d *MCP2221) Status(ctx context.Context) (*MCP2221Status, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdStatus
	err := d.send(ctx)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	return bufferToStatus(d.response), nil
}

func bufferToStatus(buffer []byte) *MCP2221Status {
	/*
		9-10:  requested I2C transfer length
		11-12: already transferred number of bytes
		13:    internal I2C data buffer counter
		14:    I2C communication speed divider
		15:    I2C timeout
		16-17: I2C address being used
		25:    pending read
	*/
	return &MCP2221Status{
		I2CDataBufferCounter:   int(buffer[13]),
		I2CSpeedDivider:        int(buffer[14]),
		I2CTimeout:             int(buffer[15]),
		ReadPending:            int(buffer[25]),
		CurrentAddress:         hex.EncodeToString(buffer[16:18]),
		LastWriteRequestedSize: binary.LittleEndian.Uint16(buffer[9:11]),
		LastWriteSentSize:      binary.LittleEndian.Uint16(buffer[11:13]),
	}
}

// Release cancels any transfer the bridge still holds so that the bus is
// free for the next transaction.
func (d *MCP2221) Release(ctx context.Context) error {
	_, err := d.ReleaseBus(ctx)
	return err
}

func (d *MCP2221) ReleaseBus(ctx context.Context) (*MCP2221Status, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdStatus
	d.request[2] = statusCancelTransfer
	err := d.send(ctx)
	if err != nil {
		return nil, fmt.Errorf("release request failed: %w", err)
	}
	return bufferToStatus(d.response), nil
}

func (d *MCP2221) send(ctx context.Context) error {
	dev, err := d.open()
	if err != nil {
		return err
	}
	defer func() {
		err := dev.Close()
		if err != nil {
			slog.Warn("could not close adapter", "error", err)
		}
	}()
	if snsctx.IsVerbose(ctx) {
		slog.Debug("sending message to adapter", "report", hex.EncodeToString(d.request))
	}
	n, err := dev.Write(d.request)
	if err != nil {
		return fmt.Errorf("could not write request: %w", err)
	}
	if n != reportLen {
		return fmt.Errorf("short write: %d", n)
	}
	if d.responseWait > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d.responseWait):
		}
	}
	n, err = dev.Read(d.response)
	if err != nil {
		return fmt.Errorf("could not read response: %w", err)
	}
	if n != reportLen {
		return fmt.Errorf("short read: %d", n)
	}
	if snsctx.IsVerbose(ctx) {
		slog.Debug("read message from adapter", "report", hex.EncodeToString(d.response))
	}
	return nil
}

func (d *MCP2221) resetBuffers() {
	clear(d.request)
	clear(d.response)
}
