package adapter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/envsense"
)

// fakeBridge emulates the MCP2221 report protocol for a single I2C target
// with a register file.
type fakeBridge struct {
	address  byte
	regs     [256]byte
	pointer  byte
	pending  []byte
	requests [][]byte
	busy     bool
	opened   int
	closed   int
	last     []byte
}

func (f *fakeBridge) open() (Device, error) {
	f.opened++
	return f, nil
}

func (f *fakeBridge) Write(b []byte) (int, error) {
	req := append([]byte(nil), b...)
	f.requests = append(f.requests, req)
	resp := make([]byte, reportLen)
	resp[0] = req[0]
	if f.busy {
		resp[1] = responseBusy
		f.last = resp
		return len(b), nil
	}
	length := int(req[1]) | int(req[2])<<8
	switch req[0] {
	case cmdI2CWrite, cmdI2CWriteNoStop:
		if req[3]>>1 != f.address {
			resp[1] = responseBusy
			break
		}
		data := req[4 : 4+length]
		if len(data) > 0 {
			f.pointer = data[0]
		}
		if len(data) > 1 {
			f.regs[f.pointer] = data[1]
		}
	case cmdI2CRead, cmdI2CReadRepeat:
		end := min(int(f.pointer)+length, len(f.regs))
		f.pending = append([]byte(nil), f.regs[f.pointer:end]...)
	case cmdI2CGetData:
		resp[3] = byte(len(f.pending))
		copy(resp[4:], f.pending)
		f.pending = nil
	case cmdStatus:
		resp[9] = 0x02
		resp[13] = 0x01
		resp[14] = 0x76
		resp[16] = 0xEC
	}
	f.last = resp
	return len(b), nil
}

func (f *fakeBridge) Read(b []byte) (int, error) {
	return copy(b, f.last), nil
}

func (f *fakeBridge) Close() error {
	f.closed++
	return nil
}

func newFakeAdapter(f *fakeBridge) *MCP2221 {
	return NewMCP2221(WithOpener(f.open), WithResponseWait(0))
}

func TestMCP2221_WriteReadFromAddr(t *testing.T) {
	f := &fakeBridge{address: 0x76}
	f.regs[0xD0] = 0x60
	f.regs[0xD1] = 0x61
	d := newFakeAdapter(f)

	buf := make([]byte, 2)
	err := d.WriteReadFromAddr(context.Background(), 0x76, []byte{0xD0}, buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x60, 0x61}, buf)

	require.Len(t, f.requests, 3)
	assert.Equal(t, []byte{cmdI2CWriteNoStop, 0x01, 0x00, 0xEC, 0xD0}, f.requests[0][:5])
	assert.Equal(t, []byte{cmdI2CReadRepeat, 0x02, 0x00, 0xED}, f.requests[1][:4])
	assert.Equal(t, byte(cmdI2CGetData), f.requests[2][0])
	assert.Equal(t, f.opened, f.closed)
}

func TestMCP2221_WriteAndRead(t *testing.T) {
	f := &fakeBridge{address: 0x76}
	d := newFakeAdapter(f)
	ctx := context.Background()

	require.NoError(t, d.WriteToAddr(ctx, 0x76, []byte{0xF4, 0x27}))
	assert.Equal(t, byte(0x27), f.regs[0xF4])
	assert.Equal(t, byte(cmdI2CWrite), f.requests[0][0])

	buf := make([]byte, 1)
	require.NoError(t, d.ReadFromAddr(ctx, 0x76, buf))
	assert.Equal(t, []byte{0x27}, buf)
	assert.Equal(t, byte(cmdI2CRead), f.requests[1][0])
}

func TestMCP2221_Busy(t *testing.T) {
	f := &fakeBridge{address: 0x76, busy: true}
	d := newFakeAdapter(f)
	err := d.WriteToAddr(context.Background(), 0x76, []byte{0xF4, 0x27})
	assert.ErrorIs(t, err, envsense.ErrBusBusy)
	err = d.ReadFromAddr(context.Background(), 0x76, make([]byte, 1))
	assert.ErrorIs(t, err, envsense.ErrBusBusy)
}

func TestMCP2221_ShortData(t *testing.T) {
	f := &fakeBridge{address: 0x76}
	d := newFakeAdapter(f)
	// register pointer near the end of the file yields fewer bytes than requested
	require.NoError(t, d.WriteToAddr(context.Background(), 0x76, []byte{0xFF}))
	err := d.ReadFromAddr(context.Background(), 0x76, make([]byte, 2))
	assert.EqualError(t, err, "invalid data size byte; expected 2, got 1")
}

func TestMCP2221_TooLong(t *testing.T) {
	f := &fakeBridge{address: 0x76}
	d := newFakeAdapter(f)
	err := d.WriteToAddr(context.Background(), 0x76, make([]byte, maxTransferLen+1))
	require.Error(t, err)
	assert.Empty(t, f.requests)
}

func TestMCP2221_StatusAndRelease(t *testing.T) {
	f := &fakeBridge{address: 0x76}
	d := newFakeAdapter(f)
	ctx := context.Background()

	status, err := d.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, &MCP2221Status{
		I2CDataBufferCounter:   1,
		I2CSpeedDivider:        0x76,
		CurrentAddress:         "ec00",
		LastWriteRequestedSize: 2,
	}, status)
	assert.Equal(t, byte(0x00), f.requests[0][2])

	require.NoError(t, d.Release(ctx))
	assert.Equal(t, []byte{cmdStatus, 0x00, statusCancelTransfer}, f.requests[1][:3])
}

func TestMCP2221_OpenError(t *testing.T) {
	d := NewMCP2221(WithOpener(func() (Device, error) {
		return nil, ErrDeviceNotFound
	}))
	_, err := d.Status(context.Background())
	assert.True(t, errors.Is(err, ErrDeviceNotFound))
}

func TestMCP2221_Init(t *testing.T) {
	f := &fakeBridge{address: 0x76}
	d := newFakeAdapter(f)
	require.NoError(t, d.Init())
	assert.Equal(t, 1, f.opened)
	assert.Equal(t, 1, f.closed)
	assert.Empty(t, f.requests)
}
