package environment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseBME280Calibration_Reference(t *testing.T) {
	assert.Equal(t, refCalib, ParseBME280Calibration(refCalibTP, refCalibH))
}

func TestParseBME280Calibration_Deterministic(t *testing.T) {
	first := ParseBME280Calibration(refCalibTP, refCalibH)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ParseBME280Calibration(refCalibTP, refCalibH))
	}
}

func TestParseBME280Calibration_SharedHumidityNibbles(t *testing.T) {
	tests := []struct {
		name string
		e4   byte
		e5   byte
		e6   byte
		h4   int16
		h5   int16
	}{
		{"reference", 0x13, 0x29, 0x03, 313, 50},
		{"low nibble only", 0x00, 0x0F, 0x00, 0x00F, 0x000},
		{"high nibble only", 0x00, 0xF0, 0x00, 0x000, 0x00F},
		{"both nibbles", 0x12, 0xAB, 0x34, 0x12B, 0x34A},
		{"msb bytes only", 0x7F, 0x00, 0x7F, 0x7F0, 0x7F0},
		// 12-bit values are signed, MSB bytes are sign extended
		{"negative", 0xFF, 0xFF, 0xFF, -1, -1},
		{"negative h5 only", 0x10, 0x80, 0xF0, 0x100, -248},
		{"sign bit only", 0x80, 0x00, 0x80, -2048, -2048},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hum := refCalibH
			hum[hOffH4MSB] = tt.e4
			hum[hOffH45] = tt.e5
			hum[hOffH5MSB] = tt.e6
			c := ParseBME280Calibration(refCalibTP, hum)
			assert.Equal(t, tt.h4, c.H4, "H4")
			assert.Equal(t, tt.h5, c.H5, "H5")
			// neighbours stay untouched
			assert.Equal(t, refCalib.H3, c.H3)
			assert.Equal(t, refCalib.H6, c.H6)
		})
	}
}

func TestParseBME280Calibration_H6FromOwnRegister(t *testing.T) {
	hum := refCalibH
	hum[hOffH6] = 0xF6
	c := ParseBME280Calibration(refCalibTP, hum)
	assert.Equal(t, int8(-10), c.H6)
	// 0xE6 is the H5 MSB, not H6
	assert.Equal(t, refCalib.H5, c.H5)
}

func TestParseBME280Calibration_Endianness(t *testing.T) {
	var tp [bme280CalibTPLen]byte
	tp[0], tp[1] = 0x34, 0x12 // T1
	tp[2], tp[3] = 0xFE, 0xFF // T2
	tp[6], tp[7] = 0xFF, 0xFF // P1 unsigned
	tp[22], tp[23] = 0x00, 0x80
	var hum [bme280CalibHLen]byte
	hum[hOffH2], hum[hOffH2+1] = 0x01, 0x80
	c := ParseBME280Calibration(tp, hum)
	assert.Equal(t, uint16(0x1234), c.T1)
	assert.Equal(t, int16(-2), c.T2)
	assert.Equal(t, uint16(0xFFFF), c.P1)
	assert.Equal(t, int16(-32768), c.P9)
	assert.Equal(t, int16(-32767), c.H2)
}
