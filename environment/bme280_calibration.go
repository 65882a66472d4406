package environment

import "encoding/binary"

// Calibration NVM layout.
//
//	0x88..0x9F  T1..T3, P1..P9, little endian (24 bytes)
//	0xA1        H1
//	0xE1..0xE7  H2 (LE), H3, H4/H5 packed, H6
const (
	bme280RegCalibTP = 0x88
	bme280RegCalibH1 = 0xA1
	bme280RegCalibH2 = 0xE1

	bme280CalibTPLen = 24
	bme280CalibHLen  = 8
)

// Humidity block offsets. The block starts with H1 (0xA1) followed by
// 0xE1..0xE7, so hum[i] for i >= 1 is register 0xE0+i.
//
// H4 and H5 are 12-bit values sharing the byte at 0xE5:
//
//	H4 = 0xE4[7:0] << 4 | 0xE5[3:0]
//	H5 = 0xE6[7:0] << 4 | 0xE5[7:4]
const (
	hOffH1    = 0
	hOffH2    = 1
	hOffH3    = 3
	hOffH4MSB = 4
	hOffH45   = 5
	hOffH5MSB = 6
	hOffH6    = 7

	hMaskH4LSB  = 0x0F
	hShiftH5LSB = 4
	hShiftMSB   = 4
)

// BME280Calibration holds the factory trimming parameters of a BME280.
type BME280Calibration struct {
	T1 uint16 `yaml:"dig_T1"`
	T2 int16  `yaml:"dig_T2"`
	T3 int16  `yaml:"dig_T3"`

	P1 uint16 `yaml:"dig_P1"`
	P2 int16  `yaml:"dig_P2"`
	P3 int16  `yaml:"dig_P3"`
	P4 int16  `yaml:"dig_P4"`
	P5 int16  `yaml:"dig_P5"`
	P6 int16  `yaml:"dig_P6"`
	P7 int16  `yaml:"dig_P7"`
	P8 int16  `yaml:"dig_P8"`
	P9 int16  `yaml:"dig_P9"`

	H1 uint8 `yaml:"dig_H1"`
	H2 int16 `yaml:"dig_H2"`
	H3 uint8 `yaml:"dig_H3"`
	H4 int16 `yaml:"dig_H4"`
	H5 int16 `yaml:"dig_H5"`
	H6 int8  `yaml:"dig_H6"`
}

// ParseBME280Calibration decodes the temperature/pressure block (0x88..0x9F)
// and the humidity block (0xA1 followed by 0xE1..0xE7). The device provides
// no checksum so any input yields a value.
//
// The MSB bytes of H4 and H5 are sign extended before the shift, as in the
// Bosch reference API, rather than packed as unsigned bytes: 0xE4=0x80 gives
// H4 = -2048, not 2048. H6 is read from its own register 0xE7 instead of
// sharing 0xE6 with the H5 MSB.
func ParseBME280Calibration(tp [bme280CalibTPLen]byte, hum [bme280CalibHLen]byte) BME280Calibration {
	le := binary.LittleEndian
	return BME280Calibration{
		T1: le.Uint16(tp[0:2]),
		T2: int16(le.Uint16(tp[2:4])),
		T3: int16(le.Uint16(tp[4:6])),

		P1: le.Uint16(tp[6:8]),
		P2: int16(le.Uint16(tp[8:10])),
		P3: int16(le.Uint16(tp[10:12])),
		P4: int16(le.Uint16(tp[12:14])),
		P5: int16(le.Uint16(tp[14:16])),
		P6: int16(le.Uint16(tp[16:18])),
		P7: int16(le.Uint16(tp[18:20])),
		P8: int16(le.Uint16(tp[20:22])),
		P9: int16(le.Uint16(tp[22:24])),

		H1: hum[hOffH1],
		H2: int16(le.Uint16(hum[hOffH2 : hOffH2+2])),
		H3: hum[hOffH3],
		// MSB bytes are sign extended before the shift, as in the vendor API.
		H4: int16(int8(hum[hOffH4MSB]))<<hShiftMSB | int16(hum[hOffH45]&hMaskH4LSB),
		H5: int16(int8(hum[hOffH5MSB]))<<hShiftMSB | int16(hum[hOffH45]>>hShiftH5LSB),
		H6: int8(hum[hOffH6]),
	}
}
