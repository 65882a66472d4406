package environment

// Fixed point compensation from the BME280 datasheet (section 4.2.3).
// Temperature must be compensated first: its fine temperature feeds both the
// pressure and the humidity stage. A fine temperature taken from another
// sample gives plausible but wrong results, nothing here checks for that.

// humidityQ2210Max is 100 %RH in Q22.10 before the final >>12.
const humidityQ2210Max = 419430400

// CompensateTemperature returns the temperature in degrees Celsius with 0.01
// resolution and the fine temperature used by the other stages.
func (c BME280Calibration) CompensateTemperature(adcT int32) (float32, int64) {
	t1 := int32(c.T1)
	t2 := int32(c.T2)
	t3 := int32(c.T3)

	var1 := (((adcT >> 3) - (t1 << 1)) * t2) >> 11
	var2 := (((((adcT >> 4) - t1) * ((adcT >> 4) - t1)) >> 12) * t3) >> 14

	tFine := int64(var1) + int64(var2)
	centi := (tFine*5 + 128) >> 8
	return float32(float64(centi) / 100), tFine
}

// CompensatePressure returns the pressure in pascals. Intermediate products
// exceed 32 bits so everything runs on int64. When the denominator term is
// zero (e.g. P1 == 0) the result is 0.
func (c BME280Calibration) CompensatePressure(adcP int32, tFine int64) float32 {
	p1 := int64(c.P1)
	p2 := int64(c.P2)
	p3 := int64(c.P3)
	p4 := int64(c.P4)
	p5 := int64(c.P5)
	p6 := int64(c.P6)
	p7 := int64(c.P7)
	p8 := int64(c.P8)
	p9 := int64(c.P9)

	var1 := tFine - 128000
	var2 := var1 * var1 * p6
	var2 += (var1 * p5) << 17
	var2 += p4 << 35
	var1 = ((var1 * var1 * p3) >> 8) + ((var1 * p2) << 12)
	var1 = (((int64(1) << 47) + var1) * p1) >> 33
	if var1 == 0 {
		return 0
	}

	p := 1048576 - int64(adcP)
	p = (((p << 31) - var2) * 3125) / var1
	var1 = (p9 * (p >> 13) * (p >> 13)) >> 25
	var2 = (p8 * p) >> 19
	p = ((p + var1 + var2) >> 8) + (p7 << 4)

	// p is Q24.8
	return float32(float64(p) / 256)
}

// CompensateHumidity returns the relative humidity in %RH, always within
// [0, 100].
func (c BME280Calibration) CompensateHumidity(adcH int32, tFine int64) float32 {
	h1 := int32(c.H1)
	h2 := int32(c.H2)
	h3 := int32(c.H3)
	h4 := int32(c.H4)
	h5 := int32(c.H5)
	h6 := int32(c.H6)

	var1 := int32(tFine - 76800)
	var2 := ((adcH << 14) - (h4 << 20) - (h5 * var1) + 16384) >> 15
	var3 := (((var1 * h6) >> 10) * (((var1 * h3) >> 11) + 32768)) >> 10
	var4 := ((var3+2097152)*h2 + 8192) >> 14
	var5 := var2 * var4
	var5 -= ((((var5 >> 15) * (var5 >> 15)) >> 7) * h1) >> 4

	if var5 < 0 {
		var5 = 0
	}
	if var5 > humidityQ2210Max {
		var5 = humidityQ2210Max
	}
	// Q22.10
	return float32(float64(var5>>12) / 1024)
}

// Compensate converts a raw sample. Temperature runs first and its fine
// temperature is handed to the pressure and humidity stages.
func (c BME280Calibration) Compensate(raw BME280Raw) Reading {
	temp, tFine := c.CompensateTemperature(raw.Temperature)
	return Reading{
		Temperature: temp,
		Pressure:    c.CompensatePressure(raw.Pressure, tFine),
		Humidity:    c.CompensateHumidity(raw.Humidity, tFine),
	}
}
