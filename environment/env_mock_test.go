package environment

import (
	"context"
	"fmt"
	"testing"

	"periph.io/x/conn/v3/physic"
)

func TestMockEnvironmentSensor_StaticValues(t *testing.T) {
	sensor := NewStaticEnvironmentSensor(Reading{Temperature: 22.5, Pressure: 101325, Humidity: 45})

	r, err := sensor.Read(context.Background(), nil)
	if err != nil {
		t.Fatalf("Read: unexpected error: %v", err)
	}
	if r.Temperature != 22.5 || r.Pressure != 101325 || r.Humidity != 45 {
		t.Errorf("expected 22.5/101325/45, got %f/%f/%f", r.Temperature, r.Pressure, r.Humidity)
	}
}

func TestMockEnvironmentSensor_DynamicBehavior(t *testing.T) {
	counter := 0
	sensor := NewMockEnvironmentSensor(func(ctx context.Context) (Reading, error) {
		counter++
		return Reading{Temperature: 20 + float32(counter)*0.5, Pressure: 100000, Humidity: 50 - float32(counter)}, nil
	})

	ctx := context.Background()
	r1, _ := sensor.Read(ctx, nil)
	if r1.Temperature != 20.5 || r1.Humidity != 49 {
		t.Errorf("first reading: expected 20.5/49.0, got %f/%f", r1.Temperature, r1.Humidity)
	}
	r2, _ := sensor.Read(ctx, nil)
	if r2.Temperature != 21 || r2.Humidity != 48 {
		t.Errorf("second reading: expected 21.0/48.0, got %f/%f", r2.Temperature, r2.Humidity)
	}
}

func TestMockEnvironmentSensor_ErrorHandling(t *testing.T) {
	sensor := NewMockEnvironmentSensor(func(ctx context.Context) (Reading, error) {
		return Reading{}, fmt.Errorf("sensor error")
	})
	_, err := sensor.Read(context.Background(), nil)
	if err == nil || err.Error() != "sensor error" {
		t.Errorf("expected sensor error, got %v", err)
	}
}

func TestMockEnvironmentSensor_ContextUsage(t *testing.T) {
	var received context.Context
	sensor := NewMockEnvironmentSensor(func(ctx context.Context) (Reading, error) {
		received = ctx
		return Reading{}, nil
	})

	type contextKey string
	key := contextKey("test")
	ctx := context.WithValue(context.Background(), key, "test-value")
	_, _ = sensor.Read(ctx, nil)
	if received.Value(key) != "test-value" {
		t.Error("context was not passed through to behavior")
	}
}

func TestMockEnvironmentSensor_Reset(t *testing.T) {
	sensor := NewStaticEnvironmentSensor(Reading{})
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := sensor.Reset(ctx, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if sensor.ResetCalls() != 3 {
		t.Errorf("expected 3 reset calls, got %d", sensor.ResetCalls())
	}
}

func TestReading_Env(t *testing.T) {
	env := Reading{Temperature: 25, Pressure: 100000, Humidity: 50}.Env()
	if got := env.Temperature.Celsius(); got < 24.999 || got > 25.001 {
		t.Errorf("expected 25°C, got %f", got)
	}
	if env.Pressure != 100000*physic.Pascal {
		t.Errorf("expected 100kPa, got %s", env.Pressure)
	}
	if env.Humidity != 50*physic.PercentRH {
		t.Errorf("expected 50%%rH, got %s", env.Humidity)
	}
}
