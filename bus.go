package envsense

import (
	"context"
	"fmt"
	"time"
)

var ErrBusBusy = fmt.Errorf("I2C engine is busy (command not completed)")

type AddressableReader interface {
	ReadFromAddr(ctx context.Context, address byte, buffer []byte) error
}

type AddressableWriter interface {
	WriteToAddr(ctx context.Context, address byte, buffer []byte) error
	Release(ctx context.Context) error
}

// AddressableWriteReader writes command bytes and reads the response within a
// single bus transaction (repeated start, no stop in between). Register
// addressed devices use it to set the register pointer and read from it.
type AddressableWriteReader interface {
	WriteReadFromAddr(ctx context.Context, address byte, command []byte, buffer []byte) error
}

// I2CBus is the transport the sensor drivers are written against. It is
// passed to every driver call and never retained.
type I2CBus interface {
	AddressableReader
	AddressableWriter
	AddressableWriteReader
}

// Delayer blocks the caller for at least d.
type Delayer interface {
	Delay(d time.Duration)
}

// SleepDelayer implements Delayer with time.Sleep.
type SleepDelayer struct{}

func (SleepDelayer) Delay(d time.Duration) {
	time.Sleep(d)
}
