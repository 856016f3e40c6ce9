package regbus

import (
	"fmt"
	"time"

	"github.com/taircarmon1718/Mergui-CAM/internal/debug"
)

// Bus is the abstract register interface of the lens controller MCU.
// This allows plugging in the real I2C implementation on a Raspberry Pi
// or a simulator for development on PC and for tests.
type Bus interface {
	Read16(reg uint8) (uint16, error)
	Write16(reg uint8, value uint16) error
	Write32(reg uint8, value uint32) error
	Close() error
}

// TransportError reports a failed register transaction (I/O failure,
// device not acknowledging).
type TransportError struct {
	Op  string // "read16", "write16", "write32"
	Reg uint8
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("register %s at 0x%02X: %v", e.Op, e.Reg, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// TimeoutError reports that the busy bit never cleared within the allowed
// window. Callers must treat this as "motor may still be moving" and must
// not assume the commanded position was reached.
type TimeoutError struct {
	Reg    uint8
	Waited time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("device busy: status 0x%02X did not clear within %v", e.Reg, e.Waited)
}

// busyBit is bit0 of the status register; 1 = a motor is moving.
const busyBit = 0x0001

// Busy reads the status register and reports whether the device is moving.
func Busy(b Bus, statusReg uint8) (bool, error) {
	v, err := b.Read16(statusReg)
	if err != nil {
		return false, err
	}
	return v&busyBit != 0, nil
}

// WaitIdle polls the status register at the given interval until the busy
// bit clears or the timeout elapses. On expiry it returns *TimeoutError.
func WaitIdle(b Bus, statusReg uint8, interval, timeout time.Duration) error {
	if interval <= 0 {
		interval = 5 * time.Millisecond
	}
	deadline := time.Now().Add(timeout)
	for {
		busy, err := Busy(b, statusReg)
		if err != nil {
			return err
		}
		if !busy {
			return nil
		}
		if time.Now().After(deadline) {
			debug.Trace("WaitIdle: status 0x%02X still busy after %v", statusReg, timeout)
			return &TimeoutError{Reg: statusReg, Waited: timeout}
		}
		time.Sleep(interval)
	}
}
