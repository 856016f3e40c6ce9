package regbus

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/taircarmon1718/Mergui-CAM/internal/debug"
)

// DefaultAddr is the I2C address of the lens controller MCU.
const DefaultAddr uint16 = 0x0C

// I2CBus is the real implementation talking to the PTZ lens hat over I2C.
// Registers are 16-bit big-endian; the combined Focus&Zoom register is
// 32-bit big-endian.
type I2CBus struct {
	bus i2c.BusCloser
	dev *i2c.Dev
}

// OpenI2C opens the named I2C bus (e.g. "1" on a Raspberry Pi; empty string
// selects the first available bus) and binds the lens controller at addr.
func OpenI2C(name string, addr uint16) (*I2CBus, error) {
	debug.Info("Initializing real I2C bus (periph.io)")

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init periph host: %w", err)
	}
	bus, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w (are you running on a Raspberry Pi?)", name, err)
	}
	if addr == 0 {
		addr = DefaultAddr
	}
	return &I2CBus{
		bus: bus,
		dev: &i2c.Dev{Bus: bus, Addr: addr},
	}, nil
}

func (b *I2CBus) Read16(reg uint8) (uint16, error) {
	var buf [2]byte
	if err := b.dev.Tx([]byte{reg}, buf[:]); err != nil {
		return 0, &TransportError{Op: "read16", Reg: reg, Err: err}
	}
	v := uint16(buf[0])<<8 | uint16(buf[1])
	debug.Bus("Read16", reg, v)
	return v, nil
}

func (b *I2CBus) Write16(reg uint8, value uint16) error {
	debug.Bus("Write16", reg, value)
	out := []byte{reg, byte(value >> 8), byte(value)}
	if err := b.dev.Tx(out, nil); err != nil {
		return &TransportError{Op: "write16", Reg: reg, Err: err}
	}
	return nil
}

func (b *I2CBus) Write32(reg uint8, value uint32) error {
	debug.Bus("Write32", reg, value)
	out := []byte{reg, byte(value >> 24), byte(value >> 16), byte(value >> 8), byte(value)}
	if err := b.dev.Tx(out, nil); err != nil {
		return &TransportError{Op: "write32", Reg: reg, Err: err}
	}
	return nil
}

func (b *I2CBus) Close() error {
	debug.Trace("I2C bus close")
	return b.bus.Close()
}
