package lens

import (
	"time"

	"github.com/taircarmon1718/Mergui-CAM/internal/debug"
	"github.com/taircarmon1718/Mergui-CAM/internal/hw/regbus"
)

// Mode is the hardware operation mode.
type Mode int

const (
	// ModeFixed holds the last commanded position and ignores motion commands.
	ModeFixed Mode = iota
	// ModeAdjust accepts motion commands.
	ModeAdjust
)

func (m Mode) String() string {
	if m == ModeAdjust {
		return "Adjust"
	}
	return "Fixed"
}

// PanTiltMax is the pan/tilt range in degrees.
const PanTiltMax = 180

// Config holds the driver tuning parameters.
type Config struct {
	PollInterval time.Duration // status poll interval, default 5ms
	WaitTimeout  time.Duration // busy-wait timeout per move, default 10s
	SettleDelay  time.Duration // Fixed->Adjust settle period, default 8s
	ReadRetries  int           // bounded retries for status reads, default 3
}

func (c *Config) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Millisecond
	}
	if c.WaitTimeout <= 0 {
		c.WaitTimeout = 10 * time.Second
	}
	if c.SettleDelay < 0 {
		c.SettleDelay = 0
	} else if c.SettleDelay == 0 {
		c.SettleDelay = 8 * time.Second
	}
	if c.ReadRetries <= 0 {
		c.ReadRetries = 3
	}
}

// Driver translates semantic lens commands into register sequences and
// enforces the motion protocol: clamp, write, busy-wait.
//
// The driver is NOT safe for concurrent use. The underlying bus is a shared
// non-reentrant resource; a single worker goroutine must own all calls.
type Driver struct {
	bus regbus.Bus
	cfg Config

	focusMax int
	zoomMax  int

	mode        Mode
	settleUntil time.Time
	now         func() time.Time // test hook

	// set when a wait timed out: the commanded move was never confirmed
	// complete, so motion is refused until a status read observes IDLE
	motionUnknown bool

	// last commanded positions, for the status display
	focus, zoom, pan, tilt int
	ircut                  bool
}

// NewDriver binds a driver to the bus and reads the axis maxima from the
// device. The lens starts in Fixed mode.
func NewDriver(bus regbus.Bus, cfg Config) (*Driver, error) {
	cfg.applyDefaults()
	d := &Driver{
		bus:  bus,
		cfg:  cfg,
		mode: ModeFixed,
		now:  time.Now,
	}

	fm, err := d.readRetry(regbus.RegFocusMax)
	if err != nil {
		return nil, &DriverError{Axis: "init", Err: err}
	}
	zm, err := d.readRetry(regbus.RegZoomMax)
	if err != nil {
		return nil, &DriverError{Axis: "init", Err: err}
	}
	d.focusMax = int(fm)
	d.zoomMax = int(zm)
	if d.focusMax == 0 {
		debug.Info("device reports focus max 0, assuming 1100")
		d.focusMax = 1100
	}
	if d.zoomMax == 0 {
		debug.Info("device reports zoom max 0, assuming 3000")
		d.zoomMax = 3000
	}

	debug.Value("Focus range", d.focusMax)
	debug.Value("Zoom range", d.zoomMax)
	return d, nil
}

// --- accessors ---

func (d *Driver) FocusMax() int { return d.focusMax }
func (d *Driver) ZoomMax() int  { return d.zoomMax }
func (d *Driver) Focus() int    { return d.focus }
func (d *Driver) Zoom() int     { return d.zoom }
func (d *Driver) Pan() int      { return d.pan }
func (d *Driver) Tilt() int     { return d.tilt }
func (d *Driver) IRCut() bool   { return d.ircut }
func (d *Driver) Mode() Mode    { return d.mode }

// MotionUnknown reports whether the last move timed out without an idle
// confirmation. While set, motion commands fail with ErrMotionUnknown.
func (d *Driver) MotionUnknown() bool { return d.motionUnknown }

// SettleRemaining returns how long until motion commands are accepted
// after a Fixed->Adjust transition. Zero means ready.
func (d *Driver) SettleRemaining() time.Duration {
	rem := d.settleUntil.Sub(d.now())
	if rem < 0 {
		return 0
	}
	return rem
}

// --- motion commands ---

// SetFocus moves the focus motor to v (clamped to [0, FocusMax]) and blocks
// until the move completes.
func (d *Driver) SetFocus(v int) error {
	v = clamp(v, 0, d.focusMax)
	if err := d.motionAllowed(); err != nil {
		return err
	}
	debug.Move("focus", v)
	if err := d.bus.Write16(regbus.RegFocus, uint16(v)); err != nil {
		return &DriverError{Axis: "focus", Err: err}
	}
	d.focus = v
	return d.waitIdle("focus")
}

// SetZoom moves the zoom motor to v (clamped to [0, ZoomMax]) and blocks
// until the move completes.
func (d *Driver) SetZoom(v int) error {
	v = clamp(v, 0, d.zoomMax)
	if err := d.motionAllowed(); err != nil {
		return err
	}
	debug.Move("zoom", v)
	if err := d.bus.Write16(regbus.RegZoom, uint16(v)); err != nil {
		return &DriverError{Axis: "zoom", Err: err}
	}
	d.zoom = v
	return d.waitIdle("zoom")
}

// SetFocusZoom moves both lens motors with a single combined register write,
// so the paired focus lands together with the zoom.
func (d *Driver) SetFocusZoom(focus, zoom int) error {
	focus = clamp(focus, 0, d.focusMax)
	zoom = clamp(zoom, 0, d.zoomMax)
	if err := d.motionAllowed(); err != nil {
		return err
	}
	debug.Live("Motor focus+zoom -> %d/%d", focus, zoom)
	if err := d.bus.Write32(regbus.RegFocusZoom, uint32(focus)<<16|uint32(zoom)); err != nil {
		return &DriverError{Axis: "focus+zoom", Err: err}
	}
	d.focus = focus
	d.zoom = zoom
	return d.waitIdle("focus+zoom")
}

// SetPanTilt moves both position motors with a single combined register
// write. Two sequential single-axis writes would produce a visible two-step
// motion. Both angles are clamped to [0, 180].
func (d *Driver) SetPanTilt(pan, tilt int) error {
	pan = clamp(pan, 0, PanTiltMax)
	tilt = clamp(tilt, 0, PanTiltMax)
	if err := d.motionAllowed(); err != nil {
		return err
	}
	debug.Live("Motor pan+tilt -> %d/%d", pan, tilt)
	if err := d.bus.Write16(regbus.RegPanTilt, uint16(pan)<<8|uint16(tilt)); err != nil {
		return &DriverError{Axis: "pan+tilt", Err: err}
	}
	d.pan = pan
	d.tilt = tilt
	return d.waitIdle("pan+tilt")
}

// --- resets ---

// ResetFocus pulses the focus re-home bit and blocks until the axis homes.
// Resets work in either operation mode.
func (d *Driver) ResetFocus() error {
	return d.reset("focus", regbus.RegResetFocus, func() { d.focus = 0 })
}

// ResetZoom pulses the zoom re-home bit and blocks until the axis homes.
func (d *Driver) ResetZoom() error {
	return d.reset("zoom", regbus.RegResetZoom, func() { d.zoom = 0 })
}

// ResetFocusZoom re-homes both lens axes with a single pulse.
func (d *Driver) ResetFocusZoom() error {
	return d.reset("focus+zoom", regbus.RegResetFocusZoom, func() { d.focus, d.zoom = 0, 0 })
}

func (d *Driver) reset(axis string, reg uint8, homed func()) error {
	debug.Live("Reset %s", axis)
	if err := d.bus.Write16(reg, 1); err != nil {
		return &DriverError{Axis: axis, Err: err}
	}
	homed()
	return d.waitIdle(axis)
}

// --- non-motion commands ---

// SetIRCut toggles the IR-cut filter. Pure register bit, no busy-wait.
func (d *Driver) SetIRCut(on bool) error {
	var v uint16
	if on {
		v = 1
	}
	debug.Live("IR-cut -> %v", on)
	if err := d.bus.Write16(regbus.RegIRCut, v); err != nil {
		return &DriverError{Axis: "ircut", Err: err}
	}
	d.ircut = on
	return nil
}

// SetMode writes the operation mode register. Switching Fixed->Adjust starts
// the settle period; motion commands fail with *SettleError until it elapses.
// The delay is a hardware characteristic of the adjust servo loop, modelled
// as a recorded deadline so callers stay responsive.
func (d *Driver) SetMode(m Mode) error {
	var v uint16
	if m == ModeAdjust {
		v = 1
	}
	if err := d.bus.Write16(regbus.RegMode, v); err != nil {
		return &DriverError{Axis: "mode", Err: err}
	}
	if m == ModeAdjust && d.mode == ModeFixed {
		d.settleUntil = d.now().Add(d.cfg.SettleDelay)
	}
	d.mode = m
	debug.Info("Operation mode -> %s", m)
	return nil
}

// Busy reads the status register (with bounded retries) and reports whether
// a motor is still moving. Observing IDLE clears a pending motion-unknown
// condition.
func (d *Driver) Busy() (bool, error) {
	busy, err := regbus.Busy(retryBus{d}, regbus.RegStatus)
	if err == nil && !busy {
		d.motionUnknown = false
	}
	return busy, err
}

// WaitIdle blocks until all motors report idle or the configured timeout
// elapses. After a timeout the motion state is unknown and motion commands
// are refused until a status re-read observes IDLE.
func (d *Driver) WaitIdle() error {
	return d.waitIdle("status")
}

// --- internals ---

func (d *Driver) motionAllowed() error {
	if d.motionUnknown {
		return ErrMotionUnknown
	}
	if d.mode != ModeAdjust {
		return ErrFixedMode
	}
	if rem := d.SettleRemaining(); rem > 0 {
		return &SettleError{Remaining: rem}
	}
	return nil
}

func (d *Driver) waitIdle(axis string) error {
	err := regbus.WaitIdle(retryBus{d}, regbus.RegStatus, d.cfg.PollInterval, d.cfg.WaitTimeout)
	if err != nil {
		d.motionUnknown = true
		return &DriverError{Axis: axis, Err: err}
	}
	d.motionUnknown = false
	return nil
}

// readRetry retries pure register reads up to the configured count. Motion
// writes are never retried: a replayed write could double-move the actuator.
func (d *Driver) readRetry(reg uint8) (uint16, error) {
	var lastErr error
	for i := 0; i < d.cfg.ReadRetries; i++ {
		v, err := d.bus.Read16(reg)
		if err == nil {
			return v, nil
		}
		lastErr = err
		debug.Trace("read 0x%02X failed (attempt %d/%d): %v", reg, i+1, d.cfg.ReadRetries, err)
	}
	return 0, lastErr
}

// retryBus adapts the driver's bounded read retry policy to the regbus
// polling helpers. Writes pass through untouched.
type retryBus struct{ d *Driver }

func (r retryBus) Read16(reg uint8) (uint16, error)      { return r.d.readRetry(reg) }
func (r retryBus) Write16(reg uint8, value uint16) error { return r.d.bus.Write16(reg, value) }
func (r retryBus) Write32(reg uint8, value uint32) error { return r.d.bus.Write32(reg, value) }
func (r retryBus) Close() error                          { return r.d.bus.Close() }

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
