package control

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/taircarmon1718/Mergui-CAM/internal/calib"
	"github.com/taircarmon1718/Mergui-CAM/internal/debug"
	"github.com/taircarmon1718/Mergui-CAM/internal/hw/lens"
	"github.com/taircarmon1718/Mergui-CAM/internal/logic/autofocus"
)

// State is the top-level control state.
type State int

const (
	StateFixed State = iota
	StateAdjust
	StateCalibrating
)

func (s State) String() string {
	switch s {
	case StateAdjust:
		return "Adjust"
	case StateCalibrating:
		return "Calibrating"
	default:
		return "Fixed"
	}
}

// Command is a discrete control request, typically mapped from a key event.
type Command int

const (
	CmdToggleMode Command = iota
	CmdPanLeft
	CmdPanRight
	CmdTiltUp
	CmdTiltDown
	CmdZoomIn
	CmdZoomOut
	CmdFocusIn
	CmdFocusOut
	CmdCenter
	CmdToggleIRCut
	CmdResetTable
	CmdCalibrate
)

// Config holds the loop tuning.
type Config struct {
	PanStep   int // degrees per pan key press, default 5
	TiltStep  int // degrees per tilt key press, default 5
	ZoomStep  int // motor steps per zoom key press, default 100
	FocusStep int // motor steps per manual focus key press, default 5

	CalibrationPath string
}

func (c *Config) applyDefaults() {
	if c.PanStep <= 0 {
		c.PanStep = 5
	}
	if c.TiltStep <= 0 {
		c.TiltStep = 5
	}
	if c.ZoomStep <= 0 {
		c.ZoomStep = 100
	}
	if c.FocusStep <= 0 {
		c.FocusStep = 5
	}
}

// Status is an immutable snapshot for the display. The worker publishes it;
// any goroutine may read it.
type Status struct {
	State           State
	Pan, Tilt       int
	Zoom, Focus     int
	IRCut           bool
	SettleRemaining time.Duration
	Calibrated      bool
	Entries         int
	Progress        autofocus.Progress
	LastErr         string
}

// Loop owns the hardware: every driver and bus call happens on the single
// worker goroutine inside Run. Key handlers submit commands; readers get
// status snapshots.
type Loop struct {
	driver *lens.Driver
	table  *calib.Table
	engine *autofocus.Engine
	cfg    Config

	cmds chan Command

	mu          sync.Mutex
	status      Status
	calibCancel context.CancelFunc

	lastManualFocus int
}

// NewLoop wires the control loop. Run must be called to start the worker.
func NewLoop(driver *lens.Driver, table *calib.Table, engine *autofocus.Engine, cfg Config) *Loop {
	cfg.applyDefaults()
	return &Loop{
		driver: driver,
		table:  table,
		engine: engine,
		cfg:    cfg,
		cmds:   make(chan Command, 16),
	}
}

// Submit queues a command for the worker. Never blocks: input events can
// arrive at any rate, and a command that finds the worker mid-move is
// dropped with a log line rather than piling up.
func (l *Loop) Submit(cmd Command) {
	select {
	case l.cmds <- cmd:
	default:
		debug.Verbose("command %d dropped, worker busy", cmd)
	}
}

// Status returns the latest published snapshot.
func (l *Loop) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

// CancelCalibration aborts an in-flight calibration run at the next
// per-step boundary. Safe to call from any goroutine; committed entries
// are kept.
func (l *Loop) CancelCalibration() {
	l.mu.Lock()
	cancel := l.calibCancel
	l.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Run executes the startup sequence, then consumes commands until ctx is
// cancelled, and finally runs the shutdown sequence. It is the only
// goroutine that touches the driver.
func (l *Loop) Run(ctx context.Context) error {
	debug.Section("Control loop starting")

	if err := l.driver.SetMode(lens.ModeAdjust); err != nil {
		return err
	}
	if err := l.waitSettle(ctx); err != nil {
		return l.shutdown()
	}
	if err := l.driver.SetIRCut(false); err != nil {
		l.reportErr(err)
	}
	l.publish()

	// First run with no persisted table: calibration required.
	if !l.table.Calibrated() {
		debug.Info("no calibration table, starting automatic calibration")
		l.runCalibration(ctx)
		l.publish()
	}

	for {
		select {
		case <-ctx.Done():
			return l.shutdown()
		case cmd := <-l.cmds:
			l.handle(ctx, cmd)
			l.publish()
		}
	}
}

func (l *Loop) handle(ctx context.Context, cmd Command) {
	switch cmd {
	case CmdToggleMode:
		l.toggleMode()
	case CmdPanLeft:
		l.motion(l.driver.SetPanTilt(l.driver.Pan()-l.cfg.PanStep, l.driver.Tilt()))
	case CmdPanRight:
		l.motion(l.driver.SetPanTilt(l.driver.Pan()+l.cfg.PanStep, l.driver.Tilt()))
	case CmdTiltUp:
		l.motion(l.driver.SetPanTilt(l.driver.Pan(), l.driver.Tilt()+l.cfg.TiltStep))
	case CmdTiltDown:
		l.motion(l.driver.SetPanTilt(l.driver.Pan(), l.driver.Tilt()-l.cfg.TiltStep))
	case CmdCenter:
		l.motion(l.driver.SetPanTilt(90, 90))
	case CmdZoomIn:
		l.stepZoom(l.cfg.ZoomStep)
	case CmdZoomOut:
		l.stepZoom(-l.cfg.ZoomStep)
	case CmdFocusIn:
		l.stepFocus(l.cfg.FocusStep)
	case CmdFocusOut:
		l.stepFocus(-l.cfg.FocusStep)
	case CmdToggleIRCut:
		l.reportErr(l.driver.SetIRCut(!l.driver.IRCut()))
	case CmdResetTable:
		// only permitted from Adjust; the worker is blocked during a
		// calibration run, so mid-calibration resets never get here
		if l.driver.Mode() != lens.ModeAdjust {
			l.setErr("table reset only available in Adjust mode")
			return
		}
		l.table.Reset()
		debug.Info("calibration table reset")
	case CmdCalibrate:
		l.runCalibration(ctx)
	}
}

func (l *Loop) toggleMode() {
	if l.driver.Mode() == lens.ModeAdjust {
		l.reportErr(l.driver.SetMode(lens.ModeFixed))
	} else {
		l.reportErr(l.driver.SetMode(lens.ModeAdjust))
	}
}

// stepZoom drives the zoom axis while consulting the calibration table for
// the paired focus, so the image stays sharp through the zoom change. With
// no calibration it falls back to the last manual focus.
func (l *Loop) stepZoom(delta int) {
	target := clamp(l.driver.Zoom()+delta, 0, l.driver.ZoomMax())
	focus, err := l.table.Lookup(target)
	if err != nil {
		if !errors.Is(err, calib.ErrNotCalibrated) {
			l.reportErr(err)
			return
		}
		focus = l.lastManualFocus
	}
	debug.Verbose("zoom -> %d with focus %d", target, focus)
	l.motion(l.driver.SetFocusZoom(focus, target))
}

func (l *Loop) stepFocus(delta int) {
	target := clamp(l.driver.Focus()+delta, 0, l.driver.FocusMax())
	if err := l.driver.SetFocus(target); err != nil {
		l.motion(err)
		return
	}
	l.lastManualFocus = target
}

// motion reports the outcome of a motion command. A single rejected
// transaction stays recoverable (the operator just retries), but once the
// driver lost track of the motor state it drops to Fixed so no further
// motion is issued until the operator intervenes.
func (l *Loop) motion(err error) {
	l.reportErr(err)
	if err != nil && l.driver.MotionUnknown() {
		debug.Info("motion unconfirmed, holding position in Fixed mode")
		if e := l.driver.SetMode(lens.ModeFixed); e != nil {
			debug.Error(e)
		}
	}
}

// runCalibration blocks the worker for the duration of the build. The run
// is cancellable via CancelCalibration; on completion or cancel the loop
// returns to Adjust.
func (l *Loop) runCalibration(ctx context.Context) {
	if l.driver.Mode() != lens.ModeAdjust {
		l.setErr("calibration requires Adjust mode")
		return
	}
	if rem := l.driver.SettleRemaining(); rem > 0 {
		if err := l.waitSettle(ctx); err != nil {
			return
		}
	}

	cctx, cancel := context.WithCancel(ctx)
	defer cancel()
	l.mu.Lock()
	l.calibCancel = cancel
	l.mu.Unlock()

	err := l.engine.BuildTable(cctx, l.table, func(p autofocus.Progress) {
		l.mu.Lock()
		l.status.Progress = p
		l.status.State = StateCalibrating
		l.status.Entries = l.table.Len()
		l.mu.Unlock()
	})

	l.mu.Lock()
	l.calibCancel = nil
	l.mu.Unlock()

	switch {
	case err == nil:
		debug.Info("calibration complete: %d entries", l.table.Len())
		l.persist()
	case errors.Is(err, context.Canceled):
		debug.Info("calibration cancelled, %d entries kept", l.table.Len())
	default:
		// hardware is likely gone: drop to Fixed and report
		l.reportErr(err)
		var de *lens.DriverError
		if errors.As(err, &de) {
			_ = l.driver.SetMode(lens.ModeFixed)
		}
	}
}

// waitSettle blocks until the adjust servo loop has re-engaged, keeping the
// status display ticking while it waits.
func (l *Loop) waitSettle(ctx context.Context) error {
	for {
		rem := l.driver.SettleRemaining()
		if rem == 0 {
			return nil
		}
		l.publish()
		wait := rem
		if wait > 250*time.Millisecond {
			wait = 250 * time.Millisecond
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// shutdown saves the table and parks the hardware: wait for any motion,
// drop to Fixed, re-home the lens axes. Persistence failures are reported
// but do not block shutdown.
func (l *Loop) shutdown() error {
	debug.Section("Shutdown")
	l.persist()
	if err := l.driver.WaitIdle(); err != nil {
		debug.Error(err)
	}
	if err := l.driver.SetMode(lens.ModeFixed); err != nil {
		debug.Error(err)
	}
	if err := l.driver.ResetFocusZoom(); err != nil {
		debug.Error(err)
	}
	l.publish()
	return nil
}

func (l *Loop) persist() {
	if l.cfg.CalibrationPath == "" {
		return
	}
	if err := l.table.Save(l.cfg.CalibrationPath); err != nil {
		// non-fatal: the session keeps its in-memory table
		l.reportErr(err)
	}
}

// publish refreshes the status snapshot from the worker's view.
func (l *Loop) publish() {
	state := StateFixed
	if l.driver.Mode() == lens.ModeAdjust {
		state = StateAdjust
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.status.State = state
	l.status.Pan = l.driver.Pan()
	l.status.Tilt = l.driver.Tilt()
	l.status.Zoom = l.driver.Zoom()
	l.status.Focus = l.driver.Focus()
	l.status.IRCut = l.driver.IRCut()
	l.status.SettleRemaining = l.driver.SettleRemaining()
	l.status.Calibrated = l.table.Calibrated()
	l.status.Entries = l.table.Len()
	l.status.Progress = autofocus.Progress{}
}

func (l *Loop) reportErr(err error) {
	if err == nil {
		l.mu.Lock()
		l.status.LastErr = ""
		l.mu.Unlock()
		return
	}
	debug.Error(err)
	l.setErr(err.Error())
}

func (l *Loop) setErr(msg string) {
	l.mu.Lock()
	l.status.LastErr = msg
	l.mu.Unlock()
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
