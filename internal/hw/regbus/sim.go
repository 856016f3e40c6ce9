package regbus

import (
	"sync"

	"github.com/taircarmon1718/Mergui-CAM/internal/debug"
)

// SimBus is a software model of the lens controller, used for development
// on PC and for tests. Motion writes raise the busy bit for a fixed number
// of status reads, mimicking the slow mechanical actuator.
type SimBus struct {
	mu        sync.Mutex
	regs      map[uint8]uint16
	busyTicks int // status reads a motion write stays BUSY for
	busyLeft  int

	// Optional fault injection for tests. When non-nil they are consulted
	// before the register file; a non-nil return aborts the operation.
	ReadErr  func(reg uint8) error
	WriteErr func(reg uint8) error
}

// SimConfig sets up the simulated device.
type SimConfig struct {
	FocusMax  int // 0 defaults to 1100 (the stock lens module)
	ZoomMax   int // 0 defaults to 3000
	BusyTicks int // 0 defaults to 2
}

// NewSimBus creates a simulated lens controller in Fixed mode, homed to zero.
func NewSimBus(cfg SimConfig) *SimBus {
	if cfg.FocusMax <= 0 {
		cfg.FocusMax = 1100
	}
	if cfg.ZoomMax <= 0 {
		cfg.ZoomMax = 3000
	}
	if cfg.BusyTicks <= 0 {
		cfg.BusyTicks = 2
	}
	debug.Info("Using SIMULATED lens bus (development mode)")
	return &SimBus{
		regs: map[uint8]uint16{
			RegFocusMax: uint16(cfg.FocusMax),
			RegZoomMax:  uint16(cfg.ZoomMax),
		},
		busyTicks: cfg.BusyTicks,
	}
}

func (s *SimBus) Read16(reg uint8) (uint16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ReadErr != nil {
		if err := s.ReadErr(reg); err != nil {
			return 0, &TransportError{Op: "read16", Reg: reg, Err: err}
		}
	}
	if reg == RegStatus {
		if s.busyLeft > 0 {
			s.busyLeft--
			return busyBit, nil
		}
		return 0, nil
	}
	return s.regs[reg], nil
}

func (s *SimBus) Write16(reg uint8, value uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.WriteErr != nil {
		if err := s.WriteErr(reg); err != nil {
			return &TransportError{Op: "write16", Reg: reg, Err: err}
		}
	}
	switch reg {
	case RegFocus, RegZoom, RegPan, RegTilt:
		s.regs[reg] = value
		s.busyLeft = s.busyTicks
	case RegPanTilt:
		s.regs[RegPan] = value >> 8
		s.regs[RegTilt] = value & 0xFF
		s.busyLeft = s.busyTicks
	case RegResetFocus:
		s.regs[RegFocus] = 0
		s.busyLeft = s.busyTicks
	case RegResetZoom:
		s.regs[RegZoom] = 0
		s.busyLeft = s.busyTicks
	case RegResetFocusZoom:
		s.regs[RegFocus] = 0
		s.regs[RegZoom] = 0
		s.busyLeft = s.busyTicks
	default:
		s.regs[reg] = value
	}
	return nil
}

func (s *SimBus) Write32(reg uint8, value uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.WriteErr != nil {
		if err := s.WriteErr(reg); err != nil {
			return &TransportError{Op: "write32", Reg: reg, Err: err}
		}
	}
	if reg == RegFocusZoom {
		s.regs[RegFocus] = uint16(value >> 16)
		s.regs[RegZoom] = uint16(value)
		s.busyLeft = s.busyTicks
		return nil
	}
	s.regs[reg] = uint16(value)
	return nil
}

func (s *SimBus) Close() error {
	debug.Trace("sim bus close")
	return nil
}

// Position returns the current simulated focus and zoom. Used by the
// synthetic camera source to derive frame sharpness.
func (s *SimBus) Position() (focus, zoom int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int(s.regs[RegFocus]), int(s.regs[RegZoom])
}
