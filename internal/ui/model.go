package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/taircarmon1718/Mergui-CAM/internal/logic/control"
)

// Controller is the slice of the control loop the UI drives.
type Controller interface {
	Submit(control.Command)
	Status() control.Status
	CancelCalibration()
}

// TickMsg triggers a status refresh.
type TickMsg time.Time

// LogMsg carries one debug log line into the scrollback pane.
type LogMsg string

const (
	refreshRate = 10 // status refreshes per second
	logKeep     = 200
)

// Model is the root Bubble Tea model. Value receivers per Bubble Tea
// convention; the controller pointer is shared across copies.
type Model struct {
	ctrl Controller
	quit func() // cancels the application context so the loop parks the hardware

	width  int
	height int

	status control.Status
	logs   []string
}

// New creates the root model. quit is invoked once when the user asks to
// exit, before the program tears down.
func New(ctrl Controller, quit func()) Model {
	return Model{ctrl: ctrl, quit: quit}
}

func (m Model) Init() tea.Cmd {
	return tickCmd()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case TickMsg:
		m.status = m.ctrl.Status()
		return m, tickCmd()

	case LogMsg:
		m.logs = append(m.logs, string(msg))
		if len(m.logs) > logKeep {
			m.logs = m.logs[len(m.logs)-logKeep:]
		}
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		if m.quit != nil {
			m.quit()
		}
		return m, tea.Quit

	case "esc":
		m.ctrl.CancelCalibration()

	case "t", "T":
		m.ctrl.Submit(control.CmdToggleMode)

	case "left":
		m.ctrl.Submit(control.CmdPanLeft)
	case "right":
		m.ctrl.Submit(control.CmdPanRight)
	case "w":
		m.ctrl.Submit(control.CmdTiltUp)
	case "s":
		m.ctrl.Submit(control.CmdTiltDown)
	case "c":
		m.ctrl.Submit(control.CmdCenter)

	case "up":
		m.ctrl.Submit(control.CmdZoomIn)
	case "down":
		m.ctrl.Submit(control.CmdZoomOut)
	case "]":
		m.ctrl.Submit(control.CmdFocusIn)
	case "[":
		m.ctrl.Submit(control.CmdFocusOut)

	case "i":
		m.ctrl.Submit(control.CmdToggleIRCut)
	case "F":
		m.ctrl.Submit(control.CmdCalibrate)
	case "R":
		m.ctrl.Submit(control.CmdResetTable)
	}

	return m, nil
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second/refreshRate, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
