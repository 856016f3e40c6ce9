package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/taircarmon1718/Mergui-CAM/internal/logic/autofocus"
	"github.com/taircarmon1718/Mergui-CAM/internal/logic/control"
)

const helpLine = "T mode  ←/→ pan  w/s tilt  ↑/↓ zoom  [/] focus  c center  i IR-cut  F calibrate  R reset  esc cancel  q quit"

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Starting lens controller..."
	}

	title := StyleTitle.Render("Mergui-CAM lens controller")
	status := m.renderStatus()
	help := StyleHelp.Render(helpLine)

	// everything left over is log scrollback
	logH := m.height - lipgloss.Height(title) - lipgloss.Height(status) - lipgloss.Height(help) - 1
	if logH < 1 {
		logH = 1
	}
	logPane := m.renderLog(logH)

	return lipgloss.JoinVertical(lipgloss.Left, title, status, logPane, help)
}

func (m Model) renderStatus() string {
	s := m.status

	mode := StyleMode.Render(s.State.String())
	if s.State == control.StateCalibrating {
		mode = StyleSettle.Render(calibrationLabel(s.Progress))
	} else if s.SettleRemaining > 0 {
		mode += StyleSettle.Render(fmt.Sprintf(" (settling %s)", s.SettleRemaining.Round(time.Second)))
	}

	fields := []string{
		StyleLabel.Render("mode ") + mode,
		StyleLabel.Render("pan/tilt ") + StyleValue.Render(fmt.Sprintf("%d°/%d°", s.Pan, s.Tilt)),
		StyleLabel.Render("zoom ") + StyleValue.Render(fmt.Sprintf("%d", s.Zoom)),
		StyleLabel.Render("focus ") + StyleValue.Render(fmt.Sprintf("%d", s.Focus)),
		StyleLabel.Render("IR-cut ") + StyleValue.Render(onOff(s.IRCut)),
		StyleLabel.Render("table ") + StyleValue.Render(tableLabel(s)),
	}
	line := strings.Join(fields, "  ")

	if s.LastErr != "" {
		return line + "\n" + StyleError.Render("! "+s.LastErr)
	}
	return line
}

func calibrationLabel(p autofocus.Progress) string {
	if p.ZoomCount == 0 {
		return "Calibrating"
	}
	return fmt.Sprintf("Calibrating %d/%d (zoom %d, %s)",
		p.ZoomIndex+1, p.ZoomCount, p.Zoom, p.Phase)
}

func tableLabel(s control.Status) string {
	if !s.Calibrated {
		return "empty"
	}
	return fmt.Sprintf("%d entries", s.Entries)
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func (m Model) renderLog(height int) string {
	lines := m.logs
	if len(lines) > height {
		lines = lines[len(lines)-height:]
	}
	out := make([]string, height)
	for i := range out {
		if i < len(lines) {
			out[i] = StyleLog.Render(truncate(lines[i], m.width))
		}
	}
	return strings.Join(out, "\n")
}

// truncate cuts s down to the given display width. Wide glyphs occupy two
// columns, so the cut is measured, not counted in runes.
func truncate(s string, width int) string {
	if width <= 0 || lipgloss.Width(s) <= width {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && lipgloss.Width(string(r)) > width {
		r = r[:len(r)-1]
	}
	return string(r)
}
