package ui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/taircarmon1718/Mergui-CAM/internal/logic/control"
)

type fakeController struct {
	submitted []control.Command
	cancelled int
	status    control.Status
}

func (c *fakeController) Submit(cmd control.Command) { c.submitted = append(c.submitted, cmd) }
func (c *fakeController) Status() control.Status     { return c.status }
func (c *fakeController) CancelCalibration()         { c.cancelled++ }

func key(s string) tea.KeyMsg {
	switch s {
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func TestKeyBindings(t *testing.T) {
	cases := []struct {
		key  string
		want control.Command
	}{
		{"T", control.CmdToggleMode},
		{"t", control.CmdToggleMode},
		{"left", control.CmdPanLeft},
		{"right", control.CmdPanRight},
		{"w", control.CmdTiltUp},
		{"s", control.CmdTiltDown},
		{"up", control.CmdZoomIn},
		{"down", control.CmdZoomOut},
		{"]", control.CmdFocusIn},
		{"[", control.CmdFocusOut},
		{"c", control.CmdCenter},
		{"i", control.CmdToggleIRCut},
		{"F", control.CmdCalibrate},
		{"R", control.CmdResetTable},
	}

	for _, tc := range cases {
		ctrl := &fakeController{}
		m := New(ctrl, nil)
		m.Update(key(tc.key))
		if len(ctrl.submitted) != 1 || ctrl.submitted[0] != tc.want {
			t.Errorf("key %q: submitted %v, want [%v]", tc.key, ctrl.submitted, tc.want)
		}
	}
}

func TestEscCancelsCalibration(t *testing.T) {
	ctrl := &fakeController{}
	m := New(ctrl, nil)
	m.Update(key("esc"))
	if ctrl.cancelled != 1 {
		t.Errorf("cancelled = %d, want 1", ctrl.cancelled)
	}
	if len(ctrl.submitted) != 0 {
		t.Errorf("esc must not submit a command, got %v", ctrl.submitted)
	}
}

func TestQuitInvokesShutdown(t *testing.T) {
	quits := 0
	m := New(&fakeController{}, func() { quits++ })
	_, cmd := m.Update(key("q"))
	if quits != 1 {
		t.Errorf("quit func called %d times, want 1", quits)
	}
	if cmd == nil {
		t.Fatal("expected tea.Quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.Quit command")
	}
}

func TestTickRefreshesStatus(t *testing.T) {
	ctrl := &fakeController{status: control.Status{Zoom: 1234}}
	m := New(ctrl, nil)

	next, cmd := m.Update(TickMsg{})
	if cmd == nil {
		t.Error("tick should schedule the next tick")
	}
	if got := next.(Model).status.Zoom; got != 1234 {
		t.Errorf("status zoom = %d, want 1234", got)
	}
}

func TestLogMsgKeepsBoundedScrollback(t *testing.T) {
	m := New(&fakeController{}, nil)
	var model tea.Model = m
	for i := 0; i < logKeep+50; i++ {
		model, _ = model.(Model).Update(LogMsg("line"))
	}
	if got := len(model.(Model).logs); got != logKeep {
		t.Errorf("scrollback = %d lines, want %d", got, logKeep)
	}
}

func TestLogWriterSplitsLines(t *testing.T) {
	var got []string
	w := NewLogWriter(func(msg tea.Msg) {
		got = append(got, string(msg.(LogMsg)))
	})

	w.Write([]byte("first line\nsecond "))
	w.Write([]byte("half\n"))

	if len(got) != 2 || got[0] != "first line" || got[1] != "second half" {
		t.Errorf("lines = %q, want [first line, second half]", got)
	}
}

func TestTruncate_MeasuresDisplayWidth(t *testing.T) {
	if got := truncate("abcdef", 4); got != "abcd" {
		t.Errorf("ascii truncate = %q, want %q", got, "abcd")
	}
	if got := truncate("abc", 4); got != "abc" {
		t.Errorf("short line = %q, want unchanged", got)
	}

	// wide glyphs occupy two columns each, so five columns fit only two
	wide := "日本語"
	got := truncate(wide, 5)
	if got != "日本" {
		t.Errorf("wide truncate = %q, want %q", got, "日本")
	}
	if w := lipgloss.Width(got); w > 5 {
		t.Errorf("truncated width = %d, must not exceed 5", w)
	}
}

func TestView_ShowsStatusAndError(t *testing.T) {
	ctrl := &fakeController{status: control.Status{
		State:   control.StateAdjust,
		Pan:     90,
		Tilt:    45,
		Zoom:    1500,
		Focus:   321,
		LastErr: "lens: settling after mode switch",
	}}
	m := New(ctrl, nil)
	m.width, m.height = 120, 24
	model, _ := m.Update(TickMsg{})

	view := model.(Model).View()
	for _, want := range []string{"Adjust", "1500", "321", "settling"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}
