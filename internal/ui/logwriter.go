package ui

import (
	"bytes"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// LogWriter adapts the debug logger's output into LogMsg events, so log
// lines land in the scrollback pane instead of corrupting the display.
// Safe for concurrent writers; partial lines are buffered until their
// newline arrives.
type LogWriter struct {
	send func(tea.Msg)

	mu  sync.Mutex
	buf bytes.Buffer
}

// NewLogWriter wraps a send function, typically (*tea.Program).Send.
func NewLogWriter(send func(tea.Msg)) *LogWriter {
	return &LogWriter{send: send}
}

func (w *LogWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	w.buf.Write(p)
	var lines []string
	for {
		i := bytes.IndexByte(w.buf.Bytes(), '\n')
		if i < 0 {
			break
		}
		lines = append(lines, string(w.buf.Next(i)))
		w.buf.Next(1) // the newline itself
	}
	w.mu.Unlock()

	// send outside the lock: Send may block while the program starts up
	for _, line := range lines {
		w.send(LogMsg(line))
	}
	return len(p), nil
}
