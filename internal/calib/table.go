package calib

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/taircarmon1718/Mergui-CAM/internal/debug"
)

// ErrNotCalibrated is returned by Lookup on an empty table. Not fatal:
// callers fall back to the last manual focus value.
var ErrNotCalibrated = errors.New("calib: no calibration entries")

// Entry is one point on the focus-vs-zoom curve, produced by an autofocus
// search at a fixed zoom. Score is advisory only after load; control
// decisions use Focus alone.
type Entry struct {
	Zoom  int     `yaml:"zoom"`
	Focus int     `yaml:"focus"`
	Score float64 `yaml:"score"`
}

// Table maps zoom positions to best-known focus positions. Entries are kept
// ordered by zoom with unique keys. Mutations come from the single control
// worker; concurrent readers use Snapshot.
type Table struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewTable returns an empty table (the "calibration required" state).
func NewTable() *Table {
	return &Table{}
}

// Len returns the number of entries.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Calibrated reports whether the table has at least one entry.
func (t *Table) Calibrated() bool {
	return t.Len() > 0
}

// Snapshot returns an immutable copy of the entries, ordered by zoom.
func (t *Table) Snapshot() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Lookup returns the focus position for the given zoom. Exact entries win;
// between two entries the focus is linearly interpolated; outside the
// calibrated range the nearest boundary entry is used (extrapolating a
// focus beyond the calibrated range is unsafe). An empty table returns
// ErrNotCalibrated.
func (t *Table) Lookup(zoom int) (int, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if len(t.entries) == 0 {
		return 0, ErrNotCalibrated
	}

	i := sort.Search(len(t.entries), func(i int) bool {
		return t.entries[i].Zoom >= zoom
	})
	if i < len(t.entries) && t.entries[i].Zoom == zoom {
		return t.entries[i].Focus, nil
	}
	if i == 0 {
		return t.entries[0].Focus, nil
	}
	if i == len(t.entries) {
		return t.entries[len(t.entries)-1].Focus, nil
	}

	lo, hi := t.entries[i-1], t.entries[i]
	span := hi.Zoom - lo.Zoom
	focus := lo.Focus + (hi.Focus-lo.Focus)*(zoom-lo.Zoom)/span
	debug.Verbose("lookup zoom=%d between (%d,%d) and (%d,%d) -> %d",
		zoom, lo.Zoom, lo.Focus, hi.Zoom, hi.Focus, focus)
	return focus, nil
}

// Upsert inserts or replaces the entry for its zoom position, keeping the
// sequence ordered.
func (t *Table) Upsert(e Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	i := sort.Search(len(t.entries), func(i int) bool {
		return t.entries[i].Zoom >= e.Zoom
	})
	if i < len(t.entries) && t.entries[i].Zoom == e.Zoom {
		t.entries[i] = e
		return
	}
	t.entries = append(t.entries, Entry{})
	copy(t.entries[i+1:], t.entries[i:])
	t.entries[i] = e
}

// Reset clears all entries (user-triggered full recalibration).
func (t *Table) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = nil
}

// fileFormat is the on-disk representation.
type fileFormat struct {
	Entries []Entry `yaml:"entries"`
}

// Load reads the persisted table from path. A missing file is a normal
// "uncalibrated" state and returns an empty table with no error.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		debug.Info("no calibration file at %s, calibration required", path)
		return NewTable(), nil
	}
	if err != nil {
		return NewTable(), fmt.Errorf("read calibration file: %w", err)
	}

	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return NewTable(), fmt.Errorf("unmarshal calibration yaml: %w", err)
	}

	t := NewTable()
	for _, e := range f.Entries {
		t.Upsert(e)
	}
	debug.Info("loaded %d calibration entries from %s", t.Len(), path)
	return t, nil
}

// Save writes the table to path.
func (t *Table) Save(path string) error {
	data, err := yaml.Marshal(fileFormat{Entries: t.Snapshot()})
	if err != nil {
		return fmt.Errorf("marshal calibration yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write calibration file: %w", err)
	}
	debug.Info("saved %d calibration entries to %s", t.Len(), path)
	return nil
}
