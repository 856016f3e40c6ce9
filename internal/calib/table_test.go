package calib

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func threePointTable() *Table {
	t := NewTable()
	t.Upsert(Entry{Zoom: 10, Focus: 100, Score: 12.5})
	t.Upsert(Entry{Zoom: 50, Focus: 300, Score: 20.0})
	t.Upsert(Entry{Zoom: 90, Focus: 250, Score: 18.0})
	return t
}

func TestLookup_EmptyTable(t *testing.T) {
	tab := NewTable()
	_, err := tab.Lookup(100)
	if !errors.Is(err, ErrNotCalibrated) {
		t.Fatalf("expected ErrNotCalibrated, got %v", err)
	}
}

func TestLookup_ExactHit(t *testing.T) {
	tab := threePointTable()
	got, err := tab.Lookup(50)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got != 300 {
		t.Errorf("Lookup(50) = %d, want 300", got)
	}
}

func TestLookup_Interpolates(t *testing.T) {
	tab := threePointTable()
	got, err := tab.Lookup(30)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	// midway between (10,100) and (50,300)
	if got != 200 {
		t.Errorf("Lookup(30) = %d, want 200", got)
	}
}

func TestLookup_ClampsOutsideRange(t *testing.T) {
	tab := threePointTable()

	below, err := tab.Lookup(5)
	if err != nil {
		t.Fatalf("Lookup(5): %v", err)
	}
	if below != 100 {
		t.Errorf("Lookup(5) = %d, want 100 (clamp to first entry)", below)
	}

	above, err := tab.Lookup(200)
	if err != nil {
		t.Fatalf("Lookup(200): %v", err)
	}
	if above != 250 {
		t.Errorf("Lookup(200) = %d, want 250 (clamp to last entry)", above)
	}
}

func TestLookup_NonMonotonicCurve(t *testing.T) {
	// Focus curve is not assumed monotonic: 50->300 then 90->250.
	tab := threePointTable()
	got, err := tab.Lookup(70)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got != 275 {
		t.Errorf("Lookup(70) = %d, want 275", got)
	}
}

func TestUpsert_KeepsOrderAndUniqueness(t *testing.T) {
	tab := NewTable()
	tab.Upsert(Entry{Zoom: 90, Focus: 1})
	tab.Upsert(Entry{Zoom: 10, Focus: 2})
	tab.Upsert(Entry{Zoom: 50, Focus: 3})
	tab.Upsert(Entry{Zoom: 50, Focus: 4}) // replace

	got := tab.Snapshot()
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	wantZooms := []int{10, 50, 90}
	for i, z := range wantZooms {
		if got[i].Zoom != z {
			t.Errorf("entry %d zoom = %d, want %d", i, got[i].Zoom, z)
		}
	}
	if got[1].Focus != 4 {
		t.Errorf("replaced entry focus = %d, want 4", got[1].Focus)
	}
}

func TestReset_Clears(t *testing.T) {
	tab := threePointTable()
	tab.Reset()
	if tab.Calibrated() {
		t.Error("table should be uncalibrated after Reset")
	}
}

func TestSnapshot_IsACopy(t *testing.T) {
	tab := threePointTable()
	snap := tab.Snapshot()
	snap[0].Focus = 9999

	got, err := tab.Lookup(10)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got != 100 {
		t.Error("mutating a snapshot must not affect the table")
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calibration.yaml")

	orig := threePointTable()
	if err := orig.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	a, b := orig.Snapshot(), loaded.Snapshot()
	if len(a) != len(b) {
		t.Fatalf("entry count %d != %d", len(a), len(b))
	}
	for i := range a {
		// integer fields round-trip exactly
		if a[i].Zoom != b[i].Zoom || a[i].Focus != b[i].Focus {
			t.Errorf("entry %d: %+v != %+v", i, a[i], b[i])
		}
	}
}

func TestLoad_MissingFileIsUncalibrated(t *testing.T) {
	tab, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing file should not be an error, got %v", err)
	}
	if tab.Calibrated() {
		t.Error("missing file should yield an empty table")
	}
}

func TestLoad_CorruptFileReportsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("entries: [not, a, table"), 0o644); err != nil {
		t.Fatal(err)
	}
	tab, err := Load(path)
	if err == nil {
		t.Error("corrupt file should report an error")
	}
	// still usable in-memory for the session
	if tab == nil || tab.Calibrated() {
		t.Error("corrupt load should return an empty usable table")
	}
}
