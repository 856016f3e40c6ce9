package autofocus

import (
	"context"
	"errors"
	"testing"

	"github.com/taircarmon1718/Mergui-CAM/internal/calib"
	"github.com/taircarmon1718/Mergui-CAM/internal/hw/camera"
	"github.com/taircarmon1718/Mergui-CAM/internal/hw/lens"
)

// fakeDriver implements Driver with scripted failures.
type fakeDriver struct {
	focus, zoom       int
	focusMax, zoomMax int
	focusMoves        int
	zoomErr           func(zoom int) error
	focusErr          func(focus int) error
}

func (d *fakeDriver) SetFocus(v int) error {
	if d.focusErr != nil {
		if err := d.focusErr(v); err != nil {
			return err
		}
	}
	d.focus = v
	d.focusMoves++
	return nil
}

func (d *fakeDriver) SetZoom(v int) error {
	if d.zoomErr != nil {
		if err := d.zoomErr(v); err != nil {
			return err
		}
	}
	d.zoom = v
	return nil
}

func (d *fakeDriver) FocusMax() int { return d.focusMax }
func (d *fakeDriver) ZoomMax() int  { return d.zoomMax }

// fakeOptics synthesizes frames and scores them from the fake driver's
// position, bypassing real pixels.
type fakeOptics struct {
	driver  *fakeDriver
	scoreFn func(focus, zoom int) float64
	samples int
	onFrame func() // called before each frame, e.g. to cancel mid-scan
}

func (o *fakeOptics) Frame() (*camera.Frame, error) {
	if o.onFrame != nil {
		o.onFrame()
	}
	o.samples++
	return &camera.Frame{W: 1, H: 1, Pix: []uint8{0}}, nil
}

func (o *fakeOptics) Score(_ *camera.Frame) float64 {
	return o.scoreFn(o.driver.focus, o.driver.zoom)
}

// unimodal peaks at the given focus, independent of zoom.
func unimodal(peak int) func(focus, zoom int) float64 {
	return func(focus, _ int) float64 {
		d := focus - peak
		if d < 0 {
			d = -d
		}
		return 1000.0 - float64(d)
	}
}

func testParams() Params {
	return Params{
		CoarseSteps:  12,
		FineMinStep:  2,
		FineMaxIters: 32,
		Epsilon:      0.5,
		ZoomSamples:  5,
		FilterWindow: 3,
	}
}

func newTestEngine(d *fakeDriver, scoreFn func(focus, zoom int) float64) (*Engine, *fakeOptics) {
	o := &fakeOptics{driver: d, scoreFn: scoreFn}
	return NewEngine(d, o, o, testParams()), o
}

func TestSearch_ConvergesOnUnimodalPeak(t *testing.T) {
	for _, prevFocus := range []int{0, 250, 500, 777, 1000} {
		d := &fakeDriver{focusMax: 1000, zoomMax: 3000}
		e, _ := newTestEngine(d, unimodal(500))

		res, err := e.Search(context.Background(), 0, prevFocus)
		if err != nil {
			t.Fatalf("prevFocus=%d: Search: %v", prevFocus, err)
		}
		if res.Focus < 498 || res.Focus > 502 {
			t.Errorf("prevFocus=%d: converged to %d, want 500±2", prevFocus, res.Focus)
		}
		if d.focus != res.Focus {
			t.Errorf("prevFocus=%d: motor parked at %d, result says %d", prevFocus, d.focus, res.Focus)
		}
	}
}

func TestSearch_BoundedMotorMoves(t *testing.T) {
	d := &fakeDriver{focusMax: 1000, zoomMax: 3000}
	e, _ := newTestEngine(d, unimodal(730))

	if _, err := e.Search(context.Background(), 0, 0); err != nil {
		t.Fatalf("Search: %v", err)
	}
	// coarse (13 stops) + fine (<= FineMaxIters) + final park
	if d.focusMoves > 13+32+1 {
		t.Errorf("focus moves = %d, want <= 46", d.focusMoves)
	}
}

func TestSearch_TieBreakPrefersLeastMotion(t *testing.T) {
	d := &fakeDriver{focusMax: 1000, zoomMax: 3000}
	e, _ := newTestEngine(d, unimodal(500))

	// equal scores within epsilon: the candidate closer to the previous
	// focus value wins
	prev := 480
	cand := Result{Focus: 490, Score: 100.0}
	best := Result{Focus: 510, Score: 100.2}
	if !e.improves(cand, best, prev) {
		t.Error("tied candidate closer to previous focus should win")
	}
	if e.improves(best, cand, prev) {
		t.Error("tied candidate farther from previous focus should lose")
	}
	// a clear winner ignores the tie-break
	if !e.improves(Result{Focus: 510, Score: 200}, cand, prev) {
		t.Error("clearly better score should win regardless of distance")
	}
}

func TestBuildTable_CommitsEverySample(t *testing.T) {
	d := &fakeDriver{focusMax: 1000, zoomMax: 3000}
	e, _ := newTestEngine(d, unimodal(400))
	table := calib.NewTable()

	var phases []Phase
	err := e.BuildTable(context.Background(), table, func(p Progress) {
		phases = append(phases, p.Phase)
	})
	if err != nil {
		t.Fatalf("BuildTable: %v", err)
	}
	if table.Len() != 5 {
		t.Errorf("entries = %d, want 5", table.Len())
	}
	entries := table.Snapshot()
	if entries[0].Zoom != 0 || entries[len(entries)-1].Zoom != 3000 {
		t.Errorf("zoom samples should span [0, zoomMax], got %v", entries)
	}
	if phases[len(phases)-1] != PhaseIdle {
		t.Error("build should report PhaseIdle when done")
	}
}

func TestBuildTable_SkipsSingleFailedSample(t *testing.T) {
	d := &fakeDriver{focusMax: 1000, zoomMax: 3000}
	// transport failure on exactly one zoom sample (index 2 of 5 -> zoom 1500)
	d.zoomErr = func(zoom int) error {
		if zoom == 1500 {
			return &lens.DriverError{Axis: "zoom", Err: errors.New("nak")}
		}
		return nil
	}
	e, _ := newTestEngine(d, unimodal(400))
	table := calib.NewTable()

	if err := e.BuildTable(context.Background(), table, nil); err != nil {
		t.Fatalf("one failed sample must not abort the run: %v", err)
	}
	if table.Len() != 4 {
		t.Errorf("entries = %d, want 4 (one fewer than samples attempted)", table.Len())
	}
	for _, entry := range table.Snapshot() {
		if entry.Zoom == 1500 {
			t.Error("failed sample must not be committed")
		}
	}
}

func TestBuildTable_ThreeConsecutiveFailuresAbort(t *testing.T) {
	d := &fakeDriver{focusMax: 1000, zoomMax: 3000}
	d.zoomErr = func(zoom int) error {
		if zoom >= 1500 { // samples 2, 3, 4 all fail
			return errors.New("disconnected")
		}
		return nil
	}
	e, _ := newTestEngine(d, unimodal(400))
	table := calib.NewTable()

	err := e.BuildTable(context.Background(), table, nil)
	var de *lens.DriverError
	if !errors.As(err, &de) {
		t.Fatalf("expected *lens.DriverError after 3 consecutive failures, got %v", err)
	}
	// entries committed before the failures are preserved
	if table.Len() != 2 {
		t.Errorf("entries = %d, want 2 (committed before the abort)", table.Len())
	}
}

func TestBuildTable_CancelPreservesCommittedEntries(t *testing.T) {
	d := &fakeDriver{focusMax: 1000, zoomMax: 3000}
	o := &fakeOptics{driver: d, scoreFn: unimodal(400)}
	e := NewEngine(d, o, o, testParams())
	table := calib.NewTable()

	ctx, cancel := context.WithCancel(context.Background())
	o.onFrame = func() {
		// cancel partway into the third zoom sample's scan
		if table.Len() == 2 && o.samples > 30 {
			cancel()
		}
	}

	err := e.BuildTable(ctx, table, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if table.Len() != 2 {
		t.Errorf("entries = %d, want 2 (in-flight sample must not be committed)", table.Len())
	}
}

func TestMedianFilter(t *testing.T) {
	f := newMedianFilter(3)
	// raw until the window fills
	if got := f.apply(10); got != 10 {
		t.Errorf("first value = %f, want 10", got)
	}
	if got := f.apply(50); got != 50 {
		t.Errorf("second value = %f, want 50", got)
	}
	// then the median of the last 3
	if got := f.apply(20); got != 20 {
		t.Errorf("median(10,50,20) = %f, want 20", got)
	}
	if got := f.apply(100); got != 50 {
		t.Errorf("median(50,20,100) = %f, want 50", got)
	}

	if newMedianFilter(1) != nil {
		t.Error("window 1 should disable the filter")
	}
}
