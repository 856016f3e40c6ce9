package autofocus

import (
	"context"
	"fmt"
	"sort"

	"github.com/taircarmon1718/Mergui-CAM/internal/calib"
	"github.com/taircarmon1718/Mergui-CAM/internal/debug"
	"github.com/taircarmon1718/Mergui-CAM/internal/hw/camera"
	"github.com/taircarmon1718/Mergui-CAM/internal/hw/lens"
)

// Driver is the slice of the motor driver the engine needs. Every move
// blocks until the mechanical motion completes, so a cancel honored between
// moves never leaves an unconfirmed move pending.
type Driver interface {
	SetFocus(v int) error
	SetZoom(v int) error
	FocusMax() int
	ZoomMax() int
}

// Params tunes the search. Each motor move may take seconds, so the
// parameters bound the total number of moves.
type Params struct {
	CoarseSteps  int     // coarse scan divisions of [0, focusMax], default 12
	FineMinStep  int     // fine search stops below this step size, default 2
	FineMaxIters int     // fine search iteration bound, default 32
	Epsilon      float64 // scores within Epsilon count as a tie, default 0.5
	ZoomSamples  int     // zoom sample points for a full table build, default 10
	FilterWindow int     // median filter window for the coarse sweep, default 3 (1 disables)
}

func (p *Params) applyDefaults() {
	if p.CoarseSteps <= 0 {
		p.CoarseSteps = 12
	}
	if p.FineMinStep <= 0 {
		p.FineMinStep = 2
	}
	if p.FineMaxIters <= 0 {
		p.FineMaxIters = 32
	}
	if p.Epsilon <= 0 {
		p.Epsilon = 0.5
	}
	if p.ZoomSamples <= 0 {
		p.ZoomSamples = 10
	}
	if p.FilterWindow <= 0 {
		p.FilterWindow = 3
	}
}

// Result is the outcome of one search at a fixed zoom.
type Result struct {
	Focus int
	Score float64
}

// Phase labels the table-build state machine.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseScanning
	PhaseCommitting
)

func (p Phase) String() string {
	switch p {
	case PhaseScanning:
		return "Scanning"
	case PhaseCommitting:
		return "Committing"
	default:
		return "Idle"
	}
}

// Progress reports table-build state for the status display.
type Progress struct {
	Phase     Phase
	ZoomIndex int
	ZoomCount int
	Zoom      int
	Best      Result // valid in PhaseCommitting
}

// Engine finds, per zoom position, the focus value that maximizes the
// sharpness score, and commits results into the calibration table.
type Engine struct {
	driver Driver
	source camera.Source
	scorer camera.Scorer
	p      Params
}

// NewEngine creates an autofocus engine.
func NewEngine(driver Driver, source camera.Source, scorer camera.Scorer, p Params) *Engine {
	p.applyDefaults()
	return &Engine{driver: driver, source: source, scorer: scorer, p: p}
}

// Search runs one coarse-to-fine search at the given zoom and leaves the
// focus motor on the winning position. prevFocus breaks score ties toward
// the least motion. Cancellation is honored at every per-step boundary,
// never mid-write; on return the driver is idle.
func (e *Engine) Search(ctx context.Context, zoom, prevFocus int) (Result, error) {
	if err := e.driver.SetZoom(zoom); err != nil {
		return Result{}, err
	}

	best, coarseStep, err := e.coarseScan(ctx)
	if err != nil {
		return Result{}, err
	}
	debug.Verbose("coarse best: focus=%d score=%.2f", best.Focus, best.Score)

	best, err = e.fineClimb(ctx, best, coarseStep, prevFocus)
	if err != nil {
		return Result{}, err
	}

	// Park the motor on the winner.
	if err := e.driver.SetFocus(best.Focus); err != nil {
		return Result{}, err
	}
	debug.Info("autofocus: zoom=%d -> focus=%d (score %.2f)", zoom, best.Focus, best.Score)
	return best, nil
}

// coarseScan steps focus across the full range in fixed increments and
// returns the best-scoring stop and the step size used.
func (e *Engine) coarseScan(ctx context.Context) (Result, int, error) {
	max := e.driver.FocusMax()
	step := max / e.p.CoarseSteps
	if step < 1 {
		step = 1
	}

	filt := newMedianFilter(e.p.FilterWindow)
	best := Result{Focus: 0, Score: -1}
	for f := 0; f <= max; f += step {
		if err := ctx.Err(); err != nil {
			return Result{}, 0, err
		}
		score, err := e.sampleAt(f, filt)
		if err != nil {
			return Result{}, 0, err
		}
		if score > best.Score {
			best = Result{Focus: f, Score: score}
		}
	}
	return best, step, nil
}

// fineClimb refines the coarse best with a local search: step halves on
// every direction reversal until it falls below the minimum resolution or
// the iteration bound is hit. This bounds the extra motor moves to
// O(log(range/resolution)).
func (e *Engine) fineClimb(ctx context.Context, best Result, coarseStep, prevFocus int) (Result, error) {
	max := e.driver.FocusMax()
	step := coarseStep / 2
	if step < e.p.FineMinStep {
		step = e.p.FineMinStep
	}
	dir := 1

	for iters := 0; step >= e.p.FineMinStep && iters < e.p.FineMaxIters; iters++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		cand := clamp(best.Focus+dir*step, 0, max)
		score, err := e.sampleAt(cand, nil)
		if err != nil {
			return Result{}, err
		}
		if e.improves(Result{Focus: cand, Score: score}, best, prevFocus) {
			best = Result{Focus: cand, Score: score}
		} else {
			dir = -dir
			step /= 2
		}
	}
	return best, nil
}

// improves reports whether cand beats best. Scores within Epsilon count as
// a tie, broken toward the position closer to prevFocus: the least motion
// wins, which the user sees as a calmer lens.
func (e *Engine) improves(cand, best Result, prevFocus int) bool {
	diff := cand.Score - best.Score
	if diff > e.p.Epsilon {
		return true
	}
	if diff < -e.p.Epsilon {
		return false
	}
	return abs(cand.Focus-prevFocus) < abs(best.Focus-prevFocus)
}

// sampleAt is one measurement: move, wait for the mechanics (inside the
// driver), grab a frame, score it.
func (e *Engine) sampleAt(focus int, filt *medianFilter) (float64, error) {
	if err := e.driver.SetFocus(focus); err != nil {
		return 0, err
	}
	frame, err := e.source.Frame()
	if err != nil {
		return 0, err
	}
	score := e.scorer.Score(frame)
	if filt != nil {
		score = filt.apply(score)
	}
	debug.Sample(focus, score)
	return score, nil
}

// maxConsecutiveFailures aborts a table build: the hardware is likely
// disconnected.
const maxConsecutiveFailures = 3

// BuildTable runs one search per zoom sample point across the whole zoom
// range and commits each winner into the table. A failed sample is skipped;
// three consecutive failures escalate to a *lens.DriverError and abort,
// preserving already-committed entries. Cancellation likewise preserves
// committed entries (atomicity is per-entry, not per-run).
func (e *Engine) BuildTable(ctx context.Context, table *calib.Table, onProgress func(Progress)) error {
	report := func(p Progress) {
		if onProgress != nil {
			onProgress(p)
		}
	}
	defer report(Progress{Phase: PhaseIdle})

	n := e.p.ZoomSamples
	zoomMax := e.driver.ZoomMax()
	prevFocus := 0
	consec := 0

	debug.Summary(debug.Fmt("Calibration: %d zoom samples over [0, %d]", n, zoomMax))

	for i := 0; i < n; i++ {
		zoom := 0
		if n > 1 {
			zoom = zoomMax * i / (n - 1)
		}
		report(Progress{Phase: PhaseScanning, ZoomIndex: i, ZoomCount: n, Zoom: zoom})

		res, err := e.Search(ctx, zoom, prevFocus)
		if err != nil {
			if ctx.Err() != nil {
				debug.Info("calibration cancelled at zoom index %d", i)
				return ctx.Err()
			}
			consec++
			debug.Error(fmt.Errorf("calibration sample %d (zoom=%d) failed: %w", i, zoom, err))
			if consec >= maxConsecutiveFailures {
				return &lens.DriverError{
					Axis: "autofocus",
					Err:  fmt.Errorf("%d consecutive sample failures, aborting: %w", consec, err),
				}
			}
			continue
		}
		consec = 0

		report(Progress{Phase: PhaseCommitting, ZoomIndex: i, ZoomCount: n, Zoom: zoom, Best: res})
		table.Upsert(calib.Entry{Zoom: zoom, Focus: res.Focus, Score: res.Score})
		prevFocus = res.Focus
	}
	return nil
}

// medianFilter smooths the coarse sweep measurements against sensor noise,
// as the original lens firmware demo does. Returns the raw value until the
// window fills.
type medianFilter struct {
	window int
	buf    []float64
}

func newMedianFilter(window int) *medianFilter {
	if window <= 1 {
		return nil
	}
	return &medianFilter{window: window}
}

func (m *medianFilter) apply(v float64) float64 {
	m.buf = append(m.buf, v)
	if len(m.buf) < m.window {
		return v
	}
	sorted := make([]float64, m.window)
	copy(sorted, m.buf)
	sort.Float64s(sorted)
	m.buf = m.buf[1:]
	return sorted[m.window/2]
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

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
