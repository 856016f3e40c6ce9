package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/taircarmon1718/Mergui-CAM/internal/calib"
	"github.com/taircarmon1718/Mergui-CAM/internal/config"
	"github.com/taircarmon1718/Mergui-CAM/internal/debug"
	"github.com/taircarmon1718/Mergui-CAM/internal/hw/camera"
	"github.com/taircarmon1718/Mergui-CAM/internal/hw/lens"
	"github.com/taircarmon1718/Mergui-CAM/internal/hw/regbus"
	"github.com/taircarmon1718/Mergui-CAM/internal/logic/autofocus"
	"github.com/taircarmon1718/Mergui-CAM/internal/logic/control"
	"github.com/taircarmon1718/Mergui-CAM/internal/ui"
)

var (
	flagConfig      string
	flagSim         bool
	flagCalibration string
	flagDebug       int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "merguicam",
		Short: "Mergui-CAM - PTZ lens controller with autofocus calibration",
		Long: `Mergui-CAM drives a motorized PTZ camera lens over I2C: pan, tilt,
zoom and focus motors, IR-cut filter, and a zoom-to-focus calibration
table built by a coarse-to-fine autofocus search.

Use --sim to run against a simulated lens and camera, no hardware needed.`,
		RunE: run,
	}

	rootCmd.Flags().StringVar(&flagConfig, "config", "configs/default.yaml", "Path to the YAML configuration file")
	rootCmd.Flags().BoolVar(&flagSim, "sim", false, "Use the simulated bus and camera (no hardware required)")
	rootCmd.Flags().StringVar(&flagCalibration, "calibration", "", "Override the calibration table path")
	rootCmd.Flags().IntVar(&flagDebug, "debug", -1, "Override the debug level (0-4)")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	if flagSim {
		cfg.Bus.Sim = true
		cfg.Camera.Type = "sim"
	}
	if flagCalibration != "" {
		cfg.CalibrationPath = flagCalibration
	}
	if flagDebug >= 0 {
		cfg.Defaults.DebugLevel = flagDebug
	}
	debug.Init(cfg.Defaults.DebugLevel)

	bus, sim, err := openBus(cfg)
	if err != nil {
		return err
	}
	defer bus.Close()

	driver, err := lens.NewDriver(bus, lens.Config{
		PollInterval: cfg.PollInterval(),
		WaitTimeout:  cfg.WaitTimeout(),
		SettleDelay:  cfg.SettleDelay(),
		ReadRetries:  cfg.Bus.ReadRetries,
	})
	if err != nil {
		return fmt.Errorf("lens driver: %w", err)
	}

	table, err := calib.Load(cfg.CalibrationPath)
	if err != nil {
		// keep going with an empty table; the loop recalibrates
		debug.Error(err)
	}

	source, err := openCamera(cfg, sim)
	if err != nil {
		return err
	}

	engine := autofocus.NewEngine(driver, source, camera.LaplacianScorer{}, autofocus.Params{
		CoarseSteps:  cfg.Autofocus.CoarseSteps,
		FineMinStep:  cfg.Autofocus.FineMinStep,
		FineMaxIters: cfg.Autofocus.FineMaxIters,
		Epsilon:      cfg.Autofocus.Epsilon,
		ZoomSamples:  cfg.Autofocus.ZoomSamples,
		FilterWindow: cfg.Autofocus.FilterWindow,
	})

	loop := control.NewLoop(driver, table, engine, control.Config{
		PanStep:         cfg.Control.PanStep,
		TiltStep:        cfg.Control.TiltStep,
		ZoomStep:        cfg.Control.ZoomStep,
		FocusStep:       cfg.Control.FocusStep,
		CalibrationPath: cfg.CalibrationPath,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	p := tea.NewProgram(ui.New(loop, cancel), tea.WithAltScreen())

	// log lines go to the TUI scrollback instead of stderr
	debug.SetOutput(ui.NewLogWriter(p.Send))
	defer debug.SetOutput(os.Stderr)

	loopDone := make(chan error, 1)
	go func() {
		loopDone <- loop.Run(ctx)
		p.Quit()
	}()

	_, uiErr := p.Run()
	cancel()
	loopErr := <-loopDone

	if loopErr != nil {
		return loopErr
	}
	return uiErr
}

// openBus returns the register bus and, in sim mode, the simulated bus for
// wiring the synthetic camera.
func openBus(cfg *config.Config) (regbus.Bus, *regbus.SimBus, error) {
	if cfg.Bus.Sim {
		sim := regbus.NewSimBus(regbus.SimConfig{})
		return sim, sim, nil
	}
	bus, err := regbus.OpenI2C(cfg.Bus.I2CBus, cfg.Bus.Address)
	if err != nil {
		return nil, nil, fmt.Errorf("open i2c: %w", err)
	}
	return bus, nil, nil
}

func openCamera(cfg *config.Config, sim *regbus.SimBus) (camera.Source, error) {
	switch cfg.Camera.Type {
	case "sim":
		if sim == nil {
			return nil, fmt.Errorf("camera.type \"sim\" requires the simulated bus")
		}
		return &camera.SimSource{
			W:        cfg.Camera.Width,
			H:        cfg.Camera.Height,
			Position: sim.Position,
			// synthetic scene: best focus rises linearly with zoom
			BestFocus: func(zoom int) int { return 150 + zoom/4 },
		}, nil
	case "stream":
		src, err := camera.OpenStream(cfg.Camera.FramePath, cfg.Camera.Width, cfg.Camera.Height)
		if err != nil {
			return nil, fmt.Errorf("open camera stream: %w", err)
		}
		return src, nil
	default:
		return nil, fmt.Errorf("unknown camera type %q", cfg.Camera.Type)
	}
}
