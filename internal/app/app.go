// Package app wires this system's configured inputs, output, clock, and
// control surface together and supervises them for the process lifetime,
// following cmd/prism/main.go's app struct and errgroup-based startup.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/zsiec/metamix/internal/clock"
	"github.com/zsiec/metamix/internal/config"
	"github.com/zsiec/metamix/internal/control"
	"github.com/zsiec/metamix/internal/input"
	"github.com/zsiec/metamix/internal/metadata"
	"github.com/zsiec/metamix/internal/pipeline"
	"github.com/zsiec/metamix/internal/supervisor"
)

// App holds the shared state every extractor, the injector, and the
// control surface read or write: the clock, the metadata queue group, the
// input registry, and the live ts-adjustment.
type App struct {
	cfg *config.Config
	log *slog.Logger

	clk          *clock.Clock
	group        *metadata.Group
	registry     *input.Registry
	tsAdjustment *atomic.Int64
}

// New builds an App from cfg: a metadata group, a clock starting at zero,
// and an input registry holding one UserDefined input per configured
// input plus the virtual clear input.
func New(cfg *config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}

	group := metadata.NewGroup()

	var inputs []input.Input
	for _, spec := range cfg.ToInputSpecs() {
		inputs = append(inputs, input.NewUserDefined(spec, group))
	}

	registry, err := input.NewRegistry(log, inputs)
	if err != nil {
		return nil, fmt.Errorf("app: building input registry: %w", err)
	}

	if cfg.StartingInput != "" {
		if err := registry.SetCurrentByName(input.SEIKind, cfg.StartingInput); err != nil {
			return nil, fmt.Errorf("app: starting-input: %w", err)
		}
		if err := registry.SetCurrentByName(input.SCTEKind, cfg.StartingInput); err != nil {
			return nil, fmt.Errorf("app: starting-input: %w", err)
		}
	}

	tsAdjustment := &atomic.Int64{}
	tsAdjustment.Store(cfg.Output.TSAdjustment)

	return &App{
		cfg:          cfg,
		log:          log,
		clk:          clock.NewClock(0),
		group:        group,
		registry:     registry,
		tsAdjustment: tsAdjustment,
	}, nil
}

// Run starts one supervised extractor per configured input, the supervised
// injector for the output, and the control surface, and blocks until they
// all exit or ctx is cancelled. NoRestart inverts this system's default: by
// default every supervised goroutine restarts itself on any return, clean
// or not, until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	restart := !a.cfg.NoRestart
	sg := supervisor.NewGroup(ctx, a.log)

	for _, spec := range a.cfg.ToInputSpecs() {
		spec := spec
		in, ok := a.registry.ByID(spec.ID)
		if !ok {
			return fmt.Errorf("app: input %q missing from registry after construction", spec.Name)
		}
		userDefined, ok := in.(*input.UserDefined)
		if !ok {
			return fmt.Errorf("app: input %q is not a configured input", spec.Name)
		}

		sg.GoPrimary(fmt.Sprintf("extractor.%s", spec.Name), restart, func(ctx context.Context) error {
			src, err := newSource(spec.Source, a.log)
			if err != nil {
				return err
			}
			sink, err := newSink(spec.Sink, a.log)
			if err != nil {
				return err
			}
			ext := pipeline.NewExtractor(userDefined, src, sink, a.group, a.clk, a.log)
			return ext.Run(ctx)
		})
	}

	sg.GoPrimary("injector", restart, func(ctx context.Context) error {
		src, err := newSource(a.cfg.Output.Source, a.log)
		if err != nil {
			return err
		}
		sink, err := newSink(a.cfg.Output.Sink, a.log)
		if err != nil {
			return err
		}
		inj := pipeline.NewInjector(src, a.cfg.Output.Source, a.cfg.Output.SourceFormat,
			sink, a.cfg.Output.Sink, a.cfg.Output.SinkFormat,
			a.registry, a.clk, a.tsAdjustment, a.log)
		return inj.Run(ctx)
	})

	controlCfg := control.Config{
		Address: fmt.Sprintf("%s:%d", a.cfg.HTTPAddress, a.cfg.HTTPPort),
	}
	ctrl := control.NewServer(controlCfg, a.registry, a.group, a.clk, a.tsAdjustment, a.log)
	sg.GoSecondary("control", restart, ctrl.Run)

	return sg.Wait()
}
