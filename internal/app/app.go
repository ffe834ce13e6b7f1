// Package app assembles the inbox from a loaded configuration. Both the
// Lambda entrypoint and the oneinbox CLI build through it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"

	"oneinbox/internal/config"
	"oneinbox/internal/dialogue"
	"oneinbox/internal/inbox"
	"oneinbox/internal/simulator"
	"oneinbox/internal/usecase"
)

// App holds the wired inbox components.
type App struct {
	Config  *config.Config
	Store   *inbox.Store
	Synth   *simulator.Synthesizer
	Service *usecase.InboxService
	log     *slog.Logger
}

// lockedRand serializes access to a rand source shared by goroutines.
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

// sources returns independent engine and simulator sources. A zero seed
// draws one from the runtime.
func sources(seed uint64) (engine, synth *rand.Rand) {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return rand.New(rand.NewPCG(seed, 1)), rand.New(rand.NewPCG(seed, 2))
}

// Build wires engine, store, simulator and service from cfg. opts are
// applied to the service after the simulator.
func Build(cfg *config.Config, log *slog.Logger, opts ...usecase.InboxOption) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: config must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	engineRng, synthRng := sources(cfg.Dialogue.Seed)

	engine, err := dialogue.NewEngine(engineRng,
		dialogue.WithTicketPrefix(cfg.Dialogue.TicketPrefix),
		dialogue.WithGreetFollowUpRate(*cfg.Dialogue.GreetFollowUpRate),
	)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	store, err := inbox.New(engine, inbox.Config{
		MessageCap:  cfg.MessageCap,
		StateCap:    cfg.StateCap,
		AutoUser:    cfg.AutoUser,
		DefaultUser: cfg.DefaultUser,
	}, inbox.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	synth, err := simulator.New(store, &lockedRand{r: synthRng}, simulator.Config{
		Platforms:    cfg.Platforms,
		Users:        cfg.Simulator.Users,
		Seeds:        cfg.Simulator.Seeds,
		ContinueRate: *cfg.Simulator.ContinueRate,
	})
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	svcOpts := append([]usecase.InboxOption{
		usecase.WithSynthesizer(synth),
		usecase.WithLogger(log),
	}, opts...)
	svc, err := usecase.NewInboxService(store, usecase.InboxConfig{
		Platforms:       cfg.Platforms,
		DefaultPlatform: cfg.DefaultPlatform,
		MaxTextLength:   cfg.MaxTextLength,
	}, svcOpts...)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	return &App{Config: cfg, Store: store, Synth: synth, Service: svc, log: log}, nil
}

// Simulate records one synthesized message. It is the job of the
// scheduled simulator.
func (a *App) Simulate(ctx context.Context) {
	msgs, err := a.Service.Generate(ctx, "")
	if err != nil {
		a.log.Warn("app: simulate failed", "err", err)
		return
	}
	a.log.Debug("app: simulated message", "thread_id", msgs[0].ThreadID, "text", msgs[0].Text)
}

// Scheduler returns a runner that simulates traffic on the configured
// schedule, or nil when no schedule is set.
func (a *App) Scheduler() (*simulator.Runner, error) {
	if a.Config.Simulator.Schedule == "" {
		return nil, nil
	}
	return simulator.NewRunner(a.Config.Simulator.Schedule, a.Simulate, a.log)
}
