package points

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"

	"github.com/ronerog/furia-app/internal/models"
)

// Awarder records points; implemented by *Ledger.
type Awarder interface {
	AddPoints(ctx context.Context, amount int, activityType models.ActivityType) bool
}

// AccrualConfig controls passive view-time accrual.
type AccrualConfig struct {
	Interval time.Duration // tick period
	Ticks    int           // ticks per award
	Points   int           // points per award
}

// DefaultAccrualConfig awards 5 points every 300 one-second ticks.
func DefaultAccrualConfig() AccrualConfig {
	return AccrualConfig{
		Interval: time.Second,
		Ticks:    300,
		Points:   5,
	}
}

// Accrual awards view-time points while a session is active.
//
// Every Start creates a fresh scheduler with its own tick counter starting
// at zero; Stop shuts it down. Ticks from a stopped run are ignored.
type Accrual struct {
	awarder Awarder
	config  AccrualConfig

	mu  sync.Mutex
	run *accrualRun
}

type accrualRun struct {
	scheduler gocron.Scheduler
	ctx       context.Context
	cancel    context.CancelFunc
	ticks     int
}

// NewAccrual creates a stopped accrual timer.
//
// Example:
//
//	accrual := points.NewAccrual(ledger, points.DefaultAccrualConfig())
//	accrual.Start()
//	defer accrual.Stop()
func NewAccrual(awarder Awarder, config AccrualConfig) *Accrual {
	return &Accrual{awarder: awarder, config: config}
}

// Start begins a new accrual run, replacing any running one.
func (a *Accrual) Start() error {
	a.Stop()

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	run := &accrualRun{scheduler: scheduler, ctx: ctx, cancel: cancel}

	_, err = scheduler.NewJob(
		gocron.DurationJob(a.config.Interval),
		gocron.NewTask(func() { a.tick(run) }),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		cancel()
		_ = scheduler.Shutdown()
		return fmt.Errorf("failed to schedule accrual: %w", err)
	}

	a.mu.Lock()
	a.run = run
	a.mu.Unlock()

	scheduler.Start()
	log.Debug().
		Dur("interval", a.config.Interval).
		Int("ticks", a.config.Ticks).
		Int("points", a.config.Points).
		Msg("Accrual started")
	return nil
}

// Stop shuts down the current run and cancels an in-flight award without
// waiting for it. Safe to call when stopped.
func (a *Accrual) Stop() {
	a.mu.Lock()
	run := a.run
	a.run = nil
	a.mu.Unlock()

	if run == nil {
		return
	}

	run.cancel()
	if err := run.scheduler.Shutdown(); err != nil {
		log.Warn().Err(err).Msg("Failed to shut down accrual scheduler")
	}
	log.Debug().Msg("Accrual stopped")
}

// Running reports whether a run is active.
func (a *Accrual) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.run != nil
}

// Ticks returns the tick count of the current run.
func (a *Accrual) Ticks() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.run == nil {
		return 0
	}
	return a.run.ticks
}

// tick advances run's counter and fires an award every config.Ticks ticks.
// The award is issued asynchronously so a slow backend does not delay the
// counter.
func (a *Accrual) tick(run *accrualRun) {
	a.mu.Lock()
	if a.run != run {
		a.mu.Unlock()
		return
	}
	run.ticks++
	due := a.config.Ticks > 0 && run.ticks%a.config.Ticks == 0
	a.mu.Unlock()

	if !due {
		return
	}

	go a.awarder.AddPoints(run.ctx, a.config.Points, models.ActivityViewTime)
}
