package background

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"course-platform-backend/internal/service"
	"course-platform-backend/pkg/logger"
)

// ReconcileJobName is the scheduler name of the payment sweep. Only one
// sweep is queued or running at a time.
const ReconcileJobName = "payments.reconcile"

// Sweeper runs one reconciliation pass over pending payments.
type Sweeper interface {
	Sweep(ctx context.Context) (service.SweepReport, error)
}

type ReconcilerConfig struct {
	Schedule string
	Timeout  time.Duration
	// RunOnStart queues one sweep as soon as the reconciler starts.
	RunOnStart bool
}

// Reconciler feeds the payment sweep into the scheduler on a cron timer.
type Reconciler struct {
	scheduler *Scheduler
	sweeper   Sweeper
	config    ReconcilerConfig

	cron *cron.Cron

	mu         sync.Mutex
	lastReport service.SweepReport
	lastRun    time.Time
	lastErr    error
}

func NewReconciler(scheduler *Scheduler, sweeper Sweeper, cfg ReconcilerConfig) (*Reconciler, error) {
	if scheduler == nil {
		return nil, errors.New("scheduler is required")
	}
	if sweeper == nil {
		return nil, errors.New("sweeper is required")
	}

	cfg.Schedule = strings.TrimSpace(cfg.Schedule)
	if cfg.Schedule == "" {
		cfg.Schedule = "@every 15m"
	}
	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		return nil, fmt.Errorf("invalid reconcile schedule %q: %w", cfg.Schedule, err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}

	return &Reconciler{scheduler: scheduler, sweeper: sweeper, config: cfg}, nil
}

// Start registers the timer. The scheduler must already be running.
func (r *Reconciler) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cron != nil {
		return nil
	}

	c := cron.New(cron.WithLogger(cron.PrintfLogger(logger.Logger)))
	if _, err := c.AddFunc(r.config.Schedule, r.tick); err != nil {
		return fmt.Errorf("failed to register reconcile schedule: %w", err)
	}
	c.Start()
	r.cron = c

	logger.Info("Payment reconciliation scheduled", map[string]interface{}{
		"schedule": r.config.Schedule,
		"timeout":  r.config.Timeout.String(),
	})

	if r.config.RunOnStart {
		go r.tick()
	}
	return nil
}

// Trigger queues one sweep unless a previous one is still queued or running,
// in which case ErrJobAlreadyScheduled is returned.
func (r *Reconciler) Trigger() error {
	err := r.scheduler.ScheduleUnique(Job{
		Name:    ReconcileJobName,
		Run:     r.run,
		Timeout: r.config.Timeout,
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrJobAlreadyScheduled):
		logger.Debug("Previous payment sweep still running, skipping tick", nil)
	default:
		logger.Warn("Failed to queue payment sweep", map[string]interface{}{"error": err.Error()})
	}
	return err
}

func (r *Reconciler) tick() {
	_ = r.Trigger()
}

func (r *Reconciler) run(ctx context.Context) error {
	report, err := r.sweeper.Sweep(ctx)

	r.mu.Lock()
	r.lastReport = report
	r.lastRun = time.Now().UTC()
	r.lastErr = err
	r.mu.Unlock()

	entry := logger.FromContext(ctx).WithFields(logrus.Fields{
		"scanned":          report.Scanned,
		"paid":             report.Paid,
		"failed":           report.Failed,
		"still_pending":    report.StillPending,
		"already_terminal": report.AlreadyTerminal,
		"skipped":          report.Skipped,
		"errors":           report.Errors,
		"duration":         report.Duration.String(),
	})
	if err != nil {
		entry.WithError(err).Warn("Payment sweep aborted")
		return err
	}
	entry.Info("Payment sweep finished")
	return nil
}

// LastReport returns the outcome of the most recent sweep.
func (r *Reconciler) LastReport() (service.SweepReport, time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastReport, r.lastRun, r.lastErr
}

// Stop halts the timer and waits for a running tick callback to return.
func (r *Reconciler) Stop(ctx context.Context) error {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()

	if c == nil {
		return nil
	}

	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
