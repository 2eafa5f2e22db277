package background

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"course-platform-backend/internal/service"
)

type fakeSweeper struct {
	calls   int32
	release chan struct{}
	report  service.SweepReport
	err     error
}

func (f *fakeSweeper) Sweep(ctx context.Context) (service.SweepReport, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return service.SweepReport{}, ctx.Err()
		}
	}
	return f.report, f.err
}

func TestNewReconcilerValidatesSchedule(t *testing.T) {
	scheduler := NewScheduler(SchedulerConfig{})

	if _, err := NewReconciler(scheduler, &fakeSweeper{}, ReconcilerConfig{Schedule: "every so often"}); err == nil {
		t.Fatalf("expected invalid schedule to be rejected")
	}
	if _, err := NewReconciler(nil, &fakeSweeper{}, ReconcilerConfig{}); err == nil {
		t.Fatalf("expected missing scheduler to be rejected")
	}

	reconciler, err := NewReconciler(scheduler, &fakeSweeper{}, ReconcilerConfig{})
	if err != nil {
		t.Fatalf("expected defaults to be accepted, got %v", err)
	}
	if reconciler.config.Schedule != "@every 15m" || reconciler.config.Timeout != 10*time.Minute {
		t.Fatalf("unexpected defaults %+v", reconciler.config)
	}
}

func TestTriggerRunsSweepAndRecordsReport(t *testing.T) {
	scheduler := startScheduler(t)
	sweeper := &fakeSweeper{report: service.SweepReport{Scanned: 3, Paid: 1}}
	reconciler, err := NewReconciler(scheduler, sweeper, ReconcilerConfig{Schedule: "@every 1h"})
	if err != nil {
		t.Fatalf("expected reconciler, got %v", err)
	}

	reconciler.Trigger()
	waitFor(t, func() bool {
		_, at, _ := reconciler.LastReport()
		return !at.IsZero()
	})

	report, _, runErr := reconciler.LastReport()
	if runErr != nil || report.Scanned != 3 || report.Paid != 1 {
		t.Fatalf("unexpected last report %+v, %v", report, runErr)
	}
}

func TestOverlappingTicksAreSkipped(t *testing.T) {
	scheduler := startScheduler(t)
	sweeper := &fakeSweeper{release: make(chan struct{})}
	reconciler, err := NewReconciler(scheduler, sweeper, ReconcilerConfig{Schedule: "@every 1h"})
	if err != nil {
		t.Fatalf("expected reconciler, got %v", err)
	}

	if err := reconciler.Trigger(); err != nil {
		t.Fatalf("expected first trigger to queue, got %v", err)
	}
	waitFor(t, func() bool { return atomic.LoadInt32(&sweeper.calls) == 1 })

	for i := 0; i < 2; i++ {
		if err := reconciler.Trigger(); !errors.Is(err, ErrJobAlreadyScheduled) {
			t.Fatalf("expected ErrJobAlreadyScheduled, got %v", err)
		}
	}
	close(sweeper.release)
	waitFor(t, func() bool { return !scheduler.Running(ReconcileJobName) })

	if calls := atomic.LoadInt32(&sweeper.calls); calls != 1 {
		t.Fatalf("expected overlapping ticks to be dropped, got %d sweeps", calls)
	}
}

func TestSweepErrorIsRecorded(t *testing.T) {
	scheduler := startScheduler(t)
	sweeper := &fakeSweeper{err: errors.New("database away")}
	reconciler, err := NewReconciler(scheduler, sweeper, ReconcilerConfig{Schedule: "@every 1h"})
	if err != nil {
		t.Fatalf("expected reconciler, got %v", err)
	}

	reconciler.Trigger()
	waitFor(t, func() bool {
		_, _, runErr := reconciler.LastReport()
		return runErr != nil
	})
}

func TestStartAndStop(t *testing.T) {
	scheduler := startScheduler(t)
	sweeper := &fakeSweeper{}
	reconciler, err := NewReconciler(scheduler, sweeper, ReconcilerConfig{Schedule: "@every 1h", RunOnStart: true})
	if err != nil {
		t.Fatalf("expected reconciler, got %v", err)
	}

	if err := reconciler.Start(); err != nil {
		t.Fatalf("expected start, got %v", err)
	}
	waitFor(t, func() bool { return atomic.LoadInt32(&sweeper.calls) == 1 })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := reconciler.Stop(ctx); err != nil {
		t.Fatalf("expected stop, got %v", err)
	}
	if err := reconciler.Stop(ctx); err != nil {
		t.Fatalf("expected second stop to be a no-op, got %v", err)
	}
}
