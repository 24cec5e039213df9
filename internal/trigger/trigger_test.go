// Package trigger tests for the background sync scheduler.
package trigger

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

// waitForDrains polls until the counter reaches want or the deadline passes.
func waitForDrains(t *testing.T, counter *int64, want int64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if atomic.LoadInt64(counter) >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("drains = %d, want at least %d", atomic.LoadInt64(counter), want)
}

// TestIntervalDrain verifies the periodic tick fires drains.
func TestIntervalDrain(t *testing.T) {
	var drains int64
	tr := New(func(ctx context.Context) error {
		atomic.AddInt64(&drains, 1)
		return nil
	}, 20*time.Millisecond)

	tr.Start(context.Background())
	t.Cleanup(tr.Stop)

	waitForDrains(t, &drains, 2)
}

// TestTriggerNow verifies an explicit request fires without waiting for the
// next tick.
func TestTriggerNow(t *testing.T) {
	var drains int64
	tr := New(func(ctx context.Context) error {
		atomic.AddInt64(&drains, 1)
		return nil
	}, time.Hour)

	tr.Start(context.Background())
	t.Cleanup(tr.Stop)

	tr.TriggerNow()
	waitForDrains(t, &drains, 1)
}

// TestOnlineTransitionFiresDrain verifies regaining connectivity triggers an
// immediate drain without waiting for the next tick.
func TestOnlineTransitionFiresDrain(t *testing.T) {
	var drains int64
	tr := New(func(ctx context.Context) error {
		atomic.AddInt64(&drains, 1)
		return nil
	}, time.Hour)

	tr.Start(context.Background())
	t.Cleanup(tr.Stop)

	tr.SetOnline(false)
	tr.SetOnline(true)
	waitForDrains(t, &drains, 1)
}

// TestPeriodicDrainRunsDespiteOfflineFlag verifies the interval tick drains
// even when the last connectivity signal said offline. A missed
// connectivity-restored event must not stall the queue; the periodic drain is
// the safety net for exactly that case.
func TestPeriodicDrainRunsDespiteOfflineFlag(t *testing.T) {
	var drains int64
	tr := New(func(ctx context.Context) error {
		atomic.AddInt64(&drains, 1)
		return nil
	}, 10*time.Millisecond)

	tr.SetOnline(false)
	tr.Start(context.Background())
	t.Cleanup(tr.Stop)

	waitForDrains(t, &drains, 2)
}

// TestTriggerNowRunsWhileOffline verifies explicit requests are not gated by
// the connectivity flag either.
func TestTriggerNowRunsWhileOffline(t *testing.T) {
	var drains int64
	tr := New(func(ctx context.Context) error {
		atomic.AddInt64(&drains, 1)
		return nil
	}, time.Hour)

	tr.SetOnline(false)
	tr.Start(context.Background())
	t.Cleanup(tr.Stop)

	tr.TriggerNow()
	waitForDrains(t, &drains, 1)
}

// TestSetOnlineWhileOnlineDoesNotFire verifies only the offline-to-online
// edge triggers a drain.
func TestSetOnlineWhileOnlineDoesNotFire(t *testing.T) {
	var drains int64
	tr := New(func(ctx context.Context) error {
		atomic.AddInt64(&drains, 1)
		return nil
	}, time.Hour)

	tr.Start(context.Background())
	t.Cleanup(tr.Stop)

	tr.SetOnline(true)
	tr.SetOnline(true)
	time.Sleep(50 * time.Millisecond)
	if n := atomic.LoadInt64(&drains); n != 0 {
		t.Errorf("drains = %d, want 0 without an offline-to-online edge", n)
	}
}

// TestWakeSource verifies registered wake sources fire drains.
func TestWakeSource(t *testing.T) {
	var drains int64
	tr := New(func(ctx context.Context) error {
		atomic.AddInt64(&drains, 1)
		return nil
	}, time.Hour)

	tr.Start(context.Background())
	t.Cleanup(tr.Stop)

	var fire func()
	tr.Register(wakeSourceFunc(func(f func()) { fire = f }))

	fire()
	waitForDrains(t, &drains, 1)
}

type wakeSourceFunc func(fire func())

func (f wakeSourceFunc) OnWake(fire func()) { f(fire) }

// TestStopIsIdempotent verifies Stop and double Start/Stop do not panic or
// leak the loop.
func TestStopIsIdempotent(t *testing.T) {
	tr := New(func(ctx context.Context) error { return nil }, time.Hour)

	tr.Start(context.Background())
	tr.Start(context.Background())
	tr.Stop()
	tr.Stop()
}
