package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestUploadGate_AcquireRelease(t *testing.T) {
	gate := NewUploadGate(time.Second)
	user := uuid.New()

	if got := gate.ActiveCount(); got != 0 {
		t.Errorf("initial ActiveCount = %d, want 0", got)
	}

	release, err := gate.Acquire(context.Background(), user)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if got := gate.ActiveCount(); got != 1 {
		t.Errorf("after Acquire, ActiveCount = %d, want 1", got)
	}

	release()
	if got := gate.ActiveCount(); got != 0 {
		t.Errorf("after release, ActiveCount = %d, want 0", got)
	}

	// Double release must not underflow
	release()
	if got := gate.ActiveCount(); got != 0 {
		t.Errorf("after second release, ActiveCount = %d, want 0", got)
	}
}

func TestUploadGate_SameUserTimesOut(t *testing.T) {
	gate := NewUploadGate(100 * time.Millisecond)
	user := uuid.New()

	release, err := gate.Acquire(context.Background(), user)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer release()

	start := time.Now()
	_, err = gate.Acquire(context.Background(), user)
	elapsed := time.Since(start)

	if !errors.Is(err, ErrUploadInProgress) {
		t.Errorf("expected ErrUploadInProgress, got %v", err)
	}
	if elapsed < 90*time.Millisecond {
		t.Errorf("timeout too fast: %v", elapsed)
	}
}

func TestUploadGate_DifferentUsersDoNotBlock(t *testing.T) {
	gate := NewUploadGate(50 * time.Millisecond)

	r1, err := gate.Acquire(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}
	defer r1()

	r2, err := gate.Acquire(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("second user blocked: %v", err)
	}
	defer r2()

	if got := gate.ActiveCount(); got != 2 {
		t.Errorf("ActiveCount = %d, want 2", got)
	}
}

func TestUploadGate_ContextCancelled(t *testing.T) {
	gate := NewUploadGate(time.Second)
	user := uuid.New()

	release, err := gate.Acquire(context.Background(), user)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = gate.Acquire(ctx, user)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestUploadGate_SerialisesSameUser(t *testing.T) {
	const requests = 8

	gate := NewUploadGate(5 * time.Second)
	user := uuid.New()

	var wg sync.WaitGroup
	var inside, maxInside atomic.Int32

	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			release, err := gate.Acquire(context.Background(), user)
			if err != nil {
				t.Errorf("Acquire failed: %v", err)
				return
			}
			defer release()

			n := inside.Add(1)
			for {
				m := maxInside.Load()
				if n <= m || maxInside.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			inside.Add(-1)
		}()
	}

	wg.Wait()

	if got := maxInside.Load(); got != 1 {
		t.Errorf("max concurrent uploads for one user = %d, want 1", got)
	}
	if got := gate.ActiveCount(); got != 0 {
		t.Errorf("final ActiveCount = %d, want 0", got)
	}
	if got := gate.Status(); got.WaitingUsers != 0 {
		t.Errorf("final WaitingUsers = %d, want 0", got.WaitingUsers)
	}
}

func TestUploadGate_Status(t *testing.T) {
	gate := NewUploadGate(time.Second)
	user := uuid.New()

	release, err := gate.Acquire(context.Background(), user)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		r, err := gate.Acquire(context.Background(), user)
		if err == nil {
			r()
		}
	}()

	deadline := time.Now().Add(time.Second)
	for gate.Status().WaitingUsers != 1 {
		if time.Now().After(deadline) {
			t.Fatal("waiter never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	status := gate.Status()
	if status.Active != 1 {
		t.Errorf("Active = %d, want 1", status.Active)
	}

	release()
	<-done
}

func TestUploadGate_WaitForDrain(t *testing.T) {
	gate := NewUploadGate(time.Second)

	release, err := gate.Acquire(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		release()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := gate.WaitForDrain(ctx); err != nil {
		t.Errorf("WaitForDrain failed: %v", err)
	}
}

func TestUploadGate_WaitForDrainTimeout(t *testing.T) {
	gate := NewUploadGate(time.Second)

	release, err := gate.Acquire(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := gate.WaitForDrain(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
}
