package core

// upload_gate.go serialises uploads per user.
//
// An upload creates a batch and then prunes the user's older batches. Two
// uploads from the same user running side by side could each prune with a
// stale view of the other, so the gate admits one upload per user at a time.
// A second request waits up to maxWait before failing with
// ErrUploadInProgress. Uploads from different users never block each other.
//
// The gate also supports graceful shutdown via WaitForDrain, which blocks
// until all active uploads complete.

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrUploadInProgress is returned when the user's previous upload is still
// running and the wait timeout expires. Clients should retry after a short delay.
var ErrUploadInProgress = errors.New("too many uploads: a previous upload for this account is still in progress")

// DefaultMaxWaitTime is how long to wait for the user's slot before rejecting.
const DefaultMaxWaitTime = 30 * time.Second

// UploadGate admits at most one upload per user.
type UploadGate struct {
	maxWait time.Duration

	mu     sync.Mutex
	slots  map[uuid.UUID]*gateSlot
	active int
}

type gateSlot struct {
	sem  chan struct{}
	refs int // holders plus waiters
}

// NewUploadGate creates a gate. Requests that cannot enter within maxWait
// receive ErrUploadInProgress.
func NewUploadGate(maxWait time.Duration) *UploadGate {
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}
	return &UploadGate{
		maxWait: maxWait,
		slots:   make(map[uuid.UUID]*gateSlot),
	}
}

// Acquire waits for the user's slot. On success the caller MUST call the
// returned release func exactly once (use defer).
func (g *UploadGate) Acquire(ctx context.Context, userID uuid.UUID) (func(), error) {
	g.mu.Lock()
	slot, ok := g.slots[userID]
	if !ok {
		slot = &gateSlot{sem: make(chan struct{}, 1)}
		g.slots[userID] = slot
	}
	slot.refs++
	g.mu.Unlock()

	waitCtx, cancel := context.WithTimeout(ctx, g.maxWait)
	defer cancel()

	select {
	case slot.sem <- struct{}{}:
		g.mu.Lock()
		g.active++
		g.mu.Unlock()

		var once sync.Once
		return func() {
			once.Do(func() {
				<-slot.sem
				g.mu.Lock()
				g.active--
				g.unref(userID, slot)
				g.mu.Unlock()
			})
		}, nil

	case <-waitCtx.Done():
		g.mu.Lock()
		g.unref(userID, slot)
		g.mu.Unlock()

		// Distinguish caller cancellation from our own timeout
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ErrUploadInProgress
	}
}

// unref drops one reference and forgets idle slots. Caller holds g.mu.
func (g *UploadGate) unref(userID uuid.UUID, slot *gateSlot) {
	slot.refs--
	if slot.refs == 0 {
		delete(g.slots, userID)
	}
}

// ActiveCount returns the number of uploads currently holding a slot.
func (g *UploadGate) ActiveCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

// WaitForDrain blocks until all active uploads complete or ctx is cancelled.
// Used for graceful shutdown to ensure uploads finish before termination.
func (g *UploadGate) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if g.ActiveCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// UploadGateStatus is a snapshot of the gate for monitoring.
type UploadGateStatus struct {
	Active       int `json:"active"`
	WaitingUsers int `json:"waiting_users"`
}

// Status returns the current gate state.
func (g *UploadGate) Status() UploadGateStatus {
	g.mu.Lock()
	defer g.mu.Unlock()

	waiting := 0
	for _, slot := range g.slots {
		if slot.refs > 1 {
			waiting++
		}
	}
	return UploadGateStatus{Active: g.active, WaitingUsers: waiting}
}
