// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

// Package deadline provides wall-clock budgets for probe I/O. A Deadline is
// an absolute expiry instant with cancellation plumbing; child deadlines are
// clamped so they can never outlive their parent, and cancelling a deadline
// releases its timer on every path.
package deadline

import (
	"context"
	"errors"
	"time"
)

// ErrExpired indicates a deadline elapsed (or was cancelled) before the
// guarded operation completed.
var ErrExpired = errors.New("deadline: expired")

// Deadline couples an absolute expiry time with a cancellable context.
// The context is what propagates cancellation into dials and session
// teardown; the expiry time is what gets applied to net.Conn read/write
// deadlines so in-flight I/O is actively interrupted, not abandoned.
type Deadline struct {
	expiresAt time.Time
	ctx       context.Context
	cancel    context.CancelFunc
}

// New creates a root deadline expiring after budget. Budgets of zero or
// less expire immediately.
func New(budget time.Duration) *Deadline {
	return FromContext(context.Background(), budget)
}

// FromContext creates a root deadline expiring after budget, additionally
// honoring cancellation of the supplied context. If the context carries an
// earlier deadline of its own, the earlier instant wins.
func FromContext(ctx context.Context, budget time.Duration) *Deadline {
	expiresAt := time.Now().Add(budget)
	if t, ok := ctx.Deadline(); ok && t.Before(expiresAt) {
		expiresAt = t
	}
	child, cancel := context.WithDeadline(ctx, expiresAt)
	return &Deadline{expiresAt: expiresAt, ctx: child, cancel: cancel}
}

// Child derives a sub-deadline expiring after min(Remaining(), budget).
// The child shares the parent's cancellation: when the parent expires or
// is cancelled, every child fails at the same instant. The caller must
// Cancel the child when the guarded operation resolves, win or lose, so
// its timer is released.
func (d *Deadline) Child(budget time.Duration) *Deadline {
	expiresAt := time.Now().Add(budget)
	if d.expiresAt.Before(expiresAt) {
		expiresAt = d.expiresAt
	}
	ctx, cancel := context.WithDeadline(d.ctx, expiresAt)
	return &Deadline{expiresAt: expiresAt, ctx: ctx, cancel: cancel}
}

// Time returns the absolute expiry instant, suitable for net.Conn
// SetReadDeadline/SetWriteDeadline.
func (d *Deadline) Time() time.Time {
	return d.expiresAt
}

// Remaining returns the budget left before expiry. Zero or negative means
// the deadline has elapsed.
func (d *Deadline) Remaining() time.Duration {
	return time.Until(d.expiresAt)
}

// Expired reports whether the deadline has elapsed or been cancelled.
func (d *Deadline) Expired() bool {
	return d.ctx.Err() != nil
}

// Context exposes the deadline's context for dials and context.AfterFunc
// teardown hooks.
func (d *Deadline) Context() context.Context {
	return d.ctx
}

// Done returns a channel closed at expiry or cancellation.
func (d *Deadline) Done() <-chan struct{} {
	return d.ctx.Done()
}

// Err returns nil while the deadline is live, and an error wrapping
// ErrExpired once it has elapsed or been cancelled.
func (d *Deadline) Err() error {
	if err := d.ctx.Err(); err != nil {
		return errors.Join(ErrExpired, err)
	}
	return nil
}

// Cancel releases the deadline's timer. It is safe to call repeatedly and
// must be called on both the success and failure paths of the operation
// the deadline guards.
func (d *Deadline) Cancel() {
	d.cancel()
}
