// Package terms coordinates the terms-of-service modal: when it shows, who
// waits on it, and the single in-flight acceptance.
package terms

import (
	"context"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/naveenspark/arcana/internal/session"
	"github.com/naveenspark/arcana/pkg/domain"
)

// Acceptor records acceptance with the backend.
type Acceptor interface {
	AcceptTerms(ctx context.Context, version string) error
}

// Validator re-checks the session after acceptance.
type Validator interface {
	Validate(ctx context.Context, force bool) session.State
}

// Phase is the confirmation state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAwaiting
)

// Outcome is the deferred answer to a terms prompt.
type Outcome struct {
	done     chan struct{}
	accepted bool
}

func newOutcome() *Outcome {
	return &Outcome{done: make(chan struct{})}
}

// Done is closed once the outcome is resolved.
func (o *Outcome) Done() <-chan struct{} { return o.done }

// Accepted reports the resolution. Only meaningful after Done is closed.
func (o *Outcome) Accepted() bool {
	select {
	case <-o.done:
		return o.accepted
	default:
		return false
	}
}

// Wait blocks until the outcome resolves or ctx ends.
func (o *Outcome) Wait(ctx context.Context) (bool, error) {
	select {
	case <-o.done:
		return o.accepted, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Coordinator is safe for concurrent use.
type Coordinator struct {
	acceptor  Acceptor
	validator Validator
	version   string
	log       *zap.Logger

	mu         sync.Mutex
	needsTerms bool
	manual     bool
	phase      Phase
	pending    *Outcome
	listeners  []func(show bool)
}

// New returns an idle coordinator that accepts the given terms version.
func New(acceptor Acceptor, validator Validator, version string, log *zap.Logger) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{acceptor: acceptor, validator: validator, version: version, log: log}
}

// ShowModal reports whether the modal is visible: the session needs terms
// or it was opened by hand.
func (c *Coordinator) ShowModal() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.showLocked()
}

func (c *Coordinator) showLocked() bool {
	return c.needsTerms || c.manual
}

// Phase returns the confirmation state.
func (c *Coordinator) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Subscribe registers fn to run with the modal visibility after every change.
func (c *Coordinator) Subscribe(fn func(show bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// SetNeedsTerms mirrors the session flag.
func (c *Coordinator) SetNeedsTerms(b bool) {
	c.mutate(func() { c.needsTerms = b })
}

// Follow keeps the session-forced visibility in step with v's snapshot,
// starting from its current value.
func (c *Coordinator) Follow(v *session.Validator) {
	v.Subscribe(func(s domain.SessionSnapshot) { c.SetNeedsTerms(s.NeedsTerms) })
	c.SetNeedsTerms(v.Snapshot().NeedsTerms)
}

// Open shows the modal without waiting for an answer.
func (c *Coordinator) Open() {
	c.mutate(func() { c.manual = true })
}

// OpenForResult shows the modal and returns the pending outcome. Concurrent
// requesters share the same outcome.
func (c *Coordinator) OpenForResult() *Outcome {
	var o *Outcome
	c.mutate(func() {
		c.manual = true
		if c.pending == nil {
			c.pending = newOutcome()
		}
		o = c.pending
	})
	return o
}

// Close hides a manually opened modal and resolves any pending outcome as
// declined. A modal forced by the session stays visible.
func (c *Coordinator) Close() {
	c.mutate(func() {
		c.manual = false
		c.resolveLocked(false)
	})
}

// Confirm accepts the terms and re-validates the session. It returns false
// immediately when another confirmation is in flight, or when acceptance
// fails; in both cases a pending outcome stays pending.
func (c *Coordinator) Confirm(ctx context.Context) bool {
	c.mu.Lock()
	if c.phase == PhaseAwaiting {
		c.mu.Unlock()
		return false
	}
	c.phase = PhaseAwaiting
	c.mu.Unlock()

	if err := c.acceptor.AcceptTerms(ctx, c.version); err != nil {
		c.log.Warn("accept terms", zap.String("version", c.version), zap.Error(err))
		c.mutate(func() { c.phase = PhaseIdle })
		return false
	}
	state := c.validator.Validate(ctx, true)
	c.log.Info("terms accepted", zap.String("version", c.version), zap.String("session", string(state)))

	c.mutate(func() {
		c.phase = PhaseIdle
		c.manual = false
		c.resolveLocked(true)
	})
	return true
}

func (c *Coordinator) resolveLocked(accepted bool) {
	if c.pending == nil {
		return
	}
	c.pending.accepted = accepted
	close(c.pending.done)
	c.pending = nil
}

func (c *Coordinator) mutate(fn func()) {
	c.mu.Lock()
	fn()
	show := c.showLocked()
	listeners := slices.Clone(c.listeners)
	c.mu.Unlock()
	for _, l := range listeners {
		l(show)
	}
}
