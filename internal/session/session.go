// Package session validates the bearer credential against the backend and
// keeps the resulting snapshot. Checks fail closed.
package session

import (
	"context"
	"errors"
	"slices"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/naveenspark/arcana/pkg/client"
	"github.com/naveenspark/arcana/pkg/domain"
)

// State is the outcome of a validation.
type State string

const (
	StateOK         State = "ok"
	StateNeedsTerms State = "needs-terms"
	StateInvalid    State = "invalid"
)

// Backend checks the credential.
type Backend interface {
	ValidateSession(ctx context.Context) (*domain.SessionSnapshot, error)
}

const flightKey = "validate"

// Validator is safe for concurrent use.
type Validator struct {
	backend Backend
	log     *zap.Logger
	group   singleflight.Group

	mu        sync.Mutex
	snap      domain.SessionSnapshot
	listeners []func(domain.SessionSnapshot)
	seq       uint64 // last flight started
	applied   uint64 // last flight whose result replaced the snapshot
}

// New returns a Validator with an empty snapshot.
func New(backend Backend, log *zap.Logger) *Validator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Validator{backend: backend, log: log}
}

// Validate checks the session. Concurrent unforced calls share one in-flight
// request; force always issues a fresh one. Any failure resets the snapshot
// to empty and yields StateInvalid.
//
// A flight that settles after a later one has already been applied is
// discarded and reports the state of the current snapshot.
func (v *Validator) Validate(ctx context.Context, force bool) State {
	if force {
		v.group.Forget(flightKey)
	}
	res, _, _ := v.group.Do(flightKey, func() (any, error) {
		v.mu.Lock()
		v.seq++
		seq := v.seq
		v.mu.Unlock()
		return v.check(ctx, seq), nil
	})
	return res.(State)
}

func (v *Validator) check(ctx context.Context, seq uint64) State {
	snap, err := v.backend.ValidateSession(ctx)
	if err != nil {
		switch {
		case client.IsStatus(err, 401):
			v.log.Info("session rejected")
		case errors.Is(err, client.ErrInvalidResponse):
			v.log.Warn("session response invalid", zap.Error(err))
		default:
			v.log.Warn("session check failed", zap.Error(err))
		}
		snap = &domain.SessionSnapshot{}
	}
	cur, ok := v.apply(seq, *snap)
	if !ok {
		v.log.Debug("discarding stale session check", zap.Uint64("seq", seq))
	}
	return stateOf(cur)
}

func stateOf(s domain.SessionSnapshot) State {
	switch {
	case !s.SignedIn():
		return StateInvalid
	case s.NeedsTerms:
		return StateNeedsTerms
	}
	return StateOK
}

// apply replaces the snapshot with the result of flight seq unless a later
// flight was applied first. It returns the snapshot in effect afterwards.
func (v *Validator) apply(seq uint64, s domain.SessionSnapshot) (domain.SessionSnapshot, bool) {
	v.mu.Lock()
	if seq < v.applied {
		cur := v.snap
		v.mu.Unlock()
		return cur, false
	}
	v.applied = seq
	v.snap = s
	listeners := slices.Clone(v.listeners)
	v.mu.Unlock()
	for _, l := range listeners {
		l(s)
	}
	return s, true
}

// Snapshot returns the current snapshot.
func (v *Validator) Snapshot() domain.SessionSnapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snap
}

// SetBalance updates the drucoin balance only.
func (v *Validator) SetBalance(n int) {
	v.update(func(s *domain.SessionSnapshot) { s.Drucoins = n })
}

// SetNeedsTerms updates the terms flag only.
func (v *Validator) SetNeedsTerms(b bool) {
	v.update(func(s *domain.SessionSnapshot) { s.NeedsTerms = b })
}

// Subscribe registers fn to run after every snapshot change. fn must not
// call back into the Validator's setters.
func (v *Validator) Subscribe(fn func(domain.SessionSnapshot)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.listeners = append(v.listeners, fn)
}

func (v *Validator) update(fn func(*domain.SessionSnapshot)) {
	v.mu.Lock()
	fn(&v.snap)
	snap := v.snap
	listeners := slices.Clone(v.listeners)
	v.mu.Unlock()
	for _, l := range listeners {
		l(snap)
	}
}
