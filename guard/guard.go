// Package guard provides the critical-section capability that gates every
// mutating call on the cache.
//
// The cache performs no locking of its own across the read-store /
// write-store / write-through sequence; correctness depends on the caller
// serializing that whole sequence externally. Instead of documenting that as
// a comment, mutating cache calls demand a Token, and Tokens are only issued
// by acquiring a Mutex. Callers that bring their own mutual exclusion (e.g.
// a distributed lock service) implement TokenSource over it.
package guard

import (
	"context"
	"errors"
	"sync/atomic"
)

var (
	// ErrNotHeld is returned when releasing with a token that does not match
	// the current holder.
	ErrNotHeld = errors.New("guard: token does not hold the lock")
)

// Token proves the holder is inside the critical section.
// The zero Token proves nothing and is rejected by every mutating call.
type Token struct {
	id uint64
}

// Valid reports whether the token was issued by an acquisition.
// It does not prove the lock is still held; release discipline is the
// caller's job.
func (t Token) Valid() bool {
	return t.id != 0
}

// TokenSource issues critical-section tokens. Mutex is the in-process
// implementation; wrap an external lock service to span processes.
type TokenSource interface {
	// Acquire blocks until the critical section is entered or ctx is done.
	// On ctx expiry the operation must be treated as failed, not retried
	// blindly: a second attempt may interleave with the writer that held
	// the lock.
	Acquire(ctx context.Context) (Token, error)

	// Release exits the critical section entered with the given token.
	Release(t Token) error
}

// Mutex is a process-local TokenSource backed by a channel, so acquisition
// honors context cancellation and deadlines.
type Mutex struct {
	ch     chan struct{}
	next   atomic.Uint64
	holder atomic.Uint64
}

// NewMutex creates an unlocked Mutex.
func NewMutex() *Mutex {
	m := &Mutex{ch: make(chan struct{}, 1)}
	m.ch <- struct{}{}
	return m
}

// Acquire blocks until the lock is held or ctx is done.
func (m *Mutex) Acquire(ctx context.Context) (Token, error) {
	select {
	case <-m.ch:
		t := Token{id: m.next.Add(1)}
		m.holder.Store(t.id)
		return t, nil
	case <-ctx.Done():
		return Token{}, ctx.Err()
	}
}

// Release unlocks. The token must be the one returned by the matching
// Acquire; stale or foreign tokens are rejected.
func (m *Mutex) Release(t Token) error {
	if !t.Valid() || !m.holder.CompareAndSwap(t.id, 0) {
		return ErrNotHeld
	}
	m.ch <- struct{}{}
	return nil
}
