package orchestrator

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// ConnectFunc connects the wallet, binds the contracts and returns the ready value, usually an
// *Orchestrator or an interface it satisfies.
type ConnectFunc[T any] func(ctx context.Context) (T, error)

// Session hands out the process wide connection. The connect function runs at most once at a
// time: callers arriving while it runs wait for the same result instead of prompting the wallet
// again. A successful result is kept for the life of the Session; a failed one is not, so the
// next Get connects again.
type Session[T any] struct {
	connect ConnectFunc[T]
	group   singleflight.Group

	mu        sync.RWMutex
	value     T
	connected bool
}

// NewSession returns a Session connecting through connect.
func NewSession[T any](connect func(ctx context.Context) (T, error)) *Session[T] {
	return &Session[T]{connect: connect}
}

// Get returns the connected value, connecting first if needed. ctx bounds only this caller's
// wait; an in-flight connection keeps running for the other callers.
func (s *Session[T]) Get(ctx context.Context) (T, error) {
	if v, ok := s.Cached(); ok {
		return v, nil
	}

	ch := s.group.DoChan("connect", func() (any, error) {
		if v, ok := s.Cached(); ok {
			return v, nil
		}
		v, err := s.connect(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.value, s.connected = v, true
		s.mu.Unlock()

		return v, nil
	})

	var zero T
	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}

		v, _ := res.Val.(T)

		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Cached returns the connected value without connecting. ok is false until a Get succeeded.
func (s *Session[T]) Cached() (v T, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.value, s.connected
}
