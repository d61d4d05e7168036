package remotestore

import (
	"context"
	"time"
)

// Observer receives the outcome of every remote operation.
type Observer interface {
	ObserveRemoteOp(op string, d time.Duration, err error)
}

// InstrumentedStore reports each call of the wrapped Store to an Observer.
type InstrumentedStore struct {
	next Store
	obs  Observer
}

// Instrument wraps store; a nil observer returns store unchanged.
func Instrument(store Store, obs Observer) Store {
	if obs == nil {
		return store
	}
	return &InstrumentedStore{next: store, obs: obs}
}

func (s *InstrumentedStore) Locate(ctx context.Context, key Key) (Handle, bool, error) {
	start := time.Now()
	h, found, err := s.next.Locate(ctx, key)
	s.obs.ObserveRemoteOp("locate", time.Since(start), err)
	return h, found, err
}

func (s *InstrumentedStore) Create(ctx context.Context, key Key) (Handle, error) {
	start := time.Now()
	h, err := s.next.Create(ctx, key)
	s.obs.ObserveRemoteOp("create", time.Since(start), err)
	return h, err
}

func (s *InstrumentedStore) Fetch(ctx context.Context, h Handle) ([]byte, error) {
	start := time.Now()
	data, err := s.next.Fetch(ctx, h)
	s.obs.ObserveRemoteOp("fetch", time.Since(start), err)
	return data, err
}

func (s *InstrumentedStore) Replace(ctx context.Context, h Handle, data []byte) (Handle, error) {
	start := time.Now()
	next, err := s.next.Replace(ctx, h, data)
	s.obs.ObserveRemoteOp("replace", time.Since(start), err)
	return next, err
}
