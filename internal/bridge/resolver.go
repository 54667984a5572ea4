package bridge

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Detector probes the environment and constructs a backend. Called at most
// once per Resolver, no matter how many callers race on Resolve.
type Detector func(ctx context.Context) (Backend, error)

// Resolver memoizes backend detection. The first Resolve runs the
// detector; every later call, concurrent or not, observes the same
// outcome. A failed detection is final: the process restarts rather than
// hopping backends mid-session.
type Resolver struct {
	detect Detector
	logger *zap.Logger

	once    sync.Once
	ready   atomic.Bool
	backend Backend
	err     error
}

// NewResolver creates a resolver around the given detector.
func NewResolver(detect Detector, logger *zap.Logger) *Resolver {
	return &Resolver{detect: detect, logger: logger}
}

// Resolve returns the process-wide backend, detecting it on first call.
func (r *Resolver) Resolve(ctx context.Context) (Backend, error) {
	r.once.Do(func() {
		r.backend, r.err = r.detect(ctx)
		if r.err != nil {
			r.logger.Error("backend detection failed", zap.Error(r.err))
			return
		}
		r.logger.Info("backend resolved", zap.String("backend", r.backend.Name()))
		r.ready.Store(true)
	})
	return r.backend, r.err
}

// Ready reports whether a backend has been successfully resolved. It never
// flips back to false.
func (r *Resolver) Ready() bool {
	return r.ready.Load()
}

// Close closes the resolved backend, if any.
func (r *Resolver) Close() error {
	if !r.ready.Load() {
		return nil
	}
	return r.backend.Close()
}
