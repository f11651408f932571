package engine

import (
	"context"
	"fmt"
	"sync"
)

// Gate ensures a model is loaded exactly once before use. A resident model is
// a no-op; a load in progress is awaited rather than duplicated. At most one
// load is in flight at a time.
type Gate struct {
	engine Engine

	mu       sync.Mutex
	inflight *loadCall
}

type loadCall struct {
	modelID string
	done    chan struct{}
	err     error
}

func NewGate(engine Engine) *Gate {
	return &Gate{engine: engine}
}

// EnsureLoaded blocks until modelID is resident or the load fails. Concurrent
// callers for the same model share a single load; the caller decides how to
// handle a load error.
func (g *Gate) EnsureLoaded(ctx context.Context, modelID string) error {
	if modelID == "" {
		return ErrNoModel
	}

	g.mu.Lock()
	if g.engine.LoadedModel() == modelID {
		g.mu.Unlock()
		return nil
	}
	if call := g.inflight; call != nil {
		g.mu.Unlock()
		select {
		case <-call.done:
		case <-ctx.Done():
			return ctx.Err()
		}
		if call.modelID == modelID {
			if call.err != nil {
				return fmt.Errorf("%w: %s: %v", ErrLoadFailed, modelID, call.err)
			}
			return nil
		}
		// A load for a different model was in flight -- start our own.
		return g.EnsureLoaded(ctx, modelID)
	}

	call := &loadCall{modelID: modelID, done: make(chan struct{})}
	g.inflight = call
	g.mu.Unlock()

	call.err = g.engine.LoadModel(ctx, modelID)

	g.mu.Lock()
	g.inflight = nil
	g.mu.Unlock()
	close(call.done)

	if call.err != nil {
		return fmt.Errorf("%w: %s: %v", ErrLoadFailed, modelID, call.err)
	}
	return nil
}
