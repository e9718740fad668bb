package tidal

import (
	"context"
	"sync"
)

// LoginFuture is the completion handle of a device flow. It resolves once;
// later calls to Resolve are ignored.
type LoginFuture struct {
	done   chan struct{}
	once   sync.Once
	err    error
	cancel context.CancelFunc
}

// NewLoginFuture returns an unresolved future. cancel, if not nil, stops the
// work that would resolve it.
func NewLoginFuture(cancel context.CancelFunc) *LoginFuture {
	return &LoginFuture{
		done:   make(chan struct{}),
		cancel: cancel,
	}
}

// Resolve completes the future with err (nil for success). It reports
// whether this call was the one that resolved it.
func (f *LoginFuture) Resolve(err error) bool {
	resolved := false
	f.once.Do(func() {
		f.err = err
		close(f.done)
		resolved = true
	})
	return resolved
}

// Poll never blocks.
func (f *LoginFuture) Poll() (done bool, err error) {
	select {
	case <-f.done:
		return true, f.err
	default:
		return false, nil
	}
}

func (f *LoginFuture) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the future resolves or ctx ends.
func (f *LoginFuture) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel abandons the flow behind the future and releases its resources.
func (f *LoginFuture) Cancel() {
	if f.cancel != nil {
		f.cancel()
	}
}
