package client

import (
	"sync"

	"github.com/wesleyorama2/surge/internal/request"
)

// Future is the pending outcome of an executed request. It resolves exactly
// once.
type Future struct {
	mu        sync.Mutex
	done      chan struct{}
	resolved  bool
	resp      *request.Response
	err       error
	callbacks []func(*request.Response, error)
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Then registers fn to run once the future resolves. Callbacks run on the
// goroutine that resolves the future, in registration order; if the future
// has already resolved, fn runs immediately on the caller's goroutine.
func (f *Future) Then(fn func(*request.Response, error)) {
	f.mu.Lock()
	if !f.resolved {
		f.callbacks = append(f.callbacks, fn)
		f.mu.Unlock()
		return
	}
	resp, err := f.resp, f.err
	f.mu.Unlock()

	fn(resp, err)
}

// Done is closed when the future resolves.
func (f *Future) Done() <-chan struct{} { return f.done }

// Result blocks until the future resolves and returns its outcome.
func (f *Future) Result() (*request.Response, error) {
	<-f.done
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resp, f.err
}

// resolve settles the future and runs the registered callbacks. Later calls
// are ignored.
func (f *Future) resolve(resp *request.Response, err error) {
	f.mu.Lock()
	if f.resolved {
		f.mu.Unlock()
		return
	}
	f.resolved = true
	f.resp, f.err = resp, err
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	for _, fn := range callbacks {
		fn(resp, err)
	}
}
