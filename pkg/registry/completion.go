package registry

import (
	"context"
	"errors"
	"sync"
)

// ErrAlreadyCompleted is returned when a completion is settled a second time.
var ErrAlreadyCompleted = errors.New("registry:completion - completion already settled")

// Result is the settled outcome of a call: either Err, or Data with optional Meta.
type Result struct {
	Data any
	Meta *Meta
	Err  error
}

// Completion is the single-shot result of one call. The first Resolve or Reject wins; later
// attempts return ErrAlreadyCompleted and leave the result untouched.
type Completion struct {
	mu        sync.Mutex
	done      chan struct{}
	result    Result
	settled   bool
	observers []func(Result)
}

// NewCompletion creates an unsettled completion.
func NewCompletion() *Completion {
	return &Completion{done: make(chan struct{})}
}

// Resolve settles the completion with data and optional meta.
func (c *Completion) Resolve(data any, meta *Meta) error {
	return c.settle(Result{Data: data, Meta: meta})
}

// Reject settles the completion with err. A nil err is replaced by a generic handler error.
func (c *Completion) Reject(err error) error {
	if err == nil {
		err = NewHandlerError(0, defaultErrorMessage)
	}
	return c.settle(Result{Err: err})
}

func (c *Completion) settle(r Result) error {
	c.mu.Lock()
	if c.settled {
		c.mu.Unlock()
		return ErrAlreadyCompleted
	}
	c.settled = true
	c.result = r
	observers := c.observers
	c.observers = nil
	close(c.done)
	c.mu.Unlock()

	for _, fn := range observers {
		fn(r)
	}
	return nil
}

// OnComplete registers fn to run once with the result. If the completion is already settled
// fn runs immediately on the calling goroutine.
func (c *Completion) OnComplete(fn func(Result)) {
	c.mu.Lock()
	if !c.settled {
		c.observers = append(c.observers, fn)
		c.mu.Unlock()
		return
	}
	r := c.result
	c.mu.Unlock()
	fn(r)
}

// Done is closed once the completion settles.
func (c *Completion) Done() <-chan struct{} {
	return c.done
}

// Result returns the outcome and whether the completion has settled.
func (c *Completion) Result() (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result, c.settled
}

// Settled reports whether Resolve or Reject has been called.
func (c *Completion) Settled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settled
}

// Wait blocks until the completion settles or ctx is done.
func (c *Completion) Wait(ctx context.Context) (Result, error) {
	select {
	case <-c.done:
		r, _ := c.Result()
		return r, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}
