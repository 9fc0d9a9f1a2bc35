package tensor

import (
	"errors"
	"fmt"
	"sync"
)

// Op is one unit of work issued to a Session.
type Op struct {
	// Name identifies the operation in error messages (e.g. "conv.forward").
	Name string

	// Hazard declares that the op reads something written by an earlier op
	// in the same session. The session waits for every prior op to finish
	// before starting a hazard op.
	Hazard bool

	// Run performs the work.
	Run func() error
}

// Session is a scoped batch of tensor operations.
//
// Ops are started as they are submitted. Ops without a declared hazard may
// run concurrently with each other; a hazard op acts as a barrier. End blocks
// until all work has completed, including device work on the context.
//
// A session is driven by a single control goroutine.
//
// Example:
//
//	s, _ := tensor.Begin(ctx)
//	_ = tensor.Copy(s, x.All(tensor.Accel), x.All(tensor.Host))
//	y, _ := model.Forward(s, flags, batch, x)
//	if err := s.End(); err != nil {
//	    return err
//	}
type Session struct {
	ctx  Context
	wg   sync.WaitGroup
	open bool

	mu   sync.Mutex
	errs []error
	ops  int
}

// Begin opens a compute session on ctx.
func Begin(ctx Context) (*Session, error) {
	if ctx == nil {
		return nil, stateErrorf("begin: nil context")
	}
	return &Session{ctx: ctx, open: true}, nil
}

// Context returns the session's execution context.
func (s *Session) Context() Context {
	return s.ctx
}

// Open reports whether the session accepts ops.
func (s *Session) Open() bool {
	return s.open
}

// Ops returns the number of ops submitted so far.
func (s *Session) Ops() int {
	return s.ops
}

// Submit issues op. It returns ErrState if the session is closed, and the
// first recorded failure if an earlier op has failed (the step is aborted).
func (s *Session) Submit(op Op) error {
	if !s.open {
		return stateErrorf("submit %q: session is closed", op.Name)
	}
	if op.Run == nil {
		return stateErrorf("submit %q: nil run function", op.Name)
	}
	if err := s.failure(); err != nil {
		return err
	}

	if op.Hazard {
		s.wg.Wait()
		if err := s.failure(); err != nil {
			return err
		}
	}

	s.ops++
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := run(op); err != nil {
			s.mu.Lock()
			s.errs = append(s.errs, err)
			s.mu.Unlock()
		}
	}()

	return nil
}

// Wait blocks until every submitted op has finished without closing the
// session. It returns the first recorded failure.
func (s *Session) Wait() error {
	s.wg.Wait()
	return s.failure()
}

// End closes the session and blocks until all issued work completes.
// It returns every op failure, joined.
func (s *Session) End() error {
	if !s.open {
		return stateErrorf("end: session is closed")
	}
	s.wg.Wait()
	s.open = false

	s.mu.Lock()
	errs := s.errs
	s.mu.Unlock()

	if err := s.ctx.Sync(); err != nil {
		errs = append(errs, fmt.Errorf("sync: %w", err))
	}
	return errors.Join(errs...)
}

func (s *Session) failure() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.errs) > 0 {
		return s.errs[0]
	}
	return nil
}

// run executes op, converting kernel panics into errors so one bad op
// cannot take down the control goroutine.
func run(op Op) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = fmt.Errorf("%s: %w", op.Name, e)
				return
			}
			err = fmt.Errorf("%s: panic: %v", op.Name, r)
		}
	}()
	if err := op.Run(); err != nil {
		return fmt.Errorf("%s: %w", op.Name, err)
	}
	return nil
}
