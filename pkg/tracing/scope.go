package tracing

import (
	"context"
	"fmt"
)

// Flow holds the current-Context stack of one logical execution flow, such as
// a goroutine or a request handler chain.
//
// A Flow is not safe for concurrent use. Give every goroutine its own Flow and
// hand Contexts, not Flows or Scopes, across goroutine boundaries.
type Flow struct {
	stack []*Scope
}

// NewFlow returns a Flow whose current Context is Background().
func NewFlow() *Flow {
	return &Flow{}
}

// Current returns the innermost active Context, or Background() if none.
func (f *Flow) Current() Context {
	if n := len(f.stack); n > 0 {
		return f.stack[n-1].ctx
	}
	return Background()
}

// Depth returns the number of open scopes.
func (f *Flow) Depth() int {
	return len(f.stack)
}

// Activate makes c current and returns the Scope that restores the previous
// Context. The caller must Close the scope, normally with defer.
func (f *Flow) Activate(c Context) *Scope {
	s := &Scope{flow: f, ctx: c, depth: len(f.stack)}
	f.stack = append(f.stack, s)
	return s
}

// Within activates c, runs fn with it and closes the scope on every exit path,
// including a panic in fn.
func (f *Flow) Within(c Context, fn func(Context) error) (err error) {
	scope := f.Activate(c)
	defer func() {
		if cerr := scope.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(c)
}

// Scope is one activation of a Context on a Flow.
type Scope struct {
	flow   *Flow
	ctx    Context
	depth  int
	closed bool
}

// Context returns the Context this scope activated.
func (s *Scope) Context() Context {
	return s.ctx
}

// Close restores the Context that was current before Activate.
//
// Scopes nest strictly: closing a scope while a later one is still open
// returns ErrScopeOrder and changes nothing. Closing twice returns
// ErrScopeClosed.
func (s *Scope) Close() error {
	if s.closed {
		return ErrScopeClosed
	}
	f := s.flow
	top := len(f.stack) - 1
	if top != s.depth || f.stack[top] != s {
		return fmt.Errorf("%w: scope at depth %d closed while depth is %d", ErrScopeOrder, s.depth, top)
	}
	f.stack[top] = nil
	f.stack = f.stack[:top]
	s.closed = true
	return nil
}

type flowContextKey struct{}

// WithFlow returns a copy of ctx carrying f.
func WithFlow(ctx context.Context, f *Flow) context.Context {
	return context.WithValue(ctx, flowContextKey{}, f)
}

// FlowFromContext returns the Flow carried by ctx, or a new Flow if none.
func FlowFromContext(ctx context.Context) *Flow {
	if ctx != nil {
		if f, ok := ctx.Value(flowContextKey{}).(*Flow); ok && f != nil {
			return f
		}
	}
	return NewFlow()
}
