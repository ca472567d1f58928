package vm

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Value is any runtime value the machine manipulates: float64, string, bool,
// nil, []Value, map[string]Value, *List, *Buffer, *Promise, *QuantumState,
// or a NativeFunc registered by the host.
type Value = any

// NativeFunc is a host-registered callable. It may return a *Promise, in
// which case the machine awaits the promise before proceeding.
type NativeFunc func(args []Value) (Value, error)

// Truthy reports whether a value counts as true for jump_if and match.
func Truthy(v Value) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		return x != ""
	default:
		return true
	}
}

// NumberOf converts a value to float64 for arithmetic.
func NumberOf(v Value) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int:
		return float64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("%w: %T is not numeric", ErrTypeMismatch, v)
	}
}

// Equal compares two values structurally: slices element-wise by position,
// maps by key, scalars by equality. Used by match and PATTERN_MATCH.
func Equal(a, b Value) bool {
	switch x := a.(type) {
	case []Value:
		y, ok := b.([]Value)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case map[string]Value:
		y, ok := b.(map[string]Value)
		if !ok || len(x) != len(y) {
			return false
		}
		for k, v := range x {
			w, present := y[k]
			if !present || !Equal(v, w) {
				return false
			}
		}
		return true
	case *List:
		y, ok := b.(*List)
		if !ok {
			return false
		}
		return Equal(Value(x.Items()), Value(y.Items()))
	default:
		return a == b
	}
}

// ---------------------------------------------------------------------------
// List: shared mutable collection
// ---------------------------------------------------------------------------

// List is a mutex-guarded growable collection. Parallel iterations share a
// List by reference even though their memory maps are isolated copies, so it
// is the explicit merge point for fan-out results.
type List struct {
	mu    sync.Mutex
	items []Value
}

// NewList creates an empty list.
func NewList() *List {
	return &List{}
}

// Append adds a value to the end of the list.
func (l *List) Append(v Value) {
	l.mu.Lock()
	l.items = append(l.items, v)
	l.mu.Unlock()
}

// Len returns the number of elements.
func (l *List) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// Items returns a copy of the current elements.
func (l *List) Items() []Value {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Value, len(l.items))
	copy(out, l.items)
	return out
}

// ---------------------------------------------------------------------------
// Buffer: alloc/free target
// ---------------------------------------------------------------------------

// Buffer is a fixed-size allocation produced by alloc. Handles are
// uuid-tagged so a freed buffer is detectable rather than dangling.
type Buffer struct {
	ID    string
	Data  []Value
	freed bool
}

func newBuffer(size int) *Buffer {
	return &Buffer{ID: uuid.NewString(), Data: make([]Value, size)}
}

// Size returns the buffer length.
func (b *Buffer) Size() int { return len(b.Data) }

// Freed reports whether the buffer has been released.
func (b *Buffer) Freed() bool { return b.freed }

func (b *Buffer) release() {
	b.freed = true
	b.Data = nil
}

// ---------------------------------------------------------------------------
// Promise: pending native results
// ---------------------------------------------------------------------------

type promiseOutcome struct {
	value Value
	err   error
}

// Promise is a pending result returned by a native function. The machine
// awaits it at the call site; execution does not proceed until it settles.
type Promise struct {
	ch   chan promiseOutcome
	once sync.Once
}

// NewPromise creates an unsettled promise.
func NewPromise() *Promise {
	return &Promise{ch: make(chan promiseOutcome, 1)}
}

// Resolve settles the promise with a value. Later settlements are ignored.
func (p *Promise) Resolve(v Value) {
	p.once.Do(func() { p.ch <- promiseOutcome{value: v} })
}

// Reject settles the promise with an error.
func (p *Promise) Reject(err error) {
	p.once.Do(func() { p.ch <- promiseOutcome{err: err} })
}

// Await blocks until the promise settles.
func (p *Promise) Await() (Value, error) {
	out := <-p.ch
	return out.value, out.err
}

// cloneMemory copies a memory map one level deep. Values keep reference
// semantics; only the bindings are isolated.
func cloneMemory(m map[string]Value) map[string]Value {
	out := make(map[string]Value, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
