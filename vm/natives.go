package vm

import (
	"fmt"
	"io"
	"time"
)

// ---------------------------------------------------------------------------
// Built-in native functions
// ---------------------------------------------------------------------------

// RegisterDefaults installs the standard native library on a machine. Output
// from print goes to out.
func RegisterDefaults(m *Machine, out io.Writer) {
	m.RegisterNative("print", func(args []Value) (Value, error) {
		parts := make([]any, len(args))
		for i, a := range args {
			parts[i] = a
		}
		if _, err := fmt.Fprintln(out, parts...); err != nil {
			return nil, err
		}
		return nil, nil
	})

	m.RegisterNative("len", func(args []Value) (Value, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("len takes one argument, got %d", len(args))
		}
		switch x := args[0].(type) {
		case string:
			return float64(len(x)), nil
		case []Value:
			return float64(len(x)), nil
		case *List:
			return float64(x.Len()), nil
		case *Buffer:
			return float64(x.Size()), nil
		default:
			return nil, fmt.Errorf("%w: len of %T", ErrTypeMismatch, args[0])
		}
	})

	m.RegisterNative("list", func(args []Value) (Value, error) {
		l := NewList()
		for _, a := range args {
			l.Append(a)
		}
		return l, nil
	})

	m.RegisterNative("append", func(args []Value) (Value, error) {
		if len(args) < 1 {
			return nil, fmt.Errorf("append needs a list")
		}
		l, ok := args[0].(*List)
		if !ok {
			return nil, fmt.Errorf("%w: append to %T", ErrTypeMismatch, args[0])
		}
		for _, a := range args[1:] {
			l.Append(a)
		}
		return l, nil
	})

	m.RegisterNative("range", func(args []Value) (Value, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("range takes one argument, got %d", len(args))
		}
		n, err := NumberOf(args[0])
		if err != nil {
			return nil, err
		}
		items := make([]Value, 0, max(int(n), 0))
		for i := 0; i < int(n); i++ {
			items = append(items, float64(i))
		}
		return items, nil
	})

	// sleep returns a promise so the caller's await point is explicit.
	m.RegisterNative("sleep", func(args []Value) (Value, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("sleep takes one argument, got %d", len(args))
		}
		ms, err := NumberOf(args[0])
		if err != nil {
			return nil, err
		}
		p := NewPromise()
		go func() {
			time.Sleep(time.Duration(ms) * time.Millisecond)
			p.Resolve(ms)
		}()
		return p, nil
	})
}
