package vm

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("runic.vm")

// Frame is the state saved across a function call: the call-site program
// counter and a snapshot of the caller's memory map.
type Frame struct {
	ReturnPC int
	Saved    map[string]Value
}

// Machine executes an instruction plan against an evaluation stack, a call
// stack, and a frame-scoped memory map. A Machine owns its run state
// exclusively; concurrent runs use independent Machines.
type Machine struct {
	// Per-run execution state
	plan    []Instruction
	stack   []Value
	calls   []Frame
	memory  map[string]Value
	funcs   map[string]FuncInfo
	pc      int
	running bool

	// Host-provided environment, shared across runs
	globals  map[string]NativeFunc
	handlers map[handlerKey]Handler

	// Simulated hardware state
	quantum *QuantumState
	neural  *NeuralState
	tick    uint64

	rng   *rand.Rand
	runID string
	trace bool
}

// Handler is a native operation handler routed by {unit, verb}.
type Handler func(m *Machine, args []Value) (Value, error)

type handlerKey struct {
	Unit Unit
	Verb string
}

// NewMachine creates a machine with the default simulated-hardware handlers
// registered. Native functions are registered separately by the host.
func NewMachine() *Machine {
	m := &Machine{
		memory:   make(map[string]Value),
		funcs:    make(map[string]FuncInfo),
		globals:  make(map[string]NativeFunc),
		handlers: make(map[handlerKey]Handler),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	registerDefaultHandlers(m)
	return m
}

// SetSeed makes measurement sampling reproducible.
func (m *Machine) SetSeed(seed int64) {
	m.rng = rand.New(rand.NewSource(seed))
}

// SetTrace enables per-instruction debug logging.
func (m *Machine) SetTrace(on bool) {
	m.trace = on
}

// RegisterNative installs a host callable. Registered callables are invoked
// by the load/call machinery exactly like user-defined functions.
func (m *Machine) RegisterNative(name string, fn NativeFunc) {
	m.globals[name] = fn
}

// RegisterHandler installs a native operation handler for a {unit, verb}
// pair, replacing any default.
func (m *Machine) RegisterHandler(unit Unit, verb string, h Handler) {
	m.handlers[handlerKey{Unit: unit, Verb: verb}] = h
}

// Quantum returns the current quantum register, or nil before init.
func (m *Machine) Quantum() *QuantumState { return m.quantum }

// Neural returns the simulated network state, creating it on first use.
func (m *Machine) Neural() *NeuralState {
	if m.neural == nil {
		m.neural = NewNeuralState()
	}
	return m.neural
}

// Memory returns the live current-frame memory map. Tooling should prefer
// Snapshot, which copies.
func (m *Machine) Memory() map[string]Value { return m.memory }

// RunID identifies the most recent run.
func (m *Machine) RunID() string { return m.runID }

// Execute runs an instruction plan to completion. It returns the top of the
// evaluation stack (nil if empty) on success, and a *Fault carrying the
// faulting program counter on any fatal condition. It never panics across
// this boundary.
func (m *Machine) Execute(plan []Instruction) (Value, error) {
	if err := ResolveBlocks(plan); err != nil {
		return nil, &Fault{PC: 0, Err: err}
	}

	m.plan = plan
	m.stack = m.stack[:0]
	m.calls = m.calls[:0]
	m.memory = make(map[string]Value)
	m.funcs = make(map[string]FuncInfo)
	m.quantum = nil
	m.neural = nil
	m.tick = 0
	m.runID = uuid.NewString()
	m.running = true

	if err := m.runProtected(0, len(plan)); err != nil {
		return nil, err
	}
	if len(m.stack) > 0 {
		return m.stack[len(m.stack)-1], nil
	}
	return nil, nil
}

// runProtected executes a plan range, converting internal fault panics into
// *Fault errors.
func (m *Machine) runProtected(lo, hi int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if fp, ok := r.(faultPanic); ok {
				err = &Fault{PC: m.pc, Err: fp.err}
				return
			}
			err = &Fault{PC: m.pc, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	return m.run(lo, hi)
}

// run is the fetch/dispatch/increment loop over plan[lo:hi). The upper bound
// applies only at the entry call depth, so a call that jumps outside the
// range keeps running until its frame returns. A return that pops below the
// entry depth ends the range too: the frame this range was executing in is
// gone, and the caller of run must unwind with it.
func (m *Machine) run(lo, hi int) error {
	base := len(m.calls)
	m.pc = lo
	for m.running && len(m.calls) >= base && (len(m.calls) > base || m.pc < hi) {
		if m.pc < 0 || m.pc >= len(m.plan) {
			break
		}
		in := &m.plan[m.pc]
		if m.trace {
			log.Debugf("[%04d] %s sp=%d depth=%d", m.pc, in, len(m.stack), len(m.calls))
		}
		if err := m.step(in); err != nil {
			if _, ok := err.(*Fault); ok {
				return err
			}
			return &Fault{PC: m.pc, Err: err}
		}
		m.pc++
	}
	return nil
}

// step dispatches a single instruction. The switch is exhaustive over
// OpKind; an unknown opcode is fatal.
func (m *Machine) step(in *Instruction) error {
	switch in.Op {
	case OpNop:
		// skip

	// ============ Memory ============
	case OpLoad:
		v, err := m.lookup(in.Name)
		if err != nil {
			return err
		}
		m.push(v)

	case OpStore:
		m.memory[in.Name] = m.pop()

	case OpAlloc:
		size, err := NumberOf(m.pop())
		if err != nil {
			return err
		}
		if size < 0 {
			return fmt.Errorf("negative allocation size %g", size)
		}
		m.push(newBuffer(int(size)))

	case OpFree:
		if buf, ok := m.memory[in.Name].(*Buffer); ok {
			buf.release()
		}
		delete(m.memory, in.Name)

	// ============ Pattern ============
	case OpMatch:
		pattern, err := m.evalOperand(in.Value)
		if err != nil {
			return err
		}
		m.push(Equal(m.pop(), pattern))

	case OpBind:
		v := m.pop()
		for _, name := range in.Names {
			m.memory[name] = v
		}

	// ============ Quantum ============
	case OpQInit:
		n, err := m.numberArg(in, 0)
		if err != nil {
			return err
		}
		q, err := NewQuantumState(int(n))
		if err != nil {
			return err
		}
		m.quantum = q
		m.push(q)

	case OpQGate:
		if m.quantum == nil {
			return ErrNoQuantumState
		}
		args, err := m.numberArgs(in)
		if err != nil {
			return err
		}
		if err := m.quantum.ApplyGate(in.Name, args); err != nil {
			return err
		}

	case OpQMeasure:
		if m.quantum == nil {
			return ErrNoQuantumState
		}
		m.push(float64(m.quantum.Measure(m.rng)))

	case OpQEntangle:
		if m.quantum == nil {
			return ErrNoQuantumState
		}
		args, err := m.numberArgs(in)
		if err != nil {
			return err
		}
		if len(args) < 2 {
			return fmt.Errorf("entangle needs two qubit indices")
		}
		if err := m.quantum.Entangle(int(args[0]), int(args[1])); err != nil {
			return err
		}

	// ============ Neural ============
	case OpSpike:
		id, err := m.numberArg(in, 0)
		if err != nil {
			return err
		}
		m.tick++
		m.Neural().Spike(int(id), m.tick)

	case OpLearn:
		reward, err := m.numberArg(in, 0)
		if err != nil {
			return err
		}
		m.Neural().Learn(reward)

	// ============ Control flow ============
	case OpJump:
		m.pc = in.Target - 1

	case OpJumpIf:
		if Truthy(m.pop()) {
			m.pc = in.Target - 1
		}

	case OpCall:
		return m.call(in)

	case OpReturn:
		m.doReturn()

	case OpLoop:
		return m.runLoop(in)

	case OpParallel:
		return m.runParallel(in)

	case OpEndLoop, OpEndParallel:
		// Only reachable by a stray jump into a block body; treated as nop.

	case OpFunc:
		m.funcs[in.Name] = FuncInfo{Params: in.Names, Entry: m.pc + 1}
		m.pc = in.Target

	case OpEndFunc:
		// Fallthrough off the end of a function body is an implicit return.
		m.doReturn()

	// ============ Arithmetic ============
	case OpPush:
		v, err := m.evalOperand(in.Value)
		if err != nil {
			return err
		}
		m.push(v)

	case OpAdd, OpSub, OpMul, OpDiv:
		b, err := NumberOf(m.pop())
		if err != nil {
			return err
		}
		a, err := NumberOf(m.pop())
		if err != nil {
			return err
		}
		switch in.Op {
		case OpAdd:
			m.push(a + b)
		case OpSub:
			m.push(a - b)
		case OpMul:
			m.push(a * b)
		case OpDiv:
			if b == 0 {
				return ErrDivisionByZero
			}
			m.push(a / b)
		}

	// ============ Routed surface operations ============
	case OpInvoke:
		h, ok := m.handlers[handlerKey{Unit: in.Unit, Verb: in.Verb}]
		if !ok {
			return fmt.Errorf("%w: %s/%s", ErrNoHandler, in.Unit, in.Verb)
		}
		args, err := m.evalOperands(in.Args)
		if err != nil {
			return err
		}
		result, err := h(m, args)
		if err != nil {
			return err
		}
		if p, ok := result.(*Promise); ok {
			result, err = p.Await()
			if err != nil {
				return err
			}
		}
		m.push(result)

	default:
		return fmt.Errorf("unknown opcode %d at pc %d", in.Op, m.pc)
	}
	return nil
}

// call dispatches to a user-defined function or a host native. User
// functions get a frame with the caller's memory snapshot and a fresh map
// holding only the bound parameters.
func (m *Machine) call(in *Instruction) error {
	if fi, ok := m.funcs[in.Name]; ok {
		args := make([]Value, len(fi.Params))
		for i := len(args) - 1; i >= 0; i-- {
			args[i] = m.pop()
		}
		m.calls = append(m.calls, Frame{ReturnPC: m.pc, Saved: m.memory})
		m.memory = make(map[string]Value, len(args))
		for i, name := range fi.Params {
			m.memory[name] = args[i]
		}
		m.pc = fi.Entry - 1
		return nil
	}

	if fn, ok := m.globals[in.Name]; ok {
		args := make([]Value, in.Argc)
		for i := len(args) - 1; i >= 0; i-- {
			args[i] = m.pop()
		}
		result, err := fn(args)
		if err != nil {
			return fmt.Errorf("native %s: %w", in.Name, err)
		}
		if p, ok := result.(*Promise); ok {
			result, err = p.Await()
			if err != nil {
				return fmt.Errorf("native %s: %w", in.Name, err)
			}
		}
		m.push(result)
		return nil
	}

	return fmt.Errorf("%w: %q", ErrUndefinedFunction, in.Name)
}

// doReturn pops a frame, restores the caller's memory and program counter,
// and carries the callee's top-of-stack value across the frame switch. At
// call depth 0 it halts the machine instead.
func (m *Machine) doReturn() {
	if len(m.calls) == 0 {
		m.running = false
		return
	}
	f := m.calls[len(m.calls)-1]
	m.calls = m.calls[:len(m.calls)-1]

	var rv Value
	hasRV := len(m.stack) > 0
	if hasRV {
		rv = m.pop()
	}
	m.memory = f.Saved
	m.pc = f.ReturnPC
	if hasRV {
		m.push(rv)
	}
}

// runLoop executes the body range once per element, strictly in sequence.
// After the iterable is exhausted the pc lands past the end marker. A return
// inside the body that pops the enclosing function frame abandons the
// remaining iterations and unwinds; the pc is stepped back one so the
// dispatch loop's post-increment lands on the instruction after the call
// site, the same way every other opcode hands back control.
func (m *Machine) runLoop(in *Instruction) error {
	items, err := m.iterate(in)
	if err != nil {
		return err
	}
	start, end := m.pc, in.Target
	depth := len(m.calls)
	for _, item := range items {
		m.memory[in.Name] = item
		if err := m.run(start+1, end); err != nil {
			return err
		}
		if !m.running {
			return nil
		}
		if len(m.calls) < depth {
			m.pc--
			return nil
		}
	}
	m.pc = end
	return nil
}

// runParallel fans each iteration out as a goroutine over a cloned machine:
// fresh stack, copied memory, fresh simulated-hardware state. Writes are
// invisible to siblings and to the parent; programs merge results through
// shared reference values such as *List. The instruction joins on every
// iteration before proceeding, and the first failure wins.
func (m *Machine) runParallel(in *Instruction) error {
	items, err := m.iterate(in)
	if err != nil {
		return err
	}
	start, end := m.pc, in.Target

	var wg sync.WaitGroup
	errs := make([]error, len(items))
	for i, item := range items {
		clone := m.clone(int64(i))
		clone.memory[in.Name] = item
		wg.Add(1)
		go func(idx int, c *Machine) {
			defer wg.Done()
			errs[idx] = c.runProtected(start+1, end)
		}(i, clone)
	}
	wg.Wait()

	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	m.pc = end
	return nil
}

// clone prepares an isolated machine for one parallel iteration. Globals
// and handlers are shared (read-only during execution); memory bindings are
// copied; the function table is copied so a declaration inside a body
// cannot race its siblings.
func (m *Machine) clone(seedOffset int64) *Machine {
	funcs := make(map[string]FuncInfo, len(m.funcs))
	for k, v := range m.funcs {
		funcs[k] = v
	}
	return &Machine{
		plan:     m.plan,
		memory:   cloneMemory(m.memory),
		funcs:    funcs,
		globals:  m.globals,
		handlers: m.handlers,
		rng:      rand.New(rand.NewSource(m.rng.Int63() + seedOffset)),
		runID:    m.runID,
		trace:    m.trace,
		running:  true,
	}
}

// iterate evaluates a loop header's iterable operand. A number n yields
// 0..n-1; slices and Lists yield their elements.
func (m *Machine) iterate(in *Instruction) ([]Value, error) {
	if len(in.Args) == 0 {
		return nil, fmt.Errorf("%w: loop has no iterable", ErrNotIterable)
	}
	v, err := m.evalOperand(in.Args[0])
	if err != nil {
		return nil, err
	}
	switch x := v.(type) {
	case float64:
		n := int(x)
		items := make([]Value, 0, max(n, 0))
		for i := 0; i < n; i++ {
			items = append(items, float64(i))
		}
		return items, nil
	case []Value:
		return x, nil
	case *List:
		return x.Items(), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrNotIterable, v)
	}
}

// ---------------------------------------------------------------------------
// Operand evaluation
// ---------------------------------------------------------------------------

func (m *Machine) evalOperand(op Operand) (Value, error) {
	switch op.Kind {
	case OperandNone:
		return nil, nil
	case OperandNumber:
		return op.Number, nil
	case OperandString:
		return op.Str, nil
	case OperandVar:
		return m.lookup(op.Name)
	case OperandInstr:
		return m.evalInstr(op.Instr)
	case OperandList:
		items := make([]Value, len(op.Items))
		for i, sub := range op.Items {
			v, err := m.evalOperand(sub)
			if err != nil {
				return nil, err
			}
			items[i] = v
		}
		return items, nil
	default:
		return nil, fmt.Errorf("unknown operand kind %d", op.Kind)
	}
}

// evalInstr evaluates a nested instruction operand for its result value.
// Only value-producing kinds make sense in argument position.
func (m *Machine) evalInstr(in *Instruction) (Value, error) {
	if in == nil {
		return nil, nil
	}
	switch in.Op {
	case OpPush:
		return m.evalOperand(in.Value)
	case OpLoad:
		return m.lookup(in.Name)
	case OpInvoke:
		h, ok := m.handlers[handlerKey{Unit: in.Unit, Verb: in.Verb}]
		if !ok {
			return nil, fmt.Errorf("%w: %s/%s", ErrNoHandler, in.Unit, in.Verb)
		}
		args, err := m.evalOperands(in.Args)
		if err != nil {
			return nil, err
		}
		result, err := h(m, args)
		if err != nil {
			return nil, err
		}
		if p, ok := result.(*Promise); ok {
			return p.Await()
		}
		return result, nil
	default:
		return nil, fmt.Errorf("instruction %s cannot appear in argument position", in.Op)
	}
}

func (m *Machine) evalOperands(ops []Operand) ([]Value, error) {
	args := make([]Value, len(ops))
	for i, op := range ops {
		v, err := m.evalOperand(op)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

func (m *Machine) numberArg(in *Instruction, i int) (float64, error) {
	if i < len(in.Args) {
		v, err := m.evalOperand(in.Args[i])
		if err != nil {
			return 0, err
		}
		return NumberOf(v)
	}
	// No operand: fall back to the stack.
	return NumberOf(m.pop())
}

func (m *Machine) numberArgs(in *Instruction) ([]float64, error) {
	out := make([]float64, len(in.Args))
	for i := range in.Args {
		n, err := m.numberArg(in, i)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

// lookup resolves a name against current-frame memory, then host globals.
func (m *Machine) lookup(name string) (Value, error) {
	if v, ok := m.memory[name]; ok {
		return v, nil
	}
	if fn, ok := m.globals[name]; ok {
		return fn, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUndefinedVariable, name)
}

// ---------------------------------------------------------------------------
// Stack helpers
// ---------------------------------------------------------------------------

func (m *Machine) push(v Value) {
	m.stack = append(m.stack, v)
}

func (m *Machine) pop() Value {
	if len(m.stack) == 0 {
		panic(faultPanic{err: ErrStackUnderflow})
	}
	v := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return v
}
