package vm

import (
	"errors"
	"testing"
)

func execute(t *testing.T, plan []Instruction) Value {
	t.Helper()
	m := NewMachine()
	result, err := m.Execute(plan)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	return result
}

func executeErr(t *testing.T, plan []Instruction) error {
	t.Helper()
	_, err := NewMachine().Execute(plan)
	if err == nil {
		t.Fatal("Execute: expected error, got none")
	}
	return err
}

func TestMachineArithmetic(t *testing.T) {
	// (2 + 3) * 4
	result := execute(t, []Instruction{
		{Op: OpPush, Value: NumberOperand(2)},
		{Op: OpPush, Value: NumberOperand(3)},
		{Op: OpAdd},
		{Op: OpPush, Value: NumberOperand(4)},
		{Op: OpMul},
	})
	if result != 20.0 {
		t.Errorf("result = %v, want 20", result)
	}
}

func TestMachineSubDiv(t *testing.T) {
	result := execute(t, []Instruction{
		{Op: OpPush, Value: NumberOperand(10)},
		{Op: OpPush, Value: NumberOperand(4)},
		{Op: OpSub},
		{Op: OpPush, Value: NumberOperand(2)},
		{Op: OpDiv},
	})
	if result != 3.0 {
		t.Errorf("result = %v, want 3", result)
	}
}

func TestMachineDivisionByZero(t *testing.T) {
	err := executeErr(t, []Instruction{
		{Op: OpPush, Value: NumberOperand(1)},
		{Op: OpPush, Value: NumberOperand(0)},
		{Op: OpDiv},
	})
	if !errors.Is(err, ErrDivisionByZero) {
		t.Errorf("err = %v, want ErrDivisionByZero", err)
	}
	var fault *Fault
	if !errors.As(err, &fault) || fault.PC != 2 {
		t.Errorf("fault = %+v, want pc 2", fault)
	}
}

func TestMachineStackUnderflow(t *testing.T) {
	err := executeErr(t, []Instruction{{Op: OpAdd}})
	if !errors.Is(err, ErrStackUnderflow) {
		t.Errorf("err = %v, want ErrStackUnderflow", err)
	}
}

func TestMachineStoreLoad(t *testing.T) {
	result := execute(t, []Instruction{
		{Op: OpPush, Value: NumberOperand(7)},
		{Op: OpStore, Name: "x"},
		{Op: OpLoad, Name: "x"},
	})
	if result != 7.0 {
		t.Errorf("result = %v, want 7", result)
	}
}

func TestMachineUndefinedVariable(t *testing.T) {
	err := executeErr(t, []Instruction{{Op: OpLoad, Name: "ghost"}})
	if !errors.Is(err, ErrUndefinedVariable) {
		t.Errorf("err = %v, want ErrUndefinedVariable", err)
	}
}

func TestMachineUndefinedFunction(t *testing.T) {
	err := executeErr(t, []Instruction{{Op: OpCall, Name: "ghost"}})
	if !errors.Is(err, ErrUndefinedFunction) {
		t.Errorf("err = %v, want ErrUndefinedFunction", err)
	}
}

func TestMachineJump(t *testing.T) {
	result := execute(t, []Instruction{
		{Op: OpPush, Value: NumberOperand(1)},
		{Op: OpJump, Target: 3},
		{Op: OpPush, Value: NumberOperand(99)}, // skipped
		{Op: OpNop},
	})
	if result != 1.0 {
		t.Errorf("result = %v, want 1 (jump skipped the push)", result)
	}
}

func TestMachineJumpIf(t *testing.T) {
	tests := []struct {
		cond Operand
		want Value
	}{
		{NumberOperand(1), 1.0},  // taken: skip the 99
		{NumberOperand(0), 99.0}, // not taken
	}
	for _, tc := range tests {
		result := execute(t, []Instruction{
			{Op: OpPush, Value: NumberOperand(1)},
			{Op: OpPush, Value: tc.cond},
			{Op: OpJumpIf, Target: 4},
			{Op: OpPush, Value: NumberOperand(99)},
			{Op: OpNop},
		})
		if result != tc.want {
			t.Errorf("cond %v: result = %v, want %v", tc.cond.Number, result, tc.want)
		}
	}
}

func TestMachineReturnAtDepthZero(t *testing.T) {
	result := execute(t, []Instruction{
		{Op: OpPush, Value: NumberOperand(5)},
		{Op: OpReturn},
		{Op: OpPush, Value: NumberOperand(99)}, // never reached
	})
	if result != 5.0 {
		t.Errorf("result = %v, want 5 (return halts the run)", result)
	}
}

func TestMachineFunctionCall(t *testing.T) {
	// x = 7; function add(a, b) { return a + b }; add(5, 3)
	plan := []Instruction{
		{Op: OpPush, Value: NumberOperand(7)},
		{Op: OpStore, Name: "x"},
		{Op: OpFunc, Name: "add", Names: []string{"a", "b"}},
		{Op: OpLoad, Name: "a"},
		{Op: OpLoad, Name: "b"},
		{Op: OpAdd},
		{Op: OpReturn},
		{Op: OpEndFunc},
		{Op: OpPush, Value: NumberOperand(5)},
		{Op: OpPush, Value: NumberOperand(3)},
		{Op: OpCall, Name: "add"},
	}
	m := NewMachine()
	result, err := m.Execute(plan)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result != 8.0 {
		t.Errorf("result = %v, want 8", result)
	}
	mem := m.Memory()
	if mem["x"] != 7.0 {
		t.Errorf("memory x = %v, want 7 (caller frame restored)", mem["x"])
	}
	if _, leaked := mem["a"]; leaked {
		t.Error("callee parameter a leaked into caller memory")
	}
	if len(mem) != 1 {
		t.Errorf("caller memory = %v, want exactly {x: 7}", mem)
	}
}

func TestMachineFunctionBodySkippedAtDeclaration(t *testing.T) {
	// The body must not run inline when the declaration is passed over.
	result := execute(t, []Instruction{
		{Op: OpFunc, Name: "f", Names: nil},
		{Op: OpPush, Value: NumberOperand(99)},
		{Op: OpEndFunc},
		{Op: OpPush, Value: NumberOperand(1)},
	})
	if result != 1.0 {
		t.Errorf("result = %v, want 1 (body skipped)", result)
	}
}

func TestMachineImplicitReturn(t *testing.T) {
	// Falling off the end of a function body behaves like return.
	result := execute(t, []Instruction{
		{Op: OpFunc, Name: "f", Names: nil},
		{Op: OpPush, Value: NumberOperand(42)},
		{Op: OpEndFunc},
		{Op: OpCall, Name: "f"},
	})
	if result != 42.0 {
		t.Errorf("result = %v, want 42", result)
	}
}

func TestMachineLoopSequential(t *testing.T) {
	// loop i (3) { last = i } — sequential overwrites end at 2.
	plan := []Instruction{
		{Op: OpLoop, Name: "i", Args: []Operand{NumberOperand(3)}},
		{Op: OpLoad, Name: "i"},
		{Op: OpStore, Name: "last"},
		{Op: OpEndLoop},
	}
	m := NewMachine()
	if _, err := m.Execute(plan); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := m.Memory()["last"]; got != 2.0 {
		t.Errorf("last = %v, want 2", got)
	}
	if got := m.Memory()["i"]; got != 2.0 {
		t.Errorf("i = %v, want 2", got)
	}
}

func TestMachineLoopWithCallInBody(t *testing.T) {
	// A call inside a loop body jumps outside the body range and must come
	// back before the iteration is considered done.
	plan := []Instruction{
		{Op: OpFunc, Name: "double", Names: []string{"n"}},
		{Op: OpLoad, Name: "n"},
		{Op: OpPush, Value: NumberOperand(2)},
		{Op: OpMul},
		{Op: OpReturn},
		{Op: OpEndFunc},
		{Op: OpLoop, Name: "i", Args: []Operand{NumberOperand(3)}},
		{Op: OpLoad, Name: "i"},
		{Op: OpCall, Name: "double"},
		{Op: OpStore, Name: "last"},
		{Op: OpEndLoop},
	}
	m := NewMachine()
	if _, err := m.Execute(plan); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := m.Memory()["last"]; got != 4.0 {
		t.Errorf("last = %v, want 4", got)
	}
}

func TestMachineReturnInsideLoopUnwindsFrame(t *testing.T) {
	// function f() { loop i (3) { return 42 } }; r = f(); 99
	// The return must unwind the loop and the function frame in one step;
	// the caller resumes after the call site and the remaining iterations
	// never run.
	plan := []Instruction{
		{Op: OpFunc, Name: "f"},
		{Op: OpLoop, Name: "i", Args: []Operand{NumberOperand(3)}},
		{Op: OpPush, Value: NumberOperand(42)},
		{Op: OpReturn},
		{Op: OpEndLoop},
		{Op: OpEndFunc},
		{Op: OpCall, Name: "f"},
		{Op: OpStore, Name: "r"},
		{Op: OpPush, Value: NumberOperand(99)},
	}
	m := NewMachine()
	result, err := m.Execute(plan)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result != 99.0 {
		t.Errorf("result = %v, want 99 (caller resumed after return)", result)
	}
	if got := m.Memory()["r"]; got != 42.0 {
		t.Errorf("r = %v, want 42 (return value from inside the loop)", got)
	}
}

func TestMachineReturnInsideNestedLoopsUnwindsFrame(t *testing.T) {
	// function f() { loop i (2) { loop j (2) { return 7 } } }; f() + 1
	plan := []Instruction{
		{Op: OpFunc, Name: "f"},
		{Op: OpLoop, Name: "i", Args: []Operand{NumberOperand(2)}},
		{Op: OpLoop, Name: "j", Args: []Operand{NumberOperand(2)}},
		{Op: OpPush, Value: NumberOperand(7)},
		{Op: OpReturn},
		{Op: OpEndLoop},
		{Op: OpEndLoop},
		{Op: OpEndFunc},
		{Op: OpCall, Name: "f"},
		{Op: OpPush, Value: NumberOperand(1)},
		{Op: OpAdd},
	}
	result := execute(t, plan)
	if result != 8.0 {
		t.Errorf("result = %v, want 8 (one return unwinds both loops)", result)
	}
}

func TestMachineReturnInLoopAtDepthZeroHalts(t *testing.T) {
	// Without an enclosing frame, a return inside a loop body still
	// terminates the whole run on the first iteration.
	result := execute(t, []Instruction{
		{Op: OpLoop, Name: "i", Args: []Operand{NumberOperand(3)}},
		{Op: OpPush, Value: NumberOperand(5)},
		{Op: OpReturn},
		{Op: OpEndLoop},
		{Op: OpPush, Value: NumberOperand(99)}, // never reached
	})
	if result != 5.0 {
		t.Errorf("result = %v, want 5", result)
	}
}

func TestMachineReturnInsideParallelEndsIterationOnly(t *testing.T) {
	// Iterations run on isolated clones with empty call stacks, so a return
	// inside a parallel body ends that iteration; the parent frame and the
	// rest of the function continue.
	plan := []Instruction{
		{Op: OpFunc, Name: "f"},
		{Op: OpPush, Value: NumberOperand(5)},
		{Op: OpStore, Name: "x"},
		{Op: OpParallel, Name: "i", Args: []Operand{NumberOperand(3)}},
		{Op: OpReturn},
		{Op: OpEndParallel},
		{Op: OpLoad, Name: "x"},
		{Op: OpReturn},
		{Op: OpEndFunc},
		{Op: OpCall, Name: "f"},
	}
	result := execute(t, plan)
	if result != 5.0 {
		t.Errorf("result = %v, want 5 (parent continued past the parallel block)", result)
	}
}

func TestMachineLoopOverList(t *testing.T) {
	plan := []Instruction{
		{Op: OpLoop, Name: "v", Args: []Operand{{
			Kind:  OperandList,
			Items: []Operand{NumberOperand(5), NumberOperand(9)},
		}}},
		{Op: OpLoad, Name: "v"},
		{Op: OpStore, Name: "last"},
		{Op: OpEndLoop},
	}
	m := NewMachine()
	if _, err := m.Execute(plan); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := m.Memory()["last"]; got != 9.0 {
		t.Errorf("last = %v, want 9", got)
	}
}

func TestMachineLoopNotIterable(t *testing.T) {
	err := executeErr(t, []Instruction{
		{Op: OpLoop, Name: "i", Args: []Operand{StringOperand("nope")}},
		{Op: OpEndLoop},
	})
	if !errors.Is(err, ErrNotIterable) {
		t.Errorf("err = %v, want ErrNotIterable", err)
	}
}

func TestMachineAllocFree(t *testing.T) {
	plan := []Instruction{
		{Op: OpPush, Value: NumberOperand(4)},
		{Op: OpAlloc},
		{Op: OpStore, Name: "buf"},
	}
	m := NewMachine()
	if _, err := m.Execute(plan); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	buf, ok := m.Memory()["buf"].(*Buffer)
	if !ok {
		t.Fatalf("buf = %T, want *Buffer", m.Memory()["buf"])
	}
	if buf.Size() != 4 || buf.Freed() {
		t.Errorf("buffer size=%d freed=%v, want size 4 unfreed", buf.Size(), buf.Freed())
	}

	plan2 := []Instruction{
		{Op: OpPush, Value: NumberOperand(4)},
		{Op: OpAlloc},
		{Op: OpStore, Name: "buf"},
		{Op: OpFree, Name: "buf"},
	}
	m2 := NewMachine()
	if _, err := m2.Execute(plan2); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if _, still := m2.Memory()["buf"]; still {
		t.Error("buf binding survives free")
	}
}

func TestMachineMatch(t *testing.T) {
	tests := []struct {
		name    string
		value   Operand
		pattern Operand
		want    bool
	}{
		{"equal scalars", NumberOperand(5), NumberOperand(5), true},
		{"unequal scalars", NumberOperand(5), NumberOperand(6), false},
		{
			"equal lists",
			Operand{Kind: OperandList, Items: []Operand{NumberOperand(1), NumberOperand(2)}},
			Operand{Kind: OperandList, Items: []Operand{NumberOperand(1), NumberOperand(2)}},
			true,
		},
		{
			"shape mismatch",
			Operand{Kind: OperandList, Items: []Operand{NumberOperand(1)}},
			Operand{Kind: OperandList, Items: []Operand{NumberOperand(1), NumberOperand(2)}},
			false,
		},
	}
	for _, tc := range tests {
		result := execute(t, []Instruction{
			{Op: OpPush, Value: tc.value},
			{Op: OpMatch, Value: tc.pattern},
		})
		if result != tc.want {
			t.Errorf("%s: result = %v, want %v", tc.name, result, tc.want)
		}
	}
}

func TestMachineBind(t *testing.T) {
	plan := []Instruction{
		{Op: OpPush, Value: NumberOperand(5)},
		{Op: OpBind, Names: []string{"a", "b"}},
	}
	m := NewMachine()
	if _, err := m.Execute(plan); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if m.Memory()["a"] != 5.0 || m.Memory()["b"] != 5.0 {
		t.Errorf("memory = %v, want a=5 b=5", m.Memory())
	}
}

func TestMachineQuantumOpcodes(t *testing.T) {
	plan := []Instruction{
		{Op: OpQInit, Args: []Operand{NumberOperand(2)}},
		{Op: OpQGate, Name: "hadamard", Args: []Operand{NumberOperand(0)}},
		{Op: OpQEntangle, Args: []Operand{NumberOperand(0), NumberOperand(1)}},
		{Op: OpQMeasure},
	}
	m := NewMachine()
	m.SetSeed(1)
	result, err := m.Execute(plan)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	idx, ok := result.(float64)
	if !ok || idx < 0 || idx > 3 {
		t.Errorf("measured = %v, want basis index in [0,3]", result)
	}
	if q := m.Quantum(); q == nil || len(q.Entangled) != 1 {
		t.Errorf("entangled pairs = %+v, want one", m.Quantum())
	}
}

func TestMachineGateWithoutInit(t *testing.T) {
	err := executeErr(t, []Instruction{
		{Op: OpQGate, Name: "hadamard", Args: []Operand{NumberOperand(0)}},
	})
	if !errors.Is(err, ErrNoQuantumState) {
		t.Errorf("err = %v, want ErrNoQuantumState", err)
	}
}

func TestMachineUnknownGate(t *testing.T) {
	err := executeErr(t, []Instruction{
		{Op: OpQInit, Args: []Operand{NumberOperand(1)}},
		{Op: OpQGate, Name: "toffoli", Args: []Operand{NumberOperand(0)}},
	})
	if !errors.Is(err, ErrUnknownGate) {
		t.Errorf("err = %v, want ErrUnknownGate", err)
	}
}

func TestMachineNeuralOpcodes(t *testing.T) {
	plan := []Instruction{
		{Op: OpSpike, Args: []Operand{NumberOperand(0)}},
		{Op: OpSpike, Args: []Operand{NumberOperand(1)}},
		{Op: OpLearn, Args: []Operand{NumberOperand(1)}},
	}
	m := NewMachine()
	m.Neural().Connect(0, 1, 0)
	if _, err := m.Execute(plan); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	// Execute resets neural state, so the pre-wired synapse is gone but the
	// spikes must have been logged.
	if got := len(m.Neural().Spikes); got != 2 {
		t.Errorf("spike log = %d entries, want 2", got)
	}
}

func TestMachineNativeCall(t *testing.T) {
	m := NewMachine()
	m.RegisterNative("triple", func(args []Value) (Value, error) {
		n, err := NumberOf(args[0])
		if err != nil {
			return nil, err
		}
		return n * 3, nil
	})
	result, err := m.Execute([]Instruction{
		{Op: OpPush, Value: NumberOperand(4)},
		{Op: OpCall, Name: "triple", Argc: 1},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result != 12.0 {
		t.Errorf("result = %v, want 12", result)
	}
}

func TestMachineNativePromise(t *testing.T) {
	m := NewMachine()
	m.RegisterNative("later", func(args []Value) (Value, error) {
		p := NewPromise()
		go p.Resolve(args[0])
		return p, nil
	})
	result, err := m.Execute([]Instruction{
		{Op: OpPush, Value: NumberOperand(11)},
		{Op: OpCall, Name: "later", Argc: 1},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result != 11.0 {
		t.Errorf("result = %v, want 11 (promise awaited)", result)
	}
}

func TestMachineNativeErrorIsFault(t *testing.T) {
	m := NewMachine()
	m.RegisterNative("boom", func(args []Value) (Value, error) {
		return nil, errors.New("kaput")
	})
	_, err := m.Execute([]Instruction{{Op: OpCall, Name: "boom", Argc: 0}})
	var fault *Fault
	if !errors.As(err, &fault) || fault.PC != 0 {
		t.Errorf("err = %v, want fault at pc 0", err)
	}
}

func TestMachineEmptyPlan(t *testing.T) {
	result := execute(t, nil)
	if result != nil {
		t.Errorf("result = %v, want nil for empty plan", result)
	}
}

func TestMachineUnbalancedPlanRejected(t *testing.T) {
	err := executeErr(t, []Instruction{{Op: OpLoop, Name: "i"}})
	if !errors.Is(err, ErrUnbalancedBlocks) {
		t.Errorf("err = %v, want ErrUnbalancedBlocks", err)
	}
}

func TestMachineRunIDChangesPerRun(t *testing.T) {
	m := NewMachine()
	if _, err := m.Execute(nil); err != nil {
		t.Fatal(err)
	}
	first := m.RunID()
	if _, err := m.Execute(nil); err != nil {
		t.Fatal(err)
	}
	if first == "" || first == m.RunID() {
		t.Errorf("run IDs = %q then %q, want distinct non-empty", first, m.RunID())
	}
}
