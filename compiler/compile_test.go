package compiler

import (
	"reflect"
	"testing"

	"github.com/runicvm/runic/vm"
)

func TestCompileSuperposition(t *testing.T) {
	art, err := Compile("q = Q.super(2)")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if art.Mode != ModeASCII {
		t.Errorf("mode = %v, want ascii", art.Mode)
	}
	if len(art.Operations) != 1 {
		t.Fatalf("operations = %d, want exactly 1", len(art.Operations))
	}
	op := art.Operations[0]
	if op.Verb != "QUANTUM_SUPERPOSITION" {
		t.Errorf("verb = %q, want QUANTUM_SUPERPOSITION", op.Verb)
	}
	if op.Unit != vm.UnitQFU {
		t.Errorf("unit = %v, want QFU", op.Unit)
	}
	if len(op.Args) != 1 || op.Args[0].Kind != vm.OperandNumber || op.Args[0].Number != 2 {
		t.Errorf("args = %+v, want one literal 2", op.Args)
	}
	if got := art.HardwareMap[vm.UnitQFU]; len(got) != 1 || got[0] != op {
		t.Errorf("hardware map QFU = %v, want the same instruction", got)
	}
}

func TestCompileSyntaxEquivalence(t *testing.T) {
	tests := []struct {
		ascii string
		runic string
	}{
		{"q = Q.super(2)", "q = Ψ(2)"},
		{"Q.entangle(0, 1)", "⊗(0, 1)"},
		{"N.spike(7)\nN.learn(1)", "↯(7)\nΔ(1)"},
		{"G.evolve(10, 5)", "γ(10, 5)"},
		{
			"function f(x) { return M.alloc(x) }\nf(4)",
			"function f(x) { return α(x) }\nf(4)",
		},
	}
	for _, tc := range tests {
		a, err := Compile(tc.ascii)
		if err != nil {
			t.Fatalf("Compile(%q): %v", tc.ascii, err)
		}
		r, err := Compile(tc.runic)
		if err != nil {
			t.Fatalf("Compile(%q): %v", tc.runic, err)
		}
		if a.Mode != ModeASCII || r.Mode != ModeRunic {
			t.Errorf("modes = %v/%v, want ascii/runic", a.Mode, r.Mode)
		}
		if !reflect.DeepEqual(a.ExecutionPlan, r.ExecutionPlan) {
			t.Errorf("plans differ for %q:\nascii: %v\nrunic: %v",
				tc.ascii, vm.Disassemble(a.ExecutionPlan), vm.Disassemble(r.ExecutionPlan))
		}
		if len(a.Operations) != len(r.Operations) {
			t.Errorf("operation counts differ for %q: %d vs %d",
				tc.ascii, len(a.Operations), len(r.Operations))
		}
	}
}

func TestCompileFunctionPlanShape(t *testing.T) {
	art, err := Compile("function add(a, b) { return a + b }\nadd(5, 3)")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	plan := art.ExecutionPlan
	if plan[0].Op != vm.OpFunc || plan[0].Name != "add" {
		t.Fatalf("plan[0] = %v, want FUNC add", &plan[0])
	}
	if got := plan[0].Names; len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("params = %v, want [a b]", got)
	}
	end := plan[0].Target
	if end <= 0 || plan[end].Op != vm.OpEndFunc {
		t.Errorf("func target = %d (%v), want END_FUNC index", end, plan[end].Op)
	}
	// Body: load a, load b, add, return.
	wantBody := []vm.OpKind{vm.OpLoad, vm.OpLoad, vm.OpAdd, vm.OpReturn}
	for i, op := range wantBody {
		if plan[1+i].Op != op {
			t.Errorf("plan[%d] = %v, want %v", 1+i, plan[1+i].Op, op)
		}
	}
	last := plan[len(plan)-1]
	if last.Op != vm.OpCall || last.Name != "add" || last.Argc != 2 {
		t.Errorf("tail = %v argc=%d, want CALL add argc=2", &last, last.Argc)
	}
}

func TestCompileLoopPlanShape(t *testing.T) {
	art, err := Compile("loop i (3) { last = i }")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	plan := art.ExecutionPlan
	if plan[0].Op != vm.OpLoop || plan[0].Name != "i" {
		t.Fatalf("plan[0] = %v, want LOOP i", &plan[0])
	}
	if len(plan[0].Args) != 1 || plan[0].Args[0].Number != 3 {
		t.Errorf("iterable = %+v, want literal 3", plan[0].Args)
	}
	if plan[plan[0].Target].Op != vm.OpEndLoop {
		t.Errorf("target = %d, want END_LOOP index", plan[0].Target)
	}
}

func TestCompileErrorsAreValues(t *testing.T) {
	tests := []string{
		"function (a) { }",
		"function f(a) { return a",
		"Q.super(2",
	}
	for _, src := range tests {
		art, err := Compile(src)
		if err == nil {
			t.Errorf("Compile(%q): expected error, got artifact %+v", src, art)
		}
		if art != nil {
			t.Errorf("Compile(%q): artifact = %+v, want nil on error", src, art)
		}
	}
}

func TestCompileKeepsTokensAndAST(t *testing.T) {
	art, err := Compile("Ψ(2)")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(art.Tokens) == 0 {
		t.Error("tokens not retained")
	}
	if art.AST == nil || len(art.AST.Body) != 1 {
		t.Errorf("ast = %+v, want one-statement program", art.AST)
	}
}
