package compiler

import (
	"testing"
)

func parse(t *testing.T, source string) *Program {
	t.Helper()
	normalized, _ := Normalize(source)
	prog, err := NewParser(NewLexer(normalized).Tokenize()).Parse()
	if err != nil {
		t.Fatalf("Parse(%q): %v", source, err)
	}
	return prog
}

func TestParseHardwareOpWithArgs(t *testing.T) {
	prog := parse(t, "Ψ(2)")
	if len(prog.Body) != 1 {
		t.Fatalf("body length = %d, want 1", len(prog.Body))
	}
	op, ok := prog.Body[0].(*HardwareOp)
	if !ok {
		t.Fatalf("body[0] = %T, want *HardwareOp", prog.Body[0])
	}
	if op.Verb != "QUANTUM_SUPERPOSITION" {
		t.Errorf("verb = %q, want QUANTUM_SUPERPOSITION", op.Verb)
	}
	if len(op.Args) != 1 {
		t.Fatalf("args = %d, want 1", len(op.Args))
	}
	lit, ok := op.Args[0].(*NumberLit)
	if !ok || lit.Value != 2 {
		t.Errorf("arg = %#v, want NumberLit 2", op.Args[0])
	}
}

func TestParseNestedHardwareOps(t *testing.T) {
	prog := parse(t, "φ(0, μ())")
	op := prog.Body[0].(*HardwareOp)
	if len(op.Args) != 2 {
		t.Fatalf("args = %d, want 2", len(op.Args))
	}
	inner, ok := op.Args[1].(*HardwareOp)
	if !ok || inner.Verb != "QUANTUM_MEASURE" {
		t.Errorf("nested arg = %#v, want QUANTUM_MEASURE op", op.Args[1])
	}
}

func TestParseFunctionDeclaration(t *testing.T) {
	prog := parse(t, "function add(a, b) { return a + b }")
	fn, ok := prog.Body[0].(*FuncDecl)
	if !ok {
		t.Fatalf("body[0] = %T, want *FuncDecl", prog.Body[0])
	}
	if fn.Name != "add" {
		t.Errorf("name = %q, want add", fn.Name)
	}
	if len(fn.Params) != 2 || fn.Params[0] != "a" || fn.Params[1] != "b" {
		t.Errorf("params = %v, want [a b]", fn.Params)
	}
	if len(fn.Body) != 1 {
		t.Fatalf("body = %d statements, want 1", len(fn.Body))
	}
	ret, ok := fn.Body[0].(*Return)
	if !ok {
		t.Fatalf("body[0] = %T, want *Return", fn.Body[0])
	}
	bin, ok := ret.Value.(*Binary)
	if !ok || bin.Op != "+" {
		t.Errorf("return value = %#v, want a + b", ret.Value)
	}
}

func TestParseAssignment(t *testing.T) {
	tests := []string{"q = Ψ(2)", "let q = Ψ(2)"}
	for _, src := range tests {
		prog := parse(t, src)
		assign, ok := prog.Body[0].(*Assign)
		if !ok {
			t.Errorf("Parse(%q): body[0] = %T, want *Assign", src, prog.Body[0])
			continue
		}
		if assign.Name != "q" {
			t.Errorf("Parse(%q): name = %q, want q", src, assign.Name)
		}
		if _, ok := assign.Value.(*HardwareOp); !ok {
			t.Errorf("Parse(%q): value = %T, want *HardwareOp", src, assign.Value)
		}
	}
}

func TestParseLoop(t *testing.T) {
	prog := parse(t, "loop i (3) { let last = i }")
	loop, ok := prog.Body[0].(*LoopStmt)
	if !ok {
		t.Fatalf("body[0] = %T, want *LoopStmt", prog.Body[0])
	}
	if loop.Var != "i" || loop.Parallel {
		t.Errorf("loop = %+v, want sequential over i", loop)
	}
	if lit, ok := loop.Iterable.(*NumberLit); !ok || lit.Value != 3 {
		t.Errorf("iterable = %#v, want NumberLit 3", loop.Iterable)
	}
	if len(loop.Body) != 1 {
		t.Errorf("body = %d statements, want 1", len(loop.Body))
	}
}

func TestParseParallel(t *testing.T) {
	prog := parse(t, "parallel i (4) { append(out, i) }")
	loop, ok := prog.Body[0].(*LoopStmt)
	if !ok || !loop.Parallel {
		t.Fatalf("body[0] = %#v, want parallel LoopStmt", prog.Body[0])
	}
	call, ok := loop.Body[0].(*Call)
	if !ok || call.Name != "append" || len(call.Args) != 2 {
		t.Errorf("body[0] = %#v, want append call with 2 args", loop.Body[0])
	}
}

func TestParseUnknownTokensMakeProgress(t *testing.T) {
	prog := parse(t, "* ⟪qubit⟫ )")
	if len(prog.Body) != 3 {
		t.Fatalf("body length = %d, want 3 unknown nodes", len(prog.Body))
	}
	for i, node := range prog.Body {
		if _, ok := node.(*Unknown); !ok {
			t.Errorf("body[%d] = %T, want *Unknown", i, node)
		}
	}
}

func TestParseErrors(t *testing.T) {
	tests := []string{
		"function (a) { }",
		"function f(a, b { }",
		"function f(a) { return a",
		"loop (3) { }",
		"let = 5",
		"Ψ(2",
	}
	for _, src := range tests {
		normalized, _ := Normalize(src)
		_, err := NewParser(NewLexer(normalized).Tokenize()).Parse()
		if err == nil {
			t.Errorf("Parse(%q): expected error, got none", src)
		}
	}
}
