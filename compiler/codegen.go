package compiler

import (
	"fmt"

	"github.com/runicvm/runic/vm"
)

// ---------------------------------------------------------------------------
// Code generator
// ---------------------------------------------------------------------------

// Artifact is the compiled output. Execution backends may depend on
// ExecutionPlan, Operations, and HardwareMap only; Tokens and AST are
// internal shapes kept for tooling.
type Artifact struct {
	// ExecutionPlan is the ordered instruction sequence the machine runs.
	ExecutionPlan []vm.Instruction
	// Operations lists every lowered surface operation in source order.
	Operations []*vm.Instruction
	// HardwareMap groups surface operations by execution unit. Introspection
	// only; not needed for correct execution.
	HardwareMap map[vm.Unit][]*vm.Instruction

	Tokens []Token
	AST    *Program
	Mode   Mode
}

type generator struct {
	plan       []vm.Instruction
	operations []*vm.Instruction
	hardware   map[vm.Unit][]*vm.Instruction
}

// Generate lowers a Program into an Artifact via a post-order traversal and
// resolves block targets so the plan is ready to execute.
func Generate(prog *Program) (*Artifact, error) {
	g := &generator{hardware: make(map[vm.Unit][]*vm.Instruction)}
	for _, node := range prog.Body {
		if err := g.lower(node); err != nil {
			return nil, err
		}
	}
	if err := vm.ResolveBlocks(g.plan); err != nil {
		return nil, err
	}
	return &Artifact{
		ExecutionPlan: g.plan,
		Operations:    g.operations,
		HardwareMap:   g.hardware,
		AST:           prog,
	}, nil
}

func (g *generator) emit(in vm.Instruction) {
	g.plan = append(g.plan, in)
}

// lower emits the instructions for one node. Expression nodes leave their
// value on the evaluation stack; declarations and loops leave nothing.
func (g *generator) lower(node Node) error {
	switch n := node.(type) {
	case *NumberLit:
		g.emit(vm.Instruction{Op: vm.OpPush, Value: vm.NumberOperand(n.Value)})

	case *Identifier:
		g.emit(vm.Instruction{Op: vm.OpLoad, Name: n.Name})

	case *HardwareOp:
		in, err := g.lowerHardware(n)
		if err != nil {
			return err
		}
		g.emit(*in)

	case *Assign:
		if err := g.lower(n.Value); err != nil {
			return err
		}
		g.emit(vm.Instruction{Op: vm.OpStore, Name: n.Name})

	case *Call:
		for _, arg := range n.Args {
			if err := g.lower(arg); err != nil {
				return err
			}
		}
		g.emit(vm.Instruction{Op: vm.OpCall, Name: n.Name, Argc: len(n.Args)})

	case *Binary:
		if err := g.lower(n.Left); err != nil {
			return err
		}
		if err := g.lower(n.Right); err != nil {
			return err
		}
		op, ok := binaryOps[n.Op]
		if !ok {
			return fmt.Errorf("unsupported operator %q at %s", n.Op, n.Pos)
		}
		g.emit(vm.Instruction{Op: op})

	case *Return:
		if n.Value != nil {
			if err := g.lower(n.Value); err != nil {
				return err
			}
		}
		g.emit(vm.Instruction{Op: vm.OpReturn})

	case *LoopStmt:
		iter, err := g.operand(n.Iterable)
		if err != nil {
			return err
		}
		open, close := vm.OpLoop, vm.OpEndLoop
		if n.Parallel {
			open, close = vm.OpParallel, vm.OpEndParallel
		}
		g.emit(vm.Instruction{Op: open, Name: n.Var, Args: []vm.Operand{iter}})
		for _, stmt := range n.Body {
			if err := g.lower(stmt); err != nil {
				return err
			}
		}
		g.emit(vm.Instruction{Op: close})

	case *FuncDecl:
		g.emit(vm.Instruction{Op: vm.OpFunc, Name: n.Name, Names: n.Params})
		for _, stmt := range n.Body {
			if err := g.lower(stmt); err != nil {
				return err
			}
		}
		g.emit(vm.Instruction{Op: vm.OpEndFunc})

	case *Unknown:
		g.emit(vm.Instruction{Op: vm.OpNop})

	default:
		return fmt.Errorf("cannot lower node %T", node)
	}
	return nil
}

// lowerHardware builds the invoke instruction for a surface operation and
// records it in the flat operation list and its unit's bucket.
func (g *generator) lowerHardware(op *HardwareOp) (*vm.Instruction, error) {
	args := make([]vm.Operand, len(op.Args))
	for i, arg := range op.Args {
		operand, err := g.operand(arg)
		if err != nil {
			return nil, err
		}
		args[i] = operand
	}
	in := &vm.Instruction{
		Op:   vm.OpInvoke,
		Unit: op.Unit,
		Verb: op.Verb,
		Args: args,
	}
	g.operations = append(g.operations, in)
	g.hardware[op.Unit] = append(g.hardware[op.Unit], in)
	return in, nil
}

// operand lowers an argument-position node to a value operand. Only nodes
// the machine can evaluate in argument position are allowed here.
func (g *generator) operand(node Node) (vm.Operand, error) {
	switch n := node.(type) {
	case *NumberLit:
		return vm.NumberOperand(n.Value), nil
	case *Identifier:
		return vm.VarOperand(n.Name), nil
	case *HardwareOp:
		in, err := g.lowerHardware(n)
		if err != nil {
			return vm.Operand{}, err
		}
		return vm.InstrOperand(in), nil
	default:
		return vm.Operand{}, fmt.Errorf("cannot use %T in argument position", node)
	}
}

var binaryOps = map[string]vm.OpKind{
	"+": vm.OpAdd,
	"-": vm.OpSub,
	"*": vm.OpMul,
	"/": vm.OpDiv,
}
