package vm

import "fmt"

// ---------------------------------------------------------------------------
// Instruction model: the compiled-output contract
// ---------------------------------------------------------------------------

// Unit identifies the execution unit an instruction dispatches to.
type Unit uint8

const (
	UnitMMU Unit = iota // memory
	UnitPMU             // pattern matching
	UnitQFU             // quantum field simulation
	UnitNPU             // neural simulation
	UnitGEU             // genetic operators
	UnitSIU             // symbolic inference
	UnitOCU             // oscillator coordination
	UnitCTL             // control flow
	UnitALU             // arithmetic
)

var unitNames = map[Unit]string{
	UnitMMU: "MMU",
	UnitPMU: "PMU",
	UnitQFU: "QFU",
	UnitNPU: "NPU",
	UnitGEU: "GEU",
	UnitSIU: "SIU",
	UnitOCU: "OCU",
	UnitCTL: "CTL",
	UnitALU: "ALU",
}

func (u Unit) String() string {
	if name, ok := unitNames[u]; ok {
		return name
	}
	return fmt.Sprintf("Unit(%d)", u)
}

// AllUnits returns every defined unit, for introspection and tests.
func AllUnits() []Unit {
	return []Unit{UnitMMU, UnitPMU, UnitQFU, UnitNPU, UnitGEU, UnitSIU, UnitOCU, UnitCTL, UnitALU}
}

// OpKind is the closed set of opcodes the machine executes.
// The interpreter switches exhaustively over this enum; adding a kind
// without a dispatch arm is a compile-visible omission, not a runtime guess.
type OpKind uint8

const (
	OpNop OpKind = iota

	// Memory (MMU)
	OpLoad  // push memory[Name] (falls back to globals); undefined is fatal
	OpStore // pop -> memory[Name]
	OpAlloc // pop size -> push fresh buffer
	OpFree  // drop the binding for Name

	// Pattern (PMU)
	OpMatch // pop value, structurally compare against Value operand, push bool
	OpBind  // pop value, bind under every name in Names

	// Quantum (QFU)
	OpQInit     // Args[0] = qubit count; push fresh quantum state
	OpQGate     // Name = gate, Args = gate operands
	OpQMeasure  // sample, collapse, push basis index
	OpQEntangle // record Args[0], Args[1] as an entangled pair

	// Neural (NPU)
	OpSpike // Args[0] = neuron id; log a spike at the current tick
	OpLearn // Args[0] = reward; apply decay-weighted updates to synapses

	// Control flow (CTL)
	OpJump        // pc = Target - 1
	OpJumpIf      // pop cond; if truthy, pc = Target - 1
	OpCall        // call function Name (user-defined or native)
	OpReturn      // return from current frame; at depth 0, halt
	OpLoop        // sequential iteration; body is (pc, Target)
	OpEndLoop     // loop body delimiter
	OpParallel    // concurrent iteration over isolated memory copies
	OpEndParallel // parallel body delimiter
	OpFunc        // register Name/Names with entry pc+1, skip to Target
	OpEndFunc     // function body delimiter; implicit return

	// Arithmetic (ALU)
	OpPush // push Value operand
	OpAdd
	OpSub
	OpMul
	OpDiv // division by zero is fatal

	// Routed surface operation: dispatched by {Unit, Verb} through the
	// handler registry (QUANTUM_SUPERPOSITION, NEURAL_SPIKE, ...).
	OpInvoke
)

var opNames = map[OpKind]string{
	OpNop:         "NOP",
	OpLoad:        "LOAD",
	OpStore:       "STORE",
	OpAlloc:       "ALLOC",
	OpFree:        "FREE",
	OpMatch:       "MATCH",
	OpBind:        "BIND",
	OpQInit:       "QINIT",
	OpQGate:       "QGATE",
	OpQMeasure:    "QMEASURE",
	OpQEntangle:   "QENTANGLE",
	OpSpike:       "SPIKE",
	OpLearn:       "LEARN",
	OpJump:        "JUMP",
	OpJumpIf:      "JUMP_IF",
	OpCall:        "CALL",
	OpReturn:      "RETURN",
	OpLoop:        "LOOP",
	OpEndLoop:     "END_LOOP",
	OpParallel:    "PARALLEL",
	OpEndParallel: "END_PARALLEL",
	OpFunc:        "FUNC",
	OpEndFunc:     "END_FUNC",
	OpPush:        "PUSH",
	OpAdd:         "ADD",
	OpSub:         "SUB",
	OpMul:         "MUL",
	OpDiv:         "DIV",
	OpInvoke:      "INVOKE",
}

func (op OpKind) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return fmt.Sprintf("OpKind(%d)", op)
}

// UnitOf returns the execution unit an opcode belongs to.
// OpInvoke carries its unit on the instruction itself.
func (op OpKind) UnitOf() Unit {
	switch op {
	case OpLoad, OpStore, OpAlloc, OpFree:
		return UnitMMU
	case OpMatch, OpBind:
		return UnitPMU
	case OpQInit, OpQGate, OpQMeasure, OpQEntangle:
		return UnitQFU
	case OpSpike, OpLearn:
		return UnitNPU
	case OpPush, OpAdd, OpSub, OpMul, OpDiv:
		return UnitALU
	default:
		return UnitCTL
	}
}

// OperandKind tags the members of the Operand union.
type OperandKind uint8

const (
	OperandNone OperandKind = iota
	OperandNumber
	OperandString
	OperandVar   // reference resolved against memory/globals at use time
	OperandInstr // nested instruction, evaluated for its result
	OperandList  // ordered operands, evaluated element-wise
)

var operandKindNames = map[OperandKind]string{
	OperandNone:   "none",
	OperandNumber: "number",
	OperandString: "string",
	OperandVar:    "var",
	OperandInstr:  "instr",
	OperandList:   "list",
}

func (k OperandKind) String() string {
	if name, ok := operandKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("OperandKind(%d)", k)
}

// Operand is an already-lowered argument value. Exactly one field besides
// Kind is meaningful, selected by Kind.
type Operand struct {
	Kind   OperandKind  `cbor:"1,keyasint"`
	Number float64      `cbor:"2,keyasint,omitempty"`
	Str    string       `cbor:"3,keyasint,omitempty"`
	Name   string       `cbor:"4,keyasint,omitempty"`
	Instr  *Instruction `cbor:"5,keyasint,omitempty"`
	Items  []Operand    `cbor:"6,keyasint,omitempty"`
}

// NumberOperand builds a literal numeric operand.
func NumberOperand(n float64) Operand {
	return Operand{Kind: OperandNumber, Number: n}
}

// StringOperand builds a literal string operand.
func StringOperand(s string) Operand {
	return Operand{Kind: OperandString, Str: s}
}

// VarOperand builds a variable-reference operand.
func VarOperand(name string) Operand {
	return Operand{Kind: OperandVar, Name: name}
}

// InstrOperand wraps a nested instruction as an operand.
func InstrOperand(in *Instruction) Operand {
	return Operand{Kind: OperandInstr, Instr: in}
}

// Instruction is a single executable operation. The compiled output of the
// front end is an ordered []Instruction (the execution plan); hand-built
// plans use the same shape.
type Instruction struct {
	Op     OpKind    `cbor:"1,keyasint"`
	Unit   Unit      `cbor:"2,keyasint,omitempty"`
	Verb   string    `cbor:"3,keyasint,omitempty"`  // surface operation name for OpInvoke
	Name   string    `cbor:"4,keyasint,omitempty"`  // variable/function/gate/loop-var name
	Names  []string  `cbor:"5,keyasint,omitempty"`  // parameter or binding names
	Value  Operand   `cbor:"6,keyasint,omitempty"`  // literal operand (OpPush, OpMatch)
	Args   []Operand `cbor:"7,keyasint,omitempty"`  // lowered argument values
	Argc   int       `cbor:"8,keyasint,omitempty"`  // native-call arity for OpCall
	Target int       `cbor:"9,keyasint,omitempty"`  // jump/block-end index (see ResolveBlocks)
}

func (in *Instruction) String() string {
	switch {
	case in.Op == OpInvoke:
		return fmt.Sprintf("%s %s/%s argc=%d", in.Op, in.Unit, in.Verb, len(in.Args))
	case in.Name != "":
		return fmt.Sprintf("%s %s", in.Op, in.Name)
	default:
		return in.Op.String()
	}
}

// FuncInfo describes a registered function: parameter names and the index
// of its first body instruction.
type FuncInfo struct {
	Params []string
	Entry  int
}
