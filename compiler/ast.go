package compiler

import "github.com/runicvm/runic/vm"

// ---------------------------------------------------------------------------
// AST
// ---------------------------------------------------------------------------

// Node is an AST node. The set is closed; the code generator switches
// exhaustively over it.
type Node interface {
	node()
}

// Program is the root: an ordered list of top-level statements.
type Program struct {
	Body []Node
}

// NumberLit is a numeric literal.
type NumberLit struct {
	Value float64
	Pos   Position
}

// Identifier is a bare name reference.
type Identifier struct {
	Name string
	Pos  Position
}

// HardwareOp is a surface operation with its resolved descriptor and
// recursively parsed arguments.
type HardwareOp struct {
	Verb        string
	Unit        vm.Unit
	Description string
	Args        []Node
	Pos         Position
}

// Assign binds the value of an expression to a name. Produced both by
// `let name = expr` and by bare `name = expr`.
type Assign struct {
	Name  string
	Value Node
	Pos   Position
}

// Call invokes a user-defined or native function by name.
type Call struct {
	Name string
	Args []Node
	Pos  Position
}

// Binary is an infix arithmetic expression. Operators chain left to right
// without precedence.
type Binary struct {
	Op    string
	Left  Node
	Right Node
	Pos   Position
}

// Return exits the enclosing function, optionally with a value.
type Return struct {
	Value Node // nil for a bare return
	Pos   Position
}

// LoopStmt iterates a body over an iterable, binding Var per element.
// Parallel loops fan iterations out concurrently over isolated memory.
type LoopStmt struct {
	Var      string
	Iterable Node
	Body     []Node
	Parallel bool
	Pos      Position
}

// FuncDecl declares a named function.
type FuncDecl struct {
	Name   string
	Params []string
	Body   []Node
	Pos    Position
}

// Unknown wraps a token the parser has no rule for. It guarantees forward
// progress and lowers to a no-op.
type Unknown struct {
	Tok Token
}

func (*Program) node()    {}
func (*NumberLit) node()  {}
func (*Identifier) node() {}
func (*HardwareOp) node() {}
func (*Assign) node()     {}
func (*Call) node()       {}
func (*Binary) node()     {}
func (*Return) node()     {}
func (*LoopStmt) node()   {}
func (*FuncDecl) node()   {}
func (*Unknown) node()    {}
