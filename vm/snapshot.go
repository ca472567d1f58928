package vm

// Snapshot is a read-only copy of a machine's observable state, taken
// between instructions. Mutating a snapshot never affects the machine.
type Snapshot struct {
	RunID     string
	PC        int
	CallDepth int
	Tick      uint64
	Stack     []Value
	Memory    map[string]Value
	Quantum   *QuantumState
	Neural    *NeuralState
}

// Snapshot copies the machine's current state. The stack and memory map are
// copied shallowly (reference values like *List remain shared); quantum and
// neural state are deep-copied.
func (m *Machine) Snapshot() Snapshot {
	stack := make([]Value, len(m.stack))
	copy(stack, m.stack)
	return Snapshot{
		RunID:     m.runID,
		PC:        m.pc,
		CallDepth: len(m.calls),
		Tick:      m.tick,
		Stack:     stack,
		Memory:    cloneMemory(m.memory),
		Quantum:   m.quantum.Clone(),
		Neural:    m.neural.Clone(),
	}
}
