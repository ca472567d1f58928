package vm

import "fmt"

// ---------------------------------------------------------------------------
// Default surface-operation handlers
// ---------------------------------------------------------------------------

// registerDefaultHandlers wires the built-in simulated backends for every
// routed {unit, verb} pair. Hosts override any of them with RegisterHandler.
func registerDefaultHandlers(m *Machine) {
	m.RegisterHandler(UnitQFU, "QUANTUM_SUPERPOSITION", handleSuperposition)
	m.RegisterHandler(UnitQFU, "QUANTUM_ENTANGLE", handleEntangle)
	m.RegisterHandler(UnitQFU, "QUANTUM_MEASURE", handleMeasure)
	m.RegisterHandler(UnitQFU, "QUANTUM_PHASE", handlePhase)
	m.RegisterHandler(UnitNPU, "NEURAL_SPIKE", handleSpike)
	m.RegisterHandler(UnitNPU, "NEURAL_LEARN", handleLearn)
	m.RegisterHandler(UnitGEU, "GENETIC_EVOLVE", handleEvolve)
	m.RegisterHandler(UnitGEU, "GENETIC_CROSSOVER", handleCrossover)
	m.RegisterHandler(UnitSIU, "SYMBOLIC_INFER", handleInfer)
	m.RegisterHandler(UnitOCU, "OSC_SYNC", handleSync)
	m.RegisterHandler(UnitPMU, "PATTERN_MATCH", handlePatternMatch)
	m.RegisterHandler(UnitMMU, "MEM_ALLOC", handleMemAlloc)
}

func numArg(args []Value, i int, verb string) (float64, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("%s: missing argument %d", verb, i)
	}
	n, err := NumberOf(args[i])
	if err != nil {
		return 0, fmt.Errorf("%s: argument %d: %w", verb, i, err)
	}
	return n, nil
}

// handleSuperposition initializes an n-qubit register and puts every qubit
// through a Hadamard, yielding the uniform superposition.
func handleSuperposition(m *Machine, args []Value) (Value, error) {
	n, err := numArg(args, 0, "QUANTUM_SUPERPOSITION")
	if err != nil {
		return nil, err
	}
	q, err := NewQuantumState(int(n))
	if err != nil {
		return nil, err
	}
	for i := 0; i < q.NumQubits; i++ {
		if err := q.Hadamard(i); err != nil {
			return nil, err
		}
	}
	m.quantum = q
	return q, nil
}

// handleEntangle applies a CNOT between the two qubits and records the pair.
func handleEntangle(m *Machine, args []Value) (Value, error) {
	if m.quantum == nil {
		return nil, ErrNoQuantumState
	}
	a, err := numArg(args, 0, "QUANTUM_ENTANGLE")
	if err != nil {
		return nil, err
	}
	b, err := numArg(args, 1, "QUANTUM_ENTANGLE")
	if err != nil {
		return nil, err
	}
	if err := m.quantum.CNOT(int(a), int(b)); err != nil {
		return nil, err
	}
	if err := m.quantum.Entangle(int(a), int(b)); err != nil {
		return nil, err
	}
	return m.quantum, nil
}

func handleMeasure(m *Machine, args []Value) (Value, error) {
	if m.quantum == nil {
		return nil, ErrNoQuantumState
	}
	return float64(m.quantum.Measure(m.rng)), nil
}

func handlePhase(m *Machine, args []Value) (Value, error) {
	if m.quantum == nil {
		return nil, ErrNoQuantumState
	}
	target, err := numArg(args, 0, "QUANTUM_PHASE")
	if err != nil {
		return nil, err
	}
	theta, err := numArg(args, 1, "QUANTUM_PHASE")
	if err != nil {
		return nil, err
	}
	if err := m.quantum.Phase(int(target), theta); err != nil {
		return nil, err
	}
	return m.quantum, nil
}

func handleSpike(m *Machine, args []Value) (Value, error) {
	id, err := numArg(args, 0, "NEURAL_SPIKE")
	if err != nil {
		return nil, err
	}
	m.tick++
	m.Neural().Spike(int(id), m.tick)
	return float64(m.tick), nil
}

func handleLearn(m *Machine, args []Value) (Value, error) {
	reward, err := numArg(args, 0, "NEURAL_LEARN")
	if err != nil {
		return nil, err
	}
	return float64(m.Neural().Learn(reward)), nil
}

// handleEvolve returns a fitness score that grows with population size and
// generation count, saturating toward 1.
func handleEvolve(m *Machine, args []Value) (Value, error) {
	pop, err := numArg(args, 0, "GENETIC_EVOLVE")
	if err != nil {
		return nil, err
	}
	gens, err := numArg(args, 1, "GENETIC_EVOLVE")
	if err != nil {
		return nil, err
	}
	if pop < 0 || gens < 0 {
		return nil, fmt.Errorf("GENETIC_EVOLVE: negative population or generations")
	}
	return 1 - 1/(1+pop*gens), nil
}

// handleCrossover blends two numeric genomes by midpoint.
func handleCrossover(m *Machine, args []Value) (Value, error) {
	a, err := numArg(args, 0, "GENETIC_CROSSOVER")
	if err != nil {
		return nil, err
	}
	b, err := numArg(args, 1, "GENETIC_CROSSOVER")
	if err != nil {
		return nil, err
	}
	return (a + b) / 2, nil
}

// handleInfer is a deterministic placeholder knowledge base: it answers
// known queries and returns nil for everything else.
func handleInfer(m *Machine, args []Value) (Value, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("SYMBOLIC_INFER: missing query")
	}
	query, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("SYMBOLIC_INFER: query must be a string, got %T", args[0])
	}
	facts := map[string]Value{
		"true":      true,
		"false":     false,
		"identity":  query,
		"tautology": true,
	}
	if v, ok := facts[query]; ok {
		return v, nil
	}
	return nil, nil
}

// handleSync reports a coherence value rising toward 1 with oscillator count.
func handleSync(m *Machine, args []Value) (Value, error) {
	n, err := numArg(args, 0, "OSC_SYNC")
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("OSC_SYNC: negative oscillator count")
	}
	return 1 - 1/(n+1), nil
}

func handlePatternMatch(m *Machine, args []Value) (Value, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("PATTERN_MATCH: needs a subject and a pattern")
	}
	return Equal(args[0], args[1]), nil
}

func handleMemAlloc(m *Machine, args []Value) (Value, error) {
	size, err := numArg(args, 0, "MEM_ALLOC")
	if err != nil {
		return nil, err
	}
	if size < 0 {
		return nil, fmt.Errorf("MEM_ALLOC: negative size %g", size)
	}
	return newBuffer(int(size)), nil
}
