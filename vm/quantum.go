package vm

import (
	"fmt"
	"math"
	"math/cmplx"
	"math/rand"
)

// ---------------------------------------------------------------------------
// Simulated quantum register
// ---------------------------------------------------------------------------

// QuantumState is the amplitude vector of a simulated quantum register.
// Amps always has length 2^NumQubits and the squared magnitudes sum to 1
// after any gate application (gates are unitary).
type QuantumState struct {
	NumQubits int
	Amps      []complex128
	Entangled [][2]int
}

// NewQuantumState allocates a register collapsed to basis state 0.
func NewQuantumState(numQubits int) (*QuantumState, error) {
	if numQubits < 1 || numQubits > 24 {
		return nil, fmt.Errorf("qubit count %d out of range [1,24]", numQubits)
	}
	amps := make([]complex128, 1<<numQubits)
	amps[0] = 1
	return &QuantumState{NumQubits: numQubits, Amps: amps}, nil
}

func (q *QuantumState) checkTarget(t int) error {
	if t < 0 || t >= q.NumQubits {
		return fmt.Errorf("qubit %d out of range [0,%d)", t, q.NumQubits)
	}
	return nil
}

// Hadamard applies the Hadamard transform to the target qubit: for every
// index pair differing only in the target bit, (a0, a1) becomes
// ((a0+a1)/sqrt2, (a0-a1)/sqrt2).
func (q *QuantumState) Hadamard(target int) error {
	if err := q.checkTarget(target); err != nil {
		return err
	}
	bit := 1 << target
	inv := complex(1/math.Sqrt2, 0)
	for i := range q.Amps {
		if i&bit != 0 {
			continue
		}
		a0, a1 := q.Amps[i], q.Amps[i|bit]
		q.Amps[i] = (a0 + a1) * inv
		q.Amps[i|bit] = (a0 - a1) * inv
	}
	return nil
}

// CNOT flips the target bit of every basis state whose control bit is set,
// by swapping the corresponding amplitude pairs.
func (q *QuantumState) CNOT(control, target int) error {
	if err := q.checkTarget(control); err != nil {
		return err
	}
	if err := q.checkTarget(target); err != nil {
		return err
	}
	if control == target {
		return fmt.Errorf("cnot control and target are both qubit %d", control)
	}
	cbit, tbit := 1<<control, 1<<target
	for i := range q.Amps {
		if i&cbit != 0 && i&tbit == 0 {
			q.Amps[i], q.Amps[i|tbit] = q.Amps[i|tbit], q.Amps[i]
		}
	}
	return nil
}

// Phase rotates every amplitude whose target bit is set by e^(i*theta).
func (q *QuantumState) Phase(target int, theta float64) error {
	if err := q.checkTarget(target); err != nil {
		return err
	}
	bit := 1 << target
	rot := cmplx.Exp(complex(0, theta))
	for i := range q.Amps {
		if i&bit != 0 {
			q.Amps[i] *= rot
		}
	}
	return nil
}

// ApplyGate dispatches a gate by name. Unknown names are an error.
func (q *QuantumState) ApplyGate(name string, args []float64) error {
	switch name {
	case "hadamard", "H":
		if len(args) < 1 {
			return fmt.Errorf("hadamard needs a target qubit")
		}
		return q.Hadamard(int(args[0]))
	case "cnot", "CNOT":
		if len(args) < 2 {
			return fmt.Errorf("cnot needs control and target qubits")
		}
		return q.CNOT(int(args[0]), int(args[1]))
	case "phase", "P":
		if len(args) < 2 {
			return fmt.Errorf("phase needs a target qubit and an angle")
		}
		return q.Phase(int(args[0]), args[1])
	default:
		return fmt.Errorf("%w: %q", ErrUnknownGate, name)
	}
}

// Probabilities returns the squared amplitude magnitude per basis state.
func (q *QuantumState) Probabilities() []float64 {
	probs := make([]float64, len(q.Amps))
	for i, a := range q.Amps {
		probs[i] = real(a)*real(a) + imag(a)*imag(a)
	}
	return probs
}

// Measure samples a basis state by cumulative-probability draw, collapses
// the register to the sampled one-hot vector, and returns the index.
func (q *QuantumState) Measure(rng *rand.Rand) int {
	probs := q.Probabilities()
	draw := rng.Float64()
	cum := 0.0
	outcome := len(probs) - 1
	for i, p := range probs {
		cum += p
		if draw < cum {
			outcome = i
			break
		}
	}
	for i := range q.Amps {
		q.Amps[i] = 0
	}
	q.Amps[outcome] = 1
	return outcome
}

// Entangle records a logical entanglement between two qubits. Bookkeeping
// only; the amplitude vector is untouched.
func (q *QuantumState) Entangle(a, b int) error {
	if err := q.checkTarget(a); err != nil {
		return err
	}
	if err := q.checkTarget(b); err != nil {
		return err
	}
	q.Entangled = append(q.Entangled, [2]int{a, b})
	return nil
}

// NormCheck returns the squared-magnitude sum; a correct gate sequence
// keeps it at 1 within floating-point tolerance.
func (q *QuantumState) NormCheck() float64 {
	sum := 0.0
	for _, p := range q.Probabilities() {
		sum += p
	}
	return sum
}

// Clone deep-copies the state for snapshots.
func (q *QuantumState) Clone() *QuantumState {
	if q == nil {
		return nil
	}
	out := &QuantumState{
		NumQubits: q.NumQubits,
		Amps:      make([]complex128, len(q.Amps)),
		Entangled: make([][2]int, len(q.Entangled)),
	}
	copy(out.Amps, q.Amps)
	copy(out.Entangled, q.Entangled)
	return out
}
