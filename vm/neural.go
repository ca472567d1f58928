package vm

import "math"

// ---------------------------------------------------------------------------
// Simulated spiking-network state
// ---------------------------------------------------------------------------

// learnTau is the decay constant (in logical ticks) for the spike-timing
// weight update.
const learnTau = 20.0

// Synapse is a weighted connection between two neurons.
type Synapse struct {
	Pre    int
	Post   int
	Weight float64
}

// SpikeEvent records a neuron firing at a logical tick. Ticks come from the
// machine's monotonic counter, not wall time, so runs are reproducible.
type SpikeEvent struct {
	Neuron int
	Tick   uint64
}

// NeuralState holds the simulated network: synapses and the spike log.
type NeuralState struct {
	Synapses []Synapse
	Spikes   []SpikeEvent
}

// NewNeuralState returns an empty network.
func NewNeuralState() *NeuralState {
	return &NeuralState{}
}

// Connect adds a synapse with an initial weight.
func (n *NeuralState) Connect(pre, post int, weight float64) {
	n.Synapses = append(n.Synapses, Synapse{Pre: pre, Post: post, Weight: weight})
}

// Spike logs a firing event for a neuron.
func (n *NeuralState) Spike(neuron int, tick uint64) {
	n.Spikes = append(n.Spikes, SpikeEvent{Neuron: neuron, Tick: tick})
}

// lastSpike returns the most recent tick at which a neuron fired.
func (n *NeuralState) lastSpike(neuron int) (uint64, bool) {
	for i := len(n.Spikes) - 1; i >= 0; i-- {
		if n.Spikes[i].Neuron == neuron {
			return n.Spikes[i].Tick, true
		}
	}
	return 0, false
}

// Learn applies a reward-scaled update to every synapse whose endpoints have
// both spiked: the update decays exponentially with the inter-spike tick
// difference. Synapses without a spike pair are left unchanged.
func (n *NeuralState) Learn(reward float64) int {
	updated := 0
	for i := range n.Synapses {
		pre, okPre := n.lastSpike(n.Synapses[i].Pre)
		post, okPost := n.lastSpike(n.Synapses[i].Post)
		if !okPre || !okPost {
			continue
		}
		var dt float64
		if post >= pre {
			dt = float64(post - pre)
		} else {
			dt = float64(pre - post)
		}
		n.Synapses[i].Weight += reward * math.Exp(-dt/learnTau)
		updated++
	}
	return updated
}

// Clone deep-copies the state for snapshots.
func (n *NeuralState) Clone() *NeuralState {
	if n == nil {
		return nil
	}
	out := &NeuralState{
		Synapses: make([]Synapse, len(n.Synapses)),
		Spikes:   make([]SpikeEvent, len(n.Spikes)),
	}
	copy(out.Synapses, n.Synapses)
	copy(out.Spikes, n.Spikes)
	return out
}
