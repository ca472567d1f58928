package compiler

import (
	"sort"
	"strings"

	"github.com/runicvm/runic/vm"
)

// ---------------------------------------------------------------------------
// Dual-syntax operation table
// ---------------------------------------------------------------------------

// Mode tags which surface syntax a source text was written in.
type Mode int

const (
	ModeRunic Mode = iota
	ModeASCII
)

func (m Mode) String() string {
	if m == ModeASCII {
		return "ascii"
	}
	return "runic"
}

// OpSymbol is a surface operation: a glyph, its ASCII spelling, and the
// resolved descriptor the tokenizer attaches to the RUNE token.
type OpSymbol struct {
	Glyph       rune
	ASCII       string
	Verb        string
	Unit        vm.Unit
	Description string
}

// symbols maps every operation glyph 1:1 onto an ASCII spelling. The two
// spellings are interchangeable: compiling either yields identical output.
var symbols = []OpSymbol{
	{'Ψ', "Q.super", "QUANTUM_SUPERPOSITION", vm.UnitQFU, "prepare a uniform superposition over n qubits"},
	{'⊗', "Q.entangle", "QUANTUM_ENTANGLE", vm.UnitQFU, "entangle two qubits"},
	{'μ', "Q.measure", "QUANTUM_MEASURE", vm.UnitQFU, "measure the register, collapsing it"},
	{'φ', "Q.phase", "QUANTUM_PHASE", vm.UnitQFU, "rotate a qubit's phase by an angle"},
	{'↯', "N.spike", "NEURAL_SPIKE", vm.UnitNPU, "fire a neuron"},
	{'Δ', "N.learn", "NEURAL_LEARN", vm.UnitNPU, "apply a reward-scaled weight update"},
	{'γ', "G.evolve", "GENETIC_EVOLVE", vm.UnitGEU, "evolve a population for n generations"},
	{'χ', "G.cross", "GENETIC_CROSSOVER", vm.UnitGEU, "cross two genomes"},
	{'σ', "S.infer", "SYMBOLIC_INFER", vm.UnitSIU, "query the knowledge base"},
	{'ω', "O.sync", "OSC_SYNC", vm.UnitOCU, "synchronize n oscillators"},
	{'Λ', "P.match", "PATTERN_MATCH", vm.UnitPMU, "structurally match a value against a pattern"},
	{'α', "M.alloc", "MEM_ALLOC", vm.UnitMMU, "allocate a fixed-size buffer"},
}

var (
	symbolsByGlyph = make(map[rune]*OpSymbol, len(symbols))
	symbolsByASCII = make(map[string]*OpSymbol, len(symbols))
)

// typeWords are the composite type spellings. The runic form is bracketed by
// the lead glyph pair; the ASCII form uses angle brackets.
var typeWords = map[string]string{
	"⟪qubit⟫":  "qubit",
	"⟪tensor⟫": "tensor",
	"⟪genome⟫": "genome",
	"⟪wave⟫":   "wave",
	"⟪graph⟫":  "graph",
}

// typeLeadGlyph opens a type word in normalized source.
const typeLeadGlyph = '⟪'

var keywords = map[string]bool{
	"function": true,
	"return":   true,
	"loop":     true,
	"parallel": true,
	"let":      true,
}

var asciiReplacer *strings.Replacer

func init() {
	var pairs []string
	for i := range symbols {
		s := &symbols[i]
		symbolsByGlyph[s.Glyph] = s
		symbolsByASCII[s.ASCII] = s
	}
	// Longer spellings first so Q.entangle is not eaten by a shorter prefix.
	ordered := make([]*OpSymbol, 0, len(symbols))
	for i := range symbols {
		ordered = append(ordered, &symbols[i])
	}
	sort.Slice(ordered, func(i, j int) bool {
		return len(ordered[i].ASCII) > len(ordered[j].ASCII)
	})
	for _, s := range ordered {
		pairs = append(pairs, s.ASCII, string(s.Glyph))
	}
	for runic, prim := range typeWords {
		pairs = append(pairs, "<"+prim+">", runic)
	}
	asciiReplacer = strings.NewReplacer(pairs...)
}

// Normalize rewrites a source text into the runic spelling and reports which
// syntax it was written in. Runic sources pass through untouched; ASCII
// sources have their dotted operation words and angle-bracket type words
// replaced glyph-for-glyph.
func Normalize(source string) (string, Mode) {
	for _, r := range source {
		if _, ok := symbolsByGlyph[r]; ok {
			return source, ModeRunic
		}
		if r == typeLeadGlyph {
			return source, ModeRunic
		}
	}
	return asciiReplacer.Replace(source), ModeASCII
}

// LookupGlyph resolves an operation glyph, if it is one.
func LookupGlyph(r rune) (*OpSymbol, bool) {
	s, ok := symbolsByGlyph[r]
	return s, ok
}

// LookupASCII resolves a dotted ASCII operation spelling, if it is one.
func LookupASCII(word string) (*OpSymbol, bool) {
	s, ok := symbolsByASCII[word]
	return s, ok
}
