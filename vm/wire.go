package vm

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ---------------------------------------------------------------------------
// Plan wire format
// ---------------------------------------------------------------------------

// Plans travel as canonical CBOR behind a small versioned envelope, so the
// same source always produces byte-identical output and old readers reject
// new formats cleanly.

const (
	wireMagic   = "RNBC"
	wireVersion = 1
)

type wireEnvelope struct {
	Magic   string        `cbor:"1,keyasint"`
	Version int           `cbor:"2,keyasint"`
	Plan    []Instruction `cbor:"3,keyasint"`
}

var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
}

// MarshalPlan encodes a plan for storage or transport.
func MarshalPlan(plan []Instruction) ([]byte, error) {
	data, err := encMode.Marshal(wireEnvelope{
		Magic:   wireMagic,
		Version: wireVersion,
		Plan:    plan,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding plan: %w", err)
	}
	return data, nil
}

// UnmarshalPlan decodes a plan, rejecting foreign or future formats.
func UnmarshalPlan(data []byte) ([]Instruction, error) {
	var env wireEnvelope
	if err := cbor.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding plan: %w", err)
	}
	if env.Magic != wireMagic {
		return nil, fmt.Errorf("bad magic %q, want %q", env.Magic, wireMagic)
	}
	if env.Version != wireVersion {
		return nil, fmt.Errorf("unsupported plan version %d, want %d", env.Version, wireVersion)
	}
	return env.Plan, nil
}
