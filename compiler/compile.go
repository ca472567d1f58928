package compiler

import "fmt"

// Compile runs the full pipeline: normalization, tokenizing, parsing, and
// code generation. Errors from any stage come back as values; the pipeline
// never panics across this boundary.
func Compile(source string) (art *Artifact, err error) {
	defer func() {
		if r := recover(); r != nil {
			art = nil
			err = fmt.Errorf("compile: %v", r)
		}
	}()

	normalized, mode := Normalize(source)
	tokens := NewLexer(normalized).Tokenize()

	prog, err := NewParser(tokens).Parse()
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}

	art, err = Generate(prog)
	if err != nil {
		return nil, fmt.Errorf("codegen: %w", err)
	}
	art.Tokens = tokens
	art.Mode = mode
	return art, nil
}
