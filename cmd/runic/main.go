// Runic CLI - compiles and runs Runic programs
//
// Build: go build ./cmd/runic
// Usage:
//   runic program.rn                  # compile and run
//   runic --disasm program.rn         # show the compiled plan
//   runic -o program.rnbc program.rn  # compile to a plan file
//   runic program.rnbc                # run a precompiled plan
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/runicvm/runic/compiler"
	"github.com/runicvm/runic/manifest"
	"github.com/runicvm/runic/vm"
)

func main() {
	verbose := flag.Bool("v", false, "Verbose output")
	disasm := flag.Bool("disasm", false, "Print the compiled plan instead of running it")
	trace := flag.Bool("trace", false, "Log every executed instruction")
	seed := flag.Int64("seed", 0, "Seed for measurement sampling (0 = time-seeded)")
	cachePath := flag.String("cache", "", "Plan cache database path (overrides runic.toml)")
	output := flag.String("o", "", "Compile to a .rnbc plan file instead of running")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: runic [options] [file]\n\n")
		fmt.Fprintf(os.Stderr, "Compiles and runs a Runic program. Without a file argument, the entry\n")
		fmt.Fprintf(os.Stderr, "file from the nearest runic.toml is used.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  runic main.rn              # Compile and run\n")
		fmt.Fprintf(os.Stderr, "  runic --disasm main.rn     # Show the plan\n")
		fmt.Fprintf(os.Stderr, "  runic --seed 42 main.rn    # Reproducible measurements\n")
		fmt.Fprintf(os.Stderr, "  runic -o main.rnbc main.rn # Precompile\n")
		fmt.Fprintf(os.Stderr, "  runic main.rnbc            # Run precompiled plan\n")
	}
	flag.Parse()

	verbosity := 0
	if *verbose {
		verbosity = 2
	}
	commonlog.Configure(verbosity, nil)

	mf, err := manifest.FindAndLoad(".")
	if err != nil {
		fail("loading manifest: %v", err)
	}

	path := flag.Arg(0)
	if path == "" && mf != nil {
		path = mf.EntryPath()
	}
	if path == "" {
		flag.Usage()
		os.Exit(2)
	}

	// Precompiled plans skip the front end entirely.
	if strings.HasSuffix(path, ".rnbc") {
		data, err := os.ReadFile(path)
		if err != nil {
			fail("reading %s: %v", path, err)
		}
		plan, err := vm.UnmarshalPlan(data)
		if err != nil {
			fail("decoding %s: %v", path, err)
		}
		run(plan, mf, *seed, *trace, *verbose)
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		fail("reading %s: %v", path, err)
	}
	source := string(data)

	if mf != nil && mf.Source.Syntax != "" {
		if _, mode := compiler.Normalize(source); mode.String() != mf.Source.Syntax {
			fail("%s: %s-syntax source, but runic.toml requires %s", path, mode, mf.Source.Syntax)
		}
	}

	plan, err := compilePlan(source, resolveCachePath(*cachePath, mf))
	if err != nil {
		fail("%s: %v", path, err)
	}

	switch {
	case *disasm:
		fmt.Print(vm.Disassemble(plan))
	case *output != "":
		encoded, err := vm.MarshalPlan(plan)
		if err != nil {
			fail("encoding plan: %v", err)
		}
		if err := os.WriteFile(*output, encoded, 0o644); err != nil {
			fail("writing %s: %v", *output, err)
		}
		if *verbose {
			fmt.Printf("Wrote %d instructions to %s\n", len(plan), *output)
		}
	default:
		run(plan, mf, *seed, *trace, *verbose)
	}
}

// compilePlan compiles source, going through the plan cache when one is
// configured. Cache failures degrade to plain compilation.
func compilePlan(source, cachePath string) ([]vm.Instruction, error) {
	if cachePath == "" {
		art, err := compiler.Compile(source)
		if err != nil {
			return nil, err
		}
		return art.ExecutionPlan, nil
	}

	cache, err := vm.OpenPlanCache(cachePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: plan cache unavailable: %v\n", err)
		art, cerr := compiler.Compile(source)
		if cerr != nil {
			return nil, cerr
		}
		return art.ExecutionPlan, nil
	}
	defer cache.Close()

	if plan, ok, err := cache.Get(source); err == nil && ok {
		return plan, nil
	}
	art, err := compiler.Compile(source)
	if err != nil {
		return nil, err
	}
	if err := cache.Put(source, art.ExecutionPlan); err != nil {
		fmt.Fprintf(os.Stderr, "warning: plan cache write failed: %v\n", err)
	}
	return art.ExecutionPlan, nil
}

func resolveCachePath(flagPath string, mf *manifest.Manifest) string {
	if flagPath != "" {
		return flagPath
	}
	if mf != nil {
		return mf.CachePath()
	}
	return ""
}

func run(plan []vm.Instruction, mf *manifest.Manifest, seed int64, trace, verbose bool) {
	m := vm.NewMachine()
	vm.RegisterDefaults(m, os.Stdout)

	if seed == 0 && mf != nil {
		seed = mf.VM.Seed
	}
	if seed != 0 {
		m.SetSeed(seed)
	}
	m.SetTrace(trace || (mf != nil && mf.VM.Trace))

	result, err := m.Execute(plan)
	if err != nil {
		fail("%v", err)
	}
	if result != nil {
		fmt.Println(result)
	} else if verbose {
		fmt.Println("(no result)")
	}
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
