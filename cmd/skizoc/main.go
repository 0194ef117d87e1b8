// Command skizoc is the reference command-line front end for the skizo
// runtime: it reads the options of spec.md §6 as standard Go
// command-line flags (`-source`, `-dump`, `-gcstats`, ...; the
// `/option:value` form is not accepted), builds a domain, runs its entry
// point, and reports the outcome.
//
// This binary has no tokenizer or parser wired in — spec.md treats the
// post-parse AST as an input, not something this runtime produces — so
// `-demo` is the only source of classes it can run; a production front
// end would replace demoParse with a real parser-to-TypeSystem bridge.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/skizo-lang/skizo"
)

func main() {
	var (
		source        = flag.String("source", "", "Path to (or literal body of) the entry-point source module")
		paths         = flag.String("paths", "", "Semicolon-separated list of additional module search paths")
		dump          = flag.Bool("dump", false, "Dump the generated C translation unit to stdout instead of running it")
		profile       = flag.Bool("profile", false, "Collect and print a per-method profiling report")
		stacktraces   = flag.Bool("stacktraces", false, "Record stack traces for abort diagnostics")
		softdebug     = flag.Bool("softdebug", false, "Enable the soft-debug local-variable watch facility")
		nullcheck     = flag.Bool("nullcheck", true, "Insert null checks for nullable dereferences")
		safecallbacks = flag.Bool("safecallbacks", false, "Stored in the domain Config; no runtime component reads it")
		permissions   = flag.String("permissions", "", "Semicolon-separated permission set; empty means a trusted domain")
		inline        = flag.Bool("inline", true, "Inline the `bool then: ^{ ... }` branching pattern")
		maxgcmemory   = flag.Int("maxgcmemory", 16*1024*1024, "GC collection threshold in bytes")
		gcstats       = flag.Bool("gcstats", false, "Print the most recent GC collection's report once the entry point returns (earlier collections are not reported)")
		entryClass    = flag.String("entry-class", "Program", "Static entry-point class name")
		entryMethod   = flag.String("entry-method", "main", "Static entry-point method name")
		demo          = flag.Bool("demo", false, "Run the built-in smoke-test class instead of parsing -source")
	)
	flag.Parse()

	if *source == "" && !*demo {
		fmt.Fprintln(os.Stderr, "skizoc: -source (or -demo) is required")
		os.Exit(1)
	}

	cfg := skizo.NewConfig()
	cfg.SetString("source", *source)
	cfg.SetString("paths", *paths)
	cfg.SetBool("dump", *dump)
	cfg.SetBool("profile", *profile)
	cfg.SetBool("stacktraces", *stacktraces)
	cfg.SetBool("softdebug", *softdebug)
	cfg.SetBool("nullcheck", *nullcheck)
	cfg.SetBool("safecallbacks", *safecallbacks)
	cfg.SetString("permissions", *permissions)
	cfg.SetBool("inline", *inline)
	cfg.SetInt("maxgcmemory", *maxgcmemory)
	cfg.SetBool("gcstats", *gcstats)

	parse := demoParse
	if !*demo {
		parse = func(ts *skizo.TypeSystem, tr *skizo.Transformer, sec *skizo.SecurityManager, host skizo.HostServices) error {
			return fmt.Errorf("skizoc: no parser front end is wired in; re-run with -demo")
		}
	}

	domain, err := skizo.CreateDomainFromSource(cfg, parse, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "skizoc: %s\n", err)
		os.Exit(1)
	}
	defer skizo.CloseDomain(domain)

	if *dump {
		fmt.Println(domain.DumpedSource())
		return
	}

	if err := skizo.Invoke(domain, *entryClass, *entryMethod); err != nil {
		fmt.Fprintf(os.Stderr, "skizoc: %s\n", err)
		os.Exit(1)
	}

	if *profile {
		report := domain.Profile()
		report.SortBySelfTime()
		fmt.Print(report.Dump())
	}
	if *gcstats {
		stats := domain.LastGCStats()
		fmt.Fprintf(os.Stderr, "gc: freed=%d live=%d bytes_after=%d\n", stats.FreedObjects, stats.LiveObjects, stats.BytesAfter)
	}
}

// demoParse registers a single `Program` class with a static `main`
// that returns immediately, enough to exercise the full domain lifecycle
// end to end without a real parser.
func demoParse(ts *skizo.TypeSystem, tr *skizo.Transformer, sec *skizo.SecurityManager, host skizo.HostServices) error {
	program, err := skizo.NewDemoProgramClass(ts)
	if err != nil {
		return err
	}
	tr.Enqueue(program)
	return nil
}
