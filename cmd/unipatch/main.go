// Command unipatch applies a unified-diff patch file to a directory
// tree, in the spirit of the teacher's cmd/deltagram front end: a flat
// command dispatch with no flag-parsing library beyond the standard
// one, reading its input from a file (or stdin) instead of the
// clipboard.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/jmercer/unipatch"
	"github.com/jmercer/unipatch/patchevents"
)

// Version information (set by build flags), kept in the teacher's
// own style.
var (
	Version    = "dev"
	CommitHash = "unknown"
	BuildTime  = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		showUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "version", "--version", "-v":
		showVersion()
	case "help", "--help", "-h":
		showUsage()
	default:
		if err := run(os.Args[1:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("unipatch", flag.ContinueOnError)
	strip := fs.Int("p", 0, "strip N leading path components from each patch's declared path")
	directory := fs.String("directory", ".", "directory to apply the patch under")
	revert := fs.Bool("revert", false, "revert the patch instead of applying it")
	dryRun := fs.Bool("dry-run", false, "report applicability without touching the filesystem")
	quiet := fs.Bool("quiet", false, "suppress per-file progress output")
	verbose := fs.Bool("verbose", false, "print the diffstat summary after applying")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var input *os.File
	switch fs.NArg() {
	case 0:
		input = os.Stdin
	case 1:
		f, err := os.Open(fs.Arg(0))
		if err != nil {
			return fmt.Errorf("opening patch file: %w", err)
		}
		defer f.Close()
		input = f
	default:
		return fmt.Errorf("unipatch: at most one patch file argument is accepted")
	}

	set, err := unipatch.Parse(input)
	if err != nil {
		return fmt.Errorf("parsing patch: %w", err)
	}
	if set.Errors() > 0 {
		for _, d := range set.Diagnostics() {
			if d.Fatal {
				fmt.Fprintf(os.Stderr, "error: %s: %s\n", d.Kind, d.Message)
			}
		}
		return fmt.Errorf("unipatch: %d patch(es) could not be parsed", set.Errors())
	}
	if !*quiet {
		for _, d := range set.Diagnostics() {
			fmt.Fprintf(os.Stderr, "warning: %s: %s\n", d.Kind, d.Message)
		}
	}

	var sink patchevents.Sink = patchevents.DiscardSink{}
	if !*quiet {
		sink = patchevents.PrintSink{W: os.Stdout}
	}
	opts := unipatch.Options{Root: *directory, Strip: *strip, Sink: sink}

	if *dryRun {
		states, err := set.CanPatch(opts)
		if err != nil {
			return fmt.Errorf("checking applicability: %w", err)
		}
		mismatches := 0
		for i, state := range states {
			fmt.Printf("%d: %s\n", i, stateName(state))
			if state == unipatch.Mismatch {
				mismatches++
			}
		}
		if mismatches > 0 {
			return fmt.Errorf("unipatch: %d patch(es) do not match the target", mismatches)
		}
		return nil
	}

	if *revert {
		err = set.Revert(opts)
	} else {
		err = set.Apply(opts)
	}
	if err != nil {
		return fmt.Errorf("applying patch: %w", err)
	}

	if *verbose {
		fmt.Print(set.Diffstat())
	}
	return nil
}

func stateName(a unipatch.Applicability) string {
	switch a {
	case unipatch.AlreadyApplied:
		return "already applied"
	case unipatch.Mismatch:
		return "mismatch"
	default:
		return "needs patch"
	}
}

func showUsage() {
	fmt.Println("Usage: unipatch [options] [patchfile]")
	fmt.Println()
	fmt.Println("Reads a unified-diff patch file (or stdin, if no file is given) and")
	fmt.Println("applies it under --directory.")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -p N            strip N leading path components")
	fmt.Println("  --directory D   apply under directory D (default: .)")
	fmt.Println("  --revert        revert the patch instead of applying it")
	fmt.Println("  --dry-run       report per-patch applicability without writing anything")
	fmt.Println("  --quiet         suppress progress and warning output")
	fmt.Println("  --verbose       print a diffstat summary after applying")
	fmt.Println()
	fmt.Println("Other commands:")
	fmt.Println("  version, -v     Show version information")
	fmt.Println("  help, -h        Show this help message")
}

func showVersion() {
	fmt.Printf("unipatch %s\n", Version)
	fmt.Printf("  commit: %s\n", CommitHash)
	fmt.Printf("  built:  %s\n", BuildTime)
}
