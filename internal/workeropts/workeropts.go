// Package workeropts parses the standalone worker daemon's command-line
// flags: -console, -cpus, -mode, -minfreememory, -nosubprocess,
// -subprocess, -debug, -periodicrestart.
package workeropts

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/nodegraph/nbuild/internal/brokerage"
	"golang.org/x/xerrors"
)

// Options holds the worker daemon's parsed configuration.
type Options struct {
	Console          bool
	CPUs             int
	Mode             brokerage.Mode
	MinFreeMemoryMiB int
	NoSubprocess     bool
	Subprocess       bool
	Debug            bool
	PeriodicRestart  bool
}

const helpText = `nbuildworker: standalone build-worker daemon

Announces availability in a shared brokerage directory and executes jobs
handed to it by an nbuild orchestrator.
---
`

// Parse parses args (normally os.Args[1:]) against a fresh FlagSet named
// name. On an unknown flag or malformed value it prints the entire usage
// block (not just an error line) to stderr and returns a non-nil error;
// the caller maps that to a non-zero process exit.
func Parse(name string, args []string) (Options, error) {
	opts := Options{
		CPUs: runtime.NumCPU(),
		Mode: brokerage.ModeIdle,
	}
	var cpusFlag string

	fset := flag.NewFlagSet(name, flag.ContinueOnError)
	fset.Usage = func() {
		fmt.Fprintln(os.Stderr, helpText)
		fmt.Fprintf(os.Stderr, "Flags for %s:\n", fset.Name())
		fset.PrintDefaults()
	}
	fset.BoolVar(&opts.Console, "console", runtime.GOOS != "windows", "run without a GUI")
	fset.StringVar(&cpusFlag, "cpus", "", "absolute (N), relative-from-max (-N), or percentage (N%) of cores to use")
	var modeFlag string
	fset.StringVar(&modeFlag, "mode", string(brokerage.ModeIdle), "disabled|idle|dedicated|proportional")
	fset.IntVar(&opts.MinFreeMemoryMiB, "minfreememory", 0, "minimum free RAM (MiB) to accept work")
	fset.BoolVar(&opts.NoSubprocess, "nosubprocess", false, "run jobs in-process instead of via subprocess")
	fset.BoolVar(&opts.Subprocess, "subprocess", true, "run jobs via subprocess")
	fset.BoolVar(&opts.Debug, "debug", false, "enable verbose debug logging")
	fset.BoolVar(&opts.PeriodicRestart, "periodicrestart", false, "periodically restart the worker process")

	if err := fset.Parse(args); err != nil {
		fset.Usage()
		return opts, xerrors.Errorf("workeropts: %w", err)
	}

	switch brokerage.Mode(modeFlag) {
	case brokerage.ModeDisabled, brokerage.ModeIdle, brokerage.ModeDedicated, brokerage.ModeProportional:
		opts.Mode = brokerage.Mode(modeFlag)
	default:
		fset.Usage()
		return opts, xerrors.Errorf("workeropts: invalid -mode=%q", modeFlag)
	}

	if cpusFlag != "" {
		n, err := ParseCPUs(cpusFlag, runtime.NumCPU())
		if err != nil {
			fset.Usage()
			return opts, xerrors.Errorf("workeropts: %w", err)
		}
		opts.CPUs = n
	}

	return opts, nil
}

// ParseCPUs parses the -cpus flag's three accepted forms — N, -N, N% — and
// clamps the result into [1, numCPUs]. The '%' suffix is
// checked on the numeric token before the sign check, and all three forms
// share one clamp call.
func ParseCPUs(s string, numCPUs int) (int, error) {
	isPercent := strings.HasSuffix(s, "%")
	numeric := strings.TrimSuffix(s, "%")

	n, err := strconv.Atoi(numeric)
	if err != nil {
		return 0, xerrors.Errorf("invalid -cpus value %q: %w", s, err)
	}

	var result int
	switch {
	case isPercent:
		result = (numCPUs*n + 99) / 100
	case n < 0:
		result = numCPUs + n
	default:
		result = n
	}

	return clamp(result, 1, numCPUs), nil
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
