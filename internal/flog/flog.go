// Package flog routes build-pass diagnostics (up-to-date reasons, cyclic-
// dependency chains, migration decisions) through plain log.Printf calls,
// gated by a verbosity level threaded explicitly through the orchestrator
// context rather than a package-level logger singleton.
package flog

import "log"

// Level is how verbose a Logger should be.
type Level int

const (
	// Quiet logs only pass-ending summaries and errors.
	Quiet Level = iota
	// Normal additionally logs per-node up-to-date/rebuild decisions.
	Normal
	// Verbose additionally logs migration decisions and dependency-chain
	// detail for cyclic errors.
	Verbose
)

// Logger is a verbosity-gated wrapper around the standard log package,
// owned by the orchestrator (or worker) context that constructs it —
// never accessed through a package-level variable.
type Logger struct {
	Level Level
}

// New returns a Logger at the given level.
func New(level Level) *Logger { return &Logger{Level: level} }

// Printf logs unconditionally (errors, pass summaries).
func (l *Logger) Printf(format string, args ...interface{}) {
	log.Printf(format, args...)
}

// V logs format/args only if l.Level >= at.
func (l *Logger) V(at Level, format string, args ...interface{}) {
	if l.Level >= at {
		log.Printf(format, args...)
	}
}

// Warn logs a structured warning the first time a suspect behavior is
// encountered, preserving current observable behavior rather than
// silently tightening it. seen de-duplicates by key so a hot-looped
// call site only logs once per process.
func (l *Logger) Warn(seen map[string]bool, key, format string, args ...interface{}) {
	if seen[key] {
		return
	}
	seen[key] = true
	log.Printf("warning: "+format, args...)
}
