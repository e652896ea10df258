// Package ngerr defines the closed set of error kinds the graph engine can
// report, as sentinel errors checked with errors.Is/errors.As rather than
// a custom error-kind enum.
package ngerr

import "golang.org/x/xerrors"

// Sentinel error kinds. Wrap with xerrors.Errorf("...: %w", Kind) to attach
// context while keeping errors.Is(err, Kind) working.
var (
	ErrNonAbsolutePath     = xerrors.New("ngerr: path is not absolute")
	ErrReadOnly            = xerrors.New("ngerr: destination is read-only")
	ErrIOFailure           = xerrors.New("ngerr: I/O failure")
	ErrDBCorrupt           = xerrors.New("ngerr: database corrupt")
	ErrDBMoved             = xerrors.New("ngerr: database path has moved")
	ErrDBIncompatible      = xerrors.New("ngerr: database version incompatible")
	ErrDuplicateName       = xerrors.New("ngerr: duplicate node name")
	ErrUnsupportedNodeType = xerrors.New("ngerr: unsupported node type")
	ErrCopyDestMissingSlash = xerrors.New("ngerr: copy destination is missing a trailing slash")
	ErrCyclicDependency    = xerrors.New("ngerr: cyclic dependency")
	ErrNodePropertyChanged = xerrors.New("ngerr: node property changed")
	ErrBuildFailed         = xerrors.New("ngerr: build failed")
	ErrCacheMiss           = xerrors.New("ngerr: cache miss")
	ErrCancelled           = xerrors.New("ngerr: cancelled")
)

// CyclicDependencyError carries the chain of node names that form a cycle,
// for the verbose diagnostic that names the full dependency chain.
type CyclicDependencyError struct {
	Chain []string
}

func (e *CyclicDependencyError) Error() string {
	s := "ngerr: cyclic dependency: "
	for i, n := range e.Chain {
		if i > 0 {
			s += " -> "
		}
		s += n
	}
	return s
}

func (e *CyclicDependencyError) Unwrap() error { return ErrCyclicDependency }

// BuildFailedError summarizes the nodes that failed during a pass, for a
// pass-end summary of failed node names and their first error line.
type BuildFailedError struct {
	Failures []NodeFailure
}

// NodeFailure is one node's failure: its name and the first line of the
// error it returned from DoBuild/DoDynamicDependencies.
type NodeFailure struct {
	Name     string
	FirstLine string
}

func (e *BuildFailedError) Error() string {
	if len(e.Failures) == 1 {
		return "ngerr: build failed: " + e.Failures[0].Name + ": " + e.Failures[0].FirstLine
	}
	return xerrors.Errorf("ngerr: build failed (%d nodes)", len(e.Failures)).Error()
}

func (e *BuildFailedError) Unwrap() error { return ErrBuildFailed }
