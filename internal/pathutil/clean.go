// Package pathutil implements the path normalization, pattern matching and
// nearest-name lookup the graph uses to turn arbitrary node names into a
// canonical form and to compare/search them. It deliberately does not use
// filepath.Clean: node names must normalize identically regardless of the
// host's path-separator convention (a DB built on one platform must still
// resolve names the same way when loaded on another), which filepath.Clean
// does not guarantee.
package pathutil

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/nodegraph/nbuild/internal/ngerr"
)

// CleanPathMakeFull normalizes path exactly like CleanPath, but first makes
// it absolute (relative to the process's working directory) when it has no
// drive/root of its own. It fails with ngerr.ErrNonAbsolutePath only when
// makeFull is false and name has no drive/root component — mirroring the
// original engine's CleanPath(name, makeFull) contract, where a caller that
// already knows it has a full path can skip the os.Getwd() call.
func CleanPathMakeFull(name string, makeFull bool) (string, error) {
	norm := strings.ReplaceAll(name, "\\", "/")
	if !hasRoot(norm) {
		if !makeFull {
			return "", ngerr.ErrNonAbsolutePath
		}
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		norm = filepath.ToSlash(wd) + "/" + norm
	}
	return CleanPath(norm), nil
}

func hasRoot(norm string) bool {
	if strings.HasPrefix(norm, "/") {
		return true
	}
	return len(norm) >= 2 && norm[1] == ':'
}

// CleanPath normalizes path: it converts '\' to '/', collapses repeated
// slashes, resolves "." segments, and resolves ".." segments against
// whatever came before them. It never pops past a fixed prefix (a leading
// "/" or a drive letter like "C:/"): a ".." directly after the prefix is
// dropped. In a relative path, a leading ".." with nothing before it to
// pop is kept as-is. CleanPath is idempotent: CleanPath(CleanPath(p)) ==
// CleanPath(p).
func CleanPath(path string) string {
	if path == "" {
		return path
	}

	// Normalize foreign slashes first so the rest of the algorithm only
	// ever sees '/'.
	norm := strings.ReplaceAll(path, "\\", "/")

	prefixLen := 0
	if strings.HasPrefix(norm, "/") {
		prefixLen = 1
	} else if len(norm) >= 2 && norm[1] == ':' {
		// Drive letter prefix, e.g. "C:/foo" -> fixed prefix is "C:/".
		prefixLen = 2
		if len(norm) >= 3 && norm[2] == '/' {
			prefixLen = 3
		}
	}
	prefix := norm[:prefixLen]
	rest := norm[prefixLen:]

	segments := strings.Split(rest, "/")
	out := make([]string, 0, len(segments))
	for _, seg := range segments {
		switch seg {
		case "", ".":
			// Drop empty segments (collapses repeated slashes) and no-op
			// segments.
			continue
		case "..":
			if len(out) > 0 && out[len(out)-1] != ".." {
				// Pop the previous real segment.
				out = out[:len(out)-1]
			} else if prefixLen > 0 {
				// A fixed prefix (root or drive) absorbs a leading "..":
				// there is nowhere higher to go, so it is dropped rather
				// than retained or erroring.
				continue
			} else {
				// No fixed prefix to pop past and nothing buffered yet:
				// keep the ".." as a genuine relative-path component.
				out = append(out, seg)
			}
		default:
			out = append(out, seg)
		}
	}

	cleaned := prefix + strings.Join(out, "/")
	if cleaned == "" {
		cleaned = "."
	}
	return cleaned
}

// IsCleanPath reports whether path is already in CleanPath's canonical
// form. It exists to back debug-only assertions at points where a path is
// expected to have already been cleaned (mirroring the original engine's
// IsCleanPath debug assert in NodeGraph.cpp) rather than to be called on
// every path in a hot loop.
func IsCleanPath(path string) bool {
	return path == CleanPath(path)
}
