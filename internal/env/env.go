// Package env captures the build description's environment inputs: the
// full environment block, the platform's library-path variable, and each
// explicitly imported variable's 32-bit value hash. These feed the graph
// database's invalidation check at load time.
package env

import (
	"os"
	"runtime"
	"sort"
	"strings"

	"github.com/nodegraph/nbuild/internal/hashing"
)

// LibVarName is the platform's library-path environment variable: "LIB" on
// Windows, "LD_LIBRARY_PATH" elsewhere.
func LibVarName() string {
	if runtime.GOOS == "windows" {
		return "LIB"
	}
	return "LD_LIBRARY_PATH"
}

// Block returns the process environment as a double-null-terminated byte
// block, sorted for determinism, matching the database's EnvBlock layout.
func Block() []byte {
	entries := os.Environ()
	sort.Strings(entries)
	var b strings.Builder
	for _, e := range entries {
		b.WriteString(e)
		b.WriteByte(0)
	}
	b.WriteByte(0)
	return []byte(b.String())
}

// ImportedVar is one explicitly-imported environment variable's observed
// value, alongside its 32-bit hash. A zero Hash is the sentinel meaning
// "was absent and absence is acceptable".
type ImportedVar struct {
	Name string
	Hash uint32
}

// ImportVars hashes the current value of each name in names. A variable
// that is unset hashes to 0 (the documented absence sentinel); a variable
// that happens to be set but empty still hashes to Hash32(""), which is
// deliberately almost never 0, so "unset" and "set to empty" remain
// distinguishable.
func ImportVars(names []string) []ImportedVar {
	out := make([]ImportedVar, len(names))
	for i, name := range names {
		val, ok := os.LookupEnv(name)
		var h uint32
		if ok {
			h = hashing.Hash32([]byte(val))
			if h == 0 {
				// Avoid colliding with the absence sentinel on the
				// vanishingly rare chance a real value hashes to 0.
				h = 1
			}
		}
		out[i] = ImportedVar{Name: name, Hash: h}
	}
	return out
}

// LibVarHash hashes the current value of LibVarName(), using the same
// absence sentinel convention as ImportVars.
func LibVarHash() uint32 {
	vars := ImportVars([]string{LibVarName()})
	return vars[0].Hash
}
