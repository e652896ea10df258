package pathutil

import "golang.org/x/exp/slices"

// Candidate is one named thing NearestNodes can rank against a query name.
type Candidate struct {
	Name string
	// Opaque carries whatever the caller needs back out (typically a node
	// reference); NearestNodes never inspects it.
	Opaque interface{}
}

// Match is one ranked result from NearestNodes.
type Match struct {
	Candidate Candidate
	Distance  int
}

// NearestNodes returns up to k candidates with the smallest case-insensitive
// Levenshtein distance to name, bounded by maxDistance, sorted by distance
// ascending then by name. It is a diagnostics-only helper; callers should
// not expect it to be fast over huge candidate sets beyond the
// length-difference pruning below: a candidate whose length differs from
// the query by more than maxDistance cannot possibly be within budget, so
// its full distance is never computed.
func NearestNodes(name string, candidates []Candidate, maxDistance, k int) []Match {
	lowerName := toLowerASCII(name)
	var matches []Match
	for _, c := range candidates {
		if abs(len(c.Name)-len(name)) > maxDistance {
			continue
		}
		d := levenshteinI(lowerName, toLowerASCII(c.Name))
		if d <= maxDistance {
			matches = append(matches, Match{Candidate: c, Distance: d})
		}
	}
	slices.SortFunc(matches, func(a, b Match) int {
		if a.Distance != b.Distance {
			return a.Distance - b.Distance
		}
		switch {
		case a.Candidate.Name < b.Candidate.Name:
			return -1
		case a.Candidate.Name > b.Candidate.Name:
			return 1
		}
		return 0
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func toLowerASCII(s string) string {
	b := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		b[i] = lowerByte(s[i])
	}
	return string(b)
}

// levenshteinI computes the Levenshtein edit distance between two strings
// already folded to the same case, using a two-row rolling buffer so the
// cost is O(len(b)) space.
func levenshteinI(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			curr[j] = minInt(del, minInt(ins, sub))
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
