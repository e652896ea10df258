package graph

import (
	"sync/atomic"

	"github.com/nodegraph/nbuild"
	"github.com/nodegraph/nbuild/internal/hashing"
	"github.com/nodegraph/nbuild/internal/ngerr"
	"github.com/nodegraph/nbuild/internal/pathutil"
	"golang.org/x/xerrors"
)

// defaultHashBits sizes the bucket array so chain length stays small for
// graphs of up to ~1e5 nodes.
const defaultHashBits = 16

// Graph is the node registry: an index-stable arena plus a name_hash-keyed
// bucket map for O(1) amortized lookup.
type Graph struct {
	hashBits uint

	nodes   []*Node
	buckets [][]*Node // bucket index = namehash & (2^hashBits - 1)

	settings *Node

	// sourceTokens records, per node index, the build-description source
	// token that created it, used only for diagnostics — not inline on
	// every node, since most nodes in a migrated graph have no token.
	sourceTokens map[int]string

	passTag uint32 // bumped once per do_build_pass or serialize call
}

// New returns an empty graph with the default bucket sizing.
func New() *Graph {
	return NewWithHashBits(defaultHashBits)
}

// NewWithHashBits returns an empty graph with an explicit bucket count of
// 2^bits, clamped into [1, 31].
func NewWithHashBits(bits uint) *Graph {
	if bits < 1 {
		bits = 1
	}
	if bits > 31 {
		bits = 31
	}
	return &Graph{
		hashBits:     bits,
		buckets:      make([][]*Node, 1<<bits),
		sourceTokens: make(map[int]string),
	}
}

func (g *Graph) bucketIndex(nameHash uint32) uint32 {
	return nameHash & uint32(1<<g.hashBits-1)
}

// NameHash returns the 32-bit hash of name used as the node's map key and
// migration identity.
func NameHash(name string) uint32 {
	return hashing.Hash32([]byte(name))
}

// RegisterNode chains n into its bucket. n.Name must be unique within the
// graph; a collision fails with ngerr.ErrDuplicateName. sourceToken, if
// non-empty, is remembered for diagnostics only.
func (g *Graph) RegisterNode(n *Node, sourceToken string) error {
	if _, ok := g.FindNodeExact(n.Name); ok {
		return xerrors.Errorf("ngerr: register %q: %w", n.Name, ngerr.ErrDuplicateName)
	}
	n.NameHash = NameHash(n.Name)
	n.Index = len(g.nodes)
	g.nodes = append(g.nodes, n)
	idx := g.bucketIndex(n.NameHash)
	g.buckets[idx] = append(g.buckets[idx], n)
	if sourceToken != "" {
		g.sourceTokens[n.Index] = sourceToken
	}
	return nil
}

// CreateNode allocates a node of the given variant backed by builder,
// normalizes its name if the variant is file-producing, and registers it.
func (g *Graph) CreateNode(name string, typ nbuild.NodeType, builder Builder, sourceToken string) (*Node, error) {
	if typ.IsAFile() {
		cleaned, err := pathutil.CleanPathMakeFull(name, true)
		if err != nil {
			return nil, xerrors.Errorf("graph: create %q: %w", name, err)
		}
		name = cleaned
	}
	n := &Node{Name: name, Type: typ, Builder: builder}
	if err := g.RegisterNode(n, sourceToken); err != nil {
		return nil, err
	}
	return n, nil
}

// FindNodeExact looks up name as-is, without attempting CleanPath. Returns
// (nil, false) if absent.
func (g *Graph) FindNodeExact(name string) (*Node, bool) {
	return g.findNodeInternal(name, NameHash(name))
}

func (g *Graph) findNodeInternal(name string, nameHash uint32) (*Node, bool) {
	for _, n := range g.buckets[g.bucketIndex(nameHash)] {
		if n.NameHash == nameHash && n.Name == name {
			return n, true
		}
	}
	return nil, false
}

// FindNode tries name as-is first, then falls back to
// pathutil.CleanPathMakeFull(name, true).
func (g *Graph) FindNode(name string) (*Node, bool) {
	if n, ok := g.FindNodeExact(name); ok {
		return n, true
	}
	cleaned, err := pathutil.CleanPathMakeFull(name, true)
	if err != nil || cleaned == name {
		return nil, false
	}
	return g.FindNodeExact(cleaned)
}

// SourceOf returns the source token n was registered with, if any.
func (g *Graph) SourceOf(n *Node) (string, bool) {
	tok, ok := g.sourceTokens[n.Index]
	return tok, ok
}

// SetSettings records the designated settings singleton node. Callable
// once; a second call fails.
func (g *Graph) SetSettings(n *Node) error {
	if g.settings != nil {
		return xerrors.New("graph: settings node already set")
	}
	g.settings = n
	return nil
}

// Settings returns the settings singleton, if one was set.
func (g *Graph) Settings() *Node { return g.settings }

// NodeByIndex returns the node at the given stable arena index, used by
// dependency (de)serialization.
func (g *Graph) NodeByIndex(i int) *Node { return g.nodes[i] }

// NodeCount returns the number of nodes in the arena.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// AllNodes returns the node arena in creation order. Callers must not
// mutate the returned slice.
func (g *Graph) AllNodes() []*Node { return g.nodes }

// AddDependency appends dep to list, returning the updated slice. It
// exists so call sites read identically for pre-build/static/dynamic lists
// without three near-identical helper methods on Node.
func AddDependency(list []Dependency, target *Node, weak bool) []Dependency {
	return append(list, Dependency{Node: target, Weak: weak})
}

// AddStaticDependency is the only dependency mutator Initialize is expected
// to call: static deps are established by the parser and not modified
// during a build.
func (g *Graph) AddStaticDependency(n *Node, target *Node, weak bool) {
	n.StaticDeps = AddDependency(n.StaticDeps, target, weak)
}

// AddPreBuildDependency appends a pre-build dependency.
func (g *Graph) AddPreBuildDependency(n *Node, target *Node, weak bool) {
	n.PreBuildDeps = AddDependency(n.PreBuildDeps, target, weak)
}

// AddDynamicDependency appends a dynamic dependency; callers must have
// cleared n.DynamicDeps first if this is a fresh DoDynamicDependencies call,
// since dynamic deps are cleared and regenerated each time static deps
// indicate the need to rebuild.
func (g *Graph) AddDynamicDependency(n *Node, target *Node, weak bool) {
	n.DynamicDeps = AddDependency(n.DynamicDeps, target, weak)
}

// NextPassTag atomically bumps and returns the graph's pass-tag counter,
// used both by build passes and by SerializeToText/Dot to visit each node
// at most once per call.
func (g *Graph) NextPassTag() uint32 {
	return atomic.AddUint32(&g.passTag, 1)
}

// CandidatesForNearest adapts the node arena into pathutil.Candidate for
// FindNearestNodes.
func (g *Graph) CandidatesForNearest() []pathutil.Candidate {
	out := make([]pathutil.Candidate, len(g.nodes))
	for i, n := range g.nodes {
		out[i] = pathutil.Candidate{Name: n.Name, Opaque: n}
	}
	return out
}

// FindNearestNodes returns up to k nodes with smallest Levenshtein distance
// to name (case-insensitive), bounded by maxDistance.
func (g *Graph) FindNearestNodes(name string, maxDistance, k int) []*Node {
	matches := pathutil.NearestNodes(name, g.CandidatesForNearest(), maxDistance, k)
	out := make([]*Node, len(matches))
	for i, m := range matches {
		out[i] = m.Candidate.Opaque.(*Node)
	}
	return out
}
