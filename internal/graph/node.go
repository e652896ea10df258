// Package graph implements the persistent dependency graph of typed build
// nodes and the per-node state machine that the scheduler drives.
// Node-type command construction is an external collaborator's concern;
// this package only owns the node header, its dependency lists, and the
// generic traversal/migration machinery every variant shares.
package graph

import (
	"sync/atomic"

	"github.com/nodegraph/nbuild"
)

// State is a node's position in the per-node state machine.
type State int32

const (
	NotProcessed State = iota
	StaticDeps
	DynamicDeps
	Building
	UpToDate
	Failed
)

func (s State) String() string {
	switch s {
	case NotProcessed:
		return "NotProcessed"
	case StaticDeps:
		return "StaticDeps"
	case DynamicDeps:
		return "DynamicDeps"
	case Building:
		return "Building"
	case UpToDate:
		return "UpToDate"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// IsTerminal reports whether s ends the node for the current top-level
// build request.
func (s State) IsTerminal() bool {
	return s == UpToDate || s == Failed
}

// ControlFlags is a bitset of flags the parser sets once at node creation.
type ControlFlags uint32

const (
	// AlwaysBuild forces unconditional processing, used by leaf File nodes.
	AlwaysBuild ControlFlags = 1 << iota
)

// StatFlags is a bitset recording observations made during a build pass.
type StatFlags uint32

const (
	// StatProcessed is set once a node's DYNAMIC_DEPS stage has run.
	StatProcessed StatFlags = 1 << iota
	// StatFirstBuild is set the first time a node's stamp goes from zero to
	// needing a build (i.e. it has never before built successfully).
	StatFirstBuild
)

// Dependency is one edge in a node's dependency list: the target node, the
// stamp observed the last time this edge was walked, and whether the edge
// is weak (does not force a rebuild when the target changes).
type Dependency struct {
	Node   *Node
	Stamp  uint64
	Weak   bool
}

// Key returns the target node's (type, stamp, name) tuple migration
// compares dependency lists by.
func (d Dependency) Key() (nbuild.NodeType, uint64, string) {
	return d.Node.Type, d.Node.Stamp, d.Node.Name
}

// Builder is the set of hooks every node variant implements. Node-type
// command construction (what Initialize wires up, what DoBuild actually
// runs) is out of this repository's scope; Builder is the seam external
// collaborators implement against.
type Builder interface {
	// Initialize is called once by the parser after property assignment.
	// It may register static dependencies via Graph.AddStaticDependency.
	Initialize(g *Graph, n *Node, sourceToken string) error

	// DoDynamicDependencies is called by the scheduler once static deps are
	// up to date and a rebuild is indicated. It must populate n's dynamic
	// deps reproducibly.
	DoDynamicDependencies(g *Graph, n *Node) error

	// DetermineNeedToBuildStatic/Dynamic are predicates the scheduler
	// consults at the corresponding state-machine stage.
	DetermineNeedToBuildStatic(n *Node) bool
	DetermineNeedToBuildDynamic(n *Node) bool

	// DoBuild performs the node's actual work, possibly on a worker
	// goroutine. It must not mutate the graph's maps or any other node.
	DoBuild(n *Node) (BuildResult, error)

	// PostLoad runs once after the node is deserialized from the database,
	// before any build pass touches it.
	PostLoad(g *Graph, n *Node)

	// Migrate transfers internal per-variant state (e.g. a cached build
	// time) from the structurally-equal old builder.
	Migrate(old Builder)

	// ReflectedFields returns this variant's migration/equality schema: a
	// static per-variant (name, kind, ignoreForComparison) record in place
	// of runtime reflection.
	ReflectedFields() []Field
}

// BuildResult is DoBuild's outcome.
type BuildResult int

const (
	BuildOK BuildResult = iota
	BuildNeedSecondPass
	BuildFailedResult
)

// FieldKind classifies a reflected field for migration comparison.
type FieldKind int

const (
	FieldScalar FieldKind = iota
	FieldStringSlice
	FieldStruct
)

// Field is one entry of a node variant's static reflection schema, used
// only for migration equality: a static per-variant schema in place of
// runtime introspection.
type Field struct {
	Name                string
	Kind                FieldKind
	IgnoreForComparison bool
	// Get returns the field's current value for comparison; two fields
	// compare equal when Get returns equal ==-comparable values (scalars,
	// or a canonical string for slices/structs built by the caller).
	Get func(b Builder) interface{}
}

// Node is the central entity of the graph: a typed vertex with its
// dependency lists, state, and stamp.
type Node struct {
	// Index is this node's stable position in the Graph's arena, used by
	// dependency (de)serialization, which stores dependencies as indices.
	Index int

	Name     string
	NameHash uint32
	Type     nbuild.NodeType

	state int32 // atomic State

	// Stamp is the 64-bit content fingerprint of the node's output. Zero
	// means "never successfully built / must rebuild". Only meaningful
	// when no ancestor in StaticDeps or DynamicDeps was declared dirty in
	// the same pass.
	Stamp uint64

	PreBuildDeps []Dependency
	StaticDeps   []Dependency
	DynamicDeps  []Dependency

	ControlFlags ControlFlags
	StatFlags    StatFlags

	RecursiveCost      float64
	BuildPassTag       uint32
	LastBuildTime      float64
	ProgressAccumulator float64

	Builder Builder
}

// State returns the node's current state. Safe to call concurrently with
// SetState: the orchestrator writes pre-dispatch, the worker writes on
// completion, and these are the only concurrent writers.
func (n *Node) State() State {
	return State(atomic.LoadInt32(&n.state))
}

// SetState publishes s via a release-store so the next orchestrator sweep
// observes it.
func (n *Node) SetState(s State) {
	atomic.StoreInt32(&n.state, int32(s))
}

// IsAFile reports whether this node produces a file on disk and therefore
// must carry a cleaned absolute path as its Name.
func (n *Node) IsAFile() bool {
	return n.Type.IsAFile()
}

// ResetForPass puts a non-terminal node back to NotProcessed, the same
// reset scheduler.BeginRequest applies to every node at the start of a
// top-level build request.
func (n *Node) ResetForPass() {
	if n.State().IsTerminal() {
		// Terminal states are left in place, as scheduler.BeginRequest
		// also leaves them.
		return
	}
	n.SetState(NotProcessed)
}
