package graph

import (
	"os"

	"github.com/nodegraph/nbuild"
	"github.com/nodegraph/nbuild/internal/hashing"
)

// The concrete Builder implementations below are reference node-type
// variants good enough to exercise the scheduler end-to-end (Proxy, File,
// Alias, CopyFile). The remaining variants' command-line construction
// (compilers, linkers, unity files, project-file generators) is an
// external collaborator's concern this repository does not implement;
// those NodeType constants exist in nbuild.NodeType purely so the graph,
// DB, and migration code has a closed set to switch over.

// ProxyBuilder is the synthetic root used to batch multiple top-level
// targets into one pass. It never builds anything itself; it is terminal
// only once every static dep has reached a terminal state.
type ProxyBuilder struct{}

func (ProxyBuilder) Initialize(g *Graph, n *Node, sourceToken string) error { return nil }
func (ProxyBuilder) DoDynamicDependencies(g *Graph, n *Node) error          { return nil }
func (ProxyBuilder) DetermineNeedToBuildStatic(n *Node) bool                { return false }
func (ProxyBuilder) DetermineNeedToBuildDynamic(n *Node) bool               { return false }
func (ProxyBuilder) DoBuild(n *Node) (BuildResult, error)                  { return BuildOK, nil }
func (ProxyBuilder) PostLoad(g *Graph, n *Node)                            {}
func (ProxyBuilder) Migrate(old Builder)                                   {}
func (ProxyBuilder) ReflectedFields() []Field                              { return nil }

// NewProxy creates a Proxy node depending (statically, non-weak) on each of
// targets, for use as a do_build_pass root that batches several requested
// targets into one traversal.
func NewProxy(g *Graph, name string, targets []*Node) (*Node, error) {
	n, err := g.CreateNode(name, nbuild.ProxyNode, ProxyBuilder{}, "")
	if err != nil {
		return nil, err
	}
	for _, t := range targets {
		g.AddStaticDependency(n, t, false)
	}
	return n, nil
}

// FileBuilder represents a leaf input file: its content hash is the
// stamp, and it is always processed (AlwaysBuild) since a file node
// performs no build step of its own — it only observes the file system.
type FileBuilder struct {
	Stat func(path string) (mtimeUnixNano int64, size int64, err error)
}

func (b *FileBuilder) Initialize(g *Graph, n *Node, sourceToken string) error {
	n.ControlFlags |= AlwaysBuild
	return nil
}
func (b *FileBuilder) DoDynamicDependencies(g *Graph, n *Node) error { return nil }
func (b *FileBuilder) DetermineNeedToBuildStatic(n *Node) bool       { return true }
func (b *FileBuilder) DetermineNeedToBuildDynamic(n *Node) bool      { return true }

func (b *FileBuilder) DoBuild(n *Node) (BuildResult, error) {
	data, err := os.ReadFile(n.Name)
	if err != nil {
		return BuildFailedResult, err
	}
	n.Stamp = hashing.Hash64(data)
	return BuildOK, nil
}
func (b *FileBuilder) PostLoad(g *Graph, n *Node) {}
func (b *FileBuilder) Migrate(old Builder)        {}
func (b *FileBuilder) ReflectedFields() []Field   { return nil }

// AliasBuilder groups other nodes under one name without producing output
// of its own; its stamp is the combined hash of its static deps' stamps,
// so it changes whenever anything it groups changes.
type AliasBuilder struct{}

func (AliasBuilder) Initialize(g *Graph, n *Node, sourceToken string) error { return nil }
func (AliasBuilder) DoDynamicDependencies(g *Graph, n *Node) error          { return nil }
func (AliasBuilder) DetermineNeedToBuildStatic(n *Node) bool                { return true }
func (AliasBuilder) DetermineNeedToBuildDynamic(n *Node) bool               { return true }

func (AliasBuilder) DoBuild(n *Node) (BuildResult, error) {
	acc := hashing.NewAccumulator()
	for _, dep := range n.StaticDeps {
		acc.AddUint64(dep.Node.Stamp)
	}
	n.Stamp = acc.Sum64()
	return BuildOK, nil
}
func (AliasBuilder) PostLoad(g *Graph, n *Node) {}
func (AliasBuilder) Migrate(old Builder)        {}
func (AliasBuilder) ReflectedFields() []Field   { return nil }

// CopyFileBuilder copies its single source dependency's content to Dest.
// Dest must be a file path (not a directory), matching
// ngerr.ErrCopyDestMissingSlash's counterpart check for CopyDir.
type CopyFileBuilder struct {
	Dest   string
	Source *Node
}

func (b *CopyFileBuilder) Initialize(g *Graph, n *Node, sourceToken string) error {
	g.AddStaticDependency(n, b.Source, false)
	return nil
}
func (b *CopyFileBuilder) DoDynamicDependencies(g *Graph, n *Node) error { return nil }
func (b *CopyFileBuilder) DetermineNeedToBuildStatic(n *Node) bool {
	return n.Stamp != n.StaticDeps[0].Node.Stamp
}
func (b *CopyFileBuilder) DetermineNeedToBuildDynamic(n *Node) bool { return true }

func (b *CopyFileBuilder) DoBuild(n *Node) (BuildResult, error) {
	data, err := os.ReadFile(b.Source.Name)
	if err != nil {
		return BuildFailedResult, err
	}
	if err := os.WriteFile(b.Dest, data, 0o644); err != nil {
		return BuildFailedResult, err
	}
	n.Stamp = b.Source.Stamp
	return BuildOK, nil
}
func (b *CopyFileBuilder) PostLoad(g *Graph, n *Node) {
	if b.Source == nil && len(n.StaticDeps) > 0 {
		b.Source = n.StaticDeps[0].Node
	}
}
func (b *CopyFileBuilder) Migrate(old Builder) {
	if o, ok := old.(*CopyFileBuilder); ok {
		b.Dest = o.Dest
	}
}
func (b *CopyFileBuilder) ReflectedFields() []Field {
	return []Field{
		{Name: "Dest", Kind: FieldScalar, Get: func(bb Builder) interface{} { return bb.(*CopyFileBuilder).Dest }},
	}
}

// EncodePayload/DecodePayload implement ngdb.PayloadCodec so Dest survives
// a database save/load cycle; Source is re-wired by PostLoad from the
// node's first static dependency, since it is a node reference rather
// than scalar state.
func (b *CopyFileBuilder) EncodePayload() ([]byte, error) {
	return []byte(b.Dest), nil
}

func (b *CopyFileBuilder) DecodePayload(data []byte) error {
	b.Dest = string(data)
	return nil
}
