package graph

import (
	"github.com/nodegraph/nbuild/internal/ngdb"
	"golang.org/x/xerrors"
)

// ToDatabase flattens g into an ngdb.Database: structural fields and
// dependency edges for every node, plus an optional payload blob for any
// Builder implementing ngdb.PayloadCodec.
func ToDatabase(g *Graph, originalPath string) (*ngdb.Database, error) {
	db := &ngdb.Database{OriginalPath: originalPath}
	db.Nodes = make([]ngdb.NodeRecord, len(g.nodes))
	db.Dependencies = make([][]ngdb.DepRecord, len(g.nodes))

	for i, n := range g.nodes {
		rec := ngdb.NodeRecord{
			Name:         n.Name,
			Type:         n.Type,
			Stamp:        n.Stamp,
			ControlFlags: uint32(n.ControlFlags),
			StatFlags:    uint32(n.StatFlags),
			PreBuildDeps: toDepRecords(n.PreBuildDeps),
			StaticDeps:   toDepRecords(n.StaticDeps),
		}
		if codec, ok := n.Builder.(ngdb.PayloadCodec); ok {
			payload, err := codec.EncodePayload()
			if err != nil {
				return nil, xerrors.Errorf("graph: encode payload for %q: %w", n.Name, err)
			}
			rec.Payload = payload
		}
		db.Nodes[i] = rec
		db.Dependencies[i] = toDepRecords(n.DynamicDeps)
	}
	return db, nil
}

func toDepRecords(deps []Dependency) []ngdb.DepRecord {
	out := make([]ngdb.DepRecord, len(deps))
	for i, d := range deps {
		out[i] = ngdb.DepRecord{TargetIndex: int32(d.Node.Index), Stamp: d.Stamp, Weak: d.Weak}
	}
	return out
}

// FromDatabase reconstructs a Graph from db. newBuilder is called once per
// node to obtain a fresh Builder for that node's type, which DecodePayload
// (if implemented) then populates. Dependency edges are resolved by index
// after every node exists, since a node's dependencies may reference
// nodes later in the arena.
func FromDatabase(db *ngdb.Database, newBuilder func(rec ngdb.NodeRecord) Builder) (*Graph, error) {
	g := New()
	for _, rec := range db.Nodes {
		b := newBuilder(rec)
		if codec, ok := b.(ngdb.PayloadCodec); ok && len(rec.Payload) > 0 {
			if err := codec.DecodePayload(rec.Payload); err != nil {
				return nil, xerrors.Errorf("graph: decode payload for %q: %w", rec.Name, err)
			}
		}
		n := &Node{
			Name:         rec.Name,
			Type:         rec.Type,
			Stamp:        rec.Stamp,
			ControlFlags: ControlFlags(rec.ControlFlags),
			StatFlags:    StatFlags(rec.StatFlags),
			Builder:      b,
		}
		if err := g.RegisterNode(n, ""); err != nil {
			return nil, err
		}
	}

	for i, n := range g.nodes {
		rec := db.Nodes[i]
		var err error
		if n.PreBuildDeps, err = resolveDeps(g, rec.PreBuildDeps); err != nil {
			return nil, err
		}
		if n.StaticDeps, err = resolveDeps(g, rec.StaticDeps); err != nil {
			return nil, err
		}
		if n.DynamicDeps, err = resolveDeps(g, db.Dependencies[i]); err != nil {
			return nil, err
		}
	}

	for _, n := range g.nodes {
		n.Builder.PostLoad(g, n)
	}

	return g, nil
}

func resolveDeps(g *Graph, recs []ngdb.DepRecord) ([]Dependency, error) {
	out := make([]Dependency, len(recs))
	for i, r := range recs {
		if int(r.TargetIndex) < 0 || int(r.TargetIndex) >= len(g.nodes) {
			return nil, xerrors.Errorf("graph: dependency index %d out of range", r.TargetIndex)
		}
		out[i] = Dependency{Node: g.nodes[r.TargetIndex], Stamp: r.Stamp, Weak: r.Weak}
	}
	return out, nil
}
