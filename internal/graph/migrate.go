package graph

import "github.com/nodegraph/nbuild/internal/ngerr"

// Migrate transfers stamps and dynamic children from old into g's nodes by
// structural equality. It visits children before parents — both of a
// node's PreBuildDeps and StaticDeps are migrated first — so a dynamic
// dependency re-created during migration already has its own deps settled.
//
// Migrate is deterministic: calling it twice on unchanged inputs produces
// an identical graph.
func (g *Graph) Migrate(old *Graph) {
	visited := make(map[*Node]bool, len(g.nodes))
	for _, n := range g.nodes {
		g.migrateNode(old, n, nil, visited)
	}
}

func (g *Graph) migrateNode(old *Graph, n *Node, oldHint *Node, visited map[*Node]bool) {
	if visited[n] {
		return
	}
	visited[n] = true

	for _, dep := range n.PreBuildDeps {
		g.migrateNode(old, dep.Node, nil, visited)
	}
	for _, dep := range n.StaticDeps {
		g.migrateNode(old, dep.Node, nil, visited)
	}

	var o *Node
	var ok bool
	if oldHint != nil {
		o, ok = oldHint, true
	} else {
		o, ok = old.FindNodeExact(n.Name)
	}
	if !ok {
		return // leave n as "must build"
	}
	if o.Type != n.Type {
		return
	}
	if !fieldsEqual(n.Builder, o.Builder) {
		return
	}
	if !depListsEqual(n.PreBuildDeps, o.PreBuildDeps) {
		return
	}
	if !depListsEqual(n.StaticDeps, o.StaticDeps) {
		return
	}

	n.Stamp = o.Stamp
	for i := range n.StaticDeps {
		n.StaticDeps[i].Stamp = o.StaticDeps[i].Stamp
	}

	n.DynamicDeps = n.DynamicDeps[:0]
	for _, oldDynDep := range o.DynamicDeps {
		target, ok := g.FindNodeExact(oldDynDep.Node.Name)
		if ok && target.Type == oldDynDep.Node.Type {
			n.DynamicDeps = append(n.DynamicDeps, Dependency{
				Node: target, Stamp: oldDynDep.Stamp, Weak: oldDynDep.Weak,
			})
			g.migrateNode(old, target, oldDynDep.Node, visited)
			continue
		}
		// Recreate the old node's dynamic dependency from its reflected
		// properties. This is the one place CreateNode is called during
		// migration rather than during parse.
		recreated := &Node{
			Name:    oldDynDep.Node.Name,
			Type:    oldDynDep.Node.Type,
			Builder: oldDynDep.Node.Builder,
		}
		if err := g.RegisterNode(recreated, ""); err != nil {
			continue
		}
		if err := recreated.Builder.Initialize(g, recreated, ""); err != nil {
			recreated.SetState(Failed)
		}
		n.DynamicDeps = append(n.DynamicDeps, Dependency{
			Node: recreated, Stamp: oldDynDep.Stamp, Weak: oldDynDep.Weak,
		})
		g.migrateNode(old, recreated, oldDynDep.Node, visited)
	}

	n.Builder.Migrate(o.Builder)
}

// fieldsEqual compares two builders' reflected fields field-by-field,
// honoring IgnoreForComparison.
func fieldsEqual(a, b Builder) bool {
	af, bf := a.ReflectedFields(), b.ReflectedFields()
	if len(af) != len(bf) {
		return false
	}
	for i := range af {
		if af[i].IgnoreForComparison {
			continue
		}
		if af[i].Name != bf[i].Name {
			return false
		}
		av, bv := af[i].Get(a), bf[i].Get(b)
		if av != bv {
			return false
		}
	}
	return true
}

// depListsEqual compares two dependency lists order-sensitively by
// (type, stamp, name).
func depListsEqual(a, b []Dependency) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		at, as, an := a[i].Key()
		bt, bs, bn := b[i].Key()
		if at != bt || as != bs || an != bn {
			return false
		}
	}
	return true
}

// AreNodesTheSame reports whether a and b are structurally equal by the
// same rules Migrate uses. It does
// not compare Stamp or dynamic deps, since those are exactly what Migrate
// transfers rather than requires identical beforehand.
func AreNodesTheSame(a, b *Node) error {
	if a.Name != b.Name || a.NameHash != b.NameHash {
		return ngerr.ErrNodePropertyChanged
	}
	if a.Type != b.Type {
		return ngerr.ErrNodePropertyChanged
	}
	if !fieldsEqual(a.Builder, b.Builder) {
		return ngerr.ErrNodePropertyChanged
	}
	if !depListsEqual(a.PreBuildDeps, b.PreBuildDeps) || !depListsEqual(a.StaticDeps, b.StaticDeps) {
		return ngerr.ErrNodePropertyChanged
	}
	return nil
}
