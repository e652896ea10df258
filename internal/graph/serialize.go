package graph

import (
	"fmt"
	"io"
)

// SerializeToText writes a depth-first, human-readable dump of targets and
// their dependencies to w. Each node is visited at most once per call by
// comparing BuildPassTag to a freshly bumped pass counter — the same
// generation-counter idiom the scheduler uses for passes is reused here
// for graph dumps.
func (g *Graph) SerializeToText(targets []*Node, w io.Writer) error {
	tag := g.NextPassTag()
	for _, t := range targets {
		if err := serializeTextNode(w, t, tag, 0); err != nil {
			return err
		}
	}
	return nil
}

func serializeTextNode(w io.Writer, n *Node, tag uint32, depth int) error {
	if n.BuildPassTag == tag {
		return nil
	}
	n.BuildPassTag = tag
	indent := ""
	for i := 0; i < depth; i++ {
		indent += "  "
	}
	if _, err := fmt.Fprintf(w, "%s%s [%s] state=%s stamp=%x\n", indent, n.Name, n.Type, n.State(), n.Stamp); err != nil {
		return err
	}
	for _, dep := range n.StaticDeps {
		if err := serializeTextNode(w, dep.Node, tag, depth+1); err != nil {
			return err
		}
	}
	for _, dep := range n.DynamicDeps {
		if err := serializeTextNode(w, dep.Node, tag, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// SerializeToDot writes a Graphviz DOT rendering of targets' dependency
// closure. When full is false, only static dependencies are rendered
// (dynamic deps are omitted, matching a "pre-build" view of the graph).
func (g *Graph) SerializeToDot(targets []*Node, full bool, w io.Writer) error {
	if _, err := io.WriteString(w, "digraph nbuild {\n"); err != nil {
		return err
	}
	tag := g.NextPassTag()
	for _, t := range targets {
		if err := serializeDotNode(w, t, tag, full); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "}\n")
	return err
}

func serializeDotNode(w io.Writer, n *Node, tag uint32, full bool) error {
	if n.BuildPassTag == tag {
		return nil
	}
	n.BuildPassTag = tag
	if _, err := fmt.Fprintf(w, "  %q [label=%q];\n", n.Name, fmt.Sprintf("%s\\n%s", n.Name, n.Type)); err != nil {
		return err
	}
	edges := n.StaticDeps
	if full {
		edges = append(append([]Dependency{}, edges...), n.DynamicDeps...)
	}
	for _, dep := range edges {
		style := ""
		if dep.Weak {
			style = " [style=dashed]"
		}
		if _, err := fmt.Fprintf(w, "  %q -> %q%s;\n", n.Name, dep.Node.Name, style); err != nil {
			return err
		}
		if err := serializeDotNode(w, dep.Node, tag, full); err != nil {
			return err
		}
	}
	return nil
}
