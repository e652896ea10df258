package graph

import (
	"strings"
	"testing"

	"github.com/nodegraph/nbuild"
)

func TestSerializeToTextVisitsSharedDepOnce(t *testing.T) {
	g := New()
	leaf, _ := g.CreateNode("/tmp/leaf.c", nbuild.FileNode, &FileBuilder{}, "")
	a, _ := g.CreateNode("/tmp/a.o", nbuild.ObjectNode, &AliasBuilder{}, "")
	b, _ := g.CreateNode("/tmp/b.o", nbuild.ObjectNode, &AliasBuilder{}, "")
	g.AddStaticDependency(a, leaf, false)
	g.AddStaticDependency(b, leaf, false)

	var buf strings.Builder
	if err := g.SerializeToText([]*Node{a, b}, &buf); err != nil {
		t.Fatalf("SerializeToText: %v", err)
	}
	out := buf.String()

	if strings.Count(out, "/tmp/leaf.c") != 1 {
		t.Errorf("shared dependency printed %d times, want 1:\n%s", strings.Count(out, "/tmp/leaf.c"), out)
	}
	if !strings.Contains(out, "/tmp/a.o") || !strings.Contains(out, "/tmp/b.o") {
		t.Errorf("missing expected root nodes in output:\n%s", out)
	}
}

func TestSerializeToDotRendersEdgesAndWeakStyle(t *testing.T) {
	g := New()
	leaf, _ := g.CreateNode("/tmp/leaf.c", nbuild.FileNode, &FileBuilder{}, "")
	root, _ := g.CreateNode("/tmp/root.o", nbuild.ObjectNode, &AliasBuilder{}, "")
	g.AddStaticDependency(root, leaf, true)

	var buf strings.Builder
	if err := g.SerializeToDot([]*Node{root}, true, &buf); err != nil {
		t.Fatalf("SerializeToDot: %v", err)
	}
	out := buf.String()

	if !strings.HasPrefix(out, "digraph nbuild {\n") || !strings.HasSuffix(out, "}\n") {
		t.Errorf("output is not a well-formed digraph block:\n%s", out)
	}
	if !strings.Contains(out, `"/tmp/root.o" -> "/tmp/leaf.c" [style=dashed];`) {
		t.Errorf("expected dashed edge for weak dependency, got:\n%s", out)
	}
}

func TestSerializeToDotOmitsDynamicDepsWhenNotFull(t *testing.T) {
	g := New()
	dyn, _ := g.CreateNode("/tmp/dyn.h", nbuild.FileNode, &FileBuilder{}, "")
	root, _ := g.CreateNode("/tmp/root.o", nbuild.ObjectNode, &AliasBuilder{}, "")
	root.DynamicDeps = append(root.DynamicDeps, Dependency{Node: dyn})

	var buf strings.Builder
	if err := g.SerializeToDot([]*Node{root}, false, &buf); err != nil {
		t.Fatalf("SerializeToDot: %v", err)
	}
	out := buf.String()

	if strings.Contains(out, "/tmp/dyn.h") {
		t.Errorf("dynamic dependency should be omitted when full=false, got:\n%s", out)
	}
}
