package graph

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/nodegraph/nbuild"
	"github.com/nodegraph/nbuild/internal/ngdb"
)

func TestToDatabaseFromDatabaseRoundTrip(t *testing.T) {
	g1 := New()
	src, _ := g1.CreateNode("/tmp/src.c", nbuild.FileNode, &FileBuilder{}, "")
	src.Stamp = 123

	copyNode, err := g1.CreateNode("/tmp/dst.c", nbuild.CopyFileNode, &CopyFileBuilder{Dest: "/tmp/dst.c", Source: src}, "")
	if err != nil {
		t.Fatal(err)
	}
	g1.AddStaticDependency(copyNode, src, false)
	copyNode.Stamp = 123

	db, err := ToDatabase(g1, "/tmp/build.bff")
	if err != nil {
		t.Fatalf("ToDatabase: %v", err)
	}
	if db.OriginalPath != "/tmp/build.bff" {
		t.Errorf("OriginalPath = %q", db.OriginalPath)
	}
	if len(db.Nodes) != 2 {
		t.Fatalf("len(db.Nodes) = %d, want 2", len(db.Nodes))
	}

	raw, err := ngdb.Save(db)
	if err != nil {
		t.Fatalf("ngdb.Save: %v", err)
	}
	loadedDB, err := ngdb.Load(raw)
	if err != nil {
		t.Fatalf("ngdb.Load: %v", err)
	}

	// The save/load round trip must reproduce every structural field
	// byte-for-byte, not just the handful this test happens to spot-check
	// below.
	if diff := cmp.Diff(db, loadedDB, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("Load(Save(db)) differs from db (-want +got):\n%s", diff)
	}

	g2, err := FromDatabase(loadedDB, func(rec ngdb.NodeRecord) Builder {
		switch rec.Type {
		case nbuild.FileNode:
			return &FileBuilder{}
		case nbuild.CopyFileNode:
			return &CopyFileBuilder{}
		default:
			t.Fatalf("unexpected node type in test fixture: %v", rec.Type)
			return nil
		}
	})
	if err != nil {
		t.Fatalf("FromDatabase: %v", err)
	}

	gotSrc, ok := g2.FindNodeExact("/tmp/src.c")
	if !ok {
		t.Fatal("source node missing after FromDatabase")
	}
	if gotSrc.Stamp != 123 {
		t.Errorf("source stamp = %d, want 123", gotSrc.Stamp)
	}

	gotCopy, ok := g2.FindNodeExact("/tmp/dst.c")
	if !ok {
		t.Fatal("copy node missing after FromDatabase")
	}
	if len(gotCopy.StaticDeps) != 1 || gotCopy.StaticDeps[0].Node != gotSrc {
		t.Fatalf("copy node's static dep did not resolve back to the source node")
	}

	cb, ok := gotCopy.Builder.(*CopyFileBuilder)
	if !ok {
		t.Fatalf("copy node's builder is %T, want *CopyFileBuilder", gotCopy.Builder)
	}
	if cb.Dest != "/tmp/dst.c" {
		t.Errorf("CopyFileBuilder.Dest did not survive the payload round trip: got %q", cb.Dest)
	}
}
