package jobqueue

import (
	"context"
	"testing"

	"github.com/nodegraph/nbuild"
	"github.com/nodegraph/nbuild/internal/graph"
)

func TestFlushJobBatchCompletesAllStaged(t *testing.T) {
	g := graph.New()
	q := New(4)

	var nodes []*graph.Node
	for i := 0; i < 5; i++ {
		n, err := g.CreateNode(nameFor(i), nbuild.FileNode, &graph.FileBuilder{Stat: nil}, "")
		if err != nil {
			t.Fatal(err)
		}
		nodes = append(nodes, n)
		q.AddJobToBatch(n)
	}

	if !q.HasJobsToFlush() {
		t.Fatal("expected staged jobs before flush")
	}

	// FileBuilder.DoBuild reads the file from disk, which doesn't exist
	// here, so every job is expected to fail — we only assert completion
	// bookkeeping, not build success.
	_ = q.FlushJobBatch(context.Background())

	if q.HasJobsToFlush() {
		t.Error("expected no staged jobs remaining after flush")
	}
	completed := q.DrainCompleted()
	if len(completed) != len(nodes) {
		t.Errorf("completed %d nodes, want %d", len(completed), len(nodes))
	}
	for _, n := range completed {
		if n.State() != graph.Failed {
			t.Errorf("node %s: want Failed (file does not exist), got %v", n.Name, n.State())
		}
	}
}

func nameFor(i int) string {
	return "/nonexistent/job" + string(rune('a'+i))
}
