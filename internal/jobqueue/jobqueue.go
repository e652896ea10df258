// Package jobqueue implements the worker-pool contract the scheduler uses
// to hand ready nodes to workers and observe completion.
// The queue guarantees a node is enqueued at most once concurrently;
// completion is reported by transitioning the node's state, which the next
// build pass observes. Workers never mutate graph
// structure — they only run Builder.DoBuild and report the result back
// through Complete.
package jobqueue

import (
	"context"
	"sync"

	"github.com/nodegraph/nbuild/internal/graph"
	"golang.org/x/sync/errgroup"
)

// Stats reports the queue's current load.
type Stats struct {
	Queued       int
	ActiveLocal  int
	QueuedRemote int
	ActiveRemote int
}

// Queue is the local worker pool: a bounded set of goroutines draining a
// batch of staged nodes via errgroup.
type Queue struct {
	mu      sync.Mutex
	staged  []*graph.Node
	active  int
	workers int

	completedMu sync.Mutex
	completed   []*graph.Node

	Remote RemoteBroker // optional; nil disables remote dispatch
}

// RemoteBroker is the seam a networked helper-worker dispatcher implements;
// the remote-worker brokerage protocol itself is an external
// collaborator's concern, so Queue only depends on this narrow interface.
type RemoteBroker interface {
	Dispatch(n *graph.Node) (accepted bool)
	QueuedCount() int
	ActiveCount() int
}

// New returns a Queue that runs up to workers DoBuild calls concurrently.
func New(workers int) *Queue {
	if workers < 1 {
		workers = 1
	}
	return &Queue{workers: workers}
}

// AddJobToBatch stages n for the next FlushJobBatch.
func (q *Queue) AddJobToBatch(n *graph.Node) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.staged = append(q.staged, n)
}

// HasJobsToFlush reports whether any node is staged but not yet flushed.
func (q *Queue) HasJobsToFlush() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.staged) > 0
}

// HasPendingCompletedJobs reports whether any job has finished but not yet
// been drained by DrainCompleted.
func (q *Queue) HasPendingCompletedJobs() bool {
	q.completedMu.Lock()
	defer q.completedMu.Unlock()
	return len(q.completed) > 0
}

// GetJobStats reports the queue's current load.
func (q *Queue) GetJobStats() Stats {
	q.mu.Lock()
	queued, active := len(q.staged), q.active
	q.mu.Unlock()

	s := Stats{Queued: queued, ActiveLocal: active}
	if q.Remote != nil {
		s.QueuedRemote = q.Remote.QueuedCount()
		s.ActiveRemote = q.Remote.ActiveCount()
	}
	return s
}

// FlushJobBatch publishes staged jobs to workers: each node transitions to
// Building before dispatch (written by the orchestrator, not the worker),
// then runs DoBuild concurrently bounded by q.workers. A
// node whose RemoteBroker accepts it is dispatched there instead of locally.
func (q *Queue) FlushJobBatch(ctx context.Context) error {
	q.mu.Lock()
	batch := q.staged
	q.staged = nil
	q.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	sem := make(chan struct{}, q.workers)
	g, _ := errgroup.WithContext(ctx)
	for _, n := range batch {
		n := n
		if q.Remote != nil && q.Remote.Dispatch(n) {
			continue
		}
		n.SetState(graph.Building)
		q.mu.Lock()
		q.active++
		q.mu.Unlock()
		sem <- struct{}{}
		g.Go(func() error {
			defer func() {
				<-sem
				q.mu.Lock()
				q.active--
				q.mu.Unlock()
			}()
			q.runOne(n)
			return nil
		})
	}
	return g.Wait()
}

func (q *Queue) runOne(n *graph.Node) {
	result, err := n.Builder.DoBuild(n)
	q.Complete(n, result, err)
}

// Complete transitions n to a terminal state based on result/err and
// records it for HasPendingCompletedJobs/DrainCompleted. Exported so a
// RemoteBroker implementation can report a remote node's completion through
// the same path a local worker uses.
func (q *Queue) Complete(n *graph.Node, result graph.BuildResult, err error) {
	if err != nil || result == graph.BuildFailedResult {
		n.SetState(graph.Failed)
	} else {
		n.SetState(graph.UpToDate)
	}
	q.completedMu.Lock()
	q.completed = append(q.completed, n)
	q.completedMu.Unlock()
}

// DrainCompleted returns and clears the set of nodes that finished since
// the last call.
func (q *Queue) DrainCompleted() []*graph.Node {
	q.completedMu.Lock()
	defer q.completedMu.Unlock()
	out := q.completed
	q.completed = nil
	return out
}
