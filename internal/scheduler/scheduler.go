// Package scheduler implements the build-pass traversal: it sweeps from
// one or more requested targets, advances nodes through the state
// machine, stages ready nodes on the job queue, and detects cyclic
// dependencies at runtime.
package scheduler

import (
	"context"

	"github.com/nodegraph/nbuild/internal/graph"
	"github.com/nodegraph/nbuild/internal/ngerr"
)

// JobQueue is the narrow contract the scheduler needs from a worker pool;
// jobqueue.Queue satisfies it.
type JobQueue interface {
	AddJobToBatch(n *graph.Node)
	FlushJobBatch(ctx context.Context) error
	HasJobsToFlush() bool
	HasPendingCompletedJobs() bool
}

// Options configures one Scheduler.
type Options struct {
	// StopOnFirstError propagates a FAILED node's failure immediately
	// through check_dependencies instead of continuing the sweep.
	StopOnFirstError bool
	// ForceClean marks every node as needing a rebuild regardless of its
	// DetermineNeedToBuildStatic/Dynamic verdict.
	ForceClean bool
}

// Scheduler drives do_build_pass sweeps over a Graph.
type Scheduler struct {
	g    *graph.Graph
	q    JobQueue
	opts Options
}

// New returns a Scheduler over g using q as its job queue.
func New(g *graph.Graph, q JobQueue, opts Options) *Scheduler {
	return &Scheduler{g: g, q: q, opts: opts}
}

// DoBuildPass runs one full sweep from root. A monotonically increasing
// build-pass tag is bumped once per call; every node carries its own copy
// and is visited at most once per pass.
func (s *Scheduler) DoBuildPass(ctx context.Context, root *graph.Node) error {
	tag := s.g.NextPassTag()
	if root.State() < graph.Building && root.BuildPassTag != tag {
		root.BuildPassTag = tag
		s.buildRecurse(root, tag, 0)
	}
	if s.q.HasJobsToFlush() {
		if err := s.q.FlushJobBatch(ctx); err != nil {
			return err
		}
	}
	if s.noProgressMade(root) {
		if chain, ok := detectCycle(root); ok {
			return &ngerr.CyclicDependencyError{Chain: chain}
		}
	}
	return nil
}

// noProgressMade reports the precondition that must hold before the
// scheduler pays for a DFS cycle check: the root is not yet Building, there
// is nothing staged to flush, and nothing completed is waiting to be
// observed. This keeps the hot path free of O(N) work on every pass.
func (s *Scheduler) noProgressMade(root *graph.Node) bool {
	if root.State() == graph.Building {
		return false
	}
	if s.q.HasJobsToFlush() {
		return false
	}
	if s.q.HasPendingCompletedJobs() {
		return false
	}
	return true
}

// buildRecurse advances n through the state machine, accumulating cost
// along the way.
func (s *Scheduler) buildRecurse(n *graph.Node, tag uint32, cost float64) {
	cost += n.LastBuildTime

	switch n.State() {
	case graph.NotProcessed:
		if !s.checkDependencies(n, n.PreBuildDeps, tag, cost) {
			return
		}
		n.SetState(graph.StaticDeps)
		fallthrough

	case graph.StaticDeps:
		if !s.checkDependencies(n, n.StaticDeps, tag, cost) {
			return
		}
		if n.State() == graph.Failed {
			return
		}
		if s.opts.ForceClean || n.Builder.DetermineNeedToBuildStatic(n) {
			if n.Stamp == 0 {
				n.StatFlags |= graph.StatFirstBuild
			}
			n.Stamp = 0
			n.DynamicDeps = n.DynamicDeps[:0]
			if err := n.Builder.DoDynamicDependencies(s.g, n); err != nil {
				n.SetState(graph.Failed)
				return
			}
		}
		n.SetState(graph.DynamicDeps)
		fallthrough

	case graph.DynamicDeps:
		if !s.checkDependencies(n, n.DynamicDeps, tag, cost) {
			return
		}
		if n.State() == graph.Failed {
			return
		}
		n.StatFlags |= graph.StatProcessed
		if n.Stamp == 0 || n.Builder.DetermineNeedToBuildDynamic(n) || n.ControlFlags&graph.AlwaysBuild != 0 {
			n.RecursiveCost = cost
			s.q.AddJobToBatch(n)
		} else {
			n.SetState(graph.UpToDate)
		}

	case graph.Building, graph.UpToDate, graph.Failed:
		// Must not reach here; tolerate as a no-op so a stray re-visit
		// within the same pass (guarded by tag below) can never corrupt
		// state.
	}
}

// checkDependencies walks deps, recursing into any not-yet-visited
// dependency, and returns true ("all satisfied") iff nothing failed and
// nothing is still running.
func (s *Scheduler) checkDependencies(n *graph.Node, deps []graph.Dependency, tag uint32, cost float64) bool {
	anyFailed := false
	allTerminalOrRunning := true

	for _, dep := range deps {
		child := dep.Node
		if child.State() < graph.Building && child.BuildPassTag != tag {
			child.BuildPassTag = tag
			s.buildRecurse(child, tag, cost)
		}

		switch child.State() {
		case graph.UpToDate:
			// counts toward satisfied
		case graph.Building:
			if cost > n.RecursiveCost {
				n.RecursiveCost = cost
			}
			allTerminalOrRunning = false
		case graph.Failed:
			anyFailed = true
			if s.opts.StopOnFirstError {
				n.SetState(graph.Failed)
				return false
			}
		default:
			// Still earlier in the state machine: dependency chain isn't
			// ready yet.
			allTerminalOrRunning = false
		}
	}

	if anyFailed && !s.opts.StopOnFirstError {
		// Once every dep is terminal (UpToDate or Failed) and at least one
		// failed, n fails too.
		allTerminal := true
		for _, dep := range deps {
			if !dep.Node.State().IsTerminal() {
				allTerminal = false
				break
			}
		}
		if allTerminal {
			n.SetState(graph.Failed)
		}
	}

	return allTerminalOrRunning && !anyFailed
}

// BeginRequest resets every node below a terminal state back to
// NotProcessed, as required at the start of a top-level build request.
func BeginRequest(nodes []*graph.Node) {
	for _, n := range nodes {
		if !n.State().IsTerminal() {
			n.SetState(graph.NotProcessed)
		}
	}
}

// RunUntilDone repeatedly calls DoBuildPass until root reaches a terminal
// state, sleeping briefly between sweeps so the orchestrator never spins.
// Ctx cancellation or abort.IsSet() ends the loop early with
// ngerr.ErrCancelled.
func (s *Scheduler) RunUntilDone(ctx context.Context, root *graph.Node, abort interface{ IsSet() bool }, sleep func()) error {
	for !root.State().IsTerminal() {
		if ctx.Err() != nil || (abort != nil && abort.IsSet()) {
			return ngerr.ErrCancelled
		}
		if err := s.DoBuildPass(ctx, root); err != nil {
			return err
		}
		if !root.State().IsTerminal() {
			sleep()
		}
	}
	return nil
}
