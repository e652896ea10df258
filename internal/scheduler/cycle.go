package scheduler

import "github.com/nodegraph/nbuild/internal/graph"

// detectCycle runs a DFS from root over static+dynamic+pre-build edges,
// against a stack of currently-visited nodes; any revisit of a node
// already on the stack is a cycle. It is only ever called
// after Scheduler.noProgressMade confirms the pass made no progress, so it
// never runs on the hot path.
func detectCycle(root *graph.Node) ([]string, bool) {
	onStack := map[*graph.Node]bool{}
	visited := map[*graph.Node]bool{}
	var stack []*graph.Node

	var dfs func(n *graph.Node) ([]string, bool)
	dfs = func(n *graph.Node) ([]string, bool) {
		if onStack[n] {
			// Found the cycle: unwind the stack from where n first
			// appeared.
			start := 0
			for i, s := range stack {
				if s == n {
					start = i
					break
				}
			}
			chain := make([]string, 0, len(stack)-start+1)
			for _, s := range stack[start:] {
				chain = append(chain, s.Name)
			}
			chain = append(chain, n.Name)
			return chain, true
		}
		if visited[n] {
			return nil, false
		}
		visited[n] = true
		onStack[n] = true
		stack = append(stack, n)

		for _, deps := range [][]graph.Dependency{n.PreBuildDeps, n.StaticDeps, n.DynamicDeps} {
			for _, dep := range deps {
				if chain, found := dfs(dep.Node); found {
					return chain, true
				}
			}
		}

		stack = stack[:len(stack)-1]
		onStack[n] = false
		return nil, false
	}

	return dfs(root)
}
