package entities

// DependencyGraph maps an event ID to the IDs of the events that caused it.
type DependencyGraph map[string][]string

// Reaches reports whether to is reachable from from by following caused-by
// references. It runs an iterative depth-first search with a visited set.
func (g DependencyGraph) Reaches(from, to string) bool {
	if from == to {
		return true
	}
	visited := map[string]bool{from: true}
	stack := []string{from}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, next := range g[current] {
			if next == to {
				return true
			}
			if !visited[next] {
				visited[next] = true
				stack = append(stack, next)
			}
		}
	}
	return false
}

// WouldCycle reports whether recording "eventID caused-by causeID" would make
// the dependency graph cyclic.
func (g DependencyGraph) WouldCycle(eventID, causeID string) bool {
	return g.Reaches(causeID, eventID)
}
