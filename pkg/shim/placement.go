package shim

// AgentStatus is the subset of agent state placement needs to know,
// independent of the full registration record pkg/clustermanager keeps.
type AgentStatus struct {
	ID             string
	Ready          bool
	InFlightCalls  int
}

// SelectAgent picks the least-loaded ready agent — adapted from the
// teacher's scheduler.selectNode round-robin-by-load strategy, relocated
// here because placement belongs to the shim, not the Runner. Returns ""
// if no agent is ready.
func SelectAgent(agents []AgentStatus) string {
	ready := filterReadyAgents(agents)
	if len(ready) == 0 {
		return ""
	}

	selected := ready[0]
	for _, a := range ready[1:] {
		if a.InFlightCalls < selected.InFlightCalls {
			selected = a
		}
	}
	return selected.ID
}

func filterReadyAgents(agents []AgentStatus) []AgentStatus {
	var ready []AgentStatus
	for _, a := range agents {
		if a.Ready {
			ready = append(ready, a)
		}
	}
	return ready
}
