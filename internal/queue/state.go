package queue

var transitions = map[Status][]Status{
	StatusQueued:      {StatusDownloading, StatusFailed},
	StatusDownloading: {StatusPaused, StatusCompleted, StatusFailed},
	StatusPaused:      {StatusDownloading, StatusFailed},
	StatusCompleted:   {StatusImporting, StatusFailed},
	StatusImporting:   {StatusImported, StatusFailed},
}

// IsTerminal reports whether no transition leaves status.
func IsTerminal(status Status) bool {
	return status == StatusImported || status == StatusFailed
}

// CanTransition reports whether from -> to is a legal single step.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionPath returns the shortest sequence of single steps that moves an
// item from one agent-observed status to another. Importing, imported and
// failed are never part of a path: they are driven by the importer and
// MarkFailed. A nil result means the target is unreachable or equal to from.
func TransitionPath(from, to Status) []Status {
	if from == to || !pathStatus(from) || !pathStatus(to) {
		return nil
	}
	prev := map[Status]Status{from: from}
	frontier := []Status{from}
	for len(frontier) > 0 {
		current := frontier[0]
		frontier = frontier[1:]
		for _, next := range transitions[current] {
			if !pathStatus(next) {
				continue
			}
			if _, seen := prev[next]; seen {
				continue
			}
			prev[next] = current
			if next == to {
				return unwind(prev, from, to)
			}
			frontier = append(frontier, next)
		}
	}
	return nil
}

func pathStatus(status Status) bool {
	switch status {
	case StatusQueued, StatusDownloading, StatusPaused, StatusCompleted:
		return true
	default:
		return false
	}
}

func unwind(prev map[Status]Status, from, to Status) []Status {
	var path []Status
	for step := to; step != from; step = prev[step] {
		path = append(path, step)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
