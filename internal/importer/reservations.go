package importer

import (
	"sync"

	"ferry/internal/naming"
)

// destinationAttempts bounds how often one import picks a new destination
// after losing it to another writer.
const destinationAttempts = 8

// reservations holds destination paths chosen by in-flight imports whose
// files may not exist yet.
type reservations struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func newReservations() *reservations {
	return &reservations{held: make(map[string]struct{})}
}

// reserve picks the first free variant of path that no other import holds and
// holds it until release.
func (r *reservations) reserve(path string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	dest, err := naming.UniqueFunc(path, func(candidate string) bool {
		_, ok := r.held[candidate]
		return ok
	})
	if err != nil {
		return "", err
	}
	r.held[dest] = struct{}{}
	return dest, nil
}

func (r *reservations) release(path string) {
	r.mu.Lock()
	delete(r.held, path)
	r.mu.Unlock()
}
