package rootfolder

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"ferry/internal/logging"
	"ferry/internal/queue"
	"ferry/internal/services"
)

// Location is a single probe of a root.
type Location = queue.RootLocation

// ProbeFunc reports whether path is a writable directory and its free bytes.
type ProbeFunc func(path string) (reachable bool, free uint64)

// Choice is the root selected for an import.
type Choice struct {
	Location
	Fallback bool
}

// Selector probes roots and records the measurements.
type Selector struct {
	store  *queue.Store
	logger *slog.Logger
	probe  ProbeFunc
	now    func() time.Time
}

// Option customizes a Selector.
type Option func(*Selector)

// WithProbe replaces the filesystem probe.
func WithProbe(probe ProbeFunc) Option {
	return func(s *Selector) {
		if probe != nil {
			s.probe = probe
		}
	}
}

// NewSelector builds a selector. store may be nil, in which case measurements
// are not cached.
func NewSelector(store *queue.Store, logger *slog.Logger, opts ...Option) *Selector {
	s := &Selector{
		store:  store,
		logger: logging.NewComponentLogger(logger, "rootfolder"),
		probe:  Probe,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Measure probes every root in configuration order and caches the results.
func (s *Selector) Measure(ctx context.Context, roots []string) []Location {
	out := make([]Location, 0, len(roots))
	for _, root := range roots {
		reachable, free := s.probe(root)
		loc := Location{Path: root, Reachable: reachable, CheckedAt: s.now().UTC()}
		if reachable {
			loc.FreeBytes = free
		}
		out = append(out, loc)
		if s.store == nil {
			continue
		}
		if err := s.store.UpsertRootLocation(ctx, loc); err != nil {
			logging.WarnWithContext(s.logger, "root measurement not cached", "root_cache_failed",
				logging.String("root", root),
				logging.Error(err),
				logging.String(logging.FieldImpact, "ferry roots may show stale data"),
			)
		}
	}
	return out
}

// Select measures roots and chooses one for a payload of size bytes that
// must leave buffer bytes free.
func (s *Selector) Select(ctx context.Context, roots []string, size, buffer uint64) (Choice, error) {
	choice, err := Choose(s.Measure(ctx, roots), size, buffer)
	if err != nil {
		return Choice{}, err
	}
	if choice.Fallback {
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "no root has room for payload; using root with most free space", "root_fallback",
			logging.String("root", choice.Path),
			logging.Uint64("free_bytes", choice.FreeBytes),
			logging.Uint64("required_bytes", size+buffer),
			logging.String(logging.FieldErrorHint, "free space on a library root or lower media.min_free_space_mb"),
			logging.String(logging.FieldImpact, "transfer may fail the free space check"),
		)
	}
	return choice, nil
}

// Choose applies the selection rules to already measured locations.
func Choose(locations []Location, size, buffer uint64) (Choice, error) {
	reachable := make([]Location, 0, len(locations))
	for _, loc := range locations {
		if loc.Reachable {
			reachable = append(reachable, loc)
		}
	}
	if len(reachable) == 0 {
		return Choice{}, services.Wrap(services.ErrStorageUnavailable, "rootfolder", "select root", "no reachable library roots", nil)
	}
	sort.SliceStable(reachable, func(i, j int) bool {
		return reachable[i].FreeBytes > reachable[j].FreeBytes
	})
	required := size + buffer
	for _, loc := range reachable {
		if loc.FreeBytes > required {
			return Choice{Location: loc}, nil
		}
	}
	return Choice{Location: reachable[0], Fallback: true}, nil
}
