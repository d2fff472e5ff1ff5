package workflow

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"ferry/internal/agent"
	"ferry/internal/config"
	"ferry/internal/logging"
	"ferry/internal/queue"
)

// Importer runs an import for a claimed item.
type Importer interface {
	Run(ctx context.Context, item *queue.Item) (*queue.ImportRecord, error)
}

// ClientFactory builds agent clients for a configuration.
type ClientFactory func(agents []config.Agent, logger *slog.Logger) (map[string]agent.Client, error)

// Manager polls fetch agents and hands completed items to the importer.
type Manager struct {
	settings   *config.Holder
	store      *queue.Store
	logger     *slog.Logger
	importer   Importer
	newClients ClientFactory
	loadItem   func(ctx context.Context, id int64) (*queue.Item, error)

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	base    context.Context
	pollWG  sync.WaitGroup
	pollers map[string]*poller

	imports sync.WaitGroup
}

type poller struct {
	cfg      config.Agent
	client   agent.Client
	interval time.Duration
	logger   *slog.Logger

	busy     sync.Mutex
	wake     chan struct{}
	skipped  atomic.Int64
	lastPoll atomic.Pointer[time.Time]
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithClientFactory replaces agent.NewAll.
func WithClientFactory(factory ClientFactory) ManagerOption {
	return func(m *Manager) {
		if factory != nil {
			m.newClients = factory
		}
	}
}

// NewManager constructs a workflow manager.
func NewManager(settings *config.Holder, store *queue.Store, importer Importer, logger *slog.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		settings:   settings,
		store:      store,
		importer:   importer,
		logger:     logging.NewComponentLogger(logger, "workflow"),
		newClients: agent.NewAll,
		pollers:    make(map[string]*poller),
	}
	m.loadItem = store.GetByID
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// requestPoll asks for an early poll without blocking. Pending requests
// coalesce.
func (p *poller) requestPoll() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}
