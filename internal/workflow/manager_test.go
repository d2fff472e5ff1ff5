package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ferry/internal/agent"
	"ferry/internal/config"
	"ferry/internal/logging"
	"ferry/internal/queue"
	"ferry/internal/testsupport"
	"ferry/internal/workflow"
)

type stubClient struct {
	name    string
	mu      sync.Mutex
	snap    *agent.Snapshot
	calls   atomic.Int64
	block   chan struct{}
	entered chan struct{}
}

func (s *stubClient) Name() string                                   { return s.name }
func (s *stubClient) Kind() string                                   { return "stub" }
func (s *stubClient) TestConnection(context.Context) error           { return nil }
func (s *stubClient) Enqueue(context.Context, string, string) string { return "" }
func (s *stubClient) Pause(context.Context, string) bool             { return true }
func (s *stubClient) Resume(context.Context, string) bool            { return true }
func (s *stubClient) Remove(context.Context, string, bool) bool      { return true }

func (s *stubClient) Status(context.Context, string) *agent.Snapshot {
	s.calls.Add(1)
	if s.entered != nil {
		select {
		case s.entered <- struct{}{}:
		default:
		}
	}
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap == nil {
		return nil
	}
	copy := *s.snap
	return &copy
}

func (s *stubClient) set(snap *agent.Snapshot) {
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
}

func stubFactory(clients map[string]*stubClient) workflow.ClientFactory {
	return func(agents []config.Agent, _ *slog.Logger) (map[string]agent.Client, error) {
		out := make(map[string]agent.Client, len(agents))
		for _, a := range agents {
			c, ok := clients[a.Name]
			if !ok {
				c = &stubClient{name: a.Name}
				clients[a.Name] = c
			}
			out[a.Name] = c
		}
		return out, nil
	}
}

type stubImporter struct {
	mu    sync.Mutex
	runs  []int64
	delay time.Duration
	done  atomic.Bool
}

func (s *stubImporter) Run(_ context.Context, item *queue.Item) (*queue.ImportRecord, error) {
	time.Sleep(s.delay)
	s.mu.Lock()
	s.runs = append(s.runs, item.ID)
	s.mu.Unlock()
	s.done.Store(true)
	return &queue.ImportRecord{QueueItemID: item.ID}, nil
}

func (s *stubImporter) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.runs)
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type harness struct {
	cfg     *config.Config
	store   *queue.Store
	lib     *queue.LibraryItem
	clients map[string]*stubClient
	imp     *stubImporter
	mgr     *workflow.Manager
}

func newHarness(t *testing.T, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	opts = append([]testsupport.ConfigOption{
		testsupport.WithAgent(config.Agent{Name: "qbit", Kind: config.AgentQBittorrent, Host: "127.0.0.1", Port: 9}),
	}, opts...)
	cfg := testsupport.NewConfig(t, opts...)
	cfg.Workflow.PollInterval = 3600
	store := testsupport.MustOpenStore(t, cfg)
	h := &harness{
		cfg:     cfg,
		store:   store,
		lib:     testsupport.NewLibraryItem(t, store, "Harbor Lights", "2024-03-15"),
		clients: map[string]*stubClient{},
		imp:     &stubImporter{},
	}
	h.mgr = workflow.NewManager(config.NewHolder("", cfg), store, h.imp, logging.NewNop(), workflow.WithClientFactory(stubFactory(h.clients)))
	return h
}

func (h *harness) client(name string) *stubClient {
	c, ok := h.clients[name]
	if !ok {
		c = &stubClient{name: name}
		h.clients[name] = c
	}
	return c
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	if err := h.mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(h.mgr.Stop)
}

func (h *harness) status(t *testing.T, id int64) *queue.Item {
	t.Helper()
	item, err := h.store.GetByID(context.Background(), id)
	if err != nil || item == nil {
		t.Fatalf("GetByID: %v", err)
	}
	return item
}

func TestPollWalksToCompletedAndStartsImport(t *testing.T) {
	h := newHarness(t)
	item := testsupport.NewQueueItem(t, h.store, h.lib, "qbit", "abc", queue.StatusQueued)
	h.client("qbit").set(&agent.Snapshot{Status: queue.StatusCompleted, VendorState: "uploading", ContentPath: "/downloads/Harbor"})
	h.start(t)

	eventually(t, "import run", func() bool { return h.imp.count() == 1 })
	got := h.status(t, item.ID)
	if got.Status != queue.StatusImporting {
		t.Fatalf("expected importing, got %s", got.Status)
	}
	if got.ContentPath != "/downloads/Harbor" {
		t.Fatalf("content path = %q", got.ContentPath)
	}

	h.mgr.Poll(context.Background(), "qbit")
	if h.imp.count() != 1 {
		t.Fatalf("importing item must not be claimed twice, runs = %d", h.imp.count())
	}
}

func TestPollMarksAgentFailure(t *testing.T) {
	h := newHarness(t)
	item := testsupport.NewQueueItem(t, h.store, h.lib, "qbit", "abc", queue.StatusDownloading)
	h.client("qbit").set(&agent.Snapshot{Status: queue.StatusFailed, VendorState: "missingFiles"})
	h.start(t)

	eventually(t, "failed status", func() bool { return h.status(t, item.ID).Status == queue.StatusFailed })
	if msg := h.status(t, item.ID).ErrorMessage; msg != "agent reported missingFiles" {
		t.Fatalf("error message = %q", msg)
	}
}

func TestPollLeavesItemWhenAgentUnreachable(t *testing.T) {
	h := newHarness(t)
	item := testsupport.NewQueueItem(t, h.store, h.lib, "qbit", "abc", queue.StatusDownloading)
	h.start(t)

	eventually(t, "first poll", func() bool { return h.client("qbit").calls.Load() >= 1 })
	h.mgr.Poll(context.Background(), "qbit")
	if got := h.status(t, item.ID); got.Status != queue.StatusDownloading {
		t.Fatalf("expected item untouched, got %s", got.Status)
	}
}

func TestPollIgnoresBackwardsState(t *testing.T) {
	h := newHarness(t)
	item := testsupport.NewQueueItem(t, h.store, h.lib, "qbit", "abc", queue.StatusPaused)
	h.client("qbit").set(&agent.Snapshot{Status: queue.StatusQueued, VendorState: "queuedDL"})
	h.start(t)

	eventually(t, "first poll", func() bool { return h.client("qbit").calls.Load() >= 1 })
	h.mgr.Poll(context.Background(), "qbit")
	if got := h.status(t, item.ID); got.Status != queue.StatusPaused {
		t.Fatalf("expected paused, got %s", got.Status)
	}
}

func TestRolledBackItemIsReclaimedWithoutAgent(t *testing.T) {
	h := newHarness(t)
	item := testsupport.NewQueueItem(t, h.store, h.lib, "qbit", "abc", queue.StatusCompleted)
	if err := h.store.SetContentPath(context.Background(), item.ID, "/downloads/Harbor"); err != nil {
		t.Fatalf("SetContentPath: %v", err)
	}
	h.start(t)

	eventually(t, "import run", func() bool { return h.imp.count() == 1 })
	if calls := h.client("qbit").calls.Load(); calls != 0 {
		t.Fatalf("expected no agent status calls, got %d", calls)
	}
}

func TestClaimedItemThatCannotBeLoadedIsFailed(t *testing.T) {
	h := newHarness(t)
	item := testsupport.NewQueueItem(t, h.store, h.lib, "qbit", "abc", queue.StatusCompleted)
	if err := h.store.SetContentPath(context.Background(), item.ID, "/downloads/Harbor"); err != nil {
		t.Fatalf("SetContentPath: %v", err)
	}
	h.mgr = workflow.NewManager(config.NewHolder("", h.cfg), h.store, h.imp, logging.NewNop(),
		workflow.WithClientFactory(stubFactory(h.clients)),
		workflow.WithItemLoader(func(context.Context, int64) (*queue.Item, error) {
			return nil, errors.New("disk I/O error")
		}),
	)
	h.start(t)

	eventually(t, "failed status", func() bool { return h.status(t, item.ID).Status == queue.StatusFailed })
	if msg := h.status(t, item.ID).ErrorMessage; !strings.Contains(msg, "disk I/O error") {
		t.Fatalf("error message = %q", msg)
	}
	if h.imp.count() != 0 {
		t.Fatalf("importer must not run, runs = %d", h.imp.count())
	}
}

func TestOverlappingPollIsSkipped(t *testing.T) {
	h := newHarness(t)
	testsupport.NewQueueItem(t, h.store, h.lib, "qbit", "abc", queue.StatusDownloading)
	c := h.client("qbit")
	c.block = make(chan struct{})
	c.entered = make(chan struct{}, 1)
	h.start(t)

	select {
	case <-c.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("initial poll never reached the agent")
	}
	if h.mgr.Poll(context.Background(), "qbit") {
		t.Fatal("expected overlapping poll to be skipped")
	}
	if skipped := h.mgr.SkippedPolls("qbit"); skipped != 1 {
		t.Fatalf("skipped polls = %d, want 1", skipped)
	}
	close(c.block)
}

func TestCompletedDirEventRequestsEarlyPoll(t *testing.T) {
	h := newHarness(t)
	completed := h.cfg.Agents[0].CompletedDir
	if err := os.MkdirAll(completed, 0o755); err != nil {
		t.Fatal(err)
	}
	testsupport.NewQueueItem(t, h.store, h.lib, "qbit", "abc", queue.StatusDownloading)
	c := h.client("qbit")
	h.start(t)

	eventually(t, "initial poll", func() bool { return c.calls.Load() >= 1 })
	n := 0
	eventually(t, "watcher poll", func() bool {
		n++
		if err := os.Mkdir(filepath.Join(completed, fmt.Sprintf("payload-%d", n)), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		return c.calls.Load() >= 2
	})
}

func TestStopWaitsForImports(t *testing.T) {
	h := newHarness(t)
	h.imp.delay = 200 * time.Millisecond
	testsupport.NewQueueItem(t, h.store, h.lib, "qbit", "abc", queue.StatusQueued)
	h.client("qbit").set(&agent.Snapshot{Status: queue.StatusCompleted, ContentPath: "/downloads/Harbor"})
	if err := h.mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	eventually(t, "claim", func() bool {
		items, _ := h.store.List(context.Background(), queue.StatusImporting)
		return len(items) == 1
	})
	h.mgr.Stop()
	if !h.imp.done.Load() {
		t.Fatal("Stop returned before the import finished")
	}
}

func TestReloadRestartsPollersWithNewAgents(t *testing.T) {
	h := newHarness(t)
	path := filepath.Join(testsupport.BaseDir(h.cfg), "config.toml")
	writeConfig := func(agents ...string) {
		t.Helper()
		content := fmt.Sprintf("[paths]\ndata_dir = %q\nlog_dir = %q\n\n[media]\nroots = [%q]\n\n[workflow]\npoll_interval = 3600\n",
			h.cfg.Paths.DataDir, h.cfg.Paths.LogDir, h.cfg.Media.Roots[0])
		for _, name := range agents {
			content += fmt.Sprintf("\n[[agents]]\nname = %q\nkind = \"qbittorrent\"\nhost = \"127.0.0.1\"\nport = 9\n", name)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	writeConfig("qbit")
	holder := config.NewHolder(path, h.cfg)
	mgr := workflow.NewManager(holder, h.store, h.imp, logging.NewNop(), workflow.WithClientFactory(stubFactory(h.clients)))
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(mgr.Stop)

	writeConfig("alpha", "beta")
	if err := mgr.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	status := mgr.Status(context.Background())
	if len(status.Agents) != 2 || status.Agents[0].Name != "alpha" || status.Agents[1].Name != "beta" {
		t.Fatalf("unexpected agents after reload: %#v", status.Agents)
	}
	if mgr.Poll(context.Background(), "qbit") {
		t.Fatal("removed agent should no longer poll")
	}
}
