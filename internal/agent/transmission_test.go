package agent_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"ferry/internal/agent"
	"ferry/internal/config"
	"ferry/internal/logging"
	"ferry/internal/queue"
)

type fakeTransmission struct {
	mu         sync.Mutex
	sessionID  string
	handshakes int
	torrent    map[string]any
	methods    []string
}

func (f *fakeTransmission) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.URL.Path != "/transmission/rpc" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if user, pass, ok := r.BasicAuth(); !ok || user != "admin" || pass != "secret" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if r.Header.Get("X-Transmission-Session-Id") != f.sessionID {
		f.handshakes++
		w.Header().Set("X-Transmission-Session-Id", f.sessionID)
		w.WriteHeader(http.StatusConflict)
		return
	}
	var req struct {
		Method    string         `json:"method"`
		Arguments map[string]any `json:"arguments"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	f.methods = append(f.methods, req.Method)
	args := map[string]any{}
	switch req.Method {
	case "torrent-add":
		args["torrent-added"] = map[string]any{"hashString": "FEED01", "id": 1, "name": "Harbor.Lights"}
	case "torrent-get":
		if f.torrent != nil {
			args["torrents"] = []map[string]any{f.torrent}
		} else {
			args["torrents"] = []map[string]any{}
		}
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"result": "success", "arguments": args})
}

func newTransmissionClient(t *testing.T, fake *fakeTransmission) agent.Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	cfg := agentConfig(t, srv, config.AgentTransmission)
	cfg.URLBase = "transmission"
	client, err := agent.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("agent.New: %v", err)
	}
	return client
}

func TestTransmissionHandshakeAndEnqueue(t *testing.T) {
	fake := &fakeTransmission{sessionID: "token-1"}
	client := newTransmissionClient(t, fake)
	ctx := context.Background()

	if handle := client.Enqueue(ctx, "magnet:?xt=urn:btih:feed01", "ferry"); handle != "feed01" {
		t.Fatalf("unexpected handle %q", handle)
	}
	// The daemon rotates its session id; the client must handshake again.
	fake.mu.Lock()
	fake.sessionID = "token-2"
	fake.torrent = map[string]any{"hashString": "feed01", "name": "Harbor.Lights", "status": 4, "percentDone": 0.4, "downloadDir": "/downloads"}
	fake.mu.Unlock()

	snap := client.Status(ctx, "feed01")
	if snap == nil || snap.Status != queue.StatusDownloading || snap.ContentPath != "/downloads/Harbor.Lights" {
		t.Fatalf("unexpected snapshot %#v", snap)
	}
	if fake.handshakes != 2 {
		t.Fatalf("expected two handshakes, got %d", fake.handshakes)
	}
}

func TestTransmissionStateMapping(t *testing.T) {
	cases := []struct {
		name    string
		torrent map[string]any
		want    queue.Status
	}{
		{"stopped complete", map[string]any{"status": 0, "percentDone": 1.0}, queue.StatusCompleted},
		{"stopped partial", map[string]any{"status": 0, "percentDone": 0.3}, queue.StatusPaused},
		{"check pending", map[string]any{"status": 1}, queue.StatusQueued},
		{"download pending", map[string]any{"status": 3}, queue.StatusQueued},
		{"seeding", map[string]any{"status": 6, "percentDone": 1.0}, queue.StatusCompleted},
		{"local error", map[string]any{"status": 4, "error": 3, "errorString": "No space left"}, queue.StatusFailed},
		{"tracker warning", map[string]any{"status": 4, "error": 1}, queue.StatusDownloading},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.torrent["hashString"] = "h"
			tc.torrent["name"] = "n"
			fake := &fakeTransmission{sessionID: "s", torrent: tc.torrent}
			client := newTransmissionClient(t, fake)
			snap := client.Status(context.Background(), "h")
			if snap == nil || snap.Status != tc.want {
				t.Fatalf("got %#v, want %s", snap, tc.want)
			}
		})
	}
}

func TestTransmissionControlCalls(t *testing.T) {
	fake := &fakeTransmission{sessionID: "s"}
	client := newTransmissionClient(t, fake)
	ctx := context.Background()

	if !client.Pause(ctx, "h") || !client.Resume(ctx, "h") || !client.Remove(ctx, "h", false) {
		t.Fatal("expected control calls to succeed")
	}
	want := []string{"torrent-stop", "torrent-start", "torrent-remove"}
	if len(fake.methods) != len(want) {
		t.Fatalf("unexpected methods %v", fake.methods)
	}
	for i := range want {
		if fake.methods[i] != want[i] {
			t.Fatalf("unexpected methods %v", fake.methods)
		}
	}
}
