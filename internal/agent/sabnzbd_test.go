package agent_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"ferry/internal/agent"
	"ferry/internal/config"
	"ferry/internal/logging"
	"ferry/internal/queue"
)

func newSABServer(t *testing.T, queueSlots, historySlots []map[string]any) (*httptest.Server, *int) {
	t.Helper()
	authChecks := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("apikey") != "good-key" {
			fmt.Fprint(w, `{"status": false, "error": "API Key Incorrect"}`)
			return
		}
		switch q.Get("mode") {
		case "auth":
			authChecks++
			fmt.Fprint(w, `{"auth": "apikey"}`)
		case "version":
			fmt.Fprint(w, `{"version": "4.2.0"}`)
		case "addurl":
			fmt.Fprint(w, `{"status": true, "nzo_ids": ["SABnzbd_nzo_abc"]}`)
		case "queue":
			if q.Get("name") != "" {
				fmt.Fprint(w, `{"status": true}`)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"queue": map[string]any{"slots": queueSlots}})
		case "history":
			_ = json.NewEncoder(w).Encode(map[string]any{"history": map[string]any{"slots": historySlots}})
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &authChecks
}

func newSABClient(t *testing.T, srv *httptest.Server, apiKey string) agent.Client {
	t.Helper()
	cfg := agentConfig(t, srv, config.AgentSABnzbd)
	cfg.APIKey = apiKey
	client, err := agent.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("agent.New: %v", err)
	}
	return client
}

func TestSABnzbdQueueThenHistory(t *testing.T) {
	srv, _ := newSABServer(t,
		[]map[string]any{{"nzo_id": "SABnzbd_nzo_q", "status": "Downloading", "filename": "Harbor.Lights", "percentage": "42"}},
		[]map[string]any{{"nzo_id": "SABnzbd_nzo_h", "status": "Completed", "name": "Harbor.Lights", "storage": "/complete/Harbor.Lights"}},
	)
	client := newSABClient(t, srv, "good-key")
	ctx := context.Background()

	if handle := client.Enqueue(ctx, "https://indexer/nzb/1", "ferry"); handle != "SABnzbd_nzo_abc" {
		t.Fatalf("unexpected handle %q", handle)
	}

	snap := client.Status(ctx, "SABnzbd_nzo_q")
	if snap == nil || snap.Status != queue.StatusDownloading || snap.Progress != 0.42 {
		t.Fatalf("unexpected queue snapshot %#v", snap)
	}
	snap = client.Status(ctx, "SABnzbd_nzo_h")
	if snap == nil || snap.Status != queue.StatusCompleted || snap.ContentPath != "/complete/Harbor.Lights" {
		t.Fatalf("unexpected history snapshot %#v", snap)
	}
	snap = client.Status(ctx, "SABnzbd_nzo_gone")
	if snap == nil || snap.Status != queue.StatusFailed {
		t.Fatalf("expected missing snapshot, got %#v", snap)
	}
}

func TestSABnzbdHistoryStates(t *testing.T) {
	srv, _ := newSABServer(t, nil, []map[string]any{
		{"nzo_id": "a", "status": "Failed", "fail_message": "CRC error"},
		{"nzo_id": "b", "status": "Extracting"},
		{"nzo_id": "c", "status": "QuickCheck"},
	})
	client := newSABClient(t, srv, "good-key")
	ctx := context.Background()

	if snap := client.Status(ctx, "a"); snap == nil || snap.Status != queue.StatusFailed || snap.VendorState != "Failed: CRC error" {
		t.Fatalf("unexpected failed snapshot %#v", snap)
	}
	if snap := client.Status(ctx, "b"); snap == nil || snap.Status != queue.StatusDownloading {
		t.Fatalf("unexpected extracting snapshot %#v", snap)
	}
	if snap := client.Status(ctx, "c"); snap == nil || snap.Status != queue.StatusDownloading {
		t.Fatalf("unexpected quickcheck snapshot %#v", snap)
	}
}

func TestSABnzbdBadKeyFailsSoft(t *testing.T) {
	srv, authChecks := newSABServer(t, nil, nil)
	client := newSABClient(t, srv, "wrong-key")
	ctx := context.Background()

	if snap := client.Status(ctx, "x"); snap != nil {
		t.Fatalf("expected nil snapshot, got %#v", snap)
	}
	if err := client.TestConnection(ctx); err == nil {
		t.Fatal("expected connection test to fail")
	}
	if *authChecks != 0 {
		t.Fatalf("auth endpoint should reject before answering, got %d checks", *authChecks)
	}
}

func TestSABnzbdQueueActions(t *testing.T) {
	srv, _ := newSABServer(t, nil, nil)
	client := newSABClient(t, srv, "good-key")
	ctx := context.Background()
	if !client.Pause(ctx, "x") || !client.Resume(ctx, "x") || !client.Remove(ctx, "x", true) {
		t.Fatal("expected queue actions to succeed")
	}
}

func TestNewRejectsUnknownKind(t *testing.T) {
	if _, err := agent.New(config.Agent{Name: "x", Kind: "rtorrent"}, logging.NewNop()); err == nil {
		t.Fatal("expected unknown kind to be rejected")
	}
}
