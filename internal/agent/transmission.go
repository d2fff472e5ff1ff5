package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"ferry/internal/config"
	"ferry/internal/queue"
)

const transmissionSessionHeader = "X-Transmission-Session-Id"

// Transmission torrent status codes.
const (
	trStopped         = 0
	trCheckPending    = 1
	trChecking        = 2
	trDownloadPending = 3
	trDownloading     = 4
	trSeedPending     = 5
	trSeeding         = 6
)

const trLocalError = 3

var trStatusNames = map[int]string{
	trStopped:         "stopped",
	trCheckPending:    "check_pending",
	trChecking:        "checking",
	trDownloadPending: "download_pending",
	trDownloading:     "downloading",
	trSeedPending:     "seed_pending",
	trSeeding:         "seeding",
}

var trTorrentFields = []string{"hashString", "name", "status", "percentDone", "error", "errorString", "downloadDir"}

type trRequest struct {
	Method    string `json:"method"`
	Arguments any    `json:"arguments,omitempty"`
}

type trResponse struct {
	Result    string          `json:"result"`
	Arguments json.RawMessage `json:"arguments"`
}

type trTorrent struct {
	HashString  string  `json:"hashString"`
	Name        string  `json:"name"`
	Status      int     `json:"status"`
	PercentDone float64 `json:"percentDone"`
	Error       int     `json:"error"`
	ErrorString string  `json:"errorString"`
	DownloadDir string  `json:"downloadDir"`
}

// transmission speaks the Transmission RPC protocol.
type transmission struct {
	base
}

func newTransmission(cfg config.Agent, logger *slog.Logger) *transmission {
	t := &transmission{base: newBase(cfg, config.AgentTransmission, logger)}
	t.session = newSession(t.handshake)
	return t
}

func (t *transmission) rpcURL() string {
	return t.endpoint + "/rpc"
}

func (t *transmission) newRequest(ctx context.Context, token string, payload []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.rpcURL(), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(transmissionSessionHeader, token)
	}
	if t.username != "" || t.password != "" {
		req.SetBasicAuth(t.username, t.password)
	}
	return req, nil
}

// handshake obtains the CSRF session id the daemon hands out on a 409.
func (t *transmission) handshake(ctx context.Context) (string, error) {
	payload, err := json.Marshal(trRequest{Method: "session-get"})
	if err != nil {
		return "", err
	}
	req, err := t.newRequest(ctx, "", payload)
	if err != nil {
		return "", err
	}
	resp, body, err := t.send(req)
	if err != nil {
		return "", err
	}
	switch resp.StatusCode {
	case http.StatusConflict, http.StatusOK:
		if id := resp.Header.Get(transmissionSessionHeader); id != "" {
			return id, nil
		}
		return "", errors.New("transmission did not provide a session id")
	case http.StatusUnauthorized:
		return "", errors.New("transmission rejected credentials")
	default:
		return "", &statusError{Code: resp.StatusCode, Body: string(body)}
	}
}

func (t *transmission) call(ctx context.Context, method string, args any, out any) error {
	payload, err := json.Marshal(trRequest{Method: method, Arguments: args})
	if err != nil {
		return fmt.Errorf("encode %s: %w", method, err)
	}
	_, err = withSession(ctx, t.session, func(ctx context.Context, token string) (struct{}, error) {
		req, err := t.newRequest(ctx, token, payload)
		if err != nil {
			return struct{}{}, err
		}
		resp, body, err := t.send(req)
		if err != nil {
			return struct{}{}, err
		}
		switch {
		case resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusUnauthorized:
			return struct{}{}, errAuthRejected
		case resp.StatusCode != http.StatusOK:
			return struct{}{}, &statusError{Code: resp.StatusCode, Body: string(body)}
		}
		var envelope trResponse
		if err := json.Unmarshal(body, &envelope); err != nil {
			return struct{}{}, fmt.Errorf("decode %s: %w", method, err)
		}
		if envelope.Result != "success" {
			return struct{}{}, fmt.Errorf("%s: %s", method, envelope.Result)
		}
		if out != nil && len(envelope.Arguments) > 0 {
			if err := json.Unmarshal(envelope.Arguments, out); err != nil {
				return struct{}{}, fmt.Errorf("decode %s arguments: %w", method, err)
			}
		}
		return struct{}{}, nil
	})
	return err
}

func (t *transmission) TestConnection(ctx context.Context) error {
	t.session.reset()
	if err := t.call(ctx, "session-get", nil, nil); err != nil {
		return t.unreachable(ctx, "test connection", err)
	}
	return nil
}

func (t *transmission) Enqueue(ctx context.Context, sourceURI, category string) string {
	args := map[string]any{"filename": sourceURI}
	if category != "" {
		args["labels"] = []string{category}
	}
	var out struct {
		Added     *trTorrent `json:"torrent-added"`
		Duplicate *trTorrent `json:"torrent-duplicate"`
	}
	if err := t.call(ctx, "torrent-add", args, &out); err != nil {
		t.unreachable(ctx, "enqueue", err)
		return ""
	}
	switch {
	case out.Added != nil:
		return strings.ToLower(out.Added.HashString)
	case out.Duplicate != nil:
		return strings.ToLower(out.Duplicate.HashString)
	}
	t.unreachable(ctx, "enqueue", errors.New("torrent-add returned no torrent"))
	return ""
}

func (t *transmission) Status(ctx context.Context, handle string) *Snapshot {
	var out struct {
		Torrents []trTorrent `json:"torrents"`
	}
	args := map[string]any{"ids": []string{handle}, "fields": trTorrentFields}
	if err := t.call(ctx, "torrent-get", args, &out); err != nil {
		t.unreachable(ctx, "status", err)
		return nil
	}
	if len(out.Torrents) == 0 {
		return missingSnapshot()
	}
	tor := out.Torrents[0]
	state := trStatusNames[tor.Status]
	if state == "" {
		state = fmt.Sprintf("status_%d", tor.Status)
	}
	if tor.Error == trLocalError {
		state = "error: " + tor.ErrorString
	}
	snap := &Snapshot{
		Status:      t.mapState(tor),
		VendorState: state,
		Progress:    tor.PercentDone,
		Name:        tor.Name,
	}
	if tor.DownloadDir != "" {
		snap.ContentPath = filepath.Join(tor.DownloadDir, tor.Name)
	}
	return snap
}

func (t *transmission) mapState(tor trTorrent) queue.Status {
	if tor.Error == trLocalError {
		return queue.StatusFailed
	}
	switch tor.Status {
	case trStopped:
		if tor.PercentDone >= 1 {
			return queue.StatusCompleted
		}
		return queue.StatusPaused
	case trCheckPending, trChecking, trDownloadPending:
		return queue.StatusQueued
	case trDownloading:
		return queue.StatusDownloading
	case trSeedPending, trSeeding:
		return queue.StatusCompleted
	}
	t.unmapped(fmt.Sprintf("status_%d", tor.Status))
	return queue.StatusDownloading
}

func (t *transmission) simple(ctx context.Context, op, method string, args map[string]any) bool {
	if err := t.call(ctx, method, args, nil); err != nil {
		t.unreachable(ctx, op, err)
		return false
	}
	return true
}

func (t *transmission) Pause(ctx context.Context, handle string) bool {
	return t.simple(ctx, "pause", "torrent-stop", map[string]any{"ids": []string{handle}})
}

func (t *transmission) Resume(ctx context.Context, handle string) bool {
	return t.simple(ctx, "resume", "torrent-start", map[string]any{"ids": []string{handle}})
}

func (t *transmission) Remove(ctx context.Context, handle string, deleteData bool) bool {
	return t.simple(ctx, "remove", "torrent-remove", map[string]any{
		"ids":               []string{handle},
		"delete-local-data": deleteData,
	})
}
