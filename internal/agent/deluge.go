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
	"sync/atomic"

	"ferry/internal/config"
	"ferry/internal/logging"
	"ferry/internal/queue"
)

const (
	delugeCookieName       = "_session_id"
	delugeNotAuthenticated = 1
)

var delugeStatusFields = []string{"name", "state", "progress", "save_path", "message"}

type delugeRequest struct {
	Method string `json:"method"`
	Params []any  `json:"params"`
	ID     int64  `json:"id"`
}

type delugeError struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

type delugeResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *delugeError    `json:"error"`
	ID     int64           `json:"id"`
}

type delugeTorrent struct {
	Name     string  `json:"name"`
	State    string  `json:"state"`
	Progress float64 `json:"progress"`
	SavePath string  `json:"save_path"`
	Message  string  `json:"message"`
}

// deluge speaks the Deluge Web UI JSON-RPC protocol.
type deluge struct {
	base
	seq atomic.Int64
}

func newDeluge(cfg config.Agent, logger *slog.Logger) *deluge {
	d := &deluge{base: newBase(cfg, config.AgentDeluge, logger)}
	d.session = newSession(d.login)
	return d
}

func (d *deluge) rpc(ctx context.Context, cookie, method string, params []any) (json.RawMessage, *http.Response, error) {
	if params == nil {
		params = []any{}
	}
	payload, err := json.Marshal(delugeRequest{Method: method, Params: params, ID: d.seq.Add(1)})
	if err != nil {
		return nil, nil, fmt.Errorf("encode %s: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint+"/json", bytes.NewReader(payload))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: delugeCookieName, Value: cookie})
	}
	resp, body, err := d.send(req)
	if err != nil {
		return nil, nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, resp, &statusError{Code: resp.StatusCode, Body: string(body)}
	}
	var envelope delugeResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, resp, fmt.Errorf("decode %s: %w", method, err)
	}
	if envelope.Error != nil {
		if envelope.Error.Code == delugeNotAuthenticated {
			return nil, resp, errAuthRejected
		}
		return nil, resp, fmt.Errorf("%s: %s (code %d)", method, envelope.Error.Message, envelope.Error.Code)
	}
	return envelope.Result, resp, nil
}

func (d *deluge) login(ctx context.Context) (string, error) {
	result, resp, err := d.rpc(ctx, "", "auth.login", []any{d.password})
	if err != nil {
		return "", err
	}
	var ok bool
	if err := json.Unmarshal(result, &ok); err != nil || !ok {
		return "", errors.New("deluge login rejected")
	}
	var cookie string
	for _, c := range resp.Cookies() {
		if c.Name == delugeCookieName {
			cookie = c.Value
		}
	}
	if cookie == "" {
		return "", errors.New("deluge login returned no session cookie")
	}
	if err := d.ensureConnected(ctx, cookie); err != nil {
		return "", err
	}
	return cookie, nil
}

// ensureConnected attaches the web UI to the first known daemon when it is
// not connected to one yet.
func (d *deluge) ensureConnected(ctx context.Context, cookie string) error {
	result, _, err := d.rpc(ctx, cookie, "web.connected", nil)
	if err != nil {
		return err
	}
	var connected bool
	if err := json.Unmarshal(result, &connected); err == nil && connected {
		return nil
	}
	result, _, err = d.rpc(ctx, cookie, "web.get_hosts", nil)
	if err != nil {
		return err
	}
	var hosts [][]any
	if err := json.Unmarshal(result, &hosts); err != nil {
		return fmt.Errorf("decode hosts: %w", err)
	}
	if len(hosts) == 0 || len(hosts[0]) == 0 {
		return errors.New("deluge web has no daemon hosts")
	}
	hostID, _ := hosts[0][0].(string)
	_, _, err = d.rpc(ctx, cookie, "web.connect", []any{hostID})
	return err
}

func (d *deluge) call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	return withSession(ctx, d.session, func(ctx context.Context, token string) (json.RawMessage, error) {
		result, _, err := d.rpc(ctx, token, method, params)
		return result, err
	})
}

func (d *deluge) TestConnection(ctx context.Context) error {
	d.session.reset()
	if _, err := d.call(ctx, "web.connected", nil); err != nil {
		return d.unreachable(ctx, "test connection", err)
	}
	return nil
}

func (d *deluge) Enqueue(ctx context.Context, sourceURI, category string) string {
	method := "core.add_torrent_url"
	if strings.HasPrefix(strings.ToLower(sourceURI), "magnet:") {
		method = "core.add_torrent_magnet"
	}
	result, err := d.call(ctx, method, []any{sourceURI, map[string]any{}})
	if err != nil {
		d.unreachable(ctx, "enqueue", err)
		return ""
	}
	var hash string
	if err := json.Unmarshal(result, &hash); err != nil || hash == "" {
		d.unreachable(ctx, "enqueue", errors.New("deluge returned no torrent id"))
		return ""
	}
	if category != "" {
		if _, err := d.call(ctx, "label.set_torrent", []any{hash, category}); err != nil {
			d.logger.Debug("deluge label not applied", logging.Error(err), logging.String("category", category))
		}
	}
	return strings.ToLower(hash)
}

func (d *deluge) Status(ctx context.Context, handle string) *Snapshot {
	result, err := d.call(ctx, "core.get_torrent_status", []any{handle, delugeStatusFields})
	if err != nil {
		d.unreachable(ctx, "status", err)
		return nil
	}
	var tor delugeTorrent
	if err := json.Unmarshal(result, &tor); err != nil {
		d.unreachable(ctx, "status", fmt.Errorf("decode status: %w", err))
		return nil
	}
	if tor.State == "" {
		return missingSnapshot()
	}
	snap := &Snapshot{
		Status:      d.mapState(tor.State, tor.Progress),
		VendorState: tor.State,
		Progress:    tor.Progress / 100,
		Name:        tor.Name,
	}
	if tor.SavePath != "" {
		snap.ContentPath = filepath.Join(tor.SavePath, tor.Name)
	}
	return snap
}

func (d *deluge) mapState(state string, progress float64) queue.Status {
	switch state {
	case "Queued", "Checking", "Allocating":
		return queue.StatusQueued
	case "Downloading", "Moving":
		return queue.StatusDownloading
	case "Seeding":
		return queue.StatusCompleted
	case "Paused":
		if progress >= 100 {
			return queue.StatusCompleted
		}
		return queue.StatusPaused
	case "Error":
		return queue.StatusFailed
	}
	d.unmapped(state)
	return queue.StatusDownloading
}

func (d *deluge) simple(ctx context.Context, op, method string, params []any) bool {
	if _, err := d.call(ctx, method, params); err != nil {
		d.unreachable(ctx, op, err)
		return false
	}
	return true
}

func (d *deluge) Pause(ctx context.Context, handle string) bool {
	return d.simple(ctx, "pause", "core.pause_torrent", []any{handle})
}

func (d *deluge) Resume(ctx context.Context, handle string) bool {
	return d.simple(ctx, "resume", "core.resume_torrent", []any{handle})
}

func (d *deluge) Remove(ctx context.Context, handle string, deleteData bool) bool {
	return d.simple(ctx, "remove", "core.remove_torrent", []any{handle, deleteData})
}
