package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"ferry/internal/config"
	"ferry/internal/queue"
)

var sabQueueStates = map[string]queue.Status{
	"Queued":      queue.StatusQueued,
	"Grabbing":    queue.StatusQueued,
	"Fetching":    queue.StatusQueued,
	"Downloading": queue.StatusDownloading,
	"Paused":      queue.StatusPaused,
}

var sabHistoryStates = map[string]queue.Status{
	"Completed":  queue.StatusCompleted,
	"Failed":     queue.StatusFailed,
	"Extracting": queue.StatusDownloading,
	"Verifying":  queue.StatusDownloading,
	"Repairing":  queue.StatusDownloading,
	"Moving":     queue.StatusDownloading,
	"Running":    queue.StatusDownloading,
	"QuickCheck": queue.StatusDownloading,
}

type sabQueueSlot struct {
	NzoID      string `json:"nzo_id"`
	Status     string `json:"status"`
	Filename   string `json:"filename"`
	Percentage string `json:"percentage"`
}

type sabHistorySlot struct {
	NzoID       string `json:"nzo_id"`
	Status      string `json:"status"`
	Name        string `json:"name"`
	Storage     string `json:"storage"`
	FailMessage string `json:"fail_message"`
}

// sabnzbd speaks the SABnzbd HTTP API. The api key doubles as the session token.
type sabnzbd struct {
	base
	apiKey string
}

func newSABnzbd(cfg config.Agent, logger *slog.Logger) *sabnzbd {
	s := &sabnzbd{base: newBase(cfg, config.AgentSABnzbd, logger), apiKey: cfg.APIKey}
	s.session = newSession(s.login)
	return s
}

func (s *sabnzbd) login(ctx context.Context) (string, error) {
	if strings.TrimSpace(s.apiKey) == "" {
		return "", errors.New("sabnzbd api key not configured")
	}
	if _, err := s.get(ctx, s.apiKey, url.Values{"mode": {"auth"}}); err != nil {
		if errors.Is(err, errAuthRejected) {
			return "", errors.New("sabnzbd rejected api key")
		}
		return "", err
	}
	return s.apiKey, nil
}

func (s *sabnzbd) get(ctx context.Context, token string, params url.Values) ([]byte, error) {
	params.Set("apikey", token)
	params.Set("output", "json")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"/api?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, body, err := s.send(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{Code: resp.StatusCode, Body: string(body)}
	}
	text := string(body)
	if strings.Contains(text, "API Key Incorrect") || strings.Contains(text, "API Key Required") {
		return nil, errAuthRejected
	}
	var failure struct {
		Status *bool  `json:"status"`
		Error  string `json:"error"`
	}
	if json.Unmarshal(body, &failure) == nil && failure.Status != nil && !*failure.Status && failure.Error != "" {
		return nil, fmt.Errorf("sabnzbd: %s", failure.Error)
	}
	return body, nil
}

func (s *sabnzbd) call(ctx context.Context, params url.Values) ([]byte, error) {
	return withSession(ctx, s.session, func(ctx context.Context, token string) ([]byte, error) {
		clone := url.Values{}
		for k, v := range params {
			clone[k] = append([]string(nil), v...)
		}
		return s.get(ctx, token, clone)
	})
}

func (s *sabnzbd) TestConnection(ctx context.Context) error {
	s.session.reset()
	if _, err := s.call(ctx, url.Values{"mode": {"version"}}); err != nil {
		return s.unreachable(ctx, "test connection", err)
	}
	return nil
}

func (s *sabnzbd) Enqueue(ctx context.Context, sourceURI, category string) string {
	params := url.Values{"mode": {"addurl"}, "name": {sourceURI}}
	if category != "" {
		params.Set("cat", category)
	}
	body, err := s.call(ctx, params)
	if err != nil {
		s.unreachable(ctx, "enqueue", err)
		return ""
	}
	var out struct {
		Status bool     `json:"status"`
		NzoIDs []string `json:"nzo_ids"`
	}
	if err := json.Unmarshal(body, &out); err != nil || !out.Status || len(out.NzoIDs) == 0 {
		s.unreachable(ctx, "enqueue", errors.New("sabnzbd returned no nzo_id"))
		return ""
	}
	return out.NzoIDs[0]
}

func (s *sabnzbd) Status(ctx context.Context, handle string) *Snapshot {
	body, err := s.call(ctx, url.Values{"mode": {"queue"}, "nzo_ids": {handle}})
	if err != nil {
		s.unreachable(ctx, "status", err)
		return nil
	}
	var q struct {
		Queue struct {
			Slots []sabQueueSlot `json:"slots"`
		} `json:"queue"`
	}
	if err := json.Unmarshal(body, &q); err != nil {
		s.unreachable(ctx, "status", fmt.Errorf("decode queue: %w", err))
		return nil
	}
	for _, slot := range q.Queue.Slots {
		if slot.NzoID != handle {
			continue
		}
		pct, _ := strconv.ParseFloat(slot.Percentage, 64)
		return &Snapshot{
			Status:      s.mapState(sabQueueStates, slot.Status),
			VendorState: slot.Status,
			Progress:    pct / 100,
			Name:        slot.Filename,
		}
	}

	body, err = s.call(ctx, url.Values{"mode": {"history"}, "nzo_ids": {handle}})
	if err != nil {
		s.unreachable(ctx, "status", err)
		return nil
	}
	var h struct {
		History struct {
			Slots []sabHistorySlot `json:"slots"`
		} `json:"history"`
	}
	if err := json.Unmarshal(body, &h); err != nil {
		s.unreachable(ctx, "status", fmt.Errorf("decode history: %w", err))
		return nil
	}
	for _, slot := range h.History.Slots {
		if slot.NzoID != handle {
			continue
		}
		state := slot.Status
		if slot.FailMessage != "" {
			state += ": " + slot.FailMessage
		}
		snap := &Snapshot{
			Status:      s.mapState(sabHistoryStates, slot.Status),
			VendorState: state,
			Name:        slot.Name,
			ContentPath: slot.Storage,
		}
		if snap.Status == queue.StatusCompleted {
			snap.Progress = 1
		}
		return snap
	}
	return missingSnapshot()
}

func (s *sabnzbd) mapState(table map[string]queue.Status, state string) queue.Status {
	if status, ok := table[state]; ok {
		return status
	}
	s.unmapped(state)
	return queue.StatusDownloading
}

func (s *sabnzbd) queueAction(ctx context.Context, op string, params url.Values) bool {
	body, err := s.call(ctx, params)
	if err != nil {
		s.unreachable(ctx, op, err)
		return false
	}
	var out struct {
		Status bool `json:"status"`
	}
	if err := json.Unmarshal(body, &out); err != nil || !out.Status {
		s.unreachable(ctx, op, errors.New("sabnzbd reported failure"))
		return false
	}
	return true
}

func (s *sabnzbd) Pause(ctx context.Context, handle string) bool {
	return s.queueAction(ctx, "pause", url.Values{"mode": {"queue"}, "name": {"pause"}, "value": {handle}})
}

func (s *sabnzbd) Resume(ctx context.Context, handle string) bool {
	return s.queueAction(ctx, "resume", url.Values{"mode": {"queue"}, "name": {"resume"}, "value": {handle}})
}

func (s *sabnzbd) Remove(ctx context.Context, handle string, deleteData bool) bool {
	params := url.Values{"mode": {"queue"}, "name": {"delete"}, "value": {handle}}
	if deleteData {
		params.Set("del_files", "1")
	}
	return s.queueAction(ctx, "remove", params)
}
