package jellyfin

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ferry/internal/config"
)

const (
	tokenHeader    = "X-Emby-Token"
	refreshPath    = "/Library/Refresh"
	requestTimeout = 15 * time.Second
)

// HTTPDoer is the subset of *http.Client the service needs.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Service asks the media server to rescan its libraries.
type Service interface {
	Refresh(ctx context.Context) error
}

// NewConfiguredService returns an HTTP refresher when Jellyfin is enabled and
// has both a URL and an API key. Any other configuration yields a no-op.
func NewConfiguredService(cfg config.Jellyfin) Service {
	svc := NewHTTPService(cfg.URL, cfg.APIKey, &http.Client{Timeout: requestTimeout})
	if !cfg.Enabled || svc.(*httpService).incomplete() {
		return noopService{}
	}
	return svc
}

// NewHTTPService constructs an HTTP-backed Jellyfin service.
func NewHTTPService(baseURL, apiKey string, client HTTPDoer) Service {
	return &httpService{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
		client:  client,
	}
}

type httpService struct {
	baseURL string
	apiKey  string
	client  HTTPDoer
}

func (s *httpService) incomplete() bool {
	return s.baseURL == "" || s.apiKey == ""
}

func (s *httpService) Refresh(ctx context.Context) error {
	if s == nil || s.client == nil || s.incomplete() {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+refreshPath, http.NoBody)
	if err != nil {
		return fmt.Errorf("build jellyfin refresh request: %w", err)
	}
	req.Header.Set(tokenHeader, s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("refresh jellyfin library: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("jellyfin refresh returned %s", resp.Status)
	}
	return nil
}

type noopService struct{}

func (noopService) Refresh(context.Context) error { return nil }
