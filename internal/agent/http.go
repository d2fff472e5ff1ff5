package agent

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"ferry/internal/config"
	"ferry/internal/logging"
	"ferry/internal/services"
)

const maxResponseBytes = 8 << 20

// statusError reports an unexpected HTTP status from an agent.
type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		body = body[:200]
	}
	if body == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, body)
}

// base carries the transport and identity shared by every backend.
type base struct {
	name     string
	kind     string
	endpoint string
	username string
	password string
	http     *http.Client
	logger   *slog.Logger
	session  *session
}

func newBase(cfg config.Agent, kind string, logger *slog.Logger) base {
	if logger == nil {
		logger = logging.NewNop()
	}
	return base{
		name:     cfg.Name,
		kind:     kind,
		endpoint: strings.TrimRight(cfg.BaseURL(), "/"),
		username: cfg.Username,
		password: cfg.Password,
		http:     &http.Client{Timeout: cfg.Timeout()},
		logger:   logging.NewComponentLogger(logger, "agent").With(logging.FieldAgent, cfg.Name),
	}
}

func (b *base) Name() string { return b.name }

func (b *base) Kind() string { return b.kind }

// send executes req and reads the whole body. The caller inspects the status.
func (b *base) send(req *http.Request) (*http.Response, []byte, error) {
	resp, err := b.http.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp, nil, fmt.Errorf("read response: %w", err)
	}
	return resp, body, nil
}

// unreachable logs a failed agent call and returns it wrapped with
// services.ErrAgentUnreachable.
func (b *base) unreachable(ctx context.Context, op string, err error) error {
	wrapped := services.Wrap(services.ErrAgentUnreachable, "agent", op, b.name, err)
	logging.WarnWithContext(
		logging.WithContext(ctx, b.logger),
		"agent call failed",
		"agent_unreachable",
		logging.String("operation", op),
		logging.Error(wrapped),
		logging.String(logging.FieldErrorKind, services.Kind(wrapped)),
		logging.String(logging.FieldErrorHint, "check the agent is running and the credentials are valid"),
		logging.String(logging.FieldImpact, "item left unchanged until the next poll"),
	)
	return wrapped
}

func (b *base) unmapped(vendorState string) {
	b.logger.Debug("unmapped agent state treated as downloading", logging.String("vendor_state", vendorState))
}
