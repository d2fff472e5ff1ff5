package agent

import (
	"context"
	"errors"
	"sync"
)

// errAuthRejected marks a call the agent refused because the session token
// is missing, expired or otherwise stale.
var errAuthRejected = errors.New("agent rejected session")

type loginFunc func(ctx context.Context) (string, error)

// session caches the opaque token produced by login.
type session struct {
	mu    sync.Mutex
	token string
	login loginFunc
}

func newSession(login loginFunc) *session {
	return &session{login: login}
}

func (s *session) current(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != "" {
		return s.token, nil
	}
	token, err := s.login(ctx)
	if err != nil {
		return "", err
	}
	s.token = token
	return token, nil
}

// invalidate drops token if it is still the cached one. A token refreshed by
// a concurrent caller is kept.
func (s *session) invalidate(token string) {
	s.mu.Lock()
	if s.token == token {
		s.token = ""
	}
	s.mu.Unlock()
}

// reset forces the next call to log in again.
func (s *session) reset() {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
}

// withSession runs call with the cached token. When the agent rejects it the
// token is discarded, login runs once more and call is retried once.
func withSession[T any](ctx context.Context, s *session, call func(ctx context.Context, token string) (T, error)) (T, error) {
	var zero T
	token, err := s.current(ctx)
	if err != nil {
		return zero, err
	}
	result, err := call(ctx, token)
	if !errors.Is(err, errAuthRejected) {
		return result, err
	}
	s.invalidate(token)
	token, err = s.current(ctx)
	if err != nil {
		return zero, err
	}
	return call(ctx, token)
}
