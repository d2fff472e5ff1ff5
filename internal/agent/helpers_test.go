package agent_test

import (
	"net"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"ferry/internal/config"
)

func agentConfig(t *testing.T, srv *httptest.Server, kind string) config.Agent {
	t.Helper()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse server url: %v", err)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		t.Fatalf("split host: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}
	return config.Agent{
		Name:           kind + "-test",
		Kind:           kind,
		Host:           host,
		Port:           port,
		Username:       "admin",
		Password:       "secret",
		Category:       "ferry",
		TimeoutSeconds: 2,
	}
}
