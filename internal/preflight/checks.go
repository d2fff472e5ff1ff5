package preflight

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"ferry/internal/agent"
	"ferry/internal/rootfolder"
)

const (
	agentCheckTimeout    = 15 * time.Second
	jellyfinCheckTimeout = 5 * time.Second
)

// CheckAgent logs into the agent and reports whether it answered.
func CheckAgent(ctx context.Context, client agent.Client) Result {
	res := Result{Name: fmt.Sprintf("Agent %s (%s)", client.Name(), client.Kind())}

	ctx, cancel := context.WithTimeout(ctx, agentCheckTimeout)
	defer cancel()

	err := client.TestConnection(ctx)
	var netErr net.Error
	switch {
	case err == nil:
		res.Passed, res.Detail = true, "Reachable"
	case errors.Is(err, context.DeadlineExceeded):
		res.Detail = "connection timed out (agent unresponsive)"
	case errors.As(err, &netErr) && netErr.Timeout():
		res.Detail = "connection timed out (agent unreachable)"
	default:
		res.Detail = err.Error()
	}
	return res
}

// CheckJellyfin lists users with the API key, which fails fast on a bad key.
func CheckJellyfin(ctx context.Context, baseURL, apiKey string) Result {
	res := Result{Name: "Jellyfin"}
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	apiKey = strings.TrimSpace(apiKey)
	switch {
	case base == "":
		res.Detail = "missing url"
		return res
	case apiKey == "":
		res.Detail = "missing api key"
		return res
	}

	ctx, cancel := context.WithTimeout(ctx, jellyfinCheckTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/Users", http.NoBody)
	if err != nil {
		res.Detail = fmt.Sprintf("auth check failed (%v)", err)
		return res
	}
	req.Header.Set("X-Emby-Token", apiKey)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		res.Detail = fmt.Sprintf("auth check failed (%v)", err)
		return res
	}
	resp.Body.Close()

	switch code := resp.StatusCode; {
	case code == http.StatusOK:
		res.Passed, res.Detail = true, "Reachable"
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		res.Detail = "auth failed (invalid api key)"
	default:
		res.Detail = fmt.Sprintf("auth check failed (%d)", code)
	}
	return res
}

// CheckDirectoryAccess reports whether path is a directory the daemon can
// list, read and write.
func CheckDirectoryAccess(name, path string) Result {
	res := Result{Name: name}
	problem := ""
	if info, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		problem = "does not exist"
	} else if err != nil {
		problem = "stat: " + err.Error()
	} else if !info.IsDir() {
		problem = "is not a directory"
	} else if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		problem = "insufficient permissions: " + err.Error()
	}
	if problem != "" {
		res.Detail = fmt.Sprintf("%s (error: %s)", path, problem)
		return res
	}
	res.Passed, res.Detail = true, path+" (read/write ok)"
	return res
}

// CheckRoot is CheckDirectoryAccess for a library root, with free space
// appended to a passing detail.
func CheckRoot(path string) Result {
	res := CheckDirectoryAccess("Library root", path)
	if !res.Passed {
		return res
	}
	free := "free space unknown"
	if n, err := rootfolder.FreeBytes(path); err == nil {
		free = humanize.IBytes(n) + " free"
	}
	res.Detail = fmt.Sprintf("%s (read/write ok, %s)", path, free)
	return res
}
