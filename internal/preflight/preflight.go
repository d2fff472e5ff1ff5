package preflight

import (
	"context"
	"sort"

	"ferry/internal/agent"
	"ferry/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// clients maps agent names to their clients; agents without a client are
// reported as failed.
func RunAll(ctx context.Context, cfg *config.Config, clients map[string]agent.Client) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Data directory", cfg.Paths.DataDir))

	for _, root := range cfg.Media.Roots {
		results = append(results, CheckRoot(root))
	}

	names := make([]string, 0, len(cfg.Agents))
	for _, a := range cfg.Agents {
		names = append(names, a.Name)
	}
	sort.Strings(names)
	for _, name := range names {
		client, ok := clients[name]
		if !ok {
			results = append(results, Result{Name: "Agent " + name, Detail: "client unavailable"})
			continue
		}
		results = append(results, CheckAgent(ctx, client))
	}

	if cfg.Jellyfin.Enabled {
		results = append(results, CheckJellyfin(ctx, cfg.Jellyfin.URL, cfg.Jellyfin.APIKey))
	}

	return results
}

// Failed filters results down to the checks that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
