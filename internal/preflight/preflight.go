package preflight

import (
	"context"
	"fmt"

	"voicenotes/internal/config"
	"voicenotes/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every preflight check for the given config. The Telegram
// reachability check is skipped when bot is nil.
func RunAll(ctx context.Context, cfg *config.Config, bot Identifier) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Recordings directory", cfg.Paths.RecordingsDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Temp directory", cfg.Paths.TempDir),
		CheckToken(cfg),
		CheckChat(cfg),
	}
	for _, status := range CheckSystemDeps(cfg) {
		if !status.Available {
			results = append(results, Result{Name: status.Name, Detail: status.Detail})
			continue
		}
		detail := status.Command
		if version, err := deps.Version(ctx, status.Command); err == nil && version != "" {
			detail = fmt.Sprintf("%s (%s)", status.Command, version)
		}
		results = append(results, Result{Name: status.Name, Passed: true, Detail: detail})
	}
	if bot != nil {
		results = append(results, CheckTelegram(ctx, bot))
	}
	return results
}

// Failed returns the checks that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
