package preflight

import (
	"context"

	"reelsmith/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes all applicable preflight checks for the given config.
// Provider checks only run when an instance-wide key is configured.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Assets directory", cfg.Paths.AssetsDir),
	}

	if cfg.Paths.TemplatesDir != "" {
		results = append(results, CheckDirectoryAccess("Templates directory", cfg.Paths.TemplatesDir))
	}

	if cfg.Generation.APIToken != "" {
		results = append(results, CheckReplicate(ctx, cfg.Generation.BaseURL, cfg.Generation.APIToken))
	}

	if cfg.Narration.APIKey != "" {
		results = append(results, CheckElevenLabs(ctx, cfg.Narration.BaseURL, cfg.Narration.APIKey))
	}

	if llmCfg := cfg.RefinerLLM(); llmCfg.APIKey != "" {
		results = append(results, CheckLLM(ctx, "Prompt refiner LLM", llmCfg))
	}

	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
