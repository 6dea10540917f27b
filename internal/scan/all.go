package scan

import (
	"context"
	"sync"

	"github.com/diskd-ai/ccbox/internal/domain"
	"golang.org/x/sync/errgroup"
)

// All scans every engine root concurrently and merges the results. engine
// narrows the scan to a single engine when non-empty; the filter partitions
// at the source, so filtered engines are never touched. Per-engine failures
// are notices, never errors.
func All(ctx context.Context, roots Roots, engine domain.Engine) Output {
	type task struct {
		engine domain.Engine
		run    func() Output
	}

	tasks := []task{
		{domain.EngineCodex, func() Output { return Codex(roots.CodexSessions) }},
		{domain.EngineClaude, func() Output { return Claude(roots.ClaudeProjects) }},
		{domain.EngineGemini, func() Output { return Gemini(roots.GeminiRoot) }},
		{domain.EngineOpenCode, func() Output { return OpenCode(roots.OpenCodeDB) }},
	}

	var mu sync.Mutex
	var merged Output
	outputs := make(map[domain.Engine]Output, len(tasks))

	group, ctx := errgroup.WithContext(ctx)
	for _, t := range tasks {
		if engine != "" && t.engine != engine {
			continue
		}
		group.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			out := t.run()
			mu.Lock()
			outputs[t.engine] = out
			mu.Unlock()
			return nil
		})
	}
	_ = group.Wait()

	// Merge in fixed engine order so notices are stable across scans.
	for _, e := range domain.Engines {
		out, ok := outputs[e]
		if !ok {
			continue
		}
		merged.Sessions = append(merged.Sessions, out.Sessions...)
		merged.Warnings += out.Warnings
		merged.Notices = append(merged.Notices, out.Notices...)
	}
	return merged
}
