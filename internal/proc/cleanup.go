package proc

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// PruneWorkDirs removes exited-process work directories older than maxAge.
// Directories of processes this supervisor still reports as running are
// never touched. Returns the names of the pruned directories.
func (s *Supervisor) PruneWorkDirs(maxAge time.Duration, dryRun bool) ([]string, error) {
	entries, err := os.ReadDir(s.logsDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading process logs directory: %w", err)
	}

	s.mu.Lock()
	live := make(map[string]bool, len(s.children))
	for id, c := range s.children {
		if c.process.Status.State == StateRunning {
			live[id] = true
		}
	}
	s.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	var pruned []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() || !strings.HasPrefix(name, "p") || live[name] {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		pruned = append(pruned, name)
		if !dryRun {
			if err := os.RemoveAll(filepath.Join(s.logsDir, name)); err != nil {
				return pruned, fmt.Errorf("removing %s: %w", name, err)
			}
		}
	}

	sort.Slice(pruned, func(a, b int) bool {
		return processNum(pruned[a]) < processNum(pruned[b])
	})
	return pruned, nil
}
