package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/diskd-ai/ccbox/internal/config"
	"github.com/diskd-ai/ccbox/internal/domain"
	"github.com/diskd-ai/ccbox/internal/scan"
	"github.com/spf13/cobra"
)

var psCmd = &cobra.Command{
	Use:   "ps",
	Short: "List spawn work directories under the sessions root",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		stateDir, err := scan.ResolveStateDir()
		if err != nil {
			return err
		}
		cfg, err := config.Read(stateDir)
		if err != nil {
			cfg = config.DefaultConfig()
		}
		roots, err := resolveRoots(cfg)
		if err != nil {
			return err
		}

		processesDir := filepath.Join(roots.CodexSessions, ".ccbox", "processes")
		entries, err := os.ReadDir(processesDir)
		if os.IsNotExist(err) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading processes dir: %w", err)
		}

		names := make([]string, 0, len(entries))
		for _, entry := range entries {
			if entry.IsDir() && strings.HasPrefix(entry.Name(), "p") {
				names = append(names, entry.Name())
			}
		}
		sort.Slice(names, func(a, b int) bool {
			return processDirNum(names[a]) < processDirNum(names[b])
		})

		out := stdoutWriter()
		for _, name := range names {
			workDir := filepath.Join(processesDir, name)
			preview := "(no prompt)"
			if raw, err := os.ReadFile(filepath.Join(workDir, "prompt.txt")); err == nil {
				if line, ok := domain.FirstNonEmptyLine(string(raw)); ok {
					preview = domain.ClampSummary(line)
				}
			}
			size := int64(0)
			if info, err := os.Stat(filepath.Join(workDir, "process.log")); err == nil {
				size = info.Size()
			}
			out.Println(fmt.Sprintf("%s\t%d\t%s\t%s", name, size, preview, workDir))
			if out.Broken() {
				return nil
			}
		}
		return nil
	},
}

func processDirNum(name string) int {
	n := 0
	for i := 1; i < len(name); i++ {
		if name[i] < '0' || name[i] > '9' {
			return n
		}
		n = n*10 + int(name[i]-'0')
	}
	return n
}
