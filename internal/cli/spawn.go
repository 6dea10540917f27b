package cli

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/diskd-ai/ccbox/internal/config"
	"github.com/diskd-ai/ccbox/internal/domain"
	"github.com/diskd-ai/ccbox/internal/proc"
	"github.com/diskd-ai/ccbox/internal/scan"
	"github.com/diskd-ai/ccbox/internal/tasks"
	"github.com/spf13/cobra"
)

var spawnProject string

var spawnCmd = &cobra.Command{
	Use:   "spawn [prompt...]",
	Short: "Spawn an agent child in pipe mode and stream its log",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := parseEngine(engineFlag)
		if err != nil {
			return err
		}
		if engine == "" {
			engine = domain.EngineCodex
		}
		if engine != domain.EngineCodex && engine != domain.EngineClaude {
			return usageError{err: fmt.Errorf("spawn supports codex and claude, not %s", engine)}
		}

		prompt := strings.Join(args, " ")
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
		projectPath := spawnProject
		if projectPath == "" {
			projectPath = "."
		}
		projectPath, err = filepath.Abs(projectPath)
		if err != nil {
			return fmt.Errorf("resolving project path: %w", err)
		}

		store, storeErr := tasks.NewStore(filepath.Join(stateDir, "tasks.db"))
		var task *tasks.Task
		if storeErr == nil {
			defer store.Close()
			task, _ = store.CreateTask(string(engine), projectPath, prompt)
		}

		supervisor, err := proc.NewSupervisor(roots.CodexSessions)
		if err != nil {
			return err
		}

		process, err := supervisor.Spawn(engine, projectPath, prompt, domain.IOModePipes)
		if err != nil {
			if task != nil {
				_ = store.UpdateStatus(task.ID, "failed", "", "")
			}
			return err
		}
		if task != nil {
			_ = store.UpdateStatus(task.ID, "running", process.ID, "")
		}

		out := stdoutWriter()
		errOut := stderrWriter()
		errOut.Printf("spawned %s as %s (pid %d), work dir %s",
			engine.Label(), process.ID, process.PID, process.WorkDir)

		// Tail the combined log until the child exits, then drain.
		var offset int64
		exited := false
		sessionID := ""
		for {
			select {
			case signal := <-supervisor.Signals():
				switch signal.Kind {
				case proc.SignalSessionMeta:
					sessionID = signal.SessionID
				case proc.SignalSessionLog:
					sessionID = signal.SessionID
					errOut.Printf("session: %s -> %s", signal.SessionID, signal.LogPath)
				case proc.SignalExit:
					exited = true
				}
			case <-time.After(200 * time.Millisecond):
			}

			chunk, next, readErr := proc.ReadFrom(process.LogPath, offset, 64*1024)
			if readErr == nil && chunk != "" {
				for _, line := range strings.Split(strings.TrimRight(chunk, "\n"), "\n") {
					out.Println(line)
				}
				offset = next
			}

			if exited && chunk == "" {
				break
			}
			if out.Broken() {
				break
			}
		}

		final, _ := supervisor.Get(process.ID)
		if task != nil {
			status := "done"
			if final.Status.State == proc.StateFailed || final.Status.ExitCode != 0 {
				status = "failed"
			}
			_ = store.UpdateStatus(task.ID, status, process.ID, sessionID)
		}
		if final.Status.State == proc.StateExited && final.Status.ExitCode != 0 {
			return fmt.Errorf("child exited with code %d", final.Status.ExitCode)
		}
		return nil
	},
}

func init() {
	spawnCmd.Flags().StringVarP(&spawnProject, "project", "C", "", "Project directory for the child (default: current dir)")
}
