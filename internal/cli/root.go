package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/diskd-ai/ccbox/internal/config"
	"github.com/diskd-ai/ccbox/internal/scan"
	"github.com/diskd-ai/ccbox/internal/tui"
)

var (
	engineFlag string
	version    = "dev" // set via ldflags at build time
)

// usageError marks argument problems; they exit 2 instead of 1.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

var rootCmd = &cobra.Command{
	Use:   "ccbox",
	Short: "Browse and supervise coding-agent sessions",
	Long: `ccbox indexes the on-disk session logs of Codex, Claude Code, Gemini,
and OpenCode, presents them as projects, sessions, and timelines, and can
spawn new agent runs whose output becomes additional sessions.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !tui.IsTTY() {
			return cmd.Help()
		}

		engine, err := parseEngineFlag()
		if err != nil {
			return err
		}
		app, err := buildApp(engine)
		if err != nil {
			return err
		}
		return tui.Run(app)
	},
}

func buildApp(engine string) (*tui.App, error) {
	stateDir, err := scan.ResolveStateDir()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Read(stateDir)
	if err != nil {
		cfg = config.DefaultConfig()
	}
	roots, err := resolveRoots(cfg)
	if err != nil {
		return nil, err
	}
	return tui.New(cfg, roots, stateDir, engine), nil
}

// Execute runs the root command. Exit codes: 0 success, 2 argument error,
// 1 data error.
func Execute() {
	// Writers swallow EPIPE so `ccbox history | head` is not an error.
	signal.Ignore(syscall.SIGPIPE)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var usage usageError
		if errors.As(err, &usage) || strings.HasPrefix(err.Error(), "unknown command") {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError{err: err}
	})
	rootCmd.PersistentFlags().StringVarP(&engineFlag, "engine", "e", "", "Restrict to one engine: codex, claude, gemini, opencode, all")

	rootCmd.AddCommand(projectsCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(skillsCmd)
	rootCmd.AddCommand(psCmd)
	rootCmd.AddCommand(spawnCmd)

	for _, cmd := range rootCmd.Commands() {
		validate := cmd.Args
		if validate == nil {
			continue
		}
		cmd.Args = func(c *cobra.Command, args []string) error {
			if err := validate(c, args); err != nil {
				return usageError{err: err}
			}
			return nil
		}
	}
}

func parseEngineFlag() (string, error) {
	engine, err := parseEngine(engineFlag)
	if err != nil {
		return "", err
	}
	return string(engine), nil
}

// resolveRoots layers config-file roots under the environment overrides.
func resolveRoots(cfg *config.Config) (scan.Roots, error) {
	roots, err := scan.ResolveRoots()
	if err != nil {
		return scan.Roots{}, err
	}
	if os.Getenv("CODEX_SESSIONS_DIR") == "" && cfg.Roots.CodexSessions != "" {
		roots.CodexSessions = cfg.Roots.CodexSessions
	}
	if os.Getenv("CLAUDE_PROJECTS_DIR") == "" && cfg.Roots.ClaudeProjects != "" {
		roots.ClaudeProjects = cfg.Roots.ClaudeProjects
	}
	if os.Getenv("CCBOX_GEMINI_DIR") == "" && cfg.Roots.GeminiRoot != "" {
		roots.GeminiRoot = cfg.Roots.GeminiRoot
	}
	if os.Getenv("CCBOX_OPENCODE_DB_PATH") == "" && cfg.Roots.OpenCodeDB != "" {
		roots.OpenCodeDB = cfg.Roots.OpenCodeDB
	}
	return roots, nil
}
