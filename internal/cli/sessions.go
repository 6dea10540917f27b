package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	sessionsLimit  int
	sessionsOffset int
	sessionsSize   bool
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions [project-path]",
	Short: "List sessions of a project, newest first",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := parseEngine(engineFlag)
		if err != nil {
			return err
		}

		projects, warnings, notices, err := loadProjects(engine)
		if err != nil {
			return err
		}

		requested := ""
		if len(args) == 1 {
			requested = args[0]
		}
		project, err := selectProject(projects, requested)
		if err != nil {
			return err
		}

		out := stdoutWriter()
		sessions := project.Sessions
		for i := sessionsOffset; i < len(sessions) && i < sessionsOffset+sessionsLimit; i++ {
			session := sessions[i]
			if sessionsSize {
				out.Println(fmt.Sprintf("%s\t%s\t%s\t%d\t%s",
					session.Meta.StartedAt, session.Meta.ID, session.Title,
					session.FileSizeBytes, session.LogPath))
			} else {
				out.Println(fmt.Sprintf("%s\t%s\t%s\t%s",
					session.Meta.StartedAt, session.Meta.ID, session.Title, session.LogPath))
			}
			if out.Broken() {
				return nil
			}
		}

		writeScanDiagnostics(stderrWriter(), notices, warnings)
		return nil
	},
}

func init() {
	sessionsCmd.Flags().IntVarP(&sessionsLimit, "limit", "l", 10, "Maximum sessions to print")
	sessionsCmd.Flags().IntVarP(&sessionsOffset, "offset", "o", 0, "Sessions to skip")
	sessionsCmd.Flags().BoolVar(&sessionsSize, "size", false, "Include file size column")
}
