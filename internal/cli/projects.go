package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List projects with session counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := parseEngine(engineFlag)
		if err != nil {
			return err
		}

		projects, warnings, notices, err := loadProjects(engine)
		if err != nil {
			return err
		}

		out := stdoutWriter()
		for _, project := range projects {
			if project.SessionCount() == 0 {
				continue
			}
			out.Println(fmt.Sprintf("%s\t%s\t%d", project.Name, project.Path, project.SessionCount()))
			if out.Broken() {
				return nil
			}
		}

		writeScanDiagnostics(stderrWriter(), notices, warnings)
		return nil
	},
}
