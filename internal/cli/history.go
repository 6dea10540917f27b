package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/diskd-ai/ccbox/internal/domain"
	"github.com/diskd-ai/ccbox/internal/timeline"
	"github.com/spf13/cobra"
)

var (
	historyID     string
	historyLimit  int
	historyOffset int
	historyFull   bool
	historySize   bool
)

var historyCmd = &cobra.Command{
	Use:   "history [log-or-project]",
	Short: "Print a session's timeline",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := parseEngine(engineFlag)
		if err != nil {
			return err
		}

		target := ""
		if len(args) == 1 {
			target = args[0]
		}
		logPath, err := resolveSessionLogPath(engine, target, historyID)
		if err != nil {
			return err
		}

		page, err := timeline.LoadPage(logPath, historyOffset, historyLimit)
		if err != nil {
			return err
		}

		out := stdoutWriter()
		printed := 0
		for _, item := range page.Items {
			printTimelineItem(out, item, historyFull)
			if out.Broken() {
				return nil
			}
			printed++
		}

		errOut := stderrWriter()
		if historySize {
			bytes := "?"
			if info, statErr := os.Stat(logPath); statErr == nil {
				bytes = fmt.Sprintf("%d", info.Size())
			}
			errOut.Printf("stats:\tbytes=%s\titems_total=%d\titems_printed=%d\toffset=%d\tlimit=%d",
				bytes, page.TotalItems, printed, historyOffset, historyLimit)
		}
		if page.Warnings > 0 {
			errOut.Printf("warnings: %d", page.Warnings)
		}
		if page.Truncated {
			errOut.Println("truncated: true")
		}
		return nil
	},
}

func printTimelineItem(out *lineWriter, item domain.Item, full bool) {
	if item.Kind == domain.KindTurn {
		out.Println("")
		out.Printf("== %s ==", item.Summary)
		return
	}

	kind := item.Kind.KindLabel()
	turnID := shortTurnID(item.TurnID)
	switch {
	case item.Timestamp == "" && turnID == "":
		out.Printf("%s: %s", kind, item.Summary)
	case item.Timestamp == "":
		out.Printf("[%s] %s: %s", turnID, kind, item.Summary)
	case turnID == "":
		out.Printf("[%s] %s: %s", item.Timestamp, kind, item.Summary)
	default:
		out.Printf("[%s] [%s] %s: %s", item.Timestamp, turnID, kind, item.Summary)
	}

	if full {
		detail := strings.TrimRight(item.Detail, " \t\r\n")
		if detail != "" {
			for _, line := range strings.Split(detail, "\n") {
				out.Println("  " + line)
			}
		}
		out.Println("")
	}
}

func shortTurnID(turnID string) string {
	if turnID == "" {
		return ""
	}
	runes := []rune(turnID)
	if len(runes) > 8 {
		return string(runes[:8])
	}
	return turnID
}

func init() {
	historyCmd.Flags().StringVar(&historyID, "id", "", "Session id to open")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 10, "Maximum items to print")
	historyCmd.Flags().IntVarP(&historyOffset, "offset", "o", 0, "Items to skip")
	historyCmd.Flags().BoolVar(&historyFull, "full", false, "Print item details under each summary")
	historyCmd.Flags().BoolVar(&historySize, "size", false, "Print a stats line to stderr")
}
