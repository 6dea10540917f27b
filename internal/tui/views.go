package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/diskd-ai/ccbox/internal/domain"
	"github.com/diskd-ai/ccbox/internal/proc"
)

// View renders the current application state.
func (a *App) View() string {
	var body string
	switch a.level {
	case levelError:
		body = a.viewError()
	case levelProjects:
		body = a.viewProjects()
	case levelSessions:
		body = a.viewSessions()
	case levelDetail:
		body = a.viewDetail()
	case levelProcesses:
		body = a.viewProcesses()
	}

	switch a.modal {
	case modalConfirmDelete:
		body += "\n" + a.viewConfirmDelete()
	case modalSpawn:
		body += "\n" + a.viewSpawnForm()
	}

	return body + "\n" + a.viewFooter()
}

func (a *App) viewError() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("ccbox — error") + "\n\n")
	b.WriteString(ErrorStyle.Render(a.loadErr) + "\n\n")
	b.WriteString(DimStyle.Render("Set CODEX_SESSIONS_DIR (or roots in ~/.ccbox/config.yaml) to override the sessions root."))
	return b.String()
}

func (a *App) viewProjects() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Projects") + a.engineSuffix() + "\n")
	if a.filtering || a.filter.Value() != "" {
		b.WriteString(a.filter.View() + "\n")
	}
	b.WriteString("\n")

	if len(a.matches) == 0 {
		b.WriteString(DimStyle.Render("No projects.") + "\n")
		return b.String()
	}

	now := time.Now()
	for i, match := range a.matches {
		project := match.Project
		line := fmt.Sprintf("%-28s %3d sessions  %s",
			truncateName(project.Name, 28), project.SessionCount(), project.Path)
		if project.Online(now) {
			line = OnlineStyle.Render("● ") + line
		} else {
			line = "  " + line
		}
		if i == a.projectCursor {
			line = SelectedStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func (a *App) viewSessions() string {
	project := a.selectedProject()
	if project == nil {
		return DimStyle.Render("No project selected.")
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Sessions — "+project.Name) + a.engineSuffix() + "\n\n")

	now := time.Now()
	for i, session := range project.Sessions {
		line := fmt.Sprintf("%-20s %-8s %s",
			session.Meta.StartedAt, session.Engine.Label(), truncateName(session.Title, 60))
		if session.Online(now) {
			line = OnlineStyle.Render("● ") + line
		} else {
			line = "  " + line
		}
		if i == a.sessionCursor {
			line = SelectedStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}
	if len(project.Sessions) == 0 {
		b.WriteString(DimStyle.Render("No sessions.") + "\n")
	}
	return b.String()
}

func (a *App) viewDetail() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Timeline") + "\n\n")

	if a.tl == nil {
		b.WriteString(DimStyle.Render("Loading…") + "\n")
		return b.String()
	}

	visible := a.height - 10
	if visible < 5 {
		visible = 5
	}
	start := a.itemCursor - visible/2
	if start < 0 {
		start = 0
	}
	end := start + visible
	if end > len(a.tl.Items) {
		end = len(a.tl.Items)
	}

	for i := start; i < end; i++ {
		item := a.tl.Items[i]
		var line string
		if item.Kind == domain.KindTurn {
			line = DimStyle.Render("== " + item.Summary + " ==")
		} else {
			line = fmt.Sprintf("%7s  %-9s %s", formatOffset(item.OffsetMS), item.Kind.KindLabel(), item.Summary)
		}
		if i == a.itemCursor {
			line = SelectedStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}

	b.WriteString("\n" + a.detail.View())
	return b.String()
}

// syncDetail mirrors the selected item's full body into the viewport.
func (a *App) syncDetail() {
	if a.tl == nil || a.itemCursor >= len(a.tl.Items) {
		a.detail.SetContent("")
		return
	}
	a.detail.SetContent(a.tl.Items[a.itemCursor].Detail)
	a.detail.GotoTop()
}

func (a *App) viewProcesses() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Processes") + "\n\n")

	if a.supervisor == nil {
		b.WriteString(DimStyle.Render("Supervisor unavailable.") + "\n")
		return b.String()
	}
	procs := a.supervisor.List()
	if len(procs) == 0 {
		b.WriteString(DimStyle.Render("No spawned processes. Press n to start one.") + "\n")
		return b.String()
	}

	for i, process := range procs {
		status := string(process.Status.State)
		if process.Status.State == proc.StateExited {
			status = fmt.Sprintf("exited(%d)", process.Status.ExitCode)
		}
		session := process.AssociatedSessionID
		if session == "" {
			session = "-"
		}
		line := fmt.Sprintf("%-4s %-8s %-6s %-12s %-24s %s",
			process.ID, process.Engine.Label(), process.IOMode.Label(), status,
			session, process.PromptPreview)
		if i == a.procCursor {
			line = SelectedStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func (a *App) viewConfirmDelete() string {
	session := a.selectedSession()
	if session == nil {
		return ""
	}
	yes := ButtonStyle.Render("Delete")
	no := ActiveButtonStyle.Render("Keep")
	if a.confirmYes {
		yes = ActiveButtonStyle.Render("Delete")
		no = ButtonStyle.Render("Keep")
	}
	return DialogStyle.Render(fmt.Sprintf(
		"Delete session log?\n\n%s\n%s\n\n%s  %s",
		session.Title, session.LogPath, yes, no))
}

func (a *App) viewSpawnForm() string {
	return DialogStyle.Render(fmt.Sprintf(
		"New agent run\n\nengine: %s (ctrl+e)   io: %s (ctrl+t)\nproject: %s\n\n%s",
		a.spawnEngine.Label(), a.spawnIOMode.Label(),
		a.selectedProjectPathOrCwd(), a.spawnPrompt.View()))
}

func (a *App) viewFooter() string {
	parts := []string{"enter open", "esc back", "/ filter", "e engine", "n spawn", "p processes", "ctrl+q quit"}
	footer := strings.Join(parts, " · ")
	if a.warnings > 0 {
		footer += "  " + WarningStyle.Render(fmt.Sprintf("warnings: %d", a.warnings))
	}
	if len(a.notices) > 0 {
		footer += "  " + DimStyle.Render(a.notices[0])
	}
	if a.tl != nil && a.tl.Truncated && a.level == levelDetail {
		footer += "  " + WarningStyle.Render("truncated")
	}
	return FooterStyle.Render(footer)
}

func (a *App) engineSuffix() string {
	if a.engine == "" {
		return DimStyle.Render("  [all engines]")
	}
	return DimStyle.Render("  [" + a.engine.Label() + "]")
}

func truncateName(text string, width int) string {
	runes := []rune(text)
	if len(runes) <= width {
		return text
	}
	return string(runes[:width-1]) + "…"
}

func formatOffset(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
}
