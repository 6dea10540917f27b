package tui

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/diskd-ai/ccbox/internal/config"
	"github.com/diskd-ai/ccbox/internal/domain"
	"github.com/diskd-ai/ccbox/internal/index"
	"github.com/diskd-ai/ccbox/internal/log"
	"github.com/diskd-ai/ccbox/internal/proc"
	"github.com/diskd-ai/ccbox/internal/scan"
	"github.com/diskd-ai/ccbox/internal/timeline"
	"github.com/diskd-ai/ccbox/internal/watch"
)

// level identifies which list the cursor lives in.
type level int

const (
	levelProjects level = iota
	levelSessions
	levelDetail
	levelProcesses
	levelError
)

// modal overlays on top of the current level.
type modal int

const (
	modalNone modal = iota
	modalConfirmDelete
	modalSpawn
)

// Messages.
type (
	scanDoneMsg struct {
		projects []domain.ProjectSummary
		warnings int
		notices  []string
	}
	scanFailedMsg struct{ err error }
	refreshMsg    struct{}
	timelineMsg   struct {
		logPath string
		tl      *domain.Timeline
		err     error
	}
	procSignalMsg struct{ signal proc.Signal }
	attachDoneMsg struct{ err error }
)

// App is the full-screen browser: projects → sessions → timeline, plus the
// process list for spawned agents.
type App struct {
	cfg      *config.Config
	roots    scan.Roots
	stateDir string
	keys     KeyMap

	width  int
	height int

	level   level
	modal   modal
	loadErr string

	engine domain.Engine // "" = all

	projects  []domain.ProjectSummary
	matches   []index.Match
	filter    textinput.Model
	filtering bool
	warnings  int
	notices   []string

	projectCursor int
	sessionCursor int

	selectedProjectPath string
	selectedSessionID   string

	tl         *domain.Timeline
	tlPairs    map[int]int
	itemCursor int
	detail     viewport.Model

	supervisor *proc.Supervisor
	procCursor int

	watcher   *watch.Watcher
	refreshCh chan struct{}
	logger    *log.Logger

	confirmYes bool

	spawnPrompt textinput.Model
	spawnEngine domain.Engine
	spawnIOMode domain.SpawnIOMode

	pollCancel context.CancelFunc
}

// New assembles the TUI application.
func New(cfg *config.Config, roots scan.Roots, stateDir, engine string) *App {
	filter := textinput.New()
	filter.Placeholder = "filter projects"
	filter.CharLimit = 64

	spawnPrompt := textinput.New()
	spawnPrompt.Placeholder = "prompt for the agent"
	spawnPrompt.CharLimit = 4096

	return &App{
		cfg:         cfg,
		roots:       roots,
		stateDir:    stateDir,
		keys:        DefaultKeyMap,
		engine:      domain.Engine(engine),
		filter:      filter,
		spawnPrompt: spawnPrompt,
		spawnEngine: cfg.DefaultSpawnEngine(),
		spawnIOMode: cfg.DefaultSpawnIOMode(),
	}
}

// Init starts the first scan, the watcher, and the supervisor plumbing.
func (a *App) Init() tea.Cmd {
	if logger, err := log.NewLogger(a.stateDir); err == nil {
		a.logger = logger
	}
	if supervisor, err := proc.NewSupervisor(a.roots.CodexSessions); err == nil {
		a.supervisor = supervisor
	}
	if watcher, err := watch.New(a.roots.CodexSessions, a.roots.ClaudeProjects, a.roots.GeminiRoot); err == nil {
		a.watcher = watcher
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.pollCancel = cancel

	// One merged refresh stream: watcher events plus the OpenCode poll.
	a.refreshCh = make(chan struct{}, 1)
	notify := func() {
		select {
		case a.refreshCh <- struct{}{}:
		default:
		}
	}
	if a.watcher != nil {
		w := a.watcher
		go func() {
			for range w.Refresh() {
				notify()
			}
		}()
	}
	if a.engine == "" || a.engine == domain.EngineOpenCode {
		go watch.PollOpenCode(ctx, a.roots.OpenCodeDB, notify)
	}

	cmds := []tea.Cmd{a.scanCmd(), a.waitRefreshCmd()}
	if a.supervisor != nil {
		cmds = append(cmds, a.waitSignalCmd())
	}
	return tea.Batch(cmds...)
}

func (a *App) scanCmd() tea.Cmd {
	roots := a.roots
	engine := a.engine
	stateDir := a.stateDir
	return func() tea.Msg {
		// An explicitly configured Codex root that cannot be read is the one
		// fatal scan condition; everything else degrades to notices.
		if configured := os.Getenv("CODEX_SESSIONS_DIR"); configured != "" {
			if info, err := os.Stat(configured); err != nil || !info.IsDir() {
				return scanFailedMsg{err: fmt.Errorf("sessions root is not readable: %s", configured)}
			}
		}

		out := scan.All(context.Background(), roots, engine)
		if overrides, err := index.LoadOverrides(stateDir); err == nil {
			overrides.Apply(out.Sessions)
		}
		return scanDoneMsg{
			projects: index.Build(out.Sessions),
			warnings: out.Warnings,
			notices:  out.Notices,
		}
	}
}

func (a *App) waitRefreshCmd() tea.Cmd {
	ch := a.refreshCh
	return func() tea.Msg {
		<-ch
		return refreshMsg{}
	}
}

func (a *App) waitSignalCmd() tea.Cmd {
	s := a.supervisor
	return func() tea.Msg {
		return procSignalMsg{signal: <-s.Signals()}
	}
}

func (a *App) loadTimelineCmd(logPath string) tea.Cmd {
	return func() tea.Msg {
		tl, err := timeline.Load(logPath)
		return timelineMsg{logPath: logPath, tl: tl, err: err}
	}
}

// Update handles messages and updates the application state.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.detail.Width = msg.Width
		a.detail.Height = msg.Height - 4
		return a, nil

	case scanDoneMsg:
		a.projects = msg.projects
		a.warnings = msg.warnings
		a.notices = msg.notices
		a.rebuildMatches()
		a.restoreSelection()
		if a.level == levelError {
			a.level = levelProjects
		}
		return a, nil

	case scanFailedMsg:
		a.level = levelError
		a.loadErr = msg.err.Error()
		return a, nil

	case refreshMsg:
		cmds := []tea.Cmd{a.scanCmd(), a.waitRefreshCmd()}
		// Re-assemble an open detail view in the background; the selection
		// is preserved because items are addressed by cursor clamp.
		if a.level == levelDetail && a.tl != nil && a.selectedSessionLogPath() != "" {
			cmds = append(cmds, a.loadTimelineCmd(a.selectedSessionLogPath()))
		}
		return a, tea.Batch(cmds...)

	case timelineMsg:
		if msg.err != nil {
			a.loadErr = msg.err.Error()
			return a, nil
		}
		a.tl = msg.tl
		a.tlPairs = msg.tl.PairIndex()
		if a.itemCursor >= len(a.tl.Items) {
			a.itemCursor = len(a.tl.Items) - 1
		}
		if a.itemCursor < 0 {
			a.itemCursor = 0
		}
		a.syncDetail()
		return a, nil

	case procSignalMsg:
		if a.logger != nil {
			a.logProcSignal(msg.signal)
		}
		return a, a.waitSignalCmd()

	case attachDoneMsg:
		return a, nil

	case tea.KeyMsg:
		return a.updateKeys(msg)
	}

	return a, nil
}

func (a *App) logProcSignal(signal proc.Signal) {
	switch signal.Kind {
	case proc.SignalSessionLog:
		_ = a.logger.Append(log.Event{
			Event:     log.EventAssociationOK,
			ProcessID: signal.ProcessID,
			SessionID: signal.SessionID,
			Path:      signal.LogPath,
		})
	case proc.SignalAssocFailed:
		_ = a.logger.Append(log.Event{
			Event:     log.EventAssociationFailed,
			ProcessID: signal.ProcessID,
			SessionID: signal.SessionID,
		})
	case proc.SignalExit:
		_ = a.logger.Append(log.Event{
			Event:     log.EventProcessExited,
			ProcessID: signal.ProcessID,
			ExitCode:  signal.ExitCode,
		})
	}
}

func (a *App) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.modal == modalConfirmDelete {
		return a.updateConfirmDelete(msg)
	}
	if a.modal == modalSpawn {
		return a.updateSpawnForm(msg)
	}
	if a.filtering {
		return a.updateFilterInput(msg)
	}

	switch {
	case key.Matches(msg, a.keys.Quit):
		a.shutdown()
		return a, tea.Quit

	case key.Matches(msg, a.keys.Up):
		a.moveCursor(-1)
	case key.Matches(msg, a.keys.Down):
		a.moveCursor(1)

	case key.Matches(msg, a.keys.Enter):
		return a.enter()

	case key.Matches(msg, a.keys.Escape):
		return a.back()

	case key.Matches(msg, a.keys.Filter):
		if a.level == levelProjects {
			a.filtering = true
			a.filter.Focus()
		}

	case key.Matches(msg, a.keys.Engine):
		a.engine = nextEngineFilter(a.engine)
		return a, a.scanCmd()

	case key.Matches(msg, a.keys.Delete):
		if a.level == levelSessions && a.selectedSession() != nil {
			a.modal = modalConfirmDelete
			a.confirmYes = false
		}

	case key.Matches(msg, a.keys.Spawn):
		if a.level == levelProjects || a.level == levelSessions {
			a.modal = modalSpawn
			a.spawnPrompt.SetValue("")
			a.spawnPrompt.Focus()
		}

	case key.Matches(msg, a.keys.Processes):
		if a.level != levelDetail {
			a.level = levelProcesses
		}

	case key.Matches(msg, a.keys.Attach):
		if a.level == levelProcesses {
			return a.attachSelected()
		}

	case key.Matches(msg, a.keys.Kill):
		if a.level == levelProcesses && a.supervisor != nil {
			procs := a.supervisor.List()
			if a.procCursor < len(procs) {
				_ = a.supervisor.Kill(procs[a.procCursor].ID)
			}
		}
	}
	return a, nil
}

func (a *App) updateFilterInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc":
		a.filtering = false
		a.filter.Blur()
		if msg.String() == "esc" {
			a.filter.SetValue("")
			a.rebuildMatches()
		}
		return a, nil
	}
	var cmd tea.Cmd
	a.filter, cmd = a.filter.Update(msg)
	a.rebuildMatches()
	return a, cmd
}

func (a *App) updateConfirmDelete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "left", "right", "tab":
		a.confirmYes = !a.confirmYes
	case "y":
		return a.deleteSelectedSession()
	case "n", "esc":
		a.modal = modalNone
	case "enter":
		if a.confirmYes {
			return a.deleteSelectedSession()
		}
		a.modal = modalNone
	}
	return a, nil
}

func (a *App) deleteSelectedSession() (tea.Model, tea.Cmd) {
	a.modal = modalNone
	session := a.selectedSession()
	if session == nil {
		return a, nil
	}
	// DB-backed sessions have no file to remove.
	if _, _, isDB := scan.ParseOpenCodeLogPath(session.LogPath); isDB {
		return a, nil
	}
	if err := os.Remove(session.LogPath); err != nil {
		a.loadErr = err.Error()
		return a, nil
	}
	if a.logger != nil {
		_ = a.logger.Append(log.Event{
			Event:     log.EventSessionDeleted,
			Engine:    string(session.Engine),
			SessionID: session.Meta.ID,
			Path:      session.LogPath,
		})
	}
	return a, a.scanCmd()
}

func (a *App) updateSpawnForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		a.modal = modalNone
		a.spawnPrompt.Blur()
		return a, nil
	case "ctrl+e":
		a.spawnEngine = toggleSpawnEngine(a.spawnEngine)
		return a, nil
	case "ctrl+t":
		a.spawnIOMode = a.spawnIOMode.Toggle()
		return a, nil
	case "enter":
		prompt := a.spawnPrompt.Value()
		project := a.selectedProjectPathOrCwd()
		a.modal = modalNone
		a.spawnPrompt.Blur()
		if a.supervisor == nil || prompt == "" {
			return a, nil
		}
		process, err := a.supervisor.Spawn(a.spawnEngine, project, prompt, a.spawnIOMode)
		if err != nil {
			a.loadErr = err.Error()
			return a, nil
		}
		if a.logger != nil {
			_ = a.logger.Append(log.Event{
				Event:     log.EventProcessSpawned,
				Engine:    string(a.spawnEngine),
				ProcessID: process.ID,
				Project:   project,
			})
		}
		a.level = levelProcesses
		return a, nil
	}
	var cmd tea.Cmd
	a.spawnPrompt, cmd = a.spawnPrompt.Update(msg)
	return a, cmd
}

type attachExec struct {
	supervisor *proc.Supervisor
	processID  string
}

func (e attachExec) Run() error {
	return e.supervisor.AttachInteractive(e.processID)
}
func (e attachExec) SetStdin(_ io.Reader)  {}
func (e attachExec) SetStdout(_ io.Writer) {}
func (e attachExec) SetStderr(_ io.Writer) {}

func (a *App) attachSelected() (tea.Model, tea.Cmd) {
	if a.supervisor == nil {
		return a, nil
	}
	procs := a.supervisor.List()
	if a.procCursor >= len(procs) {
		return a, nil
	}
	target := procs[a.procCursor]
	if target.IOMode != domain.IOModeTty || target.Status.State != proc.StateRunning {
		return a, nil
	}
	supervisor := a.supervisor
	return a, tea.Exec(attachExec{supervisor: supervisor, processID: target.ID}, func(err error) tea.Msg {
		return attachDoneMsg{err: err}
	})
}

func (a *App) enter() (tea.Model, tea.Cmd) {
	switch a.level {
	case levelProjects:
		if len(a.matches) == 0 {
			return a, nil
		}
		a.level = levelSessions
		a.sessionCursor = 0
		a.selectedProjectPath = a.matches[a.projectCursor].Project.Path
		return a, nil

	case levelSessions:
		session := a.selectedSession()
		if session == nil {
			return a, nil
		}
		a.level = levelDetail
		a.selectedSessionID = session.Meta.ID
		a.itemCursor = 0
		a.tl = nil
		return a, a.loadTimelineCmd(session.LogPath)

	case levelDetail:
		// Enter on a tool call jumps to its output (and back).
		if a.tl != nil {
			if pair, ok := a.tlPairs[a.itemCursor]; ok {
				a.itemCursor = pair
				a.syncDetail()
			}
		}
		return a, nil

	case levelProcesses:
		if a.supervisor != nil {
			procs := a.supervisor.List()
			if a.procCursor < len(procs) && procs[a.procCursor].AssociatedLogPath != "" {
				a.level = levelDetail
				a.itemCursor = 0
				a.tl = nil
				return a, a.loadTimelineCmd(procs[a.procCursor].AssociatedLogPath)
			}
		}
	}
	return a, nil
}

func (a *App) back() (tea.Model, tea.Cmd) {
	switch a.level {
	case levelSessions:
		a.level = levelProjects
	case levelDetail:
		a.tl = nil
		a.level = levelSessions
	case levelProcesses:
		a.level = levelProjects
	}
	return a, nil
}

func (a *App) moveCursor(delta int) {
	switch a.level {
	case levelProjects:
		a.projectCursor = clamp(a.projectCursor+delta, len(a.matches))
		if a.projectCursor < len(a.matches) {
			a.selectedProjectPath = a.matches[a.projectCursor].Project.Path
		}
	case levelSessions:
		project := a.selectedProject()
		if project != nil {
			a.sessionCursor = clamp(a.sessionCursor+delta, len(project.Sessions))
			if a.sessionCursor < len(project.Sessions) {
				a.selectedSessionID = project.Sessions[a.sessionCursor].Meta.ID
			}
		}
	case levelDetail:
		if a.tl != nil {
			a.itemCursor = clamp(a.itemCursor+delta, len(a.tl.Items))
			a.syncDetail()
		}
	case levelProcesses:
		if a.supervisor != nil {
			a.procCursor = clamp(a.procCursor+delta, len(a.supervisor.List()))
		}
	}
}

func clamp(value, length int) int {
	if length == 0 {
		return 0
	}
	if value < 0 {
		return 0
	}
	if value >= length {
		return length - 1
	}
	return value
}

func (a *App) rebuildMatches() {
	a.matches = index.FilterProjects(a.projects, a.filter.Value())
	a.projectCursor = clamp(a.projectCursor, len(a.matches))
}

// restoreSelection keeps the cursor on the same project and session across
// snapshot replacements, falling back to the nearest neighbor by index.
func (a *App) restoreSelection() {
	if a.selectedProjectPath != "" {
		for i, match := range a.matches {
			if match.Project.Path == a.selectedProjectPath {
				a.projectCursor = i
				break
			}
		}
	}
	a.projectCursor = clamp(a.projectCursor, len(a.matches))

	if project := a.selectedProject(); project != nil && a.selectedSessionID != "" {
		for i, session := range project.Sessions {
			if session.Meta.ID == a.selectedSessionID {
				a.sessionCursor = i
				return
			}
		}
		a.sessionCursor = clamp(a.sessionCursor, len(project.Sessions))
	}
}

func (a *App) selectedProject() *domain.ProjectSummary {
	if a.projectCursor >= len(a.matches) {
		return nil
	}
	project := a.matches[a.projectCursor].Project
	return &project
}

func (a *App) selectedProjectPathOrCwd() string {
	if project := a.selectedProject(); project != nil {
		return project.Path
	}
	if cwd, err := os.Getwd(); err == nil {
		return cwd
	}
	return string(filepath.Separator)
}

func (a *App) selectedSession() *domain.SessionSummary {
	project := a.selectedProject()
	if project == nil || a.sessionCursor >= len(project.Sessions) {
		return nil
	}
	session := project.Sessions[a.sessionCursor]
	return &session
}

func (a *App) selectedSessionLogPath() string {
	if session := a.selectedSession(); session != nil {
		return session.LogPath
	}
	return ""
}

func (a *App) shutdown() {
	if a.pollCancel != nil {
		a.pollCancel()
	}
	if a.watcher != nil {
		_ = a.watcher.Close()
	}
	if a.supervisor != nil {
		// Children stay running; only TTY capture stops.
		a.supervisor.Shutdown()
	}
}

func nextEngineFilter(engine domain.Engine) domain.Engine {
	order := append([]domain.Engine{""}, domain.Engines...)
	for i, e := range order {
		if e == engine {
			return order[(i+1)%len(order)]
		}
	}
	return ""
}

func toggleSpawnEngine(engine domain.Engine) domain.Engine {
	if engine == domain.EngineCodex {
		return domain.EngineClaude
	}
	return domain.EngineCodex
}
