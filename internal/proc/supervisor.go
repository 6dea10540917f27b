// Package proc spawns agent child processes, captures their output to disk,
// reassociates spawned Codex runs with their on-disk session logs, and
// terminates children cleanly.
package proc

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
	"github.com/diskd-ai/ccbox/internal/domain"
)

// killEscalation is how long a terminate signal gets before the hard kill.
const killEscalation = 5 * time.Second

// State is the lifecycle phase of a spawned process.
type State string

const (
	StateRunning State = "running"
	StateExited  State = "exited"
	StateKilled  State = "killed"
	StateFailed  State = "failed"
)

// Status pairs the state with its payload.
type Status struct {
	State    State
	ExitCode int
	Reason   string
}

// Process is one spawned child, as exposed to readers. Snapshots are
// copies; the supervisor owns the live records.
type Process struct {
	ID            string
	Engine        domain.Engine
	ProjectPath   string
	PromptPreview string
	IOMode        domain.SpawnIOMode
	PID           int
	StartedAt     time.Time
	Status        Status

	WorkDir    string
	PromptPath string
	StdoutPath string
	StderrPath string
	LogPath    string

	// LastMessagePath is set for pipe-mode Codex children. A fresh run passes
	// it as --output-last-message; the resume command does not pass it.
	LastMessagePath string

	AssociatedSessionID string
	AssociatedLogPath   string
}

// SignalKind tags supervisor notifications.
type SignalKind string

const (
	SignalSessionMeta SignalKind = "session_meta"
	SignalSessionLog  SignalKind = "session_log"
	SignalExit        SignalKind = "exit"
	SignalAssocFailed SignalKind = "association_failed"
)

// Signal is one supervisor notification delivered on the Signals channel.
type Signal struct {
	Kind      SignalKind
	ProcessID string
	SessionID string
	LogPath   string
	ExitCode  int
}

type child struct {
	process Process
	cmd     *exec.Cmd
	ptyFile *os.File
	waiting bool

	// attach streams live pty bytes to at most one viewer.
	attachMu sync.Mutex
	attachCh chan []byte
}

// Supervisor exclusively owns the process registry and the writer ends of
// every capture file.
type Supervisor struct {
	sessionsDir string
	logsDir     string

	mu       sync.Mutex
	nextID   int
	children map[string]*child

	signals chan Signal
}

// NewSupervisor prepares the spawn work area under the Codex sessions root.
func NewSupervisor(sessionsDir string) (*Supervisor, error) {
	logsDir := filepath.Join(sessionsDir, ".ccbox", "processes")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return nil, fmt.Errorf("creating process logs directory: %w", err)
	}
	return &Supervisor{
		sessionsDir: sessionsDir,
		logsDir:     logsDir,
		nextID:      1,
		children:    make(map[string]*child),
		signals:     make(chan Signal, 32),
	}, nil
}

// Signals delivers session-meta, association, and exit notifications.
func (s *Supervisor) Signals() <-chan Signal { return s.signals }

// Spawn starts a child for the given engine and prompt.
func (s *Supervisor) Spawn(engine domain.Engine, projectPath, prompt string, ioMode domain.SpawnIOMode) (Process, error) {
	switch ioMode {
	case domain.IOModeTty:
		return s.spawnTty(engine, projectPath, prompt)
	default:
		return s.spawnPipes(engine, projectPath, prompt, nil)
	}
}

// SpawnCodexResume resumes an existing Codex session with a new prompt.
func (s *Supervisor) SpawnCodexResume(projectPath, sessionID, prompt string) (Process, error) {
	return s.spawnPipes(domain.EngineCodex, projectPath, prompt, &sessionID)
}

func (s *Supervisor) newWorkDir(engine domain.Engine, projectPath, prompt string, ioMode domain.SpawnIOMode) (Process, error) {
	s.mu.Lock()
	id := fmt.Sprintf("p%d", s.nextID)
	s.nextID++
	s.mu.Unlock()

	workDir := filepath.Join(s.logsDir, id)
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return Process{}, fmt.Errorf("creating process directory: %w", err)
	}

	promptPath := filepath.Join(workDir, "prompt.txt")
	if err := os.WriteFile(promptPath, []byte(prompt), 0644); err != nil {
		return Process{}, fmt.Errorf("writing prompt file: %w", err)
	}

	preview, _ := domain.FirstNonEmptyLine(prompt)
	if preview == "" {
		preview = "(empty prompt)"
	}

	return Process{
		ID:            id,
		Engine:        engine,
		ProjectPath:   projectPath,
		PromptPreview: domain.ClampSummary(preview),
		IOMode:        ioMode,
		StartedAt:     time.Now(),
		Status:        Status{State: StateRunning},
		WorkDir:       workDir,
		PromptPath:    promptPath,
		LogPath:       filepath.Join(workDir, "process.log"),
	}, nil
}

func (s *Supervisor) spawnPipes(engine domain.Engine, projectPath, prompt string, resumeSessionID *string) (Process, error) {
	process, err := s.newWorkDir(engine, projectPath, prompt, domain.IOModePipes)
	if err != nil {
		return Process{}, err
	}
	process.StdoutPath = filepath.Join(process.WorkDir, "stdout.log")
	process.StderrPath = filepath.Join(process.WorkDir, "stderr.log")
	if engine == domain.EngineCodex {
		process.LastMessagePath = filepath.Join(process.WorkDir, "last_message.txt")
	}

	stdoutFile, err := os.Create(process.StdoutPath)
	if err != nil {
		return Process{}, fmt.Errorf("opening stdout log: %w", err)
	}
	stderrFile, err := os.Create(process.StderrPath)
	if err != nil {
		stdoutFile.Close()
		return Process{}, fmt.Errorf("opening stderr log: %w", err)
	}
	combined, err := newCombinedLog(process.LogPath)
	if err != nil {
		stdoutFile.Close()
		stderrFile.Close()
		return Process{}, fmt.Errorf("opening combined log: %w", err)
	}
	combined.header(engine, projectPath, process.StartedAt, resumeSessionID)

	var cmd *exec.Cmd
	if resumeSessionID != nil {
		cmd = buildCodexResumeCommand(projectPath, *resumeSessionID, s.sessionsDir)
	} else {
		cmd = buildPipesCommand(engine, projectPath, prompt, process.LastMessagePath, s.sessionsDir)
	}

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		stdoutFile.Close()
		stderrFile.Close()
		combined.close()
		return Process{}, fmt.Errorf("opening stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		stdoutFile.Close()
		stderrFile.Close()
		combined.close()
		return Process{}, fmt.Errorf("opening stderr pipe: %w", err)
	}

	var stdinPipe io.WriteCloser
	if engine == domain.EngineCodex {
		stdinPipe, err = cmd.StdinPipe()
		if err != nil {
			stdoutFile.Close()
			stderrFile.Close()
			combined.close()
			return Process{}, fmt.Errorf("opening stdin pipe: %w", err)
		}
	}

	if err := cmd.Start(); err != nil {
		stdoutFile.Close()
		stderrFile.Close()
		combined.close()
		process.Status = Status{State: StateFailed, Reason: err.Error()}
		s.register(&child{process: process})
		return process, fmt.Errorf("spawning %s: %w", engine.Label(), err)
	}
	process.PID = cmd.Process.Pid

	// Codex reads the prompt from stdin; the pipe closes once written.
	if stdinPipe != nil {
		go func() {
			_, _ = io.WriteString(stdinPipe, prompt)
			_, _ = io.WriteString(stdinPipe, "\n")
			_ = stdinPipe.Close()
		}()
	}

	c := &child{process: process, cmd: cmd}
	s.register(c)

	sideChannel := engine == domain.EngineCodex
	go s.readPipe(c, stdoutPipe, stdoutFile, combined, streamStdout, sideChannel)
	go s.readPipe(c, stderrPipe, stderrFile, combined, streamStderr, false)
	go s.waitChild(c)

	return process, nil
}

func (s *Supervisor) spawnTty(engine domain.Engine, projectPath, prompt string) (Process, error) {
	process, err := s.newWorkDir(engine, projectPath, prompt, domain.IOModeTty)
	if err != nil {
		return Process{}, err
	}

	logFile, err := os.Create(process.LogPath)
	if err != nil {
		return Process{}, fmt.Errorf("opening combined log: %w", err)
	}
	fmt.Fprintf(logFile, "engine: %s\nproject: %s\nstarted_at: %s\n---\n",
		engine.Label(), projectPath, process.StartedAt.Format(time.RFC3339))

	cmd := buildTtyCommand(engine, projectPath, prompt, s.sessionsDir)
	ptyFile, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: 24, Cols: 80})
	if err != nil {
		logFile.Close()
		process.Status = Status{State: StateFailed, Reason: err.Error()}
		s.register(&child{process: process})
		return process, fmt.Errorf("spawning %s on pty: %w", engine.Label(), err)
	}
	process.PID = cmd.Process.Pid

	c := &child{process: process, cmd: cmd, ptyFile: ptyFile}
	s.register(c)

	go s.readPty(c, logFile)
	go s.waitChild(c)

	return process, nil
}

func (s *Supervisor) register(c *child) {
	s.mu.Lock()
	s.children[c.process.ID] = c
	s.mu.Unlock()
}

// Get returns a snapshot of one process.
func (s *Supervisor) Get(id string) (Process, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.children[id]
	if !ok {
		return Process{}, false
	}
	return c.process, true
}

// List returns snapshots of every process in spawn order.
func (s *Supervisor) List() []Process {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Process, 0, len(s.children))
	for _, c := range s.children {
		out = append(out, c.process)
	}
	sortProcesses(out)
	return out
}

// Kill sends the terminate signal and escalates to a hard kill after the
// escalation window.
func (s *Supervisor) Kill(id string) error {
	s.mu.Lock()
	c, ok := s.children[id]
	if !ok || c.cmd == nil || c.cmd.Process == nil {
		s.mu.Unlock()
		return fmt.Errorf("process not found: %s", id)
	}
	if c.process.Status.State != StateRunning {
		s.mu.Unlock()
		return nil
	}
	c.process.Status = Status{State: StateKilled}
	proc := c.cmd.Process
	s.mu.Unlock()

	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("killing process: %w", err)
	}

	go func() {
		deadline := time.After(killEscalation)
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-deadline:
				_ = proc.Kill()
				return
			case <-ticker.C:
				if !s.isRunning(id) {
					return
				}
			}
		}
	}()
	return nil
}

func (s *Supervisor) isRunning(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.children[id]
	return ok && c.waiting
}

func (s *Supervisor) waitChild(c *child) {
	s.mu.Lock()
	c.waiting = true
	s.mu.Unlock()

	err := c.cmd.Wait()

	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	s.mu.Lock()
	c.waiting = false
	// A kill we initiated wins over the raw exit status.
	if c.process.Status.State == StateRunning {
		c.process.Status = Status{State: StateExited, ExitCode: exitCode}
	} else if c.process.Status.State == StateKilled {
		c.process.Status.ExitCode = exitCode
	}
	id := c.process.ID
	s.mu.Unlock()

	s.notify(Signal{Kind: SignalExit, ProcessID: id, ExitCode: exitCode})
}

// Shutdown closes the pty of every TTY child, which ends its capture, and
// leaves all children running; they were spawned deliberately and are
// intentionally detached. Pipe-mode readers are not stopped.
func (s *Supervisor) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.children {
		if c.ptyFile != nil {
			// Closing our side of the pty ends the reader; the child keeps
			// its slave end.
			_ = c.ptyFile.Close()
		}
	}
}

func (s *Supervisor) notify(signal Signal) {
	select {
	case s.signals <- signal:
	default:
	}
}

func (s *Supervisor) setAssociation(id, sessionID, logPath string) {
	s.mu.Lock()
	if c, ok := s.children[id]; ok {
		if sessionID != "" {
			c.process.AssociatedSessionID = sessionID
		}
		if logPath != "" {
			c.process.AssociatedLogPath = logPath
		}
	}
	s.mu.Unlock()
}

func sortProcesses(procs []Process) {
	// IDs are p1, p2, ...; numeric order equals spawn order.
	for i := 1; i < len(procs); i++ {
		for j := i; j > 0 && processNum(procs[j-1].ID) > processNum(procs[j].ID); j-- {
			procs[j-1], procs[j] = procs[j], procs[j-1]
		}
	}
}

func processNum(id string) int {
	n := 0
	for i := 1; i < len(id); i++ {
		if id[i] < '0' || id[i] > '9' {
			return n
		}
		n = n*10 + int(id[i]-'0')
	}
	return n
}
