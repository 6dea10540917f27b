package proc

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/diskd-ai/ccbox/internal/domain"
)

type streamKind int

const (
	streamStdout streamKind = iota
	streamStderr
)

func (k streamKind) prefix() string {
	if k == streamStderr {
		return "[stderr] "
	}
	return "[stdout] "
}

// combinedLog is the shared process.log; both stream readers append to it
// with a per-line prefix under one lock.
type combinedLog struct {
	mu   sync.Mutex
	file *os.File
}

func newCombinedLog(path string) (*combinedLog, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &combinedLog{file: file}, nil
}

func (l *combinedLog) header(engine domain.Engine, projectPath string, startedAt time.Time, resumeSessionID *string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if resumeSessionID != nil {
		fmt.Fprintf(l.file, "engine: %s\nmode: resume\nresume_session_id: %s\nproject: %s\nstarted_at: %s\n---\n",
			engine.Label(), *resumeSessionID, projectPath, startedAt.Format(time.RFC3339))
		return
	}
	fmt.Fprintf(l.file, "engine: %s\nproject: %s\nstarted_at: %s\n---\n",
		engine.Label(), projectPath, startedAt.Format(time.RFC3339))
}

func (l *combinedLog) writeLine(kind streamKind, line []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.file.WriteString(kind.prefix())
	_, _ = l.file.Write(line)
	_ = l.file.Sync()
}

func (l *combinedLog) close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	_ = l.file.Close()
}

// readPipe copies one child stream to its log file and the combined log.
// For Codex stdout it doubles as the association side channel: the first
// session_meta line triggers the on-disk log search.
func (s *Supervisor) readPipe(c *child, pipe io.Reader, file *os.File, combined *combinedLog, kind streamKind, sideChannel bool) {
	defer file.Close()

	reader := bufio.NewReader(pipe)
	sentSessionMeta := false

	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			_, _ = file.Write(line)
			_ = file.Sync()
			combined.writeLine(kind, line)

			if sideChannel && !sentSessionMeta {
				if meta, ok := sessionMetaFromLine(line); ok {
					sentSessionMeta = true
					s.onSessionMeta(c.process.ID, meta)
				}
			}
		}
		if err != nil {
			return
		}
	}
}

// readPty copies raw pty bytes to the transcript, mirrors them to an
// attached viewer, and line-scans for the Codex session_meta.
func (s *Supervisor) readPty(c *child, logFile *os.File) {
	defer logFile.Close()

	sentSessionMeta := false
	sideChannel := c.process.Engine == domain.EngineCodex
	var lineBuf []byte
	buf := make([]byte, 16*1024)

	for {
		n, err := c.ptyFile.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			_, _ = logFile.Write(chunk)
			_ = logFile.Sync()

			c.attachMu.Lock()
			if c.attachCh != nil {
				select {
				case c.attachCh <- append([]byte(nil), chunk...):
				default:
				}
			}
			c.attachMu.Unlock()

			if sideChannel && !sentSessionMeta {
				lineBuf = append(lineBuf, chunk...)
				for {
					idx := bytes.IndexByte(lineBuf, '\n')
					if idx < 0 {
						break
					}
					line := lineBuf[:idx+1]
					lineBuf = lineBuf[idx+1:]
					if meta, ok := sessionMetaFromLine(line); ok {
						sentSessionMeta = true
						s.onSessionMeta(c.process.ID, meta)
						break
					}
				}
				if len(lineBuf) > 512*1024 {
					lineBuf = lineBuf[:0]
				}
			}
		}
		if err != nil {
			c.attachMu.Lock()
			if c.attachCh != nil {
				close(c.attachCh)
				c.attachCh = nil
			}
			c.attachMu.Unlock()
			return
		}
	}
}

func (s *Supervisor) onSessionMeta(processID string, meta domain.SessionMeta) {
	s.setAssociation(processID, meta.ID, "")
	s.notify(Signal{Kind: SignalSessionMeta, ProcessID: processID, SessionID: meta.ID})

	go func() {
		logPath, ok := WaitForSessionLog(s.sessionsDir, meta.StartedAt, meta.ID, AssociationTimeout)
		if !ok {
			s.notify(Signal{Kind: SignalAssocFailed, ProcessID: processID, SessionID: meta.ID})
			return
		}
		s.setAssociation(processID, meta.ID, logPath)
		s.notify(Signal{Kind: SignalSessionLog, ProcessID: processID, SessionID: meta.ID, LogPath: logPath})
	}()
}

func sessionMetaFromLine(line []byte) (domain.SessionMeta, bool) {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return domain.SessionMeta{}, false
	}
	meta, err := domain.ParseSessionMetaLine(string(trimmed))
	if err != nil {
		return domain.SessionMeta{}, false
	}
	return meta, true
}
