package proc

import (
	"fmt"
	"os"

	"github.com/creack/pty"
	"golang.org/x/term"
)

// detachByte is the hotkey that ends an interactive attach (Ctrl-]). It is
// consumed, never forwarded to the child.
const detachByte = 0x1d

// AttachTty starts streaming live pty output for one process. At most one
// viewer is attached; attaching again replaces the previous channel.
func (s *Supervisor) AttachTty(id string) (<-chan []byte, error) {
	s.mu.Lock()
	c, ok := s.children[id]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("process not found: %s", id)
	}
	if c.ptyFile == nil {
		return nil, fmt.Errorf("process %s is not a TTY session", id)
	}

	ch := make(chan []byte, 64)
	c.attachMu.Lock()
	c.attachCh = ch
	c.attachMu.Unlock()
	return ch, nil
}

// DetachTty stops live streaming; the pty and its transcript keep running.
func (s *Supervisor) DetachTty(id string) {
	s.mu.Lock()
	c, ok := s.children[id]
	s.mu.Unlock()
	if !ok {
		return
	}
	c.attachMu.Lock()
	c.attachCh = nil
	c.attachMu.Unlock()
}

// WriteTty forwards input bytes to the child's terminal.
func (s *Supervisor) WriteTty(id string, data []byte) error {
	s.mu.Lock()
	c, ok := s.children[id]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("process not found: %s", id)
	}
	if c.ptyFile == nil {
		return fmt.Errorf("process %s is not a TTY session", id)
	}
	_, err := c.ptyFile.Write(data)
	if err != nil {
		return fmt.Errorf("writing to TTY: %w", err)
	}
	return nil
}

// ResizeTty resizes the child's terminal.
func (s *Supervisor) ResizeTty(id string, rows, cols uint16) error {
	s.mu.Lock()
	c, ok := s.children[id]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("process not found: %s", id)
	}
	if c.ptyFile == nil {
		return fmt.Errorf("process %s is not a TTY session", id)
	}
	if err := pty.Setsize(c.ptyFile, &pty.Winsize{Rows: rows, Cols: cols}); err != nil {
		return fmt.Errorf("resizing TTY: %w", err)
	}
	return nil
}

// AttachInteractive proxies the real terminal to the child's pty until the
// detach hotkey or child exit. Terminal state is saved on entry and
// restored on return, so attaches to different processes nest cleanly.
func (s *Supervisor) AttachInteractive(id string) error {
	output, err := s.AttachTty(id)
	if err != nil {
		return err
	}
	defer s.DetachTty(id)

	stdinFd := int(os.Stdin.Fd())
	savedState, err := term.MakeRaw(stdinFd)
	if err != nil {
		return fmt.Errorf("entering raw mode: %w", err)
	}
	defer func() { _ = term.Restore(stdinFd, savedState) }()

	if width, height, err := term.GetSize(stdinFd); err == nil {
		_ = s.ResizeTty(id, uint16(height), uint16(width))
	}

	detach := make(chan struct{})
	go func() {
		buf := make([]byte, 1024)
		for {
			n, err := os.Stdin.Read(buf)
			if n > 0 {
				chunk := buf[:n]
				if idx := indexByte(chunk, detachByte); idx >= 0 {
					if idx > 0 {
						_ = s.WriteTty(id, chunk[:idx])
					}
					close(detach)
					return
				}
				if writeErr := s.WriteTty(id, chunk); writeErr != nil {
					close(detach)
					return
				}
			}
			if err != nil {
				close(detach)
				return
			}
		}
	}()

	for {
		select {
		case <-detach:
			return nil
		case chunk, ok := <-output:
			if !ok {
				return nil
			}
			if _, err := os.Stdout.Write(chunk); err != nil {
				return nil
			}
		}
	}
}

func indexByte(data []byte, b byte) int {
	for i, c := range data {
		if c == b {
			return i
		}
	}
	return -1
}
