// Package tui implements the terminal user interface using Bubble Tea.
package tui

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"
)

// IsTTY returns true if stdout is connected to a terminal.
func IsTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Run starts the TUI program in alternate screen mode. Non-TTY invocations
// are pointed at the CLI instead.
func Run(app *App) error {
	if !IsTTY() {
		fmt.Println("Non-TTY environment detected.")
		fmt.Println("Use `ccbox projects`, `ccbox sessions`, or `ccbox history` for pipe-friendly output.")
		return nil
	}
	p := tea.NewProgram(app, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
