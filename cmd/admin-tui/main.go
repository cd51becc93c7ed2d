package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	flag "github.com/spf13/pflag"

	"github.com/BryanFRD/admin-api/internal/tui/app"
	"github.com/BryanFRD/admin-api/internal/tui/client"
)

func main() {
	wsURL := flag.String("url", "ws://127.0.0.1:4433/ws", "WebSocket URL of the relay")
	flag.Parse()

	m := app.New(client.NewWSClient(*wsURL))
	p := tea.NewProgram(m, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
