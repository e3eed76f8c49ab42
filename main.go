// docchat TUI - A terminal interface for chatting with your documents.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/morganforge/docchat-tui/internal/config"
	"github.com/morganforge/docchat-tui/internal/ui"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version", "--version", "-v":
			fmt.Printf("docchat %s (%s, built %s)\n", Version, GitCommit, BuildDate)
			return
		case "help", "--help", "-h":
			printHelp()
			return
		}
	}

	runTUI()
}

func printHelp() {
	fmt.Println("docchat - chat with your documents from the terminal")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  docchat            Start the TUI")
	fmt.Println("  docchat version    Print version information")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  DOCCHAT_BACKEND_URL    Backend base URL (default http://localhost:8000)")
	fmt.Println("  DOCCHAT_MODEL          Chat model identifier")
	fmt.Println("  DOCCHAT_STATE_DIR      State directory (default ~/.docchat/state)")
}

// runTUI starts the TUI interface.
func runTUI() {
	// Load configuration at startup
	cfg := config.Global()

	// The standard logger carries request/response lines; in a TUI those
	// must not reach the terminal, so they go to a log file instead.
	redirectLogs()

	app, err := ui.NewApp(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	p := tea.NewProgram(
		app,
		tea.WithAltScreen(),       // Use alternate screen buffer
		tea.WithMouseCellMotion(), // Enable mouse support
	)

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running docchat: %v\n", err)
		os.Exit(1)
	}
}

// redirectLogs sends the standard logger to ~/.docchat/docchat.log. On any
// failure logging is discarded rather than written over the screen.
func redirectLogs() {
	dir, err := config.Dir()
	if err != nil {
		log.SetOutput(nopWriter{})
		return
	}
	logFile, err := os.OpenFile(filepath.Join(dir, "docchat.log"),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		log.SetOutput(nopWriter{})
		return
	}
	log.SetOutput(logFile)
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }
