package main

import (
	"context"
	"os"

	"github.com/charmbracelet/lipgloss"

	"crypto-analyst/internal/cli"
	"crypto-analyst/internal/security"
)

func main() {
	if err := cli.Execute(context.Background()); err != nil {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)
		os.Stderr.WriteString(style.Render("Error: "+security.Redact(err.Error())) + "\n")
		os.Exit(1)
	}
}
