package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"crypto-analyst/pkg/utils"
)

var titleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("#7C3AED")).
	Padding(0, 1)

var boxStyle = lipgloss.NewStyle().
	BorderStyle(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color("#3B82F6")).
	Padding(0, 1)

// Terminal styles.
var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#06B6D4"))
	boldStyle    = lipgloss.NewStyle().Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	aiStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#8B5CF6"))
)

// Output handles formatted output for the CLI.
type Output struct {
	writer       io.Writer
	jsonMode     bool
	colorEnabled bool
}

// NewOutput creates a new Output instance.
func NewOutput(cmd *cobra.Command) *Output {
	jsonMode, _ := cmd.Flags().GetBool("json")
	return &Output{
		writer:       cmd.OutOrStdout(),
		jsonMode:     jsonMode,
		colorEnabled: !jsonMode && isTerminal(),
	}
}

// isTerminal checks if stdout is a terminal.
func isTerminal() bool {
	fileInfo, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

// IsJSON returns true if JSON output mode is enabled.
func (o *Output) IsJSON() bool {
	return o.jsonMode
}

// JSON outputs data as indented JSON.
func (o *Output) JSON(data interface{}) error {
	encoder := json.NewEncoder(o.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// Println prints a message with newline.
func (o *Output) Println(args ...interface{}) {
	fmt.Fprintln(o.writer, args...)
}

// Printf prints a formatted message.
func (o *Output) Printf(format string, args ...interface{}) {
	fmt.Fprintf(o.writer, format, args...)
}

// Title prints a section title.
func (o *Output) Title(format string, args ...interface{}) {
	o.styled(titleStyle, format, args...)
}

// Success prints a success message in green.
func (o *Output) Success(format string, args ...interface{}) {
	o.styled(successStyle, format, args...)
}

// Error prints an error message in red.
func (o *Output) Error(format string, args ...interface{}) {
	o.styled(errorStyle, format, args...)
}

// Warning prints a warning message in yellow.
func (o *Output) Warning(format string, args ...interface{}) {
	o.styled(warningStyle, format, args...)
}

// Info prints an info message in cyan.
func (o *Output) Info(format string, args ...interface{}) {
	o.styled(infoStyle, format, args...)
}

// Bold prints a bold message.
func (o *Output) Bold(format string, args ...interface{}) {
	o.styled(boldStyle, format, args...)
}

// Dim prints a dimmed message.
func (o *Output) Dim(format string, args ...interface{}) {
	o.styled(dimStyle, format, args...)
}

func (o *Output) styled(style lipgloss.Style, format string, args ...interface{}) {
	fmt.Fprintln(o.writer, o.Render(style, fmt.Sprintf(format, args...)))
}

// Render applies style when color is enabled.
func (o *Output) Render(style lipgloss.Style, text string) string {
	if !o.colorEnabled {
		return text
	}
	return style.Render(text)
}

// Green returns green text.
func (o *Output) Green(text string) string { return o.Render(successStyle, text) }

// Red returns red text.
func (o *Output) Red(text string) string { return o.Render(errorStyle, text) }

// Yellow returns yellow text.
func (o *Output) Yellow(text string) string { return o.Render(warningStyle, text) }

// DimText returns dimmed text.
func (o *Output) DimText(text string) string { return o.Render(dimStyle, text) }

// Direction colors a trend or signal word by its polarity.
func (o *Output) Direction(d string) string {
	switch d {
	case "bullish", "buy":
		return o.Green(strings.ToUpper(d))
	case "bearish", "sell":
		return o.Red(strings.ToUpper(d))
	case "":
		return o.DimText("-")
	}
	return o.Yellow(strings.ToUpper(d))
}

// FormatPercent formats a percentage with sign and color.
func (o *Output) FormatPercent(pct float64) string {
	formatted := utils.FormatPercent(pct)
	switch {
	case pct > 0:
		return o.Green(formatted)
	case pct < 0:
		return o.Red(formatted)
	}
	return formatted
}

// SourceTag marks whether a value came from the AI narrative.
func (o *Output) SourceTag(source string) string {
	if source == "ai" {
		return o.Render(aiStyle, "[AI]")
	}
	return o.DimText("[CALC]")
}

// Box draws a rounded box around content.
func (o *Output) Box(title string, content []string) {
	body := strings.Join(append([]string{o.Render(boldStyle, title), ""}, content...), "\n")
	if !o.colorEnabled {
		o.Println(title)
		o.Println(strings.Repeat("-", lipgloss.Width(title)))
		for _, line := range content {
			o.Println(line)
		}
		return
	}
	o.Println(boxStyle.Render(body))
}

// Table represents a simple table for output.
type Table struct {
	headers []string
	rows    [][]string
	output  *Output
}

// NewTable creates a new table.
func NewTable(output *Output, headers ...string) *Table {
	return &Table{
		headers: headers,
		output:  output,
	}
}

// AddRow adds a row to the table.
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// Render renders the table.
func (t *Table) Render() {
	if len(t.headers) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) && lipgloss.Width(cell) > widths[i] {
				widths[i] = lipgloss.Width(cell)
			}
		}
	}

	t.printRow(t.headers, widths, true)
	seps := make([]string, len(widths))
	for i, w := range widths {
		seps[i] = strings.Repeat("─", w)
	}
	t.output.Println(t.output.DimText(strings.Join(seps, "──")))
	for _, row := range t.rows {
		t.printRow(row, widths, false)
	}
}

func (t *Table) printRow(cells []string, widths []int, isHeader bool) {
	parts := make([]string, 0, len(cells))
	for i, cell := range cells {
		if i >= len(widths) {
			break
		}
		padded := cell + strings.Repeat(" ", max(0, widths[i]-lipgloss.Width(cell)))
		if isHeader {
			padded = t.output.Render(boldStyle, padded)
		}
		parts = append(parts, padded)
	}
	t.output.Println(strings.Join(parts, "  "))
}
