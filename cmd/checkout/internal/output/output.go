package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"
)

var (
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	MutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	MoneyStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42"))

	LinkStyle = lipgloss.NewStyle().
			Underline(true).
			Foreground(lipgloss.Color("45"))
)

// Stdout and Stderr are swapped out in tests.
var (
	Stdout io.Writer = os.Stdout
	Stderr io.Writer = os.Stderr
)

func JSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(Stdout, string(data))
	return nil
}

func Table(headers []string, rows [][]string) {
	table := tablewriter.NewWriter(Stdout)
	table.SetHeader(headers)
	table.SetBorder(true)
	table.SetRowLine(false)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("│")
	table.SetColumnSeparator("│")
	table.SetRowSeparator("─")
	table.SetHeaderLine(true)
	table.SetTablePadding(" ")
	table.AppendBulk(rows)
	table.Render()
}

func KeyValue(pairs [][]string) {
	maxKeyLen := 0
	for _, pair := range pairs {
		if len(pair[0]) > maxKeyLen {
			maxKeyLen = len(pair[0])
		}
	}

	for _, pair := range pairs {
		if pair[1] == "" {
			continue
		}
		key := MutedStyle.Render(fmt.Sprintf("%-*s", maxKeyLen, pair[0]))
		value := ValueStyle.Render(pair[1])
		fmt.Fprintf(Stdout, "%s  %s\n", key, value)
	}
}

// FieldErrors prints validation messages sorted by field.
func FieldErrors(fields map[string]string) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(Stderr, "  %s %s\n", ErrorStyle.Render(k+":"), fields[k])
	}
}

func Success(msg string) {
	fmt.Fprintln(Stdout, SuccessStyle.Render("✓ ")+msg)
}

func Error(msg string) {
	fmt.Fprintln(Stderr, ErrorStyle.Render("✗ ")+msg)
}

func Warning(msg string) {
	fmt.Fprintln(Stdout, WarningStyle.Render("⚠ ")+msg)
}

func Info(msg string) {
	fmt.Fprintln(Stdout, MutedStyle.Render(msg))
}

func Header(msg string) {
	fmt.Fprintln(Stdout, HeaderStyle.Render(msg))
}

func Link(url string) string {
	return LinkStyle.Render(url)
}

// Money styles an already formatted amount such as "₦1,000.00".
func Money(formatted string) string {
	return MoneyStyle.Render(formatted)
}

func FormatStatus(status string) string {
	switch status {
	case "success", "completed":
		return SuccessStyle.Render(status)
	case "pending", "processing", "ongoing", "abandoned":
		return WarningStyle.Render(status)
	case "failed", "reversed":
		return ErrorStyle.Render(status)
	default:
		return status
	}
}
