package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/neu-lab/meg2bids/internal/bids"
	"github.com/neu-lab/meg2bids/internal/models"
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(ColorBorder).
			Bold(true)

	borderStyle = lipgloss.NewStyle().
			Foreground(ColorBorder)

	cellStyle = lipgloss.NewStyle().
			Foreground(ColorText)

	statusStyles = map[string]lipgloss.Style{
		models.RetrievalStatusDownloaded: lipgloss.NewStyle().Foreground(ColorSuccess),
		models.RetrievalStatusResolved:   lipgloss.NewStyle().Foreground(ColorInfo),
		models.RetrievalStatusSkipped:    lipgloss.NewStyle().Foreground(ColorWarning),
		models.RetrievalStatusFailed:     lipgloss.NewStyle().Foreground(ColorError),
	}
)

// Output is where reports are printed
var Output io.Writer = os.Stdout

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	style := lipgloss.NewStyle().
		Foreground(ColorSuccess).
		Bold(true)
	fmt.Fprintln(Output, style.Render("++ "+message+" ++"))
}

// PrintWarning prints a warning
func PrintWarning(message string) {
	style := lipgloss.NewStyle().
		Foreground(ColorWarning).
		Bold(true)
	fmt.Fprintln(Output, style.Render("++ "+message+" ++"))
}

// PrintError prints an error message
func PrintError(message string) {
	style := lipgloss.NewStyle().
		Foreground(ColorError).
		Bold(true)
	fmt.Fprintln(Output, style.Render("Error: "+message))
}

// PrintInfo prints an informational line
func PrintInfo(message string) {
	style := lipgloss.NewStyle().
		Foreground(ColorInfo)
	fmt.Fprintln(Output, style.Render(message))
}

// PrintMatch summarises a resolved empty-room match
func PrintMatch(pnum string, sessionDate, entryDate, days int, locator string) {
	fmt.Fprintln(Output, TitleStyle.Render(fmt.Sprintf("Empty-room match for sub-%s", pnum)))
	fmt.Fprintf(Output, "  %-10s %08d\n", "session", sessionDate)
	fmt.Fprintf(Output, "  %-10s %s\n", "emptyroom", AccentStyle.Render(fmt.Sprintf("%08d", entryDate)))
	fmt.Fprintf(Output, "  %-10s %d\n", "days", days)
	fmt.Fprintf(Output, "  %-10s %s\n", "archive", locator)
}

// PrintTaskPlan prints the run to task mapping
func PrintTaskPlan(pnum, session string, plan []bids.RunTask) {
	if len(plan) == 0 {
		fmt.Fprintln(Output, HintStyle.Render("No runs found"))
		return
	}
	colWidths := []int{5, 16, 48}
	separator := strings.Repeat("─", colWidths[0]+colWidths[1]+colWidths[2]+8)

	fmt.Fprintln(Output, borderStyle.Render("┌"+separator+"┐"))
	fmt.Fprintln(Output, headerStyle.Render(fmt.Sprintf("│ %-*s │ %-*s │ %-*s │",
		colWidths[0], "Run", colWidths[1], "Task", colWidths[2], "BIDS name")))
	fmt.Fprintln(Output, borderStyle.Render("├"+separator+"┤"))
	for _, rt := range plan {
		fmt.Fprintln(Output, cellStyle.Render(fmt.Sprintf("│ %-*s │ %-*s │ %-*s │",
			colWidths[0], fmt.Sprintf("%02d", rt.Run),
			colWidths[1], rt.Task,
			colWidths[2], bids.BIDSBaseName(pnum, session, rt))))
	}
	fmt.Fprintln(Output, borderStyle.Render("└"+separator+"┘"))
}

// PrintRetrievals prints the retrieval history, newest first
func PrintRetrievals(retrievals []models.Retrieval) {
	if len(retrievals) == 0 {
		fmt.Fprintln(Output, HintStyle.Render("No retrievals recorded"))
		return
	}

	colWidths := []int{19, 8, 10, 10, 11, 32}
	total := 1
	for _, w := range colWidths {
		total += w + 3
	}
	separator := strings.Repeat("─", total-2)

	fmt.Fprintln(Output, borderStyle.Render("┌"+separator+"┐"))
	fmt.Fprintln(Output, headerStyle.Render(fmt.Sprintf("│ %-*s │ %-*s │ %-*s │ %-*s │ %-*s │ %-*s │",
		colWidths[0], "When",
		colWidths[1], "Subject",
		colWidths[2], "Session",
		colWidths[3], "Emptyroom",
		colWidths[4], "Status",
		colWidths[5], "Archive")))
	fmt.Fprintln(Output, borderStyle.Render("├"+separator+"┤"))

	for _, r := range retrievals {
		locator := r.Locator
		if len(locator) > colWidths[5] {
			locator = locator[:colWidths[5]-3] + "..."
		}
		status := fmt.Sprintf("%-*s", colWidths[4], r.Status)
		if style, ok := statusStyles[r.Status]; ok {
			status = style.Render(status)
		}
		fmt.Fprintf(Output, "│ %-*s │ %-*s │ %08d%s │ %08d%s │ %s │ %-*s │\n",
			colWidths[0], r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			colWidths[1], r.Subject,
			r.SessionDate, strings.Repeat(" ", colWidths[2]-8),
			r.EntryDate, strings.Repeat(" ", colWidths[3]-8),
			status,
			colWidths[5], locator)
	}
	fmt.Fprintln(Output, borderStyle.Render("└"+separator+"┘"))
}
