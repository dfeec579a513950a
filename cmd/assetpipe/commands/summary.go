package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"git.home.luguber.info/inful/assetpipe/internal/history"
	"git.home.luguber.info/inful/assetpipe/internal/pipeline"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("170"))
	nameStyle      = lipgloss.NewStyle().Width(18)
	durationStyle  = lipgloss.NewStyle().Width(10).Align(lipgloss.Right).Foreground(lipgloss.Color("241"))
	succeededStyle = lipgloss.NewStyle().Width(10).Foreground(lipgloss.Color("42"))
	failedStyle    = lipgloss.NewStyle().Width(10).Foreground(lipgloss.Color("196")).Bold(true)
	skippedStyle   = lipgloss.NewStyle().Width(10).Foreground(lipgloss.Color("245"))
	canceledStyle  = lipgloss.NewStyle().Width(10).Foreground(lipgloss.Color("214"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).PaddingLeft(2)
)

func styleForStatus(status string) lipgloss.Style {
	switch pipeline.Status(status) {
	case pipeline.StatusSucceeded:
		return succeededStyle
	case pipeline.StatusFailed:
		return failedStyle
	case pipeline.StatusCanceled:
		return canceledStyle
	default:
		return skippedStyle
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Round(10 * time.Millisecond).String()
}

func stageLine(name, status string, d time.Duration) string {
	dur := ""
	if status == string(pipeline.StatusSucceeded) || status == string(pipeline.StatusFailed) {
		dur = formatDuration(d)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top,
		nameStyle.Render(name),
		styleForStatus(status).Render(status),
		durationStyle.Render(dur),
	)
}

// RenderReport formats a run report as a per-stage table.
func RenderReport(r *pipeline.Report) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(fmt.Sprintf("%s %s in %s", r.Task, r.Outcome(), formatDuration(r.Duration))))
	sb.WriteString("\n")
	for _, st := range r.Stages {
		sb.WriteString(stageLine(st.Name, string(st.Status), st.Duration))
		sb.WriteString("\n")
		if st.Err != nil {
			sb.WriteString(errorStyle.Render(st.Err.Error()))
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// RenderRuns formats recorded runs, newest first.
func RenderRuns(runs []history.Run) string {
	if len(runs) == 0 {
		return "No runs recorded.\n"
	}
	var sb strings.Builder
	for _, run := range runs {
		header := fmt.Sprintf("%s  %-8s %-9s %8s", run.Started.Format(time.DateTime), run.Task, run.Outcome, formatDuration(run.Duration))
		if run.Commit != "" {
			header += "  " + shortCommit(run.Commit)
		}
		sb.WriteString(titleStyle.Render(header))
		sb.WriteString("\n")
		for _, st := range run.Stages {
			sb.WriteString("  ")
			sb.WriteString(stageLine(st.Name, st.Status, st.Duration))
			sb.WriteString("\n")
		}
		if run.Error != "" {
			sb.WriteString(errorStyle.Render(run.Error))
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func shortCommit(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}

func printReport(w io.Writer, r *pipeline.Report) {
	if r == nil {
		return
	}
	_, _ = fmt.Fprint(w, RenderReport(r))
}
