package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/dyike/PainRadar/consts"
	"github.com/dyike/PainRadar/internal/graph"
	"github.com/dyike/PainRadar/models"
)

// UI styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			Background(lipgloss.Color("#1F2937")).
			Padding(0, 1).
			MarginBottom(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#3B82F6")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3B82F6")).
			Padding(0, 2).
			Width(80)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#9CA3AF"))

	// Status styles
	pendingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))

	inProgressStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B")).
			Bold(true)

	completedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)

	agentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7C3AED")).
			Bold(true)
)

var stageOrder = []string{
	consts.ScrapeStage,
	consts.PainAnalysisStage,
	consts.RecommendStage,
	consts.ReportStage,
}

var stageLabels = map[string]string{
	consts.ScrapeStage:       "Collecting posts and comments",
	consts.PainAnalysisStage: "Scoring pain points",
	consts.RecommendStage:    "Designing solutions",
	consts.ReportStage:       "Writing the report",
}

type stageStatus int

const (
	statusPending stageStatus = iota
	statusRunning
	statusDone
	statusFailed
)

// progressBoard tracks workflow stages for terminal output.
type progressBoard struct {
	status  map[string]stageStatus
	started time.Time
}

func newProgressBoard() *progressBoard {
	return &progressBoard{status: map[string]stageStatus{}, started: time.Now()}
}

func (p *progressBoard) apply(ev graph.ProgressEvent) {
	switch {
	case ev.Err != nil:
		p.status[ev.Stage] = statusFailed
	case ev.Done:
		p.status[ev.Stage] = statusDone
	default:
		p.status[ev.Stage] = statusRunning
	}
}

// line renders a single event the way it is printed while streaming.
func (p *progressBoard) line(ev graph.ProgressEvent) string {
	label := stageLabels[ev.Stage]
	if label == "" {
		label = ev.Stage
	}
	elapsed := time.Since(p.started).Round(100 * time.Millisecond)
	switch p.status[ev.Stage] {
	case statusFailed:
		return errorStyle.Render(fmt.Sprintf("✘ %s (%v)", label, ev.Err))
	case statusDone:
		return completedStyle.Render(fmt.Sprintf("✔ %s", label)) + pendingStyle.Render(fmt.Sprintf("  %s", elapsed))
	default:
		return inProgressStyle.Render(fmt.Sprintf("⏳ %s...", label))
	}
}

func (p *progressBoard) summary() string {
	var b strings.Builder
	for _, stage := range stageOrder {
		label := stageLabels[stage]
		switch p.status[stage] {
		case statusDone:
			b.WriteString(completedStyle.Render("✔ " + label))
		case statusFailed:
			b.WriteString(errorStyle.Render("✘ " + label))
		case statusRunning:
			b.WriteString(inProgressStyle.Render("⏳ " + label))
		default:
			b.WriteString(pendingStyle.Render("○ " + label))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderSnapshot(s models.SubredditSnapshot) string {
	if !s.Exists {
		msg := fmt.Sprintf("✘ r/%s was not found", s.Name)
		if s.Error != "" {
			msg += ": " + s.Error
		}
		return errorStyle.Render(msg)
	}
	var b strings.Builder
	b.WriteString(completedStyle.Render(fmt.Sprintf("✔ r/%s", s.Name)))
	b.WriteString("\n")
	if s.Title != "" {
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Title:      "), s.Title)
	}
	fmt.Fprintf(&b, "%s %d\n", labelStyle.Render("Subscribers:"), s.SubscriberCount)
	if s.Description != "" {
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("About:      "), truncate(s.Description, 200))
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderSolutions(solutions []models.ExceptionalSolution) string {
	if len(solutions) == 0 {
		return pendingStyle.Render("No stored solutions yet.")
	}
	var b strings.Builder
	for i, s := range solutions {
		fmt.Fprintf(&b, "%s %s\n", agentStyle.Render(fmt.Sprintf("%2d. [%d] r/%s", i+1, s.Score, s.Subreddit)),
			labelStyle.Render(fmt.Sprintf("%s · intensity %d · u/%s", s.PainType, s.Intensity, s.Author)))
		fmt.Fprintf(&b, "    %s\n", truncate(strings.ReplaceAll(s.SolutionText, "\n", " "), 160))
	}
	return strings.TrimRight(b.String(), "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
