package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/smallnest/ragduel"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	winnerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	faintStyle   = lipgloss.NewStyle().Faint(true)
	failureStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	scoreStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

func methodLabel(m ragduel.Method) string {
	if m == ragduel.MethodRetrieval {
		return "Retrieval (RAG)"
	}
	return "Structured (graph query)"
}

func renderAnswer(b *strings.Builder, a *ragduel.Answer) {
	fmt.Fprintf(b, "%s\n", headerStyle.Render(methodLabel(a.Method)))
	if a.Degraded {
		fmt.Fprintf(b, "%s\n", failureStyle.Render("no answer: "+a.FailureReason))
	} else {
		b.WriteString(a.Text)
		b.WriteString("\n")
	}
	if len(a.Provenance.DocumentIDs) > 0 {
		fmt.Fprintf(b, "%s\n", faintStyle.Render("documents: "+strings.Join(a.Provenance.DocumentIDs, ", ")))
	}
	if a.Provenance.Query != "" {
		fmt.Fprintf(b, "%s\n", faintStyle.Render("query: "+a.Provenance.Query))
	}
	if a.Elapsed > 0 {
		fmt.Fprintf(b, "%s\n", faintStyle.Render("took "+a.Elapsed.Round(time.Millisecond).String()))
	}
	b.WriteString("\n")
}

func renderScores(b *strings.Builder, label string, s ragduel.CriterionScores) {
	fmt.Fprintf(b, "  %-12s %s\n", label,
		scoreStyle.Render(fmt.Sprintf("accuracy %d, completeness %d, precision %d, verifiability %d (total %d)",
			s.Accuracy, s.Completeness, s.Precision, s.Verifiability, s.Total())))
}

func renderBullets(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "  %s\n", label)
	for _, item := range items {
		fmt.Fprintf(b, "    - %s\n", item)
	}
}

func renderVerdict(b *strings.Builder, v *ragduel.Verdict) {
	fmt.Fprintf(b, "%s\n", headerStyle.Render("Verdict"))

	var winner string
	switch v.Winner {
	case ragduel.WinnerFirst:
		winner = "retrieval wins"
	case ragduel.WinnerSecond:
		winner = "structured wins"
	default:
		winner = "tie"
	}
	fmt.Fprintf(b, "%s %s\n", winnerStyle.Render(winner),
		faintStyle.Render(fmt.Sprintf("(confidence: %s, gap: %d)", v.Confidence, v.Gap())))

	renderScores(b, "retrieval", v.First)
	renderScores(b, "structured", v.Second)
	if v.Reasoning != "" {
		fmt.Fprintf(b, "  %s\n", v.Reasoning)
	}
	renderBullets(b, "retrieval strengths:", v.StrengthsFirst)
	renderBullets(b, "retrieval weaknesses:", v.WeaknessesFirst)
	renderBullets(b, "structured strengths:", v.StrengthsSecond)
	renderBullets(b, "structured weaknesses:", v.WeaknessesSecond)
	if v.Recommendation != "" {
		fmt.Fprintf(b, "  recommendation: %s\n", v.Recommendation)
	}
}

func renderRecord(record *ragduel.ComparisonRecord) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s\n\n", headerStyle.Render("Question:"), record.Question)
	if record.Retrieval != nil {
		renderAnswer(&b, record.Retrieval)
	}
	if record.Structured != nil {
		renderAnswer(&b, record.Structured)
	}

	if record.Failed {
		fmt.Fprintf(&b, "%s\n", failureStyle.Render("judging failed: "+record.FailureReason))
	} else if record.Verdict != nil {
		renderVerdict(&b, record.Verdict)
	}

	fmt.Fprintf(&b, "%s\n", faintStyle.Render("total "+record.Elapsed.Round(time.Millisecond).String()))
	return b.String()
}
