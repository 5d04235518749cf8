package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/hupe1980/chatloop/core"
)

// UI styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			Padding(0, 1)

	assistantStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#10B981")).
			Padding(0, 1)

	truncatedStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#F59E0B")).
			Padding(0, 1)

	toolCallStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8B5CF6"))

	faultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))
)

const greeting = "How can I help you?"

func renderBanner(w io.Writer, sessionID string) {
	fmt.Fprintln(w, titleStyle.Render("chatloop"))
	fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("session %s · type quit, exit or q to leave", sessionID)))
}

func renderAssistant(w io.Writer, content string, truncated bool) {
	style := assistantStyle
	if truncated {
		style = truncatedStyle
	}
	fmt.Fprintln(w, style.Render(strings.TrimSpace(content)))
}

// renderTrace prints one line per tool invocation of a turn.
func renderTrace(w io.Writer, res *core.TurnResult) {
	for _, inv := range res.ToolInvocations {
		line := fmt.Sprintf("🔧 %s(%s)", inv.Request.Name, formatArgs(inv.Request.Arguments))
		if inv.Result.IsFault() {
			fmt.Fprintln(w, faultStyle.Render(fmt.Sprintf("%s → %s: %s", line, inv.Result.Fault.Code, inv.Result.Fault.Message)))
			continue
		}
		fmt.Fprintln(w, toolCallStyle.Render(fmt.Sprintf("%s → %s", line, truncateString(inv.Result.Content, 80))))
	}
}

func renderTranscript(w io.Writer, msgs []core.Message) {
	for _, m := range msgs {
		switch m.Role {
		case core.RoleUser:
			fmt.Fprintf(w, "%s %s\n", mutedStyle.Render("you:"), m.Content)
		case core.RoleAssistant:
			for _, c := range m.ToolCalls {
				fmt.Fprintln(w, toolCallStyle.Render(fmt.Sprintf("🔧 %s(%s)", c.Name, formatArgs(c.Arguments))))
			}
			if m.Content != "" {
				fmt.Fprintf(w, "%s %s\n", mutedStyle.Render("assistant:"), m.Content)
			}
		case core.RoleTool:
			style := toolCallStyle
			if m.IsFault() {
				style = faultStyle
			}
			fmt.Fprintln(w, style.Render(fmt.Sprintf("   ↳ %s", truncateString(m.Content, 80))))
		}
	}
}

func renderError(w io.Writer, err error) {
	fmt.Fprintln(w, errorStyle.Render("error: "+err.Error()))
}

func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return ""
	}
	parts := make([]string, 0, len(args))
	for k, v := range args {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}

func truncateString(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
