package ui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/apptremind/remindctl/internal/apiclient"
)

// View implements tea.Model.
func (m Model) View() string {
	if m.showHelp {
		return m.renderHelp()
	}

	body := m.renderLogin()
	if m.currentView == ViewDashboard {
		body = m.renderDashboard()
	}

	parts := []string{m.renderHeader(), body, m.renderStatusLine(), m.renderFooter()}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) renderHeader() string {
	styles := m.theme.Styles()
	parts := []string{styles.Logo.Render("remindctl")}
	if m.baseURL != "" {
		parts = append(parts, styles.MutedText.Render(m.baseURL))
	}
	parts = append(parts, m.renderHealth())
	if m.busy {
		parts = append(parts, m.spinner.View())
	}
	return styles.Header.Width(m.width).Render(strings.Join(parts, "  "))
}

func (m Model) renderHealth() string {
	styles := m.theme.Styles()
	switch {
	case m.lastChecked.IsZero():
		return styles.FaintText.Render("checking backend…")
	case m.healthErr != nil:
		return styles.DangerText.Render("BACKEND " + classifyConnectionError(m.healthErr))
	default:
		return styles.SuccessText.Render(strings.ToUpper(m.healthState)) +
			styles.FaintText.Render(" "+m.lastChecked.Format("15:04:05"))
	}
}

func (m Model) renderLogin() string {
	styles := m.theme.Styles()

	var b strings.Builder
	b.WriteString(styles.Text.Bold(true).Render("Sign in"))
	b.WriteString("\n\n")

	labels := [2]string{"Email", "Password"}
	for i, input := range m.inputs {
		b.WriteString(styles.MutedText.Render(labels[i]))
		b.WriteString("\n")
		box := styles.Input
		if i == m.focusIdx {
			box = styles.FocusedInput
		}
		b.WriteString(box.Width(40).Render(input.View()))
		b.WriteString("\n")
	}
	return styles.Panel.Render(b.String())
}

func (m Model) renderDashboard() string {
	styles := m.theme.Styles()
	snap := m.snapshot
	id := snap.Identity

	rows := [][2]string{
		{"User", orDash(id.UserID)},
		{"Email", orDash(id.Email)},
		{"Business", orDash(id.BusinessID)},
		{"Role", orDash(id.Role)},
		{"Token", describeExpiry(id.ExpiresAt, time.Now())},
	}
	if !snap.LastUpdated.IsZero() {
		rows = append(rows, [2]string{"Checked", snap.LastUpdated.Format("15:04:05")})
	}

	var b strings.Builder
	b.WriteString(styles.Text.Bold(true).Render("Session"))
	b.WriteString("\n\n")
	label := lipgloss.NewStyle().Width(10)
	for _, row := range rows {
		b.WriteString(label.Inherit(styles.MutedText).Render(row[0]))
		b.WriteString(styles.Text.Render(row[1]))
		b.WriteString("\n")
	}
	if snap.IsOffline() {
		b.WriteString("\n")
		b.WriteString(styles.WarningText.Render(fmt.Sprintf("Identity stale after %d failed lookups", snap.ConsecutiveFailures)))
	}
	return styles.Panel.Render(strings.TrimRight(b.String(), "\n"))
}

func (m Model) renderStatusLine() string {
	styles := m.theme.Styles()
	switch {
	case m.failure != nil:
		return styles.DangerText.Render(m.failure.Error())
	case m.currentView == ViewDashboard && m.snapshot.LastError != nil:
		return styles.WarningText.Render(m.snapshot.LastError.Error())
	case m.notice != "":
		return styles.SuccessText.Render(m.notice)
	default:
		return ""
	}
}

func (m Model) renderFooter() string {
	styles := m.theme.Styles()

	type cmd struct{ key, desc string }
	var commands []cmd
	if m.currentView == ViewLogin {
		commands = []cmd{{"tab", "Next field"}, {"enter", "Sign in"}, {"esc", "Quit"}}
	} else {
		commands = []cmd{{"r", "Rotate"}, {"R", "Reload"}, {"L", "Sign out"}, {"T", "Theme"}, {"?", "Help"}, {"q", "Quit"}}
	}

	parts := make([]string, 0, len(commands))
	for _, c := range commands {
		parts = append(parts, styles.Key.Render("<"+c.key+">")+" "+styles.MutedText.Render(c.desc))
	}
	return styles.Footer.Width(m.width).Render(strings.Join(parts, "  "))
}

// renderHelp renders the help overlay.
func (m Model) renderHelp() string {
	styles := m.theme.Styles()

	sections := []helpSection{
		{
			title: "Session",
			items: []helpItem{
				{"r", "Rotate tokens now"},
				{"R", "Reload identity"},
				{"L", "Sign out"},
			},
		},
		{
			title: "General",
			items: []helpItem{
				{"T", "Cycle theme"},
				{"?", "Toggle help"},
				{"q/ctrl+c", "Quit"},
			},
		},
	}

	var b strings.Builder
	b.WriteString(styles.Text.Bold(true).Render("Keyboard Shortcuts"))
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render(strings.Repeat("─", 30)))
	b.WriteString("\n\n")

	for i, section := range sections {
		b.WriteString(styles.AccentText.Bold(true).Render(section.title))
		b.WriteString("\n")
		for _, item := range section.items {
			b.WriteString(styles.Key.Width(12).Render(item.key))
			b.WriteString(styles.Text.Render(item.desc))
			b.WriteString("\n")
		}
		if i < len(sections)-1 {
			b.WriteString("\n")
		}
	}

	modal := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(m.theme.Accent)).
		Padding(1, 2).
		Width(40)

	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		modal.Render(b.String()),
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceForeground(lipgloss.Color(m.theme.Background)),
	)
}

type helpSection struct {
	title string
	items []helpItem
}

type helpItem struct {
	key  string
	desc string
}

// classifyConnectionError maps transport failures to short header labels.
func classifyConnectionError(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, apiclient.ErrServerError) {
		return "UNHEALTHY"
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "connection refused"):
		return "OFFLINE"
	case strings.Contains(msg, "no such host"):
		return "HOST NOT FOUND"
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return "TIMEOUT"
	default:
		return "ERROR"
	}
}

func describeExpiry(exp, now time.Time) string {
	if exp.IsZero() {
		return "-"
	}
	left := exp.Sub(now).Round(time.Second)
	if left <= 0 {
		return "expired, refreshes on next call"
	}
	return "expires in " + left.String() + " (" + exp.Local().Format("15:04:05") + ")"
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
