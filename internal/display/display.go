// Package display provides terminal formatting for mailscheduler output.
package display

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/phleudt/mailscheduler/internal/types"
)

var (
	// Styles
	Muted    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))
	Dim      = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ca3af"))
	Bold     = lipgloss.NewStyle().Bold(true)
	Success  = lipgloss.NewStyle().Foreground(lipgloss.Color("#16a34a"))
	ErrStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#dc2626"))

	PendingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#d97706"))
	SentStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#16a34a"))
	FailedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#dc2626"))
	CancelledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ca3af"))
)

// StatusDot returns a colored dot for an email status.
func StatusDot(status string) string {
	switch status {
	case types.StatusPending:
		return PendingStyle.Render("○")
	case types.StatusSent:
		return SentStyle.Render("●")
	case types.StatusFailed:
		return FailedStyle.Render("✗")
	case types.StatusCancelled:
		return CancelledStyle.Render("◌")
	default:
		return Dim.Render("·")
	}
}

// StatusLabel returns a styled status label.
func StatusLabel(status string) string {
	label := fmt.Sprintf("%-9s", status)
	switch status {
	case types.StatusPending:
		return PendingStyle.Render(label)
	case types.StatusSent:
		return SentStyle.Render(label)
	case types.StatusFailed:
		return FailedStyle.Render(label)
	case types.StatusCancelled:
		return CancelledStyle.Render(label)
	default:
		return label
	}
}

// TimeAgo formats an ISO date string as a relative time.
func TimeAgo(isoDate string) string {
	if isoDate == "" {
		return ""
	}

	var t time.Time
	var err error
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05Z", "2006-01-02 15:04:05", time.RFC3339Nano} {
		t, err = time.Parse(layout, isoDate)
		if err == nil {
			break
		}
	}
	if err != nil {
		return isoDate[:min(10, len(isoDate))]
	}

	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Format("Jan 2")
	}
}

// Truncate shortens a string to maxLen, adding ellipsis if needed.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// SuccessMsg prints a green checkmark + message.
func SuccessMsg(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(Success.Render("✓") + " " + msg)
}

// ErrorMsg prints a red X + message to stderr.
func ErrorMsg(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, ErrStyle.Render("✗")+" "+msg)
}

// Header prints a section header.
func Header(title string) {
	fmt.Println(Bold.Render(title))
}

// SubHeader prints a dim subsection label.
func SubHeader(title string) {
	fmt.Println(Muted.Render(title))
}

// PassSummaryLine renders one pass's outcome as a compact line.
func PassSummaryLine(n int, s *types.PassSummary) string {
	parts := []string{
		fmt.Sprintf("templates %d/%d/%d", s.Templates.Updated, s.Templates.Added, s.Templates.Disconnected),
		fmt.Sprintf("contacts +%d ~%d", s.Contacts.ContactsCreated, s.Contacts.ContactsUpdated),
		fmt.Sprintf("recipients +%d ~%d", s.Contacts.RecipientsCreated, s.Contacts.RecipientsUpdated),
		fmt.Sprintf("scheduled %d+%d", s.Schedule.InitialScheduled, s.Schedule.FollowUpScheduled),
		fmt.Sprintf("sent %d", s.Dispatch.Sent),
	}
	if s.Dispatch.Failed > 0 {
		parts = append(parts, FailedStyle.Render(fmt.Sprintf("failed %d", s.Dispatch.Failed)))
	}
	if s.Dispatch.Replies > 0 {
		parts = append(parts, fmt.Sprintf("replies %d", s.Dispatch.Replies))
	}
	return fmt.Sprintf("pass %d: %s", n, strings.Join(parts, "  "))
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
