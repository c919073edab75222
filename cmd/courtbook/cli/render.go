// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/bureau-foundation/courtbook/lib/acquire"
	"github.com/bureau-foundation/courtbook/lib/bookingstore"
	"github.com/bureau-foundation/courtbook/lib/retry"
)

// Theme is the palette for rendered tables. ANSI 256-color codes.
type Theme struct {
	Header     lipgloss.Color
	Faint      lipgloss.Color
	Pending    lipgloss.Color
	InProgress lipgloss.Color
	Success    lipgloss.Color
	Failed     lipgloss.Color
}

// DefaultTheme suits a dark terminal.
var DefaultTheme = Theme{
	Header:     lipgloss.Color("252"),
	Faint:      lipgloss.Color("243"),
	Pending:    lipgloss.Color("75"),
	InProgress: lipgloss.Color("214"),
	Success:    lipgloss.Color("78"),
	Failed:     lipgloss.Color("203"),
}

// StatusColor returns the color for a booking status.
func (theme Theme) StatusColor(status bookingstore.Status) lipgloss.Color {
	switch status {
	case bookingstore.Pending:
		return theme.Pending
	case bookingstore.InProgress:
		return theme.InProgress
	case bookingstore.Success:
		return theme.Success
	case bookingstore.Failed:
		return theme.Failed
	default:
		return theme.Faint
	}
}

const (
	columnWidthID      = 10
	columnWidthStatus  = 13
	columnWidthInstant = 18
	columnWidthSlot    = 18
	columnWidthTargets = 28
)

// RenderBookings writes a table of bookings, one row each. Times are
// shown in location.
func RenderBookings(w io.Writer, bookings []bookingstore.Booking, location *time.Location, theme Theme) {
	if len(bookings) == 0 {
		fmt.Fprintln(w, lipgloss.NewStyle().Foreground(theme.Faint).Render("no bookings"))
		return
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.Header)
	header := headerStyle.Width(columnWidthID).Render("ID") +
		headerStyle.Width(columnWidthStatus).Render("STATUS") +
		headerStyle.Width(columnWidthInstant).Render("OPENS") +
		headerStyle.Width(columnWidthSlot).Render("SLOT") +
		headerStyle.Width(columnWidthTargets).Render("TARGETS") +
		headerStyle.Render("RESULT")
	fmt.Fprintln(w, header)

	for _, booking := range bookings {
		statusStyle := lipgloss.NewStyle().
			Width(columnWidthStatus).
			Foreground(theme.StatusColor(booking.Status)).
			Bold(booking.Status == bookingstore.Success)
		cell := lipgloss.NewStyle()

		row := cell.Width(columnWidthID).Render(truncate(booking.ID, columnWidthID-1)) +
			statusStyle.Render(string(booking.Status)) +
			cell.Width(columnWidthInstant).Render(booking.Instant.In(location).Format("2006-01-02 15:04")) +
			cell.Width(columnWidthSlot).Render(slot(booking.Spec)) +
			cell.Width(columnWidthTargets).Render(truncate(strings.Join(booking.Targets, ","), columnWidthTargets-2)) +
			lipgloss.NewStyle().Foreground(theme.Faint).Render(result(booking))
		fmt.Fprintln(w, row)
	}
}

func slot(spec bookingstore.Spec) string {
	return fmt.Sprintf("%s %02d:%02d +%dm", spec.Date[min(5, len(spec.Date)):],
		spec.StartMinutes/60, spec.StartMinutes%60, spec.DurationMinutes)
}

func result(booking bookingstore.Booking) string {
	switch {
	case booking.Status == bookingstore.Success:
		return fmt.Sprintf("%s on %s", booking.ConfirmationID, booking.BookedTarget)
	case booking.Message != "":
		return truncate(booking.Message, 60)
	case booking.RunCount > 0:
		return fmt.Sprintf("%d runs", booking.RunCount)
	default:
		return ""
	}
}

// RenderOutcome writes a run outcome: a headline, then one line per
// attempted target.
func RenderOutcome(w io.Writer, outcome acquire.Outcome, theme Theme) {
	headline := lipgloss.NewStyle().Bold(true)
	if outcome.Succeeded() {
		fmt.Fprintln(w, headline.Foreground(theme.Success).Render(
			fmt.Sprintf("booked %s, confirmation %s", outcome.Target, confirmation(outcome.ConfirmationID))))
	} else {
		fmt.Fprintln(w, headline.Foreground(theme.Failed).Render(
			fmt.Sprintf("not booked (%s)", outcome.Status)))
	}

	faint := lipgloss.NewStyle().Foreground(theme.Faint)
	for i, attempt := range outcome.Attempts {
		marker := "✗"
		if outcome.Succeeded() && i == len(outcome.Attempts)-1 {
			marker = "✓"
		}
		fmt.Fprintf(w, "  %s %-12s %s\n", marker, attempt.Target,
			faint.Render(fmt.Sprintf("%d nav, %d retries, %s", attempt.Navigations, attempt.Retries, attempt.Diagnostic)))
	}
	fmt.Fprintln(w, faint.Render("run "+outcome.RunID))
}

func confirmation(id string) string {
	if id == "" {
		return "(no id)"
	}
	return id
}

// RenderTrace writes a retry controller trace, one step per line.
func RenderTrace(w io.Writer, trace []retry.Step, theme Theme) {
	faint := lipgloss.NewStyle().Foreground(theme.Faint)
	for _, step := range trace {
		fmt.Fprintf(w, "    #%d %-14s %-8s %s\n", step.Navigation, step.Result, step.Action,
			faint.Render(step.At.Format("15:04:05.000")+" "+step.Reason))
	}
}

// truncate shortens text to width display cells, ending in "…".
func truncate(text string, width int) string {
	if lipgloss.Width(text) <= width {
		return text
	}
	runes := []rune(text)
	for len(runes) > 0 && lipgloss.Width(string(runes))+1 > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "…"
}
