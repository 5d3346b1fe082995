package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"
)

// StatusLine is one instrument's row in a status report.
type StatusLine struct {
	Instrument  string
	State       string
	Points      int
	Last        float64
	RefreshedAt time.Time
}

// FormatDegradedAlert formats the message sent when an instrument ran out of providers.
func FormatDegradedAlert(instrument, outcome, reason string, refreshedAt time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "⚠️ <b>%s</b> data degraded: %s\n", strings.ToUpper(instrument), strings.ToLower(outcome))
	if refreshedAt.IsZero() {
		b.WriteString("No cached data available.\n")
	} else {
		fmt.Fprintf(&b, "Serving data from %s.\n", refreshedAt.UTC().Format(time.RFC3339))
	}
	if reason != "" {
		fmt.Fprintf(&b, "<code>%s</code>", html.EscapeString(reason))
	}
	return b.String()
}

// FormatStatus formats a status report for the /status command.
func FormatStatus(lines []StatusLine, now time.Time) string {
	var b strings.Builder
	b.WriteString("📊 <b>Market dashboard status</b>\n\n")
	for _, l := range lines {
		if l.Points == 0 {
			fmt.Fprintf(&b, "%s: %s\n", strings.ToUpper(l.Instrument), l.State)
			continue
		}
		age := now.Sub(l.RefreshedAt).Truncate(time.Second)
		fmt.Fprintf(&b, "%s: %s, %d pts, last %.4f (%s ago)\n",
			strings.ToUpper(l.Instrument), l.State, l.Points, l.Last, age)
	}
	return b.String()
}
