// SPDX-License-Identifier: MPL-2.0

package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	passStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B")).Bold(true)
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	nameStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#7C3AED"))
	cmdStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#3B82F6"))
)

// Render writes the summary: one line per environment, with the failing
// command or provisioning step for failures.
func Render(w io.Writer, r *Report) error {
	var b strings.Builder

	width := 0
	for _, res := range r.Results {
		width = max(width, len(res.Name))
	}

	for _, res := range r.Results {
		name := nameStyle.Render(fmt.Sprintf("%-*s", width, res.Name))
		fmt.Fprintf(&b, "  %s: %s", name, statusLine(res))
		if res.Status != StatusNotRun {
			fmt.Fprintf(&b, " %s", mutedStyle.Render("("+formatDuration(res.Duration)+")"))
		}
		b.WriteByte('\n')
	}

	switch {
	case r.Passed():
		fmt.Fprintf(&b, "  %s %s\n", passStyle.Render("congratulations :)"), mutedStyle.Render("("+formatDuration(r.Duration)+")"))
	case r.Interrupted():
		fmt.Fprintf(&b, "  %s\n", warnStyle.Render("run interrupted"))
	default:
		fmt.Fprintf(&b, "  %s %s\n", failStyle.Render("evaluation failed :("), mutedStyle.Render("("+formatDuration(r.Duration)+")"))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func statusLine(res EnvResult) string {
	switch res.Status {
	case StatusPassed:
		return passStyle.Render("OK")
	case StatusFailed:
		return fmt.Sprintf("%s code %d at commands[%d] %s",
			failStyle.Render("FAIL"), res.ExitCode, res.FailedIndex, cmdStyle.Render(strings.Join(res.Command, " ")))
	case StatusProvisioningFailed:
		line := failStyle.Render("PROVISIONING FAILED") + " at " + res.Step
		if len(res.Command) > 0 {
			line += " " + cmdStyle.Render(strings.Join(res.Command, " "))
		}
		if res.ExitCode != 0 {
			line += fmt.Sprintf(" (code %d)", res.ExitCode)
		}
		return line
	case StatusInterrupted:
		return warnStyle.Render("INTERRUPTED")
	default:
		return mutedStyle.Render("NOT RUN")
	}
}

func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.2f seconds", d.Seconds())
}
