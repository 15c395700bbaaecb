package importer

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Report summarizes one import session.
type Report struct {
	RunID      string        `json:"run_id"`
	SessionID  string        `json:"session_id"`
	Edition    string        `json:"edition"`
	Files      int           `json:"files"`
	Imported   int           `json:"imported"`
	Skipped    int           `json:"skipped"`
	Laws       int           `json:"laws"`
	Structures int           `json:"structures"`
	Images     int           `json:"images"`
	Permalinks int           `json:"permalinks"`
	Duration   time.Duration `json:"duration"`
	Skips      []Skip        `json:"skips,omitempty"`
}

// CountSkips returns the number of skips of the given kind.
func (r *Report) CountSkips(kind SkipKind) int {
	n := 0
	for _, skip := range r.Skips {
		if skip.Kind == kind {
			n++
		}
	}
	return n
}

// FormatReport formats a Report for terminal output.
func FormatReport(report *Report) string {
	var builder strings.Builder

	builder.WriteString("\nImport Report\n")
	builder.WriteString(strings.Repeat("═", 60) + "\n")
	builder.WriteString(fmt.Sprintf("Edition: %s | Run: %s\n", report.Edition, report.RunID))
	builder.WriteString(fmt.Sprintf("Files: %d | Imported: %d | Skipped: %d\n",
		report.Files, report.Imported, report.Skipped))
	builder.WriteString(fmt.Sprintf("Structures: %d | Laws: %d | Images: %d | Permalinks: %d\n",
		report.Structures, report.Laws, report.Images, report.Permalinks))
	builder.WriteString(fmt.Sprintf("Duration: %s\n", report.Duration.Round(time.Millisecond)))

	if len(report.Skips) > 0 {
		builder.WriteString(strings.Repeat("─", 60) + "\n")
		for _, skip := range report.Skips {
			line := fmt.Sprintf("  [SKIP] %-18s %s", skip.Kind, skip.Detail)
			if skip.File != "" {
				line += fmt.Sprintf(" (%s)", skip.File)
			}
			builder.WriteString(line + "\n")
		}
	}

	return builder.String()
}

// FormatReportJSON formats a Report as JSON.
func FormatReportJSON(report *Report) string {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error": %q}`, err.Error())
	}
	return string(data)
}
