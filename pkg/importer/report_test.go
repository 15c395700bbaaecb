package importer

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestFormatReport(t *testing.T) {
	report := &Report{
		RunID:      "run-1",
		Edition:    "2013",
		Files:      3,
		Imported:   2,
		Skipped:    1,
		Laws:       10,
		Structures: 4,
		Permalinks: 14,
		Duration:   1500 * time.Millisecond,
		Skips: []Skip{
			{Kind: SkipDocument, File: "1-1-1-2.xml", Detail: "malformed document"},
			{Kind: SkipSection, Detail: "Editor's note"},
		},
	}

	output := FormatReport(report)
	for _, want := range []string{
		"Import Report",
		"Edition: 2013 | Run: run-1",
		"Files: 3 | Imported: 2 | Skipped: 1",
		"Structures: 4 | Laws: 10 | Images: 0 | Permalinks: 14",
		"Duration: 1.5s",
		"[SKIP] document",
		"(1-1-1-2.xml)",
		"Editor's note",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}

	if report.CountSkips(SkipSection) != 1 || report.CountSkips(SkipOrphan) != 0 {
		t.Error("CountSkips miscounted")
	}
}

func TestFormatReportJSON(t *testing.T) {
	output := FormatReportJSON(&Report{RunID: "run-1", Laws: 2})

	var decoded Report
	if err := json.Unmarshal([]byte(output), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded.RunID != "run-1" || decoded.Laws != 2 {
		t.Errorf("unexpected report %+v", decoded)
	}
}
