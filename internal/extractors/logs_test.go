package extractors

import (
	"testing"

	"github.com/miradorstack/mirador-triage/internal/models"
)

const sampleLogs = `2024-05-01T10:00:00Z INFO api started
2024-05-01T10:00:01Z ERROR db connection refused
2024-05-01T10:00:02Z ERROR db connection refused

2024-05-01T10:00:03Z WARNING pool at 90% capacity
ts=2024-05-01T10:00:04Z level=error msg="request failed"
2024-05-01T10:00:05Z INFO retry scheduled, no error
`

func TestScanSeverities(t *testing.T) {
	stats := ScanSeverities(sampleLogs)
	if stats.TotalLines != 6 {
		t.Fatalf("expected 6 non-blank lines, got %d", stats.TotalLines)
	}
	if stats.ErrorLines != 3 {
		t.Fatalf("expected 3 error lines, got %d", stats.ErrorLines)
	}
	if stats.WarningLines != 1 {
		t.Fatalf("expected 1 warning line, got %d", stats.WarningLines)
	}
}

func TestScanSeveritiesEmpty(t *testing.T) {
	if stats := ScanSeverities(""); stats != (LogStats{}) {
		t.Fatalf("expected zero stats, got %+v", stats)
	}
}

func TestDiscrepancies(t *testing.T) {
	stats := LogStats{TotalLines: 4, ErrorLines: 3, WarningLines: 1}
	if d := stats.Discrepancies(models.LogAnalysisSummary{TotalLines: 4, ErrorCount: 3, WarningCount: 1}); len(d) != 0 {
		t.Fatalf("expected agreement, got %v", d)
	}
	d := stats.Discrepancies(models.LogAnalysisSummary{TotalLines: 4, ErrorCount: 2, WarningCount: 1})
	if len(d) != 1 || d[0] != "error_count: model=2 scan=3" {
		t.Fatalf("unexpected discrepancies %v", d)
	}
}
