package extractors

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/miradorstack/mirador-triage/internal/models"
)

var (
	errorLevel   = regexp.MustCompile(`\b(ERROR|ERR|FATAL|CRITICAL|CRIT|PANIC|SEVERE)\b|(?i:level="?(error|fatal|critical|panic)"?)`)
	warningLevel = regexp.MustCompile(`\b(WARN|WARNING)\b|(?i:level="?(warn|warning)"?)`)
)

// LogStats are line counters derived directly from raw log text.
type LogStats struct {
	TotalLines   int
	ErrorLines   int
	WarningLines int
}

// ScanSeverities counts non-blank lines and the lines carrying an error or warning level.
// A line matching both is counted as an error.
func ScanSeverities(logs string) LogStats {
	var stats LogStats
	for _, line := range strings.Split(logs, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		stats.TotalLines++
		switch {
		case errorLevel.MatchString(line):
			stats.ErrorLines++
		case warningLevel.MatchString(line):
			stats.WarningLines++
		}
	}
	return stats
}

// Discrepancies lists the counters on which a model summary disagrees with the scan.
func (s LogStats) Discrepancies(summary models.LogAnalysisSummary) []string {
	var out []string
	if summary.TotalLines != s.TotalLines {
		out = append(out, fmt.Sprintf("total_lines: model=%d scan=%d", summary.TotalLines, s.TotalLines))
	}
	if summary.ErrorCount != s.ErrorLines {
		out = append(out, fmt.Sprintf("error_count: model=%d scan=%d", summary.ErrorCount, s.ErrorLines))
	}
	if summary.WarningCount != s.WarningLines {
		out = append(out, fmt.Sprintf("warning_count: model=%d scan=%d", summary.WarningCount, s.WarningLines))
	}
	return out
}
