package analysis

import (
	"fmt"
	"strings"

	"github.com/chenBenjamin97/shot-tracker/pkg/shot"
)

const reportRule = "======================================"

//Report renders a plain text summary of records
func Report(records []shot.Record) string {
	a := Analyze(records)
	s, c := a.Stats, a.Comparison

	var b strings.Builder
	b.WriteString("\n" + reportRule + "\n")
	b.WriteString("    BASKETBALL SHOT ANALYSIS REPORT\n")
	b.WriteString(reportRule + "\n\n")

	b.WriteString("OVERALL STATISTICS\n")
	b.WriteString("------------------\n")
	fmt.Fprintf(&b, "Total Shots:              %d\n", s.TotalShots)
	fmt.Fprintf(&b, "Makes:                    %d\n", s.Makes)
	fmt.Fprintf(&b, "Misses:                   %d\n", s.Misses)
	fmt.Fprintf(&b, "Unknown Results:          %d\n", s.Unknowns)
	fmt.Fprintf(&b, "Make Percentage:          %.1f%%\n", s.MakePercentage)
	fmt.Fprintf(&b, "Consistency Score:        %.2f / 1.00\n", s.ConsistencyScore)
	fmt.Fprintf(&b, "Avg Detection Confidence: %.2f\n", s.AvgConfidence)
	fmt.Fprintf(&b, "Avg Shot Duration:        %.2fs\n\n", s.AvgDuration)

	b.WriteString("MAKES vs MISSES COMPARISON\n")
	b.WriteString("---------------------------\n")
	fmt.Fprintf(&b, "Makes Count:    %d\n", c.MakesCount)
	fmt.Fprintf(&b, "Misses Count:   %d\n", c.MissesCount)
	if c.Differences != nil {
		fmt.Fprintf(&b, "Elbow Angle Difference: %.1f°\n", c.Differences.ElbowAngleDifference)
	}
	b.WriteString("\n")

	b.WriteString("IMPROVEMENT SUGGESTIONS\n")
	b.WriteString("------------------------\n")
	for i, suggestion := range a.Suggestions {
		fmt.Fprintf(&b, "%d. %s\n", i+1, suggestion)
	}

	b.WriteString("\n" + strings.Repeat("=", 40) + "\n")
	return b.String()
}
