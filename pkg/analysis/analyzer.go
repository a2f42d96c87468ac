//Package analysis aggregates detected shots into statistics and coaching suggestions
package analysis

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/chenBenjamin97/shot-tracker/pkg/shot"
)

const (
	lowMakePercentage   = 50.0
	lowConsistency      = 0.6
	elbowAngleTolerance = 5.0 //degrees
	lowConfidence       = 0.6
	varianceWeight      = 10.0
)

//Stats are the cross-shot statistics of a set of records. They are recomputed on demand and never stored.
type Stats struct {
	TotalShots       int     `json:"total_shots"`
	Makes            int     `json:"makes"`
	Misses           int     `json:"misses"`
	Unknowns         int     `json:"unknowns"`
	MakePercentage   float64 `json:"make_percentage"`
	AvgConfidence    float64 `json:"avg_confidence"`
	AvgDuration      float64 `json:"avg_duration"`
	ConsistencyScore float64 `json:"consistency_score"`
}

//GroupMetrics are the averaged form metrics of one result group
type GroupMetrics struct {
	Count                  int     `json:"count"`
	AvgElbowAngleAtRelease float64 `json:"avg_elbow_angle_at_release"`
	AvgDuration            float64 `json:"avg_duration"`
	AvgConfidence          float64 `json:"avg_confidence"`
}

//Differences compares the made and missed groups
type Differences struct {
	ElbowAngleDifference float64 `json:"elbow_angle_difference"`
}

//Comparison is the makes vs misses breakdown. Differences is nil unless both groups have shots.
type Comparison struct {
	MakesCount  int          `json:"makes_count"`
	MissesCount int          `json:"misses_count"`
	Makes       GroupMetrics `json:"makes"`
	Misses      GroupMetrics `json:"misses"`
	Differences *Differences `json:"differences,omitempty"`
}

//Analysis bundles everything the analyzer derives from a set of records
type Analysis struct {
	Stats       Stats      `json:"stats"`
	Comparison  Comparison `json:"comparison"`
	Suggestions []string   `json:"suggestions"`
}

//Analyzer aggregates an immutable list of shot records
type Analyzer struct {
	records []shot.Record
}

//New creates an analyzer over a copy of records
func New(records []shot.Record) *Analyzer {
	return &Analyzer{records: append([]shot.Record(nil), records...)}
}

//Analyze runs every aggregation over records
func Analyze(records []shot.Record) Analysis {
	a := New(records)
	return Analysis{
		Stats:       a.Stats(),
		Comparison:  a.MakesVsMisses(),
		Suggestions: a.Suggestions(),
	}
}

//Stats computes the overall statistics. An empty list yields all zeros.
func (a *Analyzer) Stats() Stats {
	var s Stats
	if len(a.records) == 0 {
		return s
	}

	for i := range a.records {
		switch a.records[i].Result() {
		case shot.ResultMade:
			s.Makes++
		case shot.ResultMissed:
			s.Misses++
		default:
			s.Unknowns++
		}
	}

	s.TotalShots = len(a.records)
	s.MakePercentage = float64(s.Makes) * 100 / float64(s.TotalShots)
	s.AvgConfidence = stat.Mean(confidences(a.records), nil)
	s.AvgDuration = stat.Mean(durations(a.records), nil)
	s.ConsistencyScore = consistency(durations(a.records))

	return s
}

//MakesVsMisses partitions the records by result and compares the form of both groups. Unknown results belong to
//neither group.
func (a *Analyzer) MakesVsMisses() Comparison {
	var makes, misses []shot.Record
	for _, r := range a.records {
		switch r.Result() {
		case shot.ResultMade:
			makes = append(makes, r)
		case shot.ResultMissed:
			misses = append(misses, r)
		}
	}

	c := Comparison{
		MakesCount:  len(makes),
		MissesCount: len(misses),
		Makes:       groupMetrics(makes),
		Misses:      groupMetrics(misses),
	}
	if len(makes) > 0 && len(misses) > 0 {
		c.Differences = &Differences{
			ElbowAngleDifference: math.Abs(c.Makes.AvgElbowAngleAtRelease - c.Misses.AvgElbowAngleAtRelease),
		}
	}

	return c
}

//Suggestions returns coaching hints in a fixed order, or a single encouragement when nothing stands out
func (a *Analyzer) Suggestions() []string {
	var out []string
	s := a.Stats()

	if s.MakePercentage < lowMakePercentage {
		out = append(out, fmt.Sprintf("Current make rate is %.1f%%. Focus on form consistency.", s.MakePercentage))
	}
	if s.ConsistencyScore < lowConsistency {
		out = append(out, "Shot timing is inconsistent. Practice with the same release point each time.")
	}
	if d := a.MakesVsMisses().Differences; d != nil && d.ElbowAngleDifference > elbowAngleTolerance {
		out = append(out, fmt.Sprintf("Elbow angle varies %.1f°. Keep it consistent.", d.ElbowAngleDifference))
	}
	if s.AvgConfidence < lowConfidence {
		out = append(out, "Ensure clear camera view of your entire shot and the basket.")
	}

	if len(out) == 0 {
		return []string{"Continue practicing! Keep mechanics consistent."}
	}
	return out
}

//consistency maps the sample variance of shot durations into [0,1]. A single shot has no variation.
func consistency(durations []float64) float64 {
	switch len(durations) {
	case 0:
		return 0
	case 1:
		return 1
	}
	return math.Max(0, math.Min(1, 1-stat.Variance(durations, nil)*varianceWeight))
}

func groupMetrics(records []shot.Record) GroupMetrics {
	if len(records) == 0 {
		return GroupMetrics{}
	}

	var angles []float64
	for _, r := range records {
		if r.Form != nil {
			angles = append(angles, r.Form.ElbowAngleAtRelease)
		}
	}

	g := GroupMetrics{
		Count:         len(records),
		AvgDuration:   stat.Mean(durations(records), nil),
		AvgConfidence: stat.Mean(confidences(records), nil),
	}
	if len(angles) > 0 {
		g.AvgElbowAngleAtRelease = stat.Mean(angles, nil)
	}
	return g
}

func durations(records []shot.Record) []float64 {
	out := make([]float64, len(records))
	for i, r := range records {
		out[i] = r.Window.Duration
	}
	return out
}

func confidences(records []shot.Record) []float64 {
	out := make([]float64, len(records))
	for i := range records {
		out[i] = records[i].Confidence()
	}
	return out
}
