package analysis

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chenBenjamin97/shot-tracker/pkg/shot"
)

func rec(result shot.Result, confidence, duration, elbow float64) shot.Record {
	r := shot.Record{
		Window: shot.PhaseWindow{StartTs: 1, ReleaseTs: 1 + duration/2, EndTs: 1 + duration, Duration: duration},
		Form:   &shot.FormMetrics{ElbowAngleAtRelease: elbow},
	}
	return r.WithBallTracking(shot.BallTracking{Result: result, Confidence: confidence, TrajectoryLength: 12})
}

func TestStatsEmpty(t *testing.T) {
	s := New(nil).Stats()
	if diff := cmp.Diff(Stats{}, s); diff != "" {
		t.Errorf("Stats() mismatch (-want +got):\n%s", diff)
	}

	c := New(nil).MakesVsMisses()
	assert.Equal(t, 0, c.MakesCount)
	assert.Nil(t, c.Differences)
}

func TestStatsSingleShotIsConsistent(t *testing.T) {
	s := New([]shot.Record{rec(shot.ResultMade, 0.7, 0.8, 150)}).Stats()
	assert.Equal(t, 1, s.TotalShots)
	assert.Equal(t, 1.0, s.ConsistencyScore)
	assert.Equal(t, 100.0, s.MakePercentage)
}

func TestStatsMakePercentage(t *testing.T) {
	var records []shot.Record
	for i := 0; i < 6; i++ {
		records = append(records, rec(shot.ResultMade, 0.9, 1.0, 150))
	}
	for i := 0; i < 4; i++ {
		records = append(records, rec(shot.ResultMissed, 0.5, 1.0, 150))
	}

	s := New(records).Stats()
	assert.Equal(t, 10, s.TotalShots)
	assert.Equal(t, 6, s.Makes)
	assert.Equal(t, 4, s.Misses)
	assert.Equal(t, 0, s.Unknowns)
	assert.Equal(t, 60.0, s.MakePercentage)
	assert.InDelta(t, 0.74, s.AvgConfidence, 1e-9)
	assert.InDelta(t, 1.0, s.AvgDuration, 1e-9)
	assert.InDelta(t, 1.0, s.ConsistencyScore, 1e-9)
}

func TestStatsConsistency(t *testing.T) {
	t.Run("small spread", func(t *testing.T) {
		s := New([]shot.Record{
			rec(shot.ResultMade, 0.8, 1.0, 150),
			rec(shot.ResultMade, 0.8, 1.2, 150),
		}).Stats()
		assert.InDelta(t, 0.8, s.ConsistencyScore, 1e-9)
	})

	t.Run("large spread is clamped", func(t *testing.T) {
		s := New([]shot.Record{
			rec(shot.ResultMade, 0.8, 0.5, 150),
			rec(shot.ResultMade, 0.8, 0.9, 150),
			rec(shot.ResultMade, 0.8, 1.3, 150),
		}).Stats()
		assert.Equal(t, 0.0, s.ConsistencyScore)
	})
}

func TestStatsUnclassifiedRecordsAreUnknown(t *testing.T) {
	records := []shot.Record{
		{Window: shot.PhaseWindow{Duration: 0.5}},
		rec(shot.ResultUnknown, 0.2, 0.5, 140),
	}
	s := New(records).Stats()
	assert.Equal(t, 2, s.Unknowns)
	assert.InDelta(t, 0.1, s.AvgConfidence, 1e-9)
}

func TestMakesVsMisses(t *testing.T) {
	records := []shot.Record{
		rec(shot.ResultMade, 0.8, 1.0, 150),
		rec(shot.ResultMade, 0.6, 1.2, 160),
		rec(shot.ResultMissed, 0.4, 0.8, 140),
		rec(shot.ResultUnknown, 0.1, 3.0, 90),
	}

	c := New(records).MakesVsMisses()
	assert.Equal(t, 2, c.MakesCount)
	assert.Equal(t, 1, c.MissesCount)
	assert.InDelta(t, 155.0, c.Makes.AvgElbowAngleAtRelease, 1e-9)
	assert.InDelta(t, 1.1, c.Makes.AvgDuration, 1e-9)
	assert.InDelta(t, 0.7, c.Makes.AvgConfidence, 1e-9)
	assert.Equal(t, 1, c.Misses.Count)
	require.NotNil(t, c.Differences)
	assert.InDelta(t, 15.0, c.Differences.ElbowAngleDifference, 1e-9)
}

func TestMakesVsMissesOneGroup(t *testing.T) {
	c := New([]shot.Record{rec(shot.ResultMade, 0.8, 1.0, 150)}).MakesVsMisses()
	assert.Equal(t, 1, c.MakesCount)
	assert.Equal(t, GroupMetrics{}, c.Misses)
	assert.Nil(t, c.Differences)
}

func TestMakesVsMissesWithoutForm(t *testing.T) {
	made := shot.Record{Window: shot.PhaseWindow{Duration: 1}}.WithBallTracking(shot.BallTracking{Result: shot.ResultMade, Confidence: 0.9})
	c := New([]shot.Record{made, rec(shot.ResultMissed, 0.5, 1, 140)}).MakesVsMisses()
	assert.Equal(t, 0.0, c.Makes.AvgElbowAngleAtRelease)
	require.NotNil(t, c.Differences)
	assert.InDelta(t, 140.0, c.Differences.ElbowAngleDifference, 1e-9)
}

func TestSuggestions(t *testing.T) {
	tests := []struct {
		name    string
		records []shot.Record
		want    []string
	}{
		{
			name: "solid session",
			records: []shot.Record{
				rec(shot.ResultMade, 0.8, 1.0, 150),
				rec(shot.ResultMade, 0.8, 1.0, 152),
			},
			want: []string{"Continue practicing! Keep mechanics consistent."},
		},
		{
			name: "low make rate",
			records: []shot.Record{
				rec(shot.ResultMade, 0.8, 1.0, 150),
				rec(shot.ResultMissed, 0.8, 1.0, 152),
				rec(shot.ResultMissed, 0.8, 1.0, 151),
			},
			want: []string{"Current make rate is 33.3%. Focus on form consistency."},
		},
		{
			name: "elbow angle differs",
			records: []shot.Record{
				rec(shot.ResultMade, 0.8, 1.0, 160),
				rec(shot.ResultMade, 0.8, 1.0, 160),
				rec(shot.ResultMissed, 0.8, 1.0, 140),
			},
			want: []string{"Elbow angle varies 20.0°. Keep it consistent."},
		},
		{
			name: "inconsistent timing and poor view",
			records: []shot.Record{
				rec(shot.ResultMade, 0.3, 0.5, 150),
				rec(shot.ResultMade, 0.3, 1.5, 150),
			},
			want: []string{
				"Shot timing is inconsistent. Practice with the same release point each time.",
				"Ensure clear camera view of your entire shot and the basket.",
			},
		},
		{
			name:    "no shots",
			records: nil,
			want: []string{
				"Current make rate is 0.0%. Focus on form consistency.",
				"Shot timing is inconsistent. Practice with the same release point each time.",
				"Ensure clear camera view of your entire shot and the basket.",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, New(tt.records).Suggestions())
		})
	}
}

func TestAnalyzerCopiesInput(t *testing.T) {
	records := []shot.Record{rec(shot.ResultMade, 0.8, 1.0, 150)}
	a := New(records)
	records[0] = rec(shot.ResultMissed, 0.1, 3.0, 90)

	assert.Equal(t, 1, a.Stats().Makes)
}

func TestAnalyze(t *testing.T) {
	records := []shot.Record{
		rec(shot.ResultMade, 0.8, 1.0, 150),
		rec(shot.ResultMissed, 0.8, 1.0, 150),
	}
	got := Analyze(records)
	a := New(records)
	assert.Equal(t, a.Stats(), got.Stats)
	assert.Equal(t, a.MakesVsMisses(), got.Comparison)
	assert.Equal(t, a.Suggestions(), got.Suggestions)
}
