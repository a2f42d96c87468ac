package shot

import (
	"fmt"
	"math"

	"github.com/chenBenjamin97/shot-tracker/pkg/tracking"
)

const (
	minClassifyPoints = 5
	hoopDistancePx    = 80.0 //absolute pixels, not scale invariant
	maxScore          = 8.0
)

//Features are the trajectory measurements the classifier scores
type Features struct {
	VerticalDisplacement   float64 `json:"vertical_displacement"`
	HorizontalDisplacement float64 `json:"horizontal_displacement"`
	ApexIndex              int     `json:"apex_index"`
	HasParabolicMotion     bool    `json:"has_parabolic_motion"`
	DistanceToHoop         float64 `json:"distance_to_hoop"`
	FinalX                 float64 `json:"final_x"`
	FinalY                 float64 `json:"final_y"`
}

//ExtractFeatures measures a trajectory. The hoop is approximated by the fixed point (w/2, h/3) of the frame.
//The trajectory must not be empty.
func ExtractFeatures(trajectory []tracking.TrajectoryPoint, frameHeight, frameWidth int) Features {
	start, end := trajectory[0], trajectory[len(trajectory)-1]

	apex := 0
	for i, p := range trajectory {
		if p.Y < trajectory[apex].Y {
			apex = i
		}
	}

	hoopX, hoopY := float64(frameWidth/2), float64(frameHeight/3)

	return Features{
		VerticalDisplacement:   start.Y - end.Y,
		HorizontalDisplacement: math.Abs(end.X - start.X),
		ApexIndex:              apex,
		HasParabolicMotion:     apex > 0 && apex < len(trajectory)-1,
		DistanceToHoop:         math.Hypot(end.X-hoopX, end.Y-hoopY),
		FinalX:                 end.X,
		FinalY:                 end.Y,
	}
}

//Score adds up the independent made-shot checks of a trajectory with n points
func (f Features) Score(n, frameHeight, frameWidth int) int {
	score := 0
	if f.HasParabolicMotion {
		score += 3
	}
	if f.DistanceToHoop < hoopDistancePx {
		score += 2
	}
	if f.FinalY > float64(frameHeight)*0.7 && f.ApexIndex > n/2 {
		score += 2
	}
	if f.FinalX > float64(frameWidth)*0.1 && f.FinalX < float64(frameWidth)*0.9 {
		score++
	}
	return score
}

//Classify labels the probable result of a shot from its ball trajectory. Fewer than five points is not enough
//evidence and yields unknown with zero confidence.
func Classify(trajectory []tracking.TrajectoryPoint, frameHeight, frameWidth int) BallTracking {
	n := len(trajectory)
	if n < minClassifyPoints {
		return BallTracking{
			Result:           ResultUnknown,
			Confidence:       0,
			TrajectoryLength: n,
			Analysis:         "Insufficient trajectory data",
		}
	}

	f := ExtractFeatures(trajectory, frameHeight, frameWidth)
	score := f.Score(n, frameHeight, frameWidth)

	return BallTracking{
		Result:           resultForScore(score),
		Confidence:       math.Min(confidenceCap(n), float64(score)/maxScore),
		TrajectoryLength: n,
		Analysis:         f.analysis(),
	}
}

func confidenceCap(n int) float64 {
	switch {
	case n > 15:
		return 0.9
	case n > 8:
		return 0.7
	default:
		return 0.5
	}
}

func resultForScore(score int) Result {
	switch {
	case score >= 3:
		return ResultMade
	case score >= 1:
		return ResultUnknown
	default:
		return ResultMissed
	}
}

func (f Features) analysis() string {
	parabolic := "no"
	if f.HasParabolicMotion {
		parabolic = "yes"
	}
	return fmt.Sprintf("Parabolic motion: %s, Distance to hoop: %.0fpx, Final Y: %.0fpx", parabolic, f.DistanceToHoop, f.FinalY)
}
