package shot

import (
	"math"

	"github.com/chenBenjamin97/shot-tracker/pkg/utils"
)

//Sample is a timestamped position in frame pixels, used for both the wrist and the raw ball history
type Sample struct {
	Timestamp float64 `json:"ts"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
}

//VerifierConfig holds the ball-hand separation rule
type VerifierConfig struct {
	Epsilon            float64 `mapstructure:"epsilon"`              //seconds after release before ball samples count
	LookAhead          float64 `mapstructure:"look_ahead"`           //seconds after release that are inspected
	MinSeparationRatio float64 `mapstructure:"min_separation_ratio"` //fraction of the frame width the ball must move away from the hand
	MinSeparationPx    float64 `mapstructure:"min_separation_px"`    //floor of the separation threshold
}

//DefaultVerifierConfig returns the default separation rule
func DefaultVerifierConfig() VerifierConfig {
	return VerifierConfig{
		Epsilon:            0.01,
		LookAhead:          0.5,
		MinSeparationRatio: 0.03,
		MinSeparationPx:    40,
	}
}

//Verdict is the result of verifying one shot
type Verdict struct {
	Accepted      bool    `json:"accepted"`
	MaxSeparation float64 `json:"max_separation_px"`
	Threshold     float64 `json:"threshold_px"`
	BallSamples   int     `json:"ball_samples"`
	Reason        string  `json:"reason"`
}

//Verifier confirms that the ball actually left the shooter's hand after the detected release
type Verifier struct {
	cfg VerifierConfig
}

//NewVerifier creates a verifier
func NewVerifier(cfg VerifierConfig) *Verifier {
	return &Verifier{cfg: cfg}
}

//Threshold returns the separation, in pixels, a release must produce in a frame of the given width
func (v *Verifier) Threshold(frameWidth int) float64 {
	return math.Max(v.cfg.MinSeparationPx, math.Floor(float64(frameWidth)*v.cfg.MinSeparationRatio))
}

//Verify decides whether the ball separated from the wrist after releaseTs. It only reads the buffers, so identical
//inputs always give the same verdict. Missing evidence rejects the shot, it is not an error.
func (v *Verifier) Verify(releaseTs float64, wrist, ball *utils.Ring[Sample], frameWidth int) Verdict {
	verdict := Verdict{Threshold: v.Threshold(frameWidth)}

	if wrist == nil || wrist.Len() == 0 {
		verdict.Reason = "no wrist sample"
		return verdict
	}

	atRelease := wrist.At(0)
	for i := 1; i < wrist.Len(); i++ {
		s := wrist.At(i)
		if math.Abs(s.Timestamp-releaseTs) < math.Abs(atRelease.Timestamp-releaseTs) {
			atRelease = s
		}
	}

	if ball != nil {
		for i := 0; i < ball.Len(); i++ {
			s := ball.At(i)
			if s.Timestamp <= releaseTs+v.cfg.Epsilon || s.Timestamp-releaseTs > v.cfg.LookAhead {
				continue
			}
			verdict.BallSamples++
			if sep := utils.Distance(s.X, s.Y, atRelease.X, atRelease.Y); sep > verdict.MaxSeparation {
				verdict.MaxSeparation = sep
			}
		}
	}

	switch {
	case verdict.BallSamples == 0:
		verdict.Reason = "no ball sample after release"
	case verdict.MaxSeparation > verdict.Threshold:
		verdict.Accepted = true
		verdict.Reason = "ball left the hand"
	default:
		verdict.Reason = "no ball separation"
	}

	return verdict
}
