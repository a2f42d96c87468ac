//Package shot detects shooting motions from pose landmarks, confirms them against the ball trajectory and
//classifies their outcome.
package shot

import (
	"errors"

	"github.com/google/uuid"

	"github.com/chenBenjamin97/shot-tracker/pkg/pose"
)

//ErrTimestampOrder is returned when a frame is older than the previous one
var ErrTimestampOrder = errors.New("shot: timestamp older than previous frame")

//Result is the classified outcome of a shot
type Result string

const (
	ResultMade    Result = "made"
	ResultMissed  Result = "missed"
	ResultUnknown Result = "unknown"
)

//PhaseWindow holds the temporal boundaries of one shooting motion, in seconds
type PhaseWindow struct {
	StartTs   float64 `json:"start_ts"`
	ReleaseTs float64 `json:"release_ts"`
	EndTs     float64 `json:"end_ts"`
	Duration  float64 `json:"duration"`
}

//FormMetrics are the biomechanical measurements sampled while the motion was tracked
type FormMetrics struct {
	ShootingSide          pose.Side `json:"shooting_side"`
	ElbowAngleAtRelease   float64   `json:"elbow_angle_at_release_deg"`
	WristHeightAtRelease  float64   `json:"wrist_height_at_release"` //normalized, 0 is the top of the frame
	PeakExtensionVelocity float64   `json:"peak_extension_velocity_dps"`
}

//BallTracking is the trajectory based outcome of a shot
type BallTracking struct {
	Result           Result  `json:"result"`
	Confidence       float64 `json:"confidence"`
	TrajectoryLength int     `json:"trajectory_length"`
	Analysis         string  `json:"analysis"`
}

//Record is one detected shot. Records are values: once the ball tracking result is attached they are not changed,
//a correction is a new record.
type Record struct {
	ID     uuid.UUID     `json:"id"`
	Window PhaseWindow   `json:"detection_window"`
	Form   *FormMetrics  `json:"metrics,omitempty"`
	Ball   *BallTracking `json:"ball_tracking,omitempty"`
}

//WithBallTracking returns a copy of the record carrying the given ball tracking result
func (r Record) WithBallTracking(b BallTracking) Record {
	r.Ball = &b
	return r
}

//Result returns the classified result, unknown when the record was never classified
func (r *Record) Result() Result {
	if r.Ball == nil {
		return ResultUnknown
	}
	return r.Ball.Result
}

//Confidence returns the classification confidence, 0 when the record was never classified
func (r *Record) Confidence() float64 {
	if r.Ball == nil {
		return 0
	}
	return r.Ball.Confidence
}
