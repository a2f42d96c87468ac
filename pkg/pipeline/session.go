//Package pipeline runs the per-frame shot detection for one tracked body: ball tracking, phase detection,
//release verification and outcome classification, in that order.
package pipeline

import (
	"errors"
	"fmt"

	"github.com/chenBenjamin97/shot-tracker/pkg/logger"
	"github.com/chenBenjamin97/shot-tracker/pkg/pose"
	"github.com/chenBenjamin97/shot-tracker/pkg/shot"
	"github.com/chenBenjamin97/shot-tracker/pkg/tracking"
	"github.com/chenBenjamin97/shot-tracker/pkg/utils"
	"github.com/chenBenjamin97/shot-tracker/pkg/vision"
)

var (
	//ErrInvalidFrame is returned for observations without a usable frame size
	ErrInvalidFrame = errors.New("pipeline: invalid frame size")
	//ErrTimestampOrder is returned for observations older than the previous one
	ErrTimestampOrder = errors.New("pipeline: frame older than previous frame")
)

//Config gathers the configuration of every stage of a session
type Config struct {
	Tracker       tracking.Config
	Phase         shot.PhaseConfig
	Verifier      shot.VerifierConfig
	WristCapacity int
	BallCapacity  int
}

//DefaultConfig returns the default configuration of every stage
func DefaultConfig() Config {
	return Config{
		Tracker:       tracking.DefaultConfig(),
		Phase:         shot.DefaultPhaseConfig(),
		Verifier:      shot.DefaultVerifierConfig(),
		WristCapacity: utils.WristBufferCapacity,
		BallCapacity:  utils.BallBufferCapacity,
	}
}

//Observation is everything the detectors found in one frame
type Observation struct {
	Timestamp   float64
	FrameWidth  int
	FrameHeight int
	Landmarks   *pose.LandmarkSet  //frame normalized, nil when no pose was found
	Detections  []vision.Detection //any class, only balls are tracked
}

//Outcome is the result of one frame step. At most one of Shot and Rejected is set.
type Outcome struct {
	Track    tracking.TrackUpdate
	Phase    shot.Phase
	Shot       *shot.Record  //verified and classified shot completed on this frame
	ShotNumber int           //1-based count of the session's shots, set with Shot
	Rejected   *shot.Record  //motion completed on this frame but the ball never left the hand
	Verdict    *shot.Verdict //set whenever a motion completed
}

//Session owns the tracker, the phase detector and the sample buffers of one body. Frames must be observed in
//timestamp order from a single goroutine.
type Session struct {
	name     string
	cfg      Config
	tracker  *tracking.ObjectTracker
	phases   *shot.PhaseDetector
	verifier *shot.Verifier
	wrist    *utils.Ring[shot.Sample]
	ball     *utils.Ring[shot.Sample]

	lastTs  float64
	started bool
	shots   int
}

//NewSession creates a session. name only tags log lines.
func NewSession(name string, cfg Config) *Session {
	return &Session{
		name:     name,
		cfg:      cfg,
		tracker:  tracking.NewObjectTracker(cfg.Tracker),
		phases:   shot.NewPhaseDetector(cfg.Phase),
		verifier: shot.NewVerifier(cfg.Verifier),
		wrist:    utils.NewRing[shot.Sample](cfg.WristCapacity),
		ball:     utils.NewRing[shot.Sample](cfg.BallCapacity),
	}
}

//Observe runs one frame step. An error leaves the session untouched.
func (s *Session) Observe(obs Observation) (Outcome, error) {
	if obs.FrameWidth <= 0 || obs.FrameHeight <= 0 {
		return Outcome{}, fmt.Errorf("%w: %dx%d", ErrInvalidFrame, obs.FrameWidth, obs.FrameHeight)
	}
	if s.started && obs.Timestamp < s.lastTs {
		return Outcome{}, fmt.Errorf("%w: %.3f < %.3f", ErrTimestampOrder, obs.Timestamp, s.lastTs)
	}
	s.started = true
	s.lastTs = obs.Timestamp

	track, err := s.tracker.Update(obs.Detections, obs.Timestamp)
	if err != nil {
		return Outcome{}, err
	}

	if ball, ok := vision.MostConfident(vision.FilterClass(obs.Detections, vision.ClassBall)); ok {
		x, y := ball.Box.Center()
		s.ball.Push(shot.Sample{Timestamp: obs.Timestamp, X: x, Y: y})
	}

	if obs.Landmarks != nil {
		arm := obs.Landmarks.Arm(obs.Landmarks.ShootingSide())
		//a low confidence wrist would pose as the hand position at release
		if arm.Wrist.Visibility >= s.cfg.Phase.MinVisibility {
			x, y := arm.Wrist.Pixel(obs.FrameWidth, obs.FrameHeight)
			s.wrist.Push(shot.Sample{Timestamp: obs.Timestamp, X: x, Y: y})
		}
	}

	record, err := s.phases.Update(obs.Landmarks, obs.FrameWidth, obs.FrameHeight, obs.Timestamp)
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{Track: track, Phase: s.phases.Phase()}
	if record == nil {
		return out, nil
	}

	verdict := s.verifier.Verify(record.Window.ReleaseTs, s.wrist, s.ball, obs.FrameWidth)
	out.Verdict = &verdict
	if !verdict.Accepted {
		logger.Debug("pipeline", "%s: shot at %.2fs rejected, %s (%.0fpx of %.0fpx)",
			s.name, record.Window.ReleaseTs, verdict.Reason, verdict.MaxSeparation, verdict.Threshold)
		out.Rejected = record
		return out, nil
	}

	final := record.WithBallTracking(shot.Classify(s.tracker.Trajectory(), obs.FrameHeight, obs.FrameWidth))
	s.tracker.Clear()
	s.shots++
	out.Shot = &final
	out.ShotNumber = s.shots

	logger.Info("pipeline", "%s: shot %s at %.2fs, %s (%.2f)",
		s.name, final.ID, final.Window.ReleaseTs, final.Result(), final.Confidence())
	return out, nil
}

//Trajectory returns a copy of the current ball trajectory
func (s *Session) Trajectory() []tracking.TrajectoryPoint {
	return s.tracker.Trajectory()
}

//Phase returns the current state of the phase detector
func (s *Session) Phase() shot.Phase {
	return s.phases.Phase()
}
