package shot

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/chenBenjamin97/shot-tracker/pkg/pose"
)

//Phase is the state of the shooting motion state machine
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRising
	PhaseRelease
	PhaseFollowThrough
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRising:
		return "rising"
	case PhaseRelease:
		return "release"
	case PhaseFollowThrough:
		return "follow_through"
	default:
		return "unknown"
	}
}

//PhaseConfig holds the biomechanical thresholds of the phase detector. Velocities are elbow extension
//velocities in degrees per second, durations are in seconds.
type PhaseConfig struct {
	RiseFrames         int     `mapstructure:"rise_frames"`          //consecutive extending frames needed to enter RISING
	MinRiseVelocity    float64 `mapstructure:"min_rise_velocity"`    //extension velocity counted as "extending"
	MinReleaseVelocity float64 `mapstructure:"min_release_velocity"` //peak velocity a real release must reach
	SettleVelocity     float64 `mapstructure:"settle_velocity"`      //|velocity| at or below which the follow through is over
	MinDuration        float64 `mapstructure:"min_duration"`         //shorter motions are noise
	MaxDuration        float64 `mapstructure:"max_duration"`         //safety bound against a stuck state
	MaxMissingFrames   int     `mapstructure:"max_missing_frames"`   //frames without a usable arm tolerated mid-sequence
	MinVisibility      float64 `mapstructure:"min_visibility"`       //keypoint visibility needed to use the arm
}

//DefaultPhaseConfig returns thresholds tuned for 25-60 fps footage
func DefaultPhaseConfig() PhaseConfig {
	return PhaseConfig{
		RiseFrames:         3,
		MinRiseVelocity:    20,
		MinReleaseVelocity: 60,
		SettleVelocity:     15,
		MinDuration:        0.15,
		MaxDuration:        2.0,
		MaxMissingFrames:   5,
		MinVisibility:      0.3,
	}
}

type armSample struct {
	ts     float64
	angle  float64 //elbow angle, degrees
	wristY float64 //normalized
	side   pose.Side
}

//PhaseDetector is the per-body shooting motion state machine. One detector runs per tracked body and frames must be
//fed in timestamp order; it is not safe for concurrent use.
type PhaseDetector struct {
	cfg PhaseConfig

	phase   Phase
	prev    *armSample
	lastTs  float64
	started bool //lastTs is valid
	missing int

	risingRun int
	runStart  float64
	startTs   float64
	peakVel   float64
	peak      armSample
	release   armSample
}

//NewPhaseDetector returns an idle detector
func NewPhaseDetector(cfg PhaseConfig) *PhaseDetector {
	return &PhaseDetector{cfg: cfg}
}

//Phase returns the current state
func (d *PhaseDetector) Phase() Phase {
	return d.phase
}

//Update evaluates one frame. landmarks may be nil when no pose was found. A record is returned only on the frame
//that completes a shooting motion.
func (d *PhaseDetector) Update(landmarks *pose.LandmarkSet, frameWidth, frameHeight int, ts float64) (*Record, error) {
	if d.started && ts < d.lastTs {
		return nil, fmt.Errorf("%w: %.3f < %.3f", ErrTimestampOrder, ts, d.lastTs)
	}
	if d.started && ts == d.lastTs {
		return nil, nil
	}
	d.started = true
	d.lastTs = ts

	sample, ok := d.sample(landmarks, frameWidth, frameHeight, ts)
	if !ok {
		d.missing++
		d.risingRun = 0
		if d.phase != PhaseIdle && d.missing > d.cfg.MaxMissingFrames {
			d.reset()
			d.prev = nil
		}
		return nil, nil
	}
	d.missing = 0

	prev := d.prev
	d.prev = &sample
	if prev == nil || prev.side != sample.side {
		if prev != nil {
			d.reset() //shooting arm switched, velocities across arms are meaningless
		}
		return nil, nil
	}

	velocity := (sample.angle - prev.angle) / (sample.ts - prev.ts)

	switch d.phase {
	case PhaseIdle:
		if velocity > d.cfg.MinRiseVelocity && sample.wristY <= prev.wristY {
			if d.risingRun == 0 {
				d.runStart = prev.ts
				d.peakVel = 0
			}
			d.risingRun++
			d.trackPeak(velocity, sample)
			if d.risingRun >= d.cfg.RiseFrames {
				d.phase = PhaseRising
				d.startTs = d.runStart
			}
		} else {
			d.risingRun = 0
		}

	case PhaseRising:
		if sample.ts-d.startTs > d.cfg.MaxDuration {
			d.reset()
			return nil, nil
		}
		if velocity >= d.peakVel {
			d.trackPeak(velocity, sample)
			return nil, nil
		}
		//velocity dropped: the previous peak was the local maximum of extension speed
		if d.peakVel < d.cfg.MinReleaseVelocity {
			d.reset()
			return nil, nil
		}
		d.release = d.peak
		d.phase = PhaseRelease

	case PhaseRelease:
		d.phase = PhaseFollowThrough
		return d.followThrough(velocity, sample)

	case PhaseFollowThrough:
		return d.followThrough(velocity, sample)
	}

	return nil, nil
}

func (d *PhaseDetector) followThrough(velocity float64, sample armSample) (*Record, error) {
	if math.Abs(velocity) > d.cfg.SettleVelocity && sample.ts-d.startTs < d.cfg.MaxDuration {
		return nil, nil
	}

	window := PhaseWindow{
		StartTs:   d.startTs,
		ReleaseTs: d.release.ts,
		EndTs:     sample.ts,
		Duration:  sample.ts - d.startTs,
	}
	form := &FormMetrics{
		ShootingSide:          d.release.side,
		ElbowAngleAtRelease:   d.release.angle,
		WristHeightAtRelease:  d.release.wristY,
		PeakExtensionVelocity: d.peakVel,
	}
	d.reset()

	if window.Duration < d.cfg.MinDuration {
		return nil, nil
	}

	return &Record{
		ID:     uuid.New(),
		Window: window,
		Form:   form,
	}, nil
}

func (d *PhaseDetector) trackPeak(velocity float64, sample armSample) {
	if velocity >= d.peakVel {
		d.peakVel = velocity
		d.peak = sample
	}
}

func (d *PhaseDetector) sample(landmarks *pose.LandmarkSet, frameWidth, frameHeight int, ts float64) (armSample, bool) {
	if landmarks == nil {
		return armSample{}, false
	}

	arm := landmarks.Arm(landmarks.ShootingSide())
	if !arm.Visible(d.cfg.MinVisibility) {
		return armSample{}, false
	}

	return armSample{
		ts:     ts,
		angle:  arm.ElbowAngle(frameWidth, frameHeight),
		wristY: arm.Wrist.Y,
		side:   arm.Side,
	}, true
}

//reset returns to IDLE and forgets the motion in progress. The previous sample and timestamp are kept so ordering
//is still enforced and the next frame still has a velocity.
func (d *PhaseDetector) reset() {
	d.phase = PhaseIdle
	d.risingRun = 0
	d.peakVel = 0
	d.peak = armSample{}
	d.release = armSample{}
	d.startTs = 0
	d.runStart = 0
}
