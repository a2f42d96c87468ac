//Package tracking associates per-frame ball detections into one continuous trajectory.
package tracking

import (
	"errors"
	"fmt"
	"math"

	"github.com/chenBenjamin97/shot-tracker/pkg/utils"
	"github.com/chenBenjamin97/shot-tracker/pkg/vision"
)

//ErrTimestampOrder is returned when a frame is older than the last accepted point
var ErrTimestampOrder = errors.New("tracking: timestamp older than last accepted point")

//Config holds the ObjectTracker tuning
type Config struct {
	Capacity          int     `mapstructure:"capacity"`           //trajectory window size
	AssociationRadius float64 `mapstructure:"association_radius"` //max pixel distance between consecutive accepted points
	MaxMisses         int     `mapstructure:"max_misses"`         //consecutive missed frames tolerated before the trajectory is dropped
	MinRadius         float64 `mapstructure:"min_radius"`         //detections with a radius at or below this are noise
	MinAspect         float64 `mapstructure:"min_aspect"`         //width/height ratio bounds for a roughly circular ball
	MaxAspect         float64 `mapstructure:"max_aspect"`
}

//DefaultConfig returns the live tracking defaults
func DefaultConfig() Config {
	return Config{
		Capacity:          utils.TrajectoryCapacity,
		AssociationRadius: 50,
		MaxMisses:         10,
		MinRadius:         5,
		MinAspect:         0.5,
		MaxAspect:         2.0,
	}
}

//TrajectoryPoint is one accepted ball position, in frame pixels
type TrajectoryPoint struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Radius    float64 `json:"radius"`
	Timestamp float64 `json:"ts"`
}

//TrackUpdate is the tracker state after one frame
type TrackUpdate struct {
	Points   []TrajectoryPoint //current trajectory, oldest first (a copy)
	Detected bool              //a detection was accepted in this frame
	Current  *TrajectoryPoint  //the accepted point, nil on a miss
}

//ObjectTracker keeps the trajectory of a single object class. It is owned by one session and is not safe for
//concurrent use.
type ObjectTracker struct {
	cfg        Config
	trajectory *utils.Ring[TrajectoryPoint]
	misses     int
}

//NewObjectTracker creates an empty tracker
func NewObjectTracker(cfg Config) *ObjectTracker {
	return &ObjectTracker{
		cfg:        cfg,
		trajectory: utils.NewRing[TrajectoryPoint](cfg.Capacity),
	}
}

//Candidate converts a detection to a trajectory point candidate. ok is false when the box is not ball shaped
//or too small to be anything but noise.
func (t *ObjectTracker) Candidate(d vision.Detection, ts float64) (TrajectoryPoint, bool) {
	w, h := d.Box.Width(), d.Box.Height()
	if w <= 0 || h <= 0 {
		return TrajectoryPoint{}, false
	}

	aspect := float64(w) / float64(h)
	if aspect <= t.cfg.MinAspect || aspect >= t.cfg.MaxAspect {
		return TrajectoryPoint{}, false
	}

	radius := math.Max(float64(w), float64(h)) / 2
	if radius <= t.cfg.MinRadius {
		return TrajectoryPoint{}, false
	}

	x, y := d.Box.Center()
	return TrajectoryPoint{X: x, Y: y, Radius: radius, Timestamp: ts}, true
}

//Update runs association for one frame. detections may hold any class, only balls are considered.
func (t *ObjectTracker) Update(detections []vision.Detection, ts float64) (TrackUpdate, error) {
	if last, ok := t.trajectory.Last(); ok && ts < last.Timestamp {
		return TrackUpdate{}, fmt.Errorf("%w: %.3f < %.3f", ErrTimestampOrder, ts, last.Timestamp)
	}

	candidates := make([]TrajectoryPoint, 0, len(detections))
	for _, d := range detections {
		if d.Class != vision.ClassBall {
			continue
		}
		if p, ok := t.Candidate(d, ts); ok {
			candidates = append(candidates, p)
		}
	}

	var accepted *TrajectoryPoint
	if len(candidates) > 0 {
		best, dist := t.nearest(candidates)
		if t.trajectory.Len() == 0 || dist < t.cfg.AssociationRadius {
			accepted = &best
		}
	}

	if accepted != nil {
		t.trajectory.Push(*accepted)
		t.misses = 0
	} else {
		t.misses++
		if t.misses > t.cfg.MaxMisses {
			t.trajectory.Clear() //object lost, next detection starts a fresh trajectory
		}
	}

	return TrackUpdate{
		Points:   t.trajectory.Slice(),
		Detected: accepted != nil,
		Current:  accepted,
	}, nil
}

//nearest picks the candidate closest to the last accepted point. With no history the first candidate is returned.
func (t *ObjectTracker) nearest(candidates []TrajectoryPoint) (TrajectoryPoint, float64) {
	last, ok := t.trajectory.Last()
	if !ok {
		return candidates[0], 0
	}

	best, bestDist := candidates[0], math.Inf(1)
	for _, c := range candidates {
		if d := utils.Distance(c.X, c.Y, last.X, last.Y); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best, bestDist
}

//Trajectory returns a copy of the current trajectory
func (t *ObjectTracker) Trajectory() []TrajectoryPoint {
	return t.trajectory.Slice()
}

//Misses returns the current consecutive miss count
func (t *ObjectTracker) Misses() int {
	return t.misses
}

//Clear drops the trajectory and the miss counter. Called after every finalized shot so trajectories never leak
//from one shot into the next.
func (t *ObjectTracker) Clear() {
	t.trajectory.Clear()
	t.misses = 0
}
