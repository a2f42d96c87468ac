package video

import (
	"errors"
	"fmt"
	"image"
	"sort"
	"time"

	"gocv.io/x/gocv"

	"github.com/chenBenjamin97/shot-tracker/pkg/logger"
	"github.com/chenBenjamin97/shot-tracker/pkg/metrics"
	"github.com/chenBenjamin97/shot-tracker/pkg/pipeline"
	"github.com/chenBenjamin97/shot-tracker/pkg/pose"
	"github.com/chenBenjamin97/shot-tracker/pkg/vision"
)

//ProcessorConfig controls the per frame detection
type ProcessorConfig struct {
	Scale            float64 //inference downscale factor in (0,1]
	PersonConfidence float32
	BallConfidence   float32
}

//Processor turns raw frames into pipeline observations for one session (one video or one camera)
type Processor struct {
	cfg       ProcessorConfig
	detector  ObjectDetector
	estimator PoseEstimator
	session   *pipeline.Session
	metrics   *metrics.Metrics
	small     gocv.Mat
}

//NewProcessor creates a processor with its own pipeline session. Detector and estimator may be shared between
//processors. m may be nil.
func NewProcessor(name string, cfg ProcessorConfig, pcfg pipeline.Config, detector ObjectDetector, estimator PoseEstimator, m *metrics.Metrics) *Processor {
	if cfg.Scale <= 0 || cfg.Scale > 1 {
		cfg.Scale = 1
	}

	return &Processor{
		cfg:       cfg,
		detector:  detector,
		estimator: estimator,
		session:   pipeline.NewSession(name, pcfg),
		metrics:   m,
		small:     gocv.NewMat(),
	}
}

//ProcessFrame detects the shooter and the balls in frame and runs one pipeline step at ts seconds
func (p *Processor) ProcessFrame(frame gocv.Mat, ts float64) (FrameResult, error) {
	start := time.Now()

	res, err := p.processFrame(frame, ts)
	if err != nil {
		if p.metrics != nil {
			p.metrics.FrameErrors.Add(1)
		}
		return FrameResult{}, err
	}

	if p.metrics != nil {
		p.metrics.ObserveFrame(res.Outcome, time.Since(start))
	}
	return res, nil
}

func (p *Processor) processFrame(frame gocv.Mat, ts float64) (FrameResult, error) {
	if frame.Empty() {
		return FrameResult{}, fmt.Errorf("%w: empty frame", pipeline.ErrInvalidFrame)
	}
	width, height := frame.Cols(), frame.Rows()

	input := frame
	if p.cfg.Scale < 1 {
		gocv.Resize(frame, &p.small, image.Point{}, p.cfg.Scale, p.cfg.Scale, gocv.InterpolationLinear)
		input = p.small
	}

	detections, err := p.detector.Detect(input)
	if err != nil {
		return FrameResult{}, fmt.Errorf("detect: %w", err)
	}

	var persons, balls []vision.Detection
	for _, d := range detections {
		d.Box = d.Box.Scale(1 / p.cfg.Scale).Fix(width, height)
		if d.Box.Empty() {
			continue
		}

		switch {
		case d.Class == vision.ClassPerson && d.Confidence >= p.cfg.PersonConfidence:
			persons = append(persons, d)
		case d.Class == vision.ClassBall && d.Confidence >= p.cfg.BallConfidence:
			balls = append(balls, d)
		}
	}

	person, landmarks, err := p.findShooter(frame, persons)
	if err != nil {
		return FrameResult{}, err
	}

	outcome, err := p.session.Observe(pipeline.Observation{
		Timestamp:   ts,
		FrameWidth:  width,
		FrameHeight: height,
		Landmarks:   landmarks,
		Detections:  balls,
	})
	if err != nil {
		return FrameResult{}, err
	}

	return FrameResult{
		Outcome:    outcome,
		Person:     person,
		Landmarks:  landmarks,
		Balls:      balls,
		Trajectory: outcome.Track.Points,
	}, nil
}

//findShooter estimates the pose of the most confident person that yields one. Landmarks are returned frame normalized.
func (p *Processor) findShooter(frame gocv.Mat, persons []vision.Detection) (*vision.BoundingBox, *pose.LandmarkSet, error) {
	sort.SliceStable(persons, func(i, j int) bool {
		return persons[i].Confidence > persons[j].Confidence
	})

	for _, person := range persons {
		box := person.Box
		crop := frame.Region(box.Rect())
		set, err := p.estimator.Estimate(crop)
		crop.Close()
		if err != nil {
			return nil, nil, fmt.Errorf("estimate pose: %w", err)
		}
		if set == nil {
			logger.Debug("video", "no pose in person box %v (%.2f)", box.Rect(), person.Confidence)
			continue
		}

		return &box, set.Adjust(box, frame.Cols(), frame.Rows()), nil
	}

	return nil, nil, nil
}

func (p *Processor) Close() error {
	return p.small.Close()
}

//isInputError is true for errors caused by a bad frame rather than a failing collaborator
func isInputError(err error) bool {
	return errors.Is(err, pipeline.ErrInvalidFrame) || errors.Is(err, pipeline.ErrTimestampOrder)
}
