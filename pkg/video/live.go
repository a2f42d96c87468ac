package video

import (
	"context"
	"fmt"
	"time"

	"gocv.io/x/gocv"

	"github.com/chenBenjamin97/shot-tracker/pkg/logger"
	"github.com/chenBenjamin97/shot-tracker/pkg/metrics"
	"github.com/chenBenjamin97/shot-tracker/pkg/pipeline"
	"github.com/chenBenjamin97/shot-tracker/pkg/storage"
	"github.com/chenBenjamin97/shot-tracker/pkg/stream"
	"github.com/chenBenjamin97/shot-tracker/pkg/utils"
)

//LiveConfig holds the camera stream settings
type LiveConfig struct {
	Device      int
	JPEGQuality int
	DefaultFPS  float64
	Processor   ProcessorConfig
	Pipeline    pipeline.Config
}

//LiveStream processes a camera, stores the shots it finds and publishes annotated JPEG frames to its subscribers
type LiveStream struct {
	cfg         LiveConfig
	detector    ObjectDetector
	estimator   PoseEstimator
	store       Store
	metrics     *metrics.Metrics
	broadcaster *stream.Broadcaster
}

//NewLiveStream creates a stream, Run starts it
func NewLiveStream(cfg LiveConfig, detector ObjectDetector, estimator PoseEstimator, store Store, m *metrics.Metrics) *LiveStream {
	if cfg.JPEGQuality <= 0 || cfg.JPEGQuality > 100 {
		cfg.JPEGQuality = 80
	}

	l := &LiveStream{cfg: cfg, detector: detector, estimator: estimator, store: store, metrics: m}
	l.broadcaster = stream.NewBroadcaster(func(delta int) {
		if m != nil {
			m.LiveClients.Add(int64(delta))
		}
	})
	return l
}

//Subscribe returns a channel of annotated JPEG frames and its unsubscribe function
func (l *LiveStream) Subscribe() (<-chan []byte, func()) {
	return l.broadcaster.Subscribe()
}

//Run reads the camera until ctx is cancelled or the camera stops. Every confirmed shot is stored right away under a
//video row created for this run.
func (l *LiveStream) Run(ctx context.Context) error {
	defer l.broadcaster.Close()

	src, err := OpenDevice(l.cfg.Device, l.cfg.DefaultFPS)
	if err != nil {
		return err
	}
	defer src.Close()

	name := fmt.Sprintf("camera-%d", l.cfg.Device)
	v, err := l.store.CreateVideo(ctx, name+"-"+time.Now().Format("20060102-150405"), fmt.Sprintf("device:%d", l.cfg.Device))
	if err != nil {
		return err
	}
	if err := l.store.SetVideoStatus(ctx, v.ID, utils.VideoStatusLive, ""); err != nil {
		return err
	}
	logger.Info("live", "streaming camera %d as video %s", l.cfg.Device, v.ID)

	processor := NewProcessor(name, l.cfg.Processor, l.cfg.Pipeline, l.detector, l.estimator, l.metrics)
	defer processor.Close()
	overlay := NewOverlay(l.cfg.Pipeline.Phase.MinVisibility)

	frame := gocv.NewMat()
	defer frame.Close()

	var (
		summary storage.VideoSummary
		start   = time.Now()
		params  = []int{int(gocv.IMWriteJpegQuality), l.cfg.JPEGQuality}
	)
	for ctx.Err() == nil && src.Read(&frame) {
		ts := time.Since(start).Seconds()
		summary.TotalFrames++

		res, err := processor.ProcessFrame(frame, ts)
		if err != nil {
			if isInputError(err) {
				logger.Debug("live", "skipping frame: %v", err)
			} else {
				logger.Warn("live", "ProcessFrame: Error, got '%v'", err)
			}
			continue
		}

		if res.Outcome.Shot != nil {
			summary.ShotsDetected++
			if err := l.store.InsertShot(ctx, v.ID, *res.Outcome.Shot); err != nil {
				logger.Error("live", "InsertShot: Error, got '%v'", err)
			}
		}
		if res.Outcome.Rejected != nil {
			summary.ShotsRejected++
		}

		if l.broadcaster.Subscribers() == 0 {
			continue
		}
		overlay.Draw(&frame, res, ts)
		buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, frame, params)
		if err != nil {
			logger.Warn("live", "IMEncode: Error, got '%v'", err)
			continue
		}
		l.broadcaster.Publish(buf.GetBytes())
		buf.Close()
	}

	summary.DurationSeconds = time.Since(start).Seconds()
	if summary.DurationSeconds > 0 {
		summary.FPS = float64(summary.TotalFrames) / summary.DurationSeconds
	}
	//shots are already stored, only the summary is written
	if err := l.store.FinishVideo(ctx, v.ID, summary, nil, nil); err != nil {
		return err
	}
	logger.Info("live", "camera %d stopped after %d frames, %d shots", l.cfg.Device, summary.TotalFrames, summary.ShotsDetected)
	return ctx.Err()
}
