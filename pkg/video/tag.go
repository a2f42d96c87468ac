package video

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path"
	"strings"
	"sync"

	"gocv.io/x/gocv"

	"github.com/chenBenjamin97/shot-tracker/pkg/logger"
	"github.com/chenBenjamin97/shot-tracker/pkg/metrics"
	"github.com/chenBenjamin97/shot-tracker/pkg/pipeline"
	"github.com/chenBenjamin97/shot-tracker/pkg/shot"
	"github.com/chenBenjamin97/shot-tracker/pkg/storage"
	"github.com/chenBenjamin97/shot-tracker/pkg/utils"
)

//RunnerConfig holds what the recorded video jobs need
type RunnerConfig struct {
	ReadyDir   string
	TempDir    string
	Annotate   bool //write an annotated copy of every video to ReadyDir
	DefaultFPS float64
	Processor  ProcessorConfig
	Pipeline   pipeline.Config
}

//Runner processes uploaded videos in background goroutines, one session per video
type Runner struct {
	ctx       context.Context
	cfg       RunnerConfig
	detector  ObjectDetector
	estimator PoseEstimator
	store     Store
	metrics   *metrics.Metrics
	wg        sync.WaitGroup
}

//NewRunner creates a runner. Cancelling ctx stops every running job without persisting its shots.
func NewRunner(ctx context.Context, cfg RunnerConfig, detector ObjectDetector, estimator PoseEstimator, store Store, m *metrics.Metrics) *Runner {
	if cfg.DefaultFPS <= 0 {
		cfg.DefaultFPS = utils.DefaultFPS
	}

	return &Runner{ctx: ctx, cfg: cfg, detector: detector, estimator: estimator, store: store, metrics: m}
}

//Submit starts processing v in the background
func (r *Runner) Submit(v storage.Video) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.Process(r.ctx, v); err != nil {
			logger.Error("video", "processing '%s' (%s) failed: %v", v.Filename, v.ID, err)
		}
	}()
}

//Wait blocks until every submitted job is done
func (r *Runner) Wait() {
	r.wg.Wait()
}

//Process reads v from its file until exhaustion, detects its shots and stores them with the video summary.
//On failure the video is marked failed with the error text.
func (r *Runner) Process(ctx context.Context, v storage.Video) error {
	if err := r.store.SetVideoStatus(ctx, v.ID, utils.VideoStatusProcessing, ""); err != nil {
		return err
	}
	logger.Info("video", "processing '%s' (%s)", v.Filename, v.ID)

	summary, records, jobErr := r.tag(ctx, v)
	if err := r.store.FinishVideo(ctx, v.ID, summary, records, jobErr); err != nil {
		if r.metrics != nil {
			r.metrics.VideosFailed.Add(1)
		}
		return err
	}
	if r.metrics != nil {
		r.metrics.VideosProcessed.Add(1)
	}

	logger.Info("video", "'%s' done: %d frames, %d shots, %d ignored", v.Filename, summary.TotalFrames, summary.ShotsDetected, summary.ShotsRejected)
	return nil
}

//tag runs every frame of v through a new processor. When annotation is enabled the frames are plotted and written
//(XVID (== MPEG-4 codec) format, '.avi' extension) to the temp directory, then converted by ffmpeg into the ready directory.
func (r *Runner) tag(ctx context.Context, v storage.Video) (storage.VideoSummary, []shot.Record, error) {
	src, err := OpenFile(v.FilePath, r.cfg.DefaultFPS)
	if err != nil {
		return storage.VideoSummary{}, nil, err
	}
	defer src.Close()

	var (
		writer  *gocv.VideoWriter
		overlay *Overlay
		tmpPath string
	)
	if r.cfg.Annotate {
		width, height := src.Size()
		tmpPath = path.Join(r.cfg.TempDir, v.ID+".avi")
		writer, err = gocv.VideoWriterFile(tmpPath, "XVID", src.FPS(), width, height, true)
		if err != nil {
			return storage.VideoSummary{}, nil, fmt.Errorf("open writer: %w", err)
		}
		defer os.Remove(tmpPath) //remove '.avi' temp file at the end of this function
		overlay = NewOverlay(r.cfg.Pipeline.Phase.MinVisibility)
	}

	processor := NewProcessor(v.ID, r.cfg.Processor, r.cfg.Pipeline, r.detector, r.estimator, r.metrics)
	defer processor.Close()

	frame := gocv.NewMat()
	defer frame.Close()

	var (
		records  []shot.Record
		rejected int
		index    int
	)
	for ; src.Read(&frame); index++ {
		if err := ctx.Err(); err != nil {
			closeWriter(writer)
			return storage.VideoSummary{}, nil, err
		}

		ts := src.Timestamp(index)
		res, err := processor.ProcessFrame(frame, ts)
		if err != nil {
			closeWriter(writer)
			return storage.VideoSummary{}, nil, fmt.Errorf("frame %d: %w", index, err)
		}

		if res.Outcome.Shot != nil {
			records = append(records, *res.Outcome.Shot)
		}
		if res.Outcome.Rejected != nil {
			rejected++
		}

		if writer != nil {
			overlay.Draw(&frame, res, ts)
			if err := writer.Write(frame); err != nil {
				logger.Warn("video", "Tag: Error writing frame %d of '%s', got '%v'", index, v.Filename, err)
			}
		}
	}

	if writer != nil {
		closeWriter(writer)
		convert(ctx, tmpPath, path.Join(r.cfg.ReadyDir, v.Filename))
	}

	return storage.VideoSummary{
		TotalFrames:     index,
		FPS:             src.FPS(),
		DurationSeconds: src.Timestamp(index),
		ShotsDetected:   len(records),
		ShotsRejected:   rejected,
	}, records, nil
}

func closeWriter(w *gocv.VideoWriter) {
	if w != nil {
		w.Close()
	}
}

//convert converts from 'avi' to the production format. example: ffmpeg -i testBasketball.avi testBasketball.mp4
func convert(ctx context.Context, src, dst string) {
	cmd := exec.CommandContext(ctx, "ffmpeg", "-y", "-loglevel", "error", "-i", src, dst)
	if out, err := cmd.CombinedOutput(); err != nil {
		logger.Error("video", "Tag: Error from ffmpeg, got '%v' (%s)", err, strings.TrimSpace(string(out)))
	}
}
