package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/chenBenjamin97/shot-tracker/pkg/api"
	"github.com/chenBenjamin97/shot-tracker/pkg/config"
	"github.com/chenBenjamin97/shot-tracker/pkg/logger"
	"github.com/chenBenjamin97/shot-tracker/pkg/metrics"
	"github.com/chenBenjamin97/shot-tracker/pkg/storage"
	"github.com/chenBenjamin97/shot-tracker/pkg/video"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	configPath := flag.String("config", "", "path of the configuration file (default ./config.yaml)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

//run serves until SIGINT or SIGTERM, then waits for the running jobs and the live stream before releasing resources
func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("could not read config file, got '%w'", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger.Init(level, os.Stderr, cfg.Log.Color)

	//create missing directories from config file, root first
	for _, dir := range cfg.Directories() {
		if _, err := os.Stat(dir); err != nil {
			if os.IsNotExist(err) {
				if err := os.Mkdir(dir, 0766); err != nil {
					log.Printf("Error Creating '%s' directory, got '%v'", dir, err)
				}
			}
		}
	}

	db, err := storage.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("could not open database, got '%w'", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("could not migrate database, got '%w'", err)
	}

	detector, err := newDetector(cfg)
	if err != nil {
		return err
	}
	defer detector.Close()

	estimator, err := video.NewOpenPoseEstimator(cfg.Pose.Model, cfg.Pose.Threshold)
	if err != nil {
		return err
	}
	defer estimator.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	processorCfg := video.ProcessorConfig{
		Scale:            cfg.Video.Scale,
		PersonConfidence: cfg.Detector.PersonConfidence,
		BallConfidence:   cfg.Detector.BallConfidence,
	}

	runner := video.NewRunner(ctx, video.RunnerConfig{
		ReadyDir:   cfg.Directory.Ready,
		TempDir:    cfg.Directory.Temp,
		Annotate:   cfg.Video.Annotate,
		DefaultFPS: cfg.Video.DefaultFPS,
		Processor:  processorCfg,
		Pipeline:   cfg.Pipeline(),
	}, detector, estimator, db, m)

	var (
		live       api.LiveFeed
		background sync.WaitGroup
	)
	if cfg.Video.Live {
		stream := video.NewLiveStream(video.LiveConfig{
			Device:      cfg.Video.CameraDevice,
			JPEGQuality: cfg.Video.JPEGQuality,
			DefaultFPS:  cfg.Video.DefaultFPS,
			Processor:   processorCfg,
			Pipeline:    cfg.Pipeline(),
		}, detector, estimator, db, m)
		live = stream

		background.Add(1)
		go func() {
			defer background.Done()
			if err := stream.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("live", "live stream stopped, got '%v'", err)
			}
		}()
	}

	r := api.SetRouter(api.Config{
		SourceDir:       cfg.Directory.Source,
		ReadyDir:        cfg.Directory.Ready,
		ProdFormat:      cfg.Video.ProdFormat,
		StaticFilesPath: cfg.Frontend.StaticFilesPath,
	}, db, runner, live, m)

	err = api.Serve(ctx, ":"+cfg.HTTP.Port, r, func() {
		runner.Wait()
		background.Wait()
	})
	if err != nil {
		//a failed listen leaves the live stream running, stop it before the deferred closes
		stop()
		runner.Wait()
		background.Wait()
		return err
	}
	logger.Info("main", "stopped")
	return nil
}

func newDetector(cfg *config.Config) (video.ObjectDetector, error) {
	switch cfg.Detector.Backend {
	case "dnn":
		minScore := cfg.Detector.PersonConfidence
		if cfg.Detector.BallConfidence < minScore {
			minScore = cfg.Detector.BallConfidence
		}
		return video.NewDNNDetector(cfg.Detector.Model, cfg.Detector.InputSize, minScore, cfg.Detector.NMSThreshold)
	case "exec":
		return video.NewExecDetector(cfg.Detector.Command, cfg.Detector.Args...)
	default:
		return nil, errors.New("unknown detector.backend '" + cfg.Detector.Backend + "', want dnn or exec")
	}
}
