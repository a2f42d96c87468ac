//Package config loads the yaml configuration file. Keys can be overridden by SHOT_TRACKER_* environment variables,
//e.g. SHOT_TRACKER_HTTP_PORT=9090.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/chenBenjamin97/shot-tracker/pkg/pipeline"
	"github.com/chenBenjamin97/shot-tracker/pkg/shot"
	"github.com/chenBenjamin97/shot-tracker/pkg/tracking"
	"github.com/chenBenjamin97/shot-tracker/pkg/utils"
)

//ErrMissing is returned by Validate when a critical key is empty
var ErrMissing = errors.New("config: missing critical configuration")

type HTTP struct {
	Port string `mapstructure:"port"`
}

type Directory struct {
	Root   string `mapstructure:"root"`
	Source string `mapstructure:"source"`
	Ready  string `mapstructure:"ready"`
	Temp   string `mapstructure:"temp"`
}

type Video struct {
	ProdFormat   string  `mapstructure:"prod_format"`
	Scale        float64 `mapstructure:"scale"`       //inference downscale factor
	DefaultFPS   float64 `mapstructure:"default_fps"` //used when the container does not report one
	Annotate     bool    `mapstructure:"annotate"`    //write an annotated copy to directory.ready
	Live         bool    `mapstructure:"live"`
	CameraDevice int     `mapstructure:"camera_device"`
	JPEGQuality  int     `mapstructure:"jpeg_quality"`
}

type Frontend struct {
	StaticFilesPath string `mapstructure:"static-files-path"`
}

type Log struct {
	Level string `mapstructure:"level"`
	Color bool   `mapstructure:"color"`
}

type Database struct {
	Path string `mapstructure:"path"`
}

//Detector selects the object detector backend: "dnn" runs an ONNX model in process, "exec" talks to an external
//detector process.
type Detector struct {
	Backend          string   `mapstructure:"backend"`
	Model            string   `mapstructure:"model"`
	InputSize        int      `mapstructure:"input_size"`
	NMSThreshold     float32  `mapstructure:"nms_threshold"`
	PersonConfidence float32  `mapstructure:"person_confidence"`
	BallConfidence   float32  `mapstructure:"ball_confidence"`
	Command          string   `mapstructure:"command"`
	Args             []string `mapstructure:"args"`
}

type Pose struct {
	Model     string  `mapstructure:"model"`
	Threshold float64 `mapstructure:"threshold"`
}

type Buffers struct {
	Wrist int `mapstructure:"wrist"`
	Ball  int `mapstructure:"ball"`
}

//Config is the whole configuration file
type Config struct {
	HTTP      HTTP                `mapstructure:"http"`
	Directory Directory           `mapstructure:"directory"`
	Video     Video               `mapstructure:"video"`
	Frontend  Frontend            `mapstructure:"frontend"`
	Log       Log                 `mapstructure:"log"`
	Database  Database            `mapstructure:"database"`
	Detector  Detector            `mapstructure:"detector"`
	Pose      Pose                `mapstructure:"pose"`
	Tracker   tracking.Config     `mapstructure:"tracker"`
	Phase     shot.PhaseConfig    `mapstructure:"phase"`
	Verifier  shot.VerifierConfig `mapstructure:"verifier"`
	Buffers   Buffers             `mapstructure:"buffers"`
}

//Load reads the configuration. An empty path searches config.yaml in the working directory and falls back to the
//defaults when there is none; an explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SHOT_TRACKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.port", "8080")

	v.SetDefault("directory.root", "./data")
	v.SetDefault("directory.source", "./data/source")
	v.SetDefault("directory.ready", "./data/ready")
	v.SetDefault("directory.temp", "./data/temp")

	v.SetDefault("video.prod_format", "mp4")
	v.SetDefault("video.scale", 0.25)
	v.SetDefault("video.default_fps", utils.DefaultFPS)
	v.SetDefault("video.annotate", true)
	v.SetDefault("video.live", false)
	v.SetDefault("video.camera_device", 0)
	v.SetDefault("video.jpeg_quality", 80)

	v.SetDefault("frontend.static-files-path", "./client/")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.color", false)

	v.SetDefault("database.path", "./data/shots.db")

	v.SetDefault("detector.backend", "dnn")
	v.SetDefault("detector.model", "./models/yolov8n.onnx")
	v.SetDefault("detector.input_size", 640)
	v.SetDefault("detector.nms_threshold", 0.45)
	v.SetDefault("detector.person_confidence", 0.3)
	v.SetDefault("detector.ball_confidence", 0.3)
	v.SetDefault("detector.command", "python3")
	v.SetDefault("detector.args", []string{"detector.py"})

	v.SetDefault("pose.model", "./openpose/graph_opt.pb")
	v.SetDefault("pose.threshold", 0.1)

	t := tracking.DefaultConfig()
	v.SetDefault("tracker.capacity", t.Capacity)
	v.SetDefault("tracker.association_radius", t.AssociationRadius)
	v.SetDefault("tracker.max_misses", t.MaxMisses)
	v.SetDefault("tracker.min_radius", t.MinRadius)
	v.SetDefault("tracker.min_aspect", t.MinAspect)
	v.SetDefault("tracker.max_aspect", t.MaxAspect)

	p := shot.DefaultPhaseConfig()
	v.SetDefault("phase.rise_frames", p.RiseFrames)
	v.SetDefault("phase.min_rise_velocity", p.MinRiseVelocity)
	v.SetDefault("phase.min_release_velocity", p.MinReleaseVelocity)
	v.SetDefault("phase.settle_velocity", p.SettleVelocity)
	v.SetDefault("phase.min_duration", p.MinDuration)
	v.SetDefault("phase.max_duration", p.MaxDuration)
	v.SetDefault("phase.max_missing_frames", p.MaxMissingFrames)
	v.SetDefault("phase.min_visibility", p.MinVisibility)

	ver := shot.DefaultVerifierConfig()
	v.SetDefault("verifier.epsilon", ver.Epsilon)
	v.SetDefault("verifier.look_ahead", ver.LookAhead)
	v.SetDefault("verifier.min_separation_ratio", ver.MinSeparationRatio)
	v.SetDefault("verifier.min_separation_px", ver.MinSeparationPx)

	v.SetDefault("buffers.wrist", utils.WristBufferCapacity)
	v.SetDefault("buffers.ball", utils.BallBufferCapacity)
}

//Validate reports the first critical key that is empty
func (c *Config) Validate() error {
	switch {
	case c.HTTP.Port == "":
		return fmt.Errorf("%w: http.port", ErrMissing)
	case c.Video.ProdFormat == "":
		return fmt.Errorf("%w: video.prod_format", ErrMissing)
	case c.Frontend.StaticFilesPath == "":
		return fmt.Errorf("%w: frontend.static-files-path", ErrMissing)
	case c.Database.Path == "":
		return fmt.Errorf("%w: database.path", ErrMissing)
	case c.Video.Scale <= 0 || c.Video.Scale > 1:
		return fmt.Errorf("config: video.scale must be in (0,1], got %v", c.Video.Scale)
	}
	return nil
}

//Directories returns the data directories that must exist, root first
func (c *Config) Directories() []string {
	return []string{c.Directory.Root, c.Directory.Source, c.Directory.Ready, c.Directory.Temp}
}

//Pipeline returns the per-session configuration
func (c *Config) Pipeline() pipeline.Config {
	return pipeline.Config{
		Tracker:       c.Tracker,
		Phase:         c.Phase,
		Verifier:      c.Verifier,
		WristCapacity: c.Buffers.Wrist,
		BallCapacity:  c.Buffers.Ball,
	}
}
