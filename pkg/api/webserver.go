package api

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/chenBenjamin97/shot-tracker/pkg/analysis"
	"github.com/chenBenjamin97/shot-tracker/pkg/logger"
	"github.com/chenBenjamin97/shot-tracker/pkg/metrics"
	"github.com/chenBenjamin97/shot-tracker/pkg/storage"
	"github.com/chenBenjamin97/shot-tracker/pkg/stream"
	"github.com/chenBenjamin97/shot-tracker/pkg/utils"
)

//Store is the persistence the API reads and writes
type Store interface {
	CreateVideo(ctx context.Context, filename, filePath string) (storage.Video, error)
	GetVideo(ctx context.Context, id string) (storage.Video, error)
	ListVideos(ctx context.Context) ([]storage.Video, error)
	ListShotsByVideo(ctx context.Context, videoID string) ([]storage.StoredShot, error)
}

//JobRunner processes uploaded videos in the background
type JobRunner interface {
	Submit(v storage.Video)
}

//LiveFeed publishes annotated camera frames as JPEG images
type LiveFeed interface {
	Subscribe() (<-chan []byte, func())
}

//Config holds the paths the routes serve from
type Config struct {
	SourceDir       string
	ReadyDir        string
	ProdFormat      string
	StaticFilesPath string
}

//Server holds the route handlers' dependencies. live may be nil when live streaming is disabled.
type Server struct {
	cfg     Config
	store   Store
	runner  JobRunner
	live    LiveFeed
	metrics *metrics.Metrics
}

//SetRouter builds the gin engine with every route
func SetRouter(cfg Config, store Store, runner JobRunner, live LiveFeed, m *metrics.Metrics) *gin.Engine {
	s := &Server{cfg: cfg, store: store, runner: runner, live: live, metrics: m}

	r := gin.Default()
	if m != nil {
		r.Use(s.countRequests)
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}

	//serve html pages to client
	r.Static("/client", cfg.StaticFilesPath)
	r.StaticFile("/", cfg.StaticFilesPath+"home_page/dist/index.html")

	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiRoutes := r.Group("/api")

	apiRoutes.GET("/ReadyVideosNames", s.listDir(cfg.ReadyDir))
	apiRoutes.GET("/UserUploadsVideosNames", s.listDir(cfg.SourceDir))
	apiRoutes.GET("/Play", s.play)
	apiRoutes.POST("/Upload", s.upload)

	apiRoutes.GET("/Videos", s.listVideos)
	apiRoutes.GET("/Videos/:id", s.getVideo)
	apiRoutes.GET("/Videos/:id/Shots", s.listShots)
	apiRoutes.GET("/Videos/:id/Analysis", s.analysis)
	apiRoutes.GET("/Videos/:id/Report", s.report)

	apiRoutes.GET("/LiveFeed", s.liveFeed)

	return r
}

func (s *Server) countRequests(ctx *gin.Context) {
	ctx.Next()

	route := ctx.FullPath()
	if route == "" {
		route = "unmatched"
	}
	s.metrics.ObserveRequest(route, ctx.Writer.Status())
}

func (s *Server) listDir(dir string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if names, err := utils.ListDir(dir); err != nil {
			ctx.Status(http.StatusInternalServerError)
		} else {
			ctx.JSON(http.StatusOK, names)
		}
	}
}

func (s *Server) play(ctx *gin.Context) {
	videoName := ctx.Query("name")
	if videoName == "" || videoName != path.Base(videoName) {
		ctx.Status(http.StatusNotAcceptable) //missing url parameter
		return
	}

	analyzed := ctx.Query("analyzed")
	if analyzed != "true" && analyzed != "false" {
		ctx.Status(http.StatusNotAcceptable) //missing url parameter
		return
	}

	var videoPath string
	if analyzed == "true" {
		videoPath = path.Join(s.cfg.ReadyDir, videoName+"."+s.cfg.ProdFormat)
	} else {
		videoPath = path.Join(s.cfg.SourceDir, videoName+"."+s.cfg.ProdFormat)
	}

	if _, err := os.Stat(videoPath); err != nil {
		if os.IsNotExist(err) {
			ctx.Status(http.StatusNotFound)
		} else {
			ctx.Status(http.StatusInternalServerError)
		}
		return
	}

	ctx.Header("Content-Type", "video/"+s.cfg.ProdFormat)
	http.ServeFile(ctx.Writer, ctx.Request, videoPath)
}

func (s *Server) upload(ctx *gin.Context) {
	fHeader, err := ctx.FormFile("video")
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "missing 'video' file"})
		return
	}

	if !strings.HasPrefix(fHeader.Header.Get("Content-Type"), "video/") {
		ctx.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "only video files are accepted"})
		return
	}

	filename := filepath.Base(fHeader.Filename)
	if filename == "." || filename == string(filepath.Separator) {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid file name"})
		return
	}

	if existNames, err := utils.ListDir(s.cfg.SourceDir); err != nil {
		ctx.Status(http.StatusInternalServerError)
		return
	} else if utils.InSlice(filename, existNames) {
		ctx.JSON(http.StatusNotAcceptable, gin.H{"error": "a video with this name was already uploaded"})
		return
	}

	logger.Info("api", "api/Upload: Received new file: name - '%s', size - %v Bytes", filename, fHeader.Size)

	srcFilePath := path.Join(s.cfg.SourceDir, filename)
	if err := ctx.SaveUploadedFile(fHeader, srcFilePath); err != nil {
		logger.Error("api", "api/Upload: Could not write '%s' file, got '%v'", srcFilePath, err)
		ctx.Status(http.StatusInternalServerError)
		return
	}

	v, err := s.store.CreateVideo(ctx.Request.Context(), filename, srcFilePath)
	if err != nil {
		logger.Error("api", "api/Upload: Could not register '%s', got '%v'", filename, err)
		os.Remove(srcFilePath)
		ctx.Status(http.StatusInternalServerError)
		return
	}

	s.runner.Submit(v)

	ctx.JSON(http.StatusAccepted, gin.H{"id": v.ID, "filename": v.Filename, "status": v.Status})
}

func (s *Server) listVideos(ctx *gin.Context) {
	videos, err := s.store.ListVideos(ctx.Request.Context())
	if err != nil {
		s.fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, videos)
}

func (s *Server) getVideo(ctx *gin.Context) {
	v, err := s.store.GetVideo(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		s.fail(ctx, err)
		return
	}
	shots, err := s.store.ListShotsByVideo(ctx.Request.Context(), v.ID)
	if err != nil {
		s.fail(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"video": v, "shots": shots})
}

func (s *Server) listShots(ctx *gin.Context) {
	shots, ok := s.videoShots(ctx)
	if !ok {
		return
	}
	ctx.JSON(http.StatusOK, shots)
}

func (s *Server) analysis(ctx *gin.Context) {
	shots, ok := s.videoShots(ctx)
	if !ok {
		return
	}
	ctx.JSON(http.StatusOK, analysis.Analyze(storage.Records(shots)))
}

func (s *Server) report(ctx *gin.Context) {
	shots, ok := s.videoShots(ctx)
	if !ok {
		return
	}
	ctx.String(http.StatusOK, analysis.Report(storage.Records(shots)))
}

//videoShots loads the shots of the video in the :id parameter, answering 404 for unknown videos
func (s *Server) videoShots(ctx *gin.Context) ([]storage.StoredShot, bool) {
	id := ctx.Param("id")
	if _, err := s.store.GetVideo(ctx.Request.Context(), id); err != nil {
		s.fail(ctx, err)
		return nil, false
	}

	shots, err := s.store.ListShotsByVideo(ctx.Request.Context(), id)
	if err != nil {
		s.fail(ctx, err)
		return nil, false
	}
	return shots, true
}

func (s *Server) liveFeed(ctx *gin.Context) {
	if s.live == nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "live streaming is disabled"})
		return
	}

	frames, unsubscribe := s.live.Subscribe()
	defer unsubscribe()

	if err := stream.ServeMJPEG(ctx.Request.Context(), ctx.Writer, frames); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("api", "api/LiveFeed: stream ended, got '%v'", err)
	}
}

func (s *Server) fail(ctx *gin.Context, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	logger.Error("api", "%s: Error, got '%v'", ctx.FullPath(), err)
	ctx.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
