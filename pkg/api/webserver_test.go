package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chenBenjamin97/shot-tracker/pkg/metrics"
	"github.com/chenBenjamin97/shot-tracker/pkg/shot"
	"github.com/chenBenjamin97/shot-tracker/pkg/storage"
	"github.com/chenBenjamin97/shot-tracker/pkg/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeRunner struct {
	mu        sync.Mutex
	submitted []storage.Video
}

func (f *fakeRunner) Submit(v storage.Video) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, v)
}

type fakeFeed struct {
	frames [][]byte
}

func (f *fakeFeed) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, len(f.frames))
	for _, frame := range f.frames {
		ch <- frame
	}
	close(ch)
	return ch, func() {}
}

type testServer struct {
	router *gin.Engine
	db     *storage.DB
	runner *fakeRunner
	cfg    Config
}

func newTestServer(t *testing.T, live LiveFeed) *testServer {
	t.Helper()
	dir := t.TempDir()

	db, err := storage.Open(filepath.Join(dir, "shots.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())

	cfg := Config{
		SourceDir:       filepath.Join(dir, "source"),
		ReadyDir:        filepath.Join(dir, "ready"),
		ProdFormat:      "mp4",
		StaticFilesPath: filepath.Join(dir, "client") + "/",
	}
	require.NoError(t, os.Mkdir(cfg.SourceDir, 0766))
	require.NoError(t, os.Mkdir(cfg.ReadyDir, 0766))

	runner := &fakeRunner{}
	return &testServer{
		router: SetRouter(cfg, db, runner, live, metrics.New()),
		db:     db,
		runner: runner,
		cfg:    cfg,
	}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) get(path string) *httptest.ResponseRecorder {
	return s.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func uploadRequest(t *testing.T, filename, contentType string, content []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", `form-data; name="video"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/Upload", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func shotRecord(releaseTs float64, result shot.Result, confidence float64) shot.Record {
	r := shot.Record{
		ID:     uuid.New(),
		Window: shot.PhaseWindow{StartTs: releaseTs - 0.3, ReleaseTs: releaseTs, EndTs: releaseTs + 0.5, Duration: 0.8},
		Form:   &shot.FormMetrics{ElbowAngleAtRelease: 150},
	}
	return r.WithBallTracking(shot.BallTracking{Result: result, Confidence: confidence, TrajectoryLength: 10})
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.get("/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestUpload(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(uploadRequest(t, "practice.mp4", "video/mp4", []byte("not really a video")))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp struct {
		ID       string `json:"id"`
		Filename string `json:"filename"`
		Status   string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "practice.mp4", resp.Filename)
	assert.Equal(t, utils.VideoStatusUploaded, resp.Status)

	saved, err := os.ReadFile(filepath.Join(s.cfg.SourceDir, "practice.mp4"))
	require.NoError(t, err)
	assert.Equal(t, "not really a video", string(saved))

	require.Len(t, s.runner.submitted, 1)
	assert.Equal(t, resp.ID, s.runner.submitted[0].ID)

	v, err := s.db.GetVideo(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.cfg.SourceDir, "practice.mp4"), v.FilePath)
}

func TestUploadRejects(t *testing.T) {
	s := newTestServer(t, nil)
	require.Equal(t, http.StatusAccepted, s.do(uploadRequest(t, "a.mp4", "video/mp4", []byte("x"))).Code)

	t.Run("duplicate name", func(t *testing.T) {
		rec := s.do(uploadRequest(t, "a.mp4", "video/mp4", []byte("y")))
		assert.Equal(t, http.StatusNotAcceptable, rec.Code)
	})

	t.Run("not a video", func(t *testing.T) {
		rec := s.do(uploadRequest(t, "notes.txt", "text/plain", []byte("y")))
		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	})

	t.Run("missing file", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/Upload", strings.NewReader(""))
		req.Header.Set("Content-Type", "multipart/form-data; boundary=nothing")
		assert.Equal(t, http.StatusBadRequest, s.do(req).Code)
	})

	assert.Len(t, s.runner.submitted, 1)
}

func TestVideoRoutes(t *testing.T) {
	s := newTestServer(t, nil)
	ctx := context.Background()

	v, err := s.db.CreateVideo(ctx, "game.mp4", "/game.mp4")
	require.NoError(t, err)
	records := []shot.Record{
		shotRecord(2, shot.ResultMade, 0.8),
		shotRecord(6, shot.ResultMissed, 0.6),
	}
	require.NoError(t, s.db.CompleteVideo(ctx, v.ID, storage.VideoSummary{TotalFrames: 300, FPS: 30, ShotsDetected: 2}, records))

	t.Run("list", func(t *testing.T) {
		rec := s.get("/api/Videos")
		require.Equal(t, http.StatusOK, rec.Code)
		var videos []storage.Video
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &videos))
		require.Len(t, videos, 1)
		assert.Equal(t, utils.VideoStatusDone, videos[0].Status)
	})

	t.Run("video with shots", func(t *testing.T) {
		rec := s.get("/api/Videos/" + v.ID)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Video storage.Video  `json:"video"`
			Shots []shot.Record `json:"shots"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, v.ID, resp.Video.ID)
		require.Len(t, resp.Shots, 2)
		assert.Equal(t, records[0].ID, resp.Shots[0].ID)
	})

	t.Run("shots", func(t *testing.T) {
		rec := s.get("/api/Videos/" + v.ID + "/Shots")
		require.Equal(t, http.StatusOK, rec.Code)
		var shots []storage.StoredShot
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &shots))
		require.Len(t, shots, 2)
		assert.Equal(t, shot.ResultMissed, shots[1].Result())
		assert.Equal(t, v.ID, shots[1].VideoID)
	})

	t.Run("analysis", func(t *testing.T) {
		rec := s.get("/api/Videos/" + v.ID + "/Analysis")
		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Stats struct {
				TotalShots     int     `json:"total_shots"`
				Makes          int     `json:"makes"`
				MakePercentage float64 `json:"make_percentage"`
			} `json:"stats"`
			Comparison struct {
				MakesCount  int `json:"makes_count"`
				MissesCount int `json:"misses_count"`
			} `json:"comparison"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 2, resp.Stats.TotalShots)
		assert.Equal(t, 1, resp.Stats.Makes)
		assert.Equal(t, 50.0, resp.Stats.MakePercentage)
		assert.Equal(t, 1, resp.Comparison.MakesCount)
		assert.Equal(t, 1, resp.Comparison.MissesCount)
	})

	t.Run("report", func(t *testing.T) {
		rec := s.get("/api/Videos/" + v.ID + "/Report")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "BASKETBALL SHOT ANALYSIS REPORT")
		assert.Contains(t, rec.Body.String(), "Total Shots:              2")
	})

	t.Run("unknown video", func(t *testing.T) {
		for _, p := range []string{"/api/Videos/missing", "/api/Videos/missing/Shots", "/api/Videos/missing/Analysis", "/api/Videos/missing/Report"} {
			assert.Equal(t, http.StatusNotFound, s.get(p).Code, p)
		}
	})
}

func TestPlay(t *testing.T) {
	s := newTestServer(t, nil)
	require.NoError(t, os.WriteFile(filepath.Join(s.cfg.SourceDir, "clip.mp4"), []byte("raw"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(s.cfg.ReadyDir, "clip.mp4"), []byte("tagged"), 0644))

	rec := s.get("/api/Play?name=clip&analyzed=false")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "raw", rec.Body.String())

	rec = s.get("/api/Play?name=clip&analyzed=true")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tagged", rec.Body.String())

	assert.Equal(t, http.StatusNotAcceptable, s.get("/api/Play?name=clip").Code)
	assert.Equal(t, http.StatusNotAcceptable, s.get("/api/Play?analyzed=true").Code)
	assert.Equal(t, http.StatusNotFound, s.get("/api/Play?name=other&analyzed=true").Code)
}

func TestListDirRoutes(t *testing.T) {
	s := newTestServer(t, nil)
	require.NoError(t, os.WriteFile(filepath.Join(s.cfg.SourceDir, "clip.mp4"), []byte("raw"), 0644))

	rec := s.get("/api/UserUploadsVideosNames")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `["clip.mp4"]`, rec.Body.String())

	rec = s.get("/api/ReadyVideosNames")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestLiveFeed(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		s := newTestServer(t, nil)
		assert.Equal(t, http.StatusNotFound, s.get("/api/LiveFeed").Code)
	})

	t.Run("streams frames", func(t *testing.T) {
		s := newTestServer(t, &fakeFeed{frames: [][]byte{[]byte("jpeg-1"), []byte("jpeg-2")}})

		rec := s.get("/api/LiveFeed")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "multipart/x-mixed-replace; boundary=frame", rec.Header().Get("Content-Type"))
		assert.Equal(t, 2, strings.Count(rec.Body.String(), "--frame\r\n"))
		assert.Contains(t, rec.Body.String(), "jpeg-2")
	})
}

func TestMetricsRoute(t *testing.T) {
	s := newTestServer(t, nil)
	require.Equal(t, http.StatusOK, s.get("/health").Code)

	rec := s.get("/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `shot_tracker_http_requests_total{code="200",route="/health"} 1`)
	assert.Contains(t, rec.Body.String(), "shot_tracker_frames_processed_total 0")
}
