package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chenBenjamin97/shot-tracker/pkg/pipeline"
	"github.com/chenBenjamin97/shot-tracker/pkg/shot"
)

func TestObserveFrame(t *testing.T) {
	m := New()

	made := shot.Record{}.WithBallTracking(shot.BallTracking{Result: shot.ResultMade, Confidence: 0.7})
	rejected := shot.Record{}

	m.ObserveFrame(pipeline.Outcome{}, 10*time.Millisecond)
	m.ObserveFrame(pipeline.Outcome{Shot: &made}, 20*time.Millisecond)
	m.ObserveFrame(pipeline.Outcome{Rejected: &rejected}, 15*time.Millisecond)

	assert.Equal(t, uint64(3), m.FramesProcessed.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.shots.WithLabelValues("made")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.shots.WithLabelValues("missed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rejected))
}

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.VideosProcessed.Add(2)
	m.LiveClients.Store(1)
	m.ObserveRequest("/api/Videos", 200)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	out := string(body)
	assert.Contains(t, out, "shot_tracker_videos_processed_total 2")
	assert.Contains(t, out, "shot_tracker_live_clients 1")
	assert.Contains(t, out, `shot_tracker_http_requests_total{code="200",route="/api/Videos"} 1`)
	assert.Contains(t, out, "shot_tracker_frame_seconds_bucket")
}
