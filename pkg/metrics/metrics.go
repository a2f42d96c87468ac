//Package metrics exposes processing counters in the Prometheus text format
package metrics

import (
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chenBenjamin97/shot-tracker/pkg/pipeline"
)

//Metrics holds the application counters. The zero value is not usable, call New.
type Metrics struct {
	FramesProcessed atomic.Uint64
	FrameErrors     atomic.Uint64
	VideosProcessed atomic.Uint64
	VideosFailed    atomic.Uint64
	LiveClients     atomic.Int64

	shots        *prometheus.CounterVec
	rejected     prometheus.Counter
	frameLatency prometheus.Histogram
	requests     *prometheus.CounterVec
	registry     *prometheus.Registry
}

//New creates the counters and registers them in a private registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		shots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shot_tracker_shots_total",
			Help: "Verified shots by classified result",
		}, []string{"result"}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shot_tracker_shots_rejected_total",
			Help: "Shooting motions rejected because the ball never left the hand",
		}),
		frameLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "shot_tracker_frame_seconds",
			Help:    "Time spent detecting and analyzing one frame",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shot_tracker_http_requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{"route", "code"}),
	}

	m.registry.MustRegister(m.shots, m.rejected, m.frameLatency, m.requests)
	m.registerGauges()

	return m
}

func (m *Metrics) registerGauges() {
	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "shot_tracker_frames_processed_total",
			Help: "Frames run through the pipeline",
		},
		func() float64 { return float64(m.FramesProcessed.Load()) },
	))

	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "shot_tracker_frame_errors_total",
			Help: "Frames dropped on a detector or pipeline error",
		},
		func() float64 { return float64(m.FrameErrors.Load()) },
	))

	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "shot_tracker_videos_processed_total",
			Help: "Uploaded videos fully analyzed",
		},
		func() float64 { return float64(m.VideosProcessed.Load()) },
	))

	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "shot_tracker_videos_failed_total",
			Help: "Uploaded videos whose processing failed",
		},
		func() float64 { return float64(m.VideosFailed.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "shot_tracker_live_clients",
			Help: "Clients currently watching the live feed",
		},
		func() float64 { return float64(m.LiveClients.Load()) },
	))
}

//ObserveFrame records one pipeline step and what it produced
func (m *Metrics) ObserveFrame(out pipeline.Outcome, took time.Duration) {
	m.FramesProcessed.Add(1)
	m.frameLatency.Observe(took.Seconds())

	if out.Shot != nil {
		m.shots.WithLabelValues(string(out.Shot.Result())).Inc()
	}
	if out.Rejected != nil {
		m.rejected.Inc()
	}
}

//ObserveRequest counts one HTTP request
func (m *Metrics) ObserveRequest(route string, code int) {
	m.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

//Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
