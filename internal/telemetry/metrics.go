package telemetry

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the service's own collectors; the go/process collectors come
// with the default registry.
type Metrics struct {
	ScoreSubmissions *prometheus.CounterVec
	LeaderboardReads prometheus.Counter
	HTTPDuration     *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ScoreSubmissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "banago",
			Name:      "score_submissions_total",
			Help:      "Score submissions by outcome.",
		}, []string{"outcome"}),
		LeaderboardReads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "banago",
			Name:      "leaderboard_reads_total",
			Help:      "Leaderboard queries served.",
		}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "banago",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}

	reg.MustRegister(m.ScoreSubmissions, m.LeaderboardReads, m.HTTPDuration)
	return m
}

// GinMiddleware observes request latency per route.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPDuration.
			WithLabelValues(route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
