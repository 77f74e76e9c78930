package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// DefaultSlowRequestThreshold is the duration above which requests are logged
// as slow.
const DefaultSlowRequestThreshold = 2 * time.Second

// Timing measures request processing time. It sets X-Processing-Time, feeds
// a request duration histogram and logs slow requests.
type Timing struct {
	duration  *prometheus.HistogramVec
	logger    zerolog.Logger
	threshold time.Duration
}

// NewTiming creates the timing middleware. reg may be nil, in which case the
// histogram is not exported.
func NewTiming(reg prometheus.Registerer, logger zerolog.Logger, threshold time.Duration) *Timing {
	if threshold <= 0 {
		threshold = DefaultSlowRequestThreshold
	}
	return &Timing{
		duration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "portfolio_http_request_duration_seconds",
			Help:    "HTTP request duration by method, route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		logger:    logger,
		threshold: threshold,
	}
}

// Handler wraps next.
func (t *Timing) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		hw := newHookWriter(w, func(h http.Header, _ int) {
			h.Set("X-Processing-Time", fmt.Sprintf("%.3fs", time.Since(start).Seconds()))
		})
		next.ServeHTTP(hw, r)
		hw.finish()

		elapsed := time.Since(start)
		t.duration.WithLabelValues(r.Method, routeLabel(r), strconv.Itoa(hw.status)).Observe(elapsed.Seconds())

		if elapsed > t.threshold {
			t.logger.Warn().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Dur("duration", elapsed).
				Msg("Slow request")
		}
	})
}

// routeLabel uses the mux route template to keep label cardinality bounded.
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil && tpl != "" {
			return tpl
		}
	}
	return "unmatched"
}
