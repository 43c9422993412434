//nolint:gochecknoglobals
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "invitations"

var (
	issuedMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "issued_total",
		Help:      "Invitation requests by outcome.",
	}, []string{"result"})

	deletedMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "deleted_total",
		Help:      "Invitations removed, by the path that removed them.",
	}, []string{"path"})

	eventsDroppedMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "invitation_events_dropped_total",
		Help: "Lifecycle events dropped because the observer queue was full.",
	}, []string{"event"})

	jobRunsMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "job_runs_total",
		Help:      "Scheduled job runs by job and status.",
	}, []string{"job", "status"})

	httpRequestsDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "The latency of the HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method", "code"})
)

// Issue results
const (
	ResultSent       = "sent"
	ResultRegistered = "already_registered"
	ResultDuplicate  = "duplicate"
	ResultFailed     = "failed"
)

// Delete paths
const (
	PathExplicit     = "explicit"
	PathRegistration = "registration"
	PathSweep        = "sweep"
	PathReissue      = "reissue"
)

func InvitationIssued(result string) {
	issuedMetric.WithLabelValues(result).Inc()
}

func InvitationsDeleted(path string, n int) {
	deletedMetric.WithLabelValues(path).Add(float64(n))
}

func EventDropped(event string) {
	eventsDroppedMetric.WithLabelValues(event).Inc()
}

func JobRun(job string, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	jobRunsMetric.WithLabelValues(job, status).Inc()
}

func Handler() http.Handler {
	return promhttp.Handler()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware records request latency labelled by the matched route template
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		httpRequestsDuration.With(prometheus.Labels{
			"route":  route,
			"method": r.Method,
			"code":   strconv.Itoa(rec.status),
		}).Observe(time.Since(start).Seconds())
	})
}
