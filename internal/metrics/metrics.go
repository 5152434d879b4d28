package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns the service's Prometheus collectors. A nil *Recorder is valid
// and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	predictions   *prometheus.CounterVec
	duration      prometheus.Histogram
	cacheHits     *prometheus.CounterVec
	mailFetched   prometheus.Counter
	mailErrors    *prometheus.CounterVec
	httpResponses *prometheus.CounterVec
}

// NewRecorder creates a recorder backed by its own registry
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "phishing_detector_predictions_total",
			Help: "Total number of emails scored, by verdict and source",
		}, []string{"label", "source"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "phishing_detector_prediction_duration_seconds",
			Help:    "Time spent scoring one email",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "phishing_detector_cache_lookups_total",
			Help: "Verdict cache lookups",
		}, []string{"result"}),
		mailFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "phishing_detector_gmail_messages_fetched_total",
			Help: "Messages fetched from the Gmail API",
		}),
		mailErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "phishing_detector_gmail_errors_total",
			Help: "Failed Gmail API operations",
		}, []string{"operation"}),
		httpResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "phishing_detector_http_responses_total",
			Help: "HTTP responses by route and status code",
		}, []string{"route", "code"}),
	}

	r.registry.MustRegister(
		r.predictions,
		r.duration,
		r.cacheHits,
		r.mailFetched,
		r.mailErrors,
		r.httpResponses,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Handler exposes the registry in the Prometheus text format
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ObservePrediction records one scored email
func (r *Recorder) ObservePrediction(label, source string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.predictions.WithLabelValues(label, source).Inc()
	r.duration.Observe(elapsed.Seconds())
}

// CacheLookup records a verdict cache hit or miss
func (r *Recorder) CacheLookup(hit bool) {
	if r == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheHits.WithLabelValues(result).Inc()
}

// MessagesFetched records fetched mailbox messages
func (r *Recorder) MessagesFetched(n int) {
	if r == nil {
		return
	}
	r.mailFetched.Add(float64(n))
}

// MailError records a failed mail operation
func (r *Recorder) MailError(operation string) {
	if r == nil {
		return
	}
	r.mailErrors.WithLabelValues(operation).Inc()
}

// HTTPResponse records a response status for a route
func (r *Recorder) HTTPResponse(route string, code int) {
	if r == nil {
		return
	}
	r.httpResponses.WithLabelValues(route, strconv.Itoa(code)).Inc()
}
