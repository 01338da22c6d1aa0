// Package metrics defines the Prometheus metrics exported by Alexander Auth.
// All Record methods are safe to call on a nil *Metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "alexander_auth"

// Metrics holds every collector registered by the service.
type Metrics struct {
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// AccountOperations counts state machine calls by operation and outcome.
	AccountOperations *prometheus.CounterVec

	MailSends        *prometheus.CounterVec
	MailSendDuration prometheus.Histogram

	SweepRuns        *prometheus.CounterVec
	SweepDeleted     prometheus.Counter
	SweepDuration    prometheus.Histogram
	SweepLastRunTime prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests.",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		AccountOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "account_operations_total",
				Help:      "Account operations by operation and outcome.",
			},
			[]string{"operation", "outcome"},
		),
		MailSends: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "mail_sends_total",
				Help:      "OTP emails handed to the sender, by outcome.",
			},
			[]string{"outcome"},
		),
		MailSendDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "mail_send_duration_seconds",
				Help:      "Duration of OTP email delivery in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
		),
		SweepRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "otp_sweep_runs_total",
				Help:      "Expired OTP sweep runs, by outcome.",
			},
			[]string{"outcome"},
		),
		SweepDeleted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "otp_sweep_deleted_total",
				Help:      "Expired OTP challenges deleted by the sweeper.",
			},
		),
		SweepDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "otp_sweep_duration_seconds",
				Help:      "Duration of expired OTP sweep runs in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
		),
		SweepLastRunTime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "otp_sweep_last_run_timestamp_seconds",
				Help:      "Unix time of the last completed sweep.",
			},
		),
	}

	reg.MustRegister(
		m.HTTPRequests,
		m.HTTPRequestDuration,
		m.AccountOperations,
		m.MailSends,
		m.MailSendDuration,
		m.SweepRuns,
		m.SweepDeleted,
		m.SweepDuration,
		m.SweepLastRunTime,
	)
	return m
}

// NewRegistry returns a registry preloaded with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordOperation records the outcome of an account operation.
func (m *Metrics) RecordOperation(operation, outcome string) {
	if m == nil {
		return
	}
	m.AccountOperations.WithLabelValues(operation, outcome).Inc()
}

// RecordMailSend records one delivery attempt.
func (m *Metrics) RecordMailSend(err error, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.MailSends.WithLabelValues(outcome).Inc()
	m.MailSendDuration.Observe(d.Seconds())
}

// RecordSweep records a completed sweep run.
func (m *Metrics) RecordSweep(d time.Duration, deleted int64, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.SweepRuns.WithLabelValues(outcome).Inc()
	m.SweepDeleted.Add(float64(deleted))
	m.SweepDuration.Observe(d.Seconds())
	m.SweepLastRunTime.SetToCurrentTime()
}

// RecordSweepSkipped records a run skipped because another instance holds the lock.
func (m *Metrics) RecordSweepSkipped() {
	if m == nil {
		return
	}
	m.SweepRuns.WithLabelValues("skipped").Inc()
}
