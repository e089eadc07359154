// Package metrics records Prometheus metrics for every call made through
// a transport.
package metrics

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wippyai/candid/transport"
)

const namespace = "candid_transport"

// Outcome label values.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeCanceled = "canceled"
	OutcomeError    = "error"
)

// Collector is a prometheus.Collector holding call metrics.
type Collector struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewCollector returns a Collector. Register it with a
// prometheus.Registerer to expose it.
func NewCollector() *Collector {
	return &Collector{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "The number of calls sent, by method, mode and outcome.",
			}, []string{"method", "mode", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "The time from sending a call to receiving its reply.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method", "mode"},
		),
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.requests.Describe(ch)
	c.duration.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.requests.Collect(ch)
	c.duration.Collect(ch)
}

// Wrap returns next instrumented with c.
func (c *Collector) Wrap(next transport.Transport) transport.Transport {
	return transport.Func(func(ctx context.Context, req *transport.Request) ([]byte, error) {
		mode := req.Mode.String()
		start := time.Now()
		out, err := next.Send(ctx, req)
		c.duration.WithLabelValues(req.Method, mode).Observe(time.Since(start).Seconds())
		c.requests.WithLabelValues(req.Method, mode, outcome(err)).Inc()
		return out, err
	})
}

// Middleware returns c.Wrap as a transport.Middleware.
func (c *Collector) Middleware() transport.Middleware {
	return c.Wrap
}

func outcome(err error) string {
	var re *transport.Error
	switch {
	case err == nil:
		return OutcomeOK
	case stderrors.As(err, &re):
		return OutcomeRejected
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		return OutcomeCanceled
	}
	return OutcomeError
}
