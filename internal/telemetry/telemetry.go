// Package telemetry exposes the narrow event surface the frontend emits.
// Components call these methods directly instead of being wrapped by a
// tracking decorator, so the full telemetry surface is visible in this file.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Tracker receives product events from handlers and the upstream client.
type Tracker interface {
	// PageView records a rendered page by route template.
	PageView(route string)
	// FormSubmit records a form submission and whether it succeeded.
	FormSubmit(form string, ok bool)
	// AuthEvent records a session lifecycle event: login, login_failed,
	// logout, refresh, refresh_failed, bootstrap.
	AuthEvent(kind string)
	// UpstreamRequest records one call to the upstream API by resource and
	// HTTP status class.
	UpstreamRequest(resource string, status int)
}

// Prometheus implements Tracker on top of Prometheus counters.
type Prometheus struct {
	pageViews        *prometheus.CounterVec
	formSubmits      *prometheus.CounterVec
	authEvents       *prometheus.CounterVec
	upstreamRequests *prometheus.CounterVec
}

// NewPrometheus creates a tracker registered on the given registerer.
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	t := &Prometheus{
		pageViews: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "testflow_page_views_total",
			Help: "Pages rendered, by route template.",
		}, []string{"route"}),
		formSubmits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "testflow_form_submits_total",
			Help: "Form submissions, by form name and outcome.",
		}, []string{"form", "outcome"}),
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "testflow_auth_events_total",
			Help: "Session lifecycle events.",
		}, []string{"kind"}),
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "testflow_upstream_requests_total",
			Help: "Calls to the upstream API, by resource and status.",
		}, []string{"resource", "status"}),
	}

	for _, c := range []prometheus.Collector{t.pageViews, t.formSubmits, t.authEvents, t.upstreamRequests} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *Prometheus) PageView(route string) {
	t.pageViews.WithLabelValues(route).Inc()
}

func (t *Prometheus) FormSubmit(form string, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	t.formSubmits.WithLabelValues(form, outcome).Inc()
}

func (t *Prometheus) AuthEvent(kind string) {
	t.authEvents.WithLabelValues(kind).Inc()
}

func (t *Prometheus) UpstreamRequest(resource string, status int) {
	t.upstreamRequests.WithLabelValues(resource, statusClass(status)).Inc()
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "error"
	}
}

// Noop discards every event. Used in tests and as the default tracker.
type Noop struct{}

func (Noop) PageView(string)             {}
func (Noop) FormSubmit(string, bool)     {}
func (Noop) AuthEvent(string)            {}
func (Noop) UpstreamRequest(string, int) {}
