package repo

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	actionSearch      = "search"
	actionCreate      = "create"
	actionUpdate      = "update"
	actionTransitions = "transitions"
	actionTransition  = "transition"
)

var (
	jiraRequestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "jira_request_latency_seconds",
		Help: "Latency when querying the JIRA API.",
	}, []string{"action"})

	jiraErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jira_errors_total",
		Help: "Number of failed JIRA API requests.",
	}, []string{"action"})
)

type requestTimer struct {
	action string
	timer  *prometheus.Timer
}

func newRequestTimer(action string) *requestTimer {
	return &requestTimer{
		action: action,
		timer:  prometheus.NewTimer(jiraRequestLatency.WithLabelValues(action)),
	}
}

func (t *requestTimer) done(err error) {
	t.timer.ObserveDuration()
	if err != nil {
		jiraErrors.WithLabelValues(t.action).Inc()
	}
}
