package metrics

import (
	"time"

	obserrors "github.com/target/estate-portal/internal/observability/errors"
	"github.com/target/estate-portal/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// SessionMetric captures one session state transition for metric emission.
type SessionMetric struct {
	Op       string
	Category string
	Result   string
	Duration time.Duration
	Err      error
}

// EmitSessionTransition emits standardised session transition metrics.
func EmitSessionTransition(sink statsd.Sink, in SessionMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"op":     in.Op,
		"result": in.Result,
	}
	if in.Category != "" {
		tags["category"] = in.Category
	}
	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("session.transition", 1, tags)

	if in.Duration > 0 {
		sink.Timing("session.duration", in.Duration, CloneTags(tags))
	}
}

// EmitAuthenticated sets the signed-in gauge for category.
func EmitAuthenticated(sink statsd.Sink, category string, signedIn bool) {
	if sink == nil || category == "" {
		return
	}
	value := 0.0
	if signedIn {
		value = 1
	}
	sink.Gauge("session.authenticated", value, map[string]string{"category": category})
}

// EmitPollerFetch records one dashboard refresh attempt.
func EmitPollerFetch(sink statsd.Sink, role string, duration time.Duration, err error) {
	if sink == nil {
		return
	}
	tags := map[string]string{"role": role, "result": ResultSuccess}
	if err != nil {
		tags["result"] = ResultError
		tags["error_class"] = obserrors.Classify(err)
	}
	sink.Count("dashboard.fetch", 1, tags)
	sink.Timing("dashboard.fetch_duration", duration, CloneTags(tags))
}

// EmitGuardDecision records a route guard outcome.
func EmitGuardDecision(sink statsd.Sink, decision string) {
	if sink == nil {
		return
	}
	sink.Count("guard.decision", 1, map[string]string{"decision": decision})
}

// CloneTags creates a shallow copy of a tag map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
