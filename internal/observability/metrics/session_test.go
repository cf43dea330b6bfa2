package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/target/estate-portal/internal/errors"
)

type recordedMetric struct {
	kind  string
	name  string
	tags  map[string]string
	value float64
}

type recordingSink struct{ metrics []recordedMetric }

func (s *recordingSink) Count(name string, value int64, tags map[string]string) {
	s.metrics = append(s.metrics, recordedMetric{"count", name, tags, float64(value)})
}

func (s *recordingSink) Gauge(name string, value float64, tags map[string]string) {
	s.metrics = append(s.metrics, recordedMetric{"gauge", name, tags, value})
}

func (s *recordingSink) Timing(name string, value time.Duration, tags map[string]string) {
	s.metrics = append(s.metrics, recordedMetric{"timing", name, tags, float64(value)})
}

func TestEmitSessionTransition(t *testing.T) {
	sink := &recordingSink{}
	EmitSessionTransition(sink, SessionMetric{
		Op:       "login",
		Category: "user",
		Result:   ResultError,
		Duration: 20 * time.Millisecond,
		Err:      apperrors.New(apperrors.ErrCodeInvalidCredentials, "nope"),
	})

	require.Len(t, sink.metrics, 2)
	assert.Equal(t, "session.transition", sink.metrics[0].name)
	assert.Equal(t, map[string]string{
		"op":          "login",
		"category":    "user",
		"result":      "error",
		"error_class": "invalid_credentials",
	}, sink.metrics[0].tags)
	assert.Equal(t, "timing", sink.metrics[1].kind)
}

func TestEmitSessionTransition_NoTimingWithoutDuration(t *testing.T) {
	sink := &recordingSink{}
	EmitSessionTransition(sink, SessionMetric{Op: "logout", Result: ResultSuccess})
	require.Len(t, sink.metrics, 1)
	assert.NotContains(t, sink.metrics[0].tags, "category")

	EmitSessionTransition(nil, SessionMetric{Op: "logout"})
}

func TestEmitPollerFetch(t *testing.T) {
	sink := &recordingSink{}
	EmitPollerFetch(sink, "admin", time.Millisecond, errors.New("boom"))
	require.Len(t, sink.metrics, 2)
	assert.Equal(t, "error", sink.metrics[0].tags["result"])
}

func TestCloneTags(t *testing.T) {
	assert.Nil(t, CloneTags(nil))
	src := map[string]string{"a": "b"}
	cp := CloneTags(src)
	cp["a"] = "c"
	assert.Equal(t, "b", src["a"])
}

func TestEmitAuthenticated(t *testing.T) {
	sink := &recordingSink{}
	EmitAuthenticated(sink, "client", true)
	EmitAuthenticated(sink, "client", false)
	EmitAuthenticated(sink, "", true)
	EmitAuthenticated(nil, "user", true)

	require.Len(t, sink.metrics, 2)
	assert.Equal(t, "session.authenticated", sink.metrics[0].name)
	assert.Equal(t, "client", sink.metrics[1].tags["category"])
}

func TestEmitGuardDecision(t *testing.T) {
	sink := &recordingSink{}
	EmitGuardDecision(sink, "forbidden")
	EmitGuardDecision(nil, "loading")

	require.Len(t, sink.metrics, 1)
	assert.Equal(t, "forbidden", sink.metrics[0].tags["decision"])
}
