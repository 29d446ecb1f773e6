package observability

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordProjection(t *testing.T) {
	m := NewMetrics("test")

	m.RecordProjection(ModeSync, StatusOK, 1000, 20*time.Millisecond)
	m.RecordProjection(ModeSync, StatusError, 1000, time.Millisecond)
	m.RecordProjection(ModeAsync, StatusOK, 500, time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProjectionsTotal.WithLabelValues(ModeSync, StatusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProjectionsTotal.WithLabelValues(ModeSync, StatusError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProjectionsTotal.WithLabelValues(ModeAsync, StatusOK)))
	// Failed runs do not count their paths.
	assert.Equal(t, 1500.0, testutil.ToFloat64(m.PathsSimulated))
}

func TestCacheAndJobCounters(t *testing.T) {
	m := NewMetrics("test")

	m.RecordCacheLookup(true)
	m.RecordCacheLookup(false)
	m.RecordCacheLookup(false)
	m.RecordJobPublished(nil)
	m.RecordJobPublished(errors.New("broker down"))
	m.RecordBandExport(nil)
	m.RecordPlanRefreshed()
	m.RecordRunTransition("done")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsPublished.WithLabelValues(StatusError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BandExports.WithLabelValues(StatusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PlansRefreshed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunTransitions.WithLabelValues("done")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordProjection(ModeSync, StatusOK, 10, time.Millisecond)
		m.RecordSuccessProbability(50)
		m.RecordCacheLookup(true)
		m.RecordJobPublished(nil)
		m.RecordPlanRefreshed()
		m.RecordBandExport(nil)
		m.RecordRunTransition("queued")
		m.RecordRateLimited()
		m.RecordSuspicious()
	})

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	assert.NotNil(t, m.Middleware(next))
}

func TestSecurityCounters(t *testing.T) {
	m := NewMetrics("test")
	m.RecordRateLimited()
	m.RecordRateLimited()
	m.RecordSuspicious()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RateLimitHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SuspiciousRequests))
}

func TestSeparateRegistries(t *testing.T) {
	// Two instances must not collide on registration.
	a := NewMetrics("test")
	b := NewMetrics("test")
	a.RecordPlanRefreshed()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.PlansRefreshed))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.PlansRefreshed))
}

func TestMiddlewareAndHandler(t *testing.T) {
	m := NewMetrics("test")

	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues(http.MethodGet, "418")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "test_http_requests_total"))
	assert.True(t, strings.Contains(string(body), "go_goroutines"))
}
