package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordHTTPRequest("POST", "/token", 200, 10*time.Millisecond)
	m.RecordOperation("login", "success")
	m.RecordOperation("login", "invalid_credentials")
	m.RecordMailSend(nil, time.Millisecond)
	m.RecordMailSend(errors.New("down"), time.Millisecond)
	m.RecordSweep(time.Millisecond, 3, nil)
	m.RecordSweepSkipped()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("POST", "/token", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AccountOperations.WithLabelValues("login", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MailSends.WithLabelValues("failure")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SweepDeleted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SweepRuns.WithLabelValues("skipped")))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordHTTPRequest("GET", "/", 200, 0)
		m.RecordOperation("x", "y")
		m.RecordMailSend(nil, 0)
		m.RecordSweep(0, 0, nil)
		m.RecordSweepSkipped()
	})
}

func TestHandler(t *testing.T) {
	reg := NewRegistry()
	m := NewMetrics(reg)
	m.RecordOperation("register", "success")

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "alexander_auth_account_operations_total"))
	assert.True(t, strings.Contains(body, "go_goroutines"))
}
