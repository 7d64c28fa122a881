package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveEvaluation(t *testing.T) {
	m := New("")
	m.ObserveEvaluation("query", 2*time.Millisecond, 3, 5, nil)
	m.ObserveEvaluation("query", time.Millisecond, 2, 1, nil)
	m.ObserveEvaluation("load", time.Millisecond, 0, 0, errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.evaluations.WithLabelValues("query", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.evaluations.WithLabelValues("load", "error")))
	assert.Equal(t, 6.0, testutil.ToFloat64(m.derived.WithLabelValues("query")))
	assert.Equal(t, uint64(2), passesObserved(t, m), "failed runs record no passes")
}

func passesObserved(t *testing.T, m *Metrics) uint64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == "nero_eval_fixpoint_passes" {
			return mf.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}
	t.Fatal("fixpoint_passes not registered")
	return 0
}

func TestSetDatabaseFacts(t *testing.T) {
	m := New("test")
	m.SetDatabaseFacts(42)
	assert.Equal(t, 42.0, testutil.ToFloat64(m.databaseFacts))
}

func TestNilMetricsRecordNothing(t *testing.T) {
	var m *Metrics
	m.ObserveEvaluation("query", time.Millisecond, 1, 1, nil)
	m.SetDatabaseFacts(1)
}

func TestHandler(t *testing.T) {
	m := New("nero")
	m.ObserveEvaluation("infer", time.Millisecond, 1, 1, nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `nero_pipeline_evaluations_total{mode="infer",status="success"} 1`), body)
}
