package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistogramIsCumulative(t *testing.T) {
	h := newHistogram([]float64{10, 100})
	h.Observe(5)
	h.Observe(50)
	h.Observe(500)

	snap := h.Snapshot()
	assert.Equal(t, []uint64{1, 1}, snap.counts)
	assert.EqualValues(t, 3, snap.count)
}

func TestRenderIncludesCounters(t *testing.T) {
	IncRunStarted()
	AddJobsFetched("opportunity", 4)
	AddJobsFetched("job_search", 0)

	out := Render()
	assert.Contains(t, out, "# TYPE autoapply_runs_started_total counter")
	assert.Contains(t, out, `autoapply_jobs_fetched_total{source="opportunity"}`)
	assert.NotContains(t, out, `source="job_search"`)
	assert.Contains(t, out, `autoapply_run_duration_ms_bucket{le="+Inf"}`)
}

func TestHandlerServesText(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/metrics", Handler())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain"))
}
