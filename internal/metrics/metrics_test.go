package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusBucket(t *testing.T) {
	assert.Equal(t, "2xx", statusBucket(200))
	assert.Equal(t, "2xx", statusBucket(204))
	assert.Equal(t, "4xx", statusBucket(409))
	assert.Equal(t, "5xx", statusBucket(503))
	assert.Equal(t, "3xx", statusBucket(302))
	assert.Equal(t, "1xx", statusBucket(101))
}

func TestMiddleware_CountsRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/v1/disputes/:id", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/v1/disputes/:id", "2xx"))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/disputes/dsp_0123abcd", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/v1/disputes/:id", "2xx"))
	assert.Equal(t, before+1, after)
}

func TestMiddleware_ObservesDuration(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/v1/policies/:id", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/policies/pol_0123abcd", nil))
	require.Equal(t, http.StatusOK, w.Code)

	ch := make(chan prometheus.Metric, 16)
	HTTPRequestDuration.Collect(ch)
	close(ch)

	found := false
	for metric := range ch {
		m := &dto.Metric{}
		_ = metric.Write(m)
		if m.Histogram != nil && m.Histogram.GetSampleCount() > 0 {
			found = true
		}
	}
	assert.True(t, found, "expected a duration sample after a routed request")
}

func TestHandler_ServesPrometheusFormat(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/metrics", Handler())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "coachwise_http_requests_total")
}
