package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMiddlewareLabelsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewServerMetrics("unit")
	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/orders/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/orders/1", "/orders/2", "/nowhere"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(m.Requests.WithLabelValues("GET /orders/:id", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Requests.WithLabelValues("GET unmatched", "404")))
}

func TestNewServerMetricsIsolated(t *testing.T) {
	assert.NotPanics(t, func() {
		NewServerMetrics("dup")
		NewServerMetrics("dup")
	})
}
