package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"gateattend/internal/metrics"
)

func TestMetricsMuxServesNotificationCounters(t *testing.T) {
	m := metrics.New(prometheus.DefaultRegisterer)
	m.ObserveNotification("sent")

	w := httptest.NewRecorder()
	metricsMux().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "gateattend_notifications_total")

	w = httptest.NewRecorder()
	metricsMux().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
