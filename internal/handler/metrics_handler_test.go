package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dance-studio-api/internal/service"
)

func TestReadyReportsFailingDependency(t *testing.T) {
	up := PingerFunc(func(context.Context) error { return nil })
	down := PingerFunc(func(context.Context) error { return errors.New("connection refused") })

	h := NewMetricsHandler(nil, map[string]Pinger{"postgres": up})
	rec := serve(t, h.Ready, http.MethodGet, "/ready", "/ready", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	h = NewMetricsHandler(nil, map[string]Pinger{"postgres": up, "redis": down})
	rec = serve(t, h.Ready, http.MethodGet, "/ready", "/ready", nil, nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unavailable", body.Status)
	assert.Equal(t, "ok", body.Checks["postgres"])
	assert.Equal(t, "connection refused", body.Checks["redis"])
}

func TestHealthAndPrometheus(t *testing.T) {
	metrics := service.NewMetricsService()
	metrics.RecordContact(service.ContactAccepted)
	h := NewMetricsHandler(metrics, nil)

	rec := serve(t, h.Health, http.MethodGet, "/health", "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(t, h.Prometheus, http.MethodGet, "/metrics", "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "contact_submissions_total")

	rec = serve(t, NewMetricsHandler(nil, nil).Prometheus, http.MethodGet, "/metrics", "/metrics", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
