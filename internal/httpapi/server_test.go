package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agendad/internal/model"
	"github.com/fyrsmithlabs/agendad/internal/pipeline"
)

type fakePipeline struct {
	stats      pipeline.Stats
	result     *model.PipelineResult
	processErr error
	lastDate   time.Time
}

func (f *fakePipeline) Stats() pipeline.Stats { return f.stats }

func (f *fakePipeline) ProcessDay(_ context.Context, date time.Time) (*model.PipelineResult, error) {
	f.lastDate = date
	if f.processErr != nil {
		return nil, f.processErr
	}
	return f.result, nil
}

func newTestServer(t *testing.T, p Pipeline) *Server {
	t.Helper()
	s, err := NewServer(p, zap.NewNop(), &Config{
		Host:     "localhost",
		Port:     0,
		Gatherer: prometheus.NewRegistry(),
	})
	require.NoError(t, err)
	return s
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, &fakePipeline{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestStatsEndpoint(t *testing.T) {
	fp := &fakePipeline{stats: pipeline.Stats{
		IsRunning:     true,
		DaysProcessed: 4,
		EventsCreated: 9,
		CacheHitRate:  0.25,
	}}
	s := newTestServer(t, fp)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got pipeline.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.True(t, got.IsRunning)
	assert.Equal(t, uint64(4), got.DaysProcessed)
	assert.Equal(t, uint64(9), got.EventsCreated)
	assert.InDelta(t, 0.25, got.CacheHitRate, 1e-9)
}

func TestProcessEndpoint(t *testing.T) {
	fp := &fakePipeline{result: &model.PipelineResult{
		Events:   []model.FormattedEvent{{Title: "Coffee with Sam"}},
		Tasks:    []model.FormattedTask{{Title: "Send documents"}},
		Rejected: []model.RejectedItem{{Title: "Vague thing"}},
	}}
	s := newTestServer(t, fp)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/process", strings.NewReader(`{"date": "2025-01-02"}`))
	req.Header.Set(echoContentType, echoJSON)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got ProcessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "2025-01-02", got.Day)
	assert.Equal(t, 1, got.Events)
	assert.Equal(t, 1, got.Tasks)
	assert.Equal(t, 1, got.Rejected)
	assert.Equal(t, "2025-01-02", model.DayKey(fp.lastDate))
}

func TestProcessEndpointRejectsBadDate(t *testing.T) {
	s := newTestServer(t, &fakePipeline{result: &model.PipelineResult{}})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/process", strings.NewReader(`{"date": "Jan 2"}`))
	req.Header.Set(echoContentType, echoJSON)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProcessEndpointSurfacesFailure(t *testing.T) {
	s := newTestServer(t, &fakePipeline{processErr: errors.New("spool unreadable")})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/process", strings.NewReader(`{"date": "2025-01-02"}`))
	req.Header.Set(echoContentType, echoJSON)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	_ = pipeline.NewMetrics(reg)
	s, err := NewServer(&fakePipeline{}, zap.NewNop(), &Config{Host: "localhost", Port: 0, Gatherer: reg})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "agendad_days_processed_total")
}

const (
	echoContentType = "Content-Type"
	echoJSON        = "application/json"
)
