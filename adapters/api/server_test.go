package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ramplab/app"
	"ramplab/domain/analysis"
	"ramplab/internal/config"
	"ramplab/internal/testkit"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	return NewServer(app.NewAnalysisService(nil), nil, config.DefaultAnalysis(), nil)
}

func postSession(t *testing.T, srv *Server, path string, spec testkit.SessionSpec) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(sessionRequest{Session: testkit.StepSession(spec)})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func analyzableSpec() testkit.SessionSpec {
	return testkit.SessionSpec{
		Steps: []testkit.StepSpec{
			{PowerW: 100, DurationS: 80},
			{PowerW: 150, DurationS: 80},
			{PowerW: 200, DurationS: 80},
			{PowerW: 250, DurationS: 80},
			{PowerW: 300, DurationS: 80},
		},
		VEBreakW:    220,
		WithCadence: true,
		Seed:        9,
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, analysis.AlgorithmVersion, body["version"])
}

func TestValidateEndpoint(t *testing.T) {
	srv := testServer(t)

	rec := postSession(t, srv, "/api/sessions/validate", analyzableSpec())
	require.Equal(t, http.StatusOK, rec.Code)

	var report analysis.ValidationReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.True(t, report.Passed)
}

func TestAnalyzeEndpoint(t *testing.T) {
	srv := testServer(t)

	rec := postSession(t, srv, "/api/sessions/analyze", analyzableSpec())
	require.Equal(t, http.StatusOK, rec.Code)

	var result analysis.AnalysisResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Validation.Passed)
	assert.NotEmpty(t, result.ID)
}

func TestAnalyzeEndpointRejectsEmptyBody(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/analyze", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFitCPEndpoint(t *testing.T) {
	srv := testServer(t)

	body, err := json.Marshal(fitRequest{
		Efforts: testkit.HyperbolicEfforts(250, 20000, []float64{180, 300, 600, 1200}),
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/cp/fit", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var result analysis.CPModelResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.InDelta(t, 250, result.CP, 0.01)
}

func TestFitCPEndpointTooFewEfforts(t *testing.T) {
	srv := testServer(t)

	body, err := json.Marshal(fitRequest{Efforts: []analysis.Effort{{DurationS: 300, PowerW: 300}}})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/cp/fit", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestGetAnalysisWithoutStorage(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/analyses/some-id", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
