package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurobako-go/kurobako/pkg/benchmark"
	"github.com/kurobako-go/kurobako/pkg/ranking"
	"github.com/kurobako-go/kurobako/pkg/record"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func sampleReport(t *testing.T) benchmark.Report {
	t.Helper()
	rec := record.StudyRecord{
		Budget:      10,
		Concurrency: 1,
		StartTime:   time.Unix(0, 0).UTC(),
		EndTime:     time.Unix(1, 0).UTC(),
	}
	return benchmark.Report{
		RunId: "test-run",
		Studies: map[ranking.ProblemId]map[ranking.SolverId][]record.StudyRecord{
			"sphere": {"random": {rec}},
		},
		Ranking: ranking.Result{
			Borda:  map[ranking.SolverId]int{"random": 0},
			Firsts: map[ranking.SolverId]int{"random": 1},
		},
	}
}

func TestServer_HealthEndpoint(t *testing.T) {
	srv, err := NewServer(sampleReport(t))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_ReportEndpoint(t *testing.T) {
	srv, err := NewServer(sampleReport(t))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/report", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body ReportResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "test-run", body.RunId)
	assert.Equal(t, 1, body.Firsts["random"])
}

func TestServer_StudyEndpoint(t *testing.T) {
	report := sampleReport(t)
	srv, err := NewServer(report)
	require.NoError(t, err)

	var id string
	for _, bySolver := range report.Studies {
		for _, recs := range bySolver {
			id, err = recs[0].Id()
			require.NoError(t, err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/studies/"+id, nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/studies/does-not-exist", nil)
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
