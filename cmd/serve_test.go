package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/kpi-screener/internal/model"
)

func validRequestJSON() string {
	return `{
		"name": "test",
		"groups": [{
			"kpis": [{
				"kpi": "revenue",
				"methods": [{
					"kind": "absolute",
					"absolute": {"operator": ">", "threshold": 0},
					"duration": {"type": "last_n", "last_n": 4, "frequency": "quarterly"}
				}]
			}]
		}]
	}`
}

func TestRouter_Health(t *testing.T) {
	router := newRouter(nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRouter_Screen(t *testing.T) {
	var gotName string
	router := newRouter(func(ctx context.Context, req *model.ScreeningRequest) (*model.ScreeningResult, error) {
		gotName = req.Name
		return &model.ScreeningResult{
			RunID:     "run-1",
			Request:   req.Name,
			Processed: 10,
			Passed:    []int{3, 7},
		}, nil
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/screen", strings.NewReader(validRequestJSON())))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test", gotName)

	var result model.ScreeningResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "run-1", result.RunID)
	assert.Equal(t, []int{3, 7}, result.Passed)
}

func TestRouter_Screen_BadBody(t *testing.T) {
	router := newRouter(nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/screen", strings.NewReader("{not json")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_Screen_InvalidRequest(t *testing.T) {
	router := newRouter(nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/screen", strings.NewReader(`{"groups":[]}`)))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "no filter groups")
}

func TestRouter_Screen_RunnerError(t *testing.T) {
	router := newRouter(func(ctx context.Context, req *model.ScreeningRequest) (*model.ScreeningResult, error) {
		return nil, errors.New("provider down")
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/screen", strings.NewReader(validRequestJSON())))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "screening failed")
}
