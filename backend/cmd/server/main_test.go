package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"meeting-graph/backend/internal/api"
	"meeting-graph/backend/internal/services"
	"meeting-graph/backend/pkg/config"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Port:                "0",
		Env:                 "test",
		DataDir:             t.TempDir(),
		SimilarityThreshold: 0.95,
		AmbiguityEpsilon:    0.01,
		TokenBudget:         512,
		Tokenizer:           "approx",
		IngestWorkers:       2,
	}
}

func TestHealthEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sm, err := services.NewServiceManager(context.Background(), testConfig(t), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer sm.Shutdown(context.Background())

	router := api.NewRouter(sm.APIDeps())

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "ok", response["status"])
}

func TestIngestEndpoint_InvalidRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sm, err := services.NewServiceManager(context.Background(), testConfig(t), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer sm.Shutdown(context.Background())

	router := api.NewRouter(sm.APIDeps())

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/ingest", nil)
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
