package testutils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rongwang/unit-roster/internal/api"
	"github.com/rongwang/unit-roster/internal/metrics"
	"github.com/rongwang/unit-roster/internal/models"
	"github.com/rongwang/unit-roster/internal/repository"
	"github.com/rongwang/unit-roster/internal/service"
	"github.com/rongwang/unit-roster/internal/utils"
	"github.com/stretchr/testify/require"
)

const (
	testSecret   = "test-secret-key"
	TestOperator = "operator-1"
)

// TestContext holds all dependencies for tests
type TestContext struct {
	Router      *gin.Engine
	Repository  *repository.MemoryRepository
	Service     service.Service
	Registry    *prometheus.Registry
	JWTSecret   []byte
	OperatorJWT string
}

// SetupTestContext wires the full HTTP stack over an in-memory repository
func SetupTestContext(t *testing.T) *TestContext {
	t.Helper()

	log := utils.NopLogger()
	registry := prometheus.NewRegistry()
	repo := repository.NewMemoryRepository()

	svc := service.NewDefaultService(repo,
		service.WithLogger(log),
		service.WithMetrics(metrics.New(registry)),
	)

	handler := api.NewHandler(svc, log, registry)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(gin.Recovery(), api.RequestLogger(log))
	handler.SetupRoutes(router, api.AuthMiddleware([]byte(testSecret), false))

	token, err := api.IssueToken([]byte(testSecret), TestOperator, time.Hour)
	require.NoError(t, err, "Failed to generate JWT token")

	return &TestContext{
		Router:      router,
		Repository:  repo,
		Service:     svc,
		Registry:    registry,
		JWTSecret:   []byte(testSecret),
		OperatorJWT: token,
	}
}

// SeedSlots imports the slots directly through the service
func (tc *TestContext) SeedSlots(t *testing.T, slots ...models.Slot) {
	t.Helper()
	_, err := tc.Service.ImportSlots(context.Background(), slots)
	require.NoError(t, err, "Failed to seed slots")
}

// SeedPerson registers a person directly through the service
func (tc *TestContext) SeedPerson(t *testing.T, name string) *models.Person {
	t.Helper()
	p, err := tc.Service.RegisterPerson(context.Background(), models.CreatePersonRequest{FullName: name})
	require.NoError(t, err, "Failed to seed person")
	return p
}

// PerformRequest executes an HTTP request against the router
func PerformRequest(r http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer

	if body != nil {
		jsonBody, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBody)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// AuthHeaders returns headers with Authorization token
func AuthHeaders(token string) map[string]string {
	return map[string]string{
		"Authorization": fmt.Sprintf("Bearer %s", token),
	}
}

// Decode unmarshals the recorded response body into v
func Decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), "body: %s", w.Body.String())
}
