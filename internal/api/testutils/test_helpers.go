package testutils

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/rongwang/xmlbank/internal/api"
	"github.com/rongwang/xmlbank/internal/ledger"
	"github.com/rongwang/xmlbank/internal/models"
	"github.com/rongwang/xmlbank/internal/repository"
	"github.com/rongwang/xmlbank/internal/service"
)

// FixedNow is the clock every test store runs on
var FixedNow = time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

// TestContext holds all dependencies for tests
type TestContext struct {
	Router     *gin.Engine
	Repository *repository.MemoryRepository
	Store      *ledger.Store
	Service    service.Service
}

// SetupTestContext creates a new test context on an in-memory repository with a test user
// registered as testuser@example.com / testpassword with a balance of 1000.
func SetupTestContext(t *testing.T) *TestContext {
	// Create repository, store and service
	repo := repository.NewMemoryRepository()
	store := ledger.NewStore(repo, ledger.WithClock(func() time.Time { return FixedNow }))
	svc := service.NewDefaultService(store, repo, service.DefaultSessionKey, 5, nil)

	// Create API handler
	handler := api.NewHandler(svc, nil)

	// Set up Gin router
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// Set up routes
	handler.SetupRoutes(router)

	_, err := svc.SignUp(context.Background(), models.SignUpRequest{
		Name:     "Test User",
		Email:    "testuser@example.com",
		Password: "testpassword",
		Balance:  "1000",
	})
	assert.NoError(t, err, "Failed to create test user")

	return &TestContext{
		Router:     router,
		Repository: repo,
		Store:      store,
		Service:    svc,
	}
}

// PerformRequest executes an HTTP request against the router
func PerformRequest(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer

	if body != nil {
		jsonBody, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBody)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// LoginTestUser logs the default test user in
func LoginTestUser(t *testing.T, r http.Handler) {
	w := PerformRequest(r, http.MethodPost, "/api/auth/login", models.LoginRequest{
		Email:    "testuser@example.com",
		Password: "testpassword",
	})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}
