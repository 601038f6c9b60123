package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/inkpath/backend/internal/accounts"
	"github.com/inkpath/backend/internal/auth"
	"github.com/inkpath/backend/internal/authoring"
	"github.com/inkpath/backend/internal/database"
	"github.com/inkpath/backend/internal/identifier"
	"github.com/inkpath/backend/internal/stories"
	"go.uber.org/zap"
)

const testPassword = "Passw0rd"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testServer struct {
	handler      http.Handler
	clock        *testClock
	accountStore accounts.Store
	storyStore   stories.Store
}

func newTestServer(t *testing.T, logger *zap.Logger) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "server.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	clock := &testClock{now: time.Now().UTC()}
	issuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte("server-test-secret"),
		Issuer:        "inkpath-auth",
		Audience:      "inkpath-api",
		TokenTTL:      time.Hour,
		Clock:         clock.Now,
	})
	if err != nil {
		t.Fatalf("failed to build token issuer: %v", err)
	}

	accountStore := accounts.NewGormStore(db)
	storyStore := stories.NewGormStore(db)
	ids := identifier.NewUUIDProvider()

	accountService, err := accounts.NewService(accounts.ServiceConfig{Store: accountStore, IDProvider: ids, Logger: logger})
	if err != nil {
		t.Fatalf("failed to build account service: %v", err)
	}
	storyService, err := stories.NewService(stories.ServiceConfig{Store: storyStore, Logger: logger})
	if err != nil {
		t.Fatalf("failed to build story service: %v", err)
	}
	authoringService, err := authoring.NewService(authoring.ServiceConfig{
		Accounts:   accountStore,
		Stories:    storyStore,
		IDProvider: ids,
		Logger:     logger,
	})
	if err != nil {
		t.Fatalf("failed to build authoring service: %v", err)
	}

	handler, err := NewHTTPHandler(Dependencies{
		TokenManager: issuer,
		Accounts:     accountService,
		Stories:      storyService,
		Authoring:    authoringService,
		Logger:       logger,
		ExposeStacks: true,
	})
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}
	return &testServer{
		handler:      handler,
		clock:        clock,
		accountStore: accountStore,
		storyStore:   storyStore,
	}
}

func (s *testServer) do(t *testing.T, method string, path string, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	request := httptest.NewRequest(method, path, reader)
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	s.handler.ServeHTTP(recorder, request)
	return recorder
}

func (s *testServer) register(t *testing.T, username string, email string) accounts.Account {
	t.Helper()
	recorder := s.do(t, http.MethodPost, "/api/users", "", map[string]string{
		"username": username,
		"email":    email,
		"password": testPassword,
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("register %s: status %d body %s", username, recorder.Code, recorder.Body.String())
	}
	var account accounts.Account
	decode(t, recorder, &account)
	return account
}

func (s *testServer) login(t *testing.T, email string) loginResponsePayload {
	t.Helper()
	recorder := s.do(t, http.MethodPost, "/api/users/login", "", map[string]string{
		"email":    email,
		"password": testPassword,
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("login %s: status %d body %s", email, recorder.Code, recorder.Body.String())
	}
	var response loginResponsePayload
	decode(t, recorder, &response)
	return response
}

func decode(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to decode body %s: %v", recorder.Body.String(), err)
	}
}

func decodeError(t *testing.T, recorder *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var response errorResponse
	decode(t, recorder, &response)
	return response
}
