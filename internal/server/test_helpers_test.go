package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/podium/internal/database"
	"github.com/MarcoPoloResearchLab/podium/internal/voting"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type testEnvironment struct {
	handler    http.Handler
	repository *voting.Repository
	dispatcher *RealtimeDispatcher
}

func newTestEnvironment(t *testing.T) testEnvironment {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.Open(database.Options{
		Driver: database.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "podium.db"),
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql handle: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	repository, err := voting.NewRepository(voting.RepositoryConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	engine, err := voting.NewTallyEngine(voting.TallyEngineConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to create tally engine: %v", err)
	}

	dispatcher := NewRealtimeDispatcher()
	handler, err := NewHTTPHandler(Dependencies{
		Repository:        repository,
		Tallies:           engine,
		Health:            sqlDB,
		Logger:            zap.NewNop(),
		Realtime:          dispatcher,
		HeartbeatInterval: time.Minute,
	})
	if err != nil {
		t.Fatalf("failed to construct http handler: %v", err)
	}
	return testEnvironment{handler: handler, repository: repository, dispatcher: dispatcher}
}

func (env testEnvironment) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	request := httptest.NewRequest(method, path, reader)
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	recorder := httptest.NewRecorder()
	env.handler.ServeHTTP(recorder, request)
	return recorder
}

func decodeBody[T any](t *testing.T, recorder *httptest.ResponseRecorder) T {
	t.Helper()
	var payload T
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response %q: %v", recorder.Body.String(), err)
	}
	return payload
}

func expectStatus(t *testing.T, recorder *httptest.ResponseRecorder, status int) {
	t.Helper()
	if recorder.Code != status {
		t.Fatalf("expected status %d, got %d: %s", status, recorder.Code, recorder.Body.String())
	}
}
