package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestCORSMiddlewareAllowsDeletePreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(corsMiddleware())
	router.OPTIONS("/categories/Music", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	request := httptest.NewRequest(http.MethodOptions, "/categories/Music", http.NoBody)
	request.Header.Set("Origin", "https://vote.example.com")
	request.Header.Set("Access-Control-Request-Method", http.MethodDelete)
	request.Header.Set("Access-Control-Request-Headers", requestIDHeader)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, recorder.Code)
	}

	allowMethods := recorder.Header().Get("Access-Control-Allow-Methods")
	if !strings.Contains(allowMethods, http.MethodDelete) {
		t.Fatalf("expected Access-Control-Allow-Methods to include DELETE, got %q", allowMethods)
	}
	allowHeaders := recorder.Header().Get("Access-Control-Allow-Headers")
	if !strings.Contains(strings.ToLower(allowHeaders), strings.ToLower(requestIDHeader)) {
		t.Fatalf("expected Access-Control-Allow-Headers to include %s, got %q", requestIDHeader, allowHeaders)
	}
}

func TestRequestIDMiddlewareIssuesAndPropagates(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(requestIDMiddleware())
	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(requestIDContextKey))
	})

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/ping", http.NoBody))
	issued := recorder.Header().Get(requestIDHeader)
	if issued == "" || recorder.Body.String() != issued {
		t.Fatalf("expected issued request id to be echoed, header %q body %q", issued, recorder.Body.String())
	}

	request := httptest.NewRequest(http.MethodGet, "/ping", http.NoBody)
	request.Header.Set(requestIDHeader, "caller-42")
	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	if recorder.Header().Get(requestIDHeader) != "caller-42" {
		t.Fatalf("expected caller request id to propagate, got %q", recorder.Header().Get(requestIDHeader))
	}
}
