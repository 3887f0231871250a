package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/http/httputil"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func newTestGateway(services map[string]string) *Gateway {
	return &Gateway{
		proxies:  make(map[string]*httputil.ReverseProxy),
		services: services,
		fallback: make(map[string]string),
	}
}

func TestHealthCheckAggregatesServiceStatuses(t *testing.T) {
	gin.SetMode(gin.TestMode)

	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer down.Close()

	g := newTestGateway(map[string]string{
		"product-service": healthy.URL,
		"order-service":   down.URL,
	})

	router := gin.New()
	router.GET("/health", g.HealthCheck)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status: want 200, got %d", w.Code)
	}

	var resp struct {
		Status   string            `json:"status"`
		Services map[string]string `json:"services"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response: %v", err)
	}
	if resp.Status != "degraded" {
		t.Fatalf("one unhealthy service must degrade the gateway, got %q", resp.Status)
	}
	if resp.Services["product-service"] != "healthy" || resp.Services["order-service"] != "unhealthy" {
		t.Fatalf("wrong per-service statuses: %v", resp.Services)
	}
}

func TestHealthCheckDoesNotBlockRouteUpdates(t *testing.T) {
	gin.SetMode(gin.TestMode)

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(1 * time.Second)
		w.WriteHeader(http.StatusOK)
	}))
	defer slow.Close()

	g := newTestGateway(map[string]string{"product-service": slow.URL})

	router := gin.New()
	router.GET("/health", g.HealthCheck)

	probing := make(chan struct{})
	go func() {
		close(probing)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	}()
	<-probing
	time.Sleep(50 * time.Millisecond) // let the probe start and hit the slow endpoint

	updated := make(chan struct{})
	go func() {
		g.updateProxy("order-service", "http://localhost:9999")
		close(updated)
	}()

	select {
	case <-updated:
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("route update blocked behind an in-flight health probe")
	}
}
