package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RateLimit("2-M"))
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	status := func() int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		r.ServeHTTP(w, req)
		return w.Code
	}

	if got := status(); got != http.StatusOK {
		t.Fatalf("first request = %d, want 200", got)
	}
	if got := status(); got != http.StatusOK {
		t.Fatalf("second request = %d, want 200", got)
	}
	if got := status(); got != http.StatusTooManyRequests {
		t.Fatalf("third request = %d, want 429", got)
	}
}
