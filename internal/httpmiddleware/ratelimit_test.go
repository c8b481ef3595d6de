package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(l *TokenBucket) *gin.Engine {
	r := gin.New()
	r.Use(l.GinMiddleware())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func hit(r *gin.Engine, sid string) int {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	if sid != "" {
		req.Header.Set("X-Session", sid)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestTokenBucketKeysBySessionThenIP(t *testing.T) {
	l := NewTokenBucket(2, 2, func(c *gin.Context) string { return c.GetHeader("X-Session") })
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	r := newRouter(l)

	assert.Equal(t, http.StatusOK, hit(r, "a"))
	assert.Equal(t, http.StatusOK, hit(r, "a"))
	assert.Equal(t, http.StatusTooManyRequests, hit(r, "a"))

	// separate buckets for another session and for anonymous callers
	assert.Equal(t, http.StatusOK, hit(r, "b"))
	assert.Equal(t, http.StatusOK, hit(r, ""))

	now = now.Add(time.Minute)
	assert.Equal(t, http.StatusOK, hit(r, "a"))
}

func TestTokenBucketDisabled(t *testing.T) {
	r := newRouter(NewTokenBucket(0, 0, nil))
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, hit(r, ""))
	}
}

func TestTokenBucketSweep(t *testing.T) {
	l := NewTokenBucket(1, 1, nil)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	l.allow("old")
	now = now.Add(time.Hour)
	l.allow("new")
	assert.Equal(t, 1, l.Sweep(30*time.Minute))
}
