package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	apperrors "github.com/mriview/dicom-api/pkg/errors"
)

func serve(engine *gin.Engine, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestStatusFromError(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, StatusFromError(apperrors.NotFound("slice", nil)))
	assert.Equal(t, http.StatusBadRequest, StatusFromError(apperrors.BadRequest("bad", nil)))
	assert.Equal(t, http.StatusUnprocessableEntity, StatusFromError(apperrors.Unprocessable("pixels", nil)))
	assert.Equal(t, http.StatusServiceUnavailable, StatusFromError(apperrors.Unavailable("api", nil)))
	assert.Equal(t, http.StatusInternalServerError, StatusFromError(assert.AnError))
}

func TestErrorHandlerMapsDomainErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(ErrorHandler())
	engine.GET("/boom", func(c *gin.Context) {
		c.Error(apperrors.NotFound("slice", nil))
	})

	rec := serve(engine, http.MethodGet, "/boom")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "slice not found")
}

func TestCacheHeaderOnGET(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/img", Cache(3600), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	rec := serve(engine, http.MethodGet, "/img")
	assert.Equal(t, "public, max-age=3600", rec.Header().Get("Cache-Control"))
}

func TestRequestIDGeneratedAndEchoed(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(RequestID())
	engine.GET("/", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	rec := serve(engine, http.MethodGet, "/")
	assert.NotEmpty(t, rec.Header().Get(HeaderXRequestID))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderXRequestID, "fixed-id")
	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	assert.Equal(t, "fixed-id", rec.Header().Get(HeaderXRequestID))
}

func TestRateLimitRejectsBurstOverflow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	limiter := NewRateLimiter(RateLimiterConfig{RPS: 1, Burst: 2})
	engine.Use(limiter.RateLimit())
	engine.GET("/", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/").Code)
	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(engine, http.MethodGet, "/").Code)
}

func TestCORSPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(CORS(DefaultCORSConfig([]string{"http://localhost:5173"})))
	engine.GET("/", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}
