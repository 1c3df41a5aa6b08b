package interpret

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mriview/dicom-api/internal/config"
	"github.com/mriview/dicom-api/internal/middleware"
	"github.com/mriview/dicom-api/internal/repository/memory"
	imagingService "github.com/mriview/dicom-api/internal/service/imaging"
	interpretService "github.com/mriview/dicom-api/internal/service/interpret"
	"github.com/mriview/dicom-api/internal/storage"
)

func newTestRouter(t *testing.T, apiKey string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := storage.NewDiskStore(t.TempDir())
	require.NoError(t, err)
	imgSvc := imagingService.NewService(memory.NewIndex(), store, nil, nil)

	svc := interpretService.NewService(config.InterpretConfig{
		Endpoint:    "http://localhost:0",
		APIKey:      apiKey,
		SampleCount: 5,
		CacheTTL:    time.Minute,
		Timeout:     time.Second,
	}, imgSvc, nil)

	engine := gin.New()
	engine.Use(middleware.ErrorHandler())
	NewHandler(svc).RegisterRoutes(engine.Group("/api/v1"))
	return engine
}

func TestStatusReportsAvailability(t *testing.T) {
	engine := newTestRouter(t, "")

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/interpret/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, false, envelope.Data["available"])
}

func TestInterpretWithoutKeyIs503(t *testing.T) {
	engine := newTestRouter(t, "")

	body := bytes.NewBufferString(`{"context":"follow-up"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/interpret/series/se1", body)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestInterpretUnknownSeriesIs404(t *testing.T) {
	engine := newTestRouter(t, "test-key")

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/interpret/series/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInterpretRejectsBadSampleCount(t *testing.T) {
	engine := newTestRouter(t, "test-key")

	body := bytes.NewBufferString(`{"sample_count": 99}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/interpret/series/se1", body)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
