package interpret

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mriview/dicom-api/internal/config"
	"github.com/mriview/dicom-api/internal/model"
	"github.com/mriview/dicom-api/internal/repository/memory"
	"github.com/mriview/dicom-api/internal/service/imaging"
	"github.com/mriview/dicom-api/internal/storage"
	apperrors "github.com/mriview/dicom-api/pkg/errors"
)

func newImagingService(t *testing.T) *imaging.Service {
	t.Helper()
	store, err := storage.NewDiskStore(t.TempDir())
	require.NoError(t, err)
	return imaging.NewService(memory.NewIndex(), store, nil, nil)
}

func testConfig(endpoint string) config.InterpretConfig {
	return config.InterpretConfig{
		Endpoint:    endpoint,
		APIKey:      "test-key",
		Model:       "claude-sonnet-4-20250514",
		MaxTokens:   1024,
		SampleCount: 5,
		CacheTTL:    time.Minute,
		Timeout:     5 * time.Second,
	}
}

func TestInterpretSeriesUnavailableWithoutKey(t *testing.T) {
	cfg := testConfig("http://localhost:0")
	cfg.APIKey = ""
	svc := NewService(cfg, newImagingService(t), nil)

	assert.False(t, svc.Available())

	_, err := svc.InterpretSeries(context.Background(), "se1", &model.InterpretRequest{})
	require.Error(t, err)
	var ae *apperrors.AppError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, apperrors.ErrUnavailable, ae.Code)
}

func TestInterpretSeriesUnknownSeries(t *testing.T) {
	svc := NewService(testConfig("http://localhost:0"), newImagingService(t), nil)

	_, err := svc.InterpretSeries(context.Background(), "nope", &model.InterpretRequest{})
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestInterpretSeriesNoRenderableSlices(t *testing.T) {
	img := newImagingService(t)
	sl, err := img.Resolve(context.Background(), []byte("garbage"), "a.dcm", "PatientA/Brain/a.dcm")
	require.NoError(t, err)

	svc := NewService(testConfig("http://localhost:0"), img, nil)
	_, err = svc.InterpretSeries(context.Background(), sl.SeriesID, &model.InterpretRequest{})
	require.Error(t, err)
	assert.True(t, apperrors.IsUnprocessable(err))
}

func TestSampleIndicesEvenlySpaced(t *testing.T) {
	slices := make([]*model.Slice, 10)
	for i := range slices {
		slices[i] = &model.Slice{ID: string(rune('a' + i))}
	}

	assert.Equal(t, []string{"a", "c", "e", "g", "j"}, ids(sampleSlices(slices, 5)))
	assert.Equal(t, []string{"a", "b", "c"}, ids(sampleSlices(slices[:3], 5)))
	assert.Equal(t, []string{"a", "j"}, ids(sampleSlices(slices, 2)))
}

func ids(slices []*model.Slice) []string {
	out := make([]string, len(slices))
	for i, sl := range slices {
		out[i] = sl.ID
	}
	return out
}

func TestCallModelParsesResponse(t *testing.T) {
	var gotReq map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"model": "claude-sonnet-4-20250514",
			"content": []map[string]string{
				{"type": "text", "text": "**NORMAL STRUCTURES**\n- brain parenchyma"},
			},
			"usage": map[string]int{"input_tokens": 10, "output_tokens": 20},
		})
	}))
	defer server.Close()

	svc := NewService(testConfig(server.URL), newImagingService(t), nil)

	result, err := svc.callModel(context.Background(), []string{"aW1hZ2U="}, &model.InterpretRequest{Context: "headache workup"})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Contains(t, result.Interpretation, "NORMAL STRUCTURES")
	assert.Equal(t, 10, result.Usage.InputTokens)
	assert.False(t, result.FromCache)
	assert.NotEmpty(t, result.Disclaimer)

	assert.Equal(t, "claude-sonnet-4-20250514", gotReq["model"])
	messages := gotReq["messages"].([]interface{})
	content := messages[0].(map[string]interface{})["content"].([]interface{})
	// context text, analyze text, one image block
	require.Len(t, content, 3)
	assert.Equal(t, "image", content[2].(map[string]interface{})["type"])
}

func TestCallModelUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{"message": "rate limited"},
		})
	}))
	defer server.Close()

	svc := NewService(testConfig(server.URL), newImagingService(t), nil)

	_, err := svc.callModel(context.Background(), []string{"aW1hZ2U="}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestInterpretCacheRoundTrip(t *testing.T) {
	svc := NewService(testConfig("http://localhost:0"), newImagingService(t), nil)

	svc.cache.SetDefault("se1", &model.Interpretation{Success: true, Interpretation: "cached reading"})

	result, err := svc.InterpretSeries(context.Background(), "se1", &model.InterpretRequest{})
	require.NoError(t, err)
	assert.True(t, result.FromCache)
	assert.Equal(t, "cached reading", result.Interpretation)

	// Refresh busts the cache; with no slices behind the id the call now
	// falls through to a not-found.
	_, err = svc.InterpretSeries(context.Background(), "se1", &model.InterpretRequest{Refresh: true})
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}
