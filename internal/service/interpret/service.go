// Package interpret generates narrative readings of a slice series by
// sampling rendered frames and sending them to a vision model. Results are
// cached per series so repeated polls do not re-bill the upstream API.
package interpret

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"

	"github.com/mriview/dicom-api/internal/config"
	"github.com/mriview/dicom-api/internal/model"
	"github.com/mriview/dicom-api/internal/service/imaging"
	apperrors "github.com/mriview/dicom-api/pkg/errors"
	"github.com/mriview/dicom-api/pkg/metrics"
)

const disclaimer = "Educational/research use only. Not for clinical decisions."

const systemPrompt = `You are a medical imaging AI assistant. Provide CONCISE interpretations.

IMPORTANT: This is for educational/research purposes only, NOT clinical use.

Response format (be brief, use bullet points):

**CRITICAL FINDINGS** (if any)
- List urgent/abnormal findings first
- Be specific: location, size, characteristics

**NORMAL STRUCTURES**
- List organs/structures that appear normal
- Keep each item to one line

**IMAGE QUALITY**
- Brief note on quality/limitations

Keep total response under 300 words. Be direct and clinical.`

type Service struct {
	cfg     config.InterpretConfig
	imaging *imaging.Service
	client  *http.Client
	cache   *gocache.Cache
	metrics *metrics.Metrics
}

func NewService(cfg config.InterpretConfig, imagingSvc *imaging.Service, m *metrics.Metrics) *Service {
	return &Service{
		cfg:     cfg,
		imaging: imagingSvc,
		client:  &http.Client{Timeout: cfg.Timeout},
		cache:   gocache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
		metrics: m,
	}
}

// Available reports whether the upstream model is configured.
func (s *Service) Available() bool {
	return s.cfg.APIKey != ""
}

// InterpretSeries renders a sampled subset of the series and asks the model
// for a reading. A cached result is returned unless refresh is set.
func (s *Service) InterpretSeries(ctx context.Context, seriesID string, req *model.InterpretRequest) (*model.Interpretation, error) {
	if req.Refresh {
		s.cache.Delete(seriesID)
	} else if cached, ok := s.cache.Get(seriesID); ok {
		result := *cached.(*model.Interpretation)
		result.FromCache = true
		if s.metrics != nil {
			s.metrics.InterpretCacheHits.Inc()
			s.metrics.InterpretRequests.WithLabelValues("cache").Inc()
		}
		return &result, nil
	}

	if !s.Available() {
		s.count("unavailable")
		return nil, apperrors.Unavailable("interpretation service not configured, set ANTHROPIC_API_KEY", nil)
	}

	slices := s.imaging.ListSlices(ctx, seriesID)
	if len(slices) == 0 {
		s.count("not_found")
		return nil, apperrors.NotFound("series", nil)
	}

	images := s.renderSample(ctx, slices, s.sampleCount(req))
	if len(images) == 0 {
		s.count("no_images")
		return nil, apperrors.Unprocessable("no renderable slices in series", nil)
	}

	result, err := s.callModel(ctx, images, req)
	if err != nil {
		s.count("error")
		return nil, err
	}

	s.cache.SetDefault(seriesID, result)
	s.count("ok")
	return result, nil
}

func (s *Service) sampleCount(req *model.InterpretRequest) int {
	if req != nil && req.SampleCount > 0 {
		return req.SampleCount
	}
	return s.cfg.SampleCount
}

// renderSample renders up to count evenly spaced slices as base64 PNGs.
// Slices that fail to render are skipped so one corrupt file does not sink
// the whole reading.
func (s *Service) renderSample(ctx context.Context, slices []*model.Slice, count int) []string {
	picked := sampleSlices(slices, count)

	images := make([]string, 0, len(picked))
	for _, sl := range picked {
		b64, err := s.imaging.RenderBase64(ctx, sl.ID, model.FormatPNG, nil)
		if err != nil {
			log.Warn().Err(err).Str("slice_id", sl.ID).Msg("skipping unrenderable slice in interpretation sample")
			continue
		}
		images = append(images, b64)
	}
	return images
}

// sampleSlices picks count evenly spaced slices, endpoints included.
func sampleSlices(slices []*model.Slice, count int) []*model.Slice {
	if len(slices) <= count || count <= 1 {
		return slices
	}
	picked := make([]*model.Slice, 0, count)
	for i := 0; i < count; i++ {
		picked = append(picked, slices[i*(len(slices)-1)/(count-1)])
	}
	return picked
}

type contentBlock struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *imageSource `json:"source,omitempty"`
}

type imageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type apiRequest struct {
	Model     string `json:"model"`
	MaxTokens int    `json:"max_tokens"`
	System    string `json:"system"`
	Messages  []struct {
		Role    string         `json:"role"`
		Content []contentBlock `json:"content"`
	} `json:"messages"`
}

type apiResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (s *Service) callModel(ctx context.Context, images []string, req *model.InterpretRequest) (*model.Interpretation, error) {
	modality := "MRI"
	clinicalContext := ""
	if req != nil {
		if req.Modality != "" {
			modality = req.Modality
		}
		clinicalContext = req.Context
	}

	content := make([]contentBlock, 0, len(images)+2)
	if clinicalContext != "" {
		content = append(content, contentBlock{Type: "text", Text: "Clinical context: " + clinicalContext})
	}
	content = append(content, contentBlock{
		Type: "text",
		Text: fmt.Sprintf("Analyze this %s image. List critical findings first, then normal structures.", modality),
	})
	for _, img := range images {
		content = append(content, contentBlock{
			Type:   "image",
			Source: &imageSource{Type: "base64", MediaType: "image/png", Data: img},
		})
	}

	body := apiRequest{
		Model:     s.cfg.Model,
		MaxTokens: s.cfg.MaxTokens,
		System:    systemPrompt,
	}
	body.Messages = append(body.Messages, struct {
		Role    string         `json:"role"`
		Content []contentBlock `json:"content"`
	}{Role: "user", Content: content})

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("marshal interpretation request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("build interpretation request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", s.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, apperrors.Unavailable("interpretation service unreachable", err)
	}
	defer resp.Body.Close()

	var parsed apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, apperrors.Unavailable("interpretation service returned malformed response", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("interpretation service returned status %d", resp.StatusCode)
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return nil, apperrors.Unavailable(msg, nil)
	}

	var text bytes.Buffer
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return &model.Interpretation{
		Success:        true,
		Interpretation: text.String(),
		Model:          parsed.Model,
		Usage: model.TokenUsage{
			InputTokens:  parsed.Usage.InputTokens,
			OutputTokens: parsed.Usage.OutputTokens,
		},
		Disclaimer:  disclaimer,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}, nil
}

func (s *Service) count(status string) {
	if s.metrics != nil {
		s.metrics.InterpretRequests.WithLabelValues(status).Inc()
	}
}
