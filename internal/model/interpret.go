package model

// InterpretRequest asks for an AI summary of a series. SampleCount bounds
// how many slices are rendered and sent; Refresh busts the per-series cache.
type InterpretRequest struct {
	Context     string `json:"context"`
	Modality    string `json:"modality"`
	SampleCount int    `json:"sample_count" binding:"omitempty,min=1,max=20"`
	Refresh     bool   `json:"refresh"`
}

// TokenUsage mirrors the inference API's reported consumption.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Interpretation is the cached result of one series summary call.
type Interpretation struct {
	Success        bool       `json:"success"`
	Interpretation string     `json:"interpretation,omitempty"`
	Model          string     `json:"model,omitempty"`
	Usage          TokenUsage `json:"usage"`
	Disclaimer     string     `json:"disclaimer,omitempty"`
	FromCache      bool       `json:"from_cache"`
	GeneratedAt    string     `json:"generated_at,omitempty"`
	Error          string     `json:"error,omitempty"`
}
