package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// cloudAdapter invokes a per-input embedding endpoint (no batching at the
// wire level) and collapses the results into the batch contract, per
// spec §4.3.
type cloudAdapter struct {
	cfg    Config
	client *http.Client
}

func newCloudAdapter(cfg Config) *cloudAdapter {
	return &cloudAdapter{cfg: cfg, client: &http.Client{}}
}

type cloudEmbedRequest struct {
	InputText  string `json:"inputText"`
	Dimensions int    `json:"dimensions"`
}

type cloudEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (a *cloudAdapter) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := a.embedOne(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed: cloud backend input %d: %w", i, err)
		}
		results[i] = vec
	}
	return results, nil
}

func (a *cloudAdapter) embedOne(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(cloudEmbedRequest{InputText: text, Dimensions: a.cfg.Dimensions})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("backend returned %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed cloudEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return parsed.Embedding, nil
}

// endpoint derives the invocation URL from the model, region, and profile
// fields of the configuration record.
func (a *cloudAdapter) endpoint() string {
	if a.cfg.BaseURL != "" {
		return a.cfg.BaseURL
	}
	region := a.cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	return fmt.Sprintf("https://bedrock-runtime.%s.amazonaws.com/model/%s/invoke", region, a.cfg.Model)
}

func (a *cloudAdapter) Dimensions() int            { return a.cfg.Dimensions }
func (a *cloudAdapter) ModelID() string             { return a.cfg.Model }
func (a *cloudAdapter) ProviderType() ProviderType { return ProviderCloud }

func (a *cloudAdapter) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	_, err := a.embedOne(ctx, "health check")
	return err
}
