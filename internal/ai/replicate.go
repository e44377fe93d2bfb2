package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	defaultReplicateBaseURL = "https://api.replicate.com/v1"
	defaultReplicateModel   = "anthropic/claude-4.5-sonnet"
)

// ReplicateProvider runs a model prediction and waits for it to finish.
type ReplicateProvider struct {
	BaseURL  string
	APIToken string
	Model    string // "owner/name"
	Client   *http.Client
}

type replicateInput struct {
	Prompt       string `json:"prompt"`
	SystemPrompt string `json:"system_prompt,omitempty"`
	MaxTokens    int    `json:"max_tokens,omitempty"`
}

type replicatePredictionReq struct {
	Input replicateInput `json:"input"`
}

func NewReplicateProvider(baseURL, apiToken, model string, timeout time.Duration) *ReplicateProvider {
	if baseURL == "" {
		baseURL = defaultReplicateBaseURL
	}
	if model == "" {
		model = defaultReplicateModel
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &ReplicateProvider{
		BaseURL:  baseURL,
		APIToken: apiToken,
		Model:    model,
		Client:   &http.Client{Timeout: timeout},
	}
}

func (p *ReplicateProvider) Complete(ctx context.Context, r Request) (string, error) {
	if p.Client == nil {
		return "", errors.New("replicate: http client is nil")
	}
	if strings.TrimSpace(p.APIToken) == "" {
		return "", errors.New("replicate: api token is required")
	}
	model := strings.Trim(strings.TrimSpace(p.Model), "/")
	if model == "" {
		return "", errors.New("replicate: model is required")
	}

	b, err := json.Marshal(replicatePredictionReq{Input: replicateInput{
		Prompt:       r.Prompt,
		SystemPrompt: r.System,
		MaxTokens:    r.MaxTokens,
	}})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/models/%s/predictions", strings.TrimRight(p.BaseURL, "/"), model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.APIToken)
	req.Header.Set("Prefer", "wait")

	resp, err := p.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if !ok2xx(resp) {
		return "", statusError("replicate", resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return predictionOutput(body)
}

// predictionOutput extracts the generated text. Language models on Replicate
// return either one string or the streamed tokens as an array of strings.
func predictionOutput(body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", errors.New("replicate: response is not valid json")
	}
	status := gjson.GetBytes(body, "status").String()
	if status == "failed" || status == "canceled" {
		return "", fmt.Errorf("replicate: prediction %s: %s", status, gjson.GetBytes(body, "error").String())
	}

	out := gjson.GetBytes(body, "output")
	switch {
	case out.IsArray():
		var b strings.Builder
		for _, part := range out.Array() {
			b.WriteString(part.String())
		}
		return b.String(), nil
	case out.Type == gjson.String:
		return out.String(), nil
	}

	if status == "" {
		status = "unknown"
	}
	return "", fmt.Errorf("replicate: prediction has no output (status %s)", status)
}
