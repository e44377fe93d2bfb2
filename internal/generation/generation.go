// Package generation turns a prompt context into a structured edit set by
// calling the configured model provider.
package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/suPer8Hu/codegen-ide/internal/ai"
	"github.com/suPer8Hu/codegen-ide/internal/prompt"
	"go.uber.org/zap"
)

// ErrFailed wraps every provider-side failure: transport errors, non-2xx
// answers and predictions without output.
var ErrFailed = errors.New("generation failed")

const degradedPrefix = "I generated some code but failed to parse it correctly. Here is the raw output: "

type FileEdit struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

type Result struct {
	Message string     `json:"message"`
	Files   []FileEdit `json:"files"`
}

type Client struct {
	provider  ai.Provider
	maxTokens int
	log       *zap.Logger
}

func NewClient(provider ai.Provider, maxTokens int, log *zap.Logger) *Client {
	if maxTokens <= 0 {
		maxTokens = 4000
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{provider: provider, maxTokens: maxTokens, log: log}
}

// Generate makes one blocking provider call. Output that cannot be parsed is
// not an error; it comes back as a degraded Result.
func (c *Client) Generate(ctx context.Context, pc prompt.Context) (Result, error) {
	raw, err := c.provider.Complete(ctx, ai.Request{
		System:    pc.SystemPrompt(),
		Prompt:    pc.Prompt,
		MaxTokens: c.maxTokens,
	})
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrFailed, err)
	}

	res, err := parse(raw)
	if err != nil {
		c.log.Warn("unparseable generation output",
			zap.Error(err),
			zap.Int("raw_len", len(raw)),
		)
		return degraded(raw), nil
	}
	return res, nil
}

// ParseOutput parses raw model text into a Result, falling back to the
// degraded form when it is not a JSON edit set.
func ParseOutput(raw string) Result {
	res, err := parse(raw)
	if err != nil {
		return degraded(raw)
	}
	return res
}

func degraded(raw string) Result {
	return Result{
		Message: degradedPrefix + strings.TrimSpace(raw),
		Files:   []FileEdit{},
	}
}

var errNotObject = errors.New("output is not a json object")

func parse(raw string) (Result, error) {
	text := StripFence(raw)
	if !strings.HasPrefix(text, "{") {
		return Result{}, errNotObject
	}
	var decoded Result
	if err := json.Unmarshal([]byte(text), &decoded); err != nil {
		return Result{}, err
	}
	files := make([]FileEdit, 0, len(decoded.Files))
	for _, f := range decoded.Files {
		f.Path = strings.TrimSpace(f.Path)
		if f.Path == "" {
			continue
		}
		files = append(files, f)
	}
	decoded.Files = files
	return decoded, nil
}

var fenceOpener = regexp.MustCompile("^```[A-Za-z0-9_+-]*$")

// StripFence removes one markdown code fence wrapped around the whole text.
// Fences inside the payload are left alone, and an opener without a matching
// closer is not stripped.
func StripFence(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	nl := strings.IndexByte(text, '\n')
	if nl < 0 {
		return text
	}
	if !fenceOpener.MatchString(strings.TrimSpace(text[:nl])) {
		return text
	}
	body := strings.TrimRight(text[nl+1:], " \t\r\n")
	if !strings.HasSuffix(body, "```") {
		return text
	}
	return strings.TrimSpace(strings.TrimSuffix(body, "```"))
}
