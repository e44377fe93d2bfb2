package ai

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Request is one blocking completion call.
type Request struct {
	System    string
	Prompt    string
	MaxTokens int
}

type Provider interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// StatusError is returned when the remote endpoint answers with a non-2xx
// status. Body holds the start of the response body.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	msg := e.Body
	if msg == "" {
		msg = fmt.Sprintf("status %d", e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Provider, msg)
}

func statusError(provider string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
	return &StatusError{
		Provider:   provider,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}

func ok2xx(resp *http.Response) bool {
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
