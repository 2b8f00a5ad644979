package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ask4sham/letsrevise-attempts/internal/handlers"
	"github.com/ask4sham/letsrevise-attempts/internal/services"
)

// Session is the caller's credentials. It is passed into every request
// instead of being read from shared state.
type Session struct {
	Token     string
	StudentID string
}

// APIError is a non-2xx response decoded from the server's error body.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

func hasCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// IsAttemptNotActive reports whether the server already closed the attempt.
func IsAttemptNotActive(err error) bool {
	return hasCode(err, handlers.CodeAttemptNotActive)
}

func IsSubscriptionRequired(err error) bool {
	return hasCode(err, handlers.CodeSubscriptionRequired)
}

// APIClient talks to the attempt HTTP API.
type APIClient struct {
	baseURL string
	http    *http.Client
}

func NewAPIClient(baseURL string, httpClient *http.Client) *APIClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/") + "/api/v1",
		http:    httpClient,
	}
}

func (c *APIClient) Start(ctx context.Context, s Session, paperID string) (*services.AttemptResponse, error) {
	var out services.AttemptResponse
	if err := c.do(ctx, s, http.MethodPost, "/assessment-attempts/start", &services.StartAttemptRequest{PaperID: paperID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *APIClient) GetInProgress(ctx context.Context, s Session, paperID string) (*services.AttemptResponse, error) {
	var out services.AttemptResponse
	if err := c.do(ctx, s, http.MethodGet, "/assessment-attempts/in-progress/"+url.PathEscape(paperID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *APIClient) GetPaper(ctx context.Context, s Session, paperID string) (*services.PaperView, error) {
	var out services.PaperView
	if err := c.do(ctx, s, http.MethodGet, "/assessment-papers/"+url.PathEscape(paperID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *APIClient) RecordAnswer(ctx context.Context, s Session, attemptID string, req *services.RecordAnswerRequest) (*services.AckResponse, error) {
	var out services.AckResponse
	if err := c.do(ctx, s, http.MethodPut, "/assessment-attempts/"+url.PathEscape(attemptID)+"/answers", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *APIClient) Heartbeat(ctx context.Context, s Session, attemptID string, req *services.HeartbeatRequest) (*services.AckResponse, error) {
	var out services.AckResponse
	if err := c.do(ctx, s, http.MethodPost, "/assessment-attempts/"+url.PathEscape(attemptID)+"/heartbeat", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *APIClient) Submit(ctx context.Context, s Session, attemptID string, req *services.SubmitAttemptRequest) (*services.AttemptResponse, error) {
	var out services.AttemptResponse
	if err := c.do(ctx, s, http.MethodPost, "/assessment-attempts/"+url.PathEscape(attemptID)+"/submit", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *APIClient) Results(ctx context.Context, s Session, attemptID string) (*services.ResultsResponse, error) {
	var out services.ResultsResponse
	if err := c.do(ctx, s, http.MethodGet, "/assessment-attempts/"+url.PathEscape(attemptID)+"/results", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *APIClient) do(ctx context.Context, s Session, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var errBody handlers.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		if errBody.Message == "" {
			errBody.Message = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Code: errBody.Code, Message: errBody.Message}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
