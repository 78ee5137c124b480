// Package client is a Go SDK for the caseprep HTTP API.
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
	"strconv"
	"strings"
	"time"

	"github.com/terra-clan/caseprep/internal/models"
)

// Client is a Go SDK for the caseprep API
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new caseprep client
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError is returned when the server answers with an error envelope
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s - %s", e.StatusCode, e.Code, e.Message)
}

// IsNotFound reports whether err is a 404 from the API
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

type envelope[T any] struct {
	Success bool `json:"success"`
	Data    T    `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// CreateSession creates an interview session for a case
func (c *Client) CreateSession(ctx context.Context, caseID string, mode models.InterviewMode) (*models.CreateSessionResponse, error) {
	req := models.CreateSessionRequest{CaseID: caseID, Mode: string(mode)}
	var resp models.CreateSessionResponse
	if err := c.call(ctx, http.MethodPost, "/api/v1/sessions", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetSession returns a session by ID
func (c *Client) GetSession(ctx context.Context, id string) (*models.InterviewSession, error) {
	var resp models.InterviewSession
	if err := c.call(ctx, http.MethodGet, "/api/v1/sessions/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListSessions returns sessions, optionally filtered by status and case
func (c *Client) ListSessions(ctx context.Context, filters models.SessionFilters) ([]*models.InterviewSession, error) {
	q := url.Values{}
	if filters.Status != "" {
		q.Set("status", string(filters.Status))
	}
	if filters.CaseID != "" {
		q.Set("case_id", filters.CaseID)
	}
	if filters.Limit > 0 {
		q.Set("limit", strconv.Itoa(filters.Limit))
	}
	if filters.Offset > 0 {
		q.Set("offset", strconv.Itoa(filters.Offset))
	}

	var resp struct {
		Sessions []*models.InterviewSession `json:"sessions"`
	}
	if err := c.call(ctx, http.MethodGet, withQuery("/api/v1/sessions", q), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Sessions, nil
}

// DeleteSession deletes a session and its chat log
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, "/api/v1/sessions/"+url.PathEscape(id), nil, nil)
}

// GetMessages returns the chat log of a session
func (c *Client) GetMessages(ctx context.Context, id string) ([]models.Message, error) {
	var resp struct {
		Messages []models.Message `json:"messages"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/v1/sessions/"+url.PathEscape(id)+"/messages", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// Evaluate scores a completed session and returns the evaluation with coaching
func (c *Client) Evaluate(ctx context.Context, id string) (*models.EvaluationResponse, error) {
	var resp models.EvaluationResponse
	if err := c.call(ctx, http.MethodPost, "/api/v1/sessions/"+url.PathEscape(id)+"/evaluate", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetEvaluation returns the stored evaluation of a session
func (c *Client) GetEvaluation(ctx context.Context, id string) (*models.EvaluationResponse, error) {
	var resp models.EvaluationResponse
	if err := c.call(ctx, http.MethodGet, "/api/v1/sessions/"+url.PathEscape(id)+"/evaluation", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListCases returns case summaries, optionally narrowed to one case type
func (c *Client) ListCases(ctx context.Context, caseType models.CaseType) ([]models.CaseSummary, error) {
	q := url.Values{}
	if caseType != "" {
		q.Set("case_type", string(caseType))
	}

	var resp struct {
		Cases []models.CaseSummary `json:"cases"`
	}
	if err := c.call(ctx, http.MethodGet, withQuery("/api/v1/cases", q), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Cases, nil
}

// GetCase returns a full case by ID
func (c *Client) GetCase(ctx context.Context, id string) (*models.Case, error) {
	var resp models.Case
	if err := c.call(ctx, http.MethodGet, "/api/v1/cases/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateCase imports a case
func (c *Client) CreateCase(ctx context.Context, req models.CreateCaseRequest) (*models.Case, error) {
	var resp models.Case
	if err := c.call(ctx, http.MethodPost, "/api/v1/cases", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Join returns the public view of a session by its join token
func (c *Client) Join(ctx context.Context, token string) (*models.JoinSessionResponse, error) {
	var resp models.JoinSessionResponse
	if err := c.call(ctx, http.MethodGet, "/api/v1/join/"+url.PathEscape(token), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health checks if the service is healthy
func (c *Client) Health(ctx context.Context) error {
	_, err := c.doRequest(ctx, http.MethodGet, "/health", nil)
	return err
}

// call sends body as JSON and decodes the envelope data into out (when non-nil)
func (c *Client) call(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	respBody, err := c.doRequest(ctx, method, path, reader)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}

	var result envelope[json.RawMessage]
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if err := json.Unmarshal(result.Data, out); err != nil {
		return fmt.Errorf("failed to unmarshal response data: %w", err)
	}
	return nil
}

// doRequest performs an HTTP request
func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
		var result envelope[json.RawMessage]
		if json.Unmarshal(respBody, &result) == nil && result.Error != nil {
			apiErr.Code = result.Error.Code
			apiErr.Message = result.Error.Message
		}
		return nil, apiErr
	}

	return respBody, nil
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}
