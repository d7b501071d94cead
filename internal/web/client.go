package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"shlrec/internal/errors"
	"shlrec/internal/types"
)

// Client calls the recommendation API on behalf of the UI
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// apiError mirrors the error payload returned by the API
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// NewClient creates an API client for the UI server
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Recommend submits a query to the API and returns the ranked assessments.
// Non-2xx responses are returned as AppErrors carrying the API's message and
// the HTTP status in context.
func (c *Client) Recommend(ctx context.Context, input types.RecommendInput) (*types.RecommendOutput, error) {
	payload, err := json.Marshal(input)
	if err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeInvalidFormat,
			"Failed to encode recommendation request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/recommend", bytes.NewReader(payload))
	if err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeInvalidRequest,
			"Failed to create recommendation request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewNetworkError(errors.ErrCodeNetworkTimeout,
			"Recommendation API is unreachable", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, c.errorFromResponse(resp)
	}

	var out types.RecommendOutput
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeInvalidFormat,
			"Failed to decode recommendation response", err)
	}
	return &out, nil
}

// errorFromResponse converts an API error payload to an AppError
func (c *Client) errorFromResponse(resp *http.Response) error {
	var payload apiError
	message := fmt.Sprintf("Recommendation API returned status %d", resp.StatusCode)
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Message != "" {
		message = payload.Message
	}

	var appErr *errors.AppError
	switch {
	case resp.StatusCode == http.StatusNotFound:
		appErr = errors.NewValidationError(errors.ErrCodeNoMatches, message, nil)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		appErr = errors.NewValidationError(errors.ErrCodeInvalidRequest, message, nil)
	default:
		appErr = errors.NewNetworkError(errors.ErrCodeEmbeddingFailed, message, nil)
	}
	return appErr.WithContext("status_code", resp.StatusCode)
}
