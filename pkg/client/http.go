package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"
)

// ClassifierClient provides a client interface for the classification API
type ClassifierClient interface {
	Predict(ctx context.Context, filename, contentType string, image []byte) (*PredictResponse, error)
	SubmitFeedback(ctx context.Context, req FeedbackRequest) (*FeedbackResponse, error)
	FeedbackStats(ctx context.Context) (*FeedbackStats, error)
	Health(ctx context.Context) (*HealthStatus, error)
	Info(ctx context.Context) (*ModelInfo, error)
}

var _ ClassifierClient = (*HTTPClient)(nil)

// HTTPClient implements ClassifierClient over the JSON/multipart API
type HTTPClient struct {
	baseURL       string
	httpClient    *http.Client
	apiToken      string
	feedbackToken string
}

type Option func(*HTTPClient)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) { c.httpClient = hc }
}

// WithAPIToken sets the bearer token sent to /api/predict
func WithAPIToken(token string) Option {
	return func(c *HTTPClient) { c.apiToken = token }
}

// WithFeedbackToken sets the bearer token sent to /api/feedback
func WithFeedbackToken(token string) Option {
	return func(c *HTTPClient) { c.feedbackToken = token }
}

func NewHTTPClient(baseURL string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *HTTPClient) Predict(ctx context.Context, filename, contentType string, image []byte) (*PredictResponse, error) {
	body, formType, err := multipartBody(filename, contentType, image, nil)
	if err != nil {
		return nil, err
	}

	var resp PredictResponse
	if err := c.do(ctx, http.MethodPost, "/api/predict", c.apiToken, formType, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) SubmitFeedback(ctx context.Context, req FeedbackRequest) (*FeedbackResponse, error) {
	fields := map[string]string{
		"feedback":       strconv.Itoa(req.Feedback),
		"prediction":     req.Prediction,
		"proba":          strconv.Itoa(req.Proba),
		"time_metric_id": strconv.FormatInt(req.TimeMetricID, 10),
	}
	body, formType, err := multipartBody(req.Filename, req.ContentType, req.Image, fields)
	if err != nil {
		return nil, err
	}

	var resp FeedbackResponse
	if err := c.do(ctx, http.MethodPost, "/api/feedback", c.feedbackToken, formType, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) FeedbackStats(ctx context.Context) (*FeedbackStats, error) {
	var resp FeedbackStats
	if err := c.do(ctx, http.MethodGet, "/api/feedback/stats", "", "", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) Health(ctx context.Context) (*HealthStatus, error) {
	var resp HealthStatus
	if err := c.do(ctx, http.MethodGet, "/health", "", "", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) Info(ctx context.Context) (*ModelInfo, error) {
	var resp ModelInfo
	if err := c.do(ctx, http.MethodGet, "/api/info", "", "", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path, token, contentType string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var payload struct {
			Detail string `json:"detail"`
		}
		if json.Unmarshal(data, &payload) == nil && payload.Detail != "" {
			apiErr.Detail = payload.Detail
		} else {
			apiErr.Detail = strings.TrimSpace(string(data))
		}
		return apiErr
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func multipartBody(filename, contentType string, data []byte, fields map[string]string) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create file part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", fmt.Errorf("failed to write file part: %w", err)
	}

	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", k, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
