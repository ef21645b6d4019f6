// Package scoring is the typed HTTP client for the remote interview scoring service.
package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	startSessionPath = "/start_session"
	submitAnswerPath = "/submit_answer"

	maxBodyBytes   = 1 << 20
	maxErrorBody   = 4 << 10
	defaultTimeout = 60 * time.Second
)

// Config controls client endpoint and transport behavior.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Started is the service response to a session start.
type Started struct {
	SessionID string
	Question  string
}

// Evaluated is the service response to one submitted answer.
type Evaluated struct {
	Score        float64
	Feedback     string
	NextQuestion string
}

// Finished reports whether the service signalled end of session.
func (e Evaluated) Finished() bool {
	return e.NextQuestion == ""
}

type startSessionRequest struct {
	NumQuestions int `json:"num_questions"`
}

type startSessionResponse struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
}

type submitAnswerRequest struct {
	SessionID string `json:"session_id"`
	Answer    string `json:"answer"`
}

type submitAnswerResponse struct {
	Score        *float64 `json:"score"`
	Feedback     string   `json:"feedback"`
	NextQuestion *string  `json:"next_question"`
}

type errorResponse struct {
	Detail json.RawMessage `json:"detail"`
}

// Client issues one fresh request per call; it never caches or retries.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	logger  *slog.Logger
}

// New validates the base URL and constructs a client.
func New(cfg Config) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, errors.New("scoring base url is empty")
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse scoring base url %q: %w", raw, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("scoring base url %q must use http or https", raw)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("scoring base url %q has no host", raw)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{baseURL: base, http: httpClient, logger: logger}, nil
}

// BaseURL returns the normalized service root.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// StartSession asks the service for a new session with totalQuestions questions.
func (c *Client) StartSession(ctx context.Context, totalQuestions int) (Started, error) {
	var resp startSessionResponse
	if err := c.post(ctx, startSessionPath, startSessionRequest{NumQuestions: totalQuestions}, &resp); err != nil {
		return Started{}, err
	}

	if strings.TrimSpace(resp.SessionID) == "" {
		return Started{}, &ServiceError{Operation: startSessionPath, Status: http.StatusOK, Reason: "response has no session_id"}
	}
	if strings.TrimSpace(resp.Question) == "" {
		return Started{}, &ServiceError{Operation: startSessionPath, Status: http.StatusOK, Reason: "response has no question"}
	}

	return Started{SessionID: resp.SessionID, Question: strings.TrimSpace(resp.Question)}, nil
}

// SubmitAnswer sends one answer and returns its evaluation.
func (c *Client) SubmitAnswer(ctx context.Context, sessionID string, answer string) (Evaluated, error) {
	var resp submitAnswerResponse
	err := c.post(ctx, submitAnswerPath, submitAnswerRequest{SessionID: sessionID, Answer: answer}, &resp)
	if err != nil {
		if svcErr, ok := IsServiceError(err); ok && svcErr.Status == http.StatusNotFound {
			return Evaluated{}, fmt.Errorf("%w: %w", ErrInvalidSession, err)
		}
		return Evaluated{}, err
	}

	if resp.Score == nil {
		return Evaluated{}, &ServiceError{Operation: submitAnswerPath, Status: http.StatusOK, Reason: "response has no score"}
	}
	score := *resp.Score
	if math.IsNaN(score) || score < 0 || score > 100 {
		return Evaluated{}, &ServiceError{
			Operation: submitAnswerPath,
			Status:    http.StatusOK,
			Reason:    fmt.Sprintf("score %v outside [0, 100]", score),
		}
	}

	evaluated := Evaluated{Score: score, Feedback: resp.Feedback}
	if resp.NextQuestion != nil {
		evaluated.NextQuestion = strings.TrimSpace(*resp.NextQuestion)
	}
	return evaluated, nil
}

// post sends one JSON request and decodes a successful JSON response into out.
func (c *Client) post(ctx context.Context, path string, in any, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", path, err)
	}

	endpoint := c.baseURL.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%s: build request: %w", path, err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	startedAt := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("scoring request failed",
			"path", path,
			"request_id", requestID,
			"latency_ms", time.Since(startedAt).Milliseconds(),
			"error", err.Error(),
		)
		return fmt.Errorf("%w: %s: %w", ErrServiceUnreachable, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	c.logger.Debug("scoring request complete",
		"path", path,
		"request_id", requestID,
		"status", resp.StatusCode,
		"latency_ms", time.Since(startedAt).Milliseconds(),
		"bytes", len(body),
	)
	if err != nil {
		return fmt.Errorf("%w: %s: read response: %w", ErrServiceUnreachable, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newStatusError(path, resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &ServiceError{
			Operation: path,
			Status:    resp.StatusCode,
			Body:      truncate(string(body), maxErrorBody),
			Reason:    fmt.Sprintf("decode response: %v", err),
		}
	}
	return nil
}

func newStatusError(path string, status int, body []byte) *ServiceError {
	svcErr := &ServiceError{
		Operation: path,
		Status:    status,
		Body:      truncate(string(body), maxErrorBody),
	}

	var payload errorResponse
	if err := json.Unmarshal(body, &payload); err == nil && len(payload.Detail) > 0 {
		var detail string
		if err := json.Unmarshal(payload.Detail, &detail); err == nil {
			svcErr.Detail = detail
		} else {
			// Validation errors carry a structured detail list.
			svcErr.Detail = string(payload.Detail)
		}
	}
	return svcErr
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
