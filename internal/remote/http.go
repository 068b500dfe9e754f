package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/verte-zerg/tuiexam/internal/clock"
	"github.com/verte-zerg/tuiexam/internal/model"
	"github.com/verte-zerg/tuiexam/internal/response"
	"github.com/verte-zerg/tuiexam/internal/validator"
)

const (
	defaultHTTPTimeout = 15 * time.Second
	maxResponseBytes   = 8 << 20
)

// HTTPClient implements Service over the JSON API served by `tuiexam serve`.
type HTTPClient struct {
	baseURL string
	creds   Credentials
	http    *http.Client
	clock   clock.Clock
	log     zerolog.Logger
}

// Option customizes an HTTPClient.
type Option func(*HTTPClient)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) { c.http = hc }
}

// WithLogger sets the client logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *HTTPClient) { c.log = log.With().Str("component", "remote").Logger() }
}

// WithClock sets the clock used for credential expiry checks.
func WithClock(clk clock.Clock) Option {
	return func(c *HTTPClient) { c.clock = clk }
}

// NewHTTPClient returns a client rooted at baseURL (for example
// "http://localhost:8080").
func NewHTTPClient(baseURL string, creds Credentials, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		creds:   creds,
		http:    &http.Client{Timeout: defaultHTTPTimeout},
		clock:   clock.System{},
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchAttempt implements Service.
func (c *HTTPClient) FetchAttempt(ctx context.Context, req AttemptRequest) (model.Paper, error) {
	var paper model.Paper
	var err error
	if req.AttemptID != "" {
		err = c.do(ctx, http.MethodGet, "/api/attempts/"+url.PathEscape(req.AttemptID), nil, &paper)
	} else {
		body := model.StartAttemptRequest{ExamYear: req.Year, ExamShift: req.Shift}
		err = c.do(ctx, http.MethodPost, "/api/attempts", body, &paper)
	}
	if err != nil {
		return model.Paper{}, err
	}
	if err := validator.Struct(paper); err != nil {
		return model.Paper{}, fmt.Errorf("invalid attempt payload: %w", err)
	}
	if paper.DurationSeconds > 0 {
		paper.Attempt.Duration = time.Duration(paper.DurationSeconds) * time.Second
	}
	return paper, nil
}

// CheckpointAttempt implements Service.
func (c *HTTPClient) CheckpointAttempt(ctx context.Context, attemptID string, responses model.Responses) error {
	body := model.CheckpointRequest{Responses: responses}
	if body.Responses == nil {
		body.Responses = model.Responses{}
	}
	return c.do(ctx, http.MethodPatch, "/api/attempts/"+url.PathEscape(attemptID), body, nil)
}

// SubmitAttempt implements Service.
func (c *HTTPClient) SubmitAttempt(ctx context.Context, attemptID string, entries []model.ResponseEntry) (model.SubmitResult, error) {
	body := model.SubmitRequest{Responses: make([]model.SubmitEntry, 0, len(entries))}
	for _, e := range entries {
		body.Responses = append(body.Responses, model.SubmitEntry{QuestionID: e.QuestionID, Answer: e.Answer})
	}
	var result model.SubmitResult
	if err := c.do(ctx, http.MethodPost, "/api/attempts/"+url.PathEscape(attemptID)+"/submit", body, &result); err != nil {
		return model.SubmitResult{}, err
	}
	if err := validator.Struct(result); err != nil {
		return model.SubmitResult{}, fmt.Errorf("invalid submit payload: %w", err)
	}
	return result, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	if err := c.creds.Check(c.clock.Now()); err != nil {
		return err
	}

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
		return fmt.Errorf("failed to build request: %w", err)
	}
	reqID := uuid.New().String()
	req.Header.Set(response.HeaderRequestID, reqID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.creds.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.creds.Token)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			// Best-effort body close.
			_ = cerr
		}
	}()

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Str("request_id", reqID).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(started)).
		Msg("attempt service call")

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var env response.Envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil && resp.StatusCode < 300 {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
			apiErr.Fields = env.Error.Fields
		}
		return apiErr
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}
