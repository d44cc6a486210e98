// Package validator calls an LLM completion endpoint to judge whether a
// mid-confidence evidence/promise pair is genuinely related. The model is a
// boundary, not an oracle: its answer is parsed against a strict contract
// and anything off-contract is an error for the caller to degrade on.
package validator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"pledgewatch/pkg/platform/circuit"
	"pledgewatch/pkg/platform/retry"
	"pledgewatch/pkg/platform/sentinel"
)

const systemPrompt = `You judge whether a legislative event is evidence of progress on a political promise.
Respond with a single JSON object: {"is_relevant": <bool>, "rationale": "<one sentence>"}.
Answer true only when the event concretely advances or contradicts the promise.`

// Request carries both sides of the pair plus the heuristic score, which the
// prompt includes as context for the model.
type Request struct {
	EvidenceTitle       string
	EvidenceDescription string
	PromiseText         string
	Score               float64
}

// Verdict is the validator's parsed answer.
type Verdict struct {
	Relevant  bool
	Rationale string
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	limiter    *rate.Limiter
	retry      retry.Policy
	breaker    *circuit.Breaker
	logger     *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

func WithModel(model string) Option {
	return func(cl *Client) { cl.model = model }
}

func WithRateLimit(rps float64, burst int) Option {
	return func(cl *Client) { cl.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

func WithRetryPolicy(p retry.Policy) Option {
	return func(cl *Client) { cl.retry = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(cl *Client) { cl.breaker = b }
}

func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      "gpt-4o-mini",
		limiter:    rate.NewLimiter(rate.Limit(2), 1),
		retry:      retry.DefaultPolicy(),
		breaker:    circuit.New("validator"),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat *formatSpec   `json:"response_format,omitempty"`
	Temperature    float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type formatSpec struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type verdictPayload struct {
	IsRelevant *bool  `json:"is_relevant"`
	Rationale  string `json:"rationale"`
}

// Validate asks the model about one pair. Transient upstream failures are
// retried; a response that does not match the contract returns
// sentinel.ErrMalformed without retrying. While the breaker is open, calls
// fail fast with sentinel.ErrUnavailable so the caller degrades immediately.
func (c *Client) Validate(ctx context.Context, req Request) (Verdict, error) {
	if c.breaker.IsOpen() {
		return Verdict{}, fmt.Errorf("validator circuit open: %w", sentinel.ErrUnavailable)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return Verdict{}, fmt.Errorf("validator rate limit: %w", err)
	}

	var verdict Verdict
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		v, err := c.validateOnce(ctx, req)
		if err != nil {
			return err
		}
		verdict = v
		return nil
	})

	switch {
	case err == nil:
		if _, change := c.breaker.RecordSuccess(); change.Closed {
			c.logger.Info("validator circuit closed")
		}
	case errors.Is(err, sentinel.ErrUnavailable):
		if _, change := c.breaker.RecordFailure(); change.Opened {
			c.logger.Warn("validator circuit opened")
		}
	}
	return verdict, err
}

func (c *Client) validateOnce(ctx context.Context, req Request) (Verdict, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt(req)},
		},
		ResponseFormat: &formatSpec{Type: "json_object"},
	})
	if err != nil {
		return Verdict{}, fmt.Errorf("encode validator request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Verdict{}, fmt.Errorf("build validator request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Verdict{}, fmt.Errorf("validator request: %w: %w", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Verdict{}, fmt.Errorf("read validator response: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return Verdict{}, fmt.Errorf("validator status %d: %w", resp.StatusCode, sentinel.ErrUnavailable)
	}
	if resp.StatusCode != http.StatusOK {
		return Verdict{}, fmt.Errorf("validator status %d: %w", resp.StatusCode, sentinel.ErrMalformed)
	}

	var chat chatResponse
	if err := json.Unmarshal(raw, &chat); err != nil || len(chat.Choices) == 0 {
		return Verdict{}, fmt.Errorf("decode validator response: %w", sentinel.ErrMalformed)
	}

	var payload verdictPayload
	if err := json.Unmarshal([]byte(chat.Choices[0].Message.Content), &payload); err != nil || payload.IsRelevant == nil {
		c.logger.Warn("validator answer off contract", "content", chat.Choices[0].Message.Content)
		return Verdict{}, fmt.Errorf("validator answer off contract: %w", sentinel.ErrMalformed)
	}
	return Verdict{Relevant: *payload.IsRelevant, Rationale: payload.Rationale}, nil
}

func userPrompt(req Request) string {
	return fmt.Sprintf(
		"Event: %s\n%s\n\nPromise: %s\n\nHeuristic similarity: %.2f",
		req.EvidenceTitle, req.EvidenceDescription, req.PromiseText, req.Score,
	)
}
