package handler

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

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
)

const maxGatewayResponseBytes = 1 << 20

// StatusError reports a non-success HTTP status from a gateway.
type StatusError struct {
	Gateway    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s gateway returned status %d", e.Gateway, e.StatusCode)
	}
	return fmt.Sprintf("%s gateway returned status %d: %s", e.Gateway, e.StatusCode, e.Body)
}

// Transient reports whether the status is worth retrying.
func (e *StatusError) Transient() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// Gateway executes actions against one external system over JSON/HTTP.
//
// Each action is POSTed to <base>/actions/<type> with the action ID as the
// Idempotency-Key header. Transport errors, 429, and 5xx responses are retried
// with exponential backoff; other 4xx responses fail immediately. A gateway
// without a base URL answers from built-in simulated data.
type Gateway struct {
	name            string
	baseURL         string
	token           string
	client          *http.Client
	maxTries        uint
	initialInterval time.Duration
	maxInterval     time.Duration
	logger          zerolog.Logger
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithToken sets the bearer token sent with each request.
func WithToken(token string) GatewayOption {
	return func(g *Gateway) {
		g.token = strings.TrimSpace(token)
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) GatewayOption {
	return func(g *Gateway) {
		if client != nil {
			g.client = client
		}
	}
}

// WithRetry sets the attempt limit and the backoff bounds between attempts.
func WithRetry(maxTries uint, initial, max time.Duration) GatewayOption {
	return func(g *Gateway) {
		if maxTries > 0 {
			g.maxTries = maxTries
		}
		if initial > 0 {
			g.initialInterval = initial
		}
		if max > 0 {
			g.maxInterval = max
		}
	}
}

// WithGatewayLogger sets the logger used for retry diagnostics.
func WithGatewayLogger(logger zerolog.Logger) GatewayOption {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// NewGateway builds a gateway named name rooted at baseURL.
func NewGateway(name, baseURL string, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		name:            name,
		baseURL:         strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client:          &http.Client{Timeout: 15 * time.Second},
		maxTries:        3,
		initialInterval: 250 * time.Millisecond,
		maxInterval:     2 * time.Second,
		logger:          zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Name returns the gateway name.
func (g *Gateway) Name() string {
	return g.name
}

// Simulated reports whether the gateway answers without network calls.
func (g *Gateway) Simulated() bool {
	return g.baseURL == ""
}

type gatewayRequest struct {
	ActionID string         `json:"action_id"`
	Type     string         `json:"type"`
	Module   string         `json:"module"`
	Data     map[string]any `json:"data"`
}

type gatewayResponse struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Handle executes req against the gateway.
func (g *Gateway) Handle(ctx context.Context, req Request) (Result, error) {
	if g.Simulated() {
		return Simulate(req), nil
	}

	endpoint, err := url.JoinPath(g.baseURL, "actions", req.Type)
	if err != nil {
		return Result{}, fmt.Errorf("%s gateway url: %w", g.name, err)
	}
	body, err := json.Marshal(gatewayRequest{
		ActionID: req.ActionID,
		Type:     req.Type,
		Module:   string(req.Module),
		Data:     req.Data,
	})
	if err != nil {
		return Result{}, fmt.Errorf("%s gateway encode: %w", g.name, err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = g.initialInterval
	policy.MaxInterval = g.maxInterval

	out, err := backoff.Retry(ctx, func() (gatewayResponse, error) {
		return g.post(ctx, endpoint, req.ActionID, body)
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(g.maxTries),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			g.logger.Warn().Err(err).Str("gateway", g.name).Str("action_id", req.ActionID).Dur("retry_in", next).Msg("gateway call failed, retrying")
		}),
	)
	if err != nil {
		return Result{}, fmt.Errorf("%s gateway: %w", g.name, err)
	}

	if !out.Success {
		message := strings.TrimSpace(out.Error)
		if message == "" {
			message = g.name + " gateway reported failure"
		}
		return Result{Success: false, Data: out.Data, Error: message}, nil
	}
	return Result{Success: true, Data: out.Data}, nil
}

func (g *Gateway) post(ctx context.Context, endpoint, actionID string, body []byte) (gatewayResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return gatewayResponse{}, backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Idempotency-Key", actionID)
	if g.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return gatewayResponse{}, backoff.Permanent(err)
		}
		return gatewayResponse{}, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxGatewayResponseBytes))
	if err != nil {
		return gatewayResponse{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{
			Gateway:    g.name,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(payload)),
		}
		if statusErr.Transient() {
			return gatewayResponse{}, statusErr
		}
		return gatewayResponse{}, backoff.Permanent(statusErr)
	}

	var out gatewayResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return gatewayResponse{}, backoff.Permanent(fmt.Errorf("decode response: %w", err))
	}
	return out, nil
}

// IsStatus reports whether err carries a gateway StatusError with code.
func IsStatus(err error, code int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == code
}
