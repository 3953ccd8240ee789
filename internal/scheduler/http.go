package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	contracts "qplace/contracts/scheduler"
	"qplace/internal/circuit"
	"qplace/internal/latency"
	"qplace/internal/platform/config"
	"qplace/pkg/platform/breaker"
)

// Client calls the external scheduler over HTTP. Failures trip a circuit
// breaker; while it is open the static estimate answers instead, so
// placement jobs degrade rather than fail when the scheduler is down.
type Client struct {
	baseURL  string
	http     *http.Client
	breaker  *breaker.Breaker
	fallback Static
	logger   *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBreaker replaces the default breaker, mainly for tests.
func WithBreaker(b *breaker.Breaker) ClientOption {
	return func(c *Client) { c.breaker = b }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) { c.http = httpClient }
}

// NewClient builds the HTTP adapter.
func NewClient(cfg config.SchedulerConfig, logger *slog.Logger, opts ...ClientOption) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("scheduler URL is required")
	}
	c := &Client{
		baseURL: cfg.URL,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: breaker.New("scheduler"),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Schedule asks the scheduler for the circuit's pulse timing, falling
// back to the static estimate when the breaker is open or the call fails.
func (c *Client) Schedule(ctx context.Context, circ *circuit.Circuit) (latency.Schedule, error) {
	if c.breaker.IsOpen() {
		return c.fallback.Schedule(ctx, circ)
	}

	sched, err := c.call(ctx, circ)
	if err != nil {
		_, change := c.breaker.RecordFailure()
		if change.Opened {
			c.logger.WarnContext(ctx, "scheduler circuit opened, using static estimates",
				"error", err,
			)
		} else {
			c.logger.WarnContext(ctx, "scheduler call failed, using static estimate",
				"error", err,
			)
		}
		return c.fallback.Schedule(ctx, circ)
	}

	_, change := c.breaker.RecordSuccess()
	if change.Closed {
		c.logger.InfoContext(ctx, "scheduler circuit closed, primary restored")
	}
	return sched, nil
}

func (c *Client) call(ctx context.Context, circ *circuit.Circuit) (latency.Schedule, error) {
	payload := contracts.ScheduleRequest{NumQubits: circ.NumQubits()}
	for _, inst := range circ.Instructions() {
		payload.Gates = append(payload.Gates, contracts.Gate{
			Name:   inst.Name,
			Qubits: append([]int(nil), inst.Qubits...),
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return latency.Schedule{}, fmt.Errorf("marshal schedule request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/schedule", bytes.NewReader(body))
	if err != nil {
		return latency.Schedule{}, fmt.Errorf("build schedule request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return latency.Schedule{}, fmt.Errorf("call scheduler: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return latency.Schedule{}, fmt.Errorf("scheduler returned %d: %s", resp.StatusCode, body)
	}

	var out contracts.ScheduleResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return latency.Schedule{}, fmt.Errorf("decode schedule response: %w", err)
	}
	if out.Duration < 0 || out.Dt <= 0 {
		return latency.Schedule{}, fmt.Errorf("scheduler returned invalid figures: duration=%d dt=%g", out.Duration, out.Dt)
	}
	return latency.Schedule{Duration: out.Duration, Dt: out.Dt}, nil
}
