package endpoint

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/yourusername/tp-endpoint-poc/internal/config"
	"github.com/yourusername/tp-endpoint-poc/internal/guardrail"
	"github.com/yourusername/tp-endpoint-poc/internal/metrics"
	"github.com/yourusername/tp-endpoint-poc/pkg/ndarray"
)

// Version is reported in the User-Agent header.
var Version = "dev"

// HeaderRequestID carries the ID shared by all attempts of one Put.
const HeaderRequestID = "X-Request-ID"

// maxErrorBody caps how much of a failed response ends up in StatusError.
const maxErrorBody = 4 << 10

// URL addresses the model endpoint.
type URL struct {
	Host string
	Port int
	Path string
}

func (u URL) String() string {
	return "http://" + net.JoinHostPort(u.Host, strconv.Itoa(u.Port)) + u.Path
}

// StatusError is returned when the endpoint answers with anything but 200.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP/%d: %s", e.Code, e.Body)
}

type Client struct {
	url        URL
	httpClient *http.Client
	retry      config.RetryConfig
	guard      *guardrail.ShapeGuardrail
	logger     zerolog.Logger
}

// NewClient creates a client for the model endpoint described by cfg.
func NewClient(cfg config.EndpointConfig, retry config.RetryConfig, guard *guardrail.ShapeGuardrail, logger zerolog.Logger) *Client {
	return &Client{
		url: URL{Host: cfg.Host, Port: cfg.Port, Path: cfg.Path},
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		retry:  retry,
		guard:  guard,
		logger: logger,
	}
}

// URL returns the address requests are sent to.
func (c *Client) URL() URL { return c.url }

// Put sends input as a JSON body and returns the decoded response array.
// Transport failures and 5xx answers are retried up to the configured
// attempt count; any other non-200 status fails immediately.
func (c *Client) Put(ctx context.Context, input *ndarray.Array) (*ndarray.Array, error) {
	body, err := ndarray.EncodeJSONCompact(input)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	reqID := uuid.New().String()
	logger := c.logger.With().Str("request_id", reqID).Logger()

	var respBody []byte
	attempt := 0
	op := func() error {
		attempt++
		b, err := c.do(ctx, body, reqID, logger)
		if err != nil {
			return err
		}
		respBody = b
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	if c.retry.InitialInterval > 0 {
		bo.InitialInterval = c.retry.InitialInterval
	}
	if c.retry.MaxInterval > 0 {
		bo.MaxInterval = c.retry.MaxInterval
	}
	bo.MaxElapsedTime = 0

	maxRetries := 0
	if c.retry.MaxAttempts > 1 {
		maxRetries = c.retry.MaxAttempts - 1
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(maxRetries)), ctx)

	err = backoff.RetryNotify(op, policy, func(err error, wait time.Duration) {
		logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("endpoint request failed, retrying")
	})
	if err != nil {
		return nil, err
	}

	if err := c.guard.CheckPayload(len(respBody), ndarray.JSON.MinItemSize); err != nil {
		return nil, fmt.Errorf("response: %w", err)
	}
	result, err := ndarray.DecodeJSON(respBody)
	if err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if err := c.guard.Validate(result); err != nil {
		return nil, fmt.Errorf("response: %w", err)
	}
	return result, nil
}

func (c *Client) do(ctx context.Context, body []byte, reqID string, logger zerolog.Logger) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.url.String(), bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "tp-endpoint-poc/"+Version)
	req.Header.Set(HeaderRequestID, reqID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.EndpointRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.EndpointRequestsTotal.WithLabelValues("error").Inc()
		if ctx.Err() != nil {
			return nil, backoff.Permanent(fmt.Errorf("model endpoint unreachable: %w", err))
		}
		return nil, fmt.Errorf("model endpoint unreachable: %w", err)
	}
	defer resp.Body.Close()
	metrics.EndpointRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		statusErr := &StatusError{Code: resp.StatusCode, Body: string(msg)}
		if resp.StatusCode >= 500 {
			return nil, statusErr
		}
		return nil, backoff.Permanent(statusErr)
	}

	var r io.Reader = resp.Body
	if limit := c.guard.MaxPayload(ndarray.JSON.MinItemSize); limit > 0 {
		// one byte past the limit lets CheckPayload see the overflow
		r = io.LimitReader(resp.Body, int64(limit)+1)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	logger.Debug().
		Str("url", c.url.String()).
		Int("status", resp.StatusCode).
		Int("bytes", len(b)).
		Dur("elapsed", time.Since(start)).
		Msg("endpoint responded")
	return b, nil
}
