// Package syncclient talks to the anchor sync server: bulk pull and push of
// the whole anchor set, a health probe and the websocket change feed.
package syncclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/jwgray1010/PawCoin/internal/model"
)

const (
	defaultTimeout     = 10 * time.Second
	defaultMaxAttempts = 3
	defaultBaseBackoff = 100 * time.Millisecond
	defaultMaxInterval = 2 * time.Second
)

// Client is a sync server client. It satisfies anchor.Backend.
type Client struct {
	baseURL string
	token   string
	http    *resty.Client
	log     zerolog.Logger

	maxAttempts int
	baseBackoff time.Duration
	maxInterval time.Duration
}

// Option configures a Client during construction in New.
type Option func(*Client) error

// WithToken sets the bearer token sent on every request.
func WithToken(token string) Option {
	return func(c *Client) error {
		c.token = token
		return nil
	}
}

// WithTimeout bounds a single HTTP attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be > 0")
		}
		c.http.SetTimeout(d)
		return nil
	}
}

// WithRetry configures the retry policy for recoverable failures. maxAttempts
// counts the first try.
func WithRetry(maxAttempts int, base, maxInterval time.Duration) Option {
	return func(c *Client) error {
		if maxAttempts < 1 {
			return fmt.Errorf("max attempts must be >= 1")
		}
		c.maxAttempts = maxAttempts
		c.baseBackoff = base
		c.maxInterval = maxInterval
		return nil
	}
}

// WithLogger sets the client logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) error {
		c.log = log
		return nil
	}
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	baseURL = strings.TrimRight(baseURL, "/")
	c := &Client{
		baseURL: baseURL,
		http: resty.New().
			SetBaseURL(baseURL).
			SetHeader("Content-Type", "application/json").
			SetTimeout(defaultTimeout),
		log:         zerolog.Nop(),
		maxAttempts: defaultMaxAttempts,
		baseBackoff: defaultBaseBackoff,
		maxInterval: defaultMaxInterval,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.token != "" {
		c.http.SetAuthToken(c.token)
	}
	return c, nil
}

// Pull fetches the full anchor set.
func (c *Client) Pull(ctx context.Context) ([]model.AnchorRecord, error) {
	var out []model.AnchorRecord
	err := c.retry(ctx, "pull", func() error {
		resp, err := c.http.R().SetContext(ctx).Get("/anchors")
		if err := check("pull", resp, err); err != nil {
			return err
		}
		out = nil
		if err := json.Unmarshal(resp.Body(), &out); err != nil {
			return &ClassifiedError{Category: Irrecoverable, StatusCode: resp.StatusCode(),
				Underlying: model.Rejected("pull", fmt.Errorf("decode response: %w", err))}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.AnchorRecord{}
	}
	return out, nil
}

// Push replaces the server's anchor set with anchors.
func (c *Client) Push(ctx context.Context, anchors []model.AnchorRecord) error {
	if anchors == nil {
		anchors = []model.AnchorRecord{}
	}
	return c.retry(ctx, "push", func() error {
		resp, err := c.http.R().SetContext(ctx).SetBody(anchors).Post("/anchors")
		return check("push", resp, err)
	})
}

// Health probes the unauthenticated health endpoint once.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Get("/health")
	return check("health", resp, err)
}

// policy is the retry schedule shared by requests and watch reconnects.
func (c *Client) policy(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.baseBackoff
	exp.Multiplier = 2
	exp.MaxInterval = c.maxInterval
	exp.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(c.maxAttempts-1)), ctx)
}

func (c *Client) retry(ctx context.Context, op string, call func() error) error {
	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := call()
		if err == nil {
			return nil
		}
		if IsIrrecoverable(err) {
			return backoff.Permanent(err)
		}
		c.log.Warn().Err(err).Str("op", op).Int("attempt", attempt).Msg("sync request failed")
		return err
	}, c.policy(ctx))
}

func check(op string, resp *resty.Response, err error) error {
	if err != nil {
		return newNetworkError(op, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return newHTTPError(op, resp.StatusCode(), resp.String())
	}
	return nil
}

// serverMessage extracts the error field of a JSON error body.
func serverMessage(body string) string {
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal([]byte(body), &payload) != nil {
		return ""
	}
	return payload.Error
}
