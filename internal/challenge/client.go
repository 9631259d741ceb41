package challenge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
)

var (
	// ErrUnavailable marks transient vendor failures that survived retries.
	ErrUnavailable = errors.New("challenge service unavailable")
	// ErrRejected marks fatal vendor responses (4xx other than 429).
	ErrRejected = errors.New("challenge service rejected the request")
)

// TrackRequest initiates a challenge for one user action.
type TrackRequest struct {
	UserID      string
	Action      string
	RedirectURL string
}

// TrackResult is the vendor's answer to an initiation: its state, the
// idempotency handle identifying this challenge instance, and the URL the
// end user must visit when a challenge step is required.
type TrackResult struct {
	State          string `json:"state"`
	IdempotencyKey string `json:"idempotencyKey"`
	URL            string `json:"url"`
}

// StatusResult is the vendor's current view of a previously tracked action.
type StatusResult struct {
	State string `json:"state"`
}

// ValidationResult is the vendor's verdict on a callback token.
type ValidationResult struct {
	IsValid bool   `json:"isValid"`
	State   string `json:"state"`
}

// Client is the contract the engine consumes. Status reads are idempotent;
// Track is not and must be serialized by the caller.
type Client interface {
	Track(ctx context.Context, req TrackRequest) (*TrackResult, error)
	Status(ctx context.Context, userID, action, idempotencyKey string) (*StatusResult, error)
	ValidateToken(ctx context.Context, token string) (*ValidationResult, error)
}

// Config tunes the HTTP client. Zero values fall back to the defaults below.
type Config struct {
	BaseURL     string
	Secret      string
	Timeout     time.Duration
	MaxRetries  uint64
	BackoffBase time.Duration
}

const (
	defaultTimeout     = 5 * time.Second
	defaultMaxRetries  = 2
	defaultBackoffBase = 200 * time.Millisecond
)

// HTTPClient implements Client against an Authsignal-compatible REST API.
// The API secret is presented as the basic-auth username on every request.
type HTTPClient struct {
	baseURL     string
	secret      string
	timeout     time.Duration
	maxRetries  uint64
	backoffBase time.Duration
	httpClient  *http.Client
}

// NewHTTPClient validates cfg and returns a ready client.
func NewHTTPClient(cfg Config) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("challenge base URL required")
	}
	if cfg.Secret == "" {
		return nil, errors.New("challenge API secret required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = defaultBackoffBase
	}
	return &HTTPClient{
		baseURL:     cfg.BaseURL,
		secret:      cfg.Secret,
		timeout:     cfg.Timeout,
		maxRetries:  cfg.MaxRetries,
		backoffBase: cfg.BackoffBase,
		httpClient:  &http.Client{},
	}, nil
}

// Track initiates a challenge for the given user action.
func (c *HTTPClient) Track(ctx context.Context, req TrackRequest) (*TrackResult, error) {
	endpoint := fmt.Sprintf("%s/v1/users/%s/actions/%s",
		c.baseURL, url.PathEscape(req.UserID), url.PathEscape(req.Action))
	payload := map[string]string{}
	if req.RedirectURL != "" {
		payload["redirectUrl"] = req.RedirectURL
	}

	var result TrackResult
	if err := c.doJSON(ctx, http.MethodPost, endpoint, payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Status reads the current state of a tracked action without re-issuing it.
func (c *HTTPClient) Status(ctx context.Context, userID, action, idempotencyKey string) (*StatusResult, error) {
	endpoint := fmt.Sprintf("%s/v1/users/%s/actions/%s/%s",
		c.baseURL, url.PathEscape(userID), url.PathEscape(action), url.PathEscape(idempotencyKey))

	var result StatusResult
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ValidateToken asks the vendor whether a callback token is genuine.
func (c *HTTPClient) ValidateToken(ctx context.Context, token string) (*ValidationResult, error) {
	endpoint := c.baseURL + "/v1/validate"

	var result ValidationResult
	if err := c.doJSON(ctx, http.MethodPost, endpoint, map[string]string{"token": token}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// doJSON performs one logical call: per-attempt hard timeout, retries with
// capped exponential backoff for the transient failure allow-list, immediate
// propagation for everything else.
func (c *HTTPClient) doJSON(ctx context.Context, method, endpoint string, payload, out interface{}) error {
	operation := func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		var body io.Reader
		if payload != nil {
			encoded, err := json.Marshal(payload)
			if err != nil {
				return backoff.Permanent(err)
			}
			body = bytes.NewReader(encoded)
		}

		req, err := http.NewRequestWithContext(attemptCtx, method, endpoint, body)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.SetBasicAuth(c.secret, "")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(fmt.Errorf("%w: %v", ErrUnavailable, err))
			}
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return backoff.Permanent(fmt.Errorf("%w: decoding response: %v", ErrRejected, err))
			}
			return nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return fmt.Errorf("%w: http %d", ErrUnavailable, resp.StatusCode)
		default:
			return backoff.Permanent(fmt.Errorf("%w: http %d", ErrRejected, resp.StatusCode))
		}
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(newExponential(c.backoffBase), c.maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		if ctx.Err() != nil && !errors.Is(err, ErrRejected) {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return err
	}
	return nil
}

func newExponential(base time.Duration) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = base
	b.RandomizationFactor = 0
	b.Multiplier = 2
	return b
}
