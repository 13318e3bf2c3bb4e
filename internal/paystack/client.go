package paystack

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

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// DefaultBaseURL is the production Paystack API.
const DefaultBaseURL = "https://api.paystack.co"

// ErrUnreachable is returned when Paystack could not be reached after retrying.
var ErrUnreachable = errors.New("paystack unreachable")

// Config holds client settings.
type Config struct {
	SecretKey       string
	BaseURL         string
	Timeout         time.Duration
	MaxAttempts     int
	InitialInterval time.Duration
}

// Client talks to the Paystack transaction API using the secret key.
// It must only run server-side.
type Client struct {
	secretKey       string
	baseURL         string
	httpClient      *http.Client
	maxAttempts     int
	initialInterval time.Duration
	logger          zerolog.Logger
}

// NewClient creates a Paystack client.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	interval := cfg.InitialInterval
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}

	return &Client{
		secretKey:       cfg.SecretKey,
		baseURL:         baseURL,
		httpClient:      &http.Client{Timeout: timeout},
		maxAttempts:     attempts,
		initialInterval: interval,
		logger:          logger.With().Str("component", "paystack-client").Logger(),
	}
}

// Verification is the normalised result of a verify call.
type Verification struct {
	Reference  string
	Success    bool
	RawStatus  string
	Message    string
	PaidAmount int64
	Currency   string
	Channel    string
	PaidAt     *time.Time
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type transactionData struct {
	Status    string     `json:"status"`
	Reference string     `json:"reference"`
	Amount    int64      `json:"amount"`
	Currency  string     `json:"currency"`
	Channel   string     `json:"channel"`
	PaidAt    *time.Time `json:"paid_at"`
}

// transientError marks failures worth retrying.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Verify looks the transaction up by reference. Success requires the envelope
// status to be true and the transaction status to be "success". Transport
// failures, 429 and 5xx responses are retried with exponential backoff.
func (c *Client) Verify(ctx context.Context, reference string) (*Verification, error) {
	if reference == "" {
		return nil, fmt.Errorf("reference is required")
	}

	var result *Verification
	operation := func() error {
		v, err := c.verifyOnce(ctx, reference)
		if err != nil {
			var transient *transientError
			if errors.As(err, &transient) && ctx.Err() == nil {
				return err
			}
			return backoff.Permanent(err)
		}
		result = v
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.initialInterval
	policy.MaxInterval = 5 * time.Second
	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.maxAttempts-1)), ctx)

	attempt := 0
	err := backoff.RetryNotify(operation, b, func(err error, wait time.Duration) {
		attempt++
		c.logger.Warn().
			Err(err).
			Str("reference", reference).
			Int("attempt", attempt).
			Dur("retry_in", wait).
			Msg("paystack verification attempt failed, retrying")
	})
	if err != nil {
		var transient *transientError
		if errors.As(err, &transient) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: verify %s: %w", ErrUnreachable, reference, err)
		}
		return nil, err
	}

	return result, nil
}

func (c *Client) verifyOnce(ctx context.Context, reference string) (*Verification, error) {
	endpoint := c.baseURL + "/transaction/verify/" + url.PathEscape(reference)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build verify request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &transientError{err: fmt.Errorf("verify request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &transientError{err: fmt.Errorf("failed to read verify response: %w", err)}
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return nil, &transientError{err: fmt.Errorf("verify returned status %d", resp.StatusCode)}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &transientError{err: fmt.Errorf("failed to decode verify response: %w", err)}
	}

	v := &Verification{Reference: reference, Message: env.Message}
	var data transactionData
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, &transientError{err: fmt.Errorf("failed to decode transaction data: %w", err)}
		}
	}

	v.RawStatus = data.Status
	if v.RawStatus == "" {
		v.RawStatus = "unknown"
	}
	v.Success = env.Status && data.Status == "success"
	if v.Success {
		v.PaidAmount = data.Amount
		v.Currency = data.Currency
		v.Channel = data.Channel
		v.PaidAt = data.PaidAt
	}

	c.logger.Debug().
		Str("reference", reference).
		Int("http_status", resp.StatusCode).
		Str("status", v.RawStatus).
		Bool("success", v.Success).
		Msg("paystack verification completed")

	return v, nil
}

// InitializeRequest starts a redirect checkout.
type InitializeRequest struct {
	Email       string
	AmountKobo  int64
	Currency    string
	Reference   string
	CallbackURL string
	Metadata    map[string]string
}

// Initialization is the hosted checkout Paystack created.
type Initialization struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type customField struct {
	DisplayName  string `json:"display_name"`
	VariableName string `json:"variable_name"`
	Value        string `json:"value"`
}

// Initialize creates a transaction on Paystack and returns the hosted page.
// It is not retried; the caller decides how to recover.
func (c *Client) Initialize(ctx context.Context, in InitializeRequest) (*Initialization, error) {
	payload := map[string]any{
		"email":     in.Email,
		"amount":    in.AmountKobo,
		"currency":  in.Currency,
		"reference": in.Reference,
	}
	if in.CallbackURL != "" {
		payload["callback_url"] = in.CallbackURL
	}
	if len(in.Metadata) > 0 {
		fields := make([]customField, 0, len(in.Metadata))
		for _, key := range sortedKeys(in.Metadata) {
			fields = append(fields, customField{
				DisplayName:  displayName(key),
				VariableName: key,
				Value:        in.Metadata[key],
			})
		}
		payload["metadata"] = map[string]any{"custom_fields": fields}
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode initialize request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transaction/initialize", bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to build initialize request: %w", err)
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("reference", in.Reference).Msg("paystack initialize request failed")
		return nil, fmt.Errorf("%w: initialize: %w", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&env); err != nil {
		return nil, fmt.Errorf("failed to decode initialize response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || !env.Status {
		return nil, fmt.Errorf("paystack rejected initialize (status %d): %s", resp.StatusCode, env.Message)
	}

	var init Initialization
	if err := json.Unmarshal(env.Data, &init); err != nil {
		return nil, fmt.Errorf("failed to decode initialize data: %w", err)
	}

	c.logger.Info().Str("reference", in.Reference).Msg("paystack transaction initialised")
	return &init, nil
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")
}
