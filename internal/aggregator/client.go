package aggregator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"
)

// timestampLayout is the provider's millisecond ISO format for range bounds.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// Config holds provider credentials and tuning knobs for the client.
type Config struct {
	BaseURL           string
	ClientID          string
	ClientSecret      string
	ProductInstanceID string

	// VUASuffix is appended to the holder's mobile number to form the
	// virtual user address ("@onemoney" style).
	VUASuffix string

	ConsentDurationMonths int

	MaxAttempts    int
	InitialBackoff time.Duration
	PollAttempts   int
	PollInterval   time.Duration
	Timeout        time.Duration
}

// DefaultConfig mirrors the provider's recommended client settings.
func DefaultConfig() Config {
	return Config{
		ConsentDurationMonths: 12,
		MaxAttempts:           3,
		InitialBackoff:        time.Second,
		PollAttempts:          30,
		PollInterval:          2 * time.Second,
		Timeout:               30 * time.Second,
	}
}

// Client talks to the aggregator FIU API. All methods retry transient
// failures with exponential backoff and surface provider rejections as
// *APIError.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient builds a client. Zero tuning fields fall back to defaults.
func NewClient(cfg Config, log zerolog.Logger) *Client {
	def := DefaultConfig()
	if cfg.ConsentDurationMonths == 0 {
		cfg.ConsentDurationMonths = def.ConsentDurationMonths
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialBackoff == 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.PollAttempts == 0 {
		cfg.PollAttempts = def.PollAttempts
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log.With().Str("component", "aggregator").Logger(),
	}
}

// CreateConsent asks the provider for a new consent covering the given data
// range. The returned URL is where the account holder approves it. An
// inverted range is swapped, same as CreateDataSession.
func (c *Client) CreateConsent(ctx context.Context, mobile string, from, to civil.Date) (*ConsentResponse, error) {
	if from.After(to) {
		from, to = to, from
	}
	req := ConsentRequest{
		VUA: mobile + c.cfg.VUASuffix,
		ConsentDuration: ConsentDuration{
			Unit:  "MONTH",
			Value: strconv.Itoa(c.cfg.ConsentDurationMonths),
		},
		DataRange: rangeOf(from, to),
		Context:   []ConsentTag{},
	}
	var resp ConsentResponse
	if err := c.send(ctx, http.MethodPost, "/consents", req, &resp, "CreateConsent"); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ConsentStatus fetches the current state of a consent. Expanded reads
// include the linked-account detail block.
func (c *Client) ConsentStatus(ctx context.Context, consentID string, expanded bool) (*ConsentResponse, error) {
	path := "/consents/" + consentID
	if expanded {
		path += "?expanded=true"
	}
	var resp ConsentResponse
	if err := c.send(ctx, http.MethodGet, path, nil, &resp, "ConsentStatus"); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateDataSession opens a scoped fetch against an active consent. An
// inverted range is swapped rather than rejected; providers return opaque
// errors for it otherwise.
func (c *Client) CreateDataSession(ctx context.Context, consentID string, from, to civil.Date) (*DataSessionResponse, error) {
	if from.After(to) {
		from, to = to, from
	}
	req := DataSessionRequest{
		ConsentID: consentID,
		DataRange: rangeOf(from, to),
		Format:    "json",
	}
	var resp DataSessionResponse
	if err := c.send(ctx, http.MethodPost, "/sessions", req, &resp, "CreateDataSession"); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FetchSessionData polls a data session until the provider fulfills it.
// COMPLETED and PARTIAL are terminal-ready; FAILED and EXPIRED are returned
// as-is so the caller can record them. If polling is exhausted the last
// pending response comes back and the caller decides what to do with it.
func (c *Client) FetchSessionData(ctx context.Context, sessionID string) (*FIDataResponse, error) {
	var last *FIDataResponse
	for attempt := 1; attempt <= c.cfg.PollAttempts; attempt++ {
		var resp FIDataResponse
		if err := c.send(ctx, http.MethodGet, "/sessions/"+sessionID, nil, &resp, "FetchSessionData"); err != nil {
			return nil, err
		}
		last = &resp
		switch resp.Status {
		case SessionStatusCompleted, SessionStatusPartial,
			SessionStatusFailed, SessionStatusExpired:
			return last, nil
		}
		c.log.Debug().
			Str("session_id", sessionID).
			Int("attempt", attempt).
			Str("status", resp.Status).
			Msg("session not ready")
		if attempt < c.cfg.PollAttempts {
			if err := sleepCtx(ctx, c.cfg.PollInterval); err != nil {
				return nil, fmt.Errorf("FetchSessionData: %w", err)
			}
		}
	}
	return last, nil
}

// RevokeConsent cancels a consent at the provider.
func (c *Client) RevokeConsent(ctx context.Context, consentID string) error {
	return c.send(ctx, http.MethodDelete, "/consents/"+consentID, nil, nil, "RevokeConsent")
}

// retryableStatus lists the transient provider responses worth retrying.
var retryableStatus = map[int]bool{
	http.StatusRequestTimeout:      true,
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// send performs one API call with up to MaxAttempts tries. Transport errors
// and retryable statuses back off exponentially; anything else fails fast
// with an *APIError.
func (c *Client) send(ctx context.Context, method, path string, body, out any, op string) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", op, err)
		}
	}

	backoff := c.cfg.InitialBackoff
	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reqBody)
		if err != nil {
			return fmt.Errorf("%s: build request: %w", op, err)
		}
		req.Header.Set("x-client-id", c.cfg.ClientID)
		req.Header.Set("x-client-secret", c.cfg.ClientSecret)
		req.Header.Set("x-product-instance-id", c.cfg.ProductInstanceID)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", op, err)
		} else {
			respBody, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			if readErr != nil {
				lastErr = fmt.Errorf("%s: read response: %w", op, readErr)
			} else if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				if out == nil || len(respBody) == 0 {
					return nil
				}
				if err := json.Unmarshal(respBody, out); err != nil {
					return fmt.Errorf("%s: decode response: %w", op, err)
				}
				return nil
			} else if !retryableStatus[resp.StatusCode] {
				return &APIError{Op: op, StatusCode: resp.StatusCode, Body: string(respBody)}
			} else {
				lastErr = &APIError{Op: op, StatusCode: resp.StatusCode, Body: string(respBody)}
			}
		}

		if attempt < c.cfg.MaxAttempts {
			c.log.Warn().
				Str("op", op).
				Int("attempt", attempt).
				Err(lastErr).
				Msg("retrying aggregator call")
			if err := sleepCtx(ctx, backoff); err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
			backoff *= 2
		}
	}
	return lastErr
}

// rangeOf widens two calendar dates to the provider's timestamp bounds:
// start of the first day through the last millisecond of the second.
func rangeOf(from, to civil.Date) DateRange {
	start := time.Date(from.Year, from.Month, from.Day, 0, 0, 0, 0, time.UTC)
	end := time.Date(to.Year, to.Month, to.Day, 23, 59, 59, 999_000_000, time.UTC)
	return DateRange{
		From: start.Format(timestampLayout),
		To:   end.Format(timestampLayout),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
