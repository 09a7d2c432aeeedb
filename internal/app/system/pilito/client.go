// Package pilito is the client for the Pilito product API.
package pilito

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dalemusser/pilitosync/internal/domain/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// VerifyPath is the token verification endpoint, relative to the API base URL.
const VerifyPath = "api/v1/tokens/verify"

// RequestIDHeader carries a per-call id the Pilito team can trace.
const RequestIDHeader = "X-Request-ID"

const maxBodyBytes = 1 << 20

var (
	ErrBadBaseURL         = errors.New("pilito: invalid API base URL")
	ErrUnexpectedResponse = errors.New("pilito: unexpected response")
)

// User is the remote account a token belongs to.
type User struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Token describes the verified token.
type Token struct {
	Name      string     `json:"name"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Identity is the payload of a successful verification.
type Identity struct {
	User  User  `json:"user"`
	Token Token `json:"token"`
}

// Result is the outcome of a verification. Success false with a Message
// means the API answered and rejected the token.
type Result struct {
	Success bool      `json:"success"`
	Message string    `json:"message"`
	Data    *Identity `json:"data,omitempty"`
}

// SettingsSource supplies the current Pilito settings. The client reads
// them on every call so saved changes apply without a restart.
type SettingsSource interface {
	PilitoSettings(ctx context.Context) (models.PilitoSettings, error)
}

// StaticSettings is a SettingsSource that always returns itself.
type StaticSettings models.PilitoSettings

// PilitoSettings implements SettingsSource.
func (s StaticSettings) PilitoSettings(context.Context) (models.PilitoSettings, error) {
	return models.PilitoSettings(s), nil
}

// Client calls the Pilito API.
type Client struct {
	http     *http.Client
	settings SettingsSource
	logger   *zap.Logger
	agent    string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the base HTTP client. Its Transport and Timeout are
// reused under the bearer-token transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.agent = ua }
}

// New returns a Client reading its settings from src.
func New(src SettingsSource, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		http:     &http.Client{Timeout: 15 * time.Second},
		settings: src,
		logger:   logger,
		agent:    "pilitosync",
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type verifyResponse struct {
	Success *bool     `json:"success"`
	Message string    `json:"message"`
	Error   string    `json:"error"`
	Data    *Identity `json:"data"`
}

// TestConnection verifies token against the API. An API rejection is
// reported as a Result with Success false; a transport failure or an
// unreadable response is returned as an error.
func (c *Client) TestConnection(ctx context.Context, token string) (Result, error) {
	settings, err := c.settings.PilitoSettings(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("pilito: load settings: %w", err)
	}

	endpoint, err := verifyURL(settings.APIURL)
	if err != nil {
		return Result{}, err
	}

	reqID := uuid.NewString()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Result{}, fmt.Errorf("pilito: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.agent)
	req.Header.Set(RequestIDHeader, reqID)

	log := c.logger.With(zap.String("request_id", reqID))
	if settings.LoggingEnabled {
		log.Info("pilito request",
			zap.String("url", endpoint),
			zap.String("token", Redact(token)))
	}

	start := time.Now()
	resp, err := c.bearerClient(token).Do(req)
	if err != nil {
		if settings.LoggingEnabled {
			log.Warn("pilito request failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		}
		return Result{}, fmt.Errorf("pilito: request: %w", err)
	}
	defer resp.Body.Close()

	res, err := decodeVerify(resp)
	if settings.LoggingEnabled {
		log.Info("pilito response",
			zap.Int("status", resp.StatusCode),
			zap.Bool("success", res.Success),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
	}
	return res, err
}

func (c *Client) bearerClient(token string) *http.Client {
	return &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
			Base:   c.http.Transport,
		},
		Timeout: c.http.Timeout,
	}
}

func decodeVerify(resp *http.Response) (Result, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Result{}, fmt.Errorf("pilito: read response: %w", err)
	}

	var vr verifyResponse
	jsonErr := json.Unmarshal(body, &vr)

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	if !ok {
		if jsonErr != nil {
			return Result{}, fmt.Errorf("%w: HTTP %d", ErrUnexpectedResponse, resp.StatusCode)
		}
		msg := firstNonEmpty(vr.Message, vr.Error, fmt.Sprintf("Pilito API returned HTTP %d.", resp.StatusCode))
		return Result{Success: false, Message: msg}, nil
	}

	if jsonErr != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUnexpectedResponse, jsonErr)
	}
	if vr.Success != nil && !*vr.Success {
		return Result{Success: false, Message: firstNonEmpty(vr.Message, vr.Error, "Token verification failed.")}, nil
	}
	return Result{
		Success: true,
		Message: firstNonEmpty(vr.Message, "Connection successful."),
		Data:    vr.Data,
	}, nil
}

func verifyURL(base string) (string, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		base = models.DefaultPilitoAPIURL
	}
	u, err := url.Parse(base)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrBadBaseURL, base)
	}
	return u.JoinPath(VerifyPath).String(), nil
}

// Redact hides all but the last four characters of a token.
func Redact(token string) string {
	if len(token) <= 4 {
		return strings.Repeat("*", len(token))
	}
	return strings.Repeat("*", 8) + token[len(token)-4:]
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
