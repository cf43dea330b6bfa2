// Package credential is the HTTP client for the remote authentication authority.
package credential

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/publicsuffix"

	domainauth "github.com/target/estate-portal/internal/domain/auth"
	apperrors "github.com/target/estate-portal/internal/errors"
	"github.com/target/estate-portal/internal/ports"
)

const (
	defaultTimeout = 15 * time.Second
	maxBodyBytes   = 1 << 20
)

// Op names a credential service operation.
type Op string

const (
	OpLogin    Op = "login"
	OpRegister Op = "register"
	OpVerify   Op = "verify"
)

// Error is the single failure shape for every credential service call.
// Status is 0 when no HTTP response was received.
type Error struct {
	Op      Op
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Status == 0 && e.Err != nil:
		return fmt.Sprintf("credential %s: %v", e.Op, e.Err)
	case e.Message == "":
		return fmt.Sprintf("credential %s failed with status %d", e.Op, e.Status)
	default:
		return fmt.Sprintf("credential %s failed (%d): %s", e.Op, e.Status, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Config configures a Client.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	UserAgent  string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client implements ports.CredentialService over HTTP/JSON.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ ports.CredentialService = (*Client)(nil)

// NewClient constructs a Client pointing at the API base URL.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		return nil, errors.New("credential client: base url is required")
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		httpClient = &http.Client{Timeout: timeout, Jar: jar}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    strings.TrimRight(base, "/"),
		userAgent:  cfg.UserAgent,
		httpClient: httpClient,
		logger:     logger.With("component", "credential_client"),
	}, nil
}

// BaseURL returns the normalised API root.
func (c *Client) BaseURL() string { return c.baseURL }

// Endpoint resolves the path of op for category. Every category has its own
// endpoint family; an unknown category is an error rather than a fallback.
func Endpoint(category domainauth.Category, op Op) (string, error) {
	var family string
	switch category {
	case domainauth.CategoryPlatformUser:
		family = "/auth"
	case domainauth.CategoryClient:
		family = "/client-auth"
	case domainauth.CategoryNone:
		return "", fmt.Errorf("no endpoint family for empty category")
	default:
		return "", fmt.Errorf("no endpoint family for %s", category)
	}

	switch op {
	case OpLogin, OpRegister, OpVerify:
		return family + "/" + string(op), nil
	default:
		return "", fmt.Errorf("unknown credential operation %q", op)
	}
}

// authResponse is the body of login and register responses.
type authResponse struct {
	Success  bool            `json:"success"`
	Token    string          `json:"token"`
	User     json.RawMessage `json:"user"`
	UserType string          `json:"userType"`
}

// verifyResponse is the body of verify responses.
type verifyResponse struct {
	Success bool            `json:"success"`
	User    json.RawMessage `json:"user"`
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, category domainauth.Category, in ports.Credentials) (ports.Grant, error) {
	body := map[string]any{"email": in.Email, "password": in.Password}
	return c.grant(ctx, category, OpLogin, body)
}

// Register creates a principal and signs it in.
func (c *Client) Register(ctx context.Context, category domainauth.Category, in ports.Registration) (ports.Grant, error) {
	body := make(map[string]any, len(in.Extra)+4)
	for k, v := range in.Extra {
		body[k] = v
	}
	body["name"] = in.Name
	body["email"] = in.Email
	body["password"] = in.Password
	if in.Phone != "" {
		body["phone"] = in.Phone
	}
	return c.grant(ctx, category, OpRegister, body)
}

func (c *Client) grant(ctx context.Context, category domainauth.Category, op Op, body any) (ports.Grant, error) {
	data, err := c.do(ctx, category, op, http.MethodPost, body, "")
	if err != nil {
		return ports.Grant{}, err
	}

	var resp authResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return ports.Grant{}, malformed(op, err)
	}
	if !resp.Success {
		return ports.Grant{}, rejected(op, http.StatusOK, extractMessage(data))
	}

	token := strings.TrimSpace(resp.Token)
	if token == "" {
		return ports.Grant{}, malformed(op, errors.New("response carries no token"))
	}
	identity, err := decodeIdentity(resp.User)
	if err != nil {
		return ports.Grant{}, malformed(op, err)
	}

	granted := category
	if resp.UserType != "" {
		if granted, err = domainauth.ParseCategory(resp.UserType); err != nil {
			return ports.Grant{}, malformed(op, err)
		}
	}

	return ports.Grant{Token: token, Identity: identity, Category: granted}, nil
}

// Verify validates token against the category's verify endpoint.
func (c *Client) Verify(ctx context.Context, category domainauth.Category, token string) (domainauth.Identity, error) {
	if strings.TrimSpace(token) == "" {
		return nil, apperrors.New(apperrors.ErrCodeUnauthorized, "No session token")
	}
	data, err := c.do(ctx, category, OpVerify, http.MethodGet, nil, token)
	if err != nil {
		return nil, err
	}

	var resp verifyResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, malformed(OpVerify, err)
	}
	if !resp.Success {
		return nil, rejected(OpVerify, http.StatusOK, extractMessage(data))
	}
	identity, err := decodeIdentity(resp.User)
	if err != nil {
		return nil, malformed(OpVerify, err)
	}
	return identity, nil
}

// do performs the request and returns the body of a 2xx response.
func (c *Client) do(ctx context.Context, category domainauth.Category, op Op, method string, body any, token string) ([]byte, error) {
	path, err := Endpoint(category, op)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "Unsupported account type")
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "encode request body")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "create request")
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(token))
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "credential request failed",
			"op", op, "category", category.String(), "request_id", requestID, "error", err)
		return nil, apperrors.Wrap(&Error{Op: op, Err: err}, apperrors.ErrCodeTransport, transportMessage(ctx, err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, apperrors.Wrap(&Error{Op: op, Status: resp.StatusCode, Err: err},
			apperrors.ErrCodeTransport, "Could not read the server response")
	}

	c.logger.DebugContext(ctx, "credential request completed",
		"op", op,
		"category", category.String(),
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
		"request_id", requestID,
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, rejected(op, resp.StatusCode, extractMessage(data))
	}
	return data, nil
}

// rejected normalises an application-level refusal. A refused verify always
// means the token is unusable; a refused login or register means bad input.
func rejected(op Op, status int, msg string) error {
	code := apperrors.ErrCodeInvalidCredentials
	fallback := defaultMessage(op)
	if op == OpVerify {
		code = apperrors.ErrCodeUnauthorized
		if status == http.StatusUnauthorized {
			fallback = "Your session has expired"
		}
	}
	return apperrors.Wrap(&Error{Op: op, Status: status, Message: msg}, code, orDefault(msg, fallback))
}

func malformed(op Op, err error) error {
	return apperrors.Wrap(&Error{Op: op, Err: err}, apperrors.ErrCodeMalformed, "Unexpected response from the server")
}

func defaultMessage(op Op) string {
	switch op {
	case OpLogin:
		return "Login failed"
	case OpRegister:
		return "Registration failed"
	case OpVerify:
		return "Session verification failed"
	default:
		return "Request failed"
	}
}

func transportMessage(ctx context.Context, err error) string {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "The server took too long to respond"
	}
	return "Could not reach the server"
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func extractMessage(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		text := strings.TrimSpace(string(data))
		if len(text) > 200 || strings.HasPrefix(text, "<") {
			return ""
		}
		return text
	}
	if m := strings.TrimSpace(payload.Message); m != "" {
		return m
	}
	return strings.TrimSpace(payload.Error)
}

func decodeIdentity(raw json.RawMessage) (domainauth.Identity, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, errors.New("response carries no user record")
	}
	var identity domainauth.Identity
	if err := json.Unmarshal(raw, &identity); err != nil {
		return nil, fmt.Errorf("user record is not an object: %w", err)
	}
	return identity, nil
}
