// Package compliance provides a client for the Delphix Compliance Engine masking API.
package compliance

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/delphix/dlpxdbprofiler/pkg/apperrors"
	"github.com/delphix/dlpxdbprofiler/pkg/config"
	"github.com/delphix/dlpxdbprofiler/pkg/jsonutil"
	"github.com/delphix/dlpxdbprofiler/pkg/logging"
)

const (
	// DefaultTimeout is used when the configuration does not set one.
	DefaultTimeout = 60 * time.Second

	// DefaultPageSize is the page size requested from list endpoints.
	DefaultPageSize = 100

	// maxPages bounds list pagination against an engine that misreports totals.
	maxPages = 10000
)

// Client provides access to the compliance engine API.
// It is safe for concurrent use; the login token is obtained once, lazily.
type Client struct {
	httpClient *http.Client
	logger     *zap.Logger
	baseURL    string
	apiBase    string
	username   string
	password   string
	pageSize   int

	tokenMu sync.Mutex
	token   string
}

// NewClient creates a compliance engine client from configuration.
func NewClient(cfg config.ComplianceConfig, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	apiBase, err := buildURL(cfg.BaseURL, "masking", "api", cfg.APIVersion)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindConfiguration, "compliance.NewClient", err, "invalid DBP_CE_BASE_URL")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !cfg.VerifySSL {
		// Engines commonly run with self-signed certificates.
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		logger:   logger.Named("compliance"),
		baseURL:  cfg.BaseURL,
		apiBase:  apiBase,
		username: cfg.Username,
		password: cfg.Password,
		pageSize: DefaultPageSize,
	}, nil
}

// Login authenticates and caches the Authorization token.
// Other methods call it on demand, so calling it explicitly is optional.
func (c *Client) Login(ctx context.Context) error {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	return c.loginLocked(ctx)
}

func (c *Client) loginLocked(ctx context.Context) error {
	c.logger.Info("Logging in to compliance engine",
		zap.String("url", c.baseURL),
		zap.String("username", c.username))

	var resp struct {
		Authorization string `json:"Authorization"`
	}
	body := map[string]string{"username": c.username, "password": c.password}
	if err := c.send(ctx, "compliance.Login", http.MethodPost, "", []string{"login"}, nil, body, &resp); err != nil {
		return err
	}
	if resp.Authorization == "" {
		return &apperrors.Error{
			Kind:    apperrors.KindRemoteUnavailable,
			Op:      "compliance.Login",
			Message: "login response did not include an Authorization token",
			Hint:    "check DBP_CE_API_VERSION matches the engine",
		}
	}
	c.token = resp.Authorization
	c.logger.Info("Login successful")
	return nil
}

// authorize returns the cached token, logging in first if needed.
func (c *Client) authorize(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	if c.token == "" {
		if err := c.loginLocked(ctx); err != nil {
			return "", err
		}
	}
	return c.token, nil
}

// invalidate drops token if it is still the cached one.
func (c *Client) invalidate(token string) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	if c.token == token {
		c.token = ""
	}
}

// do performs an authenticated call. An expired token (401) triggers one
// fresh login and a single resend.
func (c *Client) do(ctx context.Context, op, method string, segments []string, query url.Values, body, out any) error {
	token, err := c.authorize(ctx)
	if err != nil {
		return err
	}
	err = c.send(ctx, op, method, token, segments, query, body, out)
	if appErr := (*apperrors.Error)(nil); errors.As(err, &appErr) && appErr.Status == http.StatusUnauthorized {
		c.logger.Debug("Token rejected, logging in again", zap.String("op", op))
		c.invalidate(token)
		if token, err = c.authorize(ctx); err != nil {
			return err
		}
		return c.send(ctx, op, method, token, segments, query, body, out)
	}
	return err
}

// send executes one HTTP request and decodes the JSON response into out.
func (c *Client) send(ctx context.Context, op, method, token string, segments []string, query url.Values, body, out any) error {
	endpoint, err := buildURL(c.apiBase, segments...)
	if err != nil {
		return apperrors.Wrap(apperrors.KindInternal, op, err, "failed to build URL")
	}
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return apperrors.Wrap(apperrors.KindInternal, op, err, "failed to encode request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return apperrors.Wrap(apperrors.KindInternal, op, err, "failed to create request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", token)
	}

	c.logger.Debug("Calling compliance engine",
		zap.String("op", op),
		zap.String("method", method),
		zap.String("url", endpoint))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return apperrors.From(op, ctx.Err())
		}
		c.logger.Error("Compliance engine unreachable",
			zap.String("op", op),
			zap.String("url", endpoint),
			zap.String("error", logging.SanitizeError(err)))
		return &apperrors.Error{
			Kind:      apperrors.KindRemoteUnavailable,
			Op:        op,
			Message:   "failed to call compliance engine",
			Detail:    logging.SanitizeError(err),
			Hint:      fmt.Sprintf("check that %s is reachable and DBP_CE_BASE_URL is correct", c.baseURL),
			Retryable: true,
			Err:       err,
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &apperrors.Error{
			Kind:      apperrors.KindRemoteUnavailable,
			Op:        op,
			Message:   "failed to read response",
			Retryable: true,
			Err:       err,
		}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		appErr := c.statusError(op, method, resp.StatusCode, respBody)
		c.logger.Error("Compliance engine returned error",
			zap.String("op", op),
			zap.Int("status", resp.StatusCode),
			zap.String("kind", string(appErr.Kind)),
			zap.String("body", appErr.Detail))
		return appErr
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &apperrors.Error{
			Kind:    apperrors.KindRemoteUnavailable,
			Op:      op,
			Message: "failed to parse response",
			Detail:  logging.TruncateString(logging.SanitizeText(string(respBody)), logging.MaxBodyLogLength),
			Err:     err,
		}
	}
	return nil
}

// statusError maps an HTTP failure onto the error taxonomy.
func (c *Client) statusError(op, method string, status int, body []byte) *apperrors.Error {
	detail := logging.TruncateString(logging.SanitizeText(strings.TrimSpace(string(body))), logging.MaxBodyLogLength)
	e := &apperrors.Error{Op: op, Status: status, Detail: detail}
	lower := strings.ToLower(string(body))

	switch {
	case method == http.MethodDelete && (status == http.StatusBadRequest || status == http.StatusConflict ||
		status == http.StatusPreconditionFailed || status == http.StatusUnprocessableEntity):
		e.Kind = apperrors.KindDeleteRejected
		e.Message = "delete rejected by compliance engine"
		e.Hint = "remove dependent objects first"
	case status == http.StatusConflict,
		status == http.StatusBadRequest && (strings.Contains(lower, "already exists") || strings.Contains(lower, "duplicate")):
		e.Kind = apperrors.KindRemoteConflict
		e.Message = "object already exists"
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e.Kind = apperrors.KindRemoteUnavailable
		e.Message = "authentication rejected"
		e.Hint = "check DBP_CE_USERNAME and DBP_CE_PASSWORD"
	case status == http.StatusNotFound:
		e.Kind = apperrors.KindNotFound
		e.Message = "object not found"
	case status >= http.StatusInternalServerError || status == http.StatusTooManyRequests:
		e.Kind = apperrors.KindRemoteUnavailable
		e.Message = "compliance engine unavailable"
		e.Hint = fmt.Sprintf("check the engine at %s", c.baseURL)
		e.Retryable = true
	default:
		e.Kind = apperrors.KindRemoteUnavailable
		e.Message = "request rejected by compliance engine"
	}
	return e
}

// pageInfo is the paging envelope of CE list responses.
type pageInfo struct {
	NumberOnPage jsonutil.FlexInt `json:"numberOnPage"`
	Total        jsonutil.FlexInt `json:"total"`
}

type page[T any] struct {
	ResponseList []T      `json:"responseList"`
	PageInfo     pageInfo `json:"_pageInfo"`
}

// listAll fetches every page of a list endpoint.
func listAll[T any](ctx context.Context, c *Client, op string, query url.Values, segments ...string) ([]T, error) {
	var all []T
	for pageNumber := 1; pageNumber <= maxPages; pageNumber++ {
		q := url.Values{}
		for k, v := range query {
			q[k] = v
		}
		q.Set("page_number", strconv.Itoa(pageNumber))
		q.Set("page_size", strconv.Itoa(c.pageSize))

		var p page[T]
		if err := c.do(ctx, op, http.MethodGet, segments, q, nil, &p); err != nil {
			return nil, err
		}
		all = append(all, p.ResponseList...)

		total := int(p.PageInfo.Total)
		switch {
		case len(p.ResponseList) == 0:
			return all, nil
		case total > 0 && len(all) >= total:
			return all, nil
		case total == 0 && len(p.ResponseList) < c.pageSize:
			return all, nil
		}
	}
	return all, nil
}

// buildURL constructs a URL by parsing the base and joining path segments.
func buildURL(baseURL string, pathSegments ...string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid base URL: %q has no scheme or host", baseURL)
	}

	segments := append([]string{u.Path}, pathSegments...)
	u.Path = path.Join(segments...)

	return u.String(), nil
}

func itoa(n int) string { return strconv.Itoa(n) }

// parseTime reads the timestamp formats the engine emits. Unparseable values yield nil.
func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.000-0700", "2006-01-02T15:04:05-0700"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
