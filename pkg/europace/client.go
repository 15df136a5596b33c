// Package europace is the client of the Europace loan API: tokens, sign-in links and cases.
package europace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"

	matchErrors "github.com/vukmarkovic/Europace-sub000/pkg/errors"
	"github.com/vukmarkovic/Europace-sub000/pkg/expressions"
	"github.com/vukmarkovic/Europace-sub000/pkg/httpclient"
	"github.com/vukmarkovic/Europace-sub000/pkg/metrics"
	"github.com/vukmarkovic/Europace-sub000/pkg/tracing"
)

const (
	DefaultTokenPath   = "access_token"
	DefaultExpiresPath = "expires_in"
	DefaultCaseIDPath  = "vorgangsnummer"

	// DefaultTokenTTL applies when the token response carries no expiry
	DefaultTokenTTL = time.Hour
	tokenSkew       = time.Minute

	cacheKeyPrefix = "europace:token:"
)

// ErrTokenExtractionFailed is returned when the token response has no token at TokenPath.
var ErrTokenExtractionFailed = errors.New("failed to extract token from response")

// Cache stores access tokens between requests.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

type Config struct {
	TokenURL     string
	APIURL       string
	SignInURL    string
	ClientID     string
	ClientSecret string
	// TokenPath, ExpiresPath and CaseIDPath are JMESPath expressions into the API responses.
	TokenPath   string
	ExpiresPath string
	CaseIDPath  string
}

type Client struct {
	http      *httpclient.Client
	cache     Cache
	evaluator *expressions.Evaluator
	config    Config
	logger    ectologger.Logger
}

func NewClient(http *httpclient.Client, cache Cache, evaluator *expressions.Evaluator, config Config, logger ectologger.Logger) *Client {
	if config.TokenPath == "" {
		config.TokenPath = DefaultTokenPath
	}
	if config.ExpiresPath == "" {
		config.ExpiresPath = DefaultExpiresPath
	}
	if config.CaseIDPath == "" {
		config.CaseIDPath = DefaultCaseIDPath
	}
	config.APIURL = strings.TrimSuffix(config.APIURL, "/")
	return &Client{
		http:      http,
		cache:     cache,
		evaluator: evaluator,
		config:    config,
		logger:    logger,
	}
}

// Token returns an access token acting for partnerID, from cache when still valid.
func (c *Client) Token(ctx context.Context, partnerID string) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "europace.Client.Token")
	defer span.End()

	key := c.cacheKey(partnerID)
	if token, err := c.cache.Get(ctx, key); err == nil && token != "" {
		return token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.config.ClientID)
	form.Set("client_secret", c.config.ClientSecret)
	if partnerID != "" {
		form.Set("subject", partnerID)
	}

	resp, err := c.http.PostForm(ctx, c.config.TokenURL, form.Encode(), nil)
	if err != nil {
		return "", tracing.RecordError(span, err)
	}
	metrics.EuropaceRequestsTotal.WithLabelValues("token", strconv.Itoa(resp.StatusCode)).Inc()

	if httpclient.IsAuthStatus(resp.StatusCode) {
		return "", tracing.RecordError(span, matchErrors.NewAccessDeniedError(fmt.Errorf("token exchange rejected with status %d", resp.StatusCode)))
	}
	if !httpclient.IsSuccessStatus(resp.StatusCode) {
		return "", tracing.RecordError(span, fmt.Errorf("token exchange returned status %d", resp.StatusCode))
	}

	var body any
	if err := resp.JSON(&body); err != nil {
		return "", tracing.RecordError(span, err)
	}
	token, err := c.evaluator.String(c.config.TokenPath, body)
	if err != nil || token == "" {
		return "", tracing.RecordError(span, fmt.Errorf("%w: token_path=%s", ErrTokenExtractionFailed, c.config.TokenPath))
	}

	ttl := DefaultTokenTTL
	if expiresIn, err := c.evaluator.Int(c.config.ExpiresPath, body); err == nil && expiresIn > 0 {
		ttl = time.Duration(expiresIn)*time.Second - tokenSkew
	}
	if ttl > 0 {
		if err := c.cache.Set(ctx, key, token, ttl); err != nil {
			c.logger.WithContext(ctx).WithError(err).Warn("Failed to cache Europace token")
		}
	}
	return token, nil
}

// InvalidateToken drops the cached token of partnerID.
func (c *Client) InvalidateToken(ctx context.Context, partnerID string) error {
	return c.cache.Del(ctx, c.cacheKey(partnerID))
}

// SignInURL builds the silent sign-in link opening caseID, or the case list when empty.
func (c *Client) SignInURL(ctx context.Context, partnerID, caseID string) (string, error) {
	token, err := c.Token(ctx, partnerID)
	if err != nil {
		return "", err
	}

	u, err := url.Parse(c.config.SignInURL)
	if err != nil {
		return "", fmt.Errorf("invalid sign-in url: %w", err)
	}
	query := u.Query()
	query.Set("access_token", token)
	if caseID != "" {
		query.Set(DefaultCaseIDPath, caseID)
	}
	u.RawQuery = query.Encode()
	return u.String(), nil
}

// CreateCase creates a case and returns its number.
func (c *Client) CreateCase(ctx context.Context, partnerID string, payload map[string]any) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "europace.Client.CreateCase")
	defer span.End()

	body, err := c.do(ctx, "create_case", partnerID, http.MethodPost, "/v1/vorgaenge", payload)
	if err != nil {
		return "", tracing.RecordError(span, err)
	}

	caseID, err := c.evaluator.String(c.config.CaseIDPath, body)
	if err != nil || caseID == "" {
		return "", tracing.RecordError(span, fmt.Errorf("case number missing at %s", c.config.CaseIDPath))
	}
	c.logger.WithContext(ctx).WithField("case_id", caseID).Info("Created Europace case")
	return caseID, nil
}

func (c *Client) UpdateCase(ctx context.Context, partnerID, caseID string, payload map[string]any) error {
	ctx, span := tracing.StartSpan(ctx, "europace.Client.UpdateCase")
	defer span.End()

	_, err := c.do(ctx, "update_case", partnerID, http.MethodPatch, "/v1/vorgaenge/"+url.PathEscape(caseID), payload)
	return tracing.RecordError(span, err)
}

func (c *Client) GetCase(ctx context.Context, partnerID, caseID string) (map[string]any, error) {
	ctx, span := tracing.StartSpan(ctx, "europace.Client.GetCase")
	defer span.End()

	body, err := c.do(ctx, "get_case", partnerID, http.MethodGet, "/v1/vorgaenge/"+url.PathEscape(caseID), nil)
	if err != nil {
		return nil, tracing.RecordError(span, err)
	}
	out, _ := body.(map[string]any)
	return out, nil
}

// ReassignEditor hands caseID over to another partner.
func (c *Client) ReassignEditor(ctx context.Context, partnerID, caseID, editorID string) error {
	ctx, span := tracing.StartSpan(ctx, "europace.Client.ReassignEditor")
	defer span.End()

	_, err := c.do(ctx, "reassign_editor", partnerID, http.MethodPut, "/v1/vorgaenge/"+url.PathEscape(caseID)+"/bearbeiter",
		map[string]any{"partnerId": editorID})
	return tracing.RecordError(span, err)
}

// do sends an authorized request. A rejected token is dropped from the cache.
func (c *Client) do(ctx context.Context, operation, partnerID, method, path string, payload any) (any, error) {
	token, err := c.Token(ctx, partnerID)
	if err != nil {
		return nil, err
	}

	headers := map[string]string{"Authorization": "Bearer " + token}
	var resp *httpclient.Response
	if payload == nil {
		resp, err = c.http.Get(ctx, c.config.APIURL+path, headers)
	} else {
		resp, err = c.http.SendJSON(ctx, method, c.config.APIURL+path, payload, headers)
	}
	if err != nil {
		return nil, err
	}
	metrics.EuropaceRequestsTotal.WithLabelValues(operation, strconv.Itoa(resp.StatusCode)).Inc()

	if httpclient.IsAuthStatus(resp.StatusCode) {
		if err := c.InvalidateToken(ctx, partnerID); err != nil {
			c.logger.WithContext(ctx).WithError(err).Warn("Failed to drop rejected Europace token")
		}
		return nil, matchErrors.NewAccessDeniedError(fmt.Errorf("%s rejected with status %d", operation, resp.StatusCode))
	}
	if !httpclient.IsSuccessStatus(resp.StatusCode) {
		return nil, fmt.Errorf("%s returned status %d: %s", operation, resp.StatusCode, truncate(resp.Body))
	}

	if len(resp.Body) == 0 {
		return nil, nil
	}
	var body any
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil, fmt.Errorf("%s returned invalid JSON: %w", operation, err)
	}
	return body, nil
}

func (c *Client) cacheKey(partnerID string) string {
	return cacheKeyPrefix + c.config.ClientID + ":" + partnerID
}

func truncate(body []byte) string {
	const limit = 256
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
