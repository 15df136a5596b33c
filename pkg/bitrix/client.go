// Package bitrix implements the CRM transport over the Bitrix24 REST API.
package bitrix

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"

	matchErrors "github.com/vukmarkovic/Europace-sub000/pkg/errors"
	"github.com/vukmarkovic/Europace-sub000/pkg/httpclient"
	"github.com/vukmarkovic/Europace-sub000/pkg/metrics"
	"github.com/vukmarkovic/Europace-sub000/pkg/models"
	"github.com/vukmarkovic/Europace-sub000/pkg/tracing"
)

const (
	// MaxBatchCalls is the portal's limit of commands per batch request.
	MaxBatchCalls = 50
	// maxListPages bounds list pagination at 50 records per page.
	maxListPages = 200

	DefaultOAuthURL = "https://oauth.bitrix.info/oauth/token/"

	tokenSkew = time.Minute
)

// AuthStore loads and refreshes portal installations.
type AuthStore interface {
	Get(ctx context.Context, id string) (models.Auth, error)
	UpdateTokens(ctx context.Context, id, accessToken, refreshToken string, expiresAt time.Time) error
}

type Config struct {
	ClientID     string
	ClientSecret string
	OAuthURL     string
	// Scheme of portal URLs, https unless talking to a local stub.
	Scheme string
}

type Client struct {
	http   *httpclient.Client
	auths  AuthStore
	config Config
	logger ectologger.Logger
}

func NewClient(http *httpclient.Client, auths AuthStore, config Config, logger ectologger.Logger) *Client {
	if config.OAuthURL == "" {
		config.OAuthURL = DefaultOAuthURL
	}
	if config.Scheme == "" {
		config.Scheme = "https"
	}
	return &Client{
		http:   http,
		auths:  auths,
		config: config,
		logger: logger,
	}
}

// apiError is the error body of a rejected REST call.
type apiError struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

func (e apiError) String() string {
	if e.Description == "" {
		return e.Error
	}
	return e.Error + ": " + e.Description
}

// session resolves the portal and a valid access token, refreshing an expiring one.
func (c *Client) session(ctx context.Context, tenant string) (models.Auth, error) {
	auth, err := c.auths.Get(ctx, tenant)
	if err != nil {
		return models.Auth{}, err
	}
	if auth.ExpiresAt.IsZero() || time.Now().Add(tokenSkew).Before(auth.ExpiresAt) {
		return auth, nil
	}
	return c.refresh(ctx, auth)
}

func (c *Client) refresh(ctx context.Context, auth models.Auth) (models.Auth, error) {
	ctx, span := tracing.StartSpan(ctx, "bitrix.Client.refresh")
	defer span.End()

	query := url.Values{}
	query.Set("grant_type", "refresh_token")
	query.Set("client_id", c.config.ClientID)
	query.Set("client_secret", c.config.ClientSecret)
	query.Set("refresh_token", auth.RefreshToken)

	resp, err := c.http.Get(ctx, c.config.OAuthURL+"?"+query.Encode(), nil)
	if err != nil {
		return models.Auth{}, tracing.RecordError(span, err)
	}
	metrics.BitrixRequestsTotal.WithLabelValues("oauth.refresh", strconv.Itoa(resp.StatusCode)).Inc()

	var body struct {
		apiError
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
	}
	_ = resp.JSON(&body)
	if !httpclient.IsSuccessStatus(resp.StatusCode) || body.AccessToken == "" {
		return models.Auth{}, tracing.RecordError(span,
			matchErrors.NewAccessDeniedError(fmt.Errorf("token refresh rejected with status %d: %s", resp.StatusCode, body.apiError)))
	}

	auth.AccessToken = body.AccessToken
	auth.RefreshToken = body.RefreshToken
	auth.ExpiresAt = time.Now().Add(time.Duration(body.ExpiresIn) * time.Second).UTC()
	if err := c.auths.UpdateTokens(ctx, auth.ID, auth.AccessToken, auth.RefreshToken, auth.ExpiresAt); err != nil {
		return models.Auth{}, err
	}

	c.logger.WithContext(ctx).WithField("auth_id", auth.ID).Info("Refreshed portal token")
	return auth, nil
}

func (c *Client) methodURL(auth models.Auth, method string) string {
	domain := strings.TrimSuffix(auth.Domain, "/")
	return fmt.Sprintf("%s://%s/rest/%s.json?auth=%s", c.config.Scheme, domain, method, url.QueryEscape(auth.AccessToken))
}

// post sends params to one REST method and decodes the envelope into out.
func (c *Client) post(ctx context.Context, auth models.Auth, method, form string, out any) (int, error) {
	resp, err := c.http.PostForm(ctx, c.methodURL(auth, method), form, nil)
	if err != nil {
		return 0, err
	}
	metrics.BitrixRequestsTotal.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()

	if httpclient.IsAuthStatus(resp.StatusCode) {
		var body apiError
		_ = resp.JSON(&body)
		return resp.StatusCode, matchErrors.NewAccessDeniedError(fmt.Errorf("%s rejected with status %d: %s", method, resp.StatusCode, body))
	}
	if err := resp.JSON(out); err != nil {
		return resp.StatusCode, fmt.Errorf("%s returned status %d: %w", method, resp.StatusCode, err)
	}
	return resp.StatusCode, nil
}

// asMap accepts the portal's empty PHP arrays ([]) as empty maps.
func asMap(value any) map[string]any {
	switch v := value.(type) {
	case map[string]any:
		return v
	case []any:
		out := make(map[string]any, len(v))
		for i, item := range v {
			out[strconv.Itoa(i)] = item
		}
		return out
	default:
		return map[string]any{}
	}
}

func isServerError(status int) bool {
	return status >= http.StatusInternalServerError
}
