package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Client is an admin client for the hosted auth provider's REST API.
// Accounts, sessions and token issuance all live on the provider side;
// this client only asks it to mint links and users.
type Client struct {
	baseURL    string
	serviceKey string
	redirectTo string
	client     *http.Client
	logger     *zap.Logger
}

// TokenSet is the credential triple embedded in a generated action link.
type TokenSet struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Type         string `json:"type"`
}

// New creates an auth admin client.
func New(baseURL, serviceKey, redirectTo string, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		serviceKey: serviceKey,
		redirectTo: redirectTo,
		client:     &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

type generateLinkRequest struct {
	Type    string `json:"type"`
	Email   string `json:"email"`
	Options struct {
		RedirectTo string `json:"redirect_to,omitempty"`
	} `json:"options"`
}

type generateLinkResponse struct {
	ActionLink string `json:"action_link"`
}

// GenerateMagicLink asks the provider for a passwordless sign-in link.
func (c *Client) GenerateMagicLink(ctx context.Context, email string) (string, error) {
	return c.generateLink(ctx, "magiclink", email)
}

// GenerateRecoveryLink asks the provider for a password recovery link.
// Used by the contact import instead of setting a password.
func (c *Client) GenerateRecoveryLink(ctx context.Context, email string) (string, error) {
	return c.generateLink(ctx, "recovery", email)
}

func (c *Client) generateLink(ctx context.Context, linkType, email string) (string, error) {
	req := generateLinkRequest{Type: linkType, Email: email}
	req.Options.RedirectTo = c.redirectTo

	var resp generateLinkResponse
	if err := c.post(ctx, "/admin/generate_link", req, &resp); err != nil {
		return "", fmt.Errorf("generate %s link: %w", linkType, err)
	}
	if resp.ActionLink == "" {
		return "", fmt.Errorf("provider returned empty action link")
	}

	return resp.ActionLink, nil
}

type createUserRequest struct {
	Email        string         `json:"email"`
	EmailConfirm bool           `json:"email_confirm"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
}

// CreateUser provisions a hosted-auth account with a confirmed email
// and no password.
func (c *Client) CreateUser(ctx context.Context, email, fullName string) error {
	req := createUserRequest{Email: email, EmailConfirm: true}
	if fullName != "" {
		req.UserMetadata = map[string]any{"full_name": fullName}
	}

	if err := c.post(ctx, "/admin/users", req, nil); err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	return nil
}

// ExtractTokens parses the credential triple out of an action link. The
// provider puts tokens in the URL fragment; some versions use query
// parameters instead, so both are checked.
func ExtractTokens(link string) (TokenSet, error) {
	u, err := url.Parse(link)
	if err != nil {
		return TokenSet{}, fmt.Errorf("parse action link: %w", err)
	}

	values, err := url.ParseQuery(u.Fragment)
	if err != nil || values.Get("access_token") == "" {
		values = u.Query()
	}

	set := TokenSet{
		AccessToken:  values.Get("access_token"),
		RefreshToken: values.Get("refresh_token"),
		Type:         values.Get("type"),
	}
	if set.AccessToken == "" {
		return TokenSet{}, fmt.Errorf("action link contains no access token")
	}

	return set, nil
}

type apiError struct {
	Message string `json:"msg"`
	Error   string `json:"error"`
}

func (c *Client) post(ctx context.Context, path string, body, dst any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("apikey", c.serviceKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("auth provider request failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn("failed to close response body", zap.Error(closeErr))
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		_ = json.Unmarshal(raw, &apiErr)
		msg := apiErr.Message
		if msg == "" {
			msg = apiErr.Error
		}
		return fmt.Errorf("auth provider returned HTTP %d: %s", resp.StatusCode, msg)
	}

	if dst != nil {
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	return nil
}
