package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"go.uber.org/zap"

	"github.com/beaconcoach/beacon/internal/circuitbreaker"
)

// Product is a course product pulled from the Kajabi API.
type Product struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	VideoURL    string     `json:"video_url"`
	Instructor  string     `json:"instructor"`
	Category    string     `json:"category"`
	Tags        []string   `json:"tags"`
	Offerings   []Offering `json:"offerings"`
}

// Offering is a purchasable variant of a product.
type Offering struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Contact is a CRM contact pulled from the Kajabi API.
type Contact struct {
	ID    string   `json:"id"`
	Email string   `json:"email"`
	Name  string   `json:"name"`
	Tags  []string `json:"tags"`
}

// KajabiClient talks to the course platform API using a
// client-credentials OAuth grant. The platform is external and
// uncontrolled, so every call goes through a circuit breaker and
// bounded retries.
type KajabiClient struct {
	baseURL      string
	clientID     string
	clientSecret string
	client       *http.Client
	breaker      *circuitbreaker.CircuitBreaker
	logger       *zap.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewKajabiClient creates a client for the given API base URL.
func NewKajabiClient(baseURL, clientID, clientSecret string, breaker *circuitbreaker.CircuitBreaker, logger *zap.Logger) *KajabiClient {
	return &KajabiClient{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		client:       &http.Client{Timeout: 30 * time.Second},
		breaker:      breaker,
		logger:       logger,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// token returns a cached access token, fetching a fresh one via the
// client-credentials grant when the cache is empty or near expiry.
func (c *KajabiClient) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Until(c.tokenExpiry) > time.Minute {
		return c.accessToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn("failed to close response body", zap.Error(closeErr))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("token grant returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("token grant returned empty access_token")
	}

	c.accessToken = tok.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)

	return c.accessToken, nil
}

// Products fetches all products with their offerings.
func (c *KajabiClient) Products(ctx context.Context) ([]Product, error) {
	var out struct {
		Products []Product `json:"products"`
	}
	if err := c.get(ctx, "/v1/products", &out); err != nil {
		return nil, err
	}
	return out.Products, nil
}

// Contacts fetches all CRM contacts.
func (c *KajabiClient) Contacts(ctx context.Context) ([]Contact, error) {
	var out struct {
		Contacts []Contact `json:"contacts"`
	}
	if err := c.get(ctx, "/v1/contacts", &out); err != nil {
		return nil, err
	}
	return out.Contacts, nil
}

// get performs an authenticated GET and decodes the body into dst.
func (c *KajabiClient) get(ctx context.Context, path string, dst any) error {
	if !c.breaker.Allow() {
		return circuitbreaker.ErrCircuitOpen
	}

	err := retry.Do(
		func() error {
			token, err := c.token(ctx)
			if err != nil {
				return err
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("create request: %w", err))
			}
			req.Header.Set("Authorization", "Bearer "+token)
			req.Header.Set("Accept", "application/json")

			resp, err := c.client.Do(req)
			if err != nil {
				return fmt.Errorf("request failed: %w", err)
			}
			defer func() {
				if closeErr := resp.Body.Close(); closeErr != nil {
					c.logger.Warn("failed to close response body", zap.Error(closeErr))
				}
			}()

			if resp.StatusCode == http.StatusUnauthorized {
				// Token may have been revoked; drop the cache so the
				// next attempt re-grants.
				c.mu.Lock()
				c.accessToken = ""
				c.mu.Unlock()
				return fmt.Errorf("HTTP %d", resp.StatusCode)
			}
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("HTTP %d", resp.StatusCode)
			}

			if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
				return retry.Unrecoverable(fmt.Errorf("decode response: %w", err))
			}

			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(10*time.Second),
		retry.MaxJitter(time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Info("retrying kajabi request",
				zap.String("path", path),
				zap.Uint("attempt", n),
				zap.Error(err),
			)
		}),
	)
	if err != nil {
		c.breaker.RecordFailure()
		return fmt.Errorf("kajabi %s: %w", path, err)
	}

	c.breaker.RecordSuccess()
	return nil
}
