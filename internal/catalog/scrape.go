package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/codeGROOVE-dev/retry"
	"go.uber.org/zap"
)

// Scraper extracts session titles from course platform pages. Only the
// page title is needed; the URL itself is the natural key.
type Scraper struct {
	client *http.Client
	logger *zap.Logger
}

// NewScraper creates a scraper with the given HTTP client. A nil client
// gets a sensible default timeout.
func NewScraper(client *http.Client, logger *zap.Logger) *Scraper {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Scraper{client: client, logger: logger}
}

// FetchTitle fetches the page at pageURL and extracts its title.
func (s *Scraper) FetchTitle(ctx context.Context, pageURL string) (string, error) {
	var title string

	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("create request: %w", err))
			}
			req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36")
			req.Header.Set("Accept", "text/html,application/xhtml+xml")

			resp, err := s.client.Do(req)
			if err != nil {
				s.logger.Warn("scrape request failed, will retry",
					zap.String("url", pageURL),
					zap.Error(err),
				)
				return err
			}
			defer func() {
				if closeErr := resp.Body.Close(); closeErr != nil {
					s.logger.Warn("failed to close response body", zap.Error(closeErr))
				}
			}()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("HTTP %d", resp.StatusCode)
			}

			title, err = extractTitle(resp.Body)
			if err != nil {
				return retry.Unrecoverable(err)
			}

			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(30*time.Second),
		retry.MaxJitter(2*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Info("retrying scrape", zap.Uint("attempt", n), zap.Error(err))
		}),
	)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", pageURL, err)
	}

	return title, nil
}

func extractTitle(body io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	title := strings.TrimSpace(doc.Find("h1").First().Text())
	if title == "" {
		// Fall back to the <title> tag, dropping any site-name suffix.
		raw := strings.TrimSpace(doc.Find("title").First().Text())
		if idx := strings.Index(raw, " | "); idx > 0 {
			raw = raw[:idx]
		}
		title = strings.TrimSpace(raw)
	}
	if title == "" {
		return "", fmt.Errorf("no title found in page")
	}

	return title, nil
}
