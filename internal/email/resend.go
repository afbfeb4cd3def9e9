package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const defaultResendEndpoint = "https://api.resend.com/emails"

// ResendProvider sends emails via the Resend HTTP API.
type ResendProvider struct {
	apiKey   string
	fromAddr string
	fromName string
	endpoint string
	client   *http.Client
	logger   *zap.Logger
}

// NewResendProvider creates a new Resend email provider.
func NewResendProvider(apiKey, fromAddr, fromName string, logger *zap.Logger) *ResendProvider {
	return &ResendProvider{
		apiKey:   apiKey,
		fromAddr: fromAddr,
		fromName: fromName,
		endpoint: defaultResendEndpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger,
	}
}

type resendSendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type resendErrorResponse struct {
	Message string `json:"message"`
}

// Send sends one email. Non-2xx responses come back as errors with the
// upstream status. There is no retry here; a failed dispatch is retried
// on the next polling tick when the unsent row is read again.
func (p *ResendProvider) Send(ctx context.Context, to, subject, htmlBody string) error {
	reqBody := resendSendRequest{
		From:    fmt.Sprintf("%s <%s>", p.fromName, p.fromAddr),
		To:      []string{to},
		Subject: subject,
		HTML:    htmlBody,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("resend request failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			p.logger.Warn("failed to close response body", zap.Error(closeErr))
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr resendErrorResponse
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		_ = json.Unmarshal(body, &apiErr)
		return fmt.Errorf("resend returned HTTP %d: %s", resp.StatusCode, apiErr.Message)
	}

	p.logger.Info("email sent via resend",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.Duration("duration", time.Since(start)),
	)

	return nil
}
