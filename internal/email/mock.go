package email

import (
	"context"
	"sync"
)

// SentEmail records one Send call on the mock provider.
type SentEmail struct {
	To      string
	Subject string
	HTML    string
}

// MockProvider records sends for tests and can be programmed to fail.
type MockProvider struct {
	mu   sync.Mutex
	Sent []SentEmail
	Err  error
}

func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

func (p *MockProvider) Send(ctx context.Context, to, subject, htmlBody string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Err != nil {
		return p.Err
	}

	p.Sent = append(p.Sent, SentEmail{To: to, Subject: subject, HTML: htmlBody})
	return nil
}

// SentCount returns the number of successful sends.
func (p *MockProvider) SentCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Sent)
}
