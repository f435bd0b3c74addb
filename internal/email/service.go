package email

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/kuitang/shop-e2e/internal/logutil"
	"github.com/kuitang/shop-e2e/internal/obs"
)

// EmailService defines the interface for sending emails.
type EmailService interface {
	// Send sends an email using the specified template.
	// Parameters:
	//   - to: recipient email address
	//   - templateName: name of the email template (e.g., "welcome", "goodbye")
	//   - data: template data (varies by template)
	Send(to, templateName string, data any) error
}

// SentEmail represents a captured email for testing.
type SentEmail struct {
	To       string
	Template string
	Data     any
}

// MockEmailService is a mock implementation that captures emails for testing.
type MockEmailService struct {
	mu        sync.Mutex
	Emails    []SentEmail
	outboxDir string
	seq       uint64
}

// NewMockEmailService creates a new mock email service. When
// MOCK_EMAIL_OUTBOX_DIR is set, each email is also written there as JSON.
func NewMockEmailService() *MockEmailService {
	m := &MockEmailService{Emails: make([]SentEmail, 0)}
	outboxDir := os.Getenv("MOCK_EMAIL_OUTBOX_DIR")
	if outboxDir == "" {
		return m
	}
	if err := os.MkdirAll(outboxDir, 0o755); err != nil {
		obs.Pkg("email").Warn("outbox_dir_create_failed", "dir", outboxDir, "error", err)
		return m
	}
	m.outboxDir = outboxDir
	return m
}

// Send captures the email instead of sending it and logs for manual testing.
func (m *MockEmailService) Send(to, templateName string, data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Emails = append(m.Emails, SentEmail{
		To:       to,
		Template: templateName,
		Data:     data,
	})

	event := outboxEmailEvent{
		To:             to,
		Template:       templateName,
		SentAtUnixNano: time.Now().UnixNano(),
	}
	switch d := data.(type) {
	case WelcomeData:
		event.Name = d.Name
		event.Link = d.LoginURL
	case GoodbyeData:
		event.Name = d.Name
	case SubscribedData:
		event.Link = d.ShopURL
	default:
		event.RawData = fmt.Sprintf("%+v", data)
	}
	obs.Pkg("email").Info("mock_email_sent",
		"to", logutil.MaskEmail(to),
		"template", templateName,
		"name", event.Name,
	)

	return m.writeOutboxEvent(event)
}

// LastEmail returns the most recently sent email.
// Returns zero value if no emails have been sent.
func (m *MockEmailService) LastEmail() SentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Emails) == 0 {
		return SentEmail{}
	}
	return m.Emails[len(m.Emails)-1]
}

// EmailsTo returns captured emails addressed to the recipient, oldest first.
func (m *MockEmailService) EmailsTo(to string) []SentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []SentEmail
	for _, e := range m.Emails {
		if strings.EqualFold(e.To, to) {
			out = append(out, e)
		}
	}
	return out
}

// Clear removes all captured emails.
func (m *MockEmailService) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Emails = make([]SentEmail, 0)
}

// Count returns the number of captured emails.
func (m *MockEmailService) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Emails)
}

type outboxEmailEvent struct {
	Sequence       uint64 `json:"sequence"`
	To             string `json:"to"`
	Template       string `json:"template"`
	Link           string `json:"link,omitempty"`
	Name           string `json:"name,omitempty"`
	RawData        string `json:"raw_data,omitempty"`
	SentAtUnixNano int64  `json:"sent_at_unix_nano"`
}

func (m *MockEmailService) writeOutboxEvent(event outboxEmailEvent) error {
	if m.outboxDir == "" {
		return nil
	}

	m.seq++
	event.Sequence = m.seq

	fileName := fmt.Sprintf(
		"%020d-%020d-%s-%s.json",
		event.Sequence,
		event.SentAtUnixNano,
		SanitizeFileComponent(event.Template),
		SanitizeFileComponent(event.To),
	)
	finalPath := filepath.Join(m.outboxDir, fileName)
	tempPath := finalPath + ".tmp"

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal outbox event: %w", err)
	}
	if err := os.WriteFile(tempPath, payload, 0o644); err != nil {
		return fmt.Errorf("write outbox temp file: %w", err)
	}
	if err := os.Rename(tempPath, finalPath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("rename outbox file: %w", err)
	}
	return nil
}

var outboxSanitizePattern = regexp.MustCompile(`[^a-zA-Z0-9._@-]+`)

// SanitizeFileComponent makes input safe to embed in a file name.
func SanitizeFileComponent(input string) string {
	safe := strings.TrimSpace(input)
	if safe == "" {
		return "unknown"
	}
	return outboxSanitizePattern.ReplaceAllString(safe, "_")
}
