// Package mailer defines the mail-sending collaborator contract used by
// the login engine and ships a development file-sink implementation.
package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Mailer sends a single plain-text email.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// FileSink writes each outgoing message as an .eml file under Dir and
// remembers the most recently written path, so tests can locate the
// one-shot token embedded in a login email without a real mail server.
type FileSink struct {
	Dir string

	mu       sync.Mutex
	lastPath string
}

func (f *FileSink) Send(ctx context.Context, to, subject, body string) error {
	if err := os.MkdirAll(f.Dir, 0o700); err != nil {
		return err
	}
	name := fmt.Sprintf("%d-%s.eml", time.Now().UnixNano(), sanitize(to))
	path := filepath.Join(f.Dir, name)

	content := fmt.Sprintf("To: %s\r\nSubject: %s\r\n\r\n%s\r\n", to, subject, body)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return err
	}

	f.mu.Lock()
	f.lastPath = path
	f.mu.Unlock()
	return nil
}

// LastPath returns the most recently written .eml path, for tests.
func (f *FileSink) LastPath() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastPath
}

func sanitize(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '@' || r == '.' || r == '-' || r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out = append(out, r)
		} else {
			out = append(out, '_')
		}
	}
	return string(out)
}

// SMTPMailer sends mail through a real SMTP relay.
type SMTPMailer struct {
	Addr string // host:port
	From string
	Auth smtp.Auth
}

func (s *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	msg := fmt.Sprintf("To: %s\r\nSubject: %s\r\n\r\n%s\r\n", to, subject, body)
	return smtp.SendMail(s.Addr, s.Auth, s.From, []string{to}, []byte(msg))
}

// LoginEmailBody renders the plain-text login email. The code is the
// body's only 12-character whitespace-delimited token; tests locate it
// by that property.
func LoginEmailBody(email, token string) string {
	return fmt.Sprintf(
		"A login code was requested for your account (%s).\n\nCode: %s\n\nIf you did not request the code, you may safely ignore this email.\n",
		email, token,
	)
}
