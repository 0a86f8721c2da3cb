package email

import (
	"context"
	"strings"
	"testing"
	"time"

	"hrportal/internal/platform/config"
)

func TestNewDisabledIsNoop(t *testing.T) {
	if _, ok := New(config.Config{}).(noopMailer); !ok {
		t.Fatal("expected noop mailer when email is disabled")
	}
	if _, ok := New(config.Config{EmailEnabled: true}).(noopMailer); !ok {
		t.Fatal("expected noop mailer without an SMTP host")
	}
	if _, ok := New(config.Config{EmailEnabled: true, SMTPHost: "mail.local", SMTPPort: 25}).(*smtpMailer); !ok {
		t.Fatal("expected smtp mailer when configured")
	}
}

func TestBuildMessage(t *testing.T) {
	at := time.Date(2026, time.March, 2, 9, 30, 0, 0, time.UTC)
	msg := string(buildMessage("hr@acme.test", "ravi@acme.test", "Leave approved\r\nBcc: x@evil.test", "Enjoy.", at))

	if !strings.Contains(msg, "Subject: Leave approved  Bcc: x@evil.test\r\n") {
		t.Fatalf("subject not flattened: %q", msg)
	}
	if !strings.Contains(msg, "Date: Mon, 02 Mar 2026 09:30:00 +0000\r\n") {
		t.Fatalf("missing date header: %q", msg)
	}
	if !strings.HasSuffix(msg, "\r\n\r\nEnjoy.") {
		t.Fatalf("body not separated from headers: %q", msg)
	}
}

func TestSendSkipsEmptyRecipient(t *testing.T) {
	m := &smtpMailer{host: "127.0.0.1", port: 1}
	if err := m.Send(context.Background(), "hr@acme.test", " ", "s", "b"); err != nil {
		t.Fatalf("expected no dial for an empty recipient, got %v", err)
	}
}
