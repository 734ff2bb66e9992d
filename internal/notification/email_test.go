package notification

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/mr1hm/event-weather-alerts/internal/config"
	"github.com/mr1hm/event-weather-alerts/internal/models"
	"github.com/mr1hm/event-weather-alerts/internal/recipients"
)

func TestEmailChannel_Send(t *testing.T) {
	var (
		gotAddr string
		gotTo   []string
		gotMsg  string
		gotAuth smtp.Auth
	)
	ch := NewEmailChannel(config.SMTPConfig{Host: "smtp.example.com", Port: 587, Username: "u", Password: "p", From: "alerts@example.com"})
	ch.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotAuth, gotTo, gotMsg = addr, a, to, string(msg)
		return nil
	}

	msg := Message{
		EventName: "Open Air <Live>",
		Severity:  models.SeverityWarning,
		Alerts:    []string{"[WARNING] Extreme heat: 42.0°C"},
		Body:      "line one\nline two",
	}
	if err := ch.Send(context.Background(), recipients.Recipient{Email: "fan@example.com"}, msg); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if gotAddr != "smtp.example.com:587" || gotAuth == nil {
		t.Errorf("unexpected smtp target %s (auth %v)", gotAddr, gotAuth)
	}
	if len(gotTo) != 1 || gotTo[0] != "fan@example.com" {
		t.Errorf("unexpected recipients %v", gotTo)
	}
	for _, want := range []string{
		"Subject: [WARNING] Weather alert for Open Air <Live>",
		"Content-Type: text/html",
		"Open Air &lt;Live&gt;",
		"<li>[WARNING] Extreme heat: 42.0°C</li>",
		"line one<br>",
	} {
		if !strings.Contains(gotMsg, want) {
			t.Errorf("expected message to contain %q", want)
		}
	}
}

func TestEmailChannel_SubjectCannotInjectHeaders(t *testing.T) {
	var gotMsg string
	ch := NewEmailChannel(config.SMTPConfig{Host: "smtp.example.com", Port: 25, From: "alerts@example.com"})
	ch.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotMsg = string(msg)
		return nil
	}

	msg := Message{
		EventName: "Gala\r\nBcc: victim@example.com\nX-Injected: yes",
		Severity:  models.SeverityCaution,
	}
	if err := ch.Send(context.Background(), recipients.Recipient{Email: "fan@example.com"}, msg); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	headers, _, _ := strings.Cut(gotMsg, "\r\n\r\n")
	for _, line := range strings.Split(headers, "\r\n") {
		if strings.HasPrefix(line, "Bcc:") || strings.HasPrefix(line, "X-Injected:") {
			t.Errorf("unexpected injected header %q", line)
		}
	}
	if !strings.Contains(headers, "Subject: [CAUTION] Weather alert for Gala Bcc: victim@example.com X-Injected: yes") {
		t.Errorf("expected flattened subject, got headers %q", headers)
	}
	if strings.ContainsAny(msg.Subject(), "\r\n") {
		t.Errorf("expected single-line subject, got %q", msg.Subject())
	}
}

func TestEmailChannel_Errors(t *testing.T) {
	unconfigured := NewEmailChannel(config.SMTPConfig{})
	if err := unconfigured.Send(context.Background(), recipients.Recipient{Email: "a@example.com"}, Message{}); !errors.Is(err, models.ErrChannelNotConfigured) {
		t.Errorf("expected ErrChannelNotConfigured, got %v", err)
	}

	boom := errors.New("connection refused")
	ch := NewEmailChannel(config.SMTPConfig{Host: "smtp.example.com", Port: 25, From: "alerts@example.com"})
	ch.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		if a != nil {
			t.Error("expected no auth without a username")
		}
		return boom
	}
	if err := ch.Send(context.Background(), recipients.Recipient{Email: "a@example.com"}, Message{}); !errors.Is(err, boom) {
		t.Errorf("expected wrapped send error, got %v", err)
	}
}
