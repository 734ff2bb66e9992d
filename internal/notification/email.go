package notification

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
	"time"

	"github.com/mr1hm/event-weather-alerts/internal/config"
	"github.com/mr1hm/event-weather-alerts/internal/models"
	"github.com/mr1hm/event-weather-alerts/internal/recipients"
)

var emailTemplate = template.Must(template.New("alert").Parse(`<html>
<body style="font-family: sans-serif">
<h2>Weather alert: {{.EventName}}</h2>
<p><strong>Severity:</strong> {{.Severity}}</p>
{{if .Alerts}}<ul>
{{range .Alerts}}<li>{{.}}</li>
{{end}}</ul>
{{end}}<p>{{range .Lines}}{{.}}<br>
{{end}}</p>
<hr>
<p style="color: #888">Event Weather Alerts</p>
</body>
</html>
`))

type SendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type EmailChannel struct {
	cfg      config.SMTPConfig
	sendMail SendMailFunc
}

func NewEmailChannel(cfg config.SMTPConfig) *EmailChannel {
	return &EmailChannel{cfg: cfg, sendMail: smtp.SendMail}
}

func (e *EmailChannel) Name() models.ChannelName { return models.ChannelEmail }

func (e *EmailChannel) Address(r recipients.Recipient) string { return r.Email }

func (e *EmailChannel) Send(ctx context.Context, r recipients.Recipient, msg Message) error {
	if e.cfg.Host == "" || e.cfg.From == "" {
		return models.ErrChannelNotConfigured
	}

	body, err := renderEmail(msg)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	message := fmt.Sprintf("From: %s\r\n", e.cfg.From)
	message += fmt.Sprintf("To: %s\r\n", r.Email)
	message += fmt.Sprintf("Subject: %s\r\n", msg.Subject())
	message += fmt.Sprintf("Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	message += "MIME-Version: 1.0\r\n"
	message += "Content-Type: text/html; charset=UTF-8\r\n"
	message += "\r\n"
	message += body

	var auth smtp.Auth
	if e.cfg.Username != "" {
		auth = smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.Host)
	}
	addr := fmt.Sprintf("%s:%d", e.cfg.Host, e.cfg.Port)

	// net/smtp has no context support; abandon the wait on cancellation.
	errCh := make(chan error, 1)
	go func() {
		errCh <- e.sendMail(addr, auth, e.cfg.From, []string{r.Email}, []byte(message))
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to send email: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func renderEmail(msg Message) (string, error) {
	data := struct {
		EventName string
		Severity  string
		Alerts    []string
		Lines     []string
	}{
		EventName: msg.EventName,
		Severity:  strings.ToUpper(string(msg.Severity)),
		Alerts:    msg.Alerts,
		Lines:     strings.Split(msg.Body, "\n"),
	}

	var buf bytes.Buffer
	if err := emailTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
