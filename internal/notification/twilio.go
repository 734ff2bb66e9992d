package notification

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/mr1hm/event-weather-alerts/internal/config"
	"github.com/mr1hm/event-weather-alerts/internal/models"
	"github.com/mr1hm/event-weather-alerts/internal/recipients"
)

const twilioAPIHost = "https://api.twilio.com"

// TwilioClient wraps the Twilio REST client shared by the SMS and WhatsApp channels.
type TwilioClient struct {
	rest      *twilio.RestClient
	transport *http.Transport
	ok        bool
}

// NewTwilioClient builds a REST client for cfg. A BaseURL other than the
// public API host reroutes every request to it.
func NewTwilioClient(cfg config.TwilioConfig, timeout time.Duration) *TwilioClient {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	httpClient := &http.Client{Timeout: timeout, Transport: transport}
	if base := strings.TrimRight(cfg.BaseURL, "/"); base != "" && base != twilioAPIHost {
		if u, err := url.Parse(base); err == nil && u.Host != "" {
			httpClient.Transport = &rerouteTransport{target: u, next: transport}
		}
	}

	base := &twilioclient.Client{
		Credentials: twilioclient.NewCredentials(cfg.AccountSID, cfg.AuthToken),
		HTTPClient:  httpClient,
	}
	base.SetAccountSid(cfg.AccountSID)

	return &TwilioClient{
		rest: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username:   cfg.AccountSID,
			Password:   cfg.AuthToken,
			AccountSid: cfg.AccountSID,
			Client:     base,
		}),
		transport: transport,
		ok:        cfg.AccountSID != "" && cfg.AuthToken != "",
	}
}

func (c *TwilioClient) configured() bool {
	return c != nil && c.ok
}

// SendMessage returns the provider message sid.
func (c *TwilioClient) SendMessage(ctx context.Context, from, to, body string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(from)
	params.SetTo(to)
	params.SetBody(body)

	resp, err := c.rest.Api.CreateMessage(params)
	if err != nil {
		return "", fmt.Errorf("error sending message: %w", err)
	}

	sid := deref(resp.Sid)
	status := deref(resp.Status)
	if status == "failed" || status == "undelivered" || resp.ErrorCode != nil {
		return sid, fmt.Errorf("message %s %s: %s", sid, status, deref(resp.ErrorMessage))
	}
	return sid, nil
}

// CloseIdleConnections releases pooled connections held by the client.
func (c *TwilioClient) CloseIdleConnections() {
	c.transport.CloseIdleConnections()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// rerouteTransport sends requests to target, keeping path and query.
type rerouteTransport struct {
	target *url.URL
	next   http.RoundTripper
}

func (t *rerouteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	out.URL.Scheme = t.target.Scheme
	out.URL.Host = t.target.Host
	out.URL.Path = strings.TrimRight(t.target.Path, "/") + req.URL.Path
	out.Host = t.target.Host
	return t.next.RoundTrip(out)
}

type SMSChannel struct {
	client *TwilioClient
	from   string
}

func NewSMSChannel(client *TwilioClient, from string) *SMSChannel {
	return &SMSChannel{client: client, from: from}
}

func (s *SMSChannel) Name() models.ChannelName { return models.ChannelSMS }

func (s *SMSChannel) Address(r recipients.Recipient) string { return r.Phone }

func (s *SMSChannel) Send(ctx context.Context, r recipients.Recipient, msg Message) error {
	if !s.client.configured() || s.from == "" {
		return models.ErrChannelNotConfigured
	}
	_, err := s.client.SendMessage(ctx, s.from, r.Phone, msg.Text())
	return err
}

type WhatsAppChannel struct {
	client *TwilioClient
	from   string
}

func NewWhatsAppChannel(client *TwilioClient, from string) *WhatsAppChannel {
	return &WhatsAppChannel{client: client, from: from}
}

func (w *WhatsAppChannel) Name() models.ChannelName { return models.ChannelWhatsApp }

func (w *WhatsAppChannel) Address(r recipients.Recipient) string { return r.Phone }

func (w *WhatsAppChannel) Send(ctx context.Context, r recipients.Recipient, msg Message) error {
	if !w.client.configured() || w.from == "" {
		return models.ErrChannelNotConfigured
	}
	_, err := w.client.SendMessage(ctx, whatsappAddress(w.from), whatsappAddress(r.Phone), msg.Text())
	return err
}

func whatsappAddress(phone string) string {
	if strings.HasPrefix(phone, "whatsapp:") {
		return phone
	}
	return "whatsapp:" + phone
}
