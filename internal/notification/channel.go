package notification

import (
	"context"
	"fmt"
	"strings"

	"github.com/mr1hm/event-weather-alerts/internal/models"
	"github.com/mr1hm/event-weather-alerts/internal/recipients"
)

// Message is one alert rendered for delivery. Body is either the built
// notification message or the event's rendered template.
type Message struct {
	EventID   string
	EventName string
	Severity  models.Severity
	Alerts    []string
	Body      string
}

var headerBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// Subject is a single line; line breaks in the event name are flattened so
// it can be used as a mail header.
func (m Message) Subject() string {
	return fmt.Sprintf("[%s] Weather alert for %s", strings.ToUpper(string(m.Severity)), headerBreaks.Replace(m.EventName))
}

// Text is the short form used by SMS and WhatsApp.
func (m Message) Text() string {
	return m.Subject() + "\n" + m.Body
}

type Channel interface {
	Name() models.ChannelName
	// Address returns the recipient's address on this channel, or "" if
	// they have none.
	Address(r recipients.Recipient) string
	Send(ctx context.Context, r recipients.Recipient, msg Message) error
}

func optedOut(ch models.ChannelName, p models.NotificationPreferences) bool {
	switch ch {
	case models.ChannelEmail:
		return p.EmailOptOut
	case models.ChannelSMS:
		return p.SMSOptOut
	case models.ChannelWhatsApp:
		return p.WhatsAppOptOut
	default:
		return true
	}
}
