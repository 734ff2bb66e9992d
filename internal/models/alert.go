package models

import "time"

type Trigger string

const (
	TriggerAuto   Trigger = "auto"
	TriggerManual Trigger = "manual"
)

type DeliveryStatus string

const (
	DeliverySent   DeliveryStatus = "sent"
	DeliveryFailed DeliveryStatus = "failed"
)

type DeliveryRecord struct {
	Recipient string         `json:"recipient"`
	UserID    string         `json:"userId,omitempty"`
	Role      Role           `json:"role"`
	Status    DeliveryStatus `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Error     string         `json:"error,omitempty"`
}

type ChannelDelivery struct {
	Sent       int              `json:"sent"`
	Failed     int              `json:"failed"`
	Recipients []DeliveryRecord `json:"recipients"`
}

func (d *ChannelDelivery) Record(r DeliveryRecord) {
	switch r.Status {
	case DeliverySent:
		d.Sent++
	default:
		d.Failed++
	}
	d.Recipients = append(d.Recipients, r)
}

type Deliveries struct {
	Email    ChannelDelivery `json:"email"`
	SMS      ChannelDelivery `json:"sms"`
	WhatsApp ChannelDelivery `json:"whatsapp"`
}

func (d *Deliveries) Channel(ch ChannelName) *ChannelDelivery {
	switch ch {
	case ChannelEmail:
		return &d.Email
	case ChannelSMS:
		return &d.SMS
	case ChannelWhatsApp:
		return &d.WhatsApp
	default:
		return nil
	}
}

func (d Deliveries) TotalSent() int {
	return d.Email.Sent + d.SMS.Sent + d.WhatsApp.Sent
}

func (d Deliveries) TotalFailed() int {
	return d.Email.Failed + d.SMS.Failed + d.WhatsApp.Failed
}

type AutomationRecord struct {
	Action           AutomationAction `json:"action"`
	RequiresApproval bool             `json:"requiresApproval"`
	Approved         bool             `json:"approved"`
	ApprovedBy       string           `json:"approvedBy,omitempty"`
	ApprovedAt       *time.Time       `json:"approvedAt,omitempty"`
	Executed         bool             `json:"executed"`
	ExecutedBy       string           `json:"executedBy,omitempty"`
	ExecutedAt       *time.Time       `json:"executedAt,omitempty"`
	Error            string           `json:"error,omitempty"`
}

func (r AutomationRecord) Pending() bool {
	return r.RequiresApproval && !r.Executed
}

// AlertLog is the audit record of one triggered evaluation. Only approval,
// execution and acknowledgement fields change after creation.
type AlertLog struct {
	ID             string             `json:"id"`
	EventID        string             `json:"eventId"`
	AlertType      string             `json:"alertType"`
	Severity       Severity           `json:"severity"`
	Weather        WeatherSnapshot    `json:"weather"`
	Risks          []RiskFinding      `json:"risks"`
	Message        string             `json:"message"`
	Notifications  Deliveries         `json:"notifications"`
	Actions        []AutomationRecord `json:"actions"`
	Trigger        Trigger            `json:"trigger"`
	TriggeredBy    string             `json:"triggeredBy,omitempty"`
	Acknowledged   bool               `json:"acknowledged"`
	AcknowledgedBy string             `json:"acknowledgedBy,omitempty"`
	AcknowledgedAt *time.Time         `json:"acknowledgedAt,omitempty"`
	CreatedAt      time.Time          `json:"createdAt"`
}

func (l *AlertLog) PendingApprovals() int {
	n := 0
	for _, a := range l.Actions {
		if a.Pending() {
			n++
		}
	}
	return n
}
