package models

import "time"

const (
	MinPollingInterval     = 5
	MaxPollingInterval     = 1440
	DefaultPollingInterval = 60
)

type Thresholds struct {
	TemperatureMin float64 `json:"temperatureMin"`
	TemperatureMax float64 `json:"temperatureMax"`
	RainfallMax    float64 `json:"rainfallMax"`
	WindSpeedMax   float64 `json:"windSpeedMax"`
	HumidityMax    float64 `json:"humidityMax"`
}

type Conditions struct {
	Thunderstorm bool `json:"thunderstorm"`
	HeavyRain    bool `json:"heavyRain"`
	Snow         bool `json:"snow"`
	ExtremeHeat  bool `json:"extremeHeat"`
	Fog          bool `json:"fog"`
	Tornado      bool `json:"tornado"`
}

type RoleFlags struct {
	SuperAdmin bool `json:"superAdmin"`
	EventAdmin bool `json:"eventAdmin"`
	Staff      bool `json:"staff"`
	Attendee   bool `json:"attendee"`
}

// Allows reports whether the role is flagged. Legacy admins ride on the
// event admin flag.
func (f RoleFlags) Allows(r Role) bool {
	switch r {
	case RoleSuperAdmin:
		return f.SuperAdmin
	case RoleEventAdmin, RoleAdmin:
		return f.EventAdmin
	case RoleStaff:
		return f.Staff
	case RoleAttendee:
		return f.Attendee
	default:
		return false
	}
}

func (f RoleFlags) Union(o RoleFlags) RoleFlags {
	return RoleFlags{
		SuperAdmin: f.SuperAdmin || o.SuperAdmin,
		EventAdmin: f.EventAdmin || o.EventAdmin,
		Staff:      f.Staff || o.Staff,
		Attendee:   f.Attendee || o.Attendee,
	}
}

type ChannelSettings struct {
	Enabled    bool      `json:"enabled"`
	Recipients RoleFlags `json:"recipients"`
}

type NotificationSettings struct {
	Email    ChannelSettings `json:"email"`
	SMS      ChannelSettings `json:"sms"`
	WhatsApp ChannelSettings `json:"whatsapp"`
}

// Recipients is the union of role flags across enabled channels.
func (n NotificationSettings) Recipients() RoleFlags {
	var flags RoleFlags
	for _, ch := range []ChannelSettings{n.Email, n.SMS, n.WhatsApp} {
		if ch.Enabled {
			flags = flags.Union(ch.Recipients)
		}
	}
	return flags
}

type ChannelName string

const (
	ChannelEmail    ChannelName = "email"
	ChannelSMS      ChannelName = "sms"
	ChannelWhatsApp ChannelName = "whatsapp"
)

func (n NotificationSettings) For(ch ChannelName) ChannelSettings {
	switch ch {
	case ChannelEmail:
		return n.Email
	case ChannelSMS:
		return n.SMS
	case ChannelWhatsApp:
		return n.WhatsApp
	default:
		return ChannelSettings{}
	}
}

type ActionRule struct {
	Enabled   bool     `json:"enabled"`
	Threshold Severity `json:"threshold"`
	// RequireManualApproval is only honoured for markCancelled.
	RequireManualApproval bool `json:"requireManualApproval,omitempty"`
}

type AutomationSettings struct {
	MarkOnHold    ActionRule `json:"markOnHold"`
	MarkDelayed   ActionRule `json:"markDelayed"`
	MarkCancelled ActionRule `json:"markCancelled"`
	RestrictEntry ActionRule `json:"restrictEntry"`
}

type AutomationAction string

const (
	ActionMarkOnHold    AutomationAction = "markOnHold"
	ActionMarkDelayed   AutomationAction = "markDelayed"
	ActionMarkCancelled AutomationAction = "markCancelled"
	ActionRestrictEntry AutomationAction = "restrictEntry"
)

// AutomationActions is the fixed evaluation order.
var AutomationActions = []AutomationAction{
	ActionMarkOnHold,
	ActionMarkDelayed,
	ActionMarkCancelled,
	ActionRestrictEntry,
}

func (a AutomationSettings) Rule(action AutomationAction) ActionRule {
	switch action {
	case ActionMarkOnHold:
		return a.MarkOnHold
	case ActionMarkDelayed:
		return a.MarkDelayed
	case ActionMarkCancelled:
		return a.MarkCancelled
	case ActionRestrictEntry:
		return a.RestrictEntry
	default:
		return ActionRule{}
	}
}

// AlertConfig is the per-event weather alert configuration, keyed by event id.
type AlertConfig struct {
	EventID         string               `json:"eventId"`
	Enabled         bool                 `json:"enabled"`
	Units           Units                `json:"units"`
	Thresholds      Thresholds           `json:"thresholds"`
	Conditions      Conditions           `json:"conditions"`
	Notifications   NotificationSettings `json:"notifications"`
	Automation      AutomationSettings   `json:"automation"`
	PollingInterval int                  `json:"pollingInterval"` // minutes
	Template        string               `json:"template,omitempty"`
	LastChecked     *time.Time           `json:"lastChecked,omitempty"`
	CreatedBy       string               `json:"createdBy,omitempty"`
	UpdatedBy       string               `json:"updatedBy,omitempty"`
	CreatedAt       time.Time            `json:"createdAt"`
	UpdatedAt       time.Time            `json:"updatedAt"`
	Persisted       bool                 `json:"persisted"`
}

// DefaultAlertConfig is what callers see before an event has been configured.
// It is never written until an explicit update.
func DefaultAlertConfig(eventID string) *AlertConfig {
	return &AlertConfig{
		EventID: eventID,
		Enabled: false,
		Units:   UnitsMetric,
		Thresholds: Thresholds{
			TemperatureMin: 0,
			TemperatureMax: 35,
			RainfallMax:    10,
			WindSpeedMax:   40,
			HumidityMax:    90,
		},
		Conditions: Conditions{
			Thunderstorm: true,
			HeavyRain:    true,
			Snow:         true,
			ExtremeHeat:  true,
			Fog:          true,
			Tornado:      true,
		},
		Notifications: NotificationSettings{
			Email: ChannelSettings{
				Enabled:    true,
				Recipients: RoleFlags{SuperAdmin: true, EventAdmin: true},
			},
			SMS: ChannelSettings{
				Recipients: RoleFlags{SuperAdmin: true, EventAdmin: true},
			},
			WhatsApp: ChannelSettings{},
		},
		Automation: AutomationSettings{
			MarkOnHold:    ActionRule{Threshold: SeverityWarning},
			MarkDelayed:   ActionRule{Threshold: SeverityWarning},
			MarkCancelled: ActionRule{Threshold: SeverityWarning, RequireManualApproval: true},
			RestrictEntry: ActionRule{Threshold: SeverityWarning},
		},
		PollingInterval: DefaultPollingInterval,
	}
}

func ClampPollingInterval(minutes int) int {
	return max(MinPollingInterval, min(minutes, MaxPollingInterval))
}

// Normalize clamps the polling interval and fills enum defaults in place.
func (c *AlertConfig) Normalize() {
	c.PollingInterval = ClampPollingInterval(c.PollingInterval)
	c.Units = c.Units.OrDefault()
	for _, r := range []*ActionRule{
		&c.Automation.MarkOnHold,
		&c.Automation.MarkDelayed,
		&c.Automation.MarkCancelled,
		&c.Automation.RestrictEntry,
	} {
		if !r.Threshold.AtLeast(SeverityCaution) {
			r.Threshold = SeverityWarning
		}
	}
}

// SystemConfigID is the fixed key of the SystemConfig singleton.
const SystemConfigID = "global"

type SystemConfig struct {
	ID                     string    `json:"id"`
	Enabled                bool      `json:"enabled"`
	AutoPolling            bool      `json:"autoPolling"`
	DefaultPollingInterval int       `json:"defaultPollingInterval"`
	AllowedRoles           []Role    `json:"allowedRoles"`
	RequireApproval        bool      `json:"requireApproval"`
	UpdatedBy              string    `json:"updatedBy,omitempty"`
	UpdatedAt              time.Time `json:"updatedAt"`
}

func DefaultSystemConfig() *SystemConfig {
	return &SystemConfig{
		ID:                     SystemConfigID,
		Enabled:                true,
		AutoPolling:            true,
		DefaultPollingInterval: DefaultPollingInterval,
		AllowedRoles:           []Role{RoleSuperAdmin, RoleEventAdmin, RoleAdmin},
		RequireApproval:        false,
	}
}

func (s *SystemConfig) Normalize() {
	s.ID = SystemConfigID
	s.DefaultPollingInterval = ClampPollingInterval(s.DefaultPollingInterval)
}

// RoleAllowed always admits super admins so the feature cannot lock itself out.
func (s *SystemConfig) RoleAllowed(r Role) bool {
	if r == RoleSuperAdmin {
		return true
	}
	for _, allowed := range s.AllowedRoles {
		if allowed == r {
			return true
		}
	}
	return false
}

// PollingInterval resolves the effective interval for an event config.
func (s *SystemConfig) PollingInterval(cfg *AlertConfig) time.Duration {
	minutes := cfg.PollingInterval
	if minutes <= 0 {
		minutes = s.DefaultPollingInterval
	}
	return time.Duration(ClampPollingInterval(minutes)) * time.Minute
}
