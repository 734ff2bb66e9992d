package models

import (
	"slices"
	"time"
)

type EventStatus string

const (
	EventScheduled EventStatus = "scheduled"
	EventOngoing   EventStatus = "ongoing"
	EventCompleted EventStatus = "completed"
	EventCancelled EventStatus = "cancelled"
)

type WeatherStatus string

const (
	WeatherNormal          WeatherStatus = "normal"
	WeatherOnHold          WeatherStatus = "on_hold"
	WeatherDelayed         WeatherStatus = "delayed"
	WeatherCancelled       WeatherStatus = "cancelled"
	WeatherEntryRestricted WeatherStatus = "entry_restricted"
)

// Event is owned by the ticketing side; this service only writes
// Status and WeatherStatus.
type Event struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	OrganizerID   string        `json:"organizerId"`
	Venue         string        `json:"venue"`
	Latitude      *float64      `json:"latitude,omitempty"`
	Longitude     *float64      `json:"longitude,omitempty"`
	StartsAt      time.Time     `json:"startsAt"`
	Status        EventStatus   `json:"status"`
	WeatherStatus WeatherStatus `json:"weatherStatus"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

func (e *Event) HasCoordinates() bool {
	return e.Latitude != nil && e.Longitude != nil
}

type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleEventAdmin Role = "event_admin"
	RoleAdmin      Role = "admin" // legacy event admin
	RoleStaff      Role = "staff"
	RoleAttendee   Role = "attendee"
)

// NotificationPreferences are opt-outs, so the zero value receives everything.
type NotificationPreferences struct {
	WeatherAlertsOptOut bool `json:"weatherAlertsOptOut"`
	EmailOptOut         bool `json:"emailOptOut"`
	SMSOptOut           bool `json:"smsOptOut"`
	WhatsAppOptOut      bool `json:"whatsappOptOut"`
}

type User struct {
	ID             string                  `json:"id"`
	Name           string                  `json:"name"`
	Email          string                  `json:"email"`
	Phone          string                  `json:"phone"`
	Role           Role                    `json:"role"`
	AssignedEvents []string                `json:"assignedEvents"`
	Preferences    NotificationPreferences `json:"preferences"`
	CreatedAt      time.Time               `json:"createdAt"`
}

func (u *User) IsAssignedTo(eventID string) bool {
	return slices.Contains(u.AssignedEvents, eventID)
}

// CanManage reports whether the user may administer weather alerts for the event.
func (u *User) CanManage(e *Event) bool {
	switch u.Role {
	case RoleSuperAdmin:
		return true
	case RoleEventAdmin, RoleAdmin:
		return e.OrganizerID == u.ID || u.IsAssignedTo(e.ID)
	default:
		return false
	}
}

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingPaid      BookingStatus = "paid"
	BookingCancelled BookingStatus = "cancelled"
)

type Booking struct {
	ID        string        `json:"id"`
	EventID   string        `json:"eventId"`
	UserID    string        `json:"userId"`
	Status    BookingStatus `json:"status"`
	CreatedAt time.Time     `json:"createdAt"`
}
