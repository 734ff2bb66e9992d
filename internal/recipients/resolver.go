package recipients

import (
	"context"
	"fmt"
	"strings"

	"github.com/mr1hm/event-weather-alerts/internal/models"
)

// Recipient is a resolved user tagged with the role they matched first.
type Recipient struct {
	UserID      string                         `json:"userId"`
	Name        string                         `json:"name"`
	Email       string                         `json:"email"`
	Phone       string                         `json:"phone"`
	Role        models.Role                    `json:"role"`
	Preferences models.NotificationPreferences `json:"preferences"`
}

type Directory interface {
	ListUsersByRoles(ctx context.Context, roles ...models.Role) ([]models.User, error)
	ListAttendees(ctx context.Context, eventID string) ([]models.User, error)
}

type Resolver struct {
	dir Directory
}

func NewResolver(dir Directory) *Resolver {
	return &Resolver{dir: dir}
}

// Resolve expands role flags into users in the order super admins, event
// admins, staff, attendees. Each contact appears once.
func (r *Resolver) Resolve(ctx context.Context, event *models.Event, flags models.RoleFlags) ([]Recipient, error) {
	var (
		out  []Recipient
		seen = make(map[string]bool)
	)
	add := func(u models.User, tag models.Role) {
		key := contactKey(u)
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, Recipient{
			UserID:      u.ID,
			Name:        u.Name,
			Email:       u.Email,
			Phone:       u.Phone,
			Role:        tag,
			Preferences: u.Preferences,
		})
	}

	if flags.SuperAdmin {
		users, err := r.dir.ListUsersByRoles(ctx, models.RoleSuperAdmin)
		if err != nil {
			return nil, fmt.Errorf("list super admins: %w", err)
		}
		for _, u := range users {
			add(u, models.RoleSuperAdmin)
		}
	}

	if flags.EventAdmin {
		users, err := r.dir.ListUsersByRoles(ctx, models.RoleEventAdmin, models.RoleAdmin)
		if err != nil {
			return nil, fmt.Errorf("list event admins: %w", err)
		}
		for _, u := range users {
			if u.ID == event.OrganizerID || u.IsAssignedTo(event.ID) {
				add(u, models.RoleEventAdmin)
			}
		}
	}

	if flags.Staff {
		users, err := r.dir.ListUsersByRoles(ctx, models.RoleStaff)
		if err != nil {
			return nil, fmt.Errorf("list staff: %w", err)
		}
		for _, u := range users {
			if u.IsAssignedTo(event.ID) {
				add(u, models.RoleStaff)
			}
		}
	}

	if flags.Attendee {
		users, err := r.dir.ListAttendees(ctx, event.ID)
		if err != nil {
			return nil, fmt.Errorf("list attendees: %w", err)
		}
		for _, u := range users {
			if !u.Preferences.WeatherAlertsOptOut {
				add(u, models.RoleAttendee)
			}
		}
	}

	return out, nil
}

// contactKey prefers the email address, then the phone number, then the id.
func contactKey(u models.User) string {
	if email := strings.ToLower(strings.TrimSpace(u.Email)); email != "" {
		return "email:" + email
	}
	if phone := normalizePhone(u.Phone); phone != "" {
		return "phone:" + phone
	}
	return "id:" + u.ID
}

func normalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if (r >= '0' && r <= '9') || (r == '+' && b.Len() == 0) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
