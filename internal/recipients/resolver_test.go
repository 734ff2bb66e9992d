package recipients

import (
	"context"
	"errors"
	"testing"

	"github.com/mr1hm/event-weather-alerts/internal/models"
)

type mockDirectory struct {
	users     []models.User
	attendees map[string][]models.User
	err       error
}

func (m *mockDirectory) ListUsersByRoles(ctx context.Context, roles ...models.Role) ([]models.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []models.User
	for _, u := range m.users {
		for _, r := range roles {
			if u.Role == r {
				out = append(out, u)
				break
			}
		}
	}
	return out, nil
}

func (m *mockDirectory) ListAttendees(ctx context.Context, eventID string) ([]models.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.attendees[eventID], nil
}

func testDirectory() *mockDirectory {
	return &mockDirectory{
		users: []models.User{
			{ID: "sa1", Email: "root@example.com", Role: models.RoleSuperAdmin},
			{ID: "ea1", Email: "organizer@example.com", Role: models.RoleEventAdmin},
			{ID: "ea2", Email: "assigned@example.com", Role: models.RoleEventAdmin, AssignedEvents: []string{"evt-1"}},
			{ID: "ea3", Email: "other@example.com", Role: models.RoleEventAdmin, AssignedEvents: []string{"evt-2"}},
			{ID: "ad1", Email: "legacy@example.com", Role: models.RoleAdmin, AssignedEvents: []string{"evt-1"}},
			{ID: "st1", Email: "staff@example.com", Role: models.RoleStaff, AssignedEvents: []string{"evt-1"}},
			{ID: "st2", Email: "idle@example.com", Role: models.RoleStaff},
		},
		attendees: map[string][]models.User{
			"evt-1": {
				{ID: "at1", Email: "fan@example.com", Role: models.RoleAttendee},
				{ID: "at2", Email: "quiet@example.com", Role: models.RoleAttendee, Preferences: models.NotificationPreferences{WeatherAlertsOptOut: true}},
				// Same person as the assigned staff member.
				{ID: "st1", Email: " Staff@Example.com ", Role: models.RoleStaff},
				{ID: "at3", Phone: "+61 400 000 000", Role: models.RoleAttendee},
				{ID: "at4", Phone: "+61-400-000-000", Role: models.RoleAttendee},
			},
		},
	}
}

func ids(rs []Recipient) []string {
	var out []string
	for _, r := range rs {
		out = append(out, r.UserID)
	}
	return out
}

func TestResolver_Resolve(t *testing.T) {
	event := &models.Event{ID: "evt-1", OrganizerID: "ea1"}

	tests := []struct {
		name  string
		flags models.RoleFlags
		want  []string
	}{
		{"none", models.RoleFlags{}, nil},
		{"super admins", models.RoleFlags{SuperAdmin: true}, []string{"sa1"}},
		{"event admins include organizer, assigned and legacy admins", models.RoleFlags{EventAdmin: true}, []string{"ea1", "ea2", "ad1"}},
		{"staff must be assigned", models.RoleFlags{Staff: true}, []string{"st1"}},
		{"attendees honour opt-out and dedup by phone", models.RoleFlags{Attendee: true}, []string{"at1", "st1", "at3"}},
		{
			"everyone, first role wins",
			models.RoleFlags{SuperAdmin: true, EventAdmin: true, Staff: true, Attendee: true},
			[]string{"sa1", "ea1", "ea2", "ad1", "st1", "at1", "at3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(testDirectory())
			got, err := r.Resolve(context.Background(), event, tt.flags)
			if err != nil {
				t.Fatalf("Resolve failed: %v", err)
			}
			gotIDs := ids(got)
			if len(gotIDs) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, gotIDs)
			}
			for i := range tt.want {
				if gotIDs[i] != tt.want[i] {
					t.Errorf("expected %v, got %v", tt.want, gotIDs)
					break
				}
			}
		})
	}
}

func TestResolver_RoleTags(t *testing.T) {
	event := &models.Event{ID: "evt-1", OrganizerID: "ea1"}
	r := NewResolver(testDirectory())

	got, err := r.Resolve(context.Background(), event, models.RoleFlags{EventAdmin: true, Staff: true, Attendee: true})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	want := map[string]models.Role{
		"ad1": models.RoleEventAdmin,
		"st1": models.RoleStaff,
		"at1": models.RoleAttendee,
	}
	for _, rec := range got {
		if role, ok := want[rec.UserID]; ok && rec.Role != role {
			t.Errorf("%s: expected role %s, got %s", rec.UserID, role, rec.Role)
		}
	}
}

func TestResolver_ContactsAreUnique(t *testing.T) {
	event := &models.Event{ID: "evt-1", OrganizerID: "ea1"}
	r := NewResolver(testDirectory())

	for mask := 0; mask < 16; mask++ {
		flags := models.RoleFlags{
			SuperAdmin: mask&1 != 0,
			EventAdmin: mask&2 != 0,
			Staff:      mask&4 != 0,
			Attendee:   mask&8 != 0,
		}
		got, err := r.Resolve(context.Background(), event, flags)
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		seen := make(map[string]bool)
		for _, rec := range got {
			key := contactKey(models.User{ID: rec.UserID, Email: rec.Email, Phone: rec.Phone})
			if seen[key] {
				t.Errorf("flags %+v: duplicate contact %s", flags, key)
			}
			seen[key] = true
		}
	}
}

func TestResolver_DirectoryError(t *testing.T) {
	boom := errors.New("db down")
	r := NewResolver(&mockDirectory{err: boom})

	_, err := r.Resolve(context.Background(), &models.Event{ID: "evt-1"}, models.RoleFlags{SuperAdmin: true})
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped directory error, got %v", err)
	}
}
