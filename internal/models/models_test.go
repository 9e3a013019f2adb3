package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("18:30")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay{Hour: 18, Minute: 30}, tod)

	tod, err = ParseTimeOfDay("07:05:09")
	require.NoError(t, err)
	assert.Equal(t, "07:05:09", tod.String())

	for _, bad := range []string{"", "25:00", "6pm", "12:61"} {
		_, err := ParseTimeOfDay(bad)
		assert.Error(t, err, bad)
	}
}

func TestTimeOfDayJSON(t *testing.T) {
	var s EventSeries
	require.NoError(t, json.Unmarshal([]byte(`{"title":"x","end_time":"16:45"}`), &s))
	require.NotNil(t, s.EndTime)
	assert.Equal(t, 16, s.EndTime.Hour)

	out, err := json.Marshal(s.EndTime)
	require.NoError(t, err)
	assert.Equal(t, `"16:45:00"`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"end_time":"noon"}`), &s))
}

func TestTimeOfDayDuration(t *testing.T) {
	tod := TimeOfDayFromDuration(13*time.Hour + 7*time.Minute + 3*time.Second)
	assert.Equal(t, TimeOfDay{Hour: 13, Minute: 7, Second: 3}, tod)
	assert.Equal(t, 13*time.Hour+7*time.Minute+3*time.Second, tod.SinceMidnight())
	assert.Equal(t, TimeOfDay{Hour: 1}, TimeOfDayFromDuration(25*time.Hour))
}

func TestTimeOfDayOn(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	// 02:00 UTC on the 15th is still the 14th in New York.
	date := time.Date(2026, 7, 15, 2, 0, 0, 0, time.UTC)
	got := TimeOfDay{Hour: 21}.On(date, ny)
	assert.Equal(t, 14, got.Day())
	assert.Equal(t, time.Date(2026, 7, 15, 1, 0, 0, 0, time.UTC), got.UTC())
}

func TestRoles(t *testing.T) {
	r, ok := ParseRole("student_leader")
	assert.True(t, ok)
	assert.Equal(t, RoleStudentLeader, r)
	_, ok = ParseRole("superuser")
	assert.False(t, ok)

	for _, r := range []Role{RolePA, RoleFaculty, RoleStudentLeader, RoleAdmin} {
		assert.True(t, r.CanActOnBehalf(), r)
	}
	assert.False(t, RoleUser.CanActOnBehalf())
	assert.False(t, Role("").Valid())
	assert.True(t, RoleAdmin.IsAdmin())
}

func TestOrganizationRoles(t *testing.T) {
	assert.True(t, CanManageEvents(OrgRoleOwner))
	assert.True(t, CanManageEvents(OrgRoleEventManager))
	assert.False(t, CanManageEvents(OrgRoleMember))
	assert.False(t, CanManageEvents(""))
}

func TestReservationIsProxy(t *testing.T) {
	u := uuid.New()
	assert.False(t, (&Reservation{UserID: u, SignedUpBy: u}).IsProxy())
	assert.True(t, (&Reservation{UserID: u, SignedUpBy: uuid.New()}).IsProxy())
}
