package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-06-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), d)
	assert.Equal(t, "2025-06-01", FormatDate(d))

	for _, bad := range []string{"", "2025-6-1", "01.06.2025", "2025-02-30"} {
		_, err := ParseDate(bad)
		assert.Error(t, err, bad)
	}
}

func TestValidateStartTime(t *testing.T) {
	for _, ok := range []string{"00:00", "09:30", "23:59"} {
		assert.NoError(t, ValidateStartTime(ok), ok)
	}
	for _, bad := range []string{"9:30", "24:00", "12:60", "0930", "09:30:00", " 09:30", ""} {
		assert.Error(t, ValidateStartTime(bad), bad)
	}
}

func TestParseAppointmentStatus(t *testing.T) {
	s, err := ParseAppointmentStatus("confirmed")
	require.NoError(t, err)
	assert.Equal(t, AppointmentStatusConfirmed, s)

	s, err = ParseAppointmentStatus(" Pending ")
	require.NoError(t, err)
	assert.Equal(t, AppointmentStatusPending, s)

	_, err = ParseAppointmentStatus("archived")
	assert.Error(t, err)
}

func TestAppointmentHelpers(t *testing.T) {
	a := &Appointment{PatientID: 3, DoctorID: 7, Status: AppointmentStatusPending}
	assert.True(t, a.IsPending())
	assert.True(t, a.InvolvesUser(3))
	assert.True(t, a.InvolvesUser(7))
	assert.False(t, a.InvolvesUser(8))

	a.Status = AppointmentStatusConfirmed
	assert.False(t, a.IsPending())
}
