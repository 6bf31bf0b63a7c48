package service

import (
	"context"
	"testing"
	"time"

	"github.com/Freeeeeet/clinic_scheduler/internal/apperrors"
	"github.com/Freeeeeet/clinic_scheduler/internal/model"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pendingAppointment() *model.Appointment {
	return &model.Appointment{
		ID:              11,
		PatientID:       3,
		DoctorID:        7,
		TimeSlotID:      1,
		AppointmentDate: day1,
		Status:          model.AppointmentStatusPending,
	}
}

func expectNotification(f *fixture, userID int64, message string) {
	f.mock.ExpectQuery("INSERT INTO notifications").
		WithArgs(userID, message, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(notificationIns).AddRow(int64(100), false, time.Now()))
}

func TestConfirmPendingAppointmentNotifiesPatient(t *testing.T) {
	f := newFixture(t, nil, time.Now())

	f.mock.ExpectBegin()
	f.mock.ExpectQuery("FROM appointments a").
		WithArgs(int64(11)).
		WillReturnRows(appointmentRow(pendingAppointment(), "14:30"))
	f.mock.ExpectExec("UPDATE appointments").
		WithArgs(model.AppointmentStatusConfirmed, int64(11), model.AppointmentStatusPending).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	f.mock.ExpectQuery("FROM users").
		WithArgs(int64(7)).
		WillReturnRows(userRows(7, "house", model.RoleDoctor))
	expectNotification(f, 3, "Confirmed: Your appointment with Dr. house on 2025-06-01 at 2:30 PM is confirmed.")
	f.mock.ExpectCommit()

	appt, err := f.appointments.Confirm(context.Background(), 11, 7)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusConfirmed, appt.Status)
	assert.True(t, appt.Slot.IsBooked)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestRejectReleasesSlotAndNotifiesPatient(t *testing.T) {
	f := newFixture(t, nil, time.Now())

	f.mock.ExpectBegin()
	f.mock.ExpectQuery("FROM appointments a").
		WithArgs(int64(11)).
		WillReturnRows(appointmentRow(pendingAppointment(), "09:00"))
	f.mock.ExpectExec("UPDATE appointments").
		WithArgs(model.AppointmentStatusRejected, int64(11), model.AppointmentStatusPending).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	f.mock.ExpectExec("SET is_booked = false").
		WithArgs(int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	f.mock.ExpectQuery("FROM users").
		WithArgs(int64(7)).
		WillReturnRows(userRows(7, "house", model.RoleDoctor))
	expectNotification(f, 3, "Rejected: Your appointment request for 2025-06-01 with Dr. house was rejected.")
	f.mock.ExpectCommit()

	appt, err := f.appointments.Reject(context.Background(), 11, 7)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusRejected, appt.Status)
	assert.False(t, appt.Slot.IsBooked)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestTransitionGuards(t *testing.T) {
	confirmed := pendingAppointment()
	confirmed.Status = model.AppointmentStatusConfirmed

	cases := []struct {
		name     string
		rows     func() *pgxmock.Rows
		doctorID int64
		kind     apperrors.Kind
	}{
		{"missing appointment", func() *pgxmock.Rows { return pgxmock.NewRows(appointmentCols) }, 7, apperrors.KindNotFound},
		{"another doctor", func() *pgxmock.Rows { return appointmentRow(pendingAppointment(), "09:00") }, 8, apperrors.KindAuthorization},
		{"already confirmed", func() *pgxmock.Rows { return appointmentRow(confirmed, "09:00") }, 7, apperrors.KindInvalidState},
		{"slot lost", func() *pgxmock.Rows { return appointmentRow(pendingAppointment(), "") }, 7, apperrors.KindDataIntegrity},
	}

	for _, tc := range cases {
		for _, op := range []string{"confirm", "reject"} {
			t.Run(tc.name+"/"+op, func(t *testing.T) {
				f := newFixture(t, nil, time.Now())
				f.mock.ExpectBegin()
				f.mock.ExpectQuery("FROM appointments a").WithArgs(int64(11)).WillReturnRows(tc.rows())
				f.mock.ExpectRollback()

				apply := f.appointments.Confirm
				if op == "reject" {
					apply = f.appointments.Reject
				}
				appt, err := apply(context.Background(), 11, tc.doctorID)
				assert.Nil(t, appt)
				assert.Equal(t, tc.kind, apperrors.KindOf(err), "got %v", err)
				assert.NoError(t, f.mock.ExpectationsWereMet())
			})
		}
	}
}

func TestConfirmTwiceNamesCurrentStatus(t *testing.T) {
	f := newFixture(t, nil, time.Now())
	confirmed := pendingAppointment()
	confirmed.Status = model.AppointmentStatusConfirmed

	f.mock.ExpectBegin()
	f.mock.ExpectQuery("FROM appointments a").WithArgs(int64(11)).WillReturnRows(appointmentRow(confirmed, "09:00"))
	f.mock.ExpectRollback()

	_, err := f.appointments.Confirm(context.Background(), 11, 7)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CONFIRMED")
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestTransitionLosesConcurrentUpdate(t *testing.T) {
	f := newFixture(t, nil, time.Now())

	f.mock.ExpectBegin()
	f.mock.ExpectQuery("FROM appointments a").WithArgs(int64(11)).WillReturnRows(appointmentRow(pendingAppointment(), "09:00"))
	f.mock.ExpectExec("UPDATE appointments").
		WithArgs(model.AppointmentStatusConfirmed, int64(11), model.AppointmentStatusPending).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	f.mock.ExpectRollback()

	_, err := f.appointments.Confirm(context.Background(), 11, 7)
	assert.True(t, apperrors.Is(err, apperrors.KindInvalidState))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestRejectWithVanishedSlotIsDataIntegrity(t *testing.T) {
	f := newFixture(t, nil, time.Now())

	f.mock.ExpectBegin()
	f.mock.ExpectQuery("FROM appointments a").WithArgs(int64(11)).WillReturnRows(appointmentRow(pendingAppointment(), "09:00"))
	f.mock.ExpectExec("UPDATE appointments").
		WithArgs(model.AppointmentStatusRejected, int64(11), model.AppointmentStatusPending).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	f.mock.ExpectExec("SET is_booked = false").WithArgs(int64(1)).WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	f.mock.ExpectRollback()

	_, err := f.appointments.Reject(context.Background(), 11, 7)
	assert.True(t, apperrors.Is(err, apperrors.KindDataIntegrity))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestListRequestsStatusFilter(t *testing.T) {
	f := newFixture(t, nil, time.Now())

	_, err := f.appointments.ListRequests(context.Background(), 7, "postponed")
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))

	now := time.Now()
	patientID := int64(3)
	username := "alice"
	f.mock.ExpectQuery("ORDER BY a.created_at DESC").
		WithArgs(int64(7), model.AppointmentStatusPending).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "patient_id", "doctor_id", "timeslot_id", "appointment_date", "status", "created_at", "updated_at",
			"start_time", "is_booked", "p_id", "p_username",
		}).AddRow(int64(11), int64(3), int64(7), int64(1), day1, model.AppointmentStatusPending, now, now,
			"09:00", true, &patientID, &username))

	requests, err := f.appointments.ListRequests(context.Background(), 7, "pending")
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, "09:00", requests[0].Slot.StartTime)
	assert.True(t, requests[0].Slot.IsBooked)
	assert.Equal(t, "alice", requests[0].Patient.Username)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestNextConfirmedStartsFromLocalToday(t *testing.T) {
	// 20:00 UTC 1 июня это уже 01:30 2 июня по +05:30
	f := newFixture(t, nil, time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC))

	f.mock.ExpectQuery("LIMIT 1").
		WithArgs(model.AppointmentStatusConfirmed, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), int64(3)).
		WillReturnRows(pgxmock.NewRows(nil))

	appt, err := f.appointments.NextConfirmed(context.Background(), 3, model.RolePatient)
	require.NoError(t, err)
	assert.Nil(t, appt)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestConfirmedPatientsForDoctor(t *testing.T) {
	f := newFixture(t, nil, day1)

	rows := pgxmock.NewRows(userCols).
		AddRow(int64(3), "alice", model.RolePatient, time.Now()).
		AddRow(int64(4), "bob", model.RolePatient, time.Now())
	f.mock.ExpectQuery("SELECT DISTINCT u.id").
		WithArgs(int64(7), model.AppointmentStatusConfirmed).
		WillReturnRows(rows)

	patients, err := f.appointments.ConfirmedPatients(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, patients, 2)
	assert.Equal(t, "alice", patients[0].Username)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestDisplayTime(t *testing.T) {
	assert.Equal(t, "9:05 AM", displayTime("09:05"))
	assert.Equal(t, "12:00 PM", displayTime("12:00"))
	assert.Equal(t, "11:30 PM", displayTime("23:30"))
	assert.Equal(t, "garbage", displayTime("garbage"))
}
