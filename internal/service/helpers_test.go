package service

import (
	"testing"
	"time"

	"github.com/Freeeeeet/clinic_scheduler/internal/clock"
	"github.com/Freeeeeet/clinic_scheduler/internal/metrics"
	"github.com/Freeeeeet/clinic_scheduler/internal/model"
	"github.com/Freeeeeet/clinic_scheduler/internal/repository"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	slotCols        = []string{"id", "doctor_id", "date", "start_time", "is_booked", "created_at"}
	userCols        = []string{"id", "username", "role", "created_at"}
	notificationIns = []string{"id", "is_read", "created_at"}
	appointmentCols = []string{
		"id", "patient_id", "doctor_id", "timeslot_id", "appointment_date", "status", "created_at", "updated_at",
		"slot_id", "slot_date", "start_time", "is_booked",
	}
)

var (
	day1 = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	ist  = time.FixedZone("UTC+05:30", 5*3600+30*60)
)

type fixture struct {
	mock          pgxmock.PgxPoolIface
	catalog       *SlotCatalog
	booking       *BookingService
	appointments  *AppointmentService
	notifications *NotificationService
	guard         *SessionGuard
	registry      *prometheus.Registry
}

func newFixture(t *testing.T, cache SlotCache, now time.Time) *fixture {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	logger := zap.NewNop()
	registry := prometheus.NewRegistry()
	m := metrics.NewSchedulingMetrics(registry)
	clk := clock.Fixed{At: now}

	userRepo := repository.NewUserRepository(mock)
	slotRepo := repository.NewSlotRepository(mock)
	appointmentRepo := repository.NewAppointmentRepository(mock)
	notificationRepo := repository.NewNotificationRepository(mock)

	notifications := NewNotificationService(mock, notificationRepo, logger)

	return &fixture{
		mock:          mock,
		catalog:       NewSlotCatalog(mock, userRepo, slotRepo, appointmentRepo, cache, m, logger),
		booking:       NewBookingService(mock, userRepo, slotRepo, appointmentRepo, cache, m, logger),
		appointments:  NewAppointmentService(mock, userRepo, slotRepo, appointmentRepo, notifications, cache, clk, ist, m, logger),
		notifications: notifications,
		guard:         NewSessionGuard(appointmentRepo, userRepo, nil, clk, ist, DefaultJoinEarly, DefaultJoinLate, m, logger),
		registry:      registry,
	}
}

func slotRows(slots ...*model.TimeSlot) *pgxmock.Rows {
	rows := pgxmock.NewRows(slotCols)
	for _, s := range slots {
		rows.AddRow(s.ID, s.DoctorID, s.Date, s.StartTime, s.IsBooked, time.Now())
	}
	return rows
}

func userRows(id int64, username string, role model.Role) *pgxmock.Rows {
	return pgxmock.NewRows(userCols).AddRow(id, username, role, time.Now())
}

// appointmentRow строка GetByID; startTime == "" означает потерянный слот
func appointmentRow(appt *model.Appointment, startTime string) *pgxmock.Rows {
	rows := pgxmock.NewRows(appointmentCols)
	now := time.Now()
	if startTime == "" {
		return rows.AddRow(appt.ID, appt.PatientID, appt.DoctorID, appt.TimeSlotID, appt.AppointmentDate, appt.Status, now, now,
			nil, nil, nil, nil)
	}
	slotID := appt.TimeSlotID
	date := appt.AppointmentDate
	booked := appt.Status != model.AppointmentStatusRejected
	return rows.AddRow(appt.ID, appt.PatientID, appt.DoctorID, appt.TimeSlotID, appt.AppointmentDate, appt.Status, now, now,
		&slotID, &date, &startTime, &booked)
}

func slot(id int64, startTime string, booked bool) *model.TimeSlot {
	return &model.TimeSlot{ID: id, DoctorID: 7, Date: day1, StartTime: startTime, IsBooked: booked}
}
