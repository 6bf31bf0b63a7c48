package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/clinic_scheduler/internal/apperrors"
	"github.com/Freeeeeet/clinic_scheduler/internal/clock"
	"github.com/Freeeeeet/clinic_scheduler/internal/metrics"
	"github.com/Freeeeeet/clinic_scheduler/internal/model"
	"github.com/Freeeeeet/clinic_scheduler/internal/repository"
	"github.com/Freeeeeet/clinic_scheduler/internal/repository/base"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const displayTimeLayout = "3:04 PM"

// AppointmentService ведёт заявки по статусам PENDING -> CONFIRMED | REJECTED.
// CANCELLED и COMPLETED существуют в модели, но переходов в них нет.
type AppointmentService struct {
	db              base.TxBeginner
	userRepo        *repository.UserRepository
	slotRepo        *repository.SlotRepository
	appointmentRepo *repository.AppointmentRepository
	notifications   NotificationSink
	cache           SlotCache
	clock           clock.Clock
	location        *time.Location
	metrics         *metrics.SchedulingMetrics
	logger          *zap.Logger
}

func NewAppointmentService(
	db base.TxBeginner,
	userRepo *repository.UserRepository,
	slotRepo *repository.SlotRepository,
	appointmentRepo *repository.AppointmentRepository,
	notifications NotificationSink,
	cache SlotCache,
	clk clock.Clock,
	location *time.Location,
	metrics *metrics.SchedulingMetrics,
	logger *zap.Logger,
) *AppointmentService {
	if clk == nil {
		clk = clock.System{}
	}
	if location == nil {
		location = time.UTC
	}
	return &AppointmentService{
		db:              db,
		userRepo:        userRepo,
		slotRepo:        slotRepo,
		appointmentRepo: appointmentRepo,
		notifications:   notifications,
		cache:           cache,
		clock:           clk,
		location:        location,
		metrics:         metrics,
		logger:          logger,
	}
}

// Confirm подтверждает заявку и уведомляет пациента в той же транзакции
func (s *AppointmentService) Confirm(ctx context.Context, appointmentID, doctorID int64) (*model.Appointment, error) {
	return s.transition(ctx, appointmentID, doctorID, model.AppointmentStatusConfirmed)
}

// Reject отклоняет заявку, освобождает слот и уведомляет пациента в той же транзакции
func (s *AppointmentService) Reject(ctx context.Context, appointmentID, doctorID int64) (*model.Appointment, error) {
	return s.transition(ctx, appointmentID, doctorID, model.AppointmentStatusRejected)
}

func (s *AppointmentService) transition(ctx context.Context, appointmentID, doctorID int64, to model.AppointmentStatus) (appt *model.Appointment, err error) {
	ctx, span := startSpan(ctx, "appointments.transition",
		attribute.Int64("clinic.appointment_id", appointmentID),
		attribute.Int64("clinic.doctor_id", doctorID),
		attribute.String("clinic.to_status", string(to)),
	)
	defer span.End()
	defer func() {
		s.metrics.ObserveTransition(string(to), outcome(err))
		if err != nil {
			span.RecordError(err)
		}
		if apperrors.Is(err, apperrors.KindDataIntegrity) {
			s.logger.Error("Appointment data integrity violation",
				zap.Int64("appointment_id", appointmentID),
				zap.String("to_status", string(to)),
				zap.Error(err),
			)
		}
	}()

	err = base.RunInTx(ctx, s.db, func(q base.Querier) error {
		appointments := s.appointmentRepo.WithQuerier(q)

		current, err := appointments.GetByID(ctx, appointmentID)
		if err != nil {
			return err
		}
		if current == nil {
			return apperrors.NotFound("appointment %d not found", appointmentID)
		}
		if current.DoctorID != doctorID {
			return apperrors.Authorization("appointment %d belongs to another doctor", appointmentID)
		}
		if !current.IsPending() {
			return apperrors.InvalidState("appointment %d is %s, only PENDING requests can be %s",
				appointmentID, current.Status, verbFor(to))
		}
		if current.Slot == nil {
			return apperrors.DataIntegrity(nil, "appointment %d references missing slot %d", appointmentID, current.TimeSlotID)
		}

		updated, err := appointments.UpdateStatus(ctx, appointmentID, model.AppointmentStatusPending, to)
		if err != nil {
			return err
		}
		if !updated {
			return apperrors.InvalidState("appointment %d is no longer PENDING", appointmentID)
		}

		if to == model.AppointmentStatusRejected {
			released, err := s.slotRepo.WithQuerier(q).Release(ctx, current.TimeSlotID)
			if err != nil {
				return err
			}
			if !released {
				return apperrors.DataIntegrity(nil, "slot %d of appointment %d disappeared", current.TimeSlotID, appointmentID)
			}
			current.Slot.IsBooked = false
		}

		doctor, err := s.userRepo.WithQuerier(q).GetByID(ctx, doctorID)
		if err != nil {
			return err
		}
		current.Doctor = doctor

		_, err = s.notifications.Notify(ctx, q, NotificationEvent{
			UserID:        current.PatientID,
			Message:       transitionMessage(current, to),
			AppointmentID: &current.ID,
		})
		if err != nil {
			return fmt.Errorf("notify patient: %w", err)
		}

		current.Status = to
		appt = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	if to == model.AppointmentStatusRejected {
		invalidateDay(ctx, s.cache, s.logger, doctorID, appt.AppointmentDate)
	}

	s.logger.Info("Appointment status changed",
		zap.Int64("appointment_id", appointmentID),
		zap.Int64("doctor_id", doctorID),
		zap.Int64("patient_id", appt.PatientID),
		zap.String("status", string(to)),
	)

	return appt, nil
}

// ListRequests заявки врача, новые сначала; пустой фильтр - все статусы
func (s *AppointmentService) ListRequests(ctx context.Context, doctorID int64, statusFilter string) ([]*model.Appointment, error) {
	var status *model.AppointmentStatus
	if statusFilter != "" {
		parsed, err := model.ParseAppointmentStatus(statusFilter)
		if err != nil {
			return nil, apperrors.Validation("%v", err)
		}
		status = &parsed
	}

	return s.appointmentRepo.ListByDoctor(ctx, doctorID, status)
}

// NextConfirmed ближайший подтверждённый приём начиная с сегодняшней местной даты; nil если нет
func (s *AppointmentService) NextConfirmed(ctx context.Context, userID int64, role model.Role) (*model.Appointment, error) {
	local := s.clock.Now().In(s.location)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)

	return s.appointmentRepo.NextConfirmed(ctx, userID, role, today)
}

// ConfirmedPatients уникальные пациенты с подтверждёнными приёмами у врача
func (s *AppointmentService) ConfirmedPatients(ctx context.Context, doctorID int64) ([]*model.User, error) {
	return s.appointmentRepo.ConfirmedPatients(ctx, doctorID)
}

func transitionMessage(appt *model.Appointment, to model.AppointmentStatus) string {
	doctorName := "your doctor"
	if appt.Doctor != nil && appt.Doctor.Username != "" {
		doctorName = "Dr. " + appt.Doctor.Username
	}
	date := model.FormatDate(appt.AppointmentDate)

	if to == model.AppointmentStatusRejected {
		return fmt.Sprintf("Rejected: Your appointment request for %s with %s was rejected.", date, doctorName)
	}
	return fmt.Sprintf("Confirmed: Your appointment with %s on %s at %s is confirmed.",
		doctorName, date, displayTime(appt.Slot.StartTime))
}

// displayTime переводит HH:MM в h:mm AM/PM; нераспознанное значение возвращается как есть
func displayTime(startTime string) string {
	t, err := time.Parse(model.StartTimeLayout, startTime)
	if err != nil {
		return startTime
	}
	return t.Format(displayTimeLayout)
}

func verbFor(to model.AppointmentStatus) string {
	if to == model.AppointmentStatusRejected {
		return "rejected"
	}
	return "confirmed"
}
