package service

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/clinic_scheduler/internal/apperrors"
	"github.com/Freeeeeet/clinic_scheduler/internal/metrics"
	"github.com/Freeeeeet/clinic_scheduler/internal/model"
	"github.com/Freeeeeet/clinic_scheduler/internal/repository"
	"github.com/Freeeeeet/clinic_scheduler/internal/repository/base"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type BookingService struct {
	db              base.TxBeginner
	userRepo        *repository.UserRepository
	slotRepo        *repository.SlotRepository
	appointmentRepo *repository.AppointmentRepository
	cache           SlotCache
	metrics         *metrics.SchedulingMetrics
	logger          *zap.Logger
}

func NewBookingService(
	db base.TxBeginner,
	userRepo *repository.UserRepository,
	slotRepo *repository.SlotRepository,
	appointmentRepo *repository.AppointmentRepository,
	cache SlotCache,
	metrics *metrics.SchedulingMetrics,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		db:              db,
		userRepo:        userRepo,
		slotRepo:        slotRepo,
		appointmentRepo: appointmentRepo,
		cache:           cache,
		metrics:         metrics,
		logger:          logger,
	}
}

// Book бронирует слот врача и создаёт заявку в статусе PENDING.
// Гонку за слот решает уникальный индекс по timeslot_id: проигравший получает конфликт, повторов нет.
func (s *BookingService) Book(ctx context.Context, patientID, doctorID int64, date, startTime string) (appt *model.Appointment, err error) {
	ctx, span := startSpan(ctx, "booking.book",
		attribute.Int64("clinic.patient_id", patientID),
		attribute.Int64("clinic.doctor_id", doctorID),
		attribute.String("clinic.date", date),
		attribute.String("clinic.start_time", startTime),
	)
	defer span.End()
	defer func() {
		s.metrics.ObserveBooking(outcome(err))
		if err != nil {
			span.RecordError(err)
		}
	}()

	day, err := model.ParseDate(date)
	if err != nil {
		return nil, apperrors.Validation("%v", err)
	}
	if err := model.ValidateStartTime(startTime); err != nil {
		return nil, apperrors.Validation("%v", err)
	}

	doctor, err := s.userRepo.GetDoctor(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("get doctor: %w", err)
	}
	if doctor == nil {
		return nil, apperrors.NotFound("doctor %d not found", doctorID)
	}

	err = base.RunInTx(ctx, s.db, func(q base.Querier) error {
		slots := s.slotRepo.WithQuerier(q)

		slot, err := slots.FindByStartTime(ctx, doctorID, day, startTime, true)
		if err != nil {
			return err
		}
		if slot == nil {
			// Второй поиск без фильтра различает "не опубликован" и "уже занят"
			existing, err := slots.FindByStartTime(ctx, doctorID, day, startTime, false)
			if err != nil {
				return err
			}
			if existing != nil {
				return apperrors.SlotConflict(startTime, "is already booked")
			}
			return apperrors.NotFound("no slot at %s on %s for doctor %d", startTime, date, doctorID)
		}

		booked, err := slots.MarkBooked(ctx, slot.ID)
		if err != nil {
			return err
		}
		if !booked {
			// Пока ждали блокировку строки, слот могли удалить вместе с расписанием дня
			current, err := slots.GetByID(ctx, slot.ID)
			if err != nil {
				return err
			}
			if current == nil {
				return apperrors.NotFound("no slot at %s on %s for doctor %d", startTime, date, doctorID)
			}
			return apperrors.SlotConflict(startTime, "was just booked by another patient, choose another slot")
		}

		appt = &model.Appointment{
			PatientID:       patientID,
			DoctorID:        doctorID,
			TimeSlotID:      slot.ID,
			AppointmentDate: slot.Date,
			Status:          model.AppointmentStatusPending,
			Slot:            slot,
		}
		return s.appointmentRepo.WithQuerier(q).Create(ctx, appt)
	})
	if err != nil {
		if base.IsUniqueViolation(err) {
			s.logger.Info("Booking race lost",
				zap.Int64("patient_id", patientID),
				zap.Int64("doctor_id", doctorID),
				zap.String("start_time", startTime),
				zap.String("constraint", base.ConstraintName(err)),
			)
			return nil, apperrors.SlotConflict(startTime, "was booked concurrently, retry with another slot")
		}
		return nil, err
	}
	appt.Slot.IsBooked = true

	invalidateDay(ctx, s.cache, s.logger, doctorID, day)

	s.logger.Info("Slot booked",
		zap.Int64("appointment_id", appt.ID),
		zap.Int64("patient_id", patientID),
		zap.Int64("doctor_id", doctorID),
		zap.Int64("slot_id", appt.TimeSlotID),
	)

	return appt, nil
}
