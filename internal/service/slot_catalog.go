package service

import (
	"context"
	"slices"

	"github.com/Freeeeeet/clinic_scheduler/internal/apperrors"
	"github.com/Freeeeeet/clinic_scheduler/internal/metrics"
	"github.com/Freeeeeet/clinic_scheduler/internal/model"
	"github.com/Freeeeeet/clinic_scheduler/internal/repository"
	"github.com/Freeeeeet/clinic_scheduler/internal/repository/base"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const referencedSlotReason = "is linked to an appointment and cannot be removed"

// SlotCatalog управляет расписанием врача на день
type SlotCatalog struct {
	db              base.TxBeginner
	userRepo        *repository.UserRepository
	slotRepo        *repository.SlotRepository
	appointmentRepo *repository.AppointmentRepository
	cache           SlotCache
	metrics         *metrics.SchedulingMetrics
	logger          *zap.Logger
}

func NewSlotCatalog(
	db base.TxBeginner,
	userRepo *repository.UserRepository,
	slotRepo *repository.SlotRepository,
	appointmentRepo *repository.AppointmentRepository,
	cache SlotCache,
	metrics *metrics.SchedulingMetrics,
	logger *zap.Logger,
) *SlotCatalog {
	return &SlotCatalog{
		db:              db,
		userRepo:        userRepo,
		slotRepo:        slotRepo,
		appointmentRepo: appointmentRepo,
		cache:           cache,
		metrics:         metrics,
		logger:          logger,
	}
}

// ReplaceDaySchedule приводит расписание дня к переданному набору времён начала.
// Если удаляемый слот связан с приёмом, операция отменяется целиком.
func (c *SlotCatalog) ReplaceDaySchedule(ctx context.Context, doctorID int64, date string, startTimes []string) (schedule []*model.TimeSlot, err error) {
	ctx, span := startSpan(ctx, "slot_catalog.replace_day",
		attribute.Int64("clinic.doctor_id", doctorID),
		attribute.String("clinic.date", date),
	)
	defer span.End()
	defer func() {
		c.metrics.ObserveScheduleEdit("replace", outcome(err))
		if err != nil {
			span.RecordError(err)
		}
	}()

	day, err := model.ParseDate(date)
	if err != nil {
		return nil, apperrors.Validation("%v", err)
	}
	requested, err := normalizeStartTimes(startTimes)
	if err != nil {
		return nil, err
	}

	var added, removed int
	err = base.RunInTx(ctx, c.db, func(q base.Querier) error {
		slots := c.slotRepo.WithQuerier(q)

		existing, err := slots.LockForDay(ctx, doctorID, day)
		if err != nil {
			return err
		}

		keep := make(map[string]bool, len(requested))
		for _, startTime := range requested {
			keep[startTime] = true
		}

		present := make(map[string]bool, len(existing))
		var toRemove []*model.TimeSlot
		for _, slot := range existing {
			present[slot.StartTime] = true
			if !keep[slot.StartTime] {
				toRemove = append(toRemove, slot)
			}
		}

		if err := c.guardUnreferenced(ctx, q, toRemove); err != nil {
			return err
		}
		if _, err := slots.DeleteByIDs(ctx, slotIDs(toRemove)); err != nil {
			return mapScheduleWriteError(err, "")
		}
		removed = len(toRemove)

		for _, startTime := range requested {
			if present[startTime] {
				continue
			}
			slot := &model.TimeSlot{DoctorID: doctorID, Date: day, StartTime: startTime}
			if err := slots.Create(ctx, slot); err != nil {
				return mapScheduleWriteError(err, startTime)
			}
			added++
		}

		schedule, err = slots.ListForDay(ctx, doctorID, day, false)
		return err
	})
	if err != nil {
		return nil, err
	}

	invalidateDay(ctx, c.cache, c.logger, doctorID, day)

	c.logger.Info("Day schedule replaced",
		zap.Int64("doctor_id", doctorID),
		zap.String("date", date),
		zap.Int("added", added),
		zap.Int("removed", removed),
	)

	return schedule, nil
}

// DeleteDaySchedule удаляет все слоты дня; день без слотов - успешный no-op
func (c *SlotCatalog) DeleteDaySchedule(ctx context.Context, doctorID int64, date string) (deleted int64, err error) {
	ctx, span := startSpan(ctx, "slot_catalog.delete_day",
		attribute.Int64("clinic.doctor_id", doctorID),
		attribute.String("clinic.date", date),
	)
	defer span.End()
	defer func() {
		c.metrics.ObserveScheduleEdit("delete", outcome(err))
		if err != nil {
			span.RecordError(err)
		}
	}()

	day, err := model.ParseDate(date)
	if err != nil {
		return 0, apperrors.Validation("%v", err)
	}

	err = base.RunInTx(ctx, c.db, func(q base.Querier) error {
		slots := c.slotRepo.WithQuerier(q)

		existing, err := slots.LockForDay(ctx, doctorID, day)
		if err != nil {
			return err
		}
		if len(existing) == 0 {
			return nil
		}

		if err := c.guardUnreferenced(ctx, q, existing); err != nil {
			return err
		}

		deleted, err = slots.DeleteByIDs(ctx, slotIDs(existing))
		if err != nil {
			return mapScheduleWriteError(err, "")
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if deleted > 0 {
		invalidateDay(ctx, c.cache, c.logger, doctorID, day)
	}

	c.logger.Info("Day schedule deleted",
		zap.Int64("doctor_id", doctorID),
		zap.String("date", date),
		zap.Int64("deleted", deleted),
	)

	return deleted, nil
}

// ListSlots возвращает слоты дня по возрастанию времени начала
func (c *SlotCatalog) ListSlots(ctx context.Context, doctorID int64, date string, onlyAvailable bool) ([]*model.TimeSlot, error) {
	day, err := model.ParseDate(date)
	if err != nil {
		return nil, apperrors.Validation("%v", err)
	}

	if !onlyAvailable || c.cache == nil {
		return c.slotRepo.ListForDay(ctx, doctorID, day, onlyAvailable)
	}

	cached, version, ok, err := c.cache.GetAvailable(ctx, doctorID, day)
	if err != nil {
		// Версия дня неизвестна, поэтому прочитанный список в кэш не кладём
		c.logger.Warn("Slot cache read failed", zap.Int64("doctor_id", doctorID), zap.Error(err))
		return c.slotRepo.ListForDay(ctx, doctorID, day, true)
	}
	if ok {
		return cached, nil
	}

	slots, err := c.slotRepo.ListForDay(ctx, doctorID, day, true)
	if err != nil {
		return nil, err
	}
	if err := c.cache.SetAvailable(ctx, doctorID, day, version, slots); err != nil {
		c.logger.Warn("Slot cache write failed", zap.Int64("doctor_id", doctorID), zap.Error(err))
	}
	return slots, nil
}

// ListDoctorSlots свободные слоты врача для пациента; неизвестный врач - NotFound
func (c *SlotCatalog) ListDoctorSlots(ctx context.Context, doctorID int64, date string) ([]*model.TimeSlot, error) {
	doctor, err := c.userRepo.GetDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if doctor == nil {
		return nil, apperrors.NotFound("doctor %d not found", doctorID)
	}
	return c.ListSlots(ctx, doctorID, date, true)
}

// guardUnreferenced не даёт удалить слот, на который ссылается приём в любом статусе
func (c *SlotCatalog) guardUnreferenced(ctx context.Context, q base.Querier, slots []*model.TimeSlot) error {
	slotID, found, err := c.appointmentRepo.WithQuerier(q).FindReferencedSlot(ctx, slotIDs(slots))
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	for _, slot := range slots {
		if slot.ID == slotID {
			return apperrors.SlotConflict(slot.StartTime, referencedSlotReason)
		}
	}
	return apperrors.Conflict("slot %d %s", slotID, referencedSlotReason)
}

// normalizeStartTimes проверяет формат и схлопывает дубликаты, результат отсортирован
func normalizeStartTimes(startTimes []string) ([]string, error) {
	seen := make(map[string]bool, len(startTimes))
	result := make([]string, 0, len(startTimes))
	for _, startTime := range startTimes {
		if err := model.ValidateStartTime(startTime); err != nil {
			return nil, apperrors.Validation("%v", err)
		}
		if seen[startTime] {
			continue
		}
		seen[startTime] = true
		result = append(result, startTime)
	}
	slices.Sort(result)
	return result, nil
}

// mapScheduleWriteError переводит ограничения БД в конфликт расписания
func mapScheduleWriteError(err error, startTime string) error {
	switch {
	case base.IsForeignKeyViolation(err):
		return apperrors.Conflict("schedule slot %s", referencedSlotReason)
	case base.IsUniqueViolation(err) && startTime != "":
		return apperrors.SlotConflict(startTime, "was published concurrently, retry")
	default:
		return err
	}
}

func slotIDs(slots []*model.TimeSlot) []int64 {
	ids := make([]int64, 0, len(slots))
	for _, slot := range slots {
		ids = append(ids, slot.ID)
	}
	return ids
}
