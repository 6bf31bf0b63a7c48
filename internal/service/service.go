package service

import (
	"context"
	"time"

	"github.com/Freeeeeet/clinic_scheduler/internal/apperrors"
	"github.com/Freeeeeet/clinic_scheduler/internal/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var schedulingTracer = otel.Tracer("clinic_scheduler.internal.service")

// SlotCache кэш свободных слотов дня; nil отключает кэширование
type SlotCache interface {
	// GetAvailable возвращает также версию дня, под которой SetAvailable сохранит список
	GetAvailable(ctx context.Context, doctorID int64, date time.Time) ([]*model.TimeSlot, int64, bool, error)
	SetAvailable(ctx context.Context, doctorID int64, date time.Time, version int64, slots []*model.TimeSlot) error
	Invalidate(ctx context.Context, doctorID int64, date time.Time) error
}

// invalidateDay сбрасывает кэш после коммита; ошибка кэша не отменяет операцию
func invalidateDay(ctx context.Context, cache SlotCache, logger *zap.Logger, doctorID int64, date time.Time) {
	if cache == nil {
		return
	}
	if err := cache.Invalidate(ctx, doctorID, date); err != nil {
		logger.Warn("Failed to invalidate slot cache",
			zap.Int64("doctor_id", doctorID),
			zap.String("date", model.FormatDate(date)),
			zap.Error(err),
		)
	}
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := schedulingTracer.Start(ctx, name)
	span.SetAttributes(attrs...)
	return ctx, span
}

// outcome сводит ошибку к метке метрики
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if kind := apperrors.KindOf(err); kind != "" {
		return string(kind)
	}
	return "error"
}
