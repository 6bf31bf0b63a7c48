package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/clinic_scheduler/internal/model"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultSlotTTL = 30 * time.Second
	// Счётчик версии живёт заметно дольше списков, иначе обнуление вернуло бы старую версию
	versionTTL = 24 * time.Hour
)

// SlotCache кэширует списки свободных слотов врача на день.
// Источник истины всегда Postgres. Список хранится под ключом с версией дня, прочитанной
// до запроса в БД; каждый коммит, меняющий день, увеличивает версию. Поэтому список,
// собранный по устаревшему чтению, оказывается под старой версией и больше не читается.
type SlotCache struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

func NewSlotCache(client *redis.Client, ttl time.Duration) *SlotCache {
	if client == nil {
		panic("cache: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = defaultSlotTTL
	}
	return &SlotCache{
		redis:  client,
		ttl:    ttl,
		tracer: otel.Tracer("clinic_scheduler.internal.cache.slots"),
	}
}

// GetAvailable возвращает закэшированные свободные слоты и текущую версию дня.
// ok == false при промахе; version передаётся в SetAvailable после чтения из БД.
func (c *SlotCache) GetAvailable(ctx context.Context, doctorID int64, date time.Time) ([]*model.TimeSlot, int64, bool, error) {
	ctx, span := c.tracer.Start(ctx, "cache.get_available_slots")
	defer span.End()

	version, err := c.redis.Get(ctx, versionKey(doctorID, date)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		span.RecordError(err)
		return nil, 0, false, fmt.Errorf("cache: load slots version: %w", err)
	}

	data, err := c.redis.Get(ctx, availableKey(doctorID, date, version)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, version, false, nil
		}
		span.RecordError(err)
		return nil, 0, false, fmt.Errorf("cache: load available slots: %w", err)
	}

	var slots []*model.TimeSlot
	if err := json.Unmarshal(data, &slots); err != nil {
		span.RecordError(err)
		return nil, 0, false, fmt.Errorf("cache: decode available slots: %w", err)
	}
	return slots, version, true, nil
}

// SetAvailable сохраняет список под версией, полученной из GetAvailable
func (c *SlotCache) SetAvailable(ctx context.Context, doctorID int64, date time.Time, version int64, slots []*model.TimeSlot) error {
	ctx, span := c.tracer.Start(ctx, "cache.set_available_slots")
	defer span.End()

	if slots == nil {
		slots = []*model.TimeSlot{}
	}
	data, err := json.Marshal(slots)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("cache: encode available slots: %w", err)
	}
	if err := c.redis.Set(ctx, availableKey(doctorID, date, version), data, c.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("cache: store available slots: %w", err)
	}
	return nil
}

// Invalidate переводит день врача на новую версию; прежние списки больше не читаются
func (c *SlotCache) Invalidate(ctx context.Context, doctorID int64, date time.Time) error {
	ctx, span := c.tracer.Start(ctx, "cache.invalidate_slots")
	defer span.End()

	key := versionKey(doctorID, date)
	_, err := c.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, versionTTL)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("cache: invalidate slots: %w", err)
	}
	return nil
}

func availableKey(doctorID int64, date time.Time, version int64) string {
	return fmt.Sprintf("slots:available:%d:%s:v%d", doctorID, model.FormatDate(date), version)
}

func versionKey(doctorID int64, date time.Time) string {
	return fmt.Sprintf("slots:version:%d:%s", doctorID, model.FormatDate(date))
}
