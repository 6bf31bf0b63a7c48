package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/clinic_scheduler/internal/model"
	"github.com/Freeeeeet/clinic_scheduler/internal/repository/base"
	"github.com/jackc/pgx/v5"
)

const slotColumns = `id, doctor_id, date, start_time, is_booked, created_at`

type SlotRepository struct {
	db base.Querier
}

func NewSlotRepository(db base.Querier) *SlotRepository {
	return &SlotRepository{db: db}
}

// WithQuerier возвращает репозиторий, работающий внутри переданной транзакции
func (r *SlotRepository) WithQuerier(q base.Querier) *SlotRepository {
	return &SlotRepository{db: q}
}

// Create создаёт новый слот
func (r *SlotRepository) Create(ctx context.Context, slot *model.TimeSlot) error {
	query := `
		INSERT INTO time_slots (doctor_id, date, start_time, is_booked)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(
		ctx, query,
		slot.DoctorID,
		slot.Date,
		slot.StartTime,
		slot.IsBooked,
	).Scan(&slot.ID, &slot.CreatedAt)

	if err != nil {
		return fmt.Errorf("create slot: %w", err)
	}

	return nil
}

// GetByID получает слот по ID
func (r *SlotRepository) GetByID(ctx context.Context, id int64) (*model.TimeSlot, error) {
	query := `SELECT ` + slotColumns + ` FROM time_slots WHERE id = $1`

	slot, err := scanSlot(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get slot by id: %w", err)
	}

	return slot, nil
}

// ListForDay получает слоты врача на дату по возрастанию времени начала
func (r *SlotRepository) ListForDay(ctx context.Context, doctorID int64, date time.Time, onlyAvailable bool) ([]*model.TimeSlot, error) {
	query := `SELECT ` + slotColumns + `
		FROM time_slots
		WHERE doctor_id = $1 AND date = $2`
	if onlyAvailable {
		query += ` AND is_booked = false`
	}
	query += ` ORDER BY start_time`

	return r.list(ctx, query, doctorID, date)
}

// LockForDay получает все слоты дня с блокировкой строк до конца транзакции
func (r *SlotRepository) LockForDay(ctx context.Context, doctorID int64, date time.Time) ([]*model.TimeSlot, error) {
	query := `SELECT ` + slotColumns + `
		FROM time_slots
		WHERE doctor_id = $1 AND date = $2
		ORDER BY start_time
		FOR UPDATE`

	return r.list(ctx, query, doctorID, date)
}

// FindByStartTime ищет слот врача по дате и времени; onlyAvailable отсекает занятые
func (r *SlotRepository) FindByStartTime(ctx context.Context, doctorID int64, date time.Time, startTime string, onlyAvailable bool) (*model.TimeSlot, error) {
	query := `SELECT ` + slotColumns + `
		FROM time_slots
		WHERE doctor_id = $1 AND date = $2 AND start_time = $3`
	if onlyAvailable {
		query += ` AND is_booked = false`
	}
	query += ` LIMIT 1`

	slot, err := scanSlot(r.db.QueryRow(ctx, query, doctorID, date, startTime))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find slot by start time: %w", err)
	}

	return slot, nil
}

// MarkBooked помечает слот занятым; false если слот уже был занят
func (r *SlotRepository) MarkBooked(ctx context.Context, slotID int64) (bool, error) {
	query := `
		UPDATE time_slots
		SET is_booked = true
		WHERE id = $1 AND is_booked = false
	`

	result, err := r.db.Exec(ctx, query, slotID)
	if err != nil {
		return false, fmt.Errorf("mark slot booked: %w", err)
	}

	return result.RowsAffected() == 1, nil
}

// Release освобождает слот; false если слота не существует
func (r *SlotRepository) Release(ctx context.Context, slotID int64) (bool, error) {
	query := `
		UPDATE time_slots
		SET is_booked = false
		WHERE id = $1
	`

	result, err := r.db.Exec(ctx, query, slotID)
	if err != nil {
		return false, fmt.Errorf("release slot: %w", err)
	}

	return result.RowsAffected() == 1, nil
}

// DeleteByIDs удаляет слоты по списку ID и возвращает количество удалённых
func (r *SlotRepository) DeleteByIDs(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	result, err := r.db.Exec(ctx, `DELETE FROM time_slots WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, fmt.Errorf("delete slots: %w", err)
	}

	return result.RowsAffected(), nil
}

func (r *SlotRepository) list(ctx context.Context, query string, args ...any) ([]*model.TimeSlot, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	defer rows.Close()

	var slots []*model.TimeSlot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, slot)
	}

	return slots, rows.Err()
}

func scanSlot(row pgx.Row) (*model.TimeSlot, error) {
	var slot model.TimeSlot
	err := row.Scan(
		&slot.ID,
		&slot.DoctorID,
		&slot.Date,
		&slot.StartTime,
		&slot.IsBooked,
		&slot.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &slot, nil
}
