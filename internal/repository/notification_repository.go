package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/clinic_scheduler/internal/model"
	"github.com/Freeeeeet/clinic_scheduler/internal/repository/base"
)

type NotificationRepository struct {
	db base.Querier
}

func NewNotificationRepository(db base.Querier) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// WithQuerier возвращает репозиторий, работающий внутри переданной транзакции
func (r *NotificationRepository) WithQuerier(q base.Querier) *NotificationRepository {
	return &NotificationRepository{db: q}
}

// Create создаёт уведомление
func (r *NotificationRepository) Create(ctx context.Context, n *model.Notification) error {
	query := `
		INSERT INTO notifications (user_id, message, appointment_id)
		VALUES ($1, $2, $3)
		RETURNING id, is_read, created_at
	`

	err := r.db.QueryRow(ctx, query, n.UserID, n.Message, n.AppointmentID).
		Scan(&n.ID, &n.IsRead, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}

	return nil
}

// ListByUser получает уведомления пользователя, новые сначала
func (r *NotificationRepository) ListByUser(ctx context.Context, userID int64) ([]*model.Notification, error) {
	query := `
		SELECT id, user_id, message, is_read, created_at, appointment_id
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*model.Notification
	for rows.Next() {
		var n model.Notification
		err := rows.Scan(&n.ID, &n.UserID, &n.Message, &n.IsRead, &n.CreatedAt, &n.AppointmentID)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, &n)
	}

	return notifications, rows.Err()
}

// CountUnread считает непрочитанные уведомления пользователя
func (r *NotificationRepository) CountUnread(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = false`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}

	return count, nil
}

// MarkRead помечает уведомления прочитанными; чужие уведомления не затрагиваются
func (r *NotificationRepository) MarkRead(ctx context.Context, userID int64, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query := `
		UPDATE notifications
		SET is_read = true
		WHERE user_id = $1 AND id = ANY($2) AND is_read = false
	`

	result, err := r.db.Exec(ctx, query, userID, ids)
	if err != nil {
		return 0, fmt.Errorf("mark notifications read: %w", err)
	}

	return result.RowsAffected(), nil
}

// ExistsForUser проверяет, что уведомление принадлежит пользователю
func (r *NotificationRepository) ExistsForUser(ctx context.Context, id, userID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM notifications WHERE id = $1 AND user_id = $2)`,
		id, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check notification exists: %w", err)
	}

	return exists, nil
}
