package service

import (
	"context"

	"github.com/Freeeeeet/clinic_scheduler/internal/apperrors"
	"github.com/Freeeeeet/clinic_scheduler/internal/model"
	"github.com/Freeeeeet/clinic_scheduler/internal/repository"
	"github.com/Freeeeeet/clinic_scheduler/internal/repository/base"
	"go.uber.org/zap"
)

// NotificationEvent событие по приёму, адресованное пользователю
type NotificationEvent struct {
	UserID        int64
	Message       string
	AppointmentID *int64
}

// NotificationSink принимает события в рамках транзакции вызывающего,
// поэтому уведомление фиксируется вместе с переходом статуса
type NotificationSink interface {
	Notify(ctx context.Context, q base.Querier, event NotificationEvent) (*model.Notification, error)
}

// NotificationService хранит уведомления и обслуживает их чтение
type NotificationService struct {
	db               base.TxBeginner
	notificationRepo *repository.NotificationRepository
	logger           *zap.Logger
}

func NewNotificationService(db base.TxBeginner, notificationRepo *repository.NotificationRepository, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		db:               db,
		notificationRepo: notificationRepo,
		logger:           logger,
	}
}

func (s *NotificationService) Notify(ctx context.Context, q base.Querier, event NotificationEvent) (*model.Notification, error) {
	n := &model.Notification{
		UserID:        event.UserID,
		Message:       event.Message,
		AppointmentID: event.AppointmentID,
	}
	if err := s.notificationRepo.WithQuerier(q).Create(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// List возвращает уведомления пользователя, новые сначала; markAsRead помечает непрочитанные
func (s *NotificationService) List(ctx context.Context, userID int64, markAsRead bool) ([]*model.Notification, error) {
	if !markAsRead {
		return s.notificationRepo.ListByUser(ctx, userID)
	}

	var notifications []*model.Notification
	err := base.RunInTx(ctx, s.db, func(q base.Querier) error {
		repo := s.notificationRepo.WithQuerier(q)

		var err error
		notifications, err = repo.ListByUser(ctx, userID)
		if err != nil {
			return err
		}

		var unread []int64
		for _, n := range notifications {
			if !n.IsRead {
				unread = append(unread, n.ID)
			}
		}
		if _, err := repo.MarkRead(ctx, userID, unread); err != nil {
			return err
		}
		for _, n := range notifications {
			n.IsRead = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return notifications, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID int64) (int, error) {
	return s.notificationRepo.CountUnread(ctx, userID)
}

// MarkRead помечает одно уведомление; чужое или несуществующее - NotFound
func (s *NotificationService) MarkRead(ctx context.Context, notificationID, userID int64) error {
	exists, err := s.notificationRepo.ExistsForUser(ctx, notificationID, userID)
	if err != nil {
		return err
	}
	if !exists {
		return apperrors.NotFound("notification %d not found", notificationID)
	}

	if _, err := s.notificationRepo.MarkRead(ctx, userID, []int64{notificationID}); err != nil {
		return err
	}

	s.logger.Debug("Notification marked as read",
		zap.Int64("notification_id", notificationID),
		zap.Int64("user_id", userID),
	)
	return nil
}
