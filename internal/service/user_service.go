package service

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/clinic_scheduler/internal/apperrors"
	"github.com/Freeeeeet/clinic_scheduler/internal/model"
	"github.com/Freeeeeet/clinic_scheduler/internal/repository"
	"github.com/Freeeeeet/clinic_scheduler/internal/repository/base"
	"go.uber.org/zap"
)

// UserService держит локальную проекцию пользователей провайдера идентификации,
// на которую ссылаются слоты, приёмы и уведомления
type UserService struct {
	userRepo *repository.UserRepository
	logger   *zap.Logger
}

func NewUserService(userRepo *repository.UserRepository, logger *zap.Logger) *UserService {
	return &UserService{
		userRepo: userRepo,
		logger:   logger,
	}
}

// SyncPrincipal регистрирует или обновляет пользователя из токена
func (s *UserService) SyncPrincipal(ctx context.Context, id int64, username string, role model.Role) (*model.User, error) {
	if id <= 0 {
		return nil, apperrors.Validation("user id must be positive")
	}
	if role != model.RolePatient && role != model.RoleDoctor {
		return nil, apperrors.Validation("unknown role %q", role)
	}
	if username == "" {
		username = fmt.Sprintf("user_%d", id)
	}

	// Проверяем существует ли пользователь
	existing, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("check existing user: %w", err)
	}
	if existing != nil && existing.Username == username && existing.Role == role {
		return existing, nil
	}

	user := &model.User{ID: id, Username: username, Role: role}
	if err := s.userRepo.Upsert(ctx, user); err != nil {
		if base.IsUniqueViolation(err) {
			s.logger.Warn("Username already taken by another user",
				zap.Int64("user_id", id),
				zap.String("username", username),
				zap.String("constraint", base.ConstraintName(err)),
			)
			return nil, apperrors.Conflict("username %q is taken by another user", username)
		}
		return nil, fmt.Errorf("sync user: %w", err)
	}

	if existing == nil {
		s.logger.Info("New user registered",
			zap.Int64("user_id", id),
			zap.String("username", username),
			zap.String("role", string(role)),
		)
	} else {
		s.logger.Info("User updated",
			zap.Int64("user_id", id),
			zap.String("username", username),
			zap.String("role", string(role)),
		)
	}

	return user, nil
}
