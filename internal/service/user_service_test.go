package service

import (
	"context"
	"testing"
	"time"

	"github.com/Freeeeeet/clinic_scheduler/internal/apperrors"
	"github.com/Freeeeeet/clinic_scheduler/internal/model"
	"github.com/Freeeeeet/clinic_scheduler/internal/repository"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newUserService(t *testing.T) (*UserService, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewUserService(repository.NewUserRepository(mock), zap.NewNop()), mock
}

func TestSyncPrincipalRegistersNewUser(t *testing.T) {
	svc, mock := newUserService(t)

	mock.ExpectQuery("SELECT id, username, role, created_at").
		WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows(userCols))
	mock.ExpectQuery("INSERT INTO users").
		WithArgs(int64(3), "alice", model.RolePatient).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	user, err := svc.SyncPrincipal(context.Background(), 3, "alice", model.RolePatient)
	require.NoError(t, err)
	assert.Equal(t, int64(3), user.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncPrincipalSkipsUnchangedUser(t *testing.T) {
	svc, mock := newUserService(t)

	mock.ExpectQuery("SELECT id, username, role, created_at").
		WithArgs(int64(7)).
		WillReturnRows(userRows(7, "house", model.RoleDoctor))

	user, err := svc.SyncPrincipal(context.Background(), 7, "house", model.RoleDoctor)
	require.NoError(t, err)
	assert.Equal(t, "house", user.Username)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncPrincipalUpdatesChangedUser(t *testing.T) {
	svc, mock := newUserService(t)

	mock.ExpectQuery("SELECT id, username, role, created_at").
		WithArgs(int64(7)).
		WillReturnRows(userRows(7, "house", model.RoleDoctor))
	mock.ExpectQuery("ON CONFLICT \\(id\\) DO UPDATE").
		WithArgs(int64(7), "greg_house", model.RoleDoctor).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	_, err := svc.SyncPrincipal(context.Background(), 7, "greg_house", model.RoleDoctor)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncPrincipalTakenUsernameIsConflict(t *testing.T) {
	svc, mock := newUserService(t)

	mock.ExpectQuery("SELECT id, username, role, created_at").
		WithArgs(int64(8)).
		WillReturnRows(pgxmock.NewRows(userCols))
	mock.ExpectQuery("INSERT INTO users").
		WithArgs(int64(8), "house", model.RoleDoctor).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"})

	user, err := svc.SyncPrincipal(context.Background(), 8, "house", model.RoleDoctor)
	assert.Nil(t, user)
	assert.True(t, apperrors.Is(err, apperrors.KindConflict), "got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncPrincipalValidates(t *testing.T) {
	svc, _ := newUserService(t)

	_, err := svc.SyncPrincipal(context.Background(), 0, "x", model.RolePatient)
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))

	_, err = svc.SyncPrincipal(context.Background(), 1, "x", model.Role("admin"))
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
}
