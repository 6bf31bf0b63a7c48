package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/clinic_scheduler/internal/apperrors"
	"github.com/Freeeeeet/clinic_scheduler/internal/auth"
	"github.com/Freeeeeet/clinic_scheduler/internal/clock"
	"github.com/Freeeeeet/clinic_scheduler/internal/metrics"
	"github.com/Freeeeeet/clinic_scheduler/internal/model"
	"github.com/Freeeeeet/clinic_scheduler/internal/repository"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	ReasonNotConfirmed = "not confirmed"
	ReasonTooEarly     = "too early"
	ReasonTooLate      = "too late"
)

const (
	DefaultJoinEarly = 15 * time.Minute
	DefaultJoinLate  = 60 * time.Minute
)

// JoinTokenIssuer выпускает пропуск в комнату сессии приёма
type JoinTokenIssuer interface {
	Issue(appointmentID int64, identity string, issuedAt, expiresAt time.Time) (string, error)
}

// Eligibility результат проверки окна подключения
type Eligibility struct {
	Allowed     bool      `json:"allowed"`
	Reason      string    `json:"reason,omitempty"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
}

// SessionAccess ответ на запрос подключения; Token заполнен только при Allowed
type SessionAccess struct {
	Eligibility
	Room  string `json:"room,omitempty"`
	Token string `json:"token,omitempty"`
}

// SessionGuard пускает участников подтверждённого приёма в сессию только внутри окна
// [start-early, start+late]. Время слота трактуется в одном фиксированном смещении.
type SessionGuard struct {
	appointmentRepo *repository.AppointmentRepository
	userRepo        *repository.UserRepository
	issuer          JoinTokenIssuer
	clock           clock.Clock
	location        *time.Location
	early           time.Duration
	late            time.Duration
	metrics         *metrics.SchedulingMetrics
	logger          *zap.Logger
}

func NewSessionGuard(
	appointmentRepo *repository.AppointmentRepository,
	userRepo *repository.UserRepository,
	issuer JoinTokenIssuer,
	clk clock.Clock,
	location *time.Location,
	early, late time.Duration,
	metrics *metrics.SchedulingMetrics,
	logger *zap.Logger,
) *SessionGuard {
	if clk == nil {
		clk = clock.System{}
	}
	if location == nil {
		location = time.UTC
	}
	// Ноль допустим: окно открывается ровно в начало приёма или закрывается в момент начала
	if early < 0 {
		early = DefaultJoinEarly
	}
	if late < 0 {
		late = DefaultJoinLate
	}
	return &SessionGuard{
		appointmentRepo: appointmentRepo,
		userRepo:        userRepo,
		issuer:          issuer,
		clock:           clk,
		location:        location,
		early:           early,
		late:            late,
		metrics:         metrics,
		logger:          logger,
	}
}

// StartInstant момент начала приёма в UTC: дата + время слота в настроенном смещении
func (g *SessionGuard) StartInstant(appt *model.Appointment) (time.Time, error) {
	if appt.Slot == nil {
		return time.Time{}, apperrors.DataIntegrity(nil, "appointment %d has no slot", appt.ID)
	}
	if appt.AppointmentDate.IsZero() {
		return time.Time{}, apperrors.DataIntegrity(nil, "appointment %d has no date", appt.ID)
	}
	if err := model.ValidateStartTime(appt.Slot.StartTime); err != nil {
		return time.Time{}, apperrors.DataIntegrity(err, "appointment %d has corrupted start time", appt.ID)
	}
	clockTime, _ := time.Parse(model.StartTimeLayout, appt.Slot.StartTime)

	d := appt.AppointmentDate
	local := time.Date(d.Year(), d.Month(), d.Day(), clockTime.Hour(), clockTime.Minute(), 0, 0, g.location)
	return local.UTC(), nil
}

// Eligibility чистая проверка: подтверждён ли приём и попадает ли now в окно (границы включены)
func (g *SessionGuard) Eligibility(appt *model.Appointment, now time.Time) (Eligibility, error) {
	if appt.Status != model.AppointmentStatusConfirmed {
		return Eligibility{Reason: ReasonNotConfirmed}, nil
	}

	start, err := g.StartInstant(appt)
	if err != nil {
		return Eligibility{}, err
	}

	result := Eligibility{
		WindowStart: start.Add(-g.early),
		WindowEnd:   start.Add(g.late),
	}
	now = now.UTC()
	switch {
	case now.Before(result.WindowStart):
		result.Reason = ReasonTooEarly
	case now.After(result.WindowEnd):
		result.Reason = ReasonTooLate
	default:
		result.Allowed = true
	}
	return result, nil
}

// SessionEligibility проверяет участника приёма и при попадании в окно выдаёт пропуск
func (g *SessionGuard) SessionEligibility(ctx context.Context, appointmentID, userID int64, now time.Time) (access *SessionAccess, err error) {
	ctx, span := startSpan(ctx, "session.eligibility",
		attribute.Int64("clinic.appointment_id", appointmentID),
		attribute.Int64("clinic.user_id", userID),
	)
	defer span.End()
	defer func() {
		switch {
		case err != nil:
			span.RecordError(err)
			g.metrics.ObserveEligibility(outcome(err))
		case access.Allowed:
			g.metrics.ObserveEligibility("allowed")
		default:
			g.metrics.ObserveEligibility(access.Reason)
		}
	}()

	appt, err := g.appointmentRepo.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt == nil {
		return nil, apperrors.NotFound("appointment %d not found", appointmentID)
	}
	if !appt.InvolvesUser(userID) {
		return nil, apperrors.Authorization("user %d is not a participant of appointment %d", userID, appointmentID)
	}

	eligibility, err := g.Eligibility(appt, now)
	if err != nil {
		g.logger.Error("Cannot compute session window",
			zap.Int64("appointment_id", appointmentID),
			zap.Error(err),
		)
		return nil, err
	}

	access = &SessionAccess{Eligibility: eligibility}
	if !eligibility.Allowed || g.issuer == nil {
		return access, nil
	}

	identity, err := g.identity(ctx, userID)
	if err != nil {
		return nil, err
	}
	token, err := g.issuer.Issue(appt.ID, identity, now.UTC(), eligibility.WindowEnd)
	if err != nil {
		return nil, fmt.Errorf("issue session token: %w", err)
	}
	access.Token = token
	access.Room = auth.RoomName(appt.ID)

	g.logger.Info("Session access granted",
		zap.Int64("appointment_id", appt.ID),
		zap.Int64("user_id", userID),
	)

	return access, nil
}

// Join то же, что SessionEligibility, но с текущим временем часов
func (g *SessionGuard) Join(ctx context.Context, appointmentID, userID int64) (*SessionAccess, error) {
	return g.SessionEligibility(ctx, appointmentID, userID, g.clock.Now())
}

func (g *SessionGuard) identity(ctx context.Context, userID int64) (string, error) {
	user, err := g.userRepo.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if user == nil || user.Username == "" {
		return fmt.Sprintf("user_%d", userID), nil
	}
	return user.Username, nil
}
