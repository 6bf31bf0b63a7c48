package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/clinic_scheduler/internal/model"
	"github.com/golang-jwt/jwt/v5"
)

var ErrBadToken = errors.New("invalid token")

// Claims токен провайдера идентификации: кто вызывает и в какой роли
type Claims struct {
	UserID   int64      `json:"uid"`
	Username string     `json:"username"`
	Role     model.Role `json:"role"`
	jwt.RegisteredClaims
}

// MakeToken выпускает токен доступа; в проде это делает провайдер идентификации
func MakeToken(user *model.User, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	c := Claims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
}

func ParseToken(raw, secret string) (*Claims, error) {
	tok, err := jwt.ParseWithClaims(raw, &Claims{}, hmacKey(secret))
	if err != nil {
		return nil, err
	}
	c, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return nil, ErrBadToken
	}
	if c.UserID <= 0 || (c.Role != model.RolePatient && c.Role != model.RoleDoctor) {
		return nil, ErrBadToken
	}
	return c, nil
}

// SessionClaims пропуск в комнату видеосессии приёма
type SessionClaims struct {
	Room          string `json:"room"`
	Identity      string `json:"identity"`
	AppointmentID int64  `json:"appointment_id"`
	jwt.RegisteredClaims
}

// SessionIssuer подписывает пропуска в комнаты сессий
type SessionIssuer struct {
	secret []byte
}

func NewSessionIssuer(secret string) *SessionIssuer {
	return &SessionIssuer{secret: []byte(secret)}
}

// RoomName имя комнаты сессии для приёма
func RoomName(appointmentID int64) string {
	return fmt.Sprintf("appt_%d", appointmentID)
}

// Issue выпускает пропуск, действующий до конца окна подключения
func (i *SessionIssuer) Issue(appointmentID int64, identity string, issuedAt, expiresAt time.Time) (string, error) {
	c := SessionClaims{
		Room:          RoomName(appointmentID),
		Identity:      identity,
		AppointmentID: appointmentID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// ParseSession проверяет пропуск на момент now (используется медиасервером и тестами)
func (i *SessionIssuer) ParseSession(raw string, now time.Time) (*SessionClaims, error) {
	tok, err := jwt.ParseWithClaims(raw, &SessionClaims{}, hmacKey(string(i.secret)),
		jwt.WithTimeFunc(func() time.Time { return now }))
	if err != nil {
		return nil, err
	}
	c, ok := tok.Claims.(*SessionClaims)
	if !ok || !tok.Valid {
		return nil, ErrBadToken
	}
	return c, nil
}

func hmacKey(secret string) jwt.Keyfunc {
	return func(t *jwt.Token) (any, error) {
		// block alg confusion
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrBadToken
		}
		return []byte(secret), nil
	}
}
