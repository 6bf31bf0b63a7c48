package model

import "time"

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
)

// User минимальная проекция пользователя; учётные данные ведёт внешний провайдер
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// IsDoctor checks if user has the doctor role
func (u *User) IsDoctor() bool {
	return u.Role == RoleDoctor
}
