package model

import (
	"fmt"
	"strings"
	"time"
)

type AppointmentStatus string

const (
	AppointmentStatusPending   AppointmentStatus = "PENDING"   // Ожидает решения врача
	AppointmentStatusConfirmed AppointmentStatus = "CONFIRMED" // Подтверждено
	AppointmentStatusRejected  AppointmentStatus = "REJECTED"  // Отклонено врачом
	AppointmentStatusCancelled AppointmentStatus = "CANCELLED" // Переходы не определены
	AppointmentStatusCompleted AppointmentStatus = "COMPLETED" // Переходы не определены
)

var appointmentStatuses = []AppointmentStatus{
	AppointmentStatusPending,
	AppointmentStatusConfirmed,
	AppointmentStatusRejected,
	AppointmentStatusCancelled,
	AppointmentStatusCompleted,
}

// ParseAppointmentStatus разбирает статус без учёта регистра, неизвестные значения - ошибка
func ParseAppointmentStatus(value string) (AppointmentStatus, error) {
	candidate := AppointmentStatus(strings.ToUpper(strings.TrimSpace(value)))
	for _, s := range appointmentStatuses {
		if s == candidate {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown appointment status %q", value)
}

type Appointment struct {
	ID              int64             `json:"id"`
	PatientID       int64             `json:"patient_id"`
	DoctorID        int64             `json:"doctor_id"`
	TimeSlotID      int64             `json:"timeslot_id"`
	AppointmentDate time.Time         `json:"appointment_date"`
	Status          AppointmentStatus `json:"status"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`

	// Дополнительные поля для удобства (не из таблицы appointments)
	Slot    *TimeSlot `json:"slot,omitempty"`
	Patient *User     `json:"patient,omitempty"`
	Doctor  *User     `json:"doctor,omitempty"`
}

// IsPending checks if appointment awaits the doctor's decision
func (a *Appointment) IsPending() bool {
	return a.Status == AppointmentStatusPending
}

// InvolvesUser checks if the user is the patient or the doctor of the appointment
func (a *Appointment) InvolvesUser(userID int64) bool {
	return a.PatientID == userID || a.DoctorID == userID
}
