package model

import (
	"fmt"
	"regexp"
	"time"
)

const (
	DateLayout      = "2006-01-02"
	StartTimeLayout = "15:04"
)

var startTimePattern = regexp.MustCompile(`^\d{2}:\d{2}$`)

// TimeSlot единица доступности врача на конкретную дату
type TimeSlot struct {
	ID        int64     `json:"id"`
	DoctorID  int64     `json:"doctor_id"`
	Date      time.Time `json:"date"`       // календарная дата, время 00:00 UTC
	StartTime string    `json:"start_time"` // HH:MM, 24 часа, сортируется лексикографически
	IsBooked  bool      `json:"is_booked"`
	CreatedAt time.Time `json:"created_at"`
}

// ParseDate разбирает дату в формате YYYY-MM-DD
func ParseDate(value string) (time.Time, error) {
	d, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q must be in YYYY-MM-DD format", value)
	}
	return d, nil
}

// ValidateStartTime проверяет строгий формат HH:MM (с ведущим нулём)
func ValidateStartTime(value string) error {
	if !startTimePattern.MatchString(value) {
		return fmt.Errorf("start time %q must be in HH:MM format", value)
	}
	if _, err := time.Parse(StartTimeLayout, value); err != nil {
		return fmt.Errorf("start time %q is not a valid 24-hour time", value)
	}
	return nil
}

// FormatDate форматирует дату слота обратно в YYYY-MM-DD
func FormatDate(d time.Time) string {
	return d.Format(DateLayout)
}
