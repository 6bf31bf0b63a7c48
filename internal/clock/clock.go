package clock

import "time"

// Clock отдаёт текущий момент времени в UTC
type Clock interface {
	Now() time.Time
}

// System использует системные часы
type System struct{}

func (System) Now() time.Time {
	return time.Now().UTC()
}

// Fixed всегда возвращает один и тот же момент, нужен для тестов
type Fixed struct {
	At time.Time
}

func (f Fixed) Now() time.Time {
	return f.At.UTC()
}
