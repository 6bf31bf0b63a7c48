package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/clinic_scheduler/internal/model"
	"github.com/Freeeeeet/clinic_scheduler/internal/repository/base"
)

const appointmentColumns = `a.id, a.patient_id, a.doctor_id, a.timeslot_id, a.appointment_date, a.status, a.created_at, a.updated_at`

type AppointmentRepository struct {
	db base.Querier
}

func NewAppointmentRepository(db base.Querier) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

// WithQuerier возвращает репозиторий, работающий внутри переданной транзакции
func (r *AppointmentRepository) WithQuerier(q base.Querier) *AppointmentRepository {
	return &AppointmentRepository{db: q}
}

// Create создаёт запись о приёме; уникальность timeslot_id проверяет БД
func (r *AppointmentRepository) Create(ctx context.Context, appt *model.Appointment) error {
	query := `
		INSERT INTO appointments (patient_id, doctor_id, timeslot_id, appointment_date, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(
		ctx, query,
		appt.PatientID,
		appt.DoctorID,
		appt.TimeSlotID,
		appt.AppointmentDate,
		appt.Status,
	).Scan(&appt.ID, &appt.CreatedAt, &appt.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create appointment: %w", err)
	}

	return nil
}

// GetByID получает приём по ID вместе со слотом; Slot == nil если слот потерян
func (r *AppointmentRepository) GetByID(ctx context.Context, id int64) (*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `, s.id, s.date, s.start_time, s.is_booked
		FROM appointments a
		LEFT JOIN time_slots s ON s.id = a.timeslot_id
		WHERE a.id = $1
	`

	var (
		appt      model.Appointment
		slotID    *int64
		slotDate  *time.Time
		startTime *string
		isBooked  *bool
	)
	err := r.db.QueryRow(ctx, query, id).Scan(
		&appt.ID,
		&appt.PatientID,
		&appt.DoctorID,
		&appt.TimeSlotID,
		&appt.AppointmentDate,
		&appt.Status,
		&appt.CreatedAt,
		&appt.UpdatedAt,
		&slotID,
		&slotDate,
		&startTime,
		&isBooked,
	)

	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get appointment by id: %w", err)
	}

	if slotID != nil {
		appt.Slot = &model.TimeSlot{
			ID:        *slotID,
			DoctorID:  appt.DoctorID,
			Date:      derefTime(slotDate),
			StartTime: derefString(startTime),
			IsBooked:  isBooked != nil && *isBooked,
		}
	}

	return &appt, nil
}

// UpdateStatus меняет статус, только если текущий статус равен from
func (r *AppointmentRepository) UpdateStatus(ctx context.Context, id int64, from, to model.AppointmentStatus) (bool, error) {
	query := `
		UPDATE appointments
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`

	result, err := r.db.Exec(ctx, query, to, id, from)
	if err != nil {
		return false, fmt.Errorf("update appointment status: %w", err)
	}

	return result.RowsAffected() == 1, nil
}

// FindReferencedSlot возвращает первый из слотов, на который ссылается любой приём
func (r *AppointmentRepository) FindReferencedSlot(ctx context.Context, slotIDs []int64) (int64, bool, error) {
	if len(slotIDs) == 0 {
		return 0, false, nil
	}

	query := `
		SELECT timeslot_id
		FROM appointments
		WHERE timeslot_id = ANY($1)
		ORDER BY timeslot_id
		LIMIT 1
	`

	var slotID int64
	err := r.db.QueryRow(ctx, query, slotIDs).Scan(&slotID)
	if err != nil {
		if base.IsNotFound(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("find referenced slot: %w", err)
	}

	return slotID, true, nil
}

// ListByDoctor получает заявки врача, новые сначала; status == nil - все статусы
func (r *AppointmentRepository) ListByDoctor(ctx context.Context, doctorID int64, status *model.AppointmentStatus) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `, s.start_time, s.is_booked, p.id, p.username
		FROM appointments a
		JOIN time_slots s ON s.id = a.timeslot_id
		LEFT JOIN users p ON p.id = a.patient_id
		WHERE a.doctor_id = $1`
	args := []any{doctorID}

	if status != nil {
		query += ` AND a.status = $2`
		args = append(args, *status)
	}
	query += ` ORDER BY a.created_at DESC, a.id DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list appointments by doctor: %w", err)
	}
	defer rows.Close()

	var appointments []*model.Appointment
	for rows.Next() {
		var (
			appt            model.Appointment
			startTime       string
			isBooked        bool
			patientID       *int64
			patientUsername *string
		)
		err := rows.Scan(
			&appt.ID,
			&appt.PatientID,
			&appt.DoctorID,
			&appt.TimeSlotID,
			&appt.AppointmentDate,
			&appt.Status,
			&appt.CreatedAt,
			&appt.UpdatedAt,
			&startTime,
			&isBooked,
			&patientID,
			&patientUsername,
		)
		if err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		appt.Slot = &model.TimeSlot{ID: appt.TimeSlotID, DoctorID: appt.DoctorID, Date: appt.AppointmentDate, StartTime: startTime, IsBooked: isBooked}
		appt.Patient = userProjection(patientID, patientUsername, model.RolePatient)
		appointments = append(appointments, &appt)
	}

	return appointments, rows.Err()
}

// NextConfirmed получает ближайший подтверждённый приём пользователя начиная с fromDate
func (r *AppointmentRepository) NextConfirmed(ctx context.Context, userID int64, role model.Role, fromDate time.Time) (*model.Appointment, error) {
	ownerColumn := "a.patient_id"
	if role == model.RoleDoctor {
		ownerColumn = "a.doctor_id"
	}

	query := `
		SELECT ` + appointmentColumns + `, s.start_time, s.is_booked, p.id, p.username, d.id, d.username
		FROM appointments a
		JOIN time_slots s ON s.id = a.timeslot_id
		LEFT JOIN users p ON p.id = a.patient_id
		LEFT JOIN users d ON d.id = a.doctor_id
		WHERE a.status = $1
		  AND a.appointment_date >= $2
		  AND ` + ownerColumn + ` = $3
		ORDER BY a.appointment_date ASC, s.start_time ASC
		LIMIT 1
	`

	var (
		appt            model.Appointment
		startTime       string
		isBooked        bool
		patientID       *int64
		patientUsername *string
		doctorID        *int64
		doctorUsername  *string
	)
	err := r.db.QueryRow(ctx, query, model.AppointmentStatusConfirmed, fromDate, userID).Scan(
		&appt.ID,
		&appt.PatientID,
		&appt.DoctorID,
		&appt.TimeSlotID,
		&appt.AppointmentDate,
		&appt.Status,
		&appt.CreatedAt,
		&appt.UpdatedAt,
		&startTime,
		&isBooked,
		&patientID,
		&patientUsername,
		&doctorID,
		&doctorUsername,
	)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get next confirmed appointment: %w", err)
	}

	appt.Slot = &model.TimeSlot{ID: appt.TimeSlotID, DoctorID: appt.DoctorID, Date: appt.AppointmentDate, StartTime: startTime, IsBooked: isBooked}
	appt.Patient = userProjection(patientID, patientUsername, model.RolePatient)
	appt.Doctor = userProjection(doctorID, doctorUsername, model.RoleDoctor)

	return &appt, nil
}

// ConfirmedPatients получает уникальных пациентов с подтверждёнными приёмами у врача
func (r *AppointmentRepository) ConfirmedPatients(ctx context.Context, doctorID int64) ([]*model.User, error) {
	query := `
		SELECT DISTINCT u.id, u.username, u.role, u.created_at
		FROM users u
		JOIN appointments a ON a.patient_id = u.id
		WHERE a.doctor_id = $1 AND a.status = $2
		ORDER BY u.username
	`

	rows, err := r.db.Query(ctx, query, doctorID, model.AppointmentStatusConfirmed)
	if err != nil {
		return nil, fmt.Errorf("get confirmed patients: %w", err)
	}
	defer rows.Close()

	var patients []*model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Role, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan patient: %w", err)
		}
		patients = append(patients, &u)
	}

	return patients, rows.Err()
}

func userProjection(id *int64, username *string, role model.Role) *model.User {
	if id == nil {
		return nil
	}
	return &model.User{ID: *id, Username: derefString(username), Role: role}
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
