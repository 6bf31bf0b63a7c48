package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/Freeeeeet/clinic_scheduler/internal/model"
	"github.com/Freeeeeet/clinic_scheduler/internal/service"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type ScheduleService interface {
	ReplaceDaySchedule(ctx context.Context, doctorID int64, date string, startTimes []string) ([]*model.TimeSlot, error)
	DeleteDaySchedule(ctx context.Context, doctorID int64, date string) (int64, error)
	ListSlots(ctx context.Context, doctorID int64, date string, onlyAvailable bool) ([]*model.TimeSlot, error)
	ListDoctorSlots(ctx context.Context, doctorID int64, date string) ([]*model.TimeSlot, error)
}

type BookingService interface {
	Book(ctx context.Context, patientID, doctorID int64, date, startTime string) (*model.Appointment, error)
}

type AppointmentService interface {
	Confirm(ctx context.Context, appointmentID, doctorID int64) (*model.Appointment, error)
	Reject(ctx context.Context, appointmentID, doctorID int64) (*model.Appointment, error)
	ListRequests(ctx context.Context, doctorID int64, statusFilter string) ([]*model.Appointment, error)
	NextConfirmed(ctx context.Context, userID int64, role model.Role) (*model.Appointment, error)
	ConfirmedPatients(ctx context.Context, doctorID int64) ([]*model.User, error)
}

type SessionService interface {
	Join(ctx context.Context, appointmentID, userID int64) (*service.SessionAccess, error)
}

type NotificationService interface {
	List(ctx context.Context, userID int64, markAsRead bool) ([]*model.Notification, error)
	UnreadCount(ctx context.Context, userID int64) (int, error)
	MarkRead(ctx context.Context, notificationID, userID int64) error
}

// Handler тонкий HTTP-слой над сервисами записи на приём
type Handler struct {
	schedule      ScheduleService
	booking       BookingService
	appointments  AppointmentService
	sessions      SessionService
	notifications NotificationService
	logger        *zap.Logger
}

func NewHandler(
	schedule ScheduleService,
	booking BookingService,
	appointments AppointmentService,
	sessions SessionService,
	notifications NotificationService,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		schedule:      schedule,
		booking:       booking,
		appointments:  appointments,
		sessions:      sessions,
		notifications: notifications,
		logger:        logger,
	}
}

type slotResponse struct {
	ID        int64  `json:"id"`
	StartTime string `json:"start_time"`
	IsBooked  *bool  `json:"is_booked,omitempty"`
}

type replaceScheduleRequest struct {
	Slots []struct {
		StartTime string `json:"start_time"`
	} `json:"slots"`
}

type scheduleResponse struct {
	Date            string         `json:"date"`
	SlotsInSchedule []slotResponse `json:"slots_in_schedule"`
}

type bookRequest struct {
	DoctorID  int64  `json:"doctor_id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
}

type statusResponse struct {
	AppointmentID int64                   `json:"appointment_id"`
	Status        model.AppointmentStatus `json:"status"`
}

type userResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type requestResponse struct {
	AppointmentID int64                   `json:"appointment_id"`
	Patient       *userResponse           `json:"patient"`
	Date          string                  `json:"date"`
	StartTime     string                  `json:"start_time"`
	Status        model.AppointmentStatus `json:"status"`
	CreatedAt     time.Time               `json:"created_at"`
}

type appointmentDetails struct {
	AppointmentID int64                   `json:"appointment_id"`
	Date          string                  `json:"date"`
	StartTime     string                  `json:"start_time"`
	Status        model.AppointmentStatus `json:"status"`
	Patient       *userResponse           `json:"patient,omitempty"`
	Doctor        *userResponse           `json:"doctor,omitempty"`
}

type upcomingResponse struct {
	Appointment *appointmentDetails `json:"appointment"`
}

// GET /api/schedule?date= - расписание врача на день со всеми слотами
func (h *Handler) GetOwnSchedule(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	date := r.URL.Query().Get("date")

	slots, err := h.schedule.ListSlots(r.Context(), p.UserID, date, false)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, scheduleResponse{Date: date, SlotsInSchedule: toSlotResponses(slots, true)})
}

// PUT /api/schedule?date=
func (h *Handler) ReplaceSchedule(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	date := r.URL.Query().Get("date")

	var req replaceScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid JSON body")
		return
	}
	startTimes := make([]string, 0, len(req.Slots))
	for _, s := range req.Slots {
		startTimes = append(startTimes, s.StartTime)
	}

	slots, err := h.schedule.ReplaceDaySchedule(r.Context(), p.UserID, date, startTimes)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, scheduleResponse{Date: date, SlotsInSchedule: toSlotResponses(slots, true)})
}

// DELETE /api/schedule?date=
func (h *Handler) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())

	deleted, err := h.schedule.DeleteDaySchedule(r.Context(), p.UserID, r.URL.Query().Get("date"))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted_count": deleted})
}

// GET /api/doctors/{doctorID}/schedule?date= - свободные слоты для пациента
func (h *Handler) GetDoctorSchedule(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := pathID(w, r, "doctorID")
	if !ok {
		return
	}

	slots, err := h.schedule.ListDoctorSlots(r.Context(), doctorID, r.URL.Query().Get("date"))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toSlotResponses(slots, false))
}

// POST /api/appointments
func (h *Handler) BookAppointment(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())

	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid JSON body")
		return
	}

	appt, err := h.booking.Book(r.Context(), p.UserID, req.DoctorID, req.Date, req.StartTime)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, statusResponse{AppointmentID: appt.ID, Status: appt.Status})
}

// GET /api/requests?status=
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())

	appointments, err := h.appointments.ListRequests(r.Context(), p.UserID, r.URL.Query().Get("status"))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	resp := make([]requestResponse, 0, len(appointments))
	for _, a := range appointments {
		item := requestResponse{
			AppointmentID: a.ID,
			Patient:       toUserResponse(a.Patient),
			Date:          model.FormatDate(a.AppointmentDate),
			Status:        a.Status,
			CreatedAt:     a.CreatedAt,
		}
		if a.Slot != nil {
			item.StartTime = a.Slot.StartTime
		}
		resp = append(resp, item)
	}
	writeJSON(w, http.StatusOK, resp)
}

// POST /api/requests/{id}/confirm
func (h *Handler) ConfirmRequest(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.appointments.Confirm)
}

// POST /api/requests/{id}/reject
func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.appointments.Reject)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, apply func(context.Context, int64, int64) (*model.Appointment, error)) {
	p, _ := PrincipalFrom(r.Context())
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	appt, err := apply(r.Context(), id, p.UserID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{AppointmentID: appt.ID, Status: appt.Status})
}

// GET /api/appointments/upcoming
func (h *Handler) NextAppointment(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())

	appt, err := h.appointments.NextConfirmed(r.Context(), p.UserID, p.Role)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if appt == nil {
		writeJSON(w, http.StatusOK, upcomingResponse{})
		return
	}

	details := &appointmentDetails{
		AppointmentID: appt.ID,
		Date:          model.FormatDate(appt.AppointmentDate),
		Status:        appt.Status,
		Patient:       toUserResponse(appt.Patient),
		Doctor:        toUserResponse(appt.Doctor),
	}
	if appt.Slot != nil {
		details.StartTime = appt.Slot.StartTime
	}
	writeJSON(w, http.StatusOK, upcomingResponse{Appointment: details})
}

// GET /api/patients/confirmed
func (h *Handler) ConfirmedPatients(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())

	patients, err := h.appointments.ConfirmedPatients(r.Context(), p.UserID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	resp := make([]*userResponse, 0, len(patients))
	for _, u := range patients {
		resp = append(resp, toUserResponse(u))
	}
	writeJSON(w, http.StatusOK, resp)
}

// POST /api/appointments/{id}/session
func (h *Handler) JoinSession(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	access, err := h.sessions.Join(r.Context(), id, p.UserID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, access)
}

// GET /api/notifications?mark_as_read=
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())

	markAsRead := false
	if v := r.URL.Query().Get("mark_as_read"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation", "mark_as_read must be true or false")
			return
		}
		markAsRead = parsed
	}

	notifications, err := h.notifications.List(r.Context(), p.UserID, markAsRead)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if notifications == nil {
		notifications = []*model.Notification{}
	}
	writeJSON(w, http.StatusOK, notifications)
}

// GET /api/notifications/unread-count
func (h *Handler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())

	count, err := h.notifications.UnreadCount(r.Context(), p.UserID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"unread_count": count})
}

// POST /api/notifications/{id}/read
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.notifications.MarkRead(r.Context(), id, p.UserID); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "validation", param+" must be a positive integer")
		return 0, false
	}
	return id, true
}

func toSlotResponses(slots []*model.TimeSlot, withBooked bool) []slotResponse {
	resp := make([]slotResponse, 0, len(slots))
	for _, s := range slots {
		item := slotResponse{ID: s.ID, StartTime: s.StartTime}
		if withBooked {
			booked := s.IsBooked
			item.IsBooked = &booked
		}
		resp = append(resp, item)
	}
	return resp
}

func toUserResponse(u *model.User) *userResponse {
	if u == nil {
		return nil
	}
	return &userResponse{ID: u.ID, Username: u.Username}
}
