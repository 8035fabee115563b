package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/NicolasHaas/cliniclink/pkg/model"
)

type AppointmentService struct {
	c *Client
}

// List returns the caller's appointments, optionally filtered by status.
func (s *AppointmentService) List(ctx context.Context, status string) ([]model.Appointment, error) {
	return Do[[]model.Appointment](ctx, s.c, http.MethodGet, withQuery("appointments", "status", status), nil)
}

func (s *AppointmentService) Get(ctx context.Context, id string) (model.Appointment, error) {
	return Do[model.Appointment](ctx, s.c, http.MethodGet, segment("appointments", id), nil)
}

func (s *AppointmentService) Create(ctx context.Context, req model.CreateAppointmentRequest) (model.Appointment, error) {
	return Do[model.Appointment](ctx, s.c, http.MethodPost, "appointments", req)
}

func (s *AppointmentService) Reschedule(ctx context.Context, id, date string) (model.Appointment, error) {
	return Do[model.Appointment](ctx, s.c, http.MethodPut, segment("appointments", id),
		model.RescheduleAppointmentRequest{AppointmentDate: date})
}

func (s *AppointmentService) UpdateStatus(ctx context.Context, id, status string) (model.Appointment, error) {
	return Do[model.Appointment](ctx, s.c, http.MethodPut, segment("appointments", id, "status"),
		model.UpdateAppointmentStatusRequest{Status: status})
}

func (s *AppointmentService) Complete(ctx context.Context, id, doctorNotes string) (model.Appointment, error) {
	return Do[model.Appointment](ctx, s.c, http.MethodPut, segment("appointments", id, "complete"),
		model.CompleteAppointmentRequest{DoctorNotes: doctorNotes})
}

func (s *AppointmentService) Cancel(ctx context.Context, id string) error {
	_, err := Do[json.RawMessage](ctx, s.c, http.MethodDelete, segment("appointments", id), nil)
	return err
}

// AvailableSlots lists the bookable times of a doctor on date (YYYY-MM-DD).
func (s *AppointmentService) AvailableSlots(ctx context.Context, doctorID, date string) ([]model.TimeSlot, error) {
	path := withQuery("appointments/available-slots", "doctorId", doctorID, "date", date)
	return Do[[]model.TimeSlot](ctx, s.c, http.MethodGet, path, nil)
}
