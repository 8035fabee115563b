package api

import (
	"context"
	"net/http"

	"github.com/NicolasHaas/cliniclink/pkg/model"
)

type DoctorService struct {
	c *Client
}

func (s *DoctorService) List(ctx context.Context) ([]model.Doctor, error) {
	return Do[[]model.Doctor](ctx, s.c, http.MethodGet, "doctors", nil)
}

func (s *DoctorService) Dashboard(ctx context.Context) (model.DoctorDashboard, error) {
	return Do[model.DoctorDashboard](ctx, s.c, http.MethodGet, "doctors/dashboard", nil)
}

func (s *DoctorService) Patients(ctx context.Context) ([]model.Patient, error) {
	return Do[[]model.Patient](ctx, s.c, http.MethodGet, "doctors/patients", nil)
}

// Agenda returns appointments between startDate and endDate; both are optional.
func (s *DoctorService) Agenda(ctx context.Context, startDate, endDate string) ([]model.Appointment, error) {
	path := withQuery("doctors/agenda", "startDate", startDate, "endDate", endDate)
	return Do[[]model.Appointment](ctx, s.c, http.MethodGet, path, nil)
}
