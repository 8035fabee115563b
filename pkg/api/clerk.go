package api

import (
	"context"
	"net/http"

	"github.com/NicolasHaas/cliniclink/pkg/model"
)

type ClerkService struct {
	c *Client
}

func (s *ClerkService) Dashboard(ctx context.Context) (model.Dashboard, error) {
	return Do[model.Dashboard](ctx, s.c, http.MethodGet, "clerk/dashboard", nil)
}

func (s *ClerkService) TodayAppointments(ctx context.Context) ([]model.Appointment, error) {
	return Do[[]model.Appointment](ctx, s.c, http.MethodGet, "clerk/appointments/today", nil)
}

func (s *ClerkService) PendingAppointments(ctx context.Context) ([]model.Appointment, error) {
	return Do[[]model.Appointment](ctx, s.c, http.MethodGet, "clerk/appointments/pending", nil)
}
