package api

import (
	"context"
	"net/http"

	"github.com/NicolasHaas/cliniclink/pkg/model"
)

type PatientService struct {
	c *Client
}

func (s *PatientService) Search(ctx context.Context, query string) ([]model.Patient, error) {
	return Do[[]model.Patient](ctx, s.c, http.MethodGet, withQuery("patients", "search", query), nil)
}

func (s *PatientService) Get(ctx context.Context, id string) (model.Patient, error) {
	return Do[model.Patient](ctx, s.c, http.MethodGet, segment("patients", id), nil)
}

func (s *PatientService) Notes(ctx context.Context, id string) (string, error) {
	return Do[string](ctx, s.c, http.MethodGet, segment("patients", id, "notes"), nil)
}

func (s *PatientService) UpdateNotes(ctx context.Context, id, notes string) (model.Patient, error) {
	return Do[model.Patient](ctx, s.c, http.MethodPut, segment("patients", id, "notes"),
		model.UpdatePatientNotesRequest{Notes: notes})
}

func (s *PatientService) MedicalHistory(ctx context.Context, id string) (model.MedicalHistory, error) {
	return Do[model.MedicalHistory](ctx, s.c, http.MethodGet, segment("patients", id, "medical-history"), nil)
}
