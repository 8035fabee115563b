package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/NicolasHaas/cliniclink/pkg/model"
)

type UserService struct {
	c *Client
}

func (s *UserService) Me(ctx context.Context) (model.UserProfile, error) {
	return Do[model.UserProfile](ctx, s.c, http.MethodGet, "users/me", nil)
}

func (s *UserService) UpdateProfile(ctx context.Context, req model.UpdateProfileRequest) (model.UserProfile, error) {
	return Do[model.UserProfile](ctx, s.c, http.MethodPut, "users/me", req)
}

func (s *UserService) UpdatePassword(ctx context.Context, req model.UpdatePasswordRequest) error {
	_, err := Do[json.RawMessage](ctx, s.c, http.MethodPut, "users/me/password", req)
	return err
}

// Pending lists accounts awaiting approval. Clerks only.
func (s *UserService) Pending(ctx context.Context) ([]model.PendingUser, error) {
	return Do[[]model.PendingUser](ctx, s.c, http.MethodGet, "users/pending", nil)
}

func (s *UserService) Approve(ctx context.Context, id string) error {
	_, err := Do[json.RawMessage](ctx, s.c, http.MethodPost, segment("users", id, "approve"), nil)
	return err
}

func (s *UserService) Reject(ctx context.Context, id string) error {
	_, err := Do[json.RawMessage](ctx, s.c, http.MethodPost, segment("users", id, "reject"), nil)
	return err
}
