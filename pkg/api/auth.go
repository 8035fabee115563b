package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/NicolasHaas/cliniclink/pkg/model"
	"github.com/NicolasHaas/cliniclink/pkg/session"
)

// AuthService covers the auth/ endpoints and keeps the session store in step.
type AuthService struct {
	c        *Client
	sessions session.Store
}

// Login authenticates and replaces the stored session on success.
func (s *AuthService) Login(ctx context.Context, email, password string) (model.LoginData, error) {
	data, err := Do[model.LoginData](ctx, s.c, http.MethodPost, "auth/login",
		model.LoginRequest{Email: email, Password: password})
	if err != nil {
		return data, err
	}
	if data.Token == "" {
		return data, s.c.fail(http.MethodPost, "auth/login", newProtocolError(http.StatusOK, errMissingToken))
	}
	if err := s.sessions.Save(model.SessionFromLogin(data)); err != nil {
		return data, fmt.Errorf("api: save session: %w", err)
	}
	return data, nil
}

// Register creates an account and stores the session when the server hands
// back a token. A pending account's token only opens the realtime socket.
func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest) (model.LoginData, error) {
	data, err := Do[model.LoginData](ctx, s.c, http.MethodPost, "auth/register", req)
	if err != nil {
		return data, err
	}
	if data.Token != "" {
		if err := s.sessions.Save(model.SessionFromLogin(data)); err != nil {
			return data, fmt.Errorf("api: save session: %w", err)
		}
	}
	return data, nil
}

// RefreshToken swaps the current token for a new one, keeping the rest of the session.
func (s *AuthService) RefreshToken(ctx context.Context) (model.LoginData, error) {
	data, err := Do[model.LoginData](ctx, s.c, http.MethodPost, "auth/refresh", model.RefreshTokenRequest{})
	if err != nil {
		return data, err
	}
	if data.Token == "" {
		return data, nil
	}
	sess := s.sessions.Get()
	if data.UserID != "" {
		sess = model.SessionFromLogin(data)
	} else {
		sess.Token = data.Token
		sess.LoggedIn = true
	}
	if err := s.sessions.Save(sess); err != nil {
		return data, fmt.Errorf("api: save session: %w", err)
	}
	return data, nil
}

func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	_, err := Do[json.RawMessage](ctx, s.c, http.MethodPost, "auth/forgot-password",
		model.ForgotPasswordRequest{Email: email})
	return err
}

func (s *AuthService) ResetPassword(ctx context.Context, req model.ResetPasswordRequest) error {
	_, err := Do[json.RawMessage](ctx, s.c, http.MethodPost, "auth/reset-password", req)
	return err
}

// Health returns whatever the server reports under data.
func (s *AuthService) Health(ctx context.Context) (json.RawMessage, error) {
	return Do[json.RawMessage](ctx, s.c, http.MethodGet, "auth/health", nil)
}

// Logout forgets the local session. There is no server-side logout endpoint.
func (s *AuthService) Logout() error {
	if err := s.sessions.Clear(); err != nil {
		return fmt.Errorf("api: clear session: %w", err)
	}
	return nil
}
