package fakeclinic

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/NicolasHaas/cliniclink/pkg/model"
)

// AddUser creates an active account and returns its profile. Doctors and
// patients also get their role record.
func (s *Server) AddUser(email, password, firstName, lastName string, role model.Role) (model.UserProfile, error) {
	return s.addUser(email, password, firstName, lastName, role, false)
}

func (s *Server) addUser(email, password, firstName, lastName string, role model.Role, pending bool) (model.UserProfile, error) {
	hash, err := hashPassword(password)
	if err != nil {
		return model.UserProfile{}, fmt.Errorf("fakeclinic: hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(email)
	if _, exists := s.byEmail[key]; exists {
		return model.UserProfile{}, fmt.Errorf("fakeclinic: email %s already registered", email)
	}

	p := model.UserProfile{
		UserID:         uuid.NewString(),
		Email:          email,
		FirstName:      firstName,
		LastName:       lastName,
		Role:           role.String(),
		RoleSpecificID: uuid.NewString(),
		IsActive:       !pending,
		CreatedAt:      time.Now().UTC().Truncate(time.Second),
	}
	switch role {
	case model.RoleDoctor:
		s.doctors[p.RoleSpecificID] = &model.Doctor{ID: p.RoleSpecificID, FirstName: firstName, LastName: lastName, Specialization: "Médecine générale"}
	case model.RolePatient:
		s.patients[p.RoleSpecificID] = &model.Patient{
			ID:               p.RoleSpecificID,
			Email:            email,
			FirstName:        firstName,
			LastName:         lastName,
			RegistrationDate: p.CreatedAt.Format(time.RFC3339),
		}
	}
	s.accounts[p.UserID] = &account{profile: p, hash: hash, pending: pending}
	s.byEmail[key] = p.UserID
	return p, nil
}

func loginData(p model.UserProfile, token string) model.LoginData {
	return model.LoginData{
		UserID:         p.UserID,
		FirstName:      p.FirstName,
		LastName:       p.LastName,
		Email:          p.Email,
		Role:           p.Role,
		Token:          token,
		RoleSpecificID: p.RoleSpecificID,
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acc := s.accounts[s.byEmail[strings.ToLower(req.Email)]]
	if acc == nil || bcrypt.CompareHashAndPassword(acc.hash, []byte(req.Password)) != nil {
		writeFail(w, http.StatusOK, "INVALID_CREDENTIALS", "Email ou mot de passe incorrect")
		return
	}
	switch {
	case acc.rejected:
		writeFail(w, http.StatusOK, "ACCOUNT_REJECTED", "Votre compte a été refusé")
		return
	case acc.pending:
		writeFail(w, http.StatusOK, "ACCOUNT_PENDING", "Votre compte est en attente d'approbation")
		return
	}
	writeData(w, loginData(acc.profile, s.issueToken(acc.profile.UserID)))
}

// handleRegister creates a pending account. The token it returns only opens
// the realtime socket, where the approval decision is pushed.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if !decodeBody(w, r, &req) {
		return
	}
	role := model.Role(req.Role)
	if req.Email == "" || req.Password == "" || !role.Valid() {
		writeFail(w, http.StatusBadRequest, "VALIDATION", "Données invalides")
		return
	}
	p, err := s.addUser(req.Email, req.Password, req.FirstName, req.LastName, role, true)
	if err != nil {
		writeFail(w, http.StatusOK, "EMAIL_TAKEN", "Cet email est déjà utilisé")
		return
	}

	s.mu.Lock()
	token := s.issueToken(p.UserID)
	s.mu.Unlock()
	writeData(w, loginData(p, token))
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req model.ForgotPasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}
	// Same answer whether or not the email exists.
	writeData(w, "Si cet email existe, un lien de réinitialisation a été envoyé")
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req model.ResetPasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.NewPassword == "" || req.NewPassword != req.ConfirmPassword {
		writeFail(w, http.StatusOK, "PASSWORD_MISMATCH", "Les mots de passe ne correspondent pas")
		return
	}
	hash, err := hashPassword(req.NewPassword)
	if err != nil {
		writeFail(w, http.StatusInternalServerError, "INTERNAL", "Erreur interne")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.accounts[s.byEmail[strings.ToLower(req.Email)]]
	if acc == nil {
		writeFail(w, http.StatusOK, "NOT_FOUND", "Utilisateur introuvable")
		return
	}
	acc.hash = hash
	writeData(w, nil)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	acc := s.caller(r)
	if acc == nil {
		writeFail(w, http.StatusUnauthorized, "UNAUTHORIZED", "Token invalide")
		return
	}
	old, _ := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")

	s.mu.Lock()
	delete(s.tokens, old)
	token := s.issueToken(acc.profile.UserID)
	data := loginData(acc.profile, token)
	s.mu.Unlock()
	writeData(w, data)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeData(w, map[string]string{"status": "healthy"})
}
