// Package fakeclinic is an in-memory clinic server speaking the same REST
// envelope and WebSocket push protocol as the real one. It backs the
// end-to-end tests and the clinicmock binary.
package fakeclinic

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"

	"github.com/NicolasHaas/cliniclink/pkg/model"
	"github.com/NicolasHaas/cliniclink/pkg/rbac"
)

type account struct {
	profile  model.UserProfile
	hash     []byte
	pending  bool
	rejected bool
}

// Server holds all state behind one RWMutex.
type Server struct {
	mu           sync.RWMutex
	accounts     map[string]*account // by user id
	byEmail      map[string]string   // lower-case email -> user id
	tokens       map[string]string   // token -> user id
	doctors      map[string]*model.Doctor
	patients     map[string]*model.Patient
	appointments map[string]*model.Appointment
	order        []string // appointment ids in creation order

	hub    *hub
	router *mux.Router
	log    *slog.Logger
}

// New returns an empty server. Use Seed or AddUser to create accounts.
func New() *Server {
	s := &Server{
		accounts:     make(map[string]*account),
		byEmail:      make(map[string]string),
		tokens:       make(map[string]string),
		doctors:      make(map[string]*model.Doctor),
		patients:     make(map[string]*model.Patient),
		appointments: make(map[string]*model.Appointment),
		hub:          newHub(),
		log:          slog.Default().With("component", "fakeclinic"),
	}
	s.router = s.routes()
	return s
}

// ServeHTTP makes Server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/ws", s.handleWS).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.authMiddleware)

	api.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/auth/register", s.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/auth/forgot-password", s.handleForgotPassword).Methods(http.MethodPost)
	api.HandleFunc("/auth/reset-password", s.handleResetPassword).Methods(http.MethodPost)
	api.HandleFunc("/auth/refresh", s.handleRefresh).Methods(http.MethodPost)
	api.HandleFunc("/auth/health", s.handleHealth).Methods(http.MethodGet)

	api.HandleFunc("/appointments", s.handleListAppointments).Methods(http.MethodGet)
	api.HandleFunc("/appointments", s.handleCreateAppointment).Methods(http.MethodPost)
	api.HandleFunc("/appointments/available-slots", s.handleAvailableSlots).Methods(http.MethodGet)
	api.HandleFunc("/appointments/{id}", s.handleGetAppointment).Methods(http.MethodGet)
	api.HandleFunc("/appointments/{id}", s.handleRescheduleAppointment).Methods(http.MethodPut)
	api.HandleFunc("/appointments/{id}", s.handleCancelAppointment).Methods(http.MethodDelete)
	api.HandleFunc("/appointments/{id}/status", s.handleUpdateStatus).Methods(http.MethodPut)
	api.HandleFunc("/appointments/{id}/complete", s.handleCompleteAppointment).Methods(http.MethodPut)

	api.HandleFunc("/doctors", s.handleListDoctors).Methods(http.MethodGet)
	api.HandleFunc("/doctors/dashboard", s.require(rbac.PermDoctorDesk, s.handleDoctorDashboard)).Methods(http.MethodGet)
	api.HandleFunc("/doctors/patients", s.require(rbac.PermDoctorDesk, s.handleDoctorPatients)).Methods(http.MethodGet)
	api.HandleFunc("/doctors/agenda", s.require(rbac.PermDoctorDesk, s.handleAgenda)).Methods(http.MethodGet)

	api.HandleFunc("/patients", s.handleListPatients).Methods(http.MethodGet)
	api.HandleFunc("/patients/{id}", s.handleGetPatient).Methods(http.MethodGet)
	api.HandleFunc("/patients/{id}/notes", s.handleGetNotes).Methods(http.MethodGet)
	api.HandleFunc("/patients/{id}/notes", s.require(rbac.PermEditPatientNotes, s.handleUpdateNotes)).Methods(http.MethodPut)
	api.HandleFunc("/patients/{id}/medical-history", s.handleMedicalHistory).Methods(http.MethodGet)

	api.HandleFunc("/clerk/dashboard", s.require(rbac.PermClerkDesk, s.handleClerkDashboard)).Methods(http.MethodGet)
	api.HandleFunc("/clerk/appointments/today", s.require(rbac.PermClerkDesk, s.handleClerkToday)).Methods(http.MethodGet)
	api.HandleFunc("/clerk/appointments/pending", s.require(rbac.PermClerkDesk, s.handleClerkPending)).Methods(http.MethodGet)

	api.HandleFunc("/users/me", s.handleMe).Methods(http.MethodGet)
	api.HandleFunc("/users/me", s.handleUpdateMe).Methods(http.MethodPut)
	api.HandleFunc("/users/me/password", s.handleUpdatePassword).Methods(http.MethodPut)
	api.HandleFunc("/users/pending", s.require(rbac.PermManageAccounts, s.handlePendingUsers)).Methods(http.MethodGet)
	api.HandleFunc("/users/{id}/approve", s.require(rbac.PermManageAccounts, s.handleApprove)).Methods(http.MethodPost)
	api.HandleFunc("/users/{id}/reject", s.require(rbac.PermManageAccounts, s.handleReject)).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeFail(w, http.StatusNotFound, "NOT_FOUND", "Élément non trouvé.")
	})
	return r
}

type ctxKey struct{}

var publicPrefixes = []string{
	"/api/auth/login",
	"/api/auth/register",
	"/api/auth/forgot-password",
	"/api/auth/reset-password",
	"/api/auth/health",
}

// authMiddleware resolves the bearer token to a user id for every non-public route.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, p := range publicPrefixes {
			if strings.HasPrefix(r.URL.Path, p) {
				next.ServeHTTP(w, r)
				return
			}
		}
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			writeFail(w, http.StatusUnauthorized, "UNAUTHORIZED", "Token manquant")
			return
		}
		s.mu.RLock()
		userID, ok := s.tokens[token]
		s.mu.RUnlock()
		if !ok {
			writeFail(w, http.StatusUnauthorized, "UNAUTHORIZED", "Token invalide")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, userID)))
	})
}

func (s *Server) require(perm rbac.Permission, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		acc := s.caller(r)
		if acc == nil {
			writeFail(w, http.StatusForbidden, "FORBIDDEN", "Accès refusé")
			return
		}
		if msg := rbac.RequirePermission(model.ParseRole(acc.profile.Role), perm); msg != "" {
			writeFail(w, http.StatusForbidden, "FORBIDDEN", msg)
			return
		}
		next(w, r)
	}
}

// caller returns the authenticated account, or nil on public routes.
func (s *Server) caller(r *http.Request) *account {
	id, _ := r.Context().Value(ctxKey{}).(string)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accounts[id]
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

// writeFail sends success=false. Business failures use 200, like the real server.
func writeFail(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, envelope{Success: false, Error: &errorBody{Code: code, Message: msg}})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeFail(w, http.StatusBadRequest, "INVALID_BODY", "Données invalides")
		return false
	}
	return true
}

func (s *Server) issueToken(userID string) string {
	token := uuid.NewString()
	s.tokens[token] = userID
	return token
}

func hashPassword(pw string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
}
