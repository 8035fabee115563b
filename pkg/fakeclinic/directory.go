package fakeclinic

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"

	"github.com/NicolasHaas/cliniclink/pkg/model"
	"github.com/NicolasHaas/cliniclink/pkg/rbac"
)

func (s *Server) handleListDoctors(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	out := make([]model.Doctor, 0, len(s.doctors))
	for _, d := range s.doctors {
		out = append(out, *d)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].LastName < out[j].LastName })
	writeData(w, out)
}

func (s *Server) handleDoctorDashboard(w http.ResponseWriter, r *http.Request) {
	acc := s.caller(r)
	today := time.Now().Format(dateLayout)

	s.mu.RLock()
	defer s.mu.RUnlock()
	var d model.DoctorDashboard
	patients := map[string]bool{}
	for _, a := range s.appointments {
		if a.DoctorID != acc.profile.RoleSpecificID {
			continue
		}
		patients[a.PatientID] = true
		switch {
		case a.Status == model.StatusCompleted:
			d.CompletedAppointments++
		case a.Status == model.StatusScheduled && strings.HasPrefix(a.AppointmentDate, today):
			d.TodayAppointments++
		case a.Status == model.StatusScheduled:
			d.PendingAppointments++
		}
	}
	d.TotalPatients = len(patients)
	writeData(w, d)
}

func (s *Server) handleDoctorPatients(w http.ResponseWriter, r *http.Request) {
	acc := s.caller(r)
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := map[string]bool{}
	out := []model.Patient{}
	for _, id := range s.order {
		a := s.appointments[id]
		if a.DoctorID == acc.profile.RoleSpecificID && !seen[a.PatientID] {
			seen[a.PatientID] = true
			if p := s.patients[a.PatientID]; p != nil {
				out = append(out, *p)
			}
		}
	}
	writeData(w, out)
}

func (s *Server) handleListPatients(w http.ResponseWriter, r *http.Request) {
	acc := s.caller(r)
	if msg := rbac.RequirePermission(model.ParseRole(acc.profile.Role), rbac.PermSearchPatients); msg != "" {
		writeFail(w, http.StatusForbidden, "FORBIDDEN", msg)
		return
	}
	search := strings.ToLower(r.URL.Query().Get("search"))

	s.mu.RLock()
	out := []model.Patient{}
	for _, p := range s.patients {
		name := strings.ToLower(p.FirstName + " " + p.LastName + " " + p.Email)
		if search == "" || strings.Contains(name, search) {
			out = append(out, *p)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].LastName < out[j].LastName })
	writeData(w, out)
}

// patientForLocked resolves {id}; patients may only read their own record. Caller holds s.mu.
func (s *Server) patientForLocked(w http.ResponseWriter, r *http.Request, acc *account) *model.Patient {
	id := mux.Vars(r)["id"]
	if model.ParseRole(acc.profile.Role) == model.RolePatient && id != acc.profile.RoleSpecificID {
		writeFail(w, http.StatusForbidden, "FORBIDDEN", "Accès refusé")
		return nil
	}
	p := s.patients[id]
	if p == nil {
		writeFail(w, http.StatusNotFound, "NOT_FOUND", "Patient introuvable")
		return nil
	}
	return p
}

func (s *Server) handleGetPatient(w http.ResponseWriter, r *http.Request) {
	acc := s.caller(r)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p := s.patientForLocked(w, r, acc); p != nil {
		writeData(w, p)
	}
}

func (s *Server) handleGetNotes(w http.ResponseWriter, r *http.Request) {
	acc := s.caller(r)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p := s.patientForLocked(w, r, acc); p != nil {
		writeData(w, p.DoctorNotes)
	}
}

func (s *Server) handleUpdateNotes(w http.ResponseWriter, r *http.Request) {
	acc := s.caller(r)
	var req model.UpdatePatientNotesRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if p := s.patientForLocked(w, r, acc); p != nil {
		p.DoctorNotes = req.Notes
		writeData(w, p)
	}
}

func (s *Server) handleMedicalHistory(w http.ResponseWriter, r *http.Request) {
	acc := s.caller(r)
	s.mu.RLock()
	defer s.mu.RUnlock()
	p := s.patientForLocked(w, r, acc)
	if p == nil {
		return
	}
	h := model.MedicalHistory{PatientID: p.ID, PatientName: p.FirstName + " " + p.LastName, Records: []model.MedicalRecord{}}
	for _, id := range s.order {
		a := s.appointments[id]
		if a.PatientID != p.ID || a.Status != model.StatusCompleted {
			continue
		}
		h.Records = append(h.Records, model.MedicalRecord{
			ID:                   a.ID,
			AppointmentDate:      a.AppointmentDate,
			Reason:               a.Reason,
			DoctorNotes:          a.DoctorNotes,
			DoctorName:           a.DoctorName,
			DoctorSpecialization: a.DoctorSpecialization,
			Status:               a.Status,
		})
	}
	h.TotalRecords = len(h.Records)
	writeData(w, h)
}

func (s *Server) handleClerkDashboard(w http.ResponseWriter, _ *http.Request) {
	today := time.Now().Format(dateLayout)
	s.mu.RLock()
	defer s.mu.RUnlock()
	d := model.Dashboard{TotalPatients: len(s.patients), TotalDoctors: len(s.doctors)}
	for _, a := range s.appointments {
		if a.Status != model.StatusScheduled {
			continue
		}
		if strings.HasPrefix(a.AppointmentDate, today) {
			d.TodayAppointments++
		} else {
			d.PendingAppointments++
		}
	}
	writeData(w, d)
}

func (s *Server) handleClerkToday(w http.ResponseWriter, _ *http.Request) {
	today := time.Now().Format(dateLayout)
	s.mu.RLock()
	defer s.mu.RUnlock()
	writeData(w, s.appointmentsLocked(func(a *model.Appointment) bool {
		return strings.HasPrefix(a.AppointmentDate, today)
	}))
}

func (s *Server) handleClerkPending(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	writeData(w, s.appointmentsLocked(func(a *model.Appointment) bool {
		return a.Status == model.StatusScheduled
	}))
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	acc := s.caller(r)
	s.mu.RLock()
	defer s.mu.RUnlock()
	writeData(w, acc.profile)
}

func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	acc := s.caller(r)
	var req model.UpdateProfileRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if req.FirstName != "" {
		acc.profile.FirstName = req.FirstName
	}
	if req.LastName != "" {
		acc.profile.LastName = req.LastName
	}
	if req.Phone != "" {
		acc.profile.Phone = req.Phone
	}
	writeData(w, acc.profile)
}

func (s *Server) handleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	acc := s.caller(r)
	var req model.UpdatePasswordRequest
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
	if bcrypt.CompareHashAndPassword(acc.hash, []byte(req.CurrentPassword)) != nil {
		writeFail(w, http.StatusOK, "INVALID_PASSWORD", "Mot de passe actuel incorrect")
		return
	}
	acc.hash = hash
	writeData(w, nil)
}

func (s *Server) handlePendingUsers(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	out := []model.PendingUser{}
	for _, acc := range s.accounts {
		if !acc.pending || acc.rejected {
			continue
		}
		p := acc.profile
		out = append(out, model.PendingUser{
			ID:            p.UserID,
			FirstName:     p.FirstName,
			LastName:      p.LastName,
			Email:         p.Email,
			Phone:         p.Phone,
			RequestedDate: p.CreatedAt.Format(time.RFC3339),
			Role:          p.Role,
		})
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedDate < out[j].RequestedDate })
	writeData(w, out)
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	acc := s.accounts[id]
	if acc == nil || !acc.pending {
		s.mu.Unlock()
		writeFail(w, http.StatusNotFound, "NOT_FOUND", "Demande introuvable")
		return
	}
	acc.pending = false
	acc.profile.IsActive = true
	s.mu.Unlock()

	s.Push(id, "account_approved", map[string]string{"userId": id})
	writeData(w, nil)
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var body struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength > 0 && !decodeBody(w, r, &body) {
		return
	}
	if body.Reason == "" {
		body.Reason = "Demande refusée par l'accueil"
	}

	s.mu.Lock()
	acc := s.accounts[id]
	if acc == nil || !acc.pending {
		s.mu.Unlock()
		writeFail(w, http.StatusNotFound, "NOT_FOUND", "Demande introuvable")
		return
	}
	acc.rejected = true
	s.mu.Unlock()

	s.Push(id, "account_rejected", map[string]string{"reason": body.Reason})
	writeData(w, nil)
}
