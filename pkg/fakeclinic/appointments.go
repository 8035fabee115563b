package fakeclinic

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/NicolasHaas/cliniclink/pkg/model"
	"github.com/NicolasHaas/cliniclink/pkg/rbac"
)

const dateLayout = "2006-01-02"

// visibleTo reports whether acc may see a.
func visibleTo(acc *account, a *model.Appointment) bool {
	switch model.ParseRole(acc.profile.Role) {
	case model.RoleClerk:
		return true
	case model.RoleDoctor:
		return a.DoctorID == acc.profile.RoleSpecificID
	default:
		return a.PatientID == acc.profile.RoleSpecificID
	}
}

// appointmentsLocked lists appointments in creation order. Caller holds s.mu.
func (s *Server) appointmentsLocked(keep func(*model.Appointment) bool) []model.Appointment {
	out := []model.Appointment{}
	for _, id := range s.order {
		a := s.appointments[id]
		if keep(a) {
			out = append(out, *a)
		}
	}
	return out
}

func (s *Server) handleListAppointments(w http.ResponseWriter, r *http.Request) {
	acc := s.caller(r)
	status := r.URL.Query().Get("status")

	s.mu.RLock()
	defer s.mu.RUnlock()
	writeData(w, s.appointmentsLocked(func(a *model.Appointment) bool {
		return visibleTo(acc, a) && (status == "" || strings.EqualFold(a.Status, status))
	}))
}

// lookupLocked resolves {id} to an appointment the caller may see, writing 404 otherwise.
// Caller holds s.mu.
func (s *Server) lookupLocked(w http.ResponseWriter, r *http.Request, acc *account) *model.Appointment {
	a := s.appointments[mux.Vars(r)["id"]]
	if a == nil || !visibleTo(acc, a) {
		writeFail(w, http.StatusNotFound, "NOT_FOUND", "Rendez-vous introuvable")
		return nil
	}
	return a
}

func (s *Server) handleGetAppointment(w http.ResponseWriter, r *http.Request) {
	acc := s.caller(r)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if a := s.lookupLocked(w, r, acc); a != nil {
		writeData(w, a)
	}
}

func (s *Server) handleCreateAppointment(w http.ResponseWriter, r *http.Request) {
	acc := s.caller(r)
	var req model.CreateAppointmentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if model.ParseRole(acc.profile.Role) == model.RolePatient {
		req.PatientID = acc.profile.RoleSpecificID
	}
	if _, err := time.Parse("2006-01-02T15:04:05", req.AppointmentDate); err != nil {
		writeFail(w, http.StatusBadRequest, "VALIDATION", "Date invalide")
		return
	}

	s.mu.Lock()
	doc := s.doctors[req.DoctorID]
	pat := s.patients[req.PatientID]
	if doc == nil || pat == nil {
		s.mu.Unlock()
		writeFail(w, http.StatusOK, "NOT_FOUND", "Médecin ou patient introuvable")
		return
	}
	for _, a := range s.appointments {
		if a.DoctorID == req.DoctorID && a.AppointmentDate == req.AppointmentDate && a.Status == model.StatusScheduled {
			s.mu.Unlock()
			writeFail(w, http.StatusOK, "SLOT_TAKEN", "Ce créneau est déjà réservé")
			return
		}
	}
	a := &model.Appointment{
		ID:                   uuid.NewString(),
		PatientID:            pat.ID,
		DoctorID:             doc.ID,
		AppointmentDate:      req.AppointmentDate,
		Reason:               req.Reason,
		Notes:                req.Notes,
		Status:               model.StatusScheduled,
		PatientName:          pat.FirstName + " " + pat.LastName,
		DoctorName:           "Dr " + doc.FirstName + " " + doc.LastName,
		DoctorSpecialization: doc.Specialization,
	}
	s.appointments[a.ID] = a
	s.order = append(s.order, a.ID)
	created := *a
	doctorUser := s.userIDForLocked(doc.ID)
	s.mu.Unlock()

	s.Push(doctorUser, "new_appointment", created)
	writeData(w, created)
}

func (s *Server) handleRescheduleAppointment(w http.ResponseWriter, r *http.Request) {
	acc := s.caller(r)
	var req model.RescheduleAppointmentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.lookupLocked(w, r, acc)
	if a == nil {
		return
	}
	if a.Status != model.StatusScheduled {
		writeFail(w, http.StatusOK, "INVALID_STATE", "Ce rendez-vous ne peut plus être modifié")
		return
	}
	a.AppointmentDate = req.AppointmentDate
	writeData(w, a)
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	acc := s.caller(r)
	var req model.UpdateAppointmentStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	switch req.Status {
	case model.StatusScheduled, model.StatusCompleted, model.StatusCancelled:
	default:
		writeFail(w, http.StatusBadRequest, "VALIDATION", "Statut invalide")
		return
	}
	s.mu.Lock()
	a := s.lookupLocked(w, r, acc)
	if a == nil {
		s.mu.Unlock()
		return
	}
	a.Status = req.Status
	updated := *a
	s.mu.Unlock()

	s.notifyStatus(updated)
	writeData(w, updated)
}

func (s *Server) handleCompleteAppointment(w http.ResponseWriter, r *http.Request) {
	acc := s.caller(r)
	if msg := rbac.RequirePermission(model.ParseRole(acc.profile.Role), rbac.PermCompleteAppointment); msg != "" {
		writeFail(w, http.StatusForbidden, "FORBIDDEN", msg)
		return
	}
	var req model.CompleteAppointmentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.mu.Lock()
	a := s.lookupLocked(w, r, acc)
	if a == nil {
		s.mu.Unlock()
		return
	}
	a.Status = model.StatusCompleted
	a.DoctorNotes = req.DoctorNotes
	updated := *a
	s.mu.Unlock()

	s.notifyStatus(updated)
	writeData(w, updated)
}

func (s *Server) handleCancelAppointment(w http.ResponseWriter, r *http.Request) {
	acc := s.caller(r)
	s.mu.Lock()
	a := s.lookupLocked(w, r, acc)
	if a == nil {
		s.mu.Unlock()
		return
	}
	if a.Status == model.StatusCancelled {
		s.mu.Unlock()
		writeFail(w, http.StatusOK, "INVALID_STATE", "Ce rendez-vous est déjà annulé")
		return
	}
	a.Status = model.StatusCancelled
	updated := *a
	s.mu.Unlock()

	s.notifyStatus(updated)
	writeData(w, nil)
}

// notifyStatus pushes cancellations and completions to both parties.
func (s *Server) notifyStatus(a model.Appointment) {
	var event string
	switch a.Status {
	case model.StatusCancelled:
		event = "appointment_cancelled"
	case model.StatusCompleted:
		event = "appointment_completed"
	default:
		return
	}
	s.mu.RLock()
	users := []string{s.userIDForLocked(a.PatientID), s.userIDForLocked(a.DoctorID)}
	s.mu.RUnlock()
	for _, u := range users {
		if u != "" {
			s.Push(u, event, a)
		}
	}
}

// userIDForLocked maps a doctor or patient id back to its account. Caller holds s.mu.
func (s *Server) userIDForLocked(roleSpecificID string) string {
	for id, acc := range s.accounts {
		if acc.profile.RoleSpecificID == roleSpecificID {
			return id
		}
	}
	return ""
}

// handleAvailableSlots offers half-hour slots from 09:00 to 17:00.
func (s *Server) handleAvailableSlots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	doctorID, date := q.Get("doctorId"), q.Get("date")
	if _, err := time.Parse(dateLayout, date); err != nil || doctorID == "" {
		writeFail(w, http.StatusBadRequest, "VALIDATION", "Paramètres invalides")
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.doctors[doctorID] == nil {
		writeFail(w, http.StatusNotFound, "NOT_FOUND", "Médecin introuvable")
		return
	}
	taken := map[string]bool{}
	for _, a := range s.appointments {
		if a.DoctorID == doctorID && a.Status == model.StatusScheduled && strings.HasPrefix(a.AppointmentDate, date) {
			taken[a.AppointmentDate[len(date)+1:]] = true
		}
	}
	var slots []model.TimeSlot
	for m := 9 * 60; m < 17*60; m += 30 {
		t := fmt.Sprintf("%02d:%02d", m/60, m%60)
		slots = append(slots, model.TimeSlot{Time: t, Available: !taken[t+":00"]})
	}
	writeData(w, slots)
}

func (s *Server) handleAgenda(w http.ResponseWriter, r *http.Request) {
	acc := s.caller(r)
	start, end := r.URL.Query().Get("startDate"), r.URL.Query().Get("endDate")

	s.mu.RLock()
	list := s.appointmentsLocked(func(a *model.Appointment) bool {
		day := a.AppointmentDate[:min(len(a.AppointmentDate), len(dateLayout))]
		return a.DoctorID == acc.profile.RoleSpecificID &&
			(start == "" || day >= start) && (end == "" || day <= end)
	})
	s.mu.RUnlock()

	sort.SliceStable(list, func(i, j int) bool { return list[i].AppointmentDate < list[j].AppointmentDate })
	writeData(w, list)
}
