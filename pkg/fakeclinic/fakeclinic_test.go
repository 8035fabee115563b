package fakeclinic

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/NicolasHaas/cliniclink/pkg/model"
)

type reply struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *errorBody      `json:"error"`
}

func do(t *testing.T, h http.Handler, method, path, token string, body any) (int, reply) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out reply
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("%s %s: body is not an envelope: %q", method, path, rec.Body.String())
	}
	return rec.Code, out
}

func login(t *testing.T, s *Server, email string) model.LoginData {
	t.Helper()
	code, r := do(t, s, http.MethodPost, "/api/auth/login", "", model.LoginRequest{Email: email, Password: DemoPassword})
	if code != http.StatusOK || !r.Success {
		t.Fatalf("login %s: %d %+v", email, code, r.Error)
	}
	var d model.LoginData
	if err := json.Unmarshal(r.Data, &d); err != nil {
		t.Fatal(err)
	}
	return d
}

func seeded(t *testing.T) (*Server, Demo) {
	t.Helper()
	s := New()
	d, err := s.Seed()
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	return s, d
}

func TestLoginAndProtectedRoutes(t *testing.T) {
	s, demo := seeded(t)

	code, r := do(t, s, http.MethodPost, "/api/auth/login", "", model.LoginRequest{Email: demo.Clerk.Email, Password: "wrong"})
	if code != http.StatusOK || r.Success || r.Error == nil || r.Error.Code != "INVALID_CREDENTIALS" {
		t.Errorf("bad password: %d %+v", code, r)
	}

	if code, _ := do(t, s, http.MethodGet, "/api/users/me", "", nil); code != http.StatusUnauthorized {
		t.Errorf("no token: status %d, want 401", code)
	}

	tok := login(t, s, demo.Clerk.Email).Token
	code, r = do(t, s, http.MethodGet, "/api/users/me", tok, nil)
	if code != http.StatusOK || !r.Success {
		t.Fatalf("users/me: %d %+v", code, r)
	}
	var me model.UserProfile
	_ = json.Unmarshal(r.Data, &me)
	if me.UserID != demo.Clerk.UserID || me.Role != "Clerk" {
		t.Errorf("users/me = %+v", me)
	}
}

func TestRoleChecks(t *testing.T) {
	s, demo := seeded(t)
	patient := login(t, s, demo.Patient.Email).Token

	if code, _ := do(t, s, http.MethodGet, "/api/clerk/dashboard", patient, nil); code != http.StatusForbidden {
		t.Errorf("patient on clerk route: %d, want 403", code)
	}
	if code, _ := do(t, s, http.MethodGet, "/api/patients/"+demo.Doctor.RoleSpecificID, patient, nil); code != http.StatusForbidden {
		t.Errorf("patient reading another record: %d, want 403", code)
	}
}

func TestAppointmentLifecycle(t *testing.T) {
	s, demo := seeded(t)
	patient := login(t, s, demo.Patient.Email).Token
	doctor := login(t, s, demo.Doctor.Email).Token

	req := model.CreateAppointmentRequest{DoctorID: demo.Doctor.RoleSpecificID, AppointmentDate: "2030-01-15T10:00:00", Reason: "Contrôle"}
	_, r := do(t, s, http.MethodPost, "/api/appointments", patient, req)
	if !r.Success {
		t.Fatalf("create: %+v", r.Error)
	}
	var a model.Appointment
	_ = json.Unmarshal(r.Data, &a)
	if a.PatientID != demo.Patient.RoleSpecificID || a.Status != model.StatusScheduled {
		t.Errorf("created = %+v", a)
	}

	_, r = do(t, s, http.MethodPost, "/api/appointments", patient, req)
	if r.Success || r.Error.Code != "SLOT_TAKEN" {
		t.Errorf("double booking: %+v", r)
	}

	_, r = do(t, s, http.MethodGet, "/api/appointments/available-slots?doctorId="+demo.Doctor.RoleSpecificID+"&date=2030-01-15", patient, nil)
	var slots []model.TimeSlot
	_ = json.Unmarshal(r.Data, &slots)
	for _, sl := range slots {
		if sl.Time == "10:00" && sl.Available {
			t.Errorf("10:00 still offered after booking")
		}
	}

	_, r = do(t, s, http.MethodPut, "/api/appointments/"+a.ID+"/complete", doctor, model.CompleteAppointmentRequest{DoctorNotes: "RAS"})
	if !r.Success {
		t.Fatalf("complete: %+v", r.Error)
	}

	_, r = do(t, s, http.MethodGet, "/api/patients/"+demo.Patient.RoleSpecificID+"/medical-history", patient, nil)
	var h model.MedicalHistory
	_ = json.Unmarshal(r.Data, &h)
	if h.TotalRecords != 1 || h.Records[0].DoctorNotes != "RAS" {
		t.Errorf("history = %+v", h)
	}
}

func TestRegisterApprovePushesEvent(t *testing.T) {
	s, demo := seeded(t)
	srv := httptest.NewServer(s)
	defer srv.Close()

	_, r := do(t, s, http.MethodPost, "/api/auth/register", "",
		model.NewRegisterRequest("new@example.com", "pw", "Lea", "Blanc", model.RolePatient))
	if !r.Success {
		t.Fatalf("register: %+v", r.Error)
	}
	var reg model.LoginData
	_ = json.Unmarshal(r.Data, &reg)

	_, r = do(t, s, http.MethodPost, "/api/auth/login", "", model.LoginRequest{Email: "new@example.com", Password: "pw"})
	if r.Success || r.Error.Code != "ACCOUNT_PENDING" {
		t.Errorf("pending login: %+v", r)
	}

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + reg.Token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(5 * time.Second)
	for s.Connections(reg.UserID) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	clerk := login(t, s, demo.Clerk.Email).Token
	if _, r := do(t, s, http.MethodPost, "/api/users/"+reg.UserID+"/approve", clerk, nil); !r.Success {
		t.Fatalf("approve: %+v", r.Error)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, frame, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read push: %v", err)
	}
	if !strings.Contains(string(frame), `"event":"account_approved"`) {
		t.Errorf("push = %s", frame)
	}
}

func TestWSRejectsBadToken(t *testing.T) {
	s := New()
	srv := httptest.NewServer(s)
	defer srv.Close()

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws?token=nope", nil)
	if err == nil {
		t.Fatal("dial with bad token succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("response = %v, want 401", resp)
	}
}
