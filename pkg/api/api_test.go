package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/NicolasHaas/cliniclink/pkg/metrics"
	"github.com/NicolasHaas/cliniclink/pkg/model"
	"github.com/NicolasHaas/cliniclink/pkg/session"
	"github.com/NicolasHaas/cliniclink/pkg/transport"
)

// newTestClient serves every request with handler and returns a Client
// wired through the real transport chain.
func newTestClient(t *testing.T, store session.Store, handler http.HandlerFunc) (*Client, *metrics.Metrics) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	m := metrics.New()
	c, err := NewClient(srv.URL+"/api", transport.NewHTTPClient(transport.DefaultConfig(), store, m), m)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c, m
}

func reply(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func asAPIError(t *testing.T, err error) *Error {
	t.Helper()
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("error %v (%T) is not *api.Error", err, err)
	}
	return e
}

func TestClassify(t *testing.T) {
	tests := []struct {
		status int
		kind   Kind
		msg    string
	}{
		{400, KindClient, MsgBadRequest},
		{401, KindClient, MsgUnauthorized},
		{403, KindClient, MsgForbidden},
		{404, KindClient, MsgNotFound},
		{409, KindClient, MsgConnection},
		{500, KindServer, MsgServer},
		{502, KindServer, MsgConnection},
		{503, KindServer, MsgUnavailable},
		{302, KindServer, MsgConnection},
	}
	for _, tt := range tests {
		got := Classify(tt.status)
		if got.Kind != tt.kind || got.Message != tt.msg || got.Status != tt.status {
			t.Errorf("Classify(%d) = {%v %q %d}, want {%v %q}", tt.status, got.Kind, got.Message, got.Status, tt.kind, tt.msg)
		}
	}
}

func TestDoSuccess(t *testing.T) {
	c, _ := newTestClient(t, session.NewMemory(), reply(200,
		`{"success":true,"data":[{"id":"d1","firstName":"Ana","lastName":"Roy","specialization":"Cardiology"}]}`))

	got, err := Do[[]model.Doctor](context.Background(), c, http.MethodGet, "doctors", nil)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	want := []model.Doctor{{ID: "d1", FirstName: "Ana", LastName: "Roy", Specialization: "Cardiology"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Do mismatch (-want +got):\n%s", diff)
	}
}

func TestDoSuccessWithAbsentData(t *testing.T) {
	for _, body := range []string{`{"success":true}`, `{"success":true,"data":null}`} {
		c, _ := newTestClient(t, session.NewMemory(), reply(200, body))
		got, err := Do[json.RawMessage](context.Background(), c, http.MethodDelete, "appointments/a1", nil)
		if err != nil {
			t.Errorf("body %s: unexpected error %v", body, err)
		}
		if len(got) != 0 {
			t.Errorf("body %s: data = %s, want empty", body, got)
		}
	}
}

func TestDoBusinessError(t *testing.T) {
	c, m := newTestClient(t, session.NewMemory(), reply(200,
		`{"success":false,"error":{"code":"SLOT_TAKEN","message":"Ce créneau est déjà réservé"}}`))

	_, err := Do[model.Appointment](context.Background(), c, http.MethodPost, "appointments", model.CreateAppointmentRequest{DoctorID: "d1"})
	e := asAPIError(t, err)
	if e.Kind != KindBusiness || e.Code != "SLOT_TAKEN" {
		t.Errorf("error = %+v, want business SLOT_TAKEN", e)
	}
	if err.Error() != "Ce créneau est déjà réservé" {
		t.Errorf("message = %q, want server text verbatim", err.Error())
	}
	if m.BusinessErrors.Load() != 1 {
		t.Errorf("BusinessErrors = %d, want 1", m.BusinessErrors.Load())
	}
}

func TestDoBusinessErrorAsString(t *testing.T) {
	c, _ := newTestClient(t, session.NewMemory(), reply(200,
		`{"success":false,"error":"Compte en attente d'approbation"}`))

	_, err := Do[model.LoginData](context.Background(), c, http.MethodPost, "auth/login", nil)
	e := asAPIError(t, err)
	if e.Kind != KindBusiness || e.Message != "Compte en attente d'approbation" {
		t.Errorf("error = %+v", e)
	}
}

func TestDoNonSuccessStatusIgnoresBody(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"unauthorized unparsable", 401, `<html>nope</html>`, MsgUnauthorized},
		{"unauthorized envelope", 401, `{"success":false,"error":{"message":"token expired"}}`, MsgUnauthorized},
		{"forbidden", 403, ``, MsgForbidden},
		{"unavailable", 503, `{"success":false}`, MsgUnavailable},
		{"teapot", 418, `{}`, MsgConnection},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, session.NewMemory(), reply(tt.status, tt.body))
			_, err := Do[json.RawMessage](context.Background(), c, http.MethodGet, "users/me", nil)
			e := asAPIError(t, err)
			if e.Status != tt.status || e.Message != tt.want {
				t.Errorf("error = {%d %q}, want {%d %q}", e.Status, e.Message, tt.status, tt.want)
			}
		})
	}
}

func TestDoSessionExpired(t *testing.T) {
	c, _ := newTestClient(t, session.NewMemory(), reply(401, `garbage`))
	_, err := Do[json.RawMessage](context.Background(), c, http.MethodGet, "users/me", nil)
	if !IsSessionExpired(err) {
		t.Errorf("IsSessionExpired(%v) = false, want true", err)
	}
	if err.Error() != "Session expirée. Veuillez vous reconnecter." {
		t.Errorf("message = %q", err.Error())
	}
}

func TestDoProtocolErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `ok`},
		{"empty body", ``},
		{"no success field", `{"data":{}}`},
		{"failure without error", `{"success":false}`},
		{"success with error", `{"success":true,"error":{"message":"x"}}`},
		{"wrong data shape", `{"success":true,"data":"text"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, m := newTestClient(t, session.NewMemory(), reply(200, tt.body))
			_, err := Do[model.Appointment](context.Background(), c, http.MethodGet, "appointments/a1", nil)
			e := asAPIError(t, err)
			if e.Kind != KindProtocol || e.Message != MsgServer {
				t.Errorf("error = %+v, want protocol", e)
			}
			if m.ProtocolErrors.Load() != 1 {
				t.Errorf("ProtocolErrors = %d, want 1", m.ProtocolErrors.Load())
			}
		})
	}
}

func TestDoNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	m := metrics.New()
	c, err := NewClient(url+"/api/", transport.NewHTTPClient(transport.DefaultConfig(), session.NewMemory(), m), m)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = Do[json.RawMessage](context.Background(), c, http.MethodGet, "doctors", nil)
	e := asAPIError(t, err)
	if e.Kind != KindNetwork || e.Message != MsgNetwork {
		t.Errorf("error = %+v, want network", e)
	}
	if errors.Unwrap(err) == nil {
		t.Errorf("network error lost its cause")
	}
	if m.NetworkErrors.Load() != 1 || m.TransportFailures.Load() != 1 {
		t.Errorf("metrics = %+v", m.Snapshot())
	}
}

func TestDoCancelledContextIsNetworkError(t *testing.T) {
	c, _ := newTestClient(t, session.NewMemory(), func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := Do[json.RawMessage](ctx, c, http.MethodGet, "doctors", nil)
	if KindOf(err) != KindNetwork {
		t.Errorf("KindOf = %v, want network", KindOf(err))
	}
}

func TestDoSendsHeadersAndQuery(t *testing.T) {
	var got *http.Request
	c, _ := newTestClient(t, session.NewMemoryWith(model.Session{Token: "abc", LoggedIn: true}),
		func(w http.ResponseWriter, r *http.Request) {
			got = r.Clone(context.Background())
			reply(200, `{"success":true,"data":[]}`)(w, r)
		})

	svc := NewServices(c, session.NewMemory())
	if _, err := svc.Appointments.AvailableSlots(context.Background(), "d 1", "2026-10-20"); err != nil {
		t.Fatalf("AvailableSlots: %v", err)
	}
	if got.URL.Path != "/api/appointments/available-slots" {
		t.Errorf("path = %q", got.URL.Path)
	}
	if got.URL.Query().Get("doctorId") != "d 1" || got.URL.Query().Get("date") != "2026-10-20" {
		t.Errorf("query = %q", got.URL.RawQuery)
	}
	if got.Header.Get("Accept") != "application/json" {
		t.Errorf("Accept = %q", got.Header.Get("Accept"))
	}
	if got.Header.Get("User-Agent") == "" {
		t.Errorf("missing User-Agent")
	}
}

func TestCallAndGo(t *testing.T) {
	c, _ := newTestClient(t, session.NewMemory(), reply(200, `{"success":true,"data":"note"}`))

	r := Call[string](context.Background(), c, http.MethodGet, "patients/p1/notes", nil)
	if !r.Ok() || r.Value != "note" || r.Kind() != KindNone {
		t.Errorf("Call = %+v", r)
	}

	select {
	case r := <-Go[string](context.Background(), c, http.MethodGet, "patients/p1/notes", nil):
		if !r.Ok() || r.Value != "note" {
			t.Errorf("Go = %+v", r)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Go never delivered")
	}
}

func TestLoginSavesSession(t *testing.T) {
	store := session.NewMemory()
	c, _ := newTestClient(t, store, reply(200,
		`{"success":true,"data":{"userId":"u1","firstName":"Nadia","lastName":"Karim","email":"n@x","role":"Clerk","token":"tok","roleSpecificId":"c1"}}`))

	svc := NewServices(c, store)
	if _, err := svc.Auth.Login(context.Background(), "n@x", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	want := model.Session{Token: "tok", UserID: "u1", Role: "Clerk", DisplayName: "Nadia Karim", Email: "n@x", RoleSpecificID: "c1", LoggedIn: true}
	if diff := cmp.Diff(want, store.Get()); diff != "" {
		t.Errorf("session mismatch (-want +got):\n%s", diff)
	}

	if err := svc.Auth.Logout(); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if store.Get().LoggedIn {
		t.Errorf("still logged in after Logout")
	}
}

func TestLoginFailureKeepsSession(t *testing.T) {
	prev := model.Session{Token: "old", LoggedIn: true}
	store := session.NewMemoryWith(prev)
	c, _ := newTestClient(t, store, reply(200, `{"success":false,"error":{"message":"Identifiants invalides"}}`))

	_, err := NewServices(c, store).Auth.Login(context.Background(), "n@x", "bad")
	if KindOf(err) != KindBusiness {
		t.Fatalf("Login error kind = %v, want business", KindOf(err))
	}
	if diff := cmp.Diff(prev, store.Get()); diff != "" {
		t.Errorf("session changed on failed login (-want +got):\n%s", diff)
	}
}

func TestNewClientRejectsBadURL(t *testing.T) {
	for _, u := range []string{"ftp://x/api", "://nope"} {
		if _, err := NewClient(u, nil, nil); err == nil {
			t.Errorf("NewClient(%q): expected error", u)
		}
	}
}

// rawServer answers every connection with resp verbatim and then hangs up,
// which lets a test send a body shorter than its Content-Length.
func rawServer(t *testing.T, resp string) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			if _, err := http.ReadRequest(bufio.NewReader(conn)); err == nil {
				_, _ = io.WriteString(conn, resp)
			}
			_ = conn.Close()
		}
	}()
	return "http://" + ln.Addr().String()
}

func TestDoTruncatedErrorBodyIsStillClassified(t *testing.T) {
	tests := []struct {
		name     string
		status   string
		wantKind Kind
		wantMsg  string
	}{
		{"unauthorized", "401 Unauthorized", KindClient, MsgUnauthorized},
		{"server error", "500 Internal Server Error", KindServer, MsgServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := rawServer(t, "HTTP/1.1 "+tt.status+"\r\nContent-Length: 100\r\n\r\nabc")
			m := metrics.New()
			c, err := NewClient(base+"/api", transport.NewHTTPClient(transport.DefaultConfig(), session.NewMemory(), m), m)
			if err != nil {
				t.Fatalf("NewClient: %v", err)
			}

			_, err = Do[json.RawMessage](context.Background(), c, http.MethodGet, "appointments", nil)
			e := asAPIError(t, err)
			if e.Kind != tt.wantKind || e.Message != tt.wantMsg {
				t.Errorf("error = %v/%q, want %v/%q", e.Kind, e.Message, tt.wantKind, tt.wantMsg)
			}
			if m.NetworkErrors.Load() != 0 {
				t.Errorf("counted as a network error: %+v", m.Snapshot())
			}
		})
	}

	t.Run("session expired", func(t *testing.T) {
		base := rawServer(t, "HTTP/1.1 401 Unauthorized\r\nContent-Length: 100\r\n\r\nabc")
		c, err := NewClient(base+"/api", transport.NewHTTPClient(transport.DefaultConfig(), session.NewMemory(), nil), nil)
		if err != nil {
			t.Fatalf("NewClient: %v", err)
		}
		_, err = Do[json.RawMessage](context.Background(), c, http.MethodGet, "appointments", nil)
		if !IsSessionExpired(err) {
			t.Errorf("IsSessionExpired(%v) = false", err)
		}
	})
}

func TestDoTruncatedSuccessBodyIsNetworkError(t *testing.T) {
	base := rawServer(t, "HTTP/1.1 200 OK\r\nContent-Length: 100\r\n\r\n{\"success\":")
	c, err := NewClient(base+"/api", transport.NewHTTPClient(transport.DefaultConfig(), session.NewMemory(), nil), nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = Do[json.RawMessage](context.Background(), c, http.MethodGet, "appointments", nil)
	if KindOf(err) != KindNetwork {
		t.Errorf("KindOf = %v, want network", KindOf(err))
	}
}

func TestDoUnencodableBodyIsRequestError(t *testing.T) {
	var called atomic.Bool
	c, _ := newTestClient(t, session.NewMemory(), func(w http.ResponseWriter, r *http.Request) {
		called.Store(true)
	})

	res := Call[json.RawMessage](context.Background(), c, http.MethodPost, "appointments", map[string]any{"bad": make(chan int)})
	if res.Ok() || res.Kind() != KindRequest {
		t.Errorf("Kind = %v, want request", res.Kind())
	}
	if errors.Unwrap(res.Err) == nil {
		t.Errorf("request error lost its cause")
	}
	if called.Load() {
		t.Errorf("server was reached")
	}
}
