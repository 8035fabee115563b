package app

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/NicolasHaas/cliniclink/pkg/api"
	"github.com/NicolasHaas/cliniclink/pkg/config"
	"github.com/NicolasHaas/cliniclink/pkg/fakeclinic"
	"github.com/NicolasHaas/cliniclink/pkg/model"
	"github.com/NicolasHaas/cliniclink/pkg/realtime"
	"github.com/NicolasHaas/cliniclink/pkg/session"
)

const waitTimeout = 5 * time.Second

type fixture struct {
	clinic *fakeclinic.Server
	demo   fakeclinic.Demo
	cfg    *config.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clinic := fakeclinic.New()
	demo, err := clinic.Seed()
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	srv := httptest.NewServer(clinic)
	t.Cleanup(srv.Close)

	cfg := config.DefaultConfig()
	cfg.APIBaseURL = srv.URL + "/api/"
	cfg.WSURL = "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	cfg.DBPath = filepath.Join(t.TempDir(), "session.db")
	cfg.Reconnect.Delay = 50 * time.Millisecond
	return &fixture{clinic: clinic, demo: demo, cfg: cfg}
}

func (f *fixture) newApp(t *testing.T, store session.Store) *App {
	t.Helper()
	a, err := New(f.cfg, store)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestLoginConnectsAndLogoutDisconnects(t *testing.T) {
	f := newFixture(t)
	store := session.NewMemory()
	a := f.newApp(t, store)

	data, err := a.Login(context.Background(), f.demo.Patient.Email, fakeclinic.DemoPassword)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !store.Get().LoggedIn || store.Get().Token != data.Token {
		t.Fatalf("session not saved: %+v", store.Get())
	}
	eventually(t, "channel connected", a.Channel.IsConnected)
	eventually(t, "server socket", func() bool { return f.clinic.Connections(data.UserID) == 1 })

	me, err := a.API.Users.Me(context.Background())
	if err != nil {
		t.Fatalf("Me: %v", err)
	}
	if me.Email != f.demo.Patient.Email {
		t.Errorf("Me = %+v", me)
	}

	if err := a.Logout(); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if store.Get().LoggedIn {
		t.Errorf("still logged in after Logout")
	}
	if a.Channel.State() != realtime.StateDisconnected {
		t.Errorf("channel state = %v", a.Channel.State())
	}
	eventually(t, "server socket closed", func() bool { return f.clinic.Connections(data.UserID) == 0 })

	_, err = a.API.Users.Me(context.Background())
	if !api.IsSessionExpired(err) {
		t.Errorf("Me after logout: %v, want 401", err)
	}
}

func TestAppointmentEventsReachPatient(t *testing.T) {
	f := newFixture(t)
	patient := f.newApp(t, session.NewMemory())
	doctor := f.newApp(t, session.NewMemory())

	events := make(chan realtime.Event, 8)
	patient.Channel.Subscribe(realtime.Subscriber{OnEvent: func(e realtime.Event) { events <- e }})

	pd, err := patient.Login(context.Background(), f.demo.Patient.Email, fakeclinic.DemoPassword)
	if err != nil {
		t.Fatalf("patient Login: %v", err)
	}
	if _, err := doctor.Login(context.Background(), f.demo.Doctor.Email, fakeclinic.DemoPassword); err != nil {
		t.Fatalf("doctor Login: %v", err)
	}
	eventually(t, "patient socket", func() bool { return f.clinic.Connections(pd.UserID) == 1 })

	appt, err := patient.API.Appointments.Create(context.Background(), model.CreateAppointmentRequest{
		DoctorID:        f.demo.Doctor.RoleSpecificID,
		AppointmentDate: "2030-03-02T14:30:00",
		Reason:          "Douleur au genou",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := doctor.API.Appointments.Cancel(context.Background(), appt.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	select {
	case ev := <-events:
		c, ok := ev.(realtime.AppointmentCancelled)
		if !ok {
			t.Fatalf("event = %T, want AppointmentCancelled", ev)
		}
		got, err := c.Appointment()
		if err != nil || got.ID != appt.ID || got.Status != model.StatusCancelled {
			t.Errorf("payload = %+v, %v", got, err)
		}
	case <-time.After(waitTimeout):
		t.Fatal("no appointment_cancelled event")
	}
}

func TestBusinessErrorSurfacesServerMessage(t *testing.T) {
	f := newFixture(t)
	a := f.newApp(t, session.NewMemory())

	_, err := a.Login(context.Background(), f.demo.Clerk.Email, "wrong")
	if api.KindOf(err) != api.KindBusiness {
		t.Fatalf("Login error kind = %v, want business", api.KindOf(err))
	}
	if err.Error() != "Email ou mot de passe incorrect" {
		t.Errorf("message = %q", err.Error())
	}
	if a.Channel.State() != realtime.StateDisconnected {
		t.Errorf("channel moved to %v after failed login", a.Channel.State())
	}
}

func TestRegisterThenRejectIsPushed(t *testing.T) {
	f := newFixture(t)
	newcomer := f.newApp(t, session.NewMemory())
	clerk := f.newApp(t, session.NewMemory())

	events := make(chan realtime.Event, 8)
	newcomer.Channel.Subscribe(realtime.Subscriber{OnEvent: func(e realtime.Event) { events <- e }})

	reg, err := newcomer.Register(context.Background(),
		model.NewRegisterRequest("lea@example.com", "pw", "Léa", "Blanc", model.RoleDoctor))
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	eventually(t, "newcomer socket", func() bool { return f.clinic.Connections(reg.UserID) == 1 })

	if _, err := clerk.Login(context.Background(), f.demo.Clerk.Email, fakeclinic.DemoPassword); err != nil {
		t.Fatalf("clerk Login: %v", err)
	}
	pending, err := clerk.API.Users.Pending(context.Background())
	if err != nil || len(pending) != 1 || pending[0].ID != reg.UserID {
		t.Fatalf("Pending = %+v, %v", pending, err)
	}
	if err := clerk.API.Users.Reject(context.Background(), reg.UserID); err != nil {
		t.Fatalf("Reject: %v", err)
	}

	select {
	case ev := <-events:
		r, ok := ev.(realtime.AccountRejected)
		if !ok || r.Reason == "" {
			t.Errorf("event = %#v, want AccountRejected with reason", ev)
		}
	case <-time.After(waitTimeout):
		t.Fatal("no account_rejected event")
	}
}

func TestOpenRestoresSessionAcrossRestart(t *testing.T) {
	f := newFixture(t)
	f.cfg.SessionKey = "local passphrase"

	first, err := Open(f.cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data, err := first.Login(context.Background(), f.demo.Doctor.Email, fakeclinic.DemoPassword)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	second, err := Open(f.cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()

	if got := second.Sessions.Get(); got.Token != data.Token || got.DisplayName != "Ana Roy" {
		t.Errorf("restored session = %+v", got)
	}
	if !second.Resume() {
		t.Fatal("Resume = false for a stored session")
	}
	eventually(t, "resumed channel", second.Channel.IsConnected)
}

func TestReconnectAfterServerDrop(t *testing.T) {
	f := newFixture(t)
	a := f.newApp(t, session.NewMemory())

	errs := make(chan error, 8)
	a.Channel.Subscribe(realtime.Subscriber{OnError: func(err error) { errs <- err }})

	data, err := a.Login(context.Background(), f.demo.Clerk.Email, fakeclinic.DemoPassword)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	eventually(t, "socket", func() bool { return f.clinic.Connections(data.UserID) == 1 })

	f.clinic.DropConnections(data.UserID)

	select {
	case err := <-errs:
		if api.KindOf(err) != api.KindChannel {
			t.Errorf("error kind = %v", api.KindOf(err))
		}
	case <-time.After(waitTimeout):
		t.Fatal("no channel error after drop")
	}
	eventually(t, "reconnected", func() bool { return f.clinic.Connections(data.UserID) == 1 && a.Channel.IsConnected() })
	if a.Metrics.ChannelReconnects.Load() != 1 {
		t.Errorf("ChannelReconnects = %d, want 1", a.Metrics.ChannelReconnects.Load())
	}
}
