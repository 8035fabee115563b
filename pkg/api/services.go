package api

import (
	"errors"

	"github.com/NicolasHaas/cliniclink/pkg/session"
)

var errMissingToken = errors.New("api: login succeeded without a token")

// Services groups every endpoint family behind one Client.
type Services struct {
	Auth         *AuthService
	Appointments *AppointmentService
	Doctors      *DoctorService
	Patients     *PatientService
	Clerk        *ClerkService
	Users        *UserService
}

func NewServices(c *Client, sessions session.Store) *Services {
	return &Services{
		Auth:         &AuthService{c: c, sessions: sessions},
		Appointments: &AppointmentService{c: c},
		Doctors:      &DoctorService{c: c},
		Patients:     &PatientService{c: c},
		Clerk:        &ClerkService{c: c},
		Users:        &UserService{c: c},
	}
}
