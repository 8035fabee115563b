package model

import "strings"

// Session is the persisted record of the authenticated user. It is replaced
// wholesale on login and reset to the zero value on logout.
type Session struct {
	Token          string
	UserID         string
	Role           string
	DisplayName    string
	Email          string
	RoleSpecificID string // PatientId, DoctorId or ClerkId depending on Role
	LoggedIn       bool
}

// HasToken reports whether the session carries a usable credential.
func (s Session) HasToken() bool {
	return s.Token != ""
}

// SessionFromLogin builds the session saved after a successful login or register.
func SessionFromLogin(d LoginData) Session {
	return Session{
		Token:          d.Token,
		UserID:         d.UserID,
		Role:           d.Role,
		DisplayName:    strings.TrimSpace(d.FirstName + " " + d.LastName),
		Email:          d.Email,
		RoleSpecificID: d.RoleSpecificID,
		LoggedIn:       true,
	}
}
