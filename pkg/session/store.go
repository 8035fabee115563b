// Package session holds the persisted record of the signed-in user.
//
// Every component reads the current credential through Store.Get, so a
// token saved by a login is visible to the very next request.
package session

import "github.com/NicolasHaas/cliniclink/pkg/model"

// Persistence keys. Values are opaque strings; isLoggedIn is "true"/"false".
const (
	KeyToken          = "token"
	KeyUserID         = "userId"
	KeyRole           = "role"
	KeyName           = "name"
	KeyEmail          = "email"
	KeyRoleSpecificID = "roleSpecificId"
	KeyIsLoggedIn     = "isLoggedIn"
)

// Keys lists every persisted key in a stable order.
var Keys = []string{KeyToken, KeyUserID, KeyRole, KeyName, KeyEmail, KeyRoleSpecificID, KeyIsLoggedIn}

// Reader is the read side used by the transport and the realtime channel.
type Reader interface {
	// Get never fails: missing or unreadable storage yields the zero Session.
	Get() model.Session
}

// Store is the durable holder of the current session.
// Save and Clear are atomic with respect to Get.
type Store interface {
	Reader
	Save(s model.Session) error
	Clear() error
}

func toValues(s model.Session) map[string]string {
	loggedIn := "false"
	if s.LoggedIn {
		loggedIn = "true"
	}
	return map[string]string{
		KeyToken:          s.Token,
		KeyUserID:         s.UserID,
		KeyRole:           s.Role,
		KeyName:           s.DisplayName,
		KeyEmail:          s.Email,
		KeyRoleSpecificID: s.RoleSpecificID,
		KeyIsLoggedIn:     loggedIn,
	}
}

func fromValues(v map[string]string) model.Session {
	return model.Session{
		Token:          v[KeyToken],
		UserID:         v[KeyUserID],
		Role:           v[KeyRole],
		DisplayName:    v[KeyName],
		Email:          v[KeyEmail],
		RoleSpecificID: v[KeyRoleSpecificID],
		LoggedIn:       v[KeyIsLoggedIn] == "true",
	}
}
