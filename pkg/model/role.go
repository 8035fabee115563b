package model

import (
	"encoding/json"
	"strings"
)

// Role identifies which side of the clinic an account belongs to.
type Role int

const (
	RolePatient Role = iota // books appointments, reads own history
	RoleDoctor              // agenda, patient notes, completes appointments
	RoleClerk               // dashboard, approves pending accounts
)

func (r Role) String() string {
	switch r {
	case RolePatient:
		return "Patient"
	case RoleDoctor:
		return "Doctor"
	case RoleClerk:
		return "Clerk"
	default:
		return "unknown"
	}
}

// ParseRole converts a wire role name to a Role. Matching is case-insensitive
// and anything unrecognised falls back to RolePatient, as the register form does.
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "doctor":
		return RoleDoctor
	case "clerk":
		return RoleClerk
	default:
		return RolePatient
	}
}

// Valid returns true if the role is a recognised value.
func (r Role) Valid() bool {
	return r >= RolePatient && r <= RoleClerk
}

// MarshalJSON encodes the role as its wire name.
func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON accepts both the wire name ("Doctor") and the numeric form
// used by the register endpoint (1).
func (r *Role) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*r = Role(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*r = ParseRole(s)
	return nil
}
