package model

import "time"

// LoginData is the payload of a successful login, register or token refresh.
type LoginData struct {
	UserID         string `json:"userId"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	Email          string `json:"email"`
	Role           string `json:"role"`
	Token          string `json:"token"`
	RoleSpecificID string `json:"roleSpecificId"`
}

// UserProfile is returned by users/me.
type UserProfile struct {
	UserID         string    `json:"userId"`
	Email          string    `json:"email"`
	FirstName      string    `json:"firstName"`
	LastName       string    `json:"lastName"`
	Phone          string    `json:"phone,omitempty"`
	Role           string    `json:"role"`
	RoleSpecificID string    `json:"roleSpecificId,omitempty"`
	IsActive       bool      `json:"isActive"`
	CreatedAt      time.Time `json:"createdAt"`
}

// PendingUser is an account waiting for clerk approval.
type PendingUser struct {
	ID            string `json:"id"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	Email         string `json:"email"`
	Phone         string `json:"phone,omitempty"`
	RequestedDate string `json:"requestedDate"`
	Role          string `json:"role"`
}

// FullName joins first and last name.
func (p PendingUser) FullName() string {
	return p.FirstName + " " + p.LastName
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest encodes Role numerically (Patient=0, Doctor=1, Clerk=2),
// which is what the register endpoint expects.
type RegisterRequest struct {
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	Email          string `json:"email"`
	Password       string `json:"password"`
	Phone          string `json:"phone"`
	Role           int    `json:"role"`
	DateOfBirth    string `json:"dateOfBirth,omitempty"`
	Specialization string `json:"specialization,omitempty"`
}

// NewRegisterRequest fills the role code and the default date of birth the
// API requires for patients.
func NewRegisterRequest(email, password, firstName, lastName string, role Role) RegisterRequest {
	req := RegisterRequest{
		FirstName: firstName,
		LastName:  lastName,
		Email:     email,
		Password:  password,
		Role:      int(role),
	}
	if role == RolePatient {
		req.DateOfBirth = "2000-01-01"
	}
	return req
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Email           string `json:"email"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

type RefreshTokenRequest struct{}

type UpdateProfileRequest struct {
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

type UpdatePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}
