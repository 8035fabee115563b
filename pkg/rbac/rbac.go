// Package rbac provides role-based access control checks for clinic operations.
package rbac

import "github.com/NicolasHaas/cliniclink/pkg/model"

// Permission is one guarded clinic operation.
type Permission int

const (
	PermManageAccounts Permission = iota // list, approve and reject pending accounts
	PermClerkDesk                        // clerk dashboard and daily lists
	PermDoctorDesk                       // doctor dashboard, agenda and patient list
	PermEditPatientNotes
	PermCompleteAppointment
	PermSearchPatients
)

// permissionMatrix maps roles to their allowed permissions.
var permissionMatrix = map[model.Role]map[Permission]bool{
	model.RoleClerk: {
		PermManageAccounts: true,
		PermClerkDesk:      true,
		PermSearchPatients: true,
	},
	model.RoleDoctor: {
		PermDoctorDesk:          true,
		PermEditPatientNotes:    true,
		PermCompleteAppointment: true,
		PermSearchPatients:      true,
	},
	model.RolePatient: {
		// Own appointments and record only
	},
}

// HasPermission checks if a role has a specific permission.
func HasPermission(role model.Role, perm Permission) bool {
	perms, ok := permissionMatrix[role]
	if !ok {
		return false
	}
	return perms[perm]
}

// RequirePermission returns an error message if the role lacks the permission, or empty string if allowed.
func RequirePermission(role model.Role, perm Permission) string {
	if HasPermission(role, perm) {
		return ""
	}
	return "Accès refusé : " + perm.String() + " réservé à un autre rôle"
}

func (p Permission) String() string {
	switch p {
	case PermManageAccounts:
		return "manage_accounts"
	case PermClerkDesk:
		return "clerk_desk"
	case PermDoctorDesk:
		return "doctor_desk"
	case PermEditPatientNotes:
		return "edit_patient_notes"
	case PermCompleteAppointment:
		return "complete_appointment"
	case PermSearchPatients:
		return "search_patients"
	default:
		return "unknown"
	}
}
