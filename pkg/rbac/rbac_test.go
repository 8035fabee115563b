package rbac

import (
	"strings"
	"testing"

	"github.com/NicolasHaas/cliniclink/pkg/model"
)

func TestHasPermission(t *testing.T) {
	tests := []struct {
		role model.Role
		perm Permission
		want bool
	}{
		{model.RoleClerk, PermManageAccounts, true},
		{model.RoleClerk, PermCompleteAppointment, false},
		{model.RoleDoctor, PermCompleteAppointment, true},
		{model.RoleDoctor, PermManageAccounts, false},
		{model.RolePatient, PermSearchPatients, false},
		{model.Role(42), PermClerkDesk, false},
	}
	for _, tt := range tests {
		if got := HasPermission(tt.role, tt.perm); got != tt.want {
			t.Errorf("HasPermission(%v, %v) = %v, want %v", tt.role, tt.perm, got, tt.want)
		}
	}
}

func TestRequirePermission(t *testing.T) {
	if msg := RequirePermission(model.RoleDoctor, PermEditPatientNotes); msg != "" {
		t.Errorf("doctor editing notes: %q, want allowed", msg)
	}
	if msg := RequirePermission(model.RolePatient, PermClerkDesk); !strings.Contains(msg, "clerk_desk") {
		t.Errorf("patient on clerk desk: %q", msg)
	}
}
