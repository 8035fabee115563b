package fakeclinic

import (
	"fmt"

	"github.com/NicolasHaas/cliniclink/pkg/model"
)

// DemoPassword is the password of every seeded account.
const DemoPassword = "clinic123"

// Demo holds the seeded accounts.
type Demo struct {
	Clerk   model.UserProfile
	Doctor  model.UserProfile
	Patient model.UserProfile
}

// Seed creates one active account per role.
func (s *Server) Seed() (Demo, error) {
	var d Demo
	var err error
	if d.Clerk, err = s.AddUser("accueil@clinic.example", DemoPassword, "Nadia", "Karim", model.RoleClerk); err != nil {
		return d, fmt.Errorf("fakeclinic: seed: %w", err)
	}
	if d.Doctor, err = s.AddUser("dr.roy@clinic.example", DemoPassword, "Ana", "Roy", model.RoleDoctor); err != nil {
		return d, fmt.Errorf("fakeclinic: seed: %w", err)
	}
	if d.Patient, err = s.AddUser("paul.martin@example.com", DemoPassword, "Paul", "Martin", model.RolePatient); err != nil {
		return d, fmt.Errorf("fakeclinic: seed: %w", err)
	}
	return d, nil
}
