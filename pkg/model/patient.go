package model

type Patient struct {
	ID                    string `json:"id"`
	Email                 string `json:"email"`
	FirstName             string `json:"firstName"`
	LastName              string `json:"lastName"`
	Phone                 string `json:"phone,omitempty"`
	DateOfBirth           string `json:"dateOfBirth,omitempty"`
	Address               string `json:"address,omitempty"`
	EmergencyContactName  string `json:"emergencyContactName,omitempty"`
	EmergencyContactPhone string `json:"emergencyContactPhone,omitempty"`
	DoctorNotes           string `json:"doctorNotes,omitempty"`
	RegistrationDate      string `json:"registrationDate,omitempty"`
}

// MedicalHistory lists a patient's past appointments with the doctor's findings.
type MedicalHistory struct {
	PatientID    string          `json:"patientId"`
	PatientName  string          `json:"patientName"`
	Records      []MedicalRecord `json:"records"`
	TotalRecords int             `json:"totalRecords"`
}

type MedicalRecord struct {
	ID                   string `json:"id"`
	AppointmentDate      string `json:"appointmentDate"`
	Reason               string `json:"reason,omitempty"`
	DoctorNotes          string `json:"doctorNotes,omitempty"`
	Diagnosis            string `json:"diagnosis,omitempty"`
	Prescription         string `json:"prescription,omitempty"`
	DoctorName           string `json:"doctorName,omitempty"`
	DoctorSpecialization string `json:"doctorSpecialization,omitempty"`
	Status               string `json:"status"`
}

type UpdatePatientNotesRequest struct {
	Notes string `json:"notes"`
}
