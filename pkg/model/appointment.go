package model

// Appointment statuses as sent by the API.
const (
	StatusScheduled = "Scheduled"
	StatusCompleted = "Completed"
	StatusCancelled = "Cancelled"
)

type Appointment struct {
	ID                   string `json:"id"`
	PatientID            string `json:"patientId"`
	DoctorID             string `json:"doctorId"`
	AppointmentDate      string `json:"appointmentDate"`
	Reason               string `json:"reason,omitempty"`
	Notes                string `json:"notes,omitempty"`
	DoctorNotes          string `json:"doctorNotes,omitempty"`
	Status               string `json:"status"`
	PatientName          string `json:"patientName,omitempty"`
	DoctorName           string `json:"doctorName,omitempty"`
	DoctorSpecialization string `json:"doctorSpecialization,omitempty"`
}

type TimeSlot struct {
	Time      string `json:"time"`
	Available bool   `json:"available"`
}

type CreateAppointmentRequest struct {
	PatientID       string `json:"patientId"`
	DoctorID        string `json:"doctorId"`
	AppointmentDate string `json:"appointmentDate"`
	Reason          string `json:"reason,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

type RescheduleAppointmentRequest struct {
	AppointmentDate string `json:"appointmentDate"`
}

type UpdateAppointmentStatusRequest struct {
	Status string `json:"status"`
}

type CompleteAppointmentRequest struct {
	DoctorNotes string `json:"doctorNotes,omitempty"`
}
