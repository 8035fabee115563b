package model

type Doctor struct {
	ID             string `json:"id"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	Specialization string `json:"specialization"`
}

// Dashboard is the clerk's overview.
type Dashboard struct {
	TodayAppointments   int `json:"todayAppointments"`
	PendingAppointments int `json:"pendingAppointments"`
	TotalPatients       int `json:"totalPatients"`
	TotalDoctors        int `json:"totalDoctors"`
}

type DoctorDashboard struct {
	TodayAppointments     int `json:"todayAppointments"`
	PendingAppointments   int `json:"pendingAppointments"`
	TotalPatients         int `json:"totalPatients"`
	CompletedAppointments int `json:"completedAppointments"`
}
