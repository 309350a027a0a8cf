package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/wardline/hospital-ops/internal/occupancy"
	"github.com/wardline/hospital-ops/internal/scheduling"
)

type CreateAppointmentRequest struct {
	PatientID    string `json:"patient_id"`
	DoctorID     string `json:"doctor_id"`
	DepartmentID string `json:"department_id"`
	Date         string `json:"date"`       // YYYY-MM-DD
	Start        string `json:"start_time"` // HH:MM
	DurationMin  int    `json:"duration_minutes,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

type TransitionRequest struct {
	Status string `json:"status"`
}

type AppointmentResponse struct {
	ID           uuid.UUID `json:"id"`
	Number       string    `json:"number"`
	PatientID    uuid.UUID `json:"patient_id"`
	DoctorID     uuid.UUID `json:"doctor_id"`
	DepartmentID uuid.UUID `json:"department_id"`
	Date         string    `json:"date"`
	Start        string    `json:"start_time"`
	DurationMin  int       `json:"duration_minutes"`
	Status       string    `json:"status"`
	Reason       string    `json:"reason,omitempty"`
}

func toAppointmentResponse(a *scheduling.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:           a.ID,
		Number:       a.Number,
		PatientID:    a.PatientID,
		DoctorID:     a.DoctorID,
		DepartmentID: a.DepartmentID,
		Date:         a.Date.Format("2006-01-02"),
		Start:        a.Start.String(),
		DurationMin:  a.DurationMin,
		Status:       string(a.Status),
		Reason:       a.Reason,
	}
}

type SlotsResponse struct {
	DoctorID    uuid.UUID `json:"doctor_id"`
	Date        string    `json:"date"`
	DurationMin int       `json:"duration_minutes"`
	Slots       []string  `json:"slots"`
}

type AdmissionRequest struct {
	PatientID string `json:"patient_id"`
	RoomID    string `json:"room_id"`
	BedNumber string `json:"bed_number"`
}

type PatientResponse struct {
	ID           uuid.UUID  `json:"id"`
	Name         string     `json:"name"`
	Status       string     `json:"status"`
	AssignedRoom *uuid.UUID `json:"assigned_room,omitempty"`
	AdmittedAt   *time.Time `json:"admitted_at,omitempty"`
	DischargedAt *time.Time `json:"discharged_at,omitempty"`
}

type BedResponse struct {
	Number     string     `json:"number"`
	Occupied   bool       `json:"occupied"`
	PatientID  *uuid.UUID `json:"patient_id,omitempty"`
	AdmittedAt *time.Time `json:"admitted_at,omitempty"`
}

type RoomResponse struct {
	ID            uuid.UUID     `json:"id"`
	Number        string        `json:"number"`
	Type          string        `json:"type"`
	DepartmentID  uuid.UUID     `json:"department_id"`
	Floor         int           `json:"floor"`
	BedCount      int           `json:"bed_count"`
	AvailableBeds int           `json:"available_beds"`
	Beds          []BedResponse `json:"beds"`
}

func toRoomResponse(r *occupancy.Room) RoomResponse {
	beds := make([]BedResponse, 0, len(r.Beds))
	for _, b := range r.Beds {
		beds = append(beds, BedResponse{
			Number:     b.Number,
			Occupied:   b.Occupied,
			PatientID:  b.PatientID,
			AdmittedAt: b.AdmittedAt,
		})
	}
	return RoomResponse{
		ID:            r.ID,
		Number:        r.Number,
		Type:          r.Type,
		DepartmentID:  r.DepartmentID,
		Floor:         r.Floor,
		BedCount:      r.BedCount,
		AvailableBeds: r.AvailableBeds,
		Beds:          beds,
	}
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
