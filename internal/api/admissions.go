package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wardline/hospital-ops/internal/hospital"
	"github.com/wardline/hospital-ops/internal/occupancy"
)

func admitPatientHandler(coord *occupancy.AdmissionCoordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, req, ok := decodeAdmissionRequest(w, r)
		if !ok {
			return
		}

		patient, err := coord.Admit(r.Context(), req.patientID, req.roomID, req.bedNumber, actor)
		if err != nil {
			handleOccupancyError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toPatientResponse(patient))
	}
}

func dischargePatientHandler(coord *occupancy.AdmissionCoordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, req, ok := decodeAdmissionRequest(w, r)
		if !ok {
			return
		}

		patient, err := coord.Discharge(r.Context(), req.patientID, req.roomID, req.bedNumber, actor)
		if err != nil {
			handleOccupancyError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toPatientResponse(patient))
	}
}

func getRoomHandler(coord *occupancy.AdmissionCoordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_room_id", "id must be a valid UUID")
			return
		}

		room, err := coord.GetRoom(r.Context(), id)
		if err != nil {
			handleOccupancyError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toRoomResponse(room))
	}
}

type admissionParams struct {
	patientID uuid.UUID
	roomID    uuid.UUID
	bedNumber string
}

func decodeAdmissionRequest(w http.ResponseWriter, r *http.Request) (hospital.Actor, admissionParams, bool) {
	actor, err := actorFromRequest(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "missing_actor", err.Error())
		return hospital.Actor{}, admissionParams{}, false
	}

	var req AdmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return hospital.Actor{}, admissionParams{}, false
	}

	patientID, err := uuid.Parse(req.PatientID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
		return hospital.Actor{}, admissionParams{}, false
	}
	roomID, err := uuid.Parse(req.RoomID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_room_id", "room_id must be a valid UUID")
		return hospital.Actor{}, admissionParams{}, false
	}
	if req.BedNumber == "" {
		writeError(w, http.StatusBadRequest, "invalid_bed_number", "bed_number is required")
		return hospital.Actor{}, admissionParams{}, false
	}

	return actor, admissionParams{patientID: patientID, roomID: roomID, bedNumber: req.BedNumber}, true
}

func toPatientResponse(p *hospital.Patient) PatientResponse {
	return PatientResponse{
		ID:           p.ID,
		Name:         p.Name,
		Status:       string(p.Status),
		AssignedRoom: p.AssignedRoom,
		AdmittedAt:   p.AdmittedAt,
		DischargedAt: p.DischargedAt,
	}
}

func handleOccupancyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, hospital.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, occupancy.ErrRoomNotFound):
		writeError(w, http.StatusNotFound, "room_not_found", err.Error())
	case errors.Is(err, occupancy.ErrBedNotFound):
		writeError(w, http.StatusNotFound, "bed_not_found", err.Error())
	case errors.Is(err, occupancy.ErrBedOccupied):
		writeError(w, http.StatusConflict, "bed_occupied", "bed already holds a patient, choose another bed")
	case errors.Is(err, occupancy.ErrStateMismatch):
		writeError(w, http.StatusConflict, "state_mismatch", err.Error())
	case errors.Is(err, occupancy.ErrPatientAlreadyAdmitted):
		writeError(w, http.StatusConflict, "patient_already_admitted", err.Error())
	case errors.Is(err, occupancy.ErrRoomBusy):
		writeError(w, http.StatusConflict, "room_busy", "room is being modified, please retry shortly")
	default:
		var patientErr *occupancy.PatientUpdateError
		if errors.As(err, &patientErr) {
			writeError(w, http.StatusInternalServerError, "patient_update_failed", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
