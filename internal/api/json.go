package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/google/uuid"

	"github.com/wardline/hospital-ops/internal/hospital"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{
		Error:   code,
		Details: details,
	})
}

var errMissingActor = errors.New("actor headers missing or malformed")

// actorFromRequest reads the identity the authentication layer attached to
// the request. This service trusts the headers; it only enforces ownership
// and role rules on top of them.
func actorFromRequest(r *http.Request) (hospital.Actor, error) {
	idStr := r.Header.Get("X-Actor-ID")
	roleStr := r.Header.Get("X-Actor-Role")
	if idStr == "" || roleStr == "" {
		return hospital.Actor{}, errMissingActor
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return hospital.Actor{}, errMissingActor
	}

	role := hospital.Role(roleStr)
	switch role {
	case hospital.RoleAdmin, hospital.RoleDoctor, hospital.RoleStaff, hospital.RolePatient:
	default:
		return hospital.Actor{}, errMissingActor
	}

	return hospital.Actor{ID: id, Role: role}, nil
}
