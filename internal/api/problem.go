package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hyperengineering/orbit/internal/agent"
	"github.com/hyperengineering/orbit/internal/snapshot"
	"github.com/hyperengineering/orbit/internal/store"
	"github.com/hyperengineering/orbit/internal/validation"
)

// Problem represents an RFC 7807 Problem Details response.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance,omitempty"`
}

type problemType struct {
	typeURI string
	title   string
}

const problemBaseURI = "https://orbit.dev/errors/"

// problemTypes maps HTTP status codes to RFC 7807 type URIs and titles.
var problemTypes = map[int]problemType{
	http.StatusBadRequest:          {problemBaseURI + "bad-request", "Bad Request"},
	http.StatusUnauthorized:        {problemBaseURI + "unauthorized", "Unauthorized"},
	http.StatusNotFound:            {problemBaseURI + "not-found", "Not Found"},
	http.StatusUnprocessableEntity: {problemBaseURI + "validation-error", "Validation Error"},
	http.StatusInternalServerError: {problemBaseURI + "internal-error", "Internal Server Error"},
	http.StatusServiceUnavailable:  {problemBaseURI + "service-unavailable", "Service Unavailable"},
}

func lookupProblemType(status int) problemType {
	if pt, ok := problemTypes[status]; ok {
		return pt
	}
	return problemType{typeURI: problemBaseURI + "unknown", title: http.StatusText(status)}
}

// WriteProblem writes an RFC 7807 Problem Details response.
func WriteProblem(w http.ResponseWriter, r *http.Request, status int, detail string) {
	pt := lookupProblemType(status)
	p := Problem{
		Type:     pt.typeURI,
		Title:    pt.title,
		Status:   status,
		Detail:   detail,
		Instance: r.URL.Path,
	}
	writeProblemBody(w, status, p)
}

// ProblemWithErrors extends Problem with validation error details.
type ProblemWithErrors struct {
	Problem
	Errors []validation.ValidationError `json:"errors,omitempty"`
}

// WriteProblemWithErrors writes a 422 Problem Details response with field errors.
func WriteProblemWithErrors(w http.ResponseWriter, r *http.Request, detail string, errs []validation.ValidationError) {
	pt := lookupProblemType(http.StatusUnprocessableEntity)
	p := ProblemWithErrors{
		Problem: Problem{
			Type:     pt.typeURI,
			Title:    pt.title,
			Status:   http.StatusUnprocessableEntity,
			Detail:   detail,
			Instance: r.URL.Path,
		},
		Errors: errs,
	}
	writeProblemBody(w, http.StatusUnprocessableEntity, p)
}

func writeProblemBody(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode problem response", "component", "api", "error", err)
	}
}

// MapError converts domain errors to Problem Details responses.
// Internal error text is never sent to the client.
func MapError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		WriteProblem(w, r, http.StatusNotFound, "Resource not found")
	case errors.Is(err, store.ErrInvalidInput):
		WriteProblem(w, r, http.StatusUnprocessableEntity, "Invalid input")
	case errors.Is(err, agent.ErrLoopFailure):
		WriteProblem(w, r, http.StatusServiceUnavailable, "Agent loop failed")
	case errors.Is(err, snapshot.ErrNotConfigured):
		WriteProblem(w, r, http.StatusServiceUnavailable, "Snapshot storage not configured")
	default:
		WriteProblem(w, r, http.StatusInternalServerError, "Internal Server Error")
	}
}
