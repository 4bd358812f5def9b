package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"foretrack/internal/core"
	"foretrack/internal/identity"
	"foretrack/internal/log"
	"foretrack/internal/services"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeError maps service and domain errors onto status codes. Anything
// unrecognised is logged and reported as a bare 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *services.ValidationError
	var cerr *services.ConflictError
	switch {
	case errors.As(err, &verr):
		writeErrorMessage(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, core.ErrUnauthenticated):
		writeErrorMessage(w, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, core.ErrNotFound):
		writeErrorMessage(w, http.StatusNotFound, "Not found")
	case errors.As(err, &cerr):
		writeErrorMessage(w, http.StatusConflict, cerr.Message)
	case errors.Is(err, core.ErrConflict):
		writeErrorMessage(w, http.StatusConflict, "Conflict")
	case errors.Is(err, services.ErrExportDisabled):
		writeErrorMessage(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		s.logger.WarnContext(r.Context(), "Request timed out",
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path)
		writeErrorMessage(w, http.StatusGatewayTimeout, "Request timed out")
	default:
		log.NewStructuredLogger(log.FromContext(r.Context())).LogError(r.Context(), "Request failed", err,
			log.ComponentHTTP, r.Method+" "+r.URL.Path, log.NewFields())
		writeErrorMessage(w, http.StatusInternalServerError, "Internal server error")
	}
}

// badRequest reports a malformed request that never reached a service.
func badRequest(w http.ResponseWriter, format string, args ...any) {
	writeErrorMessage(w, http.StatusBadRequest, fmt.Sprintf(format, args...))
}

// decodeJSON reads a single JSON object into dst. Unknown fields are
// rejected so typos surface as 400s.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			badRequest(w, "request body is empty")
		} else {
			badRequest(w, "invalid JSON body: %s", err.Error())
		}
		return false
	}
	if dec.More() {
		badRequest(w, "invalid JSON body: trailing data")
		return false
	}
	return true
}

// userID returns the caller or writes a 401.
func (s *Server) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := identity.UserID(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return "", false
	}
	return id, true
}

// sanitizeInput drops control characters other than tab and newlines and
// trims surrounding whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

// queryInt parses a positive integer parameter, falling back to def when it
// is absent.
func queryInt(r *http.Request, name string, def int) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid %s %q", name, v)
	}
	return n, nil
}
