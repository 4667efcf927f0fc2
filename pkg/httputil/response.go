package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/platinummonkey/identity/pkg/observability"
)

// ErrorResponse is the body of every error answer
type ErrorResponse struct {
	Error string `json:"error"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes data with 200 OK
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteCreated writes data with 201 Created
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, data)
}

// WriteNoContent writes 204 No Content
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// WriteError writes {"error": err.Error()} with status
func WriteError(w http.ResponseWriter, status int, err error) {
	WriteErrorMessage(w, status, err.Error())
}

// WriteErrorMessage writes {"error": message} with status
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorResponse{Error: message})
}

func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusBadRequest, message)
}

func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusUnauthorized, message)
}

func WriteForbidden(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusForbidden, message)
}

func WriteNotFound(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusNotFound, message)
}

func WriteConflict(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusConflict, message)
}

// ErrorStatus pairs a sentinel error with the status it is answered with
type ErrorStatus struct {
	Err    error
	Status int
}

// ErrorMapper translates domain errors into HTTP answers
type ErrorMapper []ErrorStatus

// Status returns the status and client message for err. Matched errors are
// answered with the sentinel's own message so that wrapped database details
// never reach the client.
func (m ErrorMapper) Status(err error) (int, string) {
	for _, es := range m {
		if errors.Is(err, es.Err) {
			return es.Status, es.Err.Error()
		}
	}
	return http.StatusInternalServerError, "internal server error"
}

// Write answers err. Unmapped errors are logged with the request logger.
func (m ErrorMapper) Write(w http.ResponseWriter, r *http.Request, err error) {
	status, message := m.Status(err)
	if status >= http.StatusInternalServerError {
		observability.FromContext(r.Context()).
			WithError(err).
			WithField("path", r.URL.Path).
			Error("request failed")
	}
	WriteErrorMessage(w, status, message)
}
