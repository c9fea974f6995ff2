package api

import (
	"encoding/json"
	"errors"
	"net/http"
)

// InternalErrorMessage is the body message for every failure inside the
// comparison pipeline. Mobile clients match on it.
const InternalErrorMessage = "Erro interno"

type HTTPError struct {
	Code    int
	Message string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// HandleError writes an *HTTPError as is and everything else as a 500.
func HandleError(w http.ResponseWriter, err error) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		JSONError(w, httpErr.Code, httpErr.Message)
		return
	}
	JSONError(w, http.StatusInternalServerError, InternalErrorMessage)
}

func JSONResponse(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

func JSONError(w http.ResponseWriter, status int, message string) error {
	return JSONResponse(w, status, map[string]string{
		"error": message,
	})
}
