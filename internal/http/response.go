package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"cargamasiva-backend-go/internal/bulkimport"
	"cargamasiva-backend-go/internal/services"
)

type ErrorResponse struct {
	Message string `json:"message"`
}

func WriteJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorResponse{Message: message})
}

// writeServiceError maps service and file errors to their status. Anything
// else is logged and reported as a generic 500.
func writeServiceError(w http.ResponseWriter, err error) {
	var fileErr *bulkimport.FileError
	var serr services.ServiceError
	switch {
	case errors.As(err, &fileErr):
		WriteError(w, http.StatusUnprocessableEntity, fileErr.Error())
	case errors.As(err, &serr):
		WriteError(w, serr.Status, serr.Message)
	default:
		log.Printf("error interno: %v", err)
		WriteError(w, http.StatusInternalServerError, "Error interno del servidor")
	}
}

func writeAttachment(w http.ResponseWriter, contentType, filename string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func parseInt(raw string, fallback int) int {
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func parseBool(raw string) bool {
	value, err := strconv.ParseBool(raw)
	return err == nil && value
}
