// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package server

import (
	"encoding/json"
	"net/http"

	"github.com/northbound/corpus/internal/apperr"
	"github.com/northbound/corpus/internal/logger"
)

// writeJSON writes v as a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Printf("server: failed to encode response: %v", err)
	}
}

// writeError writes a {"error": msg} body at the given status code.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeAppError writes err via apperr.WriteJSON, the one place in this
// package that couples the domain error taxonomy to the wire format
// (§7).
func writeAppError(w http.ResponseWriter, err error) {
	apperr.WriteJSON(w, err)
}
