// Harborstay - Direct Booking Sync Service for Vacation Rentals
// Copyright 2026 Harborstay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harborstay/harborstay

package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/harborstay/harborstay/internal/logging"
	"github.com/harborstay/harborstay/internal/models"
)

// respondJSON writes a success envelope.
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	writeEnvelope(w, status, models.APIResponse{
		Status: "success",
		Data:   data,
		Metadata: models.Metadata{
			Timestamp: time.Now().UTC(),
		},
	})
}

// respondError writes an error envelope with a structured code.
func respondError(w http.ResponseWriter, status int, code, message string, details map[string]interface{}) {
	writeEnvelope(w, status, models.APIResponse{
		Status: "error",
		Metadata: models.Metadata{
			Timestamp: time.Now().UTC(),
		},
		Error: &models.APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// writeRaw writes a bare JSON payload. Image endpoint responses keep their
// historical shape instead of the standard envelope.
func writeRaw(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeEnvelope(w http.ResponseWriter, status int, envelope models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope); err != nil {
		logging.Error().Err(err).Msg("Failed to encode response envelope")
	}
}

// decodeBody decodes a JSON request body into dst. Returns false when an
// error response has already been written.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid JSON request body", nil)
		return false
	}
	return true
}
