// internal/handler/recipient_handler.go
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	appErrors "github.com/haulcrm/campaign-engine/internal/errors"
	"github.com/haulcrm/campaign-engine/internal/service"
)

// RecipientHandler serves operator inspection of campaign recipients.
type RecipientHandler struct {
	Service *service.CampaignService
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case appErrors.IsValidation(err):
		status = http.StatusBadRequest
	case appErrors.IsNotFound(err):
		status = http.StatusNotFound
	case appErrors.IsTransition(err), appErrors.IsConflict(err):
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// ListRecipients returns each enrolled recipient with its lead summary,
// status, step position and enrollment time.
func (h *RecipientHandler) ListRecipients(w http.ResponseWriter, r *http.Request) {
	campaignID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, appErrors.NewValidation("invalid campaign id"))
		return
	}

	recipients, err := h.Service.ListRecipients(campaignID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recipients)
}

// ReenrollRecipient resets a FAILED recipient to PENDING at its current
// step. This is the operator's manual retry path; the engine never retries
// failures on its own.
func (h *RecipientHandler) ReenrollRecipient(w http.ResponseWriter, r *http.Request) {
	campaignID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, appErrors.NewValidation("invalid campaign id"))
		return
	}
	recipientID, err := strconv.Atoi(chi.URLParam(r, "recipientID"))
	if err != nil {
		writeError(w, appErrors.NewValidation("invalid recipient id"))
		return
	}

	if err := h.Service.ReenrollRecipient(campaignID, recipientID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "PENDING"})
}
