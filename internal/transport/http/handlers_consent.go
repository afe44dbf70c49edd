package httptransport

import (
	"encoding/json"
	"net/http"
	"time"

	"coalesce/internal/platform/middleware"
	id "coalesce/pkg/domain"
	dErrors "coalesce/pkg/domain-errors"
	"coalesce/pkg/platform/audit"
)

type consentRequest struct {
	Channel       string     `json:"channel"`
	Method        string     `json:"method"`
	EffectiveDate *time.Time `json:"effective_date,omitempty"`
}

func (h *Handler) handleRecordConsent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	contactID, err := h.contactID(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	var req consentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	channel, err := id.ParseSourceSystem(req.Channel)
	if err != nil {
		WriteError(w, err)
		return
	}
	method, err := id.ParseConsentMethod(req.Method)
	if err != nil {
		WriteError(w, err)
		return
	}
	date := time.Now()
	if req.EffectiveDate != nil {
		date = *req.EffectiveDate
	}

	actor := audit.StaffActor(middleware.GetStaffUser(ctx))
	if err := h.consent.RecordConsent(ctx, contactID, channel, method, date, actor); err != nil {
		WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleWithdrawConsent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	contactID, err := h.contactID(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	var req consentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	channel, err := id.ParseSourceSystem(req.Channel)
	if err != nil {
		WriteError(w, err)
		return
	}
	date := time.Now()
	if req.EffectiveDate != nil {
		date = *req.EffectiveDate
	}

	actor := audit.StaffActor(middleware.GetStaffUser(ctx))
	if err := h.consent.RecordWithdrawal(ctx, contactID, channel, date, actor); err != nil {
		WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
