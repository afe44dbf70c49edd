package httptransport

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"coalesce/internal/contact/models"
	contactservice "coalesce/internal/contact/service"
	"coalesce/internal/platform/middleware"
	id "coalesce/pkg/domain"
	dErrors "coalesce/pkg/domain-errors"
)

func (h *Handler) contactID(r *http.Request) (id.ContactID, error) {
	return id.ParseContactID(chi.URLParam(r, "contactID"))
}

func (h *Handler) handleGetContact(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	contactID, err := h.contactID(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	contact, err := h.contacts.Get(ctx, contactID)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, fromContact(contact))
}

func (h *Handler) handleLookupContacts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	contacts, err := h.contacts.LookupByEmail(ctx, r.URL.Query().Get("email"))
	if err != nil {
		WriteError(w, err)
		return
	}

	out := make([]contactResponse, 0, len(contacts))
	for _, contact := range contacts {
		out = append(out, fromContact(contact))
	}
	WriteJSON(w, http.StatusOK, map[string]any{"contacts": out})
}

func (h *Handler) handleContactAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	contactID, err := h.contactID(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	entries, err := h.contacts.History(ctx, contactID)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"contact_id": contactID.String(),
		"entries":    fromAuditEntries(entries),
	})
}

func (h *Handler) handleStaffEdit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	contactID, err := h.contactID(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	var req contactservice.EditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid staff edit request",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	contact, err := h.contacts.Edit(ctx, contactID, req, middleware.GetStaffUser(ctx))
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, fromContact(contact))
}

type lockOverrideRequest struct {
	LockLevel string `json:"lock_level"`
	Reason    string `json:"reason"`
}

func (h *Handler) handleLockOverride(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	contactID, err := h.contactID(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	var req lockOverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	contact, err := h.contacts.OverrideLock(ctx, contactID, models.LockLevel(req.LockLevel), req.Reason, middleware.GetStaffUser(ctx))
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, fromContact(contact))
}

func (h *Handler) handleTombstone(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	contactID, err := h.contactID(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	reason := r.URL.Query().Get("reason")
	if err := h.contacts.Tombstone(ctx, contactID, reason, middleware.GetStaffUser(ctx)); err != nil {
		WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
