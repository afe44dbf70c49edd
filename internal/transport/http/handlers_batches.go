package httptransport

import (
	"encoding/json"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"coalesce/internal/contact/models"
	"coalesce/internal/platform/middleware"
	id "coalesce/pkg/domain"
	dErrors "coalesce/pkg/domain-errors"
)

// importRequest is a batch of records from one source adapter. BatchID is
// optional; supplying one lets the adapter retry the same logical batch.
type importRequest struct {
	BatchID string                  `json:"batch_id,omitempty"`
	Records []models.IncomingRecord `json:"records"`
}

func (h *Handler) handleRunBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if len(req.Records) == 0 {
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "batch has no records"))
		return
	}

	batchID := id.NewBatchID()
	if req.BatchID != "" {
		parsed, err := id.ParseBatchID(req.BatchID)
		if err != nil {
			WriteError(w, err)
			return
		}
		batchID = parsed
	}

	h.logger.InfoContext(ctx, "import batch accepted",
		"batch_id", batchID.String(),
		"records", len(req.Records),
		"actor", middleware.GetStaffUser(ctx),
	)

	summary, err := h.processor.RunBatch(ctx, batchID, req.Records)
	if err != nil {
		// Partial summaries still matter to the operator; attach what ran.
		WriteJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error":   string(dErrors.CodeOf(err)),
			"message": err.Error(),
			"summary": summary,
		})
		return
	}
	WriteJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleBatchAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	batchID, err := id.ParseBatchID(chi.URLParam(r, "batchID"))
	if err != nil {
		WriteError(w, err)
		return
	}

	entries, err := h.auditLog.ListByBatch(ctx, batchID)
	if err != nil {
		WriteError(w, dErrors.Wrap(dErrors.CodeInternal, "load batch audit", err))
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"batch_id": batchID.String(),
		"entries":  fromAuditEntries(entries),
	})
}

// handleReviewDownload serves the batch's review queue export as CSV.
func (h *Handler) handleReviewDownload(w http.ResponseWriter, r *http.Request) {
	batchID, err := id.ParseBatchID(chi.URLParam(r, "batchID"))
	if err != nil {
		WriteError(w, err)
		return
	}

	path := h.review.Path(batchID)
	if _, err := os.Stat(path); err != nil {
		WriteError(w, dErrors.New(dErrors.CodeNotFound, "no review queue export for batch"))
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+batchID.String()+`.csv"`)
	http.ServeFile(w, r, path)
}
