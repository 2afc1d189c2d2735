package httpx

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/target/case-dispatch/internal/domain/model"
	"github.com/target/case-dispatch/internal/http/validation"
	"github.com/target/case-dispatch/internal/service"
)

// CaseHandlers serves evidence and certified-mail records.
type CaseHandlers struct {
	Records   *service.CaseRecords
	Validator *validation.Validator
	Logger    *slog.Logger
}

// Evidence lists a case's evidence records.
func (h *CaseHandlers) Evidence(w http.ResponseWriter, r *http.Request) {
	recs, err := h.Records.Evidence(r.Context(), r.PathValue("case_id"))
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}
	if recs == nil {
		recs = []*model.EvidenceRecord{}
	}
	WriteJSON(w, http.StatusOK, recs)
}

// CertifiedMail lists a case's mailings.
func (h *CaseHandlers) CertifiedMail(w http.ResponseWriter, r *http.Request) {
	recs, err := h.Records.CertifiedMail(r.Context(), r.PathValue("case_id"))
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}
	if recs == nil {
		recs = []*model.CertifiedMailRecord{}
	}
	WriteJSON(w, http.StatusOK, recs)
}

type mailStatusRequest struct {
	Status      string     `json:"status"                 validate:"required,mail_status"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
}

// UpdateMailStatus applies a provider status callback.
func (h *CaseHandlers) UpdateMailStatus(w http.ResponseWriter, r *http.Request) {
	var body mailStatusRequest
	if !DecodeJSON(w, r, &body) {
		return
	}
	if err := h.Validator.Struct(body); err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}

	rec, err := h.Records.UpdateMailStatus(r.Context(), model.UpdateMailStatusRequest{
		TrackingNumber: r.PathValue("tracking_number"),
		Status:         model.MailStatus(body.Status),
		DeliveredAt:    body.DeliveredAt,
	})
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, rec)
}
