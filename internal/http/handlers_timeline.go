package httpx

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/target/case-dispatch/internal/domain/model"
	"github.com/target/case-dispatch/internal/service"
)

const (
	defaultTimelineLimit = 200
	maxTimelineLimit     = 1000
)

// TimelineHandlers exposes the timeline engine.
type TimelineHandlers struct {
	Engine *service.TimelineEngine
	Logger *slog.Logger
}

// RecordNotice starts or restarts the escalation clock of a case. case_id and recipient come
// from the query string; a JSON body may be sent instead.
func (h *TimelineHandlers) RecordNotice(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := model.RecordNoticeRequest{
		CaseID:    q.Get("case_id"),
		Recipient: q.Get("recipient"),
	}
	if req.CaseID == "" && r.ContentLength != 0 {
		if !DecodeJSON(w, r, &req) {
			return
		}
	}
	if strings.TrimSpace(req.CaseID) == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "validation",
			Err:     errCaseIDRequired,
			Fields:  map[string]string{"case_id": errCaseIDRequired.Error()},
		})
		return
	}

	res, err := h.Engine.RecordNotice(r.Context(), req)
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"case_id":      res.CaseID,
		"status":       "notice_recorded",
		"recipient":    res.Recipient,
		"watch_job_id": res.WatchJob.ID,
		"entry":        res.Entry,
		"watch_job":    res.WatchJob,
	})
}

// Tick runs one sweep on demand.
func (h *TimelineHandlers) Tick(w http.ResponseWriter, r *http.Request) {
	res, err := h.Engine.Tick(r.Context())
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

// CaseTimeline lists a case's timeline, oldest first.
func (h *TimelineHandlers) CaseTimeline(w http.ResponseWriter, r *http.Request) {
	limit := ParseLimit(r, defaultTimelineLimit, maxTimelineLimit)
	entries, err := h.Engine.Timeline(r.Context(), r.PathValue("case_id"), limit)
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}
	if entries == nil {
		entries = []*model.TimelineEntry{}
	}
	WriteJSON(w, http.StatusOK, entries)
}
