// Package httpx is the Dispatch Server transport: worker claim/complete endpoints, event and
// notice ingestion, and read-only introspection of jobs, timelines and case records.
package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/target/case-dispatch/internal/domain/model"
	"github.com/target/case-dispatch/internal/http/validation"
	"github.com/target/case-dispatch/internal/service"
)

const (
	defaultPendingLimit = 10
	maxPendingLimit     = 500
)

// JobHandlers provides HTTP handlers for job-related operations.
type JobHandlers struct {
	Jobs      *service.JobService
	Bus       *service.EventBus
	Validator *validation.Validator
	Logger    *slog.Logger
}

// Next claims the next job for a worker. Without wait an empty queue answers 200 null; with wait
// the request long-polls and answers 204 when the wait expires.
func (h *JobHandlers) Next(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := model.ClaimJobRequest{
		WorkerID: q.Get("worker_id"),
		Types:    parseTypes(q.Get("types")),
	}
	if err := req.Validate(); err != nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "validation",
			Err:     err,
			Fields:  map[string]string{"worker_id": err.Error()},
		})
		return
	}

	wait, err := parseWait(q.Get("wait"))
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "validation", Err: err})
		return
	}

	if wait <= 0 {
		job, claimErr := h.Jobs.Claim(r.Context(), req)
		if claimErr != nil {
			WriteServiceError(w, r, h.Logger, claimErr)
			return
		}
		if job == nil {
			WriteJSON(w, http.StatusOK, nil)
			return
		}
		WriteJSON(w, http.StatusOK, job.Assignment())
		return
	}

	job, err := h.Jobs.ClaimWait(r.Context(), req, wait)
	switch {
	case r.Context().Err() != nil:
		// Client went away; nothing useful can be written.
		return
	case err != nil:
		WriteServiceError(w, r, h.Logger, err)
	case job == nil:
		w.WriteHeader(http.StatusNoContent)
	default:
		WriteJSON(w, http.StatusOK, job.Assignment())
	}
}

type completeRequest struct {
	JobID    int64           `json:"job_id"           validate:"required,gt=0"`
	WorkerID string          `json:"worker_id"        validate:"notblank,max=200"`
	Status   string          `json:"status"           validate:"required,terminal_status"`
	Result   json.RawMessage `json:"result,omitempty"`
}

// Complete records a terminal outcome reported by a worker.
func (h *JobHandlers) Complete(w http.ResponseWriter, r *http.Request) {
	var body completeRequest
	if !DecodeJSON(w, r, &body) {
		return
	}
	if err := h.Validator.Struct(body); err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}
	status, err := model.ParseJobStatus(body.Status)
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}

	job, err := h.Jobs.Complete(r.Context(), model.CompleteJobRequest{
		JobID:    body.JobID,
		WorkerID: body.WorkerID,
		Status:   status,
		Result:   body.Result,
	})
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"recorded": true, "job_id": job.ID, "status": job.Status})
}

// Pending lists PENDING jobs in claim order.
func (h *JobHandlers) Pending(w http.ResponseWriter, r *http.Request) {
	limit := ParseLimit(r, defaultPendingLimit, maxPendingLimit)
	jobs, err := h.Bus.Pending(r.Context(), r.URL.Query().Get("event_type"), limit)
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}
	if jobs == nil {
		jobs = []*model.Job{}
	}
	WriteJSON(w, http.StatusOK, jobs)
}

// Get returns one job.
func (h *JobHandlers) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: err})
		return
	}
	job, err := h.Jobs.GetByID(r.Context(), id)
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// Stats returns job counts and timeline totals.
func (h *JobHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Jobs.Stats(r.Context())
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}

var errCaseIDRequired = errors.New("case id is required")
