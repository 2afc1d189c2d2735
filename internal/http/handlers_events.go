package httpx

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/target/case-dispatch/internal/domain/model"
	"github.com/target/case-dispatch/internal/http/validation"
	"github.com/target/case-dispatch/internal/service"
)

// EventHandlers ingests events from external producers.
type EventHandlers struct {
	Bus       *service.EventBus
	Validator *validation.Validator
	Logger    *slog.Logger
}

type eventRequest struct {
	EventType string          `json:"event_type"         validate:"notblank,max=200"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Priority  int             `json:"priority,omitempty" validate:"omitempty,min=1,max=5"`
}

// Ingest queues an event. Every event type is queued the same way; the acknowledgment names the
// side channel that handles it.
func (h *EventHandlers) Ingest(w http.ResponseWriter, r *http.Request) {
	var body eventRequest
	if !DecodeJSON(w, r, &body) {
		return
	}
	if err := h.Validator.Struct(body); err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}

	res, err := h.Bus.Ingest(r.Context(), model.CreateJobRequest{
		EventType: body.EventType,
		Payload:   body.Payload,
		Priority:  body.Priority,
	})
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		string(res.Ack): true,
		"event_type":    res.Job.EventType,
		"job_id":        res.Job.ID,
	})
}
