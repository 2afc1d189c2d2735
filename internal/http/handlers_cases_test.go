package httpx

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/case-dispatch/internal/domain/model"
)

func TestEvidence_RecordedFromCompletedSnapshot(t *testing.T) {
	api := newTestAPI(t)
	id := api.ingest(t, model.EventEvidenceSnapshot, map[string]any{"case_id": "C-3", "level": "48h"}, 1)
	api.do(t, http.MethodGet, "/job/next?worker_id=w1", nil)
	rec := api.do(t, http.MethodPost, "/job/complete", map[string]any{
		"job_id":    id,
		"worker_id": "w1",
		"status":    "COMPLETED",
		"result":    map[string]any{"ref": "snapshot:C-3:48h", "hash": "abc123"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, http.MethodGet, "/cases/C-3/evidence", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	evidence := decodeBody[[]model.EvidenceRecord](t, rec)
	require.Len(t, evidence, 1)
	assert.Equal(t, "snapshot_48h", evidence[0].Kind)
	assert.Equal(t, "snapshot:C-3:48h", evidence[0].Ref)
	require.NotNil(t, evidence[0].Hash)
	assert.Equal(t, "abc123", *evidence[0].Hash)
}

func TestEvidence_EmptyIsArray(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/cases/C-0/evidence", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())

	rec = api.do(t, http.MethodGet, "/cases/C-0/certified-mail", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestUpdateMailStatus(t *testing.T) {
	api := newTestAPI(t)
	api.ingest(t, model.EventCertifiedMailSubmitted, map[string]any{
		"case_id":         "C-7",
		"tracking_number": "9400222",
	}, 1)

	rec := api.do(t, http.MethodPost, "/certified-mail/9400222/status", map[string]any{"status": "in_transit"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, model.MailStatusInTransit, decodeBody[model.CertifiedMailRecord](t, rec).Status)

	rec = api.do(t, http.MethodPost, "/certified-mail/9400222/status", map[string]any{
		"status":       "DELIVERED",
		"delivered_at": "2024-01-05T10:00:00Z",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	mail := decodeBody[model.CertifiedMailRecord](t, rec)
	assert.Equal(t, model.MailStatusDelivered, mail.Status)
	require.NotNil(t, mail.DeliveredAt)

	rec = api.do(t, http.MethodPost, "/certified-mail/9400222/status", map[string]any{"status": "IN_TRANSIT"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestUpdateMailStatus_Errors(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/certified-mail/unknown/status", map[string]any{"status": "DELIVERED"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(t, http.MethodPost, "/certified-mail/unknown/status", map[string]any{"status": "LOST"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody[errorBody](t, rec).Fields, "status")
}
