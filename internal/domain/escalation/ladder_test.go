package escalation

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/case-dispatch/internal/domain/model"
)

func TestLadder_Due(t *testing.T) {
	ladder := DefaultLadder()

	tests := []struct {
		name    string
		elapsed time.Duration
		fired   map[string]bool
		want    string
	}{
		{name: "before first threshold", elapsed: 23 * time.Hour},
		{name: "exactly 24h", elapsed: 24 * time.Hour, want: "24h"},
		{name: "50h fires 48h only", elapsed: 50 * time.Hour, want: "48h"},
		{name: "80h fires 72h only", elapsed: 80 * time.Hour, want: "72h"},
		{
			name:    "48h already fired",
			elapsed: 50 * time.Hour,
			fired:   map[string]bool{model.MarkerEscalation48H: true},
		},
		{
			name:    "restarted clock below a fired level",
			elapsed: 30 * time.Hour,
			fired:   map[string]bool{model.MarkerEscalation72H: true},
			want:    "24h",
		},
		{
			name:    "72h after 48h",
			elapsed: 73 * time.Hour,
			fired:   map[string]bool{model.MarkerEscalation24H: true, model.MarkerEscalation48H: true},
			want:    "72h",
		},
		{
			name:    "everything fired",
			elapsed: 100 * time.Hour,
			fired:   map[string]bool{model.MarkerEscalation72H: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lvl, ok := ladder.Due(tt.elapsed, tt.fired)
			if tt.want == "" {
				assert.False(t, ok, "unexpected level %s", lvl.Name)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tt.want, lvl.Name)
		})
	}
}

func TestLadder_SortedDoesNotMutate(t *testing.T) {
	l := Ladder{{Name: "a", After: time.Hour}, {Name: "b", After: 2 * time.Hour}}
	sorted := l.Sorted()
	assert.Equal(t, "b", sorted[0].Name)
	assert.Equal(t, "a", l[0].Name)
}

func TestLevel_Jobs(t *testing.T) {
	since := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	lvl := DefaultLadder()[0]

	reqs, err := lvl.Jobs("CASE-1", since)
	require.NoError(t, err)
	require.Len(t, reqs, 2)

	assert.Equal(t, model.EventCertifiedMailDispatch, reqs[0].EventType)
	assert.Equal(t, 1, reqs[0].Priority)
	assert.JSONEq(t, `{"case_id":"CASE-1","since":"2024-01-01T12:00:00Z"}`, string(reqs[0].Payload))

	var snap map[string]string
	require.NoError(t, json.Unmarshal(reqs[1].Payload, &snap))
	assert.Equal(t, "72h", snap["level"])

	n := lvl.Narration("CASE-1")
	assert.Equal(t, model.PersonaVaultGuardian, n.Persona)
	assert.Equal(t, 1, n.Priority)
}
