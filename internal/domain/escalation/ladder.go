// Package escalation holds the escalation ladder: the thresholds a case climbs while its latest
// notice goes unanswered, and the jobs each threshold queues.
package escalation

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/target/case-dispatch/internal/domain/model"
)

// Action is one job queued when a level fires.
type Action struct {
	EventType string
	// WithLevel adds "level": Level.Name to the payload.
	WithLevel bool
}

// Level is one rung of the ladder.
type Level struct {
	Name     string
	After    time.Duration
	Marker   string
	Priority int
	Actions  []Action
	Persona  string
	Message  string
}

// Ladder is ordered from most to least severe.
type Ladder []Level

// DefaultLadder returns the 72h/48h/24h ladder.
func DefaultLadder() Ladder {
	return Ladder{
		{
			Name:     "72h",
			After:    72 * time.Hour,
			Marker:   model.MarkerEscalation72H,
			Priority: 1,
			Actions: []Action{
				{EventType: model.EventCertifiedMailDispatch},
				{EventType: model.EventEvidenceSnapshot, WithLevel: true},
			},
			Persona: model.PersonaVaultGuardian,
			Message: "Seventy-two hours have elapsed. Escalation initiated.",
		},
		{
			Name:     "48h",
			After:    48 * time.Hour,
			Marker:   model.MarkerEscalation48H,
			Priority: 2,
			Actions: []Action{
				{EventType: model.EventFollowupNoticeSend},
				{EventType: model.EventEvidenceSnapshot, WithLevel: true},
			},
			Persona: model.PersonaSentinel,
			Message: "Forty-eight hours elapsed with no acknowledgment.",
		},
		{
			Name:     "24h",
			After:    24 * time.Hour,
			Marker:   model.MarkerEscalation24H,
			Priority: 3,
			Actions: []Action{
				{EventType: model.EventFollowupNoticeDraft},
			},
			Persona: model.PersonaSintraPrime,
			Message: "Twenty-four hours since notice. Monitoring escalation threshold.",
		},
	}
}

// Sorted returns a copy ordered by descending threshold.
func (l Ladder) Sorted() Ladder {
	out := append(Ladder(nil), l...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].After > out[j].After })
	return out
}

// Due returns the level to fire for a case whose clock has run for elapsed, given the markers
// already recorded for it. Only the most severe reached level is considered: once it has fired,
// lower levels are suppressed for good.
func (l Ladder) Due(elapsed time.Duration, fired map[string]bool) (Level, bool) {
	for _, lvl := range l.Sorted() {
		if elapsed < lvl.After {
			continue
		}
		if fired[lvl.Marker] {
			return Level{}, false
		}
		return lvl, true
	}
	return Level{}, false
}

// Jobs builds the job requests queued when lvl fires for caseID, whose clock started at since.
func (lvl Level) Jobs(caseID string, since time.Time) ([]model.CreateJobRequest, error) {
	reqs := make([]model.CreateJobRequest, 0, len(lvl.Actions))
	for _, a := range lvl.Actions {
		payload := map[string]string{
			"case_id": caseID,
			"since":   since.UTC().Format(time.RFC3339),
		}
		if a.WithLevel {
			payload["level"] = lvl.Name
		}
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", a.EventType, err)
		}
		reqs = append(reqs, model.CreateJobRequest{
			EventType: a.EventType,
			Payload:   raw,
			Priority:  lvl.Priority,
		})
	}
	return reqs, nil
}

// Narration returns the announcement published after lvl fires.
func (lvl Level) Narration(caseID string) model.Narration {
	return model.Narration{
		Persona:  lvl.Persona,
		Message:  lvl.Message,
		Priority: lvl.Priority,
		CaseID:   caseID,
		Source:   "timeline",
	}
}
