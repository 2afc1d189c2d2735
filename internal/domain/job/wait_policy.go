package job

import "time"

// WaitPolicy bounds how long a claim may long-poll for work.
type WaitPolicy struct {
	max time.Duration
}

// NewWaitPolicy returns a policy capping waits at maxWait. A non-positive maxWait disables
// long-polling.
func NewWaitPolicy(maxWait time.Duration) WaitPolicy {
	return WaitPolicy{max: max(maxWait, 0)}
}

// Max returns the configured cap.
func (p WaitPolicy) Max() time.Duration { return p.max }

// Resolve clamps a requested wait into [0, Max]. The second result reports whether the request
// was changed.
func (p WaitPolicy) Resolve(requested time.Duration) (time.Duration, bool) {
	switch {
	case requested <= 0:
		return 0, requested < 0
	case requested > p.max:
		return p.max, true
	default:
		return requested, false
	}
}
