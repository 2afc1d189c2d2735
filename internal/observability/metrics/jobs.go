// Package metrics holds the dispatch-specific metric emitters shared by the server, the timeline
// runner and the worker.
package metrics

import (
	"time"

	obserrors "github.com/target/case-dispatch/internal/observability/errors"
	"github.com/target/case-dispatch/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// Job transitions.
const (
	TransitionEmit     = "emit"
	TransitionClaim    = "claim"
	TransitionComplete = "complete"
	TransitionHandle   = "handle"
)

// Metric names.
const (
	MetricJobTransition    = "job.transition"
	MetricJobDuration      = "job.duration"
	MetricSweep            = "timeline.sweep"
	MetricSweepDuration    = "timeline.sweep_duration"
	MetricEscalationsFired = "timeline.escalations_fired"
	MetricJobsQueued       = "timeline.jobs_queued"
	MetricCasesEvaluated   = "timeline.cases_evaluated"
	MetricCaseErrors       = "timeline.case_errors"
	MetricEscalation       = "timeline.escalation"
	MetricSweepLock        = "timeline.lock"
)

const (
	tagEventType  = "event_type"
	tagTransition = "transition"
	tagResult     = "result"
	tagErrorClass = "error_class"
)

// LabelSets returns the tag keys every metric is emitted with. Backends that need a fixed label
// set per metric, such as Prometheus, declare them up front from this table.
func LabelSets() map[string][]string {
	lifecycle := []string{tagErrorClass, tagEventType, tagResult, tagTransition}
	outcome := []string{tagErrorClass, tagResult}
	return map[string][]string{
		MetricJobTransition:    lifecycle,
		MetricJobDuration:      lifecycle,
		MetricSweep:            outcome,
		MetricSweepDuration:    outcome,
		MetricSweepLock:        outcome,
		MetricEscalation:       {"threshold"},
		MetricEscalationsFired: nil,
		MetricJobsQueued:       nil,
		MetricCasesEvaluated:   nil,
		MetricCaseErrors:       nil,
	}
}

// JobMetric captures details about a job lifecycle event for metric emission.
type JobMetric struct {
	EventType  string
	Transition string
	Result     string
	Duration   time.Duration
	Err        error
}

// EmitJobLifecycle emits standardised job lifecycle metrics.
func EmitJobLifecycle(sink statsd.Sink, in JobMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		tagEventType:  in.EventType,
		tagTransition: in.Transition,
		tagResult:     in.Result,
		tagErrorClass: "",
	}
	if in.Err != nil && in.Result == ResultError {
		tags[tagErrorClass] = obserrors.Classify(in.Err)
	}

	sink.Count(MetricJobTransition, 1, tags)

	if in.Duration > 0 {
		sink.Timing(MetricJobDuration, in.Duration, CloneTags(tags))
	}
}

// SweepMetric summarizes one timeline sweep.
type SweepMetric struct {
	Result         string
	Duration       time.Duration
	CasesEvaluated int
	Fired          int
	JobsQueued     int
	Errors         int
	Err            error
}

// EmitSweep emits timeline sweep metrics.
func EmitSweep(sink statsd.Sink, in SweepMetric) {
	if sink == nil {
		return
	}

	tags := outcomeTags(in.Result, in.Err)

	sink.Count(MetricSweep, 1, tags)
	sink.Count(MetricEscalationsFired, int64(in.Fired), nil)
	sink.Count(MetricJobsQueued, int64(in.JobsQueued), nil)
	sink.Gauge(MetricCasesEvaluated, float64(in.CasesEvaluated), nil)
	if in.Errors > 0 {
		sink.Count(MetricCaseErrors, int64(in.Errors), nil)
	}
	if in.Duration > 0 {
		sink.Timing(MetricSweepDuration, in.Duration, CloneTags(tags))
	}
}

// EmitEscalation counts one fired threshold.
func EmitEscalation(sink statsd.Sink, threshold string) {
	if sink == nil {
		return
	}
	sink.Count(MetricEscalation, 1, map[string]string{"threshold": threshold})
}

// EmitSweepLock counts one attempt to take the sweep lock.
func EmitSweepLock(sink statsd.Sink, result string, err error) {
	if sink == nil {
		return
	}
	sink.Count(MetricSweepLock, 1, outcomeTags(result, err))
}

func outcomeTags(result string, err error) map[string]string {
	tags := map[string]string{tagResult: result, tagErrorClass: ""}
	if err != nil {
		tags[tagErrorClass] = obserrors.Classify(err)
	}
	return tags
}

// CloneTags creates a shallow copy of a tag map, filtering out empty keys.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		if k == "" {
			continue
		}
		out[k] = v
	}
	return out
}
