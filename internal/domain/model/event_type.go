package model

// Event types known to the dispatch system. The bus accepts any non-empty type; these
// constants name the ones produced or handled in-tree.
const (
	EventNoticeSent             = "NOTICE_SENT"
	EventResponseReceived       = "RESPONSE_RECEIVED"
	EventEscalation24H          = "ESCALATION_24H"
	EventEscalation48H          = "ESCALATION_48H"
	EventEscalation72H          = "ESCALATION_72H"
	EventFollowupNoticeDraft    = "FOLLOWUP_NOTICE_DRAFT"
	EventFollowupNoticeSend     = "FOLLOWUP_NOTICE_SEND"
	EventEvidenceSnapshot       = "EVIDENCE_SNAPSHOT"
	EventCertifiedMailDispatch  = "CERTIFIED_MAIL_DISPATCH"
	EventDocumentGeneration     = "DOCUMENT_GENERATION"
	EventEmailDispatch          = "EMAIL_DISPATCH"
	EventCertifiedMailSubmitted = "CERTIFIED_MAIL_SUBMITTED"
	EventWeeklyBriefing         = "WEEKLY_BRIEFING"
	EventWeeklyBriefingReady    = "WEEKLY_BRIEFING_READY"
	EventNotionUpdate           = "NOTION_UPDATE"
	EventNotionCaseUpdated      = "NOTION_CASE_UPDATED"
	EventTimelineWatchStart     = "TIMELINE_WATCH_START"
)

// KnownEventTypes lists the catalogue in a stable order.
func KnownEventTypes() []string {
	return []string{
		EventNoticeSent,
		EventResponseReceived,
		EventEscalation24H,
		EventEscalation48H,
		EventEscalation72H,
		EventFollowupNoticeDraft,
		EventFollowupNoticeSend,
		EventEvidenceSnapshot,
		EventCertifiedMailDispatch,
		EventDocumentGeneration,
		EventEmailDispatch,
		EventCertifiedMailSubmitted,
		EventWeeklyBriefing,
		EventWeeklyBriefingReady,
		EventNotionUpdate,
		EventNotionCaseUpdated,
		EventTimelineWatchStart,
	}
}

// IsKnownEventType reports whether t is in the catalogue.
func IsKnownEventType(t string) bool {
	for _, k := range KnownEventTypes() {
		if k == t {
			return true
		}
	}
	return false
}
