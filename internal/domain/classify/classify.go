// Package classify decides whether a parsed delivery is actionable.
package classify

import "github.com/okian/triage/internal/domain/event"

// ReasonUnsupported is the ignore reason for deliveries that match neither
// actionable predicate. Ignoring is a successful terminal outcome, not an
// error.
const ReasonUnsupported = "event type not supported"

// Outcome is a tagged classification result: Accepted carries the event
// forward, otherwise Reason explains why the delivery is ignored.
type Outcome struct {
	Accepted bool
	Event    event.InboundEvent
	Reason   string
}

// Classify inspects a parsed event and accepts it when it is an issue
// creation or an issue label update.
func Classify(e event.InboundEvent) Outcome {
	if isIssueCreated(e) || isIssueLabelUpdated(e) {
		return Outcome{Accepted: true, Event: e}
	}
	return Outcome{Reason: ReasonUnsupported}
}

// isIssueCreated: type Issue, action create, non-empty id and title.
func isIssueCreated(e event.InboundEvent) bool {
	return e.Type == "Issue" &&
		e.Action == "create" &&
		e.ItemID != "" &&
		e.Title != ""
}

// isIssueLabelUpdated: type Issue, action update, non-empty id, and either an
// explicit updated-label-ids field or a current labels collection.
func isIssueLabelUpdated(e event.InboundEvent) bool {
	return e.Type == "Issue" &&
		e.Action == "update" &&
		e.ItemID != "" &&
		(e.UpdatedLabelIDs != nil || e.HasLabels)
}
