package core

import "admissions/pkg/domain"

// GateAction names a gated role action.
type GateAction string

const (
	ActionIssueSlip     GateAction = "issue_slip"
	ActionSellForm      GateAction = "sell_form"
	ActionRecordPayment GateAction = "record_payment"
	ActionLogBioData    GateAction = "log_biodata"
	ActionLogTranscript GateAction = "log_transcript"
	ActionRectorReview  GateAction = "rector_review"
)

// GateActions lists the gated actions in pipeline order.
func GateActions() []GateAction {
	return []GateAction{ActionIssueSlip, ActionSellForm, ActionRecordPayment, ActionLogBioData, ActionLogTranscript, ActionRectorReview}
}

// Eligible reports whether st satisfies the precondition for action. Issuing a
// slip creates a record, so no existing record is eligible for it.
func Eligible(action GateAction, st domain.Student) bool {
	switch action {
	case ActionSellForm:
		return st.Cheat == domain.StatusCompleted && st.Form == domain.StatusPending
	case ActionRecordPayment:
		return st.Form == domain.StatusCompleted && st.Payment == domain.StatusPending
	case ActionLogBioData:
		return st.Payment == domain.StatusCompleted && st.BioData == domain.StatusPending
	case ActionLogTranscript:
		return st.Payment == domain.StatusCompleted && st.Transcript == domain.StatusPending
	case ActionRectorReview:
		return st.BioData == domain.StatusCompleted && st.Transcript == domain.StatusCompleted && st.RectorReview == domain.StatusPending
	default:
		return false
	}
}

// EligibleFor filters students down to those eligible for action, keeping
// creation order.
func EligibleFor(action GateAction, students []domain.Student) []domain.Student {
	return filter(students, func(st domain.Student) bool { return Eligible(action, st) })
}

// EligibleActions returns every action st is currently eligible for.
func EligibleActions(st domain.Student) []GateAction {
	var out []GateAction
	for _, action := range GateActions() {
		if Eligible(action, st) {
			out = append(out, action)
		}
	}
	return out
}

// Reviewed returns students with a rector decision, in creation order.
func Reviewed(students []domain.Student) []domain.Student {
	return filter(students, func(st domain.Student) bool { return st.RectorReview != domain.StatusPending })
}

// PendingReview returns students awaiting a rector decision.
func PendingReview(students []domain.Student) []domain.Student {
	return EligibleFor(ActionRectorReview, students)
}

// Recent returns the last k students, newest first.
func Recent(students []domain.Student, k int) []domain.Student {
	if k <= 0 {
		return []domain.Student{}
	}
	start := len(students) - k
	if start < 0 {
		start = 0
	}
	return NewestFirst(students[start:])
}

// NewestFirst returns a reversed copy of students.
func NewestFirst(students []domain.Student) []domain.Student {
	out := make([]domain.Student, 0, len(students))
	for i := len(students) - 1; i >= 0; i-- {
		out = append(out, students[i].Clone())
	}
	return out
}

func filter(students []domain.Student, keep func(domain.Student) bool) []domain.Student {
	out := make([]domain.Student, 0, len(students))
	for _, st := range students {
		if keep(st) {
			out = append(out, st.Clone())
		}
	}
	return out
}
