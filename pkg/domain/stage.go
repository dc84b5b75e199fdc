package domain

import "fmt"

// Stage names one of the six pipeline steps stored on a Student.
type Stage string

const (
	StageCheat        Stage = "cheat"
	StageForm         Stage = "form"
	StagePayment      Stage = "payment"
	StageBioData      Stage = "bioData"
	StageTranscript   Stage = "transcript"
	StageRectorReview Stage = "rectorReview"
)

var stageOrder = []Stage{StageCheat, StageForm, StagePayment, StageBioData, StageTranscript, StageRectorReview}

// Stages returns the pipeline steps in order.
func Stages() []Stage {
	return append([]Stage(nil), stageOrder...)
}

// Label is the human-facing name used by dashboards and reports.
func (s Stage) Label() string {
	switch s {
	case StageCheat:
		return "Cheat Issued"
	case StageForm:
		return "Forms Sold"
	case StagePayment:
		return "Payments"
	case StageBioData:
		return "Bio Records"
	case StageTranscript:
		return "Transcripts"
	case StageRectorReview:
		return "Rector Approved"
	default:
		return string(s)
	}
}

// StageStatus reads the named stage field.
func (s Student) StageStatus(stage Stage) Status {
	switch stage {
	case StageCheat:
		return s.Cheat
	case StageForm:
		return s.Form
	case StagePayment:
		return s.Payment
	case StageBioData:
		return s.BioData
	case StageTranscript:
		return s.Transcript
	case StageRectorReview:
		return s.RectorReview
	default:
		return ""
	}
}

// StageMutation sets exactly one stage field. Values are only obtainable
// through the constructors below, so the set of reachable writes is closed.
type StageMutation struct {
	stage  Stage
	status Status
}

// IssueSlip marks the slip stage completed.
func IssueSlip() StageMutation { return StageMutation{stage: StageCheat, status: StatusCompleted} }

// CompleteForm marks the form as sold.
func CompleteForm() StageMutation { return StageMutation{stage: StageForm, status: StatusCompleted} }

// CompletePayment marks the fee as paid.
func CompletePayment() StageMutation {
	return StageMutation{stage: StagePayment, status: StatusCompleted}
}

// CompleteBioData marks biodata as logged.
func CompleteBioData() StageMutation {
	return StageMutation{stage: StageBioData, status: StatusCompleted}
}

// CompleteTranscript marks the transcript as logged.
func CompleteTranscript() StageMutation {
	return StageMutation{stage: StageTranscript, status: StatusCompleted}
}

// ApproveReview records a positive rector decision.
func ApproveReview() StageMutation {
	return StageMutation{stage: StageRectorReview, status: StatusCompleted}
}

// DeclineReview records a negative rector decision.
func DeclineReview() StageMutation {
	return StageMutation{stage: StageRectorReview, status: StatusFailed}
}

// Stage returns the field the mutation writes.
func (m StageMutation) Stage() Stage { return m.stage }

// Status returns the value the mutation writes.
func (m StageMutation) Status() Status { return m.status }

func (m StageMutation) String() string { return fmt.Sprintf("%s=%s", m.stage, m.status) }

// Apply writes the mutation into s. It does not touch UpdatedAt.
func (m StageMutation) Apply(s *Student) error {
	switch m.stage {
	case StageCheat:
		s.Cheat = m.status
	case StageForm:
		s.Form = m.status
	case StagePayment:
		s.Payment = m.status
	case StageBioData:
		s.BioData = m.status
	case StageTranscript:
		s.Transcript = m.status
	case StageRectorReview:
		s.RectorReview = m.status
	default:
		return fmt.Errorf("unknown stage %q", m.stage)
	}
	return nil
}
