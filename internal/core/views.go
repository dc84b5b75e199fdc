package core

import (
	"fmt"

	"admissions/pkg/domain"
)

// RecentLimit is the number of students shown on the overview feed.
const RecentLimit = 10

// StageCount is the number of students that completed one stage.
type StageCount struct {
	Stage   Stage   `json:"stage"`
	Label   string  `json:"label"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// ReviewBreakdown splits students by rector outcome.
type ReviewBreakdown struct {
	Approved   int `json:"approved"`
	Processing int `json:"processing"`
	Failed     int `json:"failed"`
}

// ProgressEntry is one line of the recent-activity feed.
type ProgressEntry struct {
	Student   Student `json:"student"`
	Completed int     `json:"completed"`
	Total     int     `json:"total"`
	Progress  string  `json:"progress"`
}

// OverviewView summarises the whole pipeline.
type OverviewView struct {
	TotalStudents int             `json:"totalStudents"`
	FormInventory int             `json:"formInventory"`
	TotalRevenue  float64         `json:"totalRevenue"`
	Stages        []StageCount    `json:"stages"`
	Reviews       ReviewBreakdown `json:"reviews"`
	Recent        []ProgressEntry `json:"recent"`
}

// HeadmasterView lists every record newest first next to the slip form options.
type HeadmasterView struct {
	Students []Student `json:"students"`
	Classes  []string  `json:"classes"`
	Total    int       `json:"total"`
}

// SecretaryView lists records waiting for a form sale.
type SecretaryView struct {
	FormInventory int       `json:"formInventory"`
	Eligible      []Student `json:"eligible"`
}

// AccountantView lists records waiting for payment.
type AccountantView struct {
	TotalRevenue float64   `json:"totalRevenue"`
	StandardFee  float64   `json:"standardFee"`
	Eligible     []Student `json:"eligible"`
}

// DataEntryView lists records waiting for biodata and transcript capture.
type DataEntryView struct {
	BioData    []Student `json:"bioData"`
	Transcript []Student `json:"transcript"`
}

// RectorView lists pending decisions and the decision history newest first.
type RectorView struct {
	Pending  []Student `json:"pending"`
	Reviewed []Student `json:"reviewed"`
}

// Overview projects the aggregate into dashboard statistics.
func Overview(state AppState) OverviewView {
	total := len(state.Students)
	view := OverviewView{
		TotalStudents: total,
		FormInventory: state.FormInventory,
		TotalRevenue:  state.TotalRevenue,
		Recent:        []ProgressEntry{},
	}
	for _, stage := range domain.Stages() {
		count := 0
		for _, st := range state.Students {
			if st.StageStatus(stage) == StatusCompleted {
				count++
			}
		}
		sc := StageCount{Stage: stage, Label: stage.Label(), Count: count}
		if total > 0 {
			sc.Percent = float64(count) / float64(total) * 100
		}
		view.Stages = append(view.Stages, sc)
	}
	for _, st := range state.Students {
		switch st.RectorReview {
		case StatusCompleted:
			view.Reviews.Approved++
		case StatusFailed:
			view.Reviews.Failed++
		default:
			view.Reviews.Processing++
		}
	}
	stageTotal := len(domain.Stages())
	for _, st := range Recent(state.Students, RecentLimit) {
		done := st.CompletedStages()
		view.Recent = append(view.Recent, ProgressEntry{
			Student:   st,
			Completed: done,
			Total:     stageTotal,
			Progress:  ProgressLabel(done),
		})
	}
	return view
}

// Headmaster builds the slip issuance view.
func Headmaster(state AppState) HeadmasterView {
	return HeadmasterView{
		Students: NewestFirst(state.Students),
		Classes:  domain.StandardClasses(),
		Total:    len(state.Students),
	}
}

// Secretary builds the form sale view.
func Secretary(state AppState) SecretaryView {
	return SecretaryView{
		FormInventory: state.FormInventory,
		Eligible:      EligibleFor(ActionSellForm, state.Students),
	}
}

// Accountant builds the payment view.
func Accountant(state AppState, standardFee float64) AccountantView {
	return AccountantView{
		TotalRevenue: state.TotalRevenue,
		StandardFee:  standardFee,
		Eligible:     EligibleFor(ActionRecordPayment, state.Students),
	}
}

// DataEntry builds the biodata and transcript capture view.
func DataEntry(state AppState) DataEntryView {
	return DataEntryView{
		BioData:    EligibleFor(ActionLogBioData, state.Students),
		Transcript: EligibleFor(ActionLogTranscript, state.Students),
	}
}

// Rector builds the final review view.
func Rector(state AppState) RectorView {
	return RectorView{
		Pending:  PendingReview(state.Students),
		Reviewed: NewestFirst(Reviewed(state.Students)),
	}
}

// ProgressLabel renders the "n/6 Stages" badge.
func ProgressLabel(done int) string {
	return fmt.Sprintf("%d/%d Stages", done, len(domain.Stages()))
}
