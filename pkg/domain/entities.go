// Package domain defines the admission records, stage value types, and rule
// evaluation primitives shared by the store, the service layer and its adapters.
package domain

import "time"

// EntityType identifies the kind of record touched by a Change.
type EntityType string

const (
	// EntityStudent identifies an applicant record.
	EntityStudent EntityType = "student"
	// EntityCounters identifies the aggregate inventory/revenue counters.
	EntityCounters EntityType = "counters"
)

// Status is the tri-state value carried by every stage field.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Valid reports whether s is one of the three known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// Gender is informational only; no transition depends on it.
type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
)

// Valid reports whether g is one of the two accepted values.
func (g Gender) Valid() bool {
	return g == GenderMale || g == GenderFemale
}

// Student is one applicant moving through the admission pipeline.
type Student struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Class        string    `json:"class"`
	Gender       Gender    `json:"gender"`
	Cheat        Status    `json:"cheat"`
	Form         Status    `json:"form"`
	Payment      Status    `json:"payment"`
	BioData      Status    `json:"bioData"`
	Transcript   Status    `json:"transcript"`
	RectorReview Status    `json:"rectorReview"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	CheatNumber  string    `json:"cheatNumber,omitempty"`
	AmountPaid   *float64  `json:"amountPaid,omitempty"`
}

// Clone returns a deep copy of the record.
func (s Student) Clone() Student {
	cp := s
	if s.AmountPaid != nil {
		amount := *s.AmountPaid
		cp.AmountPaid = &amount
	}
	return cp
}

// CompletedStages counts the stage fields currently set to completed.
func (s Student) CompletedStages() int {
	n := 0
	for _, stage := range Stages() {
		if s.StageStatus(stage) == StatusCompleted {
			n++
		}
	}
	return n
}

// AppState is the aggregate persisted and exported as a single JSON document.
// Students are kept in creation order.
type AppState struct {
	Students      []Student `json:"students"`
	FormInventory int       `json:"formInventory"`
	TotalRevenue  float64   `json:"totalRevenue"`
}

// Clone returns a deep copy of the aggregate.
func (a AppState) Clone() AppState {
	cp := AppState{
		FormInventory: a.FormInventory,
		TotalRevenue:  a.TotalRevenue,
		Students:      make([]Student, len(a.Students)),
	}
	for i, s := range a.Students {
		cp.Students[i] = s.Clone()
	}
	return cp
}

// Counters carries the two scalar aggregates for change payloads.
type Counters struct {
	FormInventory int     `json:"formInventory"`
	TotalRevenue  float64 `json:"totalRevenue"`
}

// Change describes a mutation applied during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
)

// Severity captures rule outcomes.
type Severity string

const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// Warnings returns the non-blocking violations.
func (r Result) Warnings() []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Severity != SeverityBlock {
			out = append(out, v)
		}
	}
	return out
}
