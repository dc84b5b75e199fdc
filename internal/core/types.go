package core

import "admissions/pkg/domain"

type (
	EntityType         = domain.EntityType
	Student            = domain.Student
	AppState           = domain.AppState
	Status             = domain.Status
	Gender             = domain.Gender
	Stage              = domain.Stage
	StageMutation      = domain.StageMutation
	Severity           = domain.Severity
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	Rule               = domain.Rule
	RuleView           = domain.RuleView
	RulesEngine        = domain.RulesEngine
	RuleViolationError = domain.RuleViolationError
	ErrNotFound        = domain.ErrNotFound
	ValidationError    = domain.ValidationError
)

const (
	EntityStudent  = domain.EntityStudent
	EntityCounters = domain.EntityCounters
)

const (
	StatusPending   = domain.StatusPending
	StatusCompleted = domain.StatusCompleted
	StatusFailed    = domain.StatusFailed
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

// NewRulesEngine constructs an empty engine.
func NewRulesEngine() *RulesEngine { return domain.NewRulesEngine() }

// ErrIneligible is wrapped by gated actions whose preconditions do not hold.
var ErrIneligible = domain.ErrIneligible
