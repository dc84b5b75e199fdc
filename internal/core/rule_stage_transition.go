package core

import (
	"context"
	"fmt"

	"admissions/pkg/domain"
)

// StageTransitionRule blocks stage values outside each field's legal set and
// warns when a terminal stage value is rewritten.
func StageTransitionRule() domain.Rule {
	return stageTransitionRule{}
}

type stageTransitionRule struct{}

type stageMachine struct {
	valid    map[domain.Status]struct{}
	terminal map[domain.Status]struct{}
}

var stageMachines = map[domain.Stage]stageMachine{
	domain.StageCheat: {
		valid:    toSet(domain.StatusCompleted),
		terminal: toSet(domain.StatusCompleted),
	},
	domain.StageForm:       linearStage(),
	domain.StagePayment:    linearStage(),
	domain.StageBioData:    linearStage(),
	domain.StageTranscript: linearStage(),
	domain.StageRectorReview: {
		valid:    toSet(domain.StatusPending, domain.StatusCompleted, domain.StatusFailed),
		terminal: toSet(domain.StatusCompleted, domain.StatusFailed),
	},
}

func linearStage() stageMachine {
	return stageMachine{
		valid:    toSet(domain.StatusPending, domain.StatusCompleted),
		terminal: toSet(domain.StatusCompleted),
	}
}

func (stageTransitionRule) Name() string { return "stage_transition" }

func (r stageTransitionRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityStudent {
			continue
		}
		after, ok := change.After.(domain.Student)
		if !ok {
			continue
		}
		before, hasBefore := change.Before.(domain.Student)
		for _, stage := range domain.Stages() {
			machine := stageMachines[stage]
			next := after.StageStatus(stage)
			if _, valid := machine.valid[next]; !valid {
				res.Violations = append(res.Violations, domain.Violation{
					Rule:     r.Name(),
					Severity: domain.SeverityBlock,
					Message:  fmt.Sprintf("student %s %s is set to invalid status %q", after.ID, stage, next),
					Entity:   domain.EntityStudent,
					EntityID: after.ID,
				})
				continue
			}
			if !hasBefore {
				continue
			}
			prev := before.StageStatus(stage)
			if _, terminal := machine.terminal[prev]; terminal && prev != next {
				res.Violations = append(res.Violations, domain.Violation{
					Rule:     r.Name(),
					Severity: domain.SeverityWarn,
					Message:  fmt.Sprintf("student %s %s rewritten from terminal %s to %s", after.ID, stage, prev, next),
					Entity:   domain.EntityStudent,
					EntityID: after.ID,
				})
			}
		}
	}
	return res, nil
}

func toSet(values ...domain.Status) map[domain.Status]struct{} {
	set := make(map[domain.Status]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
