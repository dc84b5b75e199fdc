package core

import (
	"context"
	"fmt"

	"admissions/pkg/domain"
)

// InventoryFloorRule warns when a transaction moves form stock and leaves it
// below zero. Sales below zero are still committed.
func InventoryFloorRule() domain.Rule {
	return inventoryFloorRule{}
}

type inventoryFloorRule struct{}

func (inventoryFloorRule) Name() string { return "inventory_floor" }

func (r inventoryFloorRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	touched := false
	for _, change := range changes {
		if inventoryMoved(change) {
			touched = true
			break
		}
	}
	if !touched || view.FormInventory() >= 0 {
		return domain.Result{}, nil
	}
	return domain.Result{Violations: []domain.Violation{{
		Rule:     r.Name(),
		Severity: domain.SeverityWarn,
		Message:  fmt.Sprintf("form inventory is %d", view.FormInventory()),
		Entity:   domain.EntityCounters,
	}}}, nil
}

func inventoryMoved(change domain.Change) bool {
	if change.Entity != domain.EntityCounters {
		return false
	}
	before, okBefore := change.Before.(domain.Counters)
	after, okAfter := change.After.(domain.Counters)
	if !okBefore || !okAfter {
		return true
	}
	return before.FormInventory != after.FormInventory
}
