package domain

import "context"

// Transaction exposes the mutations a store applies within one atomic scope.
// Either every mutation made through a Transaction commits, or none does.
type Transaction interface {
	Snapshot() TransactionView
	CreateStudent(Student) (Student, error)
	SetStageStatus(id string, mutation StageMutation) (Student, error)
	SetAmountPaid(id string, amount float64) (Student, error)
	AdjustFormInventory(delta int)
	AddRevenue(amount float64)
}

// TransactionView provides read-only access to snapshot data.
type TransactionView interface {
	RuleView
}

// PersistentStore is the contract shared by the in-memory store and the
// snapshotting backends that wrap it.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	State() AppState
	GetStudent(id string) (Student, bool)
	ListStudents() []Student
	ImportState(AppState)
}
