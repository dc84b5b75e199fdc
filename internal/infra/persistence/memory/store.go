// Package memory provides the in-memory admission record store. It is the
// canonical holder of the aggregate; snapshotting backends wrap it.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"admissions/pkg/domain"
)

// Compile-time contract assertion.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Student aliases domain.Student.
	Student = domain.Student
	// AppState aliases domain.AppState, the exported snapshot shape.
	AppState = domain.AppState
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

type memoryState struct {
	students      []Student
	index         map[string]int
	formInventory int
	totalRevenue  float64
}

func newMemoryState() memoryState {
	return memoryState{index: make(map[string]int)}
}

func (s memoryState) clone() memoryState {
	cloned := memoryState{
		students:      make([]Student, len(s.students)),
		index:         make(map[string]int, len(s.index)),
		formInventory: s.formInventory,
		totalRevenue:  s.totalRevenue,
	}
	for i, st := range s.students {
		cloned.students[i] = st.Clone()
	}
	for k, v := range s.index {
		cloned.index[k] = v
	}
	return cloned
}

func (s memoryState) export() AppState {
	out := AppState{
		Students:      make([]Student, len(s.students)),
		FormInventory: s.formInventory,
		TotalRevenue:  s.totalRevenue,
	}
	for i, st := range s.students {
		out.Students[i] = st.Clone()
	}
	return out
}

func memoryStateFromSnapshot(snapshot AppState, newID func() string) memoryState {
	state := newMemoryState()
	state.formInventory = snapshot.FormInventory
	state.totalRevenue = snapshot.TotalRevenue
	for _, st := range snapshot.Students {
		st = normalizeStudent(st.Clone())
		if st.ID == "" {
			st.ID = newID()
		}
		if _, dup := state.index[st.ID]; dup {
			continue
		}
		state.index[st.ID] = len(state.students)
		state.students = append(state.students, st)
	}
	return state
}

// normalizeStudent repairs records decoded from older or hand-edited snapshots.
func normalizeStudent(st Student) Student {
	fix := func(v *domain.Status) {
		if !v.Valid() {
			*v = domain.StatusPending
		}
	}
	fix(&st.Form)
	fix(&st.Payment)
	fix(&st.BioData)
	fix(&st.Transcript)
	fix(&st.RectorReview)
	// a record cannot exist before its slip is issued
	st.Cheat = domain.StatusCompleted
	st.CreatedAt = st.CreatedAt.UTC()
	st.UpdatedAt = st.UpdatedAt.UTC()
	if st.UpdatedAt.Before(st.CreatedAt) {
		st.UpdatedAt = st.CreatedAt
	}
	return st
}

// Store provides an in-memory transactional store for admission records.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
	idFn   func() string
}

// Option customises a Store.
type Option func(*Store)

// WithClock overrides the time source used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.nowFn = now
		}
	}
}

// WithIDFunc overrides the record id generator.
func WithIDFunc(fn func() string) Option {
	return func(s *Store) {
		if fn != nil {
			s.idFn = fn
		}
	}
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine, opts ...Option) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	s := &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
		idFn:   func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State clones the current aggregate for external persistence or export.
func (s *Store) State() AppState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.export()
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot AppState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(snapshot, s.idFn)
}

// RulesEngine exposes the configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used by the store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// GetStudent returns a copy of the record with the given id.
func (s *Store) GetStudent(id string) (Student, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.state.index[id]
	if !ok {
		return Student{}, false
	}
	return s.state.students[i].Clone(), true
}

// ListStudents returns every record in creation order.
func (s *Store) ListStudents() []Student {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.export().Students
}

type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
	now     time.Time
}

type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

// ListStudents returns all records within the snapshot in creation order.
func (v transactionView) ListStudents() []Student {
	out := make([]Student, len(v.state.students))
	for i, st := range v.state.students {
		out[i] = st.Clone()
	}
	return out
}

// FindStudent retrieves a record by id from the snapshot.
func (v transactionView) FindStudent(id string) (Student, bool) {
	i, ok := v.state.index[id]
	if !ok {
		return Student{}, false
	}
	return v.state.students[i].Clone(), true
}

func (v transactionView) FormInventory() int    { return v.state.formInventory }
func (v transactionView) TotalRevenue() float64 { return v.state.totalRevenue }

// RunInTransaction executes fn within a transactional copy of the store state.
// The copy replaces the live state only when fn succeeds and no blocking rule fires.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn().UTC(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()
	return fn(newTransactionView(&snapshot))
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// touch returns the timestamp for a modification, never earlier than prev.
func (tx *transaction) touch(prev time.Time) time.Time {
	if tx.now.Before(prev) {
		return prev
	}
	return tx.now
}

// CreateStudent appends a new record with the slip issued and every later
// stage pending. Caller-supplied stage values are ignored.
func (tx *transaction) CreateStudent(input Student) (Student, error) {
	if strings.TrimSpace(input.Name) == "" {
		return Student{}, domain.ValidationError{Field: "name", Message: "is required"}
	}
	st := input.Clone()
	if st.ID == "" {
		st.ID = tx.store.idFn()
	}
	if _, exists := tx.state.index[st.ID]; exists {
		return Student{}, fmt.Errorf("student %s already exists", st.ID)
	}
	st.Cheat = domain.StatusCompleted
	st.Form = domain.StatusPending
	st.Payment = domain.StatusPending
	st.BioData = domain.StatusPending
	st.Transcript = domain.StatusPending
	st.RectorReview = domain.StatusPending
	st.AmountPaid = nil
	st.CreatedAt = tx.now
	st.UpdatedAt = tx.now

	tx.state.index[st.ID] = len(tx.state.students)
	tx.state.students = append(tx.state.students, st)
	tx.recordChange(Change{Entity: domain.EntityStudent, Action: domain.ActionCreate, After: st.Clone()})
	return st.Clone(), nil
}

// SetStageStatus writes one stage field and refreshes UpdatedAt. It performs
// no gate check; callers decide whether the write is reachable.
func (tx *transaction) SetStageStatus(id string, mutation domain.StageMutation) (Student, error) {
	i, ok := tx.state.index[id]
	if !ok {
		return Student{}, domain.ErrNotFound{Entity: domain.EntityStudent, ID: id}
	}
	current := tx.state.students[i]
	before := current.Clone()
	if err := mutation.Apply(&current); err != nil {
		return Student{}, err
	}
	current.UpdatedAt = tx.touch(before.UpdatedAt)
	tx.state.students[i] = current
	tx.recordChange(Change{Entity: domain.EntityStudent, Action: domain.ActionUpdate, Before: before, After: current.Clone()})
	return current.Clone(), nil
}

// SetAmountPaid stores the confirmed payment amount on the record. It is not a
// stage write and leaves UpdatedAt alone.
func (tx *transaction) SetAmountPaid(id string, amount float64) (Student, error) {
	i, ok := tx.state.index[id]
	if !ok {
		return Student{}, domain.ErrNotFound{Entity: domain.EntityStudent, ID: id}
	}
	before := tx.state.students[i].Clone()
	paid := amount
	tx.state.students[i].AmountPaid = &paid
	after := tx.state.students[i].Clone()
	tx.recordChange(Change{Entity: domain.EntityStudent, Action: domain.ActionUpdate, Before: before, After: after})
	return after, nil
}

// AdjustFormInventory adds delta to the form stock. No floor is enforced.
func (tx *transaction) AdjustFormInventory(delta int) {
	before := tx.counters()
	tx.state.formInventory += delta
	tx.recordChange(Change{Entity: domain.EntityCounters, Action: domain.ActionUpdate, Before: before, After: tx.counters()})
}

// AddRevenue accumulates a confirmed payment amount.
func (tx *transaction) AddRevenue(amount float64) {
	before := tx.counters()
	tx.state.totalRevenue += amount
	tx.recordChange(Change{Entity: domain.EntityCounters, Action: domain.ActionUpdate, Before: before, After: tx.counters()})
}

func (tx *transaction) counters() domain.Counters {
	return domain.Counters{FormInventory: tx.state.formInventory, TotalRevenue: tx.state.totalRevenue}
}
