package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"admissions/internal/infra/persistence/memory"
	"admissions/pkg/domain"
)

// Service is the single handle through which every admission action flows.
// It checks gates inside the store transaction so a check and its mutation see
// the same state.
type Service struct {
	store       domain.PersistentStore
	logger      zerolog.Logger
	metrics     MetricsRecorder
	clock       Clock
	validate    *validator.Validate
	standardFee float64
}

// Option customises a Service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithClock overrides the clock used to time operations.
func WithClock(c Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithStandardFee sets the amount charged when a payment has no explicit amount.
func WithStandardFee(fee float64) Option {
	return func(s *Service) {
		if fee > 0 {
			s.standardFee = fee
		}
	}
}

// NewService constructs a service backed by the supplied store.
func NewService(store domain.PersistentStore, opts ...Option) *Service {
	s := &Service{
		store:       store,
		logger:      zerolog.Nop(),
		metrics:     noopMetrics{},
		clock:       systemClock{},
		validate:    newValidator(),
		standardFee: DefaultStandardFee,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.observeState()
	return s
}

// NewInMemoryService creates a service over an empty in-memory store.
func NewInMemoryService(engine *RulesEngine, opts ...Option) *Service {
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() domain.PersistentStore { return s.store }

// StandardFee returns the configured default payment amount.
func (s *Service) StandardFee() float64 { return s.standardFee }

// State returns a copy of the aggregate.
func (s *Service) State() AppState { return s.store.State() }

// Student returns one record by id.
func (s *Service) Student(id string) (Student, error) {
	st, ok := s.store.GetStudent(id)
	if !ok {
		return Student{}, ErrNotFound{Entity: EntityStudent, ID: id}
	}
	return st, nil
}

// IssueSlip creates a record with the slip issued and every later stage pending.
func (s *Service) IssueSlip(ctx context.Context, req IssueSlipRequest) (Student, Result, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Class = strings.TrimSpace(req.Class)
	req.CheatNumber = strings.TrimSpace(req.CheatNumber)
	var created Student
	res, err := s.run(ctx, "issue_slip", func(tx domain.Transaction) error {
		if err := s.validate.Struct(req); err != nil {
			return validationError(err)
		}
		var err error
		created, err = tx.CreateStudent(Student{
			Name:        req.Name,
			Class:       req.Class,
			Gender:      req.Gender,
			CheatNumber: req.CheatNumber,
		})
		return err
	})
	return created, res, err
}

// SellForm marks the form sold and takes one form out of stock.
func (s *Service) SellForm(ctx context.Context, id string) (Student, Result, error) {
	var updated Student
	res, err := s.run(ctx, string(ActionSellForm), func(tx domain.Transaction) error {
		if err := s.gate(tx, ActionSellForm, id); err != nil {
			return err
		}
		var err error
		if updated, err = tx.SetStageStatus(id, domain.CompleteForm()); err != nil {
			return err
		}
		tx.AdjustFormInventory(-1)
		return nil
	})
	return updated, res, err
}

// RecordPayment validates amountInput, marks the fee paid and adds the amount
// to revenue. Blank input charges the standard fee.
func (s *Service) RecordPayment(ctx context.Context, id string, amountInput string) (Student, Result, error) {
	var updated Student
	res, err := s.run(ctx, string(ActionRecordPayment), func(tx domain.Transaction) error {
		amount, err := ParseAmount(amountInput, s.standardFee)
		if err != nil {
			return err
		}
		if err := s.gate(tx, ActionRecordPayment, id); err != nil {
			return err
		}
		if err := checkRevenue(tx.Snapshot().TotalRevenue(), amount); err != nil {
			return err
		}
		if _, err := tx.SetStageStatus(id, domain.CompletePayment()); err != nil {
			return err
		}
		tx.AddRevenue(amount)
		updated, err = tx.SetAmountPaid(id, amount)
		return err
	})
	return updated, res, err
}

// LogBioData marks biodata as captured.
func (s *Service) LogBioData(ctx context.Context, id string) (Student, Result, error) {
	return s.advance(ctx, ActionLogBioData, id, domain.CompleteBioData())
}

// LogTranscript marks the transcript as captured.
func (s *Service) LogTranscript(ctx context.Context, id string) (Student, Result, error) {
	return s.advance(ctx, ActionLogTranscript, id, domain.CompleteTranscript())
}

// Review records the rector decision. The decision is final.
func (s *Service) Review(ctx context.Context, id string, approve bool) (Student, Result, error) {
	mutation := domain.DeclineReview()
	if approve {
		mutation = domain.ApproveReview()
	}
	return s.advance(ctx, ActionRectorReview, id, mutation)
}

// Import replaces the aggregate with a restored snapshot.
func (s *Service) Import(ctx context.Context, state AppState) error {
	start := s.clock.Now()
	s.store.ImportState(state)
	s.logger.Info().Int("students", len(state.Students)).Msg("admission state imported")
	s.metrics.Observe(ctx, "import", true, s.clock.Now().Sub(start))
	s.observeState()
	return nil
}

func (s *Service) advance(ctx context.Context, action GateAction, id string, mutation StageMutation) (Student, Result, error) {
	var updated Student
	res, err := s.run(ctx, string(action), func(tx domain.Transaction) error {
		if err := s.gate(tx, action, id); err != nil {
			return err
		}
		var err error
		updated, err = tx.SetStageStatus(id, mutation)
		return err
	})
	return updated, res, err
}

func (s *Service) gate(tx domain.Transaction, action GateAction, id string) error {
	st, ok := tx.Snapshot().FindStudent(id)
	if !ok {
		return ErrNotFound{Entity: EntityStudent, ID: id}
	}
	if !Eligible(action, st) {
		return fmt.Errorf("%s for student %s: %w", action, id, domain.ErrIneligible)
	}
	return nil
}

func (s *Service) run(ctx context.Context, op string, fn func(domain.Transaction) error) (Result, error) {
	start := s.clock.Now()
	res, err := s.store.RunInTransaction(ctx, fn)
	s.metrics.Observe(ctx, op, err == nil, s.clock.Now().Sub(start))
	for _, v := range res.Warnings() {
		s.logger.Warn().Str("op", op).Str("rule", v.Rule).Str("entity_id", v.EntityID).Msg(v.Message)
	}
	if err != nil {
		s.logger.Debug().Err(err).Str("op", op).Msg("admission action rejected")
		return res, err
	}
	s.logger.Info().Str("op", op).Msg("admission action applied")
	s.observeState()
	return res, nil
}

func (s *Service) observeState() {
	if obs, ok := s.metrics.(StateObserver); ok {
		obs.ObserveState(s.store.State())
	}
}
