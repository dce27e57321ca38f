package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/indicadores/apiserver/internal/apperr"
	"github.com/indicadores/apiserver/internal/policy"
	"github.com/indicadores/apiserver/internal/store"
	"github.com/indicadores/apiserver/types"
)

// CalculationRepository defines persistence operations for calculations.
type CalculationRepository interface {
	List(ctx context.Context, filter store.CalculationFilter) ([]types.Calculation, error)
	Get(ctx context.Context, id int) (types.Calculation, error)
	Create(ctx context.Context, c types.Calculation) (types.Calculation, error)
	Update(ctx context.Context, c types.Calculation, expectedState types.CalculationState) (types.Calculation, error)
	Deactivate(ctx context.Context, id int) error
}

// CalculationInput carries the fields a client may send when recording a calculation.
type CalculationInput struct {
	IndicatorID  int
	RealValue    float64
	TargetValue  float64
	Period       string
	Observations string
}

// CalculationService encapsulates calculation use-cases.
type CalculationService struct {
	repo       CalculationRepository
	indicators IndicatorRepository
	events     *EventPublisher
	now        func() time.Time
}

// CalculationOption configures a CalculationService.
type CalculationOption func(*CalculationService)

// WithEvents publishes calculation lifecycle events through p.
func WithEvents(p *EventPublisher) CalculationOption {
	return func(s *CalculationService) {
		s.events = p
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) CalculationOption {
	return func(s *CalculationService) {
		s.now = now
	}
}

func NewCalculationService(repo CalculationRepository, indicators IndicatorRepository, opts ...CalculationOption) *CalculationService {
	s := &CalculationService{
		repo:       repo,
		indicators: indicators,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

const (
	calculationNotFound = "calculation not found"
	calculationConflict = "calculation was modified concurrently"
	indicatorMissingMsg = "referenced indicator missing or inactive"
)

// List returns the active calculations visible to caller.
func (s *CalculationService) List(ctx context.Context, caller policy.Caller) ([]types.Calculation, error) {
	if err := policy.Authorize(caller, policy.ViewCalculations); err != nil {
		return nil, err
	}
	calculations, err := s.repo.List(ctx, scopedFilter(caller, nil))
	return calculations, translate(err, calculationNotFound, calculationConflict)
}

// ListByIndicator returns the visible active calculations of an active indicator.
func (s *CalculationService) ListByIndicator(ctx context.Context, caller policy.Caller, indicatorID int) ([]types.Calculation, error) {
	if err := policy.Authorize(caller, policy.ViewCalculations); err != nil {
		return nil, err
	}
	if _, err := s.indicators.Get(ctx, indicatorID); err != nil {
		return nil, translate(err, indicatorNotFound, indicatorExists)
	}
	calculations, err := s.repo.List(ctx, scopedFilter(caller, &indicatorID))
	return calculations, translate(err, calculationNotFound, calculationConflict)
}

func scopedFilter(caller policy.Caller, indicatorID *int) store.CalculationFilter {
	filter := store.CalculationFilter{IndicatorID: indicatorID}
	if ownerID, scoped := policy.OwnerScope(caller); scoped {
		filter.OwnerUserID = &ownerID
	}
	return filter
}

func (s *CalculationService) Get(ctx context.Context, caller policy.Caller, id int) (types.Calculation, error) {
	if err := policy.Authorize(caller, policy.ViewCalculations); err != nil {
		return types.Calculation{}, err
	}
	calc, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Calculation{}, translate(err, calculationNotFound, calculationConflict)
	}
	if err := policy.CheckCalculationAccess(caller, calc); err != nil {
		return types.Calculation{}, err
	}
	return calc, nil
}

// Create records a new calculation owned by caller.
func (s *CalculationService) Create(ctx context.Context, caller policy.Caller, in CalculationInput) (types.Calculation, error) {
	calc := types.Calculation{
		IndicatorID:  in.IndicatorID,
		RealValue:    in.RealValue,
		TargetValue:  in.TargetValue,
		Period:       in.Period,
		Observations: in.Observations,
	}
	if err := policy.PrepareNewCalculation(caller, &calc, s.now()); err != nil {
		return types.Calculation{}, err
	}
	if _, err := s.indicators.Get(ctx, calc.IndicatorID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Calculation{}, apperr.Validation(indicatorMissingMsg)
		}
		return types.Calculation{}, apperr.Internal("internal server error", err)
	}

	created, err := s.repo.Create(ctx, calc)
	if err != nil {
		if errors.Is(err, store.ErrInvalidReference) {
			return types.Calculation{}, apperr.Validation(indicatorMissingMsg)
		}
		return types.Calculation{}, translate(err, calculationNotFound, calculationConflict)
	}
	s.events.publish(ctx, types.CalculationCreated, created, caller.UserID)
	return created, nil
}

// Update applies change to the calculation. The write only succeeds if the
// stored state is still the one the policy checks were made against.
func (s *CalculationService) Update(ctx context.Context, caller policy.Caller, id int, change policy.CalculationChange) (types.Calculation, error) {
	if err := policy.Authorize(caller, policy.EditCalculation); err != nil {
		return types.Calculation{}, err
	}
	calc, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Calculation{}, translate(err, calculationNotFound, calculationConflict)
	}
	expected := calc.State
	if err := policy.ApplyCalculationUpdate(caller, &calc, change, s.now()); err != nil {
		return types.Calculation{}, err
	}

	updated, err := s.repo.Update(ctx, calc, expected)
	if err != nil {
		return types.Calculation{}, translate(err, calculationNotFound, calculationConflict)
	}
	s.events.publish(ctx, types.CalculationUpdated, updated, caller.UserID)
	return updated, nil
}

// Delete soft-deletes the calculation.
func (s *CalculationService) Delete(ctx context.Context, caller policy.Caller, id int) error {
	if err := policy.Authorize(caller, policy.DeleteCalculation); err != nil {
		return err
	}
	calc, err := s.repo.Get(ctx, id)
	if err != nil {
		return translate(err, calculationNotFound, calculationConflict)
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return translate(err, calculationNotFound, calculationConflict)
	}
	calc.Active = false
	calc.UpdatedAt = s.now()
	s.events.publish(ctx, types.CalculationDeleted, calc, caller.UserID)
	return nil
}

// EventPublisher sends calculation events to a broker channel. A nil
// *EventPublisher publishes nothing.
type EventPublisher struct {
	backend Publisher
	channel string
	logger  *slog.Logger
	timeout time.Duration
	now     func() time.Time
}

// Publisher is the broker operation used for events. mq.MQ satisfies it.
type Publisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

const defaultPublishTimeout = 5 * time.Second

func NewEventPublisher(backend Publisher, channel string, logger *slog.Logger) *EventPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventPublisher{
		backend: backend,
		channel: channel,
		logger:  logger,
		timeout: defaultPublishTimeout,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// publish runs after the change is committed. Failures are logged and never
// reach the caller.
func (p *EventPublisher) publish(ctx context.Context, eventType types.CalculationEventType, calc types.Calculation, actorID int) {
	if p == nil || p.backend == nil {
		return
	}
	event := types.CalculationEvent{
		Type:        eventType,
		Calculation: calc,
		ActorID:     actorID,
		OccurredAt:  p.now(),
	}
	data, attrs, err := EncodeEvent(event)
	if err != nil {
		p.logger.Error("encode calculation event", "type", eventType, "calculation_id", calc.ID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()
	id, err := p.backend.Publish(ctx, p.channel, data, attrs)
	if err != nil {
		p.logger.Warn("publish calculation event failed",
			"type", eventType,
			"calculation_id", calc.ID,
			"channel", p.channel,
			"error", err,
		)
		return
	}
	p.logger.Debug("calculation event published", "type", eventType, "calculation_id", calc.ID, "message_id", id)
}
