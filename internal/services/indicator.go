package services

import (
	"context"
	"errors"
	"strings"

	"github.com/indicadores/apiserver/internal/apperr"
	"github.com/indicadores/apiserver/internal/policy"
	"github.com/indicadores/apiserver/internal/store"
	"github.com/indicadores/apiserver/types"
)

// IndicatorRepository defines persistence operations for indicators.
type IndicatorRepository interface {
	List(ctx context.Context) ([]types.Indicator, error)
	ListByCategory(ctx context.Context, categoryID int) ([]types.Indicator, error)
	Get(ctx context.Context, id int) (types.Indicator, error)
	ExistsActiveName(ctx context.Context, categoryID int, name string, excludeID int) (bool, error)
	Create(ctx context.Context, i types.Indicator) (types.Indicator, error)
	Update(ctx context.Context, i types.Indicator) (types.Indicator, error)
	CountActiveCalculations(ctx context.Context, id int) (int, error)
	Deactivate(ctx context.Context, id int) error
}

// IndicatorInput carries the writable fields of an indicator.
type IndicatorInput struct {
	Name        string
	Description string
	Formula     string
	Unit        string
	Frequency   string
	Responsible string
	CategoryID  int
}

func (in IndicatorInput) normalize() (IndicatorInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Formula = strings.TrimSpace(in.Formula)
	in.Unit = strings.TrimSpace(in.Unit)
	in.Frequency = strings.TrimSpace(in.Frequency)
	in.Responsible = strings.TrimSpace(in.Responsible)
	if in.Name == "" {
		return in, apperr.Validation("name is required")
	}
	if in.CategoryID < 1 {
		return in, apperr.Validation("category_id is required")
	}
	return in, nil
}

func (in IndicatorInput) indicator(id int) types.Indicator {
	return types.Indicator{
		ID:          id,
		Name:        in.Name,
		Description: in.Description,
		Formula:     in.Formula,
		Unit:        in.Unit,
		Frequency:   in.Frequency,
		Responsible: in.Responsible,
		CategoryID:  in.CategoryID,
	}
}

// IndicatorService encapsulates indicator use-cases.
type IndicatorService struct {
	repo       IndicatorRepository
	categories CategoryRepository
}

func NewIndicatorService(repo IndicatorRepository, categories CategoryRepository) *IndicatorService {
	return &IndicatorService{repo: repo, categories: categories}
}

const (
	indicatorNotFound  = "indicator not found"
	indicatorExists    = "an indicator with that name already exists in the category"
	categoryMissingMsg = "referenced category missing or inactive"
)

func (s *IndicatorService) List(ctx context.Context, caller policy.Caller) ([]types.Indicator, error) {
	if err := policy.Authorize(caller, policy.ViewCatalog); err != nil {
		return nil, err
	}
	indicators, err := s.repo.List(ctx)
	return indicators, translate(err, indicatorNotFound, indicatorExists)
}

// ListByCategory returns the active indicators of an active category.
func (s *IndicatorService) ListByCategory(ctx context.Context, caller policy.Caller, categoryID int) ([]types.Indicator, error) {
	if err := policy.Authorize(caller, policy.ViewCatalog); err != nil {
		return nil, err
	}
	if _, err := s.categories.Get(ctx, categoryID); err != nil {
		return nil, translate(err, categoryNotFound, categoryExists)
	}
	indicators, err := s.repo.ListByCategory(ctx, categoryID)
	return indicators, translate(err, indicatorNotFound, indicatorExists)
}

func (s *IndicatorService) Get(ctx context.Context, caller policy.Caller, id int) (types.Indicator, error) {
	if err := policy.Authorize(caller, policy.ViewCatalog); err != nil {
		return types.Indicator{}, err
	}
	indicator, err := s.repo.Get(ctx, id)
	return indicator, translate(err, indicatorNotFound, indicatorExists)
}

func (s *IndicatorService) Create(ctx context.Context, caller policy.Caller, in IndicatorInput) (types.Indicator, error) {
	if err := policy.Authorize(caller, policy.ManageCatalog); err != nil {
		return types.Indicator{}, err
	}
	in, err := in.normalize()
	if err != nil {
		return types.Indicator{}, err
	}
	if err := s.checkCategory(ctx, in.CategoryID); err != nil {
		return types.Indicator{}, err
	}
	if err := s.checkName(ctx, in.CategoryID, in.Name, 0); err != nil {
		return types.Indicator{}, err
	}
	indicator, err := s.repo.Create(ctx, in.indicator(0))
	return indicator, s.translateWrite(err)
}

func (s *IndicatorService) Update(ctx context.Context, caller policy.Caller, id int, in IndicatorInput) (types.Indicator, error) {
	if err := policy.Authorize(caller, policy.ManageCatalog); err != nil {
		return types.Indicator{}, err
	}
	in, err := in.normalize()
	if err != nil {
		return types.Indicator{}, err
	}
	if _, err := s.repo.Get(ctx, id); err != nil {
		return types.Indicator{}, translate(err, indicatorNotFound, indicatorExists)
	}
	if err := s.checkCategory(ctx, in.CategoryID); err != nil {
		return types.Indicator{}, err
	}
	if err := s.checkName(ctx, in.CategoryID, in.Name, id); err != nil {
		return types.Indicator{}, err
	}
	indicator, err := s.repo.Update(ctx, in.indicator(id))
	return indicator, s.translateWrite(err)
}

// Delete soft-deletes the indicator. It fails with Conflict while the
// indicator still has active calculations.
func (s *IndicatorService) Delete(ctx context.Context, caller policy.Caller, id int) error {
	if err := policy.Authorize(caller, policy.ManageCatalog); err != nil {
		return err
	}
	if _, err := s.repo.Get(ctx, id); err != nil {
		return translate(err, indicatorNotFound, indicatorExists)
	}
	n, err := s.repo.CountActiveCalculations(ctx, id)
	if err != nil {
		return translate(err, indicatorNotFound, indicatorExists)
	}
	if err := policy.CheckDeactivation("indicator", "calculations", n); err != nil {
		return err
	}
	return translate(s.repo.Deactivate(ctx, id), indicatorNotFound, "cannot delete indicator with active calculations")
}

func (s *IndicatorService) checkCategory(ctx context.Context, categoryID int) error {
	if _, err := s.categories.Get(ctx, categoryID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.Validation(categoryMissingMsg)
		}
		return apperr.Internal("internal server error", err)
	}
	return nil
}

func (s *IndicatorService) checkName(ctx context.Context, categoryID int, name string, excludeID int) error {
	exists, err := s.repo.ExistsActiveName(ctx, categoryID, name, excludeID)
	if err != nil {
		return apperr.Internal("internal server error", err)
	}
	if exists {
		return apperr.Conflict(indicatorExists)
	}
	return nil
}

func (s *IndicatorService) translateWrite(err error) error {
	if errors.Is(err, store.ErrInvalidReference) {
		return apperr.Validation(categoryMissingMsg)
	}
	return translate(err, indicatorNotFound, indicatorExists)
}
