package services

import (
	"context"
	"strings"

	"github.com/indicadores/apiserver/internal/apperr"
	"github.com/indicadores/apiserver/internal/policy"
	"github.com/indicadores/apiserver/types"
)

// CategoryRepository defines persistence operations for categories.
type CategoryRepository interface {
	List(ctx context.Context) ([]types.Category, error)
	Get(ctx context.Context, id int) (types.Category, error)
	ExistsActiveName(ctx context.Context, name string, excludeID int) (bool, error)
	Create(ctx context.Context, c types.Category) (types.Category, error)
	Update(ctx context.Context, c types.Category) (types.Category, error)
	CountActiveIndicators(ctx context.Context, id int) (int, error)
	Deactivate(ctx context.Context, id int) error
}

// CategoryInput carries the writable fields of a category.
type CategoryInput struct {
	Name        string
	Description string
}

func (in CategoryInput) normalize() (CategoryInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if in.Name == "" {
		return in, apperr.Validation("name is required")
	}
	return in, nil
}

// CategoryService encapsulates category use-cases.
type CategoryService struct {
	repo       CategoryRepository
	indicators IndicatorRepository
}

func NewCategoryService(repo CategoryRepository, indicators IndicatorRepository) *CategoryService {
	return &CategoryService{repo: repo, indicators: indicators}
}

const (
	categoryNotFound = "category not found"
	categoryExists   = "a category with that name already exists"
)

func (s *CategoryService) List(ctx context.Context, caller policy.Caller) ([]types.Category, error) {
	if err := policy.Authorize(caller, policy.ViewCatalog); err != nil {
		return nil, err
	}
	categories, err := s.repo.List(ctx)
	return categories, translate(err, categoryNotFound, categoryExists)
}

// Get returns the category together with its active indicators.
func (s *CategoryService) Get(ctx context.Context, caller policy.Caller, id int) (types.Category, error) {
	if err := policy.Authorize(caller, policy.ViewCatalog); err != nil {
		return types.Category{}, err
	}
	category, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Category{}, translate(err, categoryNotFound, categoryExists)
	}
	indicators, err := s.indicators.ListByCategory(ctx, id)
	if err != nil {
		return types.Category{}, translate(err, categoryNotFound, categoryExists)
	}
	category.Indicators = indicators
	return category, nil
}

func (s *CategoryService) Create(ctx context.Context, caller policy.Caller, in CategoryInput) (types.Category, error) {
	if err := policy.Authorize(caller, policy.ManageCatalog); err != nil {
		return types.Category{}, err
	}
	in, err := in.normalize()
	if err != nil {
		return types.Category{}, err
	}
	if err := s.checkName(ctx, in.Name, 0); err != nil {
		return types.Category{}, err
	}
	category, err := s.repo.Create(ctx, types.Category{Name: in.Name, Description: in.Description})
	return category, translate(err, categoryNotFound, categoryExists)
}

func (s *CategoryService) Update(ctx context.Context, caller policy.Caller, id int, in CategoryInput) (types.Category, error) {
	if err := policy.Authorize(caller, policy.ManageCatalog); err != nil {
		return types.Category{}, err
	}
	in, err := in.normalize()
	if err != nil {
		return types.Category{}, err
	}
	if _, err := s.repo.Get(ctx, id); err != nil {
		return types.Category{}, translate(err, categoryNotFound, categoryExists)
	}
	if err := s.checkName(ctx, in.Name, id); err != nil {
		return types.Category{}, err
	}
	category, err := s.repo.Update(ctx, types.Category{ID: id, Name: in.Name, Description: in.Description})
	return category, translate(err, categoryNotFound, categoryExists)
}

// Delete soft-deletes the category. It fails with Conflict while the
// category still owns active indicators.
func (s *CategoryService) Delete(ctx context.Context, caller policy.Caller, id int) error {
	if err := policy.Authorize(caller, policy.ManageCatalog); err != nil {
		return err
	}
	if _, err := s.repo.Get(ctx, id); err != nil {
		return translate(err, categoryNotFound, categoryExists)
	}
	n, err := s.repo.CountActiveIndicators(ctx, id)
	if err != nil {
		return translate(err, categoryNotFound, categoryExists)
	}
	if err := policy.CheckDeactivation("category", "indicators", n); err != nil {
		return err
	}
	return translate(s.repo.Deactivate(ctx, id), categoryNotFound, "cannot delete category with active indicators")
}

// checkName is advisory; the unique index decides under concurrent writers.
func (s *CategoryService) checkName(ctx context.Context, name string, excludeID int) error {
	exists, err := s.repo.ExistsActiveName(ctx, name, excludeID)
	if err != nil {
		return apperr.Internal("internal server error", err)
	}
	if exists {
		return apperr.Conflict(categoryExists)
	}
	return nil
}
