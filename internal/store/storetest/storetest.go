// Package storetest provides in-memory repositories with the same
// constraint behaviour as the PostgreSQL store.
package storetest

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/indicadores/apiserver/internal/store"
	"github.com/indicadores/apiserver/types"
)

// Memory holds every table. Repositories created from the same Memory see
// each other's rows, so foreign keys and delete guards behave as in SQL.
type Memory struct {
	mu           sync.Mutex
	seq          int
	users        map[int]types.User
	categories   map[int]types.Category
	indicators   map[int]types.Indicator
	calculations map[int]types.Calculation
}

func New() *Memory {
	return &Memory{
		users:        map[int]types.User{},
		categories:   map[int]types.Category{},
		indicators:   map[int]types.Indicator{},
		calculations: map[int]types.Calculation{},
	}
}

func (m *Memory) nextID() int {
	m.seq++
	return m.seq
}

func (m *Memory) Users() *UserRepository { return &UserRepository{m: m} }
func (m *Memory) Categories() *CategoryRepository { return &CategoryRepository{m: m} }
func (m *Memory) Indicators() *IndicatorRepository { return &IndicatorRepository{m: m} }
func (m *Memory) Calculations() *CalculationRepository { return &CalculationRepository{m: m} }

func sameName(a, b string) bool {
	return strings.EqualFold(a, b)
}

func sortedValues[T any](rows map[int]T, keep func(T) bool, less func(a, b T) int) []T {
	out := []T{}
	for _, row := range rows {
		if keep(row) {
			out = append(out, row)
		}
	}
	slices.SortFunc(out, less)
	return out
}

// UserRepository is an in-memory store.UserRepository.
type UserRepository struct{ m *Memory }

func (r *UserRepository) List(ctx context.Context) ([]types.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return sortedValues(r.m.users,
		func(u types.User) bool { return u.Active },
		func(a, b types.User) int { return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID)) },
	), nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (types.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u, ok := r.m.users[id]
	if !ok || !u.Active {
		return types.User{}, store.ErrNotFound
	}
	return u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, u := range r.m.users {
		if sameName(u.Email, email) {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, u := range r.m.users {
		if sameName(u.Email, user.Email) {
			return types.User{}, store.ErrConflict
		}
	}
	now := time.Now().UTC()
	user.ID = r.m.nextID()
	user.Active = true
	user.CreatedAt = now
	user.UpdatedAt = now
	r.m.users[user.ID] = user
	return user, nil
}

func (r *UserRepository) Update(ctx context.Context, user types.User) (types.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	current, ok := r.m.users[user.ID]
	if !ok || !current.Active {
		return types.User{}, store.ErrNotFound
	}
	current.Name = user.Name
	current.Role = user.Role
	current.PasswordHash = user.PasswordHash
	current.UpdatedAt = time.Now().UTC()
	r.m.users[user.ID] = current
	return current, nil
}

func (r *UserRepository) Deactivate(ctx context.Context, id int) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	current, ok := r.m.users[id]
	if !ok || !current.Active {
		return store.ErrNotFound
	}
	current.Active = false
	current.UpdatedAt = time.Now().UTC()
	r.m.users[id] = current
	return nil
}

// CategoryRepository is an in-memory store.CategoryRepository.
type CategoryRepository struct{ m *Memory }

func (r *CategoryRepository) List(ctx context.Context) ([]types.Category, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return sortedValues(r.m.categories,
		func(c types.Category) bool { return c.Active },
		func(a, b types.Category) int { return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID)) },
	), nil
}

func (r *CategoryRepository) Get(ctx context.Context, id int) (types.Category, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c, ok := r.m.categories[id]
	if !ok || !c.Active {
		return types.Category{}, store.ErrNotFound
	}
	return c, nil
}

func (r *CategoryRepository) ExistsActiveName(ctx context.Context, name string, excludeID int) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return r.m.categoryNameTaken(name, excludeID), nil
}

func (m *Memory) categoryNameTaken(name string, excludeID int) bool {
	for _, c := range m.categories {
		if c.Active && c.ID != excludeID && sameName(c.Name, name) {
			return true
		}
	}
	return false
}

func (r *CategoryRepository) Create(ctx context.Context, c types.Category) (types.Category, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.categoryNameTaken(c.Name, 0) {
		return types.Category{}, store.ErrConflict
	}
	now := time.Now().UTC()
	c.ID = r.m.nextID()
	c.Active = true
	c.CreatedAt = now
	c.UpdatedAt = now
	c.Indicators = nil
	r.m.categories[c.ID] = c
	return c, nil
}

func (r *CategoryRepository) Update(ctx context.Context, c types.Category) (types.Category, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	current, ok := r.m.categories[c.ID]
	if !ok || !current.Active {
		return types.Category{}, store.ErrNotFound
	}
	if r.m.categoryNameTaken(c.Name, c.ID) {
		return types.Category{}, store.ErrConflict
	}
	current.Name = c.Name
	current.Description = c.Description
	current.UpdatedAt = time.Now().UTC()
	r.m.categories[c.ID] = current
	return current, nil
}

func (r *CategoryRepository) CountActiveIndicators(ctx context.Context, id int) (int, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return r.m.activeIndicators(id), nil
}

func (m *Memory) activeIndicators(categoryID int) int {
	n := 0
	for _, i := range m.indicators {
		if i.Active && i.CategoryID == categoryID {
			n++
		}
	}
	return n
}

func (r *CategoryRepository) Deactivate(ctx context.Context, id int) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	current, ok := r.m.categories[id]
	if !ok || !current.Active {
		return store.ErrNotFound
	}
	if r.m.activeIndicators(id) > 0 {
		return store.ErrConflict
	}
	current.Active = false
	current.UpdatedAt = time.Now().UTC()
	r.m.categories[id] = current
	return nil
}

// IndicatorRepository is an in-memory store.IndicatorRepository.
type IndicatorRepository struct{ m *Memory }

func byIndicatorName(a, b types.Indicator) int {
	return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
}

func (r *IndicatorRepository) List(ctx context.Context) ([]types.Indicator, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return sortedValues(r.m.indicators, func(i types.Indicator) bool { return i.Active }, byIndicatorName), nil
}

func (r *IndicatorRepository) ListByCategory(ctx context.Context, categoryID int) ([]types.Indicator, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return sortedValues(r.m.indicators,
		func(i types.Indicator) bool { return i.Active && i.CategoryID == categoryID },
		byIndicatorName,
	), nil
}

func (r *IndicatorRepository) Get(ctx context.Context, id int) (types.Indicator, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	i, ok := r.m.indicators[id]
	if !ok || !i.Active {
		return types.Indicator{}, store.ErrNotFound
	}
	return i, nil
}

func (r *IndicatorRepository) ExistsActiveName(ctx context.Context, categoryID int, name string, excludeID int) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return r.m.indicatorNameTaken(categoryID, name, excludeID), nil
}

func (m *Memory) indicatorNameTaken(categoryID int, name string, excludeID int) bool {
	for _, i := range m.indicators {
		if i.Active && i.ID != excludeID && i.CategoryID == categoryID && sameName(i.Name, name) {
			return true
		}
	}
	return false
}

func (m *Memory) categoryActive(id int) bool {
	c, ok := m.categories[id]
	return ok && c.Active
}

func (r *IndicatorRepository) Create(ctx context.Context, i types.Indicator) (types.Indicator, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if !r.m.categoryActive(i.CategoryID) {
		return types.Indicator{}, store.ErrInvalidReference
	}
	if r.m.indicatorNameTaken(i.CategoryID, i.Name, 0) {
		return types.Indicator{}, store.ErrConflict
	}
	now := time.Now().UTC()
	i.ID = r.m.nextID()
	i.Active = true
	i.CreatedAt = now
	i.UpdatedAt = now
	r.m.indicators[i.ID] = i
	return i, nil
}

func (r *IndicatorRepository) Update(ctx context.Context, i types.Indicator) (types.Indicator, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	current, ok := r.m.indicators[i.ID]
	if !ok || !current.Active {
		return types.Indicator{}, store.ErrNotFound
	}
	if !r.m.categoryActive(i.CategoryID) {
		return types.Indicator{}, store.ErrInvalidReference
	}
	if r.m.indicatorNameTaken(i.CategoryID, i.Name, i.ID) {
		return types.Indicator{}, store.ErrConflict
	}
	i.Active = true
	i.CreatedAt = current.CreatedAt
	i.UpdatedAt = time.Now().UTC()
	r.m.indicators[i.ID] = i
	return i, nil
}

func (r *IndicatorRepository) CountActiveCalculations(ctx context.Context, id int) (int, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return r.m.activeCalculations(id), nil
}

func (m *Memory) activeCalculations(indicatorID int) int {
	n := 0
	for _, c := range m.calculations {
		if c.Active && c.IndicatorID == indicatorID {
			n++
		}
	}
	return n
}

func (r *IndicatorRepository) Deactivate(ctx context.Context, id int) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	current, ok := r.m.indicators[id]
	if !ok || !current.Active {
		return store.ErrNotFound
	}
	if r.m.activeCalculations(id) > 0 {
		return store.ErrConflict
	}
	current.Active = false
	current.UpdatedAt = time.Now().UTC()
	r.m.indicators[id] = current
	return nil
}

// CalculationRepository is an in-memory store.CalculationRepository.
type CalculationRepository struct{ m *Memory }

func (r *CalculationRepository) List(ctx context.Context, filter store.CalculationFilter) ([]types.Calculation, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return sortedValues(r.m.calculations,
		func(c types.Calculation) bool {
			if !c.Active {
				return false
			}
			if filter.OwnerUserID != nil && c.UserID != *filter.OwnerUserID {
				return false
			}
			if filter.IndicatorID != nil && c.IndicatorID != *filter.IndicatorID {
				return false
			}
			return true
		},
		func(a, b types.Calculation) int {
			return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(b.ID, a.ID))
		},
	), nil
}

func (r *CalculationRepository) Get(ctx context.Context, id int) (types.Calculation, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c, ok := r.m.calculations[id]
	if !ok || !c.Active {
		return types.Calculation{}, store.ErrNotFound
	}
	return c, nil
}

func (r *CalculationRepository) Create(ctx context.Context, c types.Calculation) (types.Calculation, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	i, ok := r.m.indicators[c.IndicatorID]
	if !ok || !i.Active {
		return types.Calculation{}, store.ErrInvalidReference
	}
	if _, ok := r.m.users[c.UserID]; !ok {
		return types.Calculation{}, store.ErrInvalidReference
	}
	c.ID = r.m.nextID()
	c.Active = true
	r.m.calculations[c.ID] = c
	return c, nil
}

func (r *CalculationRepository) Update(ctx context.Context, c types.Calculation, expectedState types.CalculationState) (types.Calculation, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	current, ok := r.m.calculations[c.ID]
	if !ok || !current.Active {
		return types.Calculation{}, store.ErrNotFound
	}
	if current.State != expectedState {
		return types.Calculation{}, store.ErrConflict
	}
	current.RealValue = c.RealValue
	current.TargetValue = c.TargetValue
	current.CompliancePercentage = c.CompliancePercentage
	current.Period = c.Period
	current.Observations = c.Observations
	current.State = c.State
	current.UpdatedAt = c.UpdatedAt
	r.m.calculations[c.ID] = current
	return current, nil
}

func (r *CalculationRepository) Deactivate(ctx context.Context, id int) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	current, ok := r.m.calculations[id]
	if !ok || !current.Active {
		return store.ErrNotFound
	}
	current.Active = false
	current.UpdatedAt = time.Now().UTC()
	r.m.calculations[id] = current
	return nil
}
