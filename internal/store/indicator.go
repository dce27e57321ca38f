package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/indicadores/apiserver/types"
)

// IndicatorRepository handles persistence for indicators.
type IndicatorRepository struct {
	db *sql.DB
}

func NewIndicatorRepository(db *sql.DB) *IndicatorRepository {
	return &IndicatorRepository{db: db}
}

const indicatorColumns = `id, name, description, formula, unit, frequency, responsible, category_id, active, created_at, updated_at`

func scanIndicator(row interface{ Scan(...any) error }) (types.Indicator, error) {
	var i types.Indicator
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Description,
		&i.Formula,
		&i.Unit,
		&i.Frequency,
		&i.Responsible,
		&i.CategoryID,
		&i.Active,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func (r *IndicatorRepository) queryIndicators(ctx context.Context, query string, args ...any) ([]types.Indicator, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	indicators := []types.Indicator{}
	for rows.Next() {
		i, err := scanIndicator(rows)
		if err != nil {
			return nil, err
		}
		indicators = append(indicators, i)
	}
	return indicators, rows.Err()
}

func (r *IndicatorRepository) List(ctx context.Context) ([]types.Indicator, error) {
	const query = `SELECT ` + indicatorColumns + ` FROM indicators WHERE active ORDER BY name, id`
	return r.queryIndicators(ctx, query)
}

func (r *IndicatorRepository) ListByCategory(ctx context.Context, categoryID int) ([]types.Indicator, error) {
	const query = `
		SELECT ` + indicatorColumns + `
		FROM indicators
		WHERE category_id = $1 AND active
		ORDER BY name, id`
	return r.queryIndicators(ctx, query, categoryID)
}

func (r *IndicatorRepository) Get(ctx context.Context, id int) (types.Indicator, error) {
	const query = `SELECT ` + indicatorColumns + ` FROM indicators WHERE id = $1 AND active`
	i, err := scanIndicator(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Indicator{}, ErrNotFound
		}
		return types.Indicator{}, err
	}
	return i, nil
}

// ExistsActiveName reports whether another active indicator of the category uses name.
func (r *IndicatorRepository) ExistsActiveName(ctx context.Context, categoryID int, name string, excludeID int) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM indicators
			WHERE active AND category_id = $1 AND LOWER(name) = LOWER($2) AND id <> $3
		)`
	var exists bool
	err := r.db.QueryRowContext(ctx, query, categoryID, name, excludeID).Scan(&exists)
	return exists, err
}

// Create inserts the indicator. The category must exist and be active at
// the time of the insert; otherwise ErrInvalidReference is returned.
func (r *IndicatorRepository) Create(ctx context.Context, i types.Indicator) (types.Indicator, error) {
	now := time.Now().UTC()
	i.CreatedAt = now
	i.UpdatedAt = now
	i.Active = true

	const query = `
		INSERT INTO indicators (name, description, formula, unit, frequency, responsible, category_id, active, created_at, updated_at)
		SELECT $1, $2, $3, $4, $5, $6, c.id, TRUE, $8, $9
		FROM categories c
		WHERE c.id = $7 AND c.active
		RETURNING id`
	err := r.db.QueryRowContext(
		ctx,
		query,
		i.Name,
		i.Description,
		i.Formula,
		i.Unit,
		i.Frequency,
		i.Responsible,
		i.CategoryID,
		i.CreatedAt,
		i.UpdatedAt,
	).Scan(&i.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Indicator{}, ErrInvalidReference
		}
		return types.Indicator{}, mapError(err)
	}
	return i, nil
}

// Update rewrites the indicator. Moving it to a missing or inactive
// category returns ErrInvalidReference.
func (r *IndicatorRepository) Update(ctx context.Context, i types.Indicator) (types.Indicator, error) {
	i.UpdatedAt = time.Now().UTC()

	const query = `
		UPDATE indicators
		SET name = $1,
			description = $2,
			formula = $3,
			unit = $4,
			frequency = $5,
			responsible = $6,
			category_id = $7,
			updated_at = $8
		WHERE id = $9 AND active
		  AND EXISTS (SELECT 1 FROM categories WHERE id = $7 AND active)
		RETURNING created_at`
	err := r.db.QueryRowContext(
		ctx,
		query,
		i.Name,
		i.Description,
		i.Formula,
		i.Unit,
		i.Frequency,
		i.Responsible,
		i.CategoryID,
		i.UpdatedAt,
		i.ID,
	).Scan(&i.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if _, getErr := r.Get(ctx, i.ID); getErr != nil {
				return types.Indicator{}, getErr
			}
			return types.Indicator{}, ErrInvalidReference
		}
		return types.Indicator{}, mapError(err)
	}
	i.Active = true
	return i, nil
}

// CountActiveCalculations returns how many active calculations measure the indicator.
func (r *IndicatorRepository) CountActiveCalculations(ctx context.Context, id int) (int, error) {
	const query = `SELECT COUNT(*) FROM calculations WHERE indicator_id = $1 AND active`
	var n int
	err := r.db.QueryRowContext(ctx, query, id).Scan(&n)
	return n, err
}

// Deactivate soft-deletes the indicator unless it still has active
// calculations, in which case ErrConflict is returned and nothing changes.
func (r *IndicatorRepository) Deactivate(ctx context.Context, id int) error {
	const query = `
		UPDATE indicators
		SET active = FALSE, updated_at = $2
		WHERE id = $1 AND active
		  AND NOT EXISTS (SELECT 1 FROM calculations WHERE indicator_id = $1 AND active)`
	result, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	return ErrConflict
}
