package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/indicadores/apiserver/types"
)

// CategoryRepository handles persistence for categories.
type CategoryRepository struct {
	db *sql.DB
}

func NewCategoryRepository(db *sql.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

const categoryColumns = `id, name, description, active, created_at, updated_at`

func scanCategory(row interface{ Scan(...any) error }) (types.Category, error) {
	var c types.Category
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (r *CategoryRepository) List(ctx context.Context) ([]types.Category, error) {
	const query = `SELECT ` + categoryColumns + ` FROM categories WHERE active ORDER BY name, id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := []types.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (r *CategoryRepository) Get(ctx context.Context, id int) (types.Category, error) {
	const query = `SELECT ` + categoryColumns + ` FROM categories WHERE id = $1 AND active`
	c, err := scanCategory(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Category{}, ErrNotFound
		}
		return types.Category{}, err
	}
	return c, nil
}

// ExistsActiveName reports whether another active category uses name.
func (r *CategoryRepository) ExistsActiveName(ctx context.Context, name string, excludeID int) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM categories
			WHERE active AND LOWER(name) = LOWER($1) AND id <> $2
		)`
	var exists bool
	err := r.db.QueryRowContext(ctx, query, name, excludeID).Scan(&exists)
	return exists, err
}

func (r *CategoryRepository) Create(ctx context.Context, c types.Category) (types.Category, error) {
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	c.Active = true

	const query = `
		INSERT INTO categories (name, description, active, created_at, updated_at)
		VALUES ($1, $2, TRUE, $3, $4)
		RETURNING id`
	if err := r.db.QueryRowContext(ctx, query, c.Name, c.Description, c.CreatedAt, c.UpdatedAt).Scan(&c.ID); err != nil {
		return types.Category{}, mapError(err)
	}
	return c, nil
}

func (r *CategoryRepository) Update(ctx context.Context, c types.Category) (types.Category, error) {
	c.UpdatedAt = time.Now().UTC()

	const query = `
		UPDATE categories
		SET name = $1,
			description = $2,
			updated_at = $3
		WHERE id = $4 AND active
		RETURNING created_at`
	err := r.db.QueryRowContext(ctx, query, c.Name, c.Description, c.UpdatedAt, c.ID).Scan(&c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Category{}, ErrNotFound
		}
		return types.Category{}, mapError(err)
	}
	c.Active = true
	return c, nil
}

// CountActiveIndicators returns how many active indicators belong to the category.
func (r *CategoryRepository) CountActiveIndicators(ctx context.Context, id int) (int, error) {
	const query = `SELECT COUNT(*) FROM indicators WHERE category_id = $1 AND active`
	var n int
	err := r.db.QueryRowContext(ctx, query, id).Scan(&n)
	return n, err
}

// Deactivate soft-deletes the category unless it still owns active
// indicators, in which case ErrConflict is returned and nothing changes.
func (r *CategoryRepository) Deactivate(ctx context.Context, id int) error {
	const query = `
		UPDATE categories
		SET active = FALSE, updated_at = $2
		WHERE id = $1 AND active
		  AND NOT EXISTS (SELECT 1 FROM indicators WHERE category_id = $1 AND active)`
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
