package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/indicadores/apiserver/types"
)

// CalculationFilter narrows a calculation listing. Nil fields do not filter.
type CalculationFilter struct {
	OwnerUserID *int
	IndicatorID *int
}

// CalculationRepository handles persistence for calculations.
type CalculationRepository struct {
	db *sql.DB
}

func NewCalculationRepository(db *sql.DB) *CalculationRepository {
	return &CalculationRepository{db: db}
}

const calculationColumns = `id, indicator_id, user_id, real_value, target_value, compliance_percentage, period, observations, state, active, created_at, updated_at`

func scanCalculation(row interface{ Scan(...any) error }) (types.Calculation, error) {
	var c types.Calculation
	err := row.Scan(
		&c.ID,
		&c.IndicatorID,
		&c.UserID,
		&c.RealValue,
		&c.TargetValue,
		&c.CompliancePercentage,
		&c.Period,
		&c.Observations,
		&c.State,
		&c.Active,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	return c, err
}

// List returns active calculations matching filter, newest first.
func (r *CalculationRepository) List(ctx context.Context, filter CalculationFilter) ([]types.Calculation, error) {
	conditions := []string{"active"}
	var args []any
	if filter.OwnerUserID != nil {
		args = append(args, *filter.OwnerUserID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.IndicatorID != nil {
		args = append(args, *filter.IndicatorID)
		conditions = append(conditions, fmt.Sprintf("indicator_id = $%d", len(args)))
	}

	query := `SELECT ` + calculationColumns + ` FROM calculations WHERE ` +
		strings.Join(conditions, " AND ") + ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	calculations := []types.Calculation{}
	for rows.Next() {
		c, err := scanCalculation(rows)
		if err != nil {
			return nil, err
		}
		calculations = append(calculations, c)
	}
	return calculations, rows.Err()
}

func (r *CalculationRepository) Get(ctx context.Context, id int) (types.Calculation, error) {
	const query = `SELECT ` + calculationColumns + ` FROM calculations WHERE id = $1 AND active`
	c, err := scanCalculation(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Calculation{}, ErrNotFound
		}
		return types.Calculation{}, err
	}
	return c, nil
}

// Create inserts the calculation. The indicator must exist and be active at
// the time of the insert; otherwise ErrInvalidReference is returned.
func (r *CalculationRepository) Create(ctx context.Context, c types.Calculation) (types.Calculation, error) {
	const query = `
		INSERT INTO calculations (indicator_id, user_id, real_value, target_value, compliance_percentage,
			period, observations, state, active, created_at, updated_at)
		SELECT i.id, $2, $3, $4, $5, $6, $7, $8, TRUE, $9, $10
		FROM indicators i
		WHERE i.id = $1 AND i.active
		RETURNING id`
	err := r.db.QueryRowContext(
		ctx,
		query,
		c.IndicatorID,
		c.UserID,
		c.RealValue,
		c.TargetValue,
		c.CompliancePercentage,
		c.Period,
		c.Observations,
		c.State,
		c.CreatedAt,
		c.UpdatedAt,
	).Scan(&c.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Calculation{}, ErrInvalidReference
		}
		return types.Calculation{}, mapError(err)
	}
	c.Active = true
	return c, nil
}

// Update writes the mutable fields of c only if the stored row is still
// active and in expectedState. A vanished row yields ErrNotFound and a
// concurrent state change yields ErrConflict.
func (r *CalculationRepository) Update(ctx context.Context, c types.Calculation, expectedState types.CalculationState) (types.Calculation, error) {
	const query = `
		UPDATE calculations
		SET real_value = $1,
			target_value = $2,
			compliance_percentage = $3,
			period = $4,
			observations = $5,
			state = $6,
			updated_at = $7
		WHERE id = $8 AND active AND state = $9`
	result, err := r.db.ExecContext(
		ctx,
		query,
		c.RealValue,
		c.TargetValue,
		c.CompliancePercentage,
		c.Period,
		c.Observations,
		c.State,
		c.UpdatedAt,
		c.ID,
		expectedState,
	)
	if err != nil {
		return types.Calculation{}, mapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Calculation{}, err
	}
	if affected == 0 {
		if _, err := r.Get(ctx, c.ID); err != nil {
			return types.Calculation{}, err
		}
		return types.Calculation{}, ErrConflict
	}
	return c, nil
}

func (r *CalculationRepository) Deactivate(ctx context.Context, id int) error {
	const query = `UPDATE calculations SET active = FALSE, updated_at = $2 WHERE id = $1 AND active`
	result, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
