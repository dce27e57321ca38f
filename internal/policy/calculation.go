package policy

import (
	"math"
	"strings"
	"time"

	"github.com/indicadores/apiserver/internal/apperr"
	"github.com/indicadores/apiserver/types"
)

// CalculationChange holds the fields a caller may send when updating a calculation.
type CalculationChange struct {
	RealValue    float64
	TargetValue  float64
	Period       string
	Observations string

	// State is honoured for administrators only. Empty keeps the current state.
	State types.CalculationState
}

// Compliance returns real/target*100, or 0 when target is not positive.
func Compliance(real, target float64) float64 {
	if target <= 0 {
		return 0
	}
	return real / target * 100
}

// OwnerScope returns the owner filter to apply when caller lists calculations.
// scoped is false for callers allowed to see every calculation.
func OwnerScope(caller Caller) (ownerID int, scoped bool) {
	if Allows(caller, ViewAllCalculations) {
		return 0, false
	}
	return caller.UserID, true
}

// CheckCalculationAccess returns Forbidden unless caller owns calc or may see all calculations.
func CheckCalculationAccess(caller Caller, calc types.Calculation) error {
	if err := Authorize(caller, ViewCalculations); err != nil {
		return err
	}
	if ownerID, scoped := OwnerScope(caller); scoped && calc.UserID != ownerID {
		return apperr.Forbidden("forbidden")
	}
	return nil
}

// CheckCalculationEdit applies CheckCalculationAccess and then refuses edits
// of reviewed calculations by callers that cannot review.
func CheckCalculationEdit(caller Caller, calc types.Calculation) error {
	if err := Authorize(caller, EditCalculation); err != nil {
		return err
	}
	if err := CheckCalculationAccess(caller, calc); err != nil {
		return err
	}
	if calc.State != types.CalculationPending && !Allows(caller, ReviewCalculation) {
		return apperr.Conflict("cannot modify a non-pending calculation")
	}
	return nil
}

// PrepareNewCalculation normalizes a calculation about to be inserted.
// Owner, state, active flag and compliance are never taken from the client.
func PrepareNewCalculation(caller Caller, calc *types.Calculation, now time.Time) error {
	if err := Authorize(caller, RecordCalculation); err != nil {
		return err
	}
	if err := checkValues(calc.RealValue, calc.TargetValue); err != nil {
		return err
	}

	calc.ID = 0
	calc.UserID = caller.UserID
	calc.State = types.CalculationPending
	calc.Active = true
	calc.CompliancePercentage = Compliance(calc.RealValue, calc.TargetValue)
	calc.Period = normalizePeriod(calc.Period)
	calc.Observations = strings.TrimSpace(calc.Observations)
	calc.CreatedAt = now
	calc.UpdatedAt = now
	return nil
}

// ApplyCalculationUpdate checks that caller may edit calc and applies change to it.
func ApplyCalculationUpdate(caller Caller, calc *types.Calculation, change CalculationChange, now time.Time) error {
	if err := CheckCalculationEdit(caller, *calc); err != nil {
		return err
	}
	if err := checkValues(change.RealValue, change.TargetValue); err != nil {
		return err
	}

	if change.State != "" && Allows(caller, ReviewCalculation) {
		if !change.State.Valid() {
			return apperr.Validation("invalid calculation state")
		}
		calc.State = change.State
	}

	calc.RealValue = change.RealValue
	calc.TargetValue = change.TargetValue
	calc.CompliancePercentage = Compliance(change.RealValue, change.TargetValue)
	calc.Period = normalizePeriod(change.Period)
	calc.Observations = strings.TrimSpace(change.Observations)
	calc.UpdatedAt = now
	return nil
}

func checkValues(real, target float64) error {
	if !isFinite(real) || !isFinite(target) {
		return apperr.Validation("values must be finite numbers")
	}
	if real < 0 || target < 0 {
		return apperr.Validation("values must be non-negative")
	}
	if !isFinite(Compliance(real, target)) {
		return apperr.Validation("real value is too large for the target value")
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsInf(v, 0) && !math.IsNaN(v)
}

func normalizePeriod(period string) string {
	period = strings.TrimSpace(period)
	if period == "" {
		return types.DefaultPeriod
	}
	return period
}
