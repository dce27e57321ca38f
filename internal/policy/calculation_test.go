package policy

import (
	"math"
	"testing"
	"time"

	"github.com/indicadores/apiserver/internal/apperr"
	"github.com/indicadores/apiserver/types"
)

func TestCompliance(t *testing.T) {
	tests := []struct {
		real, target, want float64
	}{
		{80, 100, 80},
		{150, 100, 150},
		{0, 100, 0},
		{5, 0, 0},
		{5, -1, 0},
		{1, 3, 1.0 / 3.0 * 100},
	}
	for _, tt := range tests {
		if got := Compliance(tt.real, tt.target); got != tt.want {
			t.Errorf("Compliance(%v, %v) = %v, want %v", tt.real, tt.target, got, tt.want)
		}
	}
}

func TestOwnerScope(t *testing.T) {
	if _, scoped := OwnerScope(admin); scoped {
		t.Error("administrator should not be owner-scoped")
	}
	if id, scoped := OwnerScope(user); !scoped || id != user.UserID {
		t.Errorf("OwnerScope(user) = (%d, %v), want (%d, true)", id, scoped, user.UserID)
	}
}

func TestPrepareNewCalculation(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	calc := types.Calculation{
		ID:                   77,
		IndicatorID:          4,
		UserID:               999,
		RealValue:            80,
		TargetValue:          100,
		CompliancePercentage: 12345,
		State:                types.CalculationApproved,
		Observations:         "  first run ",
	}

	if err := PrepareNewCalculation(user, &calc, now); err != nil {
		t.Fatalf("PrepareNewCalculation() = %v", err)
	}

	if calc.ID != 0 {
		t.Errorf("ID = %d, want 0", calc.ID)
	}
	if calc.UserID != user.UserID {
		t.Errorf("UserID = %d, want caller %d", calc.UserID, user.UserID)
	}
	if calc.State != types.CalculationPending {
		t.Errorf("State = %q, want Pending", calc.State)
	}
	if !calc.Active {
		t.Error("Active = false")
	}
	if calc.CompliancePercentage != 80 {
		t.Errorf("CompliancePercentage = %v, want 80", calc.CompliancePercentage)
	}
	if calc.Period != types.DefaultPeriod {
		t.Errorf("Period = %q, want %q", calc.Period, types.DefaultPeriod)
	}
	if calc.Observations != "first run" {
		t.Errorf("Observations = %q", calc.Observations)
	}
	if !calc.CreatedAt.Equal(now) || !calc.UpdatedAt.Equal(now) {
		t.Errorf("timestamps = %v/%v, want %v", calc.CreatedAt, calc.UpdatedAt, now)
	}
}

func TestPrepareNewCalculationRejects(t *testing.T) {
	tests := []struct {
		name     string
		caller   Caller
		calc     types.Calculation
		wantKind apperr.Kind
	}{
		{"anonymous", Caller{}, types.Calculation{RealValue: 1, TargetValue: 1}, apperr.KindUnauthorized},
		{"negative real", user, types.Calculation{RealValue: -1, TargetValue: 1}, apperr.KindValidation},
		{"negative target", user, types.Calculation{RealValue: 1, TargetValue: -1}, apperr.KindValidation},
		{"compliance overflows", user, types.Calculation{RealValue: 1e300, TargetValue: 1e-300}, apperr.KindValidation},
		{"infinite real", user, types.Calculation{RealValue: math.Inf(1), TargetValue: 1}, apperr.KindValidation},
		{"NaN target", user, types.Calculation{RealValue: 1, TargetValue: math.NaN()}, apperr.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calc := tt.calc
			err := PrepareNewCalculation(tt.caller, &calc, time.Now())
			if got := apperr.KindOf(err); err == nil || got != tt.wantKind {
				t.Fatalf("PrepareNewCalculation() = %v (kind %v), want kind %v", err, got, tt.wantKind)
			}
		})
	}
}

func TestApplyCalculationUpdate(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	pending := types.Calculation{
		ID:          10,
		IndicatorID: 4,
		UserID:      user.UserID,
		RealValue:   80,
		TargetValue: 100,
		State:       types.CalculationPending,
		Active:      true,
	}
	approved := pending
	approved.State = types.CalculationApproved

	tests := []struct {
		name      string
		caller    Caller
		calc      types.Calculation
		change    CalculationChange
		wantKind  apperr.Kind
		wantState types.CalculationState
	}{
		{
			name:      "owner edits pending",
			caller:    user,
			calc:      pending,
			change:    CalculationChange{RealValue: 50, TargetValue: 200, Period: "2024-Q1"},
			wantState: types.CalculationPending,
		},
		{
			name:      "owner state change ignored",
			caller:    user,
			calc:      pending,
			change:    CalculationChange{RealValue: 50, TargetValue: 200, State: types.CalculationApproved},
			wantState: types.CalculationPending,
		},
		{
			name:     "owner cannot edit approved",
			caller:   user,
			calc:     approved,
			change:   CalculationChange{RealValue: 1, TargetValue: 2},
			wantKind: apperr.KindConflict,
		},
		{
			name:     "stranger forbidden",
			caller:   stranger,
			calc:     pending,
			change:   CalculationChange{RealValue: 1, TargetValue: 2},
			wantKind: apperr.KindForbidden,
		},
		{
			name:      "admin edits approved",
			caller:    admin,
			calc:      approved,
			change:    CalculationChange{RealValue: 1, TargetValue: 2},
			wantState: types.CalculationApproved,
		},
		{
			name:      "admin reverts to pending",
			caller:    admin,
			calc:      approved,
			change:    CalculationChange{RealValue: 1, TargetValue: 2, State: types.CalculationPending},
			wantState: types.CalculationPending,
		},
		{
			name:     "admin unknown state",
			caller:   admin,
			calc:     pending,
			change:   CalculationChange{RealValue: 1, TargetValue: 2, State: "Archived"},
			wantKind: apperr.KindValidation,
		},
		{
			name:     "negative value",
			caller:   user,
			calc:     pending,
			change:   CalculationChange{RealValue: -5, TargetValue: 2},
			wantKind: apperr.KindValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calc := tt.calc
			err := ApplyCalculationUpdate(tt.caller, &calc, tt.change, now)
			if tt.wantKind != 0 {
				if got := apperr.KindOf(err); err == nil || got != tt.wantKind {
					t.Fatalf("ApplyCalculationUpdate() = %v, want kind %v", err, tt.wantKind)
				}
				if calc != tt.calc {
					t.Error("rejected update modified the calculation")
				}
				return
			}
			if err != nil {
				t.Fatalf("ApplyCalculationUpdate() = %v", err)
			}
			if calc.State != tt.wantState {
				t.Errorf("State = %q, want %q", calc.State, tt.wantState)
			}
			want := Compliance(tt.change.RealValue, tt.change.TargetValue)
			if calc.CompliancePercentage != want {
				t.Errorf("CompliancePercentage = %v, want %v", calc.CompliancePercentage, want)
			}
			if calc.UserID != tt.calc.UserID || calc.IndicatorID != tt.calc.IndicatorID {
				t.Error("owner or indicator changed by update")
			}
			if !calc.UpdatedAt.Equal(now) {
				t.Errorf("UpdatedAt = %v, want %v", calc.UpdatedAt, now)
			}
		})
	}
}
