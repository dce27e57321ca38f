package services

import (
	"context"
	"testing"

	"github.com/indicadores/apiserver/internal/apperr"
	"github.com/indicadores/apiserver/internal/policy"
)

func TestIndicatorCreateRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	category, _ := f.seedIndicator(t)

	tests := []struct {
		name   string
		caller policy.Caller
		input  IndicatorInput
		want   apperr.Kind
	}{
		{"non admin", f.alice, IndicatorInput{Name: "Costs", CategoryID: category.ID}, apperr.KindForbidden},
		{"missing name", f.admin, IndicatorInput{CategoryID: category.ID}, apperr.KindValidation},
		{"missing category", f.admin, IndicatorInput{Name: "Costs"}, apperr.KindValidation},
		{"unknown category", f.admin, IndicatorInput{Name: "Costs", CategoryID: 9999}, apperr.KindValidation},
		{"duplicate in category", f.admin, IndicatorInput{Name: "REVENUE", CategoryID: category.ID}, apperr.KindConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.indicators.Create(ctx, tt.caller, tt.input)
			wantKind(t, err, tt.want)
		})
	}
}

func TestIndicatorSameNameOtherCategory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedIndicator(t)

	other, err := f.categories.Create(ctx, f.admin, CategoryInput{Name: "Sales"})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	created, err := f.indicators.Create(ctx, f.admin, IndicatorInput{
		Name:       " Revenue ",
		CategoryID: other.ID,
		Formula:    "sum(invoices)",
	})
	if err != nil {
		t.Fatalf("Create() = %v", err)
	}
	if created.Name != "Revenue" || created.Formula != "sum(invoices)" || !created.Active {
		t.Errorf("created = %+v", created)
	}
}

func TestIndicatorInactiveCategory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	empty, err := f.categories.Create(ctx, f.admin, CategoryInput{Name: "Empty"})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	if err := f.categories.Delete(ctx, f.admin, empty.ID); err != nil {
		t.Fatalf("delete category: %v", err)
	}

	_, err = f.indicators.Create(ctx, f.admin, IndicatorInput{Name: "Late", CategoryID: empty.ID})
	wantKind(t, err, apperr.KindValidation)

	_, err = f.indicators.ListByCategory(ctx, f.alice, empty.ID)
	wantKind(t, err, apperr.KindNotFound)
}

func TestIndicatorUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	category, revenue := f.seedIndicator(t)
	costs, err := f.indicators.Create(ctx, f.admin, IndicatorInput{Name: "Costs", CategoryID: category.ID})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = f.indicators.Update(ctx, f.admin, costs.ID, IndicatorInput{Name: "Revenue", CategoryID: category.ID})
	wantKind(t, err, apperr.KindConflict)

	_, err = f.indicators.Update(ctx, f.admin, costs.ID, IndicatorInput{Name: "Costs", CategoryID: 9999})
	wantKind(t, err, apperr.KindValidation)

	_, err = f.indicators.Update(ctx, f.admin, 9999, IndicatorInput{Name: "Costs", CategoryID: category.ID})
	wantKind(t, err, apperr.KindNotFound)

	updated, err := f.indicators.Update(ctx, f.admin, revenue.ID, IndicatorInput{Name: "Revenue", CategoryID: category.ID, Unit: "EUR"})
	if err != nil {
		t.Fatalf("Update() = %v", err)
	}
	if updated.Unit != "EUR" || !updated.CreatedAt.Equal(revenue.CreatedAt) {
		t.Errorf("updated = %+v", updated)
	}
}

func TestIndicatorDeleteWithActiveCalculations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, indicator := f.seedIndicator(t)

	calc, err := f.calculations.Create(ctx, f.alice, CalculationInput{IndicatorID: indicator.ID, RealValue: 1, TargetValue: 2})
	if err != nil {
		t.Fatalf("create calculation: %v", err)
	}

	wantKind(t, f.indicators.Delete(ctx, f.admin, indicator.ID), apperr.KindConflict)
	if got, err := f.indicators.Get(ctx, f.alice, indicator.ID); err != nil || !got.Active {
		t.Fatalf("indicator changed by refused delete: %+v, %v", got, err)
	}

	if err := f.calculations.Delete(ctx, f.admin, calc.ID); err != nil {
		t.Fatalf("delete calculation: %v", err)
	}
	if err := f.indicators.Delete(ctx, f.admin, indicator.ID); err != nil {
		t.Fatalf("delete indicator: %v", err)
	}
	list, err := f.indicators.List(ctx, f.alice)
	if err != nil || len(list) != 0 {
		t.Fatalf("List() = %+v, %v", list, err)
	}
}
