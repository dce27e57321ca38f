package services

import (
	"context"
	"testing"

	"github.com/indicadores/apiserver/internal/apperr"
)

func TestCategoryCreateRequiresAdministrator(t *testing.T) {
	f := newFixture(t)
	_, err := f.categories.Create(context.Background(), f.alice, CategoryInput{Name: "Finance"})
	wantKind(t, err, apperr.KindForbidden)
}

func TestCategoryCreateValidation(t *testing.T) {
	f := newFixture(t)
	_, err := f.categories.Create(context.Background(), f.admin, CategoryInput{Name: "   "})
	wantKind(t, err, apperr.KindValidation)
}

func TestCategoryDuplicateName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.categories.Create(ctx, f.admin, CategoryInput{Name: "Finance"}); err != nil {
		t.Fatalf("Create() = %v", err)
	}
	_, err := f.categories.Create(ctx, f.admin, CategoryInput{Name: " finance "})
	wantKind(t, err, apperr.KindConflict)
}

func TestCategoryUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	finance, _ := f.categories.Create(ctx, f.admin, CategoryInput{Name: "Finance"})
	ops, _ := f.categories.Create(ctx, f.admin, CategoryInput{Name: "Operations"})

	_, err := f.categories.Update(ctx, f.admin, ops.ID, CategoryInput{Name: "Finance"})
	wantKind(t, err, apperr.KindConflict)

	updated, err := f.categories.Update(ctx, f.admin, finance.ID, CategoryInput{Name: "Finance", Description: "Money"})
	if err != nil {
		t.Fatalf("Update(same name) = %v", err)
	}
	if updated.Description != "Money" {
		t.Errorf("Description = %q", updated.Description)
	}

	_, err = f.categories.Update(ctx, f.admin, 9999, CategoryInput{Name: "X"})
	wantKind(t, err, apperr.KindNotFound)
}

func TestCategoryGetIncludesActiveIndicators(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	category, indicator := f.seedIndicator(t)

	got, err := f.categories.Get(ctx, f.alice, category.ID)
	if err != nil {
		t.Fatalf("Get() = %v", err)
	}
	if len(got.Indicators) != 1 || got.Indicators[0].ID != indicator.ID {
		t.Fatalf("Indicators = %+v", got.Indicators)
	}

	if err := f.indicators.Delete(ctx, f.admin, indicator.ID); err != nil {
		t.Fatalf("Delete indicator = %v", err)
	}
	got, _ = f.categories.Get(ctx, f.alice, category.ID)
	if len(got.Indicators) != 0 {
		t.Fatalf("inactive indicator still listed: %+v", got.Indicators)
	}
}

func TestCategoryDeleteWithActiveIndicators(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	category, indicator := f.seedIndicator(t)

	wantKind(t, f.categories.Delete(ctx, f.alice, category.ID), apperr.KindForbidden)
	wantKind(t, f.categories.Delete(ctx, f.admin, category.ID), apperr.KindConflict)

	if _, err := f.categories.Get(ctx, f.admin, category.ID); err != nil {
		t.Fatalf("category changed by refused delete: %v", err)
	}

	if err := f.indicators.Delete(ctx, f.admin, indicator.ID); err != nil {
		t.Fatalf("delete indicator: %v", err)
	}
	if err := f.categories.Delete(ctx, f.admin, category.ID); err != nil {
		t.Fatalf("delete category: %v", err)
	}
	_, err := f.categories.Get(ctx, f.admin, category.ID)
	wantKind(t, err, apperr.KindNotFound)

	list, err := f.categories.List(ctx, f.alice)
	if err != nil || len(list) != 0 {
		t.Fatalf("List() = %+v, %v", list, err)
	}
}
