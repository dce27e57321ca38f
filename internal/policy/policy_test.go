package policy

import (
	"testing"

	"github.com/indicadores/apiserver/internal/apperr"
	"github.com/indicadores/apiserver/types"
)

var (
	admin    = Caller{UserID: 1, Email: "admin@x.com", Role: types.RoleAdministrator}
	user     = Caller{UserID: 2, Email: "a@x.com", Role: types.RoleUser}
	stranger = Caller{UserID: 3, Email: "b@x.com", Role: types.RoleUser}
)

func TestAuthorize(t *testing.T) {
	tests := []struct {
		name     string
		caller   Caller
		action   Action
		wantKind apperr.Kind
		wantOK   bool
	}{
		{"admin manages catalog", admin, ManageCatalog, 0, true},
		{"user cannot manage catalog", user, ManageCatalog, apperr.KindForbidden, false},
		{"user views catalog", user, ViewCatalog, 0, true},
		{"user records calculation", user, RecordCalculation, 0, true},
		{"user cannot review", user, ReviewCalculation, apperr.KindForbidden, false},
		{"user cannot delete calculation", user, DeleteCalculation, apperr.KindForbidden, false},
		{"user cannot manage users", user, ManageUsers, apperr.KindForbidden, false},
		{"user cannot export", user, ExportReports, apperr.KindForbidden, false},
		{"user views profile", user, ViewProfile, 0, true},
		{"admin views all", admin, ViewAllCalculations, 0, true},
		{"zero caller", Caller{}, ViewCatalog, apperr.KindUnauthorized, false},
		{"unknown role", Caller{UserID: 9, Role: "Auditor"}, ViewCatalog, apperr.KindUnauthorized, false},
		{"unknown action", admin, Action(999), apperr.KindForbidden, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Authorize(tt.caller, tt.action)
			if tt.wantOK {
				if err != nil {
					t.Fatalf("Authorize() = %v, want nil", err)
				}
				if !Allows(tt.caller, tt.action) {
					t.Error("Allows() = false, want true")
				}
				return
			}
			if err == nil {
				t.Fatal("Authorize() = nil, want error")
			}
			if got := apperr.KindOf(err); got != tt.wantKind {
				t.Errorf("KindOf() = %v, want %v", got, tt.wantKind)
			}
		})
	}
}

func TestEveryActionHasRequirement(t *testing.T) {
	for a := ViewCatalog; a <= ViewProfile; a++ {
		if len(requirements[a]) == 0 {
			t.Errorf("action %s has no role requirement", a)
		}
		if a.String() == "unknown" {
			t.Errorf("action %d has no name", a)
		}
	}
}

func TestCheckDeactivation(t *testing.T) {
	if err := CheckDeactivation("category", "indicators", 0); err != nil {
		t.Fatalf("CheckDeactivation(0) = %v", err)
	}
	err := CheckDeactivation("category", "indicators", 2)
	if apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("CheckDeactivation(2) kind = %v, want conflict", apperr.KindOf(err))
	}
}
