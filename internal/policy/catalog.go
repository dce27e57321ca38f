package policy

import (
	"fmt"

	"github.com/indicadores/apiserver/internal/apperr"
)

// CheckDeactivation refuses to soft-delete a parent that still owns active
// children. Deactivation never cascades.
func CheckDeactivation(parent, child string, activeChildren int) error {
	if activeChildren > 0 {
		return apperr.Conflict(fmt.Sprintf("cannot delete %s with %d active %s", parent, activeChildren, child))
	}
	return nil
}
