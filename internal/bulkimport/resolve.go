package bulkimport

import (
	"context"

	"cargamasiva-backend-go/internal/models"
)

type Decision int

const (
	DecisionCreate Decision = iota
	DecisionSkip
	DecisionUpdate
)

func (d Decision) String() string {
	switch d {
	case DecisionSkip:
		return "duplicate"
	case DecisionUpdate:
		return "update"
	default:
		return "create"
	}
}

// Resolve looks the record's RUT up inside tx. Soft-deleted persons count
// as existing; updating one restores it.
func Resolve(ctx context.Context, tx Tx, rec Record, updateExisting bool) (Decision, *models.Person, error) {
	existing, err := tx.PersonByRUT(ctx, rec.RUT)
	if err != nil {
		return DecisionCreate, nil, err
	}
	switch {
	case existing == nil:
		return DecisionCreate, nil, nil
	case updateExisting:
		return DecisionUpdate, existing, nil
	default:
		return DecisionSkip, existing, nil
	}
}
