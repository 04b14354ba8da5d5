package services

import (
	"context"
	"log"

	"github.com/jmoiron/sqlx"
)

type PurgeResult struct {
	Assignments int64 `json:"asignaciones"`
	Credentials int64 `json:"credenciales"`
	Persons     int64 `json:"personas"`
}

// PurgeTestData hard-deletes every row flagged es_dato_prueba, together with
// anything hanging off a flagged person, in a single transaction.
func PurgeTestData(ctx context.Context, db *sqlx.DB) (PurgeResult, error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return PurgeResult{}, err
	}
	defer tx.Rollback()

	var out PurgeResult
	steps := []struct {
		count *int64
		query string
	}{
		{&out.Assignments, `DELETE FROM persona_roles
WHERE es_dato_prueba OR rut_persona IN (SELECT rut FROM personas WHERE es_dato_prueba)`},
		{&out.Credentials, `DELETE FROM usuarios_auth
WHERE es_dato_prueba OR rut_persona IN (SELECT rut FROM personas WHERE es_dato_prueba)`},
		{&out.Persons, `DELETE FROM personas WHERE es_dato_prueba`},
	}
	for _, step := range steps {
		res, err := tx.ExecContext(ctx, step.query)
		if err != nil {
			return PurgeResult{}, WrapError(err, "eliminar datos de prueba")
		}
		*step.count, _ = res.RowsAffected()
	}
	if err := tx.Commit(); err != nil {
		return PurgeResult{}, err
	}
	log.Printf("datos de prueba eliminados: personas=%d credenciales=%d asignaciones=%d",
		out.Persons, out.Credentials, out.Assignments)
	return out, nil
}
