package services

import (
	"context"

	"github.com/jmoiron/sqlx"
)

type RoleCount struct {
	Code  string `db:"codigo" json:"codigo"`
	Name  string `db:"nombre" json:"nombre"`
	Total int    `db:"total" json:"total"`
}

type Statistics struct {
	Persons           int         `db:"personas" json:"personas"`
	ActivePersons     int         `db:"personas_activas" json:"personas_activas"`
	Credentials       int         `db:"credenciales" json:"credenciales"`
	ActiveAssignments int         `db:"asignaciones_activas" json:"asignaciones_activas"`
	TestPersons       int         `db:"personas_prueba" json:"personas_prueba"`
	Batches           int         `db:"cargas" json:"cargas"`
	ByRole            []RoleCount `db:"-" json:"por_rol"`
}

func FetchStatistics(ctx context.Context, db *sqlx.DB) (Statistics, error) {
	var stats Statistics
	if err := db.GetContext(ctx, &stats, `
SELECT
  (SELECT COUNT(*) FROM personas WHERE fecha_eliminacion IS NULL) AS personas,
  (SELECT COUNT(*) FROM personas WHERE activo AND fecha_eliminacion IS NULL) AS personas_activas,
  (SELECT COUNT(*) FROM usuarios_auth WHERE activo) AS credenciales,
  (SELECT COUNT(*) FROM persona_roles WHERE activo AND fecha_eliminacion IS NULL) AS asignaciones_activas,
  (SELECT COUNT(*) FROM personas WHERE es_dato_prueba) AS personas_prueba,
  (SELECT COUNT(*) FROM cargas_masivas) AS cargas
`); err != nil {
		return Statistics{}, WrapError(err, "estadísticas")
	}
	stats.ByRole = []RoleCount{}
	if err := db.SelectContext(ctx, &stats.ByRole, `
SELECT r.codigo, r.nombre, COUNT(pr.id) AS total
FROM roles r
LEFT JOIN persona_roles pr ON pr.rol_id = r.id AND pr.activo AND pr.fecha_eliminacion IS NULL
GROUP BY r.id, r.codigo, r.nombre
ORDER BY r.id
`); err != nil {
		return Statistics{}, WrapError(err, "estadísticas por rol")
	}
	return stats, nil
}
