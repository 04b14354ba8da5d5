package services

import (
	"context"
	"strings"
	"time"

	"cargamasiva-backend-go/internal/bulkimport"

	"github.com/jmoiron/sqlx"
)

type PersonSummary struct {
	RUT          string     `db:"rut" json:"rut"`
	RUTFormatted string     `db:"rut_formateado" json:"rut_formateado"`
	FullName     string     `db:"nombre_completo" json:"nombre_completo"`
	Email        string     `db:"email" json:"email"`
	Active       bool       `db:"activo" json:"activo"`
	TestData     bool       `db:"es_dato_prueba" json:"es_dato_prueba"`
	Roles        string     `db:"roles" json:"roles"`
	LastAccess   *time.Time `db:"ultimo_acceso" json:"ultimo_acceso,omitempty"`
}

type PersonPage struct {
	Items    []PersonSummary `json:"items"`
	Page     int             `json:"page"`
	PageSize int             `json:"pageSize"`
	Total    int             `json:"total"`
}

// SearchPersons lists persons matching search on RUT, name or email. Dots
// and dashes in search are ignored when matching the RUT.
func SearchPersons(ctx context.Context, db *sqlx.DB, search string, page, pageSize int) (PersonPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	search = strings.TrimSpace(search)
	pattern := "%" + strings.ToLower(search) + "%"
	rutPattern := "%" + strings.ToUpper(strings.NewReplacer(".", "", "-", "", " ", "").Replace(search)) + "%"
	where := `p.fecha_eliminacion IS NULL AND ($1 = '' OR p.rut LIKE $2
  OR lower(p.nombres || ' ' || p.apellido_paterno || ' ' || COALESCE(p.apellido_materno, '')) LIKE $3
  OR lower(p.email) LIKE $3)`

	out := PersonPage{Items: []PersonSummary{}, Page: page, PageSize: pageSize}
	if err := db.GetContext(ctx, &out.Total, `SELECT COUNT(*) FROM personas p WHERE `+where, search, rutPattern, pattern); err != nil {
		return PersonPage{}, WrapError(err, "contar personas")
	}
	if err := db.SelectContext(ctx, &out.Items, `
SELECT p.rut, p.rut_formateado,
  trim(p.nombres || ' ' || p.apellido_paterno || ' ' || COALESCE(p.apellido_materno, '')) AS nombre_completo,
  p.email, p.activo, p.es_dato_prueba, ua.ultimo_acceso,
  COALESCE((
    SELECT string_agg(r.codigo, ',' ORDER BY r.codigo)
    FROM persona_roles pr JOIN roles r ON r.id = pr.rol_id
    WHERE pr.rut_persona = p.rut AND pr.activo AND pr.fecha_eliminacion IS NULL
  ), '') AS roles
FROM personas p
LEFT JOIN usuarios_auth ua ON ua.rut_persona = p.rut
WHERE `+where+`
ORDER BY p.apellido_paterno, p.nombres, p.rut
LIMIT $4 OFFSET $5`, search, rutPattern, pattern, pageSize, (page-1)*pageSize); err != nil {
		return PersonPage{}, WrapError(err, "buscar personas")
	}
	return out, nil
}

// RecordBatch stores the summary line of a finished batch.
func RecordBatch(ctx context.Context, db *sqlx.DB, result *bulkimport.BatchResult, actor string) error {
	var actorValue interface{}
	if actor = strings.TrimSpace(actor); actor != "" {
		actorValue = actor
	}
	_, err := db.ExecContext(ctx, `
INSERT INTO cargas_masivas (id, archivo, actor, estado, filas, creados, actualizados, duplicados,
  errores, es_dato_prueba, fecha_inicio, fecha_fin)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		result.ID, result.FileName, actorValue, result.Status(), result.RowsTotal, result.Created,
		result.Updated, result.Duplicates, result.ErrorCount, result.TestData, result.StartedAt, result.FinishedAt)
	return WrapError(err, "registrar carga")
}
