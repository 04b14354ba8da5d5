package httpapi

import (
	"strings"

	"cargamasiva-backend-go/internal/models"
)

type RoleDTO struct {
	ID              int64  `json:"id"`
	Code            string `json:"codigo"`
	Name            string `json:"nombre"`
	Category        string `json:"categoria"`
	IsStudent       bool   `json:"esAlumno"`
	RequiresCourse  bool   `json:"requiereCurso"`
	UniquePerCourse bool   `json:"esUnicoPorCurso"`
	ColumnValue     string `json:"valorColumna"`
}

func toRoleDTO(role models.Role) RoleDTO {
	return RoleDTO{
		ID:              role.ID,
		Code:            role.Code,
		Name:            role.Name,
		Category:        role.Category,
		IsStudent:       role.IsStudent,
		RequiresCourse:  role.RequiresCourse,
		UniquePerCourse: role.UniquePerCourse,
		ColumnValue:     strings.ToLower(role.Code),
	}
}
