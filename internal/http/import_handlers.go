package httpapi

import (
	"context"
	"errors"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"cargamasiva-backend-go/internal/bulkimport"
	"cargamasiva-backend-go/internal/services"

	"github.com/go-chi/chi/v5"
)

const uploadField = "archivo"

// receiveUpload stores the multipart file on disk. On failure it has already
// written the response.
func (s *Server) receiveUpload(w http.ResponseWriter, r *http.Request) (services.Upload, string, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.Config.MaxUploadBytes+(1<<20))
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteError(w, http.StatusRequestEntityTooLarge, "El archivo supera el tamaño máximo permitido")
			return services.Upload{}, "", "", false
		}
		WriteError(w, http.StatusBadRequest, "Debe adjuntar un archivo en el campo "+uploadField)
		return services.Upload{}, "", "", false
	}
	file, header, err := r.FormFile(uploadField)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Debe adjuntar un archivo en el campo "+uploadField)
		return services.Upload{}, "", "", false
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	ext := bulkimport.NormalizeExtension(filepath.Ext(name))
	if !bulkimport.SupportedExtensions[ext] {
		WriteError(w, http.StatusUnprocessableEntity, bulkimport.ErrUnsupportedExtension.Error())
		return services.Upload{}, "", "", false
	}
	upload, err := services.SaveUpload(s.Config.UploadDir, ext, file, s.Config.MaxUploadBytes)
	if err != nil {
		writeServiceError(w, err)
		return services.Upload{}, "", "", false
	}
	return upload, name, ext, true
}

func (s *Server) ProcessUpload(w http.ResponseWriter, r *http.Request) {
	upload, name, ext, ok := s.receiveUpload(w, r)
	if !ok {
		return
	}
	defer services.RemoveUpload(upload)

	opts := bulkimport.Options{
		UpdateExisting:  parseBool(r.FormValue("updateExisting")),
		MarkAsTestData:  parseBool(r.FormValue("markAsTestData")),
		DefaultPassword: strings.TrimSpace(r.FormValue("defaultPassword")),
		Actor:           CurrentRUT(r),
		FileName:        name,
	}
	result, err := s.Importer.ProcessFile(r.Context(), upload.Path, ext, opts)
	if result == nil {
		writeServiceError(w, err)
		return
	}
	if err != nil {
		log.Printf("carga masiva %s interrumpida: %v", result.ID, err)
	}

	// The client may be gone after a cancel; the batch record and report
	// still describe what was committed.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 10*time.Second)
	defer cancel()
	if s.DB != nil {
		if err := services.RecordBatch(ctx, s.DB, result, opts.Actor); err != nil {
			log.Printf("carga masiva %s: %v", result.ID, err)
		}
	}
	if id, err := s.Reports.Save(ctx, result); err != nil {
		log.Printf("carga masiva %s: guardar reporte: %v", result.ID, err)
	} else {
		result.ReportID = id
	}
	WriteJSON(w, http.StatusOK, result)
}

func (s *Server) ValidateUpload(w http.ResponseWriter, r *http.Request) {
	upload, _, ext, ok := s.receiveUpload(w, r)
	if !ok {
		return
	}
	defer services.RemoveUpload(upload)

	result, err := s.Importer.ValidateFile(r.Context(), upload.Path, ext)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

func (s *Server) TemplateCSV(w http.ResponseWriter, r *http.Request) {
	body, err := bulkimport.TemplateCSV()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeAttachment(w, "text/csv; charset=utf-8", "plantilla_carga_masiva.csv", body)
}

func (s *Server) TemplateExcel(w http.ResponseWriter, r *http.Request) {
	body, err := bulkimport.TemplateWorkbook()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeAttachment(w, xlsxContentType, "plantilla_carga_masiva.xlsx", body)
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) DownloadReport(w http.ResponseWriter, r *http.Request) {
	result, err := s.Reports.Load(r.Context(), chi.URLParam(r, "reportId"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	stamp := result.StartedAt.Format("20060102_150405")
	switch strings.ToLower(r.URL.Query().Get("formato")) {
	case "", "xlsx", "excel":
		body, err := bulkimport.BuildWorkbook(result)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeAttachment(w, xlsxContentType, "reporte_carga_"+stamp+".xlsx", body)
	case "csv":
		body, err := bulkimport.BuildCSVReport(result)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeAttachment(w, "text/csv; charset=utf-8", "reporte_carga_"+stamp+".csv", body)
	default:
		WriteError(w, http.StatusBadRequest, "Formato no soportado (use xlsx o csv)")
	}
}

func (s *Server) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles := s.Roles.All()
	items := make([]RoleDTO, 0, len(roles))
	for _, role := range roles {
		items = append(items, toRoleDTO(role))
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (s *Server) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := services.FetchStatistics(r.Context(), s.DB)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}

func (s *Server) PurgeTestData(w http.ResponseWriter, r *http.Request) {
	result, err := services.PurgeTestData(r.Context(), s.DB)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

func (s *Server) ListPersons(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := services.SearchPersons(r.Context(), s.DB, q.Get("search"), parseInt(q.Get("page"), 1), parseInt(q.Get("pageSize"), 20))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, page)
}
