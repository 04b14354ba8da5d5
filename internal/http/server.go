package httpapi

import (
	"net/http"

	"cargamasiva-backend-go/internal/bulkimport"
	"cargamasiva-backend-go/internal/config"
	"cargamasiva-backend-go/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	DB       *sqlx.DB
	Config   config.Config
	Tokens   services.TokenService
	Hasher   services.PasswordHasher
	Importer *bulkimport.Importer
	Roles    *services.RoleCatalog
	Reports  services.ReportStore
	Progress *services.ProgressHub
}

func NewServer(db *sqlx.DB, cfg config.Config, importer *bulkimport.Importer, roles *services.RoleCatalog, reports services.ReportStore, hub *services.ProgressHub) *Server {
	return &Server{
		DB:     db,
		Config: cfg,
		Tokens: services.TokenService{
			Secret:    []byte(cfg.JWTSecret),
			Issuer:    cfg.JWTIssuer,
			AccessTTL: cfg.AccessTTL(),
		},
		Importer: importer,
		Roles:    roles,
		Reports:  reports,
		Progress: hub,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestLogger)
	if len(s.Config.CorsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.Config.CorsOrigins,
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Content-Disposition"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	r.Route("/api", func(api chi.Router) {
		api.Post("/auth/login", s.Login)
		api.With(WithAuth(s.Tokens)).Post("/auth/logout", s.Logout)

		api.Route("/carga-masiva", func(cm chi.Router) {
			cm.Use(WithAuth(s.Tokens))
			cm.Use(RequireRole(services.RoleAdmin))
			cm.Post("/procesar", s.ProcessUpload)
			cm.Post("/validar", s.ValidateUpload)
			cm.Get("/plantilla/csv", s.TemplateCSV)
			cm.Get("/plantilla/excel", s.TemplateExcel)
			cm.Get("/reportes/{reportId}", s.DownloadReport)
			cm.Get("/roles", s.ListRoles)
			cm.Get("/estadisticas", s.Statistics)
			cm.Delete("/datos-prueba", s.PurgeTestData)
			cm.Get("/personas", s.ListPersons)
		})
	})

	r.Get("/ws/carga-masiva", s.ProgressSocket)
	r.Handle("/metrics", promhttp.Handler())
	return r
}
