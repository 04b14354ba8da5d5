package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cargamasiva-backend-go/internal/bulkimport"
	"cargamasiva-backend-go/internal/config"
	"cargamasiva-backend-go/internal/db"
	"cargamasiva-backend-go/internal/migrations"
	"cargamasiva-backend-go/internal/services"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
)

type processOptions struct {
	updateExisting  bool
	testData        bool
	defaultPassword string
	actor           string
	reportPath      string
	showPasswords   bool
}

// app is what the database backed commands share.
type app struct {
	db       *sqlx.DB
	roles    *services.RoleCatalog
	importer *bulkimport.Importer
}

func openRuntime(cmd *cobra.Command) (*app, error) {
	cfg := config.LoadBatch()
	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}
	if err := migrations.Apply(database); err != nil {
		database.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	if err := services.EnsureRoles(cmd.Context(), database); err != nil {
		database.Close()
		return nil, err
	}
	roles, err := services.LoadRoleCatalog(cmd.Context(), database)
	if err != nil {
		database.Close()
		return nil, err
	}
	importer := bulkimport.NewImporter(db.NewStore(database), roles, services.PasswordHasher{}, bulkimport.ImporterConfig{
		ErrorDetailLimit: cfg.ImportErrorDetailLimit,
		PasswordLength:   cfg.TempPasswordLength,
		RoleCodes:        roles.Codes(),
	})
	return &app{db: database, roles: roles, importer: importer}, nil
}

func newProcessCmd() *cobra.Command {
	var opts processOptions
	cmd := &cobra.Command{
		Use:   "procesar <archivo>",
		Short: "Importa un archivo CSV o Excel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.db.Close()

			path := args[0]
			result, err := rt.importer.ProcessFile(cmd.Context(), path, filepath.Ext(path), bulkimport.Options{
				UpdateExisting:  opts.updateExisting,
				MarkAsTestData:  opts.testData,
				DefaultPassword: opts.defaultPassword,
				Actor:           opts.actor,
				FileName:        filepath.Base(path),
			})
			if result == nil {
				return err
			}
			if recErr := services.RecordBatch(cmd.Context(), rt.db, result, opts.actor); recErr != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "no se pudo registrar la carga: %v\n", recErr)
			}
			printResult(cmd.OutOrStdout(), result, opts.showPasswords)
			if opts.reportPath != "" {
				if werr := writeReport(opts.reportPath, result); werr != nil {
					return werr
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reporte: %s\n", opts.reportPath)
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&opts.updateExisting, "actualizar", false, "Actualiza las personas que ya existen")
	cmd.Flags().BoolVar(&opts.testData, "prueba", false, "Marca los registros como datos de prueba")
	cmd.Flags().StringVar(&opts.defaultPassword, "password-defecto", "", "Contraseña para filas sin columna password")
	cmd.Flags().StringVar(&opts.actor, "actor", "", "RUT de quien ejecuta la carga")
	cmd.Flags().StringVar(&opts.reportPath, "reporte", "", "Ruta del reporte (.xlsx o .csv)")
	cmd.Flags().BoolVar(&opts.showPasswords, "mostrar-passwords", false, "Muestra las contraseñas temporales generadas")
	return cmd
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validar <archivo>",
		Short: "Valida un archivo sin escribir en la base de datos",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.db.Close()
			result, err := rt.importer.ValidateFile(cmd.Context(), args[0], filepath.Ext(args[0]))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
}

func newTemplateCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "plantilla <destino>",
		Short: "Genera la plantilla de carga",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format == "" {
				format = strings.TrimPrefix(strings.ToLower(filepath.Ext(args[0])), ".")
			}
			var body []byte
			var err error
			switch format {
			case "csv":
				body, err = bulkimport.TemplateCSV()
			case "xlsx", "excel":
				body, err = bulkimport.TemplateWorkbook()
			default:
				return fmt.Errorf("formato %q no soportado (use csv o xlsx)", format)
			}
			if err != nil {
				return err
			}
			return os.WriteFile(args[0], body, 0o644)
		},
	}
	cmd.Flags().StringVar(&format, "formato", "", "csv o xlsx (por defecto según la extensión)")
	return cmd
}

func newPurgeCmd() *cobra.Command {
	var confirm bool
	cmd := &cobra.Command{
		Use:   "limpiar-prueba",
		Short: "Elimina todos los registros marcados como datos de prueba",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return fmt.Errorf("use --confirmar para eliminar los datos de prueba")
			}
			rt, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.db.Close()
			result, err := services.PurgeTestData(cmd.Context(), rt.db)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().BoolVar(&confirm, "confirmar", false, "Confirma la eliminación")
	return cmd
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "estadisticas",
		Short: "Muestra totales de personas, credenciales y roles",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.db.Close()
			stats, err := services.FetchStatistics(cmd.Context(), rt.db)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), stats)
		},
	}
}

func printJSON(w io.Writer, value interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func printResult(w io.Writer, result *bulkimport.BatchResult, showPasswords bool) {
	fmt.Fprintf(w, "Carga %s (%s): %s\n", result.ID, result.Status(), result.Summary())
	for _, e := range result.Errors {
		fmt.Fprintf(w, "  fila %d: %s\n", e.Row, e.Message)
	}
	if result.ErrorsOmitted > 0 {
		fmt.Fprintf(w, "  ... y %d errores más\n", result.ErrorsOmitted)
	}
	if len(result.GeneratedCredentials) == 0 {
		return
	}
	fmt.Fprintf(w, "Credenciales creadas: %d\n", len(result.GeneratedCredentials))
	for _, c := range result.GeneratedCredentials {
		password := "********"
		if showPasswords {
			password = c.TemporaryPassword
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", c.Identifier, c.DisplayName, c.Email, password)
	}
}

func writeReport(path string, result *bulkimport.BatchResult) error {
	var body []byte
	var err error
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		body, err = bulkimport.BuildCSVReport(result)
	} else {
		body, err = bulkimport.BuildWorkbook(result)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, body, 0o644)
}
