package bulkimport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const DefaultErrorDetailLimit = 50

type OutcomeKind string

const (
	OutcomeCreated   OutcomeKind = "created"
	OutcomeUpdated   OutcomeKind = "updated"
	OutcomeDuplicate OutcomeKind = "duplicate"
	OutcomeError     OutcomeKind = "error"
)

// Outcome is the result of one row.
type Outcome struct {
	Row         int         `json:"row"`
	Kind        OutcomeKind `json:"kind"`
	RUT         string      `json:"rut,omitempty"`
	DisplayName string      `json:"display_name,omitempty"`
	Roles       []string    `json:"roles,omitempty"`
	Messages    []string    `json:"messages,omitempty"`
}

type RowMessage struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

type GeneratedCredential struct {
	Identifier        string `json:"identifier"`
	DisplayName       string `json:"display_name"`
	Email             string `json:"email"`
	TemporaryPassword string `json:"temporary_password"`
}

type BatchResult struct {
	ID                   string                `json:"batch_id"`
	FileName             string                `json:"file_name,omitempty"`
	Success              bool                  `json:"success"`
	RowsTotal            int                   `json:"rows_total"`
	Created              int                   `json:"created"`
	Updated              int                   `json:"updated"`
	Duplicates           int                   `json:"duplicates"`
	ErrorCount           int                   `json:"error_count"`
	Errors               []RowMessage          `json:"errors"`
	ErrorsOmitted        int                   `json:"errors_omitted"`
	GeneratedCredentials []GeneratedCredential `json:"generated_credentials"`
	Outcomes             []Outcome             `json:"outcomes"`
	Canceled             bool                  `json:"canceled"`
	TestData             bool                  `json:"test_data"`
	ReportID             string                `json:"report_id,omitempty"`
	StartedAt            time.Time             `json:"started_at"`
	FinishedAt           time.Time             `json:"finished_at"`
}

func (r *BatchResult) Status() string {
	switch {
	case r.Canceled:
		return "canceled"
	case r.Success:
		return "ok"
	default:
		return "with_errors"
	}
}

func (r *BatchResult) Summary() string {
	return fmt.Sprintf("filas=%d creados=%d actualizados=%d duplicados=%d errores=%d",
		r.RowsTotal, r.Created, r.Updated, r.Duplicates, r.ErrorCount)
}

func (r *BatchResult) record(o Outcome, limit int) {
	r.RowsTotal++
	r.Outcomes = append(r.Outcomes, o)
	switch o.Kind {
	case OutcomeCreated:
		r.Created++
	case OutcomeUpdated:
		r.Updated++
	case OutcomeDuplicate:
		r.Duplicates++
	case OutcomeError:
		r.ErrorCount++
		if len(r.Errors) < limit {
			r.Errors = append(r.Errors, RowMessage{Row: o.Row, Message: strings.Join(o.Messages, "; ")})
		} else {
			r.ErrorsOmitted++
		}
	}
}

type ImporterConfig struct {
	ErrorDetailLimit int
	PasswordLength   int
	RoleCodes        []string
	Progress         ProgressSink
	Metrics          *Metrics
	Now              func() time.Time
}

// Importer runs batches one at a time, each row in its own transaction.
type Importer struct {
	store      Store
	composer   *Composer
	validator  *Validator
	roles      RoleLookup
	progress   ProgressSink
	metrics    *Metrics
	errorLimit int
	now        func() time.Time
	mu         sync.Mutex
}

func NewImporter(store Store, roles RoleLookup, hasher PasswordHasher, cfg ImporterConfig) *Importer {
	if cfg.ErrorDetailLimit <= 0 {
		cfg.ErrorDetailLimit = DefaultErrorDetailLimit
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Importer{
		store: store,
		composer: &Composer{
			Roles:          roles,
			Hasher:         hasher,
			PasswordLength: cfg.PasswordLength,
			Now:            cfg.Now,
		},
		validator:  NewValidator(cfg.RoleCodes),
		roles:      roles,
		progress:   cfg.Progress,
		metrics:    cfg.Metrics,
		errorLimit: cfg.ErrorDetailLimit,
		now:        cfg.Now,
	}
}

// ProcessFile imports every row of the file at path. File level problems
// are returned as *FileError with a nil result. Row problems never surface
// as errors; they are counted in the result. When ctx is canceled the rows
// already processed stay committed, the result is marked canceled and
// ctx.Err() is returned alongside it.
func (im *Importer) ProcessFile(ctx context.Context, path, ext string, opts Options) (*BatchResult, error) {
	reader, err := Open(path, ext)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	im.mu.Lock()
	defer im.mu.Unlock()

	result := &BatchResult{
		ID:                   uuid.NewString(),
		FileName:             opts.FileName,
		Errors:               []RowMessage{},
		GeneratedCredentials: []GeneratedCredential{},
		Outcomes:             []Outcome{},
		TestData:             opts.MarkAsTestData,
		StartedAt:            im.now(),
	}
	log.Printf("carga masiva %s: inicio archivo=%q actor=%s actualizar=%t prueba=%t",
		result.ID, opts.FileName, opts.Actor, opts.UpdateExisting, opts.MarkAsTestData)

	var runErr error
	for {
		if err := ctx.Err(); err != nil {
			result.Canceled = true
			runErr = err
			break
		}
		row, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Printf("carga masiva %s: lectura interrumpida: %v", result.ID, err)
			result.ErrorCount++
			result.Errors = append(result.Errors, RowMessage{Row: result.lastRow() + 1, Message: err.Error()})
			break
		}
		outcome, cred, err := im.processRow(ctx, row, opts)
		if err != nil {
			result.Canceled = true
			runErr = err
			break
		}
		result.record(outcome, im.errorLimit)
		if cred != nil {
			result.GeneratedCredentials = append(result.GeneratedCredentials, *cred)
		}
		im.metrics.observeRow(outcome.Kind)
		im.publish(result, row.Number, false)
	}

	result.Success = result.ErrorCount == 0 && !result.Canceled
	result.FinishedAt = im.now()
	im.publish(result, result.lastRow(), true)
	im.metrics.observeBatch(result, result.FinishedAt.Sub(result.StartedAt))
	log.Printf("carga masiva %s: fin estado=%s %s", result.ID, result.Status(), result.Summary())
	return result, runErr
}

// processRow only returns an error when ctx was canceled mid-row; the
// row's writes are rolled back and it counts as unprocessed.
func (im *Importer) processRow(ctx context.Context, row Row, opts Options) (Outcome, *GeneratedCredential, error) {
	rec, ferrs := im.validator.Validate(row)
	if len(ferrs) > 0 {
		return failed(row.Number, ferrs.Messages()...), nil, nil
	}

	var decision Decision
	var comp Composition
	err := im.store.WithinTx(ctx, func(tx Tx) error {
		d, person, err := Resolve(ctx, tx, rec, opts.UpdateExisting)
		if err != nil {
			return err
		}
		decision = d
		switch d {
		case DecisionSkip:
			return nil
		case DecisionUpdate:
			comp, err = im.composer.Update(ctx, tx, person, rec, opts)
		default:
			comp, err = im.composer.Create(ctx, tx, rec, opts)
		}
		return err
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Outcome{}, nil, ctxErr
		}
		return failed(row.Number, rowFailureMessage(row.Number, err)), nil, nil
	}

	outcome := Outcome{Row: row.Number, RUT: rec.RUTFormatted, DisplayName: rec.DisplayName(), Roles: rec.RoleCodes}
	switch decision {
	case DecisionSkip:
		outcome.Kind = OutcomeDuplicate
		outcome.Messages = []string{fmt.Sprintf("RUT %s ya existe", rec.RUTFormatted)}
		return outcome, nil, nil
	case DecisionUpdate:
		outcome.Kind = OutcomeUpdated
	default:
		outcome.Kind = OutcomeCreated
	}
	if !comp.CredentialCreated {
		return outcome, nil, nil
	}
	return outcome, &GeneratedCredential{
		Identifier:        comp.Person.RUTFormatted,
		DisplayName:       comp.Person.FullName(),
		Email:             comp.Person.Email,
		TemporaryPassword: comp.TemporaryPassword,
	}, nil
}

func failed(row int, messages ...string) Outcome {
	return Outcome{Row: row, Kind: OutcomeError, Messages: messages}
}

// rowFailureMessage turns a rolled back row into a user facing message.
// Store failures are logged and reported without internals.
func rowFailureMessage(row int, err error) string {
	var rowErr *RowError
	if errors.As(err, &rowErr) {
		return rowErr.Message
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch {
		case strings.Contains(pgErr.ConstraintName, "email"):
			return "El email ya está registrado para otra persona"
		case strings.Contains(pgErr.ConstraintName, "persona_roles"):
			return "La asignación de rol ya existe"
		default:
			return "El registro ya existe"
		}
	}
	log.Printf("carga masiva: fila %d: %v", row, err)
	return "Error interno al guardar la fila"
}

func (r *BatchResult) lastRow() int {
	if len(r.Outcomes) == 0 {
		return 1
	}
	return r.Outcomes[len(r.Outcomes)-1].Row
}

func (im *Importer) publish(result *BatchResult, row int, done bool) {
	if im.progress == nil {
		return
	}
	im.progress.Publish(Progress{
		BatchID:    result.ID,
		Row:        row,
		Processed:  result.RowsTotal,
		Created:    result.Created,
		Updated:    result.Updated,
		Duplicates: result.Duplicates,
		Errors:     result.ErrorCount,
		Done:       done,
	})
}
