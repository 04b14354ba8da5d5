package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"cargamasiva-backend-go/internal/models"
	"cargamasiva-backend-go/internal/rut"

	"github.com/jmoiron/sqlx"
)

const credentialColumns = `rut_persona, password_hash, ultimo_acceso, intentos_fallidos, bloqueado_hasta,
  debe_cambiar_password, token_recuperacion, token_expiracion, sesiones_activas, activo, es_dato_prueba,
  creado_por, fecha_creacion, actualizado_por, fecha_actualizacion, eliminado_por, fecha_eliminacion`

var errBadCredentials = ErrUnauthorized("RUT o contraseña incorrectos")

// Authenticate checks a RUT and password against the stored credential and
// records the attempt: failures count towards the lockout and a success
// opens a session, evicting the oldest past the cap.
func Authenticate(ctx context.Context, db *sqlx.DB, hasher PasswordHasher, rawRUT, password string, session models.Session, now time.Time) (models.Credential, error) {
	id, err := rut.Parse(rawRUT)
	if err != nil {
		return models.Credential{}, errBadCredentials
	}
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Credential{}, err
	}
	defer tx.Rollback()

	var cred models.Credential
	err = tx.GetContext(ctx, &cred, `SELECT `+credentialColumns+` FROM usuarios_auth WHERE rut_persona = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Credential{}, errBadCredentials
	}
	if err != nil {
		return models.Credential{}, WrapError(err, "leer credencial")
	}

	loginErr := applyLogin(&cred, hasher, password, session, now)
	if saveErr := saveLoginState(ctx, tx, &cred, now); saveErr != nil {
		return models.Credential{}, saveErr
	}
	if err := tx.Commit(); err != nil {
		return models.Credential{}, err
	}
	if loginErr != nil {
		log.Printf("login rechazado rut=%s intentos=%d", id, cred.FailedAttempts)
		return models.Credential{}, loginErr
	}
	return cred, nil
}

// applyLogin runs the credential state machine for one attempt.
func applyLogin(cred *models.Credential, hasher PasswordHasher, password string, session models.Session, now time.Time) error {
	if !cred.Active || cred.DeletedAt != nil {
		return ErrForbidden("La cuenta está desactivada")
	}
	if cred.IsLocked(now) {
		return ErrForbidden(fmt.Sprintf("Cuenta bloqueada hasta %s", cred.LockedUntil.Format("15:04")))
	}
	if !hasher.Verify(password, cred.PasswordHash) {
		if cred.RegisterFailure(now) {
			return ErrForbidden(fmt.Sprintf("Cuenta bloqueada por %d intentos fallidos", models.MaxFailedAttempts))
		}
		return errBadCredentials
	}
	cred.RegisterSuccess(now)
	session.StartedAt = now
	cred.AddSession(session)
	return nil
}

func saveLoginState(ctx context.Context, tx *sqlx.Tx, cred *models.Credential, now time.Time) error {
	cred.UpdatedAt = &now
	_, err := tx.NamedExecContext(ctx, `
UPDATE usuarios_auth SET
  ultimo_acceso = :ultimo_acceso,
  intentos_fallidos = :intentos_fallidos,
  bloqueado_hasta = :bloqueado_hasta,
  sesiones_activas = :sesiones_activas,
  fecha_actualizacion = :fecha_actualizacion
WHERE rut_persona = :rut_persona`, cred)
	return WrapError(err, "guardar credencial")
}

// EndSession removes sessionID from the credential of rutID.
func EndSession(ctx context.Context, db *sqlx.DB, rutID, sessionID string) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	var cred models.Credential
	err = tx.GetContext(ctx, &cred, `SELECT `+credentialColumns+` FROM usuarios_auth WHERE rut_persona = $1 FOR UPDATE`, rutID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound("Credencial no encontrada")
	}
	if err != nil {
		return err
	}
	cred.RemoveSession(sessionID)
	if err := saveLoginState(ctx, tx, &cred, time.Now().UTC()); err != nil {
		return err
	}
	return tx.Commit()
}
