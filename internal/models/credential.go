package models

import (
	"crypto/rand"
	"database/sql/driver"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"
)

const (
	MaxFailedAttempts = 5
	LockoutDuration   = 30 * time.Minute
	MaxSessions       = 3
	RecoveryTokenTTL  = 24 * time.Hour
)

type Session struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"inicio"`
	IP        string    `json:"ip,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
}

// Sessions is stored as a JSON array.
type Sessions []Session

func (s Sessions) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func (s *Sessions) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*s = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("sesiones: unsupported type")
	}
	return json.Unmarshal(raw, s)
}

type Credential struct {
	RUT                 string     `db:"rut_persona"`
	PasswordHash        string     `db:"password_hash"`
	LastAccess          *time.Time `db:"ultimo_acceso"`
	FailedAttempts      int        `db:"intentos_fallidos"`
	LockedUntil         *time.Time `db:"bloqueado_hasta"`
	ForcePasswordChange bool       `db:"debe_cambiar_password"`
	RecoveryToken       *string    `db:"token_recuperacion"`
	RecoveryExpiresAt   *time.Time `db:"token_expiracion"`
	Sessions            Sessions   `db:"sesiones_activas"`
	Active              bool       `db:"activo"`
	TestData            bool       `db:"es_dato_prueba"`
	Audit
}

// NewCredential returns an unlocked credential that must change its
// password on first access.
func NewCredential(rut, passwordHash string) Credential {
	return Credential{
		RUT:                 rut,
		PasswordHash:        passwordHash,
		ForcePasswordChange: true,
		Sessions:            Sessions{},
		Active:              true,
	}
}

func (c Credential) IsLocked(now time.Time) bool {
	return c.LockedUntil != nil && now.Before(*c.LockedUntil)
}

// RegisterFailure counts a failed authentication and reports whether the
// credential is locked afterwards.
func (c *Credential) RegisterFailure(now time.Time) bool {
	if c.LockedUntil != nil && !now.Before(*c.LockedUntil) {
		c.Unlock()
	}
	c.FailedAttempts++
	if c.FailedAttempts >= MaxFailedAttempts {
		until := now.Add(LockoutDuration)
		c.LockedUntil = &until
		return true
	}
	return false
}

func (c *Credential) RegisterSuccess(now time.Time) {
	c.Unlock()
	c.LastAccess = &now
}

func (c *Credential) Unlock() {
	c.FailedAttempts = 0
	c.LockedUntil = nil
}

// AddSession appends session, evicting the oldest ones past MaxSessions.
func (c *Credential) AddSession(session Session) {
	c.Sessions = append(c.Sessions, session)
	if extra := len(c.Sessions) - MaxSessions; extra > 0 {
		c.Sessions = append(Sessions{}, c.Sessions[extra:]...)
	}
}

func (c *Credential) RemoveSession(id string) {
	kept := c.Sessions[:0]
	for _, s := range c.Sessions {
		if s.ID != id {
			kept = append(kept, s)
		}
	}
	c.Sessions = kept
}

func (c *Credential) IssueRecoveryToken(now time.Time) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	token := hex.EncodeToString(buf)
	expires := now.Add(RecoveryTokenTTL)
	c.RecoveryToken = &token
	c.RecoveryExpiresAt = &expires
	return token, nil
}

func (c Credential) RecoveryTokenValid(token string, now time.Time) bool {
	if c.RecoveryToken == nil || c.RecoveryExpiresAt == nil || token == "" {
		return false
	}
	return *c.RecoveryToken == token && now.Before(*c.RecoveryExpiresAt)
}

func (c *Credential) ClearRecoveryToken() {
	c.RecoveryToken = nil
	c.RecoveryExpiresAt = nil
}
