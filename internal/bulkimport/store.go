package bulkimport

import (
	"context"

	"cargamasiva-backend-go/internal/models"
)

// Store runs fn inside one transaction. A non-nil error from fn rolls the
// transaction back and is returned unchanged.
type Store interface {
	WithinTx(ctx context.Context, fn func(Tx) error) error
}

// Tx is the set of reads and writes one row needs. Lookups that find
// nothing return a nil pointer or false, never an error.
type Tx interface {
	PersonByRUT(ctx context.Context, rut string) (*models.Person, error)
	EmailOwner(ctx context.Context, email string) (string, bool, error)
	InsertPerson(ctx context.Context, p *models.Person) error
	UpdatePerson(ctx context.Context, p *models.Person) error
	CredentialExists(ctx context.Context, rut string) (bool, error)
	InsertCredential(ctx context.Context, c *models.Credential) error
	CourseExists(ctx context.Context, courseID int64) (bool, error)
	LockCourse(ctx context.Context, courseID int64) error
	ActiveAssignments(ctx context.Context, rut string) ([]models.AssignmentView, error)
	CourseRoleHolder(ctx context.Context, roleID, courseID int64) (string, bool, error)
	InsertAssignment(ctx context.Context, a *models.RoleAssignment) error
}

type RoleLookup interface {
	RoleByCode(ctx context.Context, code string) (models.Role, bool, error)
}

type PasswordHasher interface {
	Hash(raw string) (string, error)
}

type ProgressSink interface {
	Publish(Progress)
}

type Progress struct {
	BatchID    string `json:"batch_id"`
	Row        int    `json:"row"`
	Processed  int    `json:"processed"`
	Created    int    `json:"created"`
	Updated    int    `json:"updated"`
	Duplicates int    `json:"duplicates"`
	Errors     int    `json:"errors"`
	Done       bool   `json:"done"`
}
