package repository

import (
	"context"

	"github.com/jwalitptl/ed-intake/internal/model"
)

// User is an operator account as stored by the reference service.
type User struct {
	model.Profile
	PasswordHash string `db:"password_hash"`
}

// All repository interfaces in one file
type (
	UserRepository interface {
		Create(ctx context.Context, user *User) error
		GetByID(ctx context.Context, id string) (*User, error)
		GetByEmail(ctx context.Context, email string) (*User, error)
		GetByCode(ctx context.Context, code string) (*User, error)
	}

	PatientRepository interface {
		Create(ctx context.Context, patient *model.Patient) error
		GetByCode(ctx context.Context, code string) (*model.Patient, error)
		List(ctx context.Context, req model.PageRequest) (model.Page[model.Patient], error)
	}

	ProviderRepository interface {
		Create(ctx context.Context, provider *model.InsuranceProvider) error
		Get(ctx context.Context, id int) (*model.InsuranceProvider, error)
		List(ctx context.Context) ([]model.InsuranceProvider, error)
	}

	AdmissionRepository interface {
		Create(ctx context.Context, admission *model.Admission) error
		Get(ctx context.Context, id string) (*model.Admission, error)
		// List returns every admission in arrival order.
		List(ctx context.Context) ([]model.Admission, error)
		// Pending returns the waiting admissions in dispatch order.
		Pending(ctx context.Context) ([]model.Admission, error)
		// ClaimNext moves the first pending admission to in progress and
		// returns it. Concurrent callers never receive the same admission.
		// It returns nil when nothing is pending.
		ClaimNext(ctx context.Context) (*model.Admission, error)
		// Finalize stores the attention record and closes its admission in
		// one step. Only an in-progress admission can be finalized.
		Finalize(ctx context.Context, record *model.AttentionRecord) error
	}

	Store interface {
		Users() UserRepository
		Patients() PatientRepository
		Providers() ProviderRepository
		Admissions() AdmissionRepository
		Close() error
	}
)

// DispatchBefore orders admissions for dispatch: more severe priority first,
// then earlier arrival.
func DispatchBefore(a, b model.Admission) bool {
	if a.Priority != b.Priority {
		return a.Priority.Before(b.Priority)
	}
	return a.AdmittedAt.Before(b.AdmittedAt.Time)
}

// PatientSortColumns maps the accepted sortBy values to stored columns.
var PatientSortColumns = map[string]string{
	"apellido": "apellido",
	"nombre":   "nombre",
	"cuil":     "cuil",
	"email":    "email",
}
