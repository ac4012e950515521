package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jwalitptl/ed-intake/internal/repository"
	"github.com/jwalitptl/ed-intake/pkg/errors"
)

// BaseRepository provides common functionality for all repositories
type BaseRepository struct {
	db *sqlx.DB
}

// NewBaseRepository creates a new base repository
func NewBaseRepository(db *sqlx.DB) BaseRepository {
	return BaseRepository{db: db}
}

// GetDB returns the database instance
func (r *BaseRepository) GetDB() *sqlx.DB {
	return r.db
}

// WithTx executes a function within a transaction
func (r *BaseRepository) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

// notFound turns sql.ErrNoRows into a NotFound error for resource.
func notFound(err error, resource string) error {
	if stderrors.Is(err, sql.ErrNoRows) {
		return errors.NotFound(resource, nil)
	}
	return err
}

// uniqueViolation reports whether err is a Postgres unique constraint failure.
func uniqueViolation(err error) bool {
	var pqErr *pq.Error
	return stderrors.As(err, &pqErr) && pqErr.Code == "23505"
}

// Store bundles the Postgres repositories over one connection pool.
type Store struct {
	BaseRepository
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{BaseRepository: NewBaseRepository(db)}
}

func (s *Store) Users() repository.UserRepository           { return &userRepository{s.BaseRepository} }
func (s *Store) Patients() repository.PatientRepository     { return &patientRepository{s.BaseRepository} }
func (s *Store) Providers() repository.ProviderRepository   { return &providerRepository{s.BaseRepository} }
func (s *Store) Admissions() repository.AdmissionRepository { return &admissionRepository{s.BaseRepository} }
func (s *Store) Close() error                               { return s.db.Close() }
