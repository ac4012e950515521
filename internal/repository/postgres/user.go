package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/ed-intake/internal/repository"
	"github.com/jwalitptl/ed-intake/pkg/errors"
)

type userRepository struct {
	BaseRepository
}

const userColumns = `id, email, password_hash, nombre, apellido, COALESCE(cuil, '') AS cuil, matricula, autoridad`

func (r *userRepository) Create(ctx context.Context, user *repository.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	query := `
		INSERT INTO usuarios (id, email, password_hash, nombre, apellido, cuil, matricula, autoridad)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.GivenName,
		user.FamilyName,
		user.Code,
		user.License,
		user.Role,
	)
	if uniqueViolation(err) {
		return errors.Conflict("El email ya está registrado")
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*repository.User, error) {
	return r.get(ctx, `SELECT `+userColumns+` FROM usuarios WHERE id = $1`, id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*repository.User, error) {
	return r.get(ctx, `SELECT `+userColumns+` FROM usuarios WHERE lower(email) = lower($1)`, email)
}

func (r *userRepository) GetByCode(ctx context.Context, code string) (*repository.User, error) {
	return r.get(ctx, `SELECT `+userColumns+` FROM usuarios WHERE cuil = $1`, code)
}

func (r *userRepository) get(ctx context.Context, query string, arg interface{}) (*repository.User, error) {
	var user repository.User
	if err := r.db.GetContext(ctx, &user, query, arg); err != nil {
		return nil, notFound(err, "user")
	}
	return &user, nil
}
