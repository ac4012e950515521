package postgres

import (
	"context"
	"fmt"

	"github.com/jwalitptl/ed-intake/internal/model"
	"github.com/jwalitptl/ed-intake/pkg/errors"
)

type providerRepository struct {
	BaseRepository
}

func (r *providerRepository) Create(ctx context.Context, provider *model.InsuranceProvider) error {
	var err error
	if provider.ID == 0 {
		err = r.db.GetContext(ctx, &provider.ID,
			`INSERT INTO obras_sociales (nombre) VALUES ($1) RETURNING id`, provider.Name)
	} else {
		_, err = r.db.ExecContext(ctx,
			`INSERT INTO obras_sociales (id, nombre) VALUES ($1, $2)`, provider.ID, provider.Name)
		if err == nil {
			_, err = r.db.ExecContext(ctx,
				`SELECT setval(pg_get_serial_sequence('obras_sociales', 'id'), (SELECT MAX(id) FROM obras_sociales))`)
		}
	}
	if uniqueViolation(err) {
		return errors.Conflict("La obra social ya existe: " + provider.Name)
	}
	if err != nil {
		return fmt.Errorf("failed to create insurance provider: %w", err)
	}
	return nil
}

func (r *providerRepository) Get(ctx context.Context, id int) (*model.InsuranceProvider, error) {
	var p model.InsuranceProvider
	if err := r.db.GetContext(ctx, &p, `SELECT id, nombre FROM obras_sociales WHERE id = $1`, id); err != nil {
		return nil, notFound(err, "insurance provider")
	}
	return &p, nil
}

func (r *providerRepository) List(ctx context.Context) ([]model.InsuranceProvider, error) {
	providers := []model.InsuranceProvider{}
	if err := r.db.SelectContext(ctx, &providers, `SELECT id, nombre FROM obras_sociales ORDER BY nombre`); err != nil {
		return nil, fmt.Errorf("failed to list insurance providers: %w", err)
	}
	return providers, nil
}
