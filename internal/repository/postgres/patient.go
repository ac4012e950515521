package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/ed-intake/internal/model"
	"github.com/jwalitptl/ed-intake/internal/repository"
	"github.com/jwalitptl/ed-intake/pkg/errors"
)

type patientRepository struct {
	BaseRepository
}

// patientRow is the flattened pacientes row joined with its provider.
type patientRow struct {
	ID             string         `db:"id"`
	Code           string         `db:"cuil"`
	GivenName      string         `db:"nombre"`
	FamilyName     string         `db:"apellido"`
	Email          string         `db:"email"`
	Street         sql.NullString `db:"calle"`
	Number         sql.NullInt64  `db:"numero"`
	Locality       sql.NullString `db:"localidad"`
	ProviderID     sql.NullInt64  `db:"obra_social_id"`
	ProviderName   sql.NullString `db:"obra_social_nombre"`
	MemberNumber   sql.NullString `db:"numero_afiliado"`
	TotalElements  int            `db:"total"`
}

func (row patientRow) patient() model.Patient {
	p := model.Patient{
		ID:         row.ID,
		Code:       row.Code,
		GivenName:  row.GivenName,
		FamilyName: row.FamilyName,
		Email:      row.Email,
	}
	if row.Street.Valid || row.Locality.Valid {
		p.Address = &model.Address{
			Street:   row.Street.String,
			Number:   int(row.Number.Int64),
			Locality: row.Locality.String,
		}
	}
	if row.ProviderID.Valid {
		p.Insurance = &model.InsuranceAssociation{
			Provider:     model.InsuranceProvider{ID: int(row.ProviderID.Int64), Name: row.ProviderName.String},
			MemberNumber: row.MemberNumber.String,
		}
	}
	return p
}

const patientSelect = `
	SELECT p.id, p.cuil, p.nombre, p.apellido, p.email, p.calle, p.numero, p.localidad,
	       p.obra_social_id, o.nombre AS obra_social_nombre, p.numero_afiliado,
	       COUNT(*) OVER () AS total
	FROM pacientes p
	LEFT JOIN obras_sociales o ON o.id = p.obra_social_id
`

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) error {
	if patient.ID == "" {
		patient.ID = uuid.New().String()
	}

	var street, locality, member sql.NullString
	var number, provider sql.NullInt64
	if a := patient.Address; a != nil {
		street = sql.NullString{String: a.Street, Valid: true}
		number = sql.NullInt64{Int64: int64(a.Number), Valid: true}
		locality = sql.NullString{String: a.Locality, Valid: true}
	}
	if ins := patient.Insurance; ins != nil {
		provider = sql.NullInt64{Int64: int64(ins.Provider.ID), Valid: true}
		member = sql.NullString{String: ins.MemberNumber, Valid: true}
	}

	query := `
		INSERT INTO pacientes (id, cuil, nombre, apellido, email, calle, numero, localidad, obra_social_id, numero_afiliado)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		patient.ID,
		patient.Code,
		patient.GivenName,
		patient.FamilyName,
		patient.Email,
		street,
		number,
		locality,
		provider,
		member,
	)
	if uniqueViolation(err) {
		return errors.Conflict("Ya existe un paciente con CUIL " + patient.Code)
	}
	if err != nil {
		return fmt.Errorf("failed to create patient: %w", err)
	}
	return nil
}

func (r *patientRepository) GetByCode(ctx context.Context, code string) (*model.Patient, error) {
	var row patientRow
	if err := r.db.GetContext(ctx, &row, patientSelect+` WHERE p.cuil = $1`, code); err != nil {
		return nil, notFound(err, "patient")
	}
	p := row.patient()
	return &p, nil
}

func (r *patientRepository) List(ctx context.Context, req model.PageRequest) (model.Page[model.Patient], error) {
	req = req.Normalize()
	column, ok := repository.PatientSortColumns[req.SortBy]
	if !ok {
		column = "apellido"
	}
	direction := "ASC"
	if req.Direction == "desc" {
		direction = "DESC"
	}

	// column and direction come from fixed whitelists.
	query := patientSelect + fmt.Sprintf(` ORDER BY p.%s %s, p.cuil LIMIT $1 OFFSET $2`, column, direction)

	var rows []patientRow
	if err := r.db.SelectContext(ctx, &rows, query, req.Size, req.Page*req.Size); err != nil {
		return model.Page[model.Patient]{}, fmt.Errorf("failed to list patients: %w", err)
	}

	total := 0
	if len(rows) > 0 {
		total = rows[0].TotalElements
	} else if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM pacientes`); err != nil {
		return model.Page[model.Patient]{}, fmt.Errorf("failed to count patients: %w", err)
	}

	content := make([]model.Patient, 0, len(rows))
	for _, row := range rows {
		content = append(content, row.patient())
	}
	return model.Page[model.Patient]{
		Content:       content,
		TotalElements: total,
		TotalPages:    (total + req.Size - 1) / req.Size,
		Number:        req.Page,
		Size:          req.Size,
	}, nil
}
