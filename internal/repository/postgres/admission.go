package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/ed-intake/internal/model"
	"github.com/jwalitptl/ed-intake/pkg/errors"
)

type admissionRepository struct {
	BaseRepository
}

const admissionColumns = `
	id, paciente_cuil, paciente_nombre, paciente_apellido, enfermero_cuil, enfermero_matricula,
	descripcion, fecha_hora_ingreso, nivel_emergencia, estado,
	temperatura, tension_sistolica, tension_diastolica, frecuencia_cardiaca, frecuencia_respiratoria
`

func (r *admissionRepository) Create(ctx context.Context, a *model.Admission) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	query := `
		INSERT INTO ingresos (
			id, paciente_cuil, paciente_nombre, paciente_apellido, enfermero_cuil, enfermero_matricula,
			descripcion, fecha_hora_ingreso, nivel_emergencia, rango, estado,
			temperatura, tension_sistolica, tension_diastolica, frecuencia_cardiaca, frecuencia_respiratoria
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err := r.db.ExecContext(ctx, query,
		a.ID,
		a.PatientCode,
		a.PatientGivenName,
		a.PatientFamilyName,
		a.NurseCode,
		a.NurseLicense,
		a.Complaint,
		a.AdmittedAt,
		string(a.Priority),
		a.Priority.Rank(),
		string(a.Status),
		a.Temperature,
		a.Systolic,
		a.Diastolic,
		a.HeartRate,
		a.RespiratoryRate,
	)
	if err != nil {
		return fmt.Errorf("failed to create admission: %w", err)
	}
	return nil
}

func (r *admissionRepository) Get(ctx context.Context, id string) (*model.Admission, error) {
	var a model.Admission
	if err := r.db.GetContext(ctx, &a, `SELECT `+admissionColumns+` FROM ingresos WHERE id = $1`, id); err != nil {
		return nil, notFound(err, "admission")
	}
	return &a, nil
}

func (r *admissionRepository) List(ctx context.Context) ([]model.Admission, error) {
	admissions := []model.Admission{}
	query := `SELECT ` + admissionColumns + ` FROM ingresos ORDER BY seq`
	if err := r.db.SelectContext(ctx, &admissions, query); err != nil {
		return nil, fmt.Errorf("failed to list admissions: %w", err)
	}
	return admissions, nil
}

func (r *admissionRepository) Pending(ctx context.Context) ([]model.Admission, error) {
	admissions := []model.Admission{}
	query := `SELECT ` + admissionColumns + ` FROM ingresos
		WHERE estado = $1 ORDER BY rango, fecha_hora_ingreso, seq`
	if err := r.db.SelectContext(ctx, &admissions, query, string(model.StatusPending)); err != nil {
		return nil, fmt.Errorf("failed to list pending admissions: %w", err)
	}
	return admissions, nil
}

// ClaimNext locks the head of the queue with SKIP LOCKED, so concurrent
// claimers each take a different row instead of waiting on the same one.
func (r *admissionRepository) ClaimNext(ctx context.Context) (*model.Admission, error) {
	query := `
		UPDATE ingresos SET estado = $1
		WHERE id = (
			SELECT id FROM ingresos
			WHERE estado = $2
			ORDER BY rango, fecha_hora_ingreso, seq
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + admissionColumns

	var a model.Admission
	err := r.db.GetContext(ctx, &a, query, string(model.StatusInProgress), string(model.StatusPending))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim admission: %w", err)
	}
	return &a, nil
}

func (r *admissionRepository) Finalize(ctx context.Context, rec *model.AttentionRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		var status string
		err := tx.GetContext(ctx, &status, `SELECT estado FROM ingresos WHERE id = $1 FOR UPDATE`, rec.AdmissionID)
		if err != nil {
			return notFound(err, "admission")
		}
		if !model.AdmissionStatus(status).CanTransition(model.StatusFinalized) {
			return errors.Conflict("El ingreso no está en proceso de atención")
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO atenciones (id, ingreso_id, medico_id, informe_medico, fecha_atencion)
			VALUES ($1, $2, $3, $4, $5)
		`, rec.ID, rec.AdmissionID, rec.PhysicianID, rec.Report, rec.CompletedAt); err != nil {
			if uniqueViolation(err) {
				return errors.Conflict("El ingreso ya fue atendido")
			}
			return fmt.Errorf("failed to create attention: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `UPDATE ingresos SET estado = $1 WHERE id = $2`,
			string(model.StatusFinalized), rec.AdmissionID); err != nil {
			return fmt.Errorf("failed to finalize admission: %w", err)
		}
		return nil
	})
}
