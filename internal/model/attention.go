package model

// AttentionRequest closes an in-progress admission with a clinical report.
type AttentionRequest struct {
	AdmissionID string `json:"ingresoId" validate:"required"`
	Report      string `json:"informe" validate:"required"`
}

// AttentionRecord is the single terminal record of an admission.
type AttentionRecord struct {
	ID          string    `json:"id" db:"id"`
	AdmissionID string    `json:"ingresoId" db:"ingreso_id"`
	PhysicianID string    `json:"medicoId" db:"medico_id"`
	Report      string    `json:"informeMedico" db:"informe_medico"`
	CompletedAt Timestamp `json:"fechaAtencion" db:"fecha_atencion"`
}
