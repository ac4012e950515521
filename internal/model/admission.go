package model

// Vitals are recorded once at intake and never edited.
type Vitals struct {
	Temperature     float64 `json:"temperatura" db:"temperatura" validate:"gte=0"`
	Systolic        int     `json:"tensionSistolica" db:"tension_sistolica" validate:"gte=0"`
	Diastolic       int     `json:"tensionDiastolica" db:"tension_diastolica" validate:"gte=0"`
	HeartRate       int     `json:"frecuenciaCardiaca" db:"frecuencia_cardiaca" validate:"gte=0"`
	RespiratoryRate int     `json:"frecuenciaRespiratoria" db:"frecuencia_respiratoria" validate:"gte=0"`
}

// Admission is one emergency visit.
type Admission struct {
	ID                string          `json:"id" db:"id"`
	PatientCode       string          `json:"pacienteCuil" db:"paciente_cuil"`
	PatientGivenName  string          `json:"pacienteNombre" db:"paciente_nombre"`
	PatientFamilyName string          `json:"pacienteApellido" db:"paciente_apellido"`
	NurseCode         string          `json:"enfermeroCuil" db:"enfermero_cuil"`
	NurseLicense      string          `json:"enfermeroMatricula" db:"enfermero_matricula"`
	Complaint         string          `json:"descripcion" db:"descripcion"`
	AdmittedAt        Timestamp       `json:"fechaHoraIngreso" db:"fecha_hora_ingreso"`
	Priority          TriagePriority  `json:"nivelEmergencia" db:"nivel_emergencia"`
	Status            AdmissionStatus `json:"estado" db:"estado"`
	Vitals
}

func (a *Admission) PatientName() string {
	p := Patient{GivenName: a.PatientGivenName, FamilyName: a.PatientFamilyName}
	return p.FullName()
}

// AdmissionRequest is the payload that creates an admission. Patient fields
// beyond the code are used to create the patient inline when the registry has
// no record for it.
type AdmissionRequest struct {
	PatientCode       string                `json:"pacienteCuil" validate:"required"`
	PatientGivenName  string                `json:"pacienteNombre,omitempty"`
	PatientFamilyName string                `json:"pacienteApellido,omitempty"`
	PatientEmail      string                `json:"pacienteEmail,omitempty" validate:"omitempty,email"`
	PatientAddress    *Address              `json:"pacienteDomicilio,omitempty"`
	PatientInsurance  *InsuranceAssociation `json:"pacienteObraSocial,omitempty"`
	NurseCode         string                `json:"enfermeroCuil" validate:"required"`
	Complaint         string                `json:"descripcion" validate:"required"`
	Priority          TriagePriority        `json:"nivelEmergencia" validate:"required,triage"`
	Vitals
}
