package model

type Role string

const (
	RoleNurse     Role = "ENFERMERO"
	RolePhysician Role = "MEDICO"
)

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	Token     string `json:"token"`
	Email     string `json:"email"`
	Role      Role   `json:"autoridad"`
	ExpiresIn int64  `json:"expiresIn"`
}

// Profile is the authenticated operator. Code is the national identity code
// stamped on admissions the operator creates.
type Profile struct {
	ID         string `json:"id" db:"id"`
	Email      string `json:"email" db:"email"`
	GivenName  string `json:"nombre" db:"nombre"`
	FamilyName string `json:"apellido" db:"apellido"`
	Code       string `json:"cuil" db:"cuil"`
	License    string `json:"matricula" db:"matricula"`
	Role       Role   `json:"autoridad" db:"autoridad"`
}
