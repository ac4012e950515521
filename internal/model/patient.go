package model

// Patient as held by the remote registry. Code is immutable once created.
type Patient struct {
	ID         string                `json:"id" db:"id"`
	Code       string                `json:"cuil" db:"cuil"`
	GivenName  string                `json:"nombre" db:"nombre"`
	FamilyName string                `json:"apellido" db:"apellido"`
	Email      string                `json:"email,omitempty" db:"email"`
	Address    *Address              `json:"domicilio,omitempty"`
	Insurance  *InsuranceAssociation `json:"obraSocial,omitempty"`
}

func (p *Patient) FullName() string {
	switch {
	case p.GivenName == "":
		return p.FamilyName
	case p.FamilyName == "":
		return p.GivenName
	}
	return p.GivenName + " " + p.FamilyName
}

type Address struct {
	Street   string `json:"calle" db:"calle"`
	Number   int    `json:"numero" db:"numero"`
	Locality string `json:"localidad" db:"localidad"`
}

type InsuranceProvider struct {
	ID   int    `json:"id" db:"id"`
	Name string `json:"nombre" db:"nombre"`
}

// InsuranceAssociation links a patient to a provider. A patient has at most one.
type InsuranceAssociation struct {
	Provider     InsuranceProvider `json:"obraSocial"`
	MemberNumber string            `json:"numeroAfiliado"`
}
