package admission

import (
	"math"
	"strings"

	"github.com/jwalitptl/ed-intake/internal/model"
	"github.com/jwalitptl/ed-intake/pkg/errors"
)

// maxVital bounds every entered vital. Anything larger is a typo.
const maxVital = 1000

// Mode is the edit mode of the patient section of the form.
type Mode int

const (
	// ModeUnresolved means no identity code has been resolved yet.
	ModeUnresolved Mode = iota
	// ModeLocked means the patient exists; only triage and vitals are editable.
	ModeLocked
	// ModeOpen means the patient is new; demographics, address and insurance
	// are editable.
	ModeOpen
)

func (m Mode) String() string {
	switch m {
	case ModeLocked:
		return "existing patient"
	case ModeOpen:
		return "new patient"
	default:
		return "unresolved"
	}
}

// PatientDetails are the demographics entered for a new patient.
type PatientDetails struct {
	GivenName  string `json:"given_name" validate:"required"`
	FamilyName string `json:"family_name" validate:"required"`
	Email      string `json:"email" validate:"omitempty,email"`
	Street     string `json:"street" validate:"required"`
	Number     int    `json:"number" validate:"required,gt=0"`
	Locality   string `json:"locality" validate:"required"`
}

func (d PatientDetails) normalized() PatientDetails {
	d.GivenName = strings.TrimSpace(d.GivenName)
	d.FamilyName = strings.TrimSpace(d.FamilyName)
	d.Email = strings.TrimSpace(d.Email)
	d.Street = strings.TrimSpace(d.Street)
	d.Locality = strings.TrimSpace(d.Locality)
	return d
}

// InsuranceInput names a provider from the reference list and the member
// number. An empty provider means no insurance.
type InsuranceInput struct {
	Provider     string `json:"provider"`
	MemberNumber string `json:"member_number"`
}

// VitalsInput holds vitals as entered. Nil means not entered yet.
type VitalsInput struct {
	Temperature     *float64 `json:"temperature" validate:"required"`
	Systolic        *float64 `json:"systolic" validate:"required"`
	Diastolic       *float64 `json:"diastolic" validate:"required"`
	HeartRate       *float64 `json:"heart_rate" validate:"required"`
	RespiratoryRate *float64 `json:"respiratory_rate" validate:"required"`
}

// Vitals converts entered values to non-negative magnitudes. Callers must
// have validated that every value is present.
func (v VitalsInput) Vitals() model.Vitals {
	return model.Vitals{
		Temperature:     magnitude(v.Temperature),
		Systolic:        rounded(v.Systolic),
		Diastolic:       rounded(v.Diastolic),
		HeartRate:       rounded(v.HeartRate),
		RespiratoryRate: rounded(v.RespiratoryRate),
	}
}

// outOfRange returns a field error for each entered vital that is NaN,
// infinite or beyond maxVital. Missing values are left to the required rule.
func (v VitalsInput) outOfRange() []errors.FieldError {
	var fields []errors.FieldError
	for _, f := range []struct {
		name  string
		value *float64
	}{
		{"temperature", v.Temperature},
		{"systolic", v.Systolic},
		{"diastolic", v.Diastolic},
		{"heart_rate", v.HeartRate},
		{"respiratory_rate", v.RespiratoryRate},
	} {
		if f.value == nil {
			continue
		}
		if x := *f.value; math.IsNaN(x) || math.IsInf(x, 0) || math.Abs(x) > maxVital {
			fields = append(fields, errors.FieldError{Field: f.name, Message: "must be a number no larger than 1000"})
		}
	}
	return fields
}

func magnitude(v *float64) float64 {
	if v == nil {
		return 0
	}
	return math.Abs(*v)
}

func rounded(v *float64) int {
	return int(math.Round(magnitude(v)))
}

// TriageInput is the clinical part of the form, editable in every mode.
type TriageInput struct {
	Complaint string               `json:"complaint" validate:"required"`
	Priority  model.TriagePriority `json:"priority" validate:"required,triage"`
	Vitals    VitalsInput          `json:"vitals"`
}

// Float is a helper for building VitalsInput literals.
func Float(v float64) *float64 {
	return &v
}
