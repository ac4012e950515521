package admission

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/jwalitptl/ed-intake/internal/gateway"
	"github.com/jwalitptl/ed-intake/internal/model"
	"github.com/jwalitptl/ed-intake/pkg/errors"
	"github.com/jwalitptl/ed-intake/pkg/logger"
	"github.com/jwalitptl/ed-intake/pkg/validator"
)

var (
	ErrIdentityUnresolved = stderrors.New("resolve the patient identity code first")
	ErrIdentityResolved   = stderrors.New("patient identity already resolved, reset it to change patient")
	ErrFieldLocked        = stderrors.New("existing patient records cannot be edited from the admission form")
	ErrOperatorUnknown    = stderrors.New("operator identity code unavailable, sign in again")
)

type Remote interface {
	Do(ctx context.Context, req gateway.Request, out interface{}) (*gateway.Response, error)
}

type PatientLookup interface {
	Resolve(ctx context.Context, code string) (*model.Patient, bool, error)
}

type ProviderMatcher interface {
	Match(ctx context.Context, name string) (*model.InsuranceProvider, bool, error)
}

type OperatorSource interface {
	OperatorCode(ctx context.Context) (string, error)
}

// Workflow is one admission form. All transitions are serialized, so a
// submission in progress blocks edits until it returns.
type Workflow struct {
	remote    Remote
	patients  PatientLookup
	providers ProviderMatcher
	operator  OperatorSource
	validate  validator.Validator
	logger    *logger.Logger

	mu        sync.Mutex
	mode      Mode
	code      string
	existing  *model.Patient
	details   PatientDetails
	insurance InsuranceInput
	triage    TriageInput
}

func NewWorkflow(remote Remote, patients PatientLookup, providers ProviderMatcher, operator OperatorSource, log *logger.Logger) *Workflow {
	if log == nil {
		log = logger.Nop()
	}
	v := validator.New()
	if err := v.RegisterRule("triage", model.ValidTriage, model.TriageRuleMessage); err != nil {
		panic(err)
	}
	return &Workflow{
		remote:    remote,
		patients:  patients,
		providers: providers,
		operator:  operator,
		validate:  v,
		logger:    log,
	}
}

func (w *Workflow) Mode() Mode {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.mode
}

func (w *Workflow) Code() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.code
}

// Patient returns the existing patient in locked mode, or nil.
func (w *Workflow) Patient() *model.Patient {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.existing == nil {
		return nil
	}
	cp := *w.existing
	return &cp
}

// Resolve looks up code and switches the form to locked or open mode.
func (w *Workflow) Resolve(ctx context.Context, code string) (Mode, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.mode != ModeUnresolved {
		return w.mode, ErrIdentityResolved
	}

	p, found, err := w.patients.Resolve(ctx, code)
	if err != nil {
		return ModeUnresolved, err
	}

	w.code = strings.TrimSpace(code)
	if found {
		w.mode = ModeLocked
		w.existing = p
		w.logger.Debug("admission form locked to existing patient", "cuil", w.code)
	} else {
		w.mode = ModeOpen
		w.logger.Debug("admission form opened for new patient", "cuil", w.code)
	}
	return w.mode, nil
}

// ResetIdentity abandons the resolved patient and clears everything that
// depended on it.
func (w *Workflow) ResetIdentity() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.reset()
}

func (w *Workflow) reset() {
	w.mode = ModeUnresolved
	w.code = ""
	w.existing = nil
	w.details = PatientDetails{}
	w.insurance = InsuranceInput{}
	w.triage = TriageInput{}
}

func (w *Workflow) SetPatientDetails(d PatientDetails) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.editable(); err != nil {
		return err
	}
	w.details = d.normalized()
	return nil
}

func (w *Workflow) SetInsurance(in InsuranceInput) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.editable(); err != nil {
		return err
	}
	w.insurance = InsuranceInput{
		Provider:     strings.TrimSpace(in.Provider),
		MemberNumber: strings.TrimSpace(in.MemberNumber),
	}
	return nil
}

func (w *Workflow) SetTriage(t TriageInput) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.mode == ModeUnresolved {
		return ErrIdentityUnresolved
	}
	t.Complaint = strings.TrimSpace(t.Complaint)
	w.triage = t
	return nil
}

func (w *Workflow) editable() error {
	switch w.mode {
	case ModeUnresolved:
		return ErrIdentityUnresolved
	case ModeLocked:
		return ErrFieldLocked
	}
	return nil
}

// Validate reports every field problem of the current form at once.
func (w *Workflow) Validate(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := w.check(ctx)
	return err
}

// check validates the form and returns the matched insurance provider, if any.
func (w *Workflow) check(ctx context.Context) (*model.InsuranceProvider, error) {
	if w.mode == ModeUnresolved {
		return nil, ErrIdentityUnresolved
	}

	var fields []errors.FieldError
	collect := func(err error) error {
		if err == nil {
			return nil
		}
		appErr, ok := errors.As(err)
		if !ok || appErr.Kind != errors.KindValidation {
			return err
		}
		fields = append(fields, appErr.Fields...)
		return nil
	}

	var provider *model.InsuranceProvider
	if w.mode == ModeOpen {
		if err := collect(w.validate.Validate(w.details)); err != nil {
			return nil, err
		}

		if w.insurance.Provider != "" {
			p, ok, err := w.providers.Match(ctx, w.insurance.Provider)
			if err != nil {
				return nil, fmt.Errorf("load insurance providers: %w", err)
			}
			if !ok {
				fields = append(fields, errors.FieldError{Field: "provider", Message: "select a valid provider from the list or leave it blank"})
			} else {
				provider = p
			}
			if w.insurance.MemberNumber == "" {
				fields = append(fields, errors.FieldError{Field: "member_number", Message: "is required when a provider is selected"})
			}
		}
	}

	if err := collect(w.validate.Validate(w.triage)); err != nil {
		return nil, err
	}
	fields = append(fields, w.triage.Vitals.outOfRange()...)

	if len(fields) > 0 {
		return nil, errors.Validation(fields...)
	}
	return provider, nil
}

// Submit validates the form, stamps it with the operator's identity code and
// creates the admission. On success the form is reset; on failure it is
// left untouched so the operator can resubmit.
func (w *Workflow) Submit(ctx context.Context) (*model.Admission, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	provider, err := w.check(ctx)
	if err != nil {
		return nil, err
	}

	operator, err := w.operator.OperatorCode(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOperatorUnknown, err)
	}
	if operator == "" {
		return nil, ErrOperatorUnknown
	}

	req := w.request(operator, provider)

	var created model.Admission
	resp, err := w.remote.Do(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   "/urgencias",
		Body:   req,
	}, &created)
	if err != nil {
		return nil, err
	}
	if resp.Empty {
		return nil, errors.Remote(resp.Status, "admission was not returned by the remote service")
	}

	w.logger.Info("admission created",
		"admission_id", created.ID,
		"cuil", created.PatientCode,
		"priority", string(created.Priority),
	)
	w.reset()
	return &created, nil
}

func (w *Workflow) request(operator string, provider *model.InsuranceProvider) *model.AdmissionRequest {
	req := &model.AdmissionRequest{
		PatientCode: w.code,
		NurseCode:   operator,
		Complaint:   w.triage.Complaint,
		Priority:    w.triage.Priority,
		Vitals:      w.triage.Vitals.Vitals(),
	}

	if w.mode == ModeLocked {
		req.PatientGivenName = w.existing.GivenName
		req.PatientFamilyName = w.existing.FamilyName
		return req
	}

	req.PatientGivenName = w.details.GivenName
	req.PatientFamilyName = w.details.FamilyName
	req.PatientEmail = w.details.Email
	req.PatientAddress = &model.Address{
		Street:   w.details.Street,
		Number:   w.details.Number,
		Locality: w.details.Locality,
	}
	if provider != nil {
		req.PatientInsurance = &model.InsuranceAssociation{
			Provider:     *provider,
			MemberNumber: w.insurance.MemberNumber,
		}
	}
	return req
}
