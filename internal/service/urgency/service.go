package urgency

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/jwalitptl/ed-intake/internal/model"
	"github.com/jwalitptl/ed-intake/internal/repository"
	"github.com/jwalitptl/ed-intake/pkg/auth"
	"github.com/jwalitptl/ed-intake/pkg/errors"
	"github.com/jwalitptl/ed-intake/pkg/logger"
	"github.com/jwalitptl/ed-intake/pkg/messaging"
	"github.com/jwalitptl/ed-intake/pkg/security"
	"github.com/jwalitptl/ed-intake/pkg/validator"
)

const (
	msgInvalidCredentials = "Usuario o contraseña inválidos"
	msgNotAuthenticated   = "No autenticado. Token JWT requerido."
	msgForbidden          = "No tiene permisos para esta operación"
	unknownName           = "Desconocido"
)

// Operator is the authenticated caller of a request.
type Operator struct {
	ID    string
	Email string
	Role  model.Role
}

// Service is the emergency department side of the intake contract: it owns
// the patient registry, the admissions and the attention queue.
type Service struct {
	store    repository.Store
	hasher   security.PasswordHasher
	tokens   auth.JWTService
	validate validator.Validator
	logger   *logger.Logger
	broker   messaging.Broker
	now      func() time.Time
}

func NewService(store repository.Store, hasher security.PasswordHasher, tokens auth.JWTService, log *logger.Logger, opts ...Option) *Service {
	if log == nil {
		log = logger.Nop()
	}
	v := validator.New()
	if err := v.RegisterRule("triage", model.ValidTriage, model.TriageRuleMessage); err != nil {
		panic(err)
	}
	s := &Service{
		store:    store,
		hasher:   hasher,
		tokens:   tokens,
		validate: v,
		logger:   log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login always answers the same message for unknown users and wrong
// passwords.
func (s *Service) Login(ctx context.Context, req model.LoginRequest) (*model.AuthResponse, error) {
	if err := s.validate.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.store.Users().GetByEmail(ctx, strings.TrimSpace(req.Email))
	if errors.IsNotFound(err) {
		return nil, errors.Unauthenticated(msgInvalidCredentials)
	}
	if err != nil {
		return nil, err
	}
	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		if !stderrors.Is(err, security.ErrMismatch) {
			s.logger.Error(err, "stored password hash is unusable", "user_id", user.ID)
		}
		return nil, errors.Unauthenticated(msgInvalidCredentials)
	}

	token, ttl, err := s.tokens.GenerateAccessToken(&user.Profile)
	if err != nil {
		return nil, err
	}
	s.logger.Info("operator signed in", "user_id", user.ID, "role", string(user.Role))
	return &model.AuthResponse{
		Token:     token,
		Email:     user.Email,
		Role:      user.Role,
		ExpiresIn: ttl.Milliseconds(),
	}, nil
}

// Authenticate resolves a bearer token to its operator.
func (s *Service) Authenticate(token string) (*Operator, error) {
	if token == "" {
		return nil, errors.Unauthenticated(msgNotAuthenticated)
	}
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		return nil, errors.Unauthenticated(msgNotAuthenticated)
	}
	return &Operator{ID: claims.Subject, Email: claims.Email, Role: claims.Role}, nil
}

func (s *Service) Profile(ctx context.Context, op *Operator) (*model.Profile, error) {
	user, err := s.store.Users().GetByID(ctx, op.ID)
	if errors.IsNotFound(err) {
		return nil, errors.Unauthenticated(msgNotAuthenticated)
	}
	if err != nil {
		return nil, err
	}
	return &user.Profile, nil
}

// CreateUser registers an operator account.
func (s *Service) CreateUser(ctx context.Context, profile model.Profile, password string) (*model.Profile, error) {
	if profile.Role != model.RoleNurse && profile.Role != model.RolePhysician {
		return nil, errors.Field("autoridad", "Debe especificar una autoridad (MEDICO o ENFERMERO)")
	}
	hash, err := s.hasher.Hash(password)
	if stderrors.Is(err, security.ErrPasswordTooShort) {
		return nil, errors.Field("password", fmt.Sprintf("must have at least %d characters", security.MinPasswordLen))
	}
	if err != nil {
		return nil, err
	}
	user := &repository.User{Profile: profile, PasswordHash: hash}
	if err := s.store.Users().Create(ctx, user); err != nil {
		return nil, err
	}
	return &user.Profile, nil
}

func (s *Service) Patient(ctx context.Context, code string) (*model.Patient, error) {
	return s.store.Patients().GetByCode(ctx, strings.TrimSpace(code))
}

func (s *Service) Patients(ctx context.Context, req model.PageRequest) (model.Page[model.Patient], error) {
	return s.store.Patients().List(ctx, req)
}

func (s *Service) Providers(ctx context.Context) ([]model.InsuranceProvider, error) {
	return s.store.Providers().List(ctx)
}

func (s *Service) CreateProvider(ctx context.Context, name string) (*model.InsuranceProvider, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.Field("nombre", "is required")
	}
	p := &model.InsuranceProvider{Name: name}
	if err := s.store.Providers().Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Admit registers an admission and queues it. An unknown patient is created
// from whatever identity data the request carries.
func (s *Service) Admit(ctx context.Context, op *Operator, req model.AdmissionRequest) (*model.Admission, error) {
	if err := requireRole(op, model.RoleNurse); err != nil {
		return nil, err
	}
	req.PatientCode = strings.TrimSpace(req.PatientCode)
	req.Complaint = strings.TrimSpace(req.Complaint)
	if err := s.validate.Validate(req); err != nil {
		return nil, err
	}

	nurse, err := s.store.Users().GetByCode(ctx, strings.TrimSpace(req.NurseCode))
	if errors.IsNotFound(err) || (err == nil && nurse.Role != model.RoleNurse) {
		return nil, errors.Field("enfermeroCuil", "Enfermero no encontrado con CUIL: "+req.NurseCode)
	}
	if err != nil {
		return nil, err
	}

	patient, err := s.ensurePatient(ctx, req)
	if err != nil {
		return nil, err
	}

	admission := &model.Admission{
		PatientCode:       patient.Code,
		PatientGivenName:  patient.GivenName,
		PatientFamilyName: patient.FamilyName,
		NurseCode:         nurse.Code,
		NurseLicense:      nurse.License,
		Complaint:         req.Complaint,
		AdmittedAt:        model.NewTimestamp(s.now()),
		Priority:          req.Priority,
		Status:            model.StatusPending,
		Vitals:            req.Vitals,
	}
	if err := s.store.Admissions().Create(ctx, admission); err != nil {
		return nil, err
	}
	s.logger.Info("admission queued",
		"admission_id", admission.ID,
		"cuil", admission.PatientCode,
		"priority", string(admission.Priority),
	)
	s.publish(ctx, EventAdmissionQueued, QueueEvent{AdmissionID: admission.ID, Status: admission.Status, Priority: admission.Priority})
	return admission, nil
}

func (s *Service) ensurePatient(ctx context.Context, req model.AdmissionRequest) (*model.Patient, error) {
	patients := s.store.Patients()
	existing, err := patients.GetByCode(ctx, req.PatientCode)
	if err == nil {
		return existing, nil
	}
	if !errors.IsNotFound(err) {
		return nil, err
	}

	p := &model.Patient{
		Code:       req.PatientCode,
		GivenName:  strings.TrimSpace(req.PatientGivenName),
		FamilyName: strings.TrimSpace(req.PatientFamilyName),
		Email:      strings.TrimSpace(req.PatientEmail),
	}
	if p.GivenName == "" {
		p.GivenName = unknownName
	}
	if p.FamilyName == "" {
		p.FamilyName = unknownName
	}
	if a := req.PatientAddress; a != nil && a.Street != "" && a.Number > 0 && a.Locality != "" {
		addr := *a
		p.Address = &addr
	}
	if ins := req.PatientInsurance; ins != nil && strings.TrimSpace(ins.MemberNumber) != "" {
		provider, err := s.store.Providers().Get(ctx, ins.Provider.ID)
		if errors.IsNotFound(err) {
			return nil, errors.Field("obraSocial", fmt.Sprintf("La obra social %d no existe", ins.Provider.ID))
		}
		if err != nil {
			return nil, err
		}
		p.Insurance = &model.InsuranceAssociation{Provider: *provider, MemberNumber: strings.TrimSpace(ins.MemberNumber)}
	}

	if err := patients.Create(ctx, p); err != nil {
		if errors.IsConflict(err) {
			return patients.GetByCode(ctx, req.PatientCode)
		}
		return nil, err
	}
	s.logger.Info("patient registered during admission", "cuil", p.Code)
	return p, nil
}

// Queue lists waiting admissions in dispatch order.
func (s *Service) Queue(ctx context.Context) ([]model.Admission, error) {
	return s.store.Admissions().Pending(ctx)
}

func (s *Service) History(ctx context.Context) ([]model.Admission, error) {
	return s.store.Admissions().List(ctx)
}

func (s *Service) Admission(ctx context.Context, id string) (*model.Admission, error) {
	return s.store.Admissions().Get(ctx, id)
}

// ClaimNext hands the most urgent waiting admission to the physician. It
// returns nil when the queue is empty.
func (s *Service) ClaimNext(ctx context.Context, op *Operator) (*model.Admission, error) {
	if err := requireRole(op, model.RolePhysician); err != nil {
		return nil, err
	}
	adm, err := s.store.Admissions().ClaimNext(ctx)
	if err != nil {
		return nil, err
	}
	if adm != nil {
		s.logger.Info("admission claimed", "admission_id", adm.ID, "physician_id", op.ID)
		s.publish(ctx, EventAdmissionClaimed, QueueEvent{AdmissionID: adm.ID, Status: adm.Status, Priority: adm.Priority})
	}
	return adm, nil
}

// Attend files the physician's report, which finalizes the admission.
func (s *Service) Attend(ctx context.Context, op *Operator, req model.AttentionRequest) (*model.AttentionRecord, error) {
	if err := requireRole(op, model.RolePhysician); err != nil {
		return nil, err
	}
	req.Report = strings.TrimSpace(req.Report)
	if err := s.validate.Validate(req); err != nil {
		return nil, err
	}

	rec := &model.AttentionRecord{
		AdmissionID: req.AdmissionID,
		PhysicianID: op.ID,
		Report:      req.Report,
		CompletedAt: model.NewTimestamp(s.now()),
	}
	if err := s.store.Admissions().Finalize(ctx, rec); err != nil {
		return nil, err
	}
	s.logger.Info("admission finalized", "admission_id", rec.AdmissionID, "physician_id", op.ID)
	s.publish(ctx, EventAdmissionFinalized, QueueEvent{AdmissionID: rec.AdmissionID, Status: model.StatusFinalized})
	return rec, nil
}

func requireRole(op *Operator, role model.Role) error {
	if op == nil {
		return errors.Unauthenticated(msgNotAuthenticated)
	}
	if op.Role != role {
		return errors.Forbidden(msgForbidden + ". Se requiere: " + string(role))
	}
	return nil
}
