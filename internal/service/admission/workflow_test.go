package admission

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/jwalitptl/ed-intake/internal/gateway"
	"github.com/jwalitptl/ed-intake/internal/model"
	"github.com/jwalitptl/ed-intake/pkg/errors"
)

type stubLookup struct {
	patients map[string]*model.Patient
	err      error
}

func (s *stubLookup) Resolve(_ context.Context, code string) (*model.Patient, bool, error) {
	if s.err != nil {
		return nil, false, s.err
	}
	p, ok := s.patients[code]
	return p, ok, nil
}

type stubProviders struct{}

func (stubProviders) Match(_ context.Context, name string) (*model.InsuranceProvider, bool, error) {
	if name == "OSDE" {
		return &model.InsuranceProvider{ID: 1, Name: "OSDE"}, true, nil
	}
	return nil, false, nil
}

type stubOperator struct {
	code string
	err  error
}

func (s stubOperator) OperatorCode(context.Context) (string, error) {
	return s.code, s.err
}

type WorkflowSuite struct {
	suite.Suite
	srv      *httptest.Server
	posts    int32
	lastBody model.AdmissionRequest
	status   int
	workflow *Workflow
	operator *stubOperator
}

func (s *WorkflowSuite) SetupTest() {
	s.posts = 0
	s.lastBody = model.AdmissionRequest{}
	s.status = http.StatusCreated
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&s.posts, 1)
		s.Equal("/urgencias", r.URL.Path)
		var body model.AdmissionRequest
		s.NoError(json.NewDecoder(r.Body).Decode(&body))
		s.lastBody = body
		if s.status != http.StatusCreated {
			w.WriteHeader(s.status)
			_, _ = w.Write([]byte(`{"mensaje":"El enfermero no existe"}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(model.Admission{
			ID:          "adm-1",
			PatientCode: s.lastBody.PatientCode,
			Priority:    s.lastBody.Priority,
			Status:      model.StatusPending,
		})
	}))

	lookup := &stubLookup{patients: map[string]*model.Patient{
		"27-22222222-4": {
			ID: "p-1", Code: "27-22222222-4", GivenName: "Maria", FamilyName: "Gomez",
			Insurance: &model.InsuranceAssociation{Provider: model.InsuranceProvider{ID: 1, Name: "OSDE"}, MemberNumber: "9"},
		},
	}}
	s.operator = &stubOperator{code: "27-11111111-3"}
	s.workflow = NewWorkflow(gateway.New(s.srv.URL, nil), lookup, stubProviders{}, s.operator, nil)
}

func (s *WorkflowSuite) TearDownTest() {
	s.srv.Close()
}

func completeTriage() TriageInput {
	return TriageInput{
		Complaint: "chest pain",
		Priority:  model.PriorityCritical,
		Vitals: VitalsInput{
			Temperature:     Float(37.2),
			Systolic:        Float(140),
			Diastolic:       Float(90),
			HeartRate:       Float(110),
			RespiratoryRate: Float(22),
		},
	}
}

func completeDetails() PatientDetails {
	return PatientDetails{GivenName: "Juan", FamilyName: "Perez", Street: "San Martin", Number: 123, Locality: "Tucuman"}
}

func (s *WorkflowSuite) TestUnknownCodeOpensFormAndNamesMissingFields() {
	ctx := context.Background()

	mode, err := s.workflow.Resolve(ctx, "20-12345678-9")
	s.Require().NoError(err)
	s.Equal(ModeOpen, mode)

	s.Require().NoError(s.workflow.SetTriage(completeTriage()))

	_, err = s.workflow.Submit(ctx)
	s.Require().Error(err)
	appErr, ok := errors.As(err)
	s.Require().True(ok)
	s.Equal(errors.KindValidation, appErr.Kind)
	s.Equal([]string{"given_name", "family_name", "street", "number", "locality"}, appErr.FieldNames())
	s.Equal(int32(0), atomic.LoadInt32(&s.posts))
}

func (s *WorkflowSuite) TestProviderWithoutMemberNumberRejectedBeforeNetwork() {
	ctx := context.Background()
	_, err := s.workflow.Resolve(ctx, "20-12345678-9")
	s.Require().NoError(err)
	s.Require().NoError(s.workflow.SetPatientDetails(completeDetails()))
	s.Require().NoError(s.workflow.SetInsurance(InsuranceInput{Provider: "OSDE"}))
	s.Require().NoError(s.workflow.SetTriage(completeTriage()))

	_, err = s.workflow.Submit(ctx)
	s.Require().Error(err)
	appErr, _ := errors.As(err)
	s.Equal([]string{"member_number"}, appErr.FieldNames())
	s.Equal(int32(0), atomic.LoadInt32(&s.posts))
}

func (s *WorkflowSuite) TestUnknownProviderRejected() {
	ctx := context.Background()
	_, err := s.workflow.Resolve(ctx, "20-12345678-9")
	s.Require().NoError(err)
	s.Require().NoError(s.workflow.SetPatientDetails(completeDetails()))
	s.Require().NoError(s.workflow.SetInsurance(InsuranceInput{Provider: "Galeno", MemberNumber: "1"}))
	s.Require().NoError(s.workflow.SetTriage(completeTriage()))

	err = s.workflow.Validate(ctx)
	appErr, _ := errors.As(err)
	s.Require().NotNil(appErr)
	s.Equal([]string{"provider"}, appErr.FieldNames())
}

func (s *WorkflowSuite) TestMissingVitalBlocksSubmission() {
	ctx := context.Background()
	_, err := s.workflow.Resolve(ctx, "27-22222222-4")
	s.Require().NoError(err)

	triage := completeTriage()
	triage.Vitals.HeartRate = nil
	triage.Priority = ""
	s.Require().NoError(s.workflow.SetTriage(triage))

	_, err = s.workflow.Submit(ctx)
	appErr, _ := errors.As(err)
	s.Require().NotNil(appErr)
	s.Equal([]string{"priority", "heart_rate"}, appErr.FieldNames())
}

func (s *WorkflowSuite) TestNonFiniteVitalsAreRejected() {
	ctx := context.Background()
	_, err := s.workflow.Resolve(ctx, "27-22222222-4")
	s.Require().NoError(err)

	triage := completeTriage()
	triage.Vitals.Temperature = Float(math.NaN())
	triage.Vitals.Systolic = Float(math.Inf(1))
	triage.Vitals.HeartRate = Float(-1e300)
	s.Require().NoError(s.workflow.SetTriage(triage))

	_, err = s.workflow.Submit(ctx)
	appErr, _ := errors.As(err)
	s.Require().NotNil(appErr)
	s.Equal([]string{"temperature", "systolic", "heart_rate"}, appErr.FieldNames())
}

func (s *WorkflowSuite) TestLockedModeRejectsDemographicEdits() {
	ctx := context.Background()
	mode, err := s.workflow.Resolve(ctx, "27-22222222-4")
	s.Require().NoError(err)
	s.Equal(ModeLocked, mode)

	s.ErrorIs(s.workflow.SetPatientDetails(completeDetails()), ErrFieldLocked)
	s.ErrorIs(s.workflow.SetInsurance(InsuranceInput{Provider: "OSDE", MemberNumber: "1"}), ErrFieldLocked)

	_, err = s.workflow.Resolve(ctx, "20-12345678-9")
	s.ErrorIs(err, ErrIdentityResolved)
}

func (s *WorkflowSuite) TestResetIdentityClearsDependentFields() {
	ctx := context.Background()
	_, err := s.workflow.Resolve(ctx, "20-12345678-9")
	s.Require().NoError(err)
	s.Require().NoError(s.workflow.SetPatientDetails(completeDetails()))
	s.Require().NoError(s.workflow.SetInsurance(InsuranceInput{Provider: "OSDE", MemberNumber: "1"}))
	s.Require().NoError(s.workflow.SetTriage(completeTriage()))

	s.workflow.ResetIdentity()

	s.Equal(ModeUnresolved, s.workflow.Mode())
	s.Empty(s.workflow.Code())
	s.ErrorIs(s.workflow.SetTriage(completeTriage()), ErrIdentityUnresolved)

	mode, err := s.workflow.Resolve(ctx, "27-22222222-4")
	s.Require().NoError(err)
	s.Equal(ModeLocked, mode)
	s.Equal("Maria", s.workflow.Patient().GivenName)

	err = s.workflow.Validate(ctx)
	appErr, _ := errors.As(err)
	s.Require().NotNil(appErr)
	s.Contains(appErr.FieldNames(), "temperature")
}

func (s *WorkflowSuite) TestSubmitNewPatientClampsVitalsAndResets() {
	ctx := context.Background()
	_, err := s.workflow.Resolve(ctx, "20-12345678-9")
	s.Require().NoError(err)
	s.Require().NoError(s.workflow.SetPatientDetails(completeDetails()))
	s.Require().NoError(s.workflow.SetInsurance(InsuranceInput{Provider: "OSDE", MemberNumber: "A-1"}))
	triage := completeTriage()
	triage.Vitals.Temperature = Float(-37.5)
	triage.Vitals.HeartRate = Float(-80.4)
	s.Require().NoError(s.workflow.SetTriage(triage))

	created, err := s.workflow.Submit(ctx)
	s.Require().NoError(err)
	s.Equal(model.StatusPending, created.Status)

	s.Equal("20-12345678-9", s.lastBody.PatientCode)
	s.Equal("27-11111111-3", s.lastBody.NurseCode)
	s.Equal(37.5, s.lastBody.Temperature)
	s.Equal(80, s.lastBody.HeartRate)
	s.Require().NotNil(s.lastBody.PatientInsurance)
	s.Equal(1, s.lastBody.PatientInsurance.Provider.ID)
	s.Equal("A-1", s.lastBody.PatientInsurance.MemberNumber)
	s.Equal("Tucuman", s.lastBody.PatientAddress.Locality)

	s.Equal(ModeUnresolved, s.workflow.Mode())
}

func (s *WorkflowSuite) TestSubmitExistingPatientSendsIdentityOnly() {
	ctx := context.Background()
	_, err := s.workflow.Resolve(ctx, "27-22222222-4")
	s.Require().NoError(err)
	s.Require().NoError(s.workflow.SetTriage(completeTriage()))

	_, err = s.workflow.Submit(ctx)
	s.Require().NoError(err)
	s.Equal("Maria", s.lastBody.PatientGivenName)
	s.Nil(s.lastBody.PatientAddress)
	s.Nil(s.lastBody.PatientInsurance)
}

func (s *WorkflowSuite) TestMissingOperatorCodeAsksForReauthentication() {
	ctx := context.Background()
	_, err := s.workflow.Resolve(ctx, "27-22222222-4")
	s.Require().NoError(err)
	s.Require().NoError(s.workflow.SetTriage(completeTriage()))

	s.operator.code = ""
	_, err = s.workflow.Submit(ctx)
	s.ErrorIs(err, ErrOperatorUnknown)

	s.operator.err = errors.AuthExpired(nil)
	_, err = s.workflow.Submit(ctx)
	s.ErrorIs(err, ErrOperatorUnknown)
	s.True(errors.IsAuthExpired(err))
	s.Equal(int32(0), atomic.LoadInt32(&s.posts))
}

func (s *WorkflowSuite) TestRemoteFailureKeepsFormForResubmit() {
	ctx := context.Background()
	_, err := s.workflow.Resolve(ctx, "27-22222222-4")
	s.Require().NoError(err)
	s.Require().NoError(s.workflow.SetTriage(completeTriage()))

	s.status = http.StatusBadRequest
	_, err = s.workflow.Submit(ctx)
	s.Require().Error(err)
	s.Equal("El enfermero no existe", err.Error())
	s.Equal(ModeLocked, s.workflow.Mode())

	s.status = http.StatusCreated
	created, err := s.workflow.Submit(ctx)
	s.Require().NoError(err)
	s.Equal("adm-1", created.ID)
	s.Equal(int32(2), atomic.LoadInt32(&s.posts))
}

func TestWorkflowSuite(t *testing.T) {
	suite.Run(t, new(WorkflowSuite))
}

func TestResolveFailureLeavesFormUnresolved(t *testing.T) {
	w := NewWorkflow(nil, &stubLookup{err: stderrors.New("connection refused")}, stubProviders{}, stubOperator{}, nil)

	mode, err := w.Resolve(context.Background(), "20123456789")
	require.Error(t, err)
	assert.Equal(t, ModeUnresolved, mode)
	assert.Equal(t, ModeUnresolved, w.Mode())
}
