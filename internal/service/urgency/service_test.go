package urgency

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/ed-intake/internal/model"
	"github.com/jwalitptl/ed-intake/internal/repository/memory"
	"github.com/jwalitptl/ed-intake/pkg/auth"
	"github.com/jwalitptl/ed-intake/pkg/errors"
	"github.com/jwalitptl/ed-intake/pkg/messaging"
	"github.com/jwalitptl/ed-intake/pkg/security"
)

const password = "guardia123"

type fixture struct {
	svc       *Service
	nurse     *Operator
	physician *Operator
	clock     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	svc := NewService(memory.NewStore(), security.NewBcryptHasher(bcrypt.MinCost), auth.NewJWTService("test", time.Hour), nil)
	f := &fixture{svc: svc, clock: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)}
	svc.now = func() time.Time {
		f.clock = f.clock.Add(time.Minute)
		return f.clock
	}
	require.NoError(t, svc.Seed(ctx, DefaultSeed(password)))

	f.nurse = f.login(t, "enfermera@guardia.local")
	f.physician = f.login(t, "medico@guardia.local")
	return f
}

func (f *fixture) login(t *testing.T, email string) *Operator {
	t.Helper()
	resp, err := f.svc.Login(context.Background(), model.LoginRequest{Email: email, Password: password})
	require.NoError(t, err)
	op, err := f.svc.Authenticate(resp.Token)
	require.NoError(t, err)
	return op
}

func request(code string, p model.TriagePriority) model.AdmissionRequest {
	return model.AdmissionRequest{
		PatientCode:       code,
		PatientGivenName:  "Juan",
		PatientFamilyName: "Perez",
		NurseCode:         "27-11111111-3",
		Complaint:         "dolor toracico",
		Priority:          p,
		Vitals:            model.Vitals{Temperature: 37.2, Systolic: 120, Diastolic: 80, HeartRate: 80, RespiratoryRate: 16},
	}
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.svc.Login(ctx, model.LoginRequest{Email: "medico@guardia.local", Password: password})
	require.NoError(t, err)
	assert.Equal(t, model.RolePhysician, resp.Role)
	assert.Equal(t, time.Hour.Milliseconds(), resp.ExpiresIn)

	for _, req := range []model.LoginRequest{
		{Email: "medico@guardia.local", Password: "wrong-password"},
		{Email: "nadie@guardia.local", Password: password},
	} {
		_, err := f.svc.Login(ctx, req)
		require.Error(t, err)
		assert.Equal(t, 401, errors.StatusOf(err))
		assert.Equal(t, msgInvalidCredentials, err.Error())
	}
}

func TestAuthenticateRejectsMissingAndBadTokens(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Authenticate("")
	assert.Equal(t, 401, errors.StatusOf(err))

	_, err = f.svc.Authenticate("garbage")
	assert.Equal(t, 401, errors.StatusOf(err))
}

func TestProfile(t *testing.T) {
	f := newFixture(t)

	p, err := f.svc.Profile(context.Background(), f.nurse)
	require.NoError(t, err)
	assert.Equal(t, "27-11111111-3", p.Code)
	assert.Equal(t, "ENF-1001", p.License)
}

func TestAdmitRequiresNurse(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Admit(context.Background(), f.physician, request("20-30000000-1", model.PriorityUrgent))
	require.Error(t, err)
	assert.True(t, errors.IsForbidden(err))
	assert.Equal(t, 403, errors.StatusOf(err))
}

func TestAdmitValidatesRequest(t *testing.T) {
	f := newFixture(t)

	req := request(" ", model.TriagePriority("ROJO"))
	req.Complaint = "  "
	_, err := f.svc.Admit(context.Background(), f.nurse, req)
	require.Error(t, err)

	appErr, ok := errors.As(err)
	require.True(t, ok)
	assert.True(t, appErr.HasField("pacienteCuil"))
	assert.True(t, appErr.HasField("descripcion"))
	assert.True(t, appErr.HasField("nivelEmergencia"))
}

func TestAdmitRejectsUnknownNurse(t *testing.T) {
	f := newFixture(t)

	req := request("20-30000000-1", model.PriorityUrgent)
	req.NurseCode = "20-22222222-5" // the physician
	_, err := f.svc.Admit(context.Background(), f.nurse, req)

	appErr, ok := errors.As(err)
	require.True(t, ok)
	assert.True(t, appErr.HasField("enfermeroCuil"))
}

func TestAdmitCreatesUnknownPatientInline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := request("20-30000000-1", model.PriorityUrgent)
	req.PatientGivenName = ""
	req.PatientAddress = &model.Address{Street: "Belgrano", Number: 0, Locality: "Rosario"}
	adm, err := f.svc.Admit(ctx, f.nurse, req)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, adm.Status)
	assert.Equal(t, "ENF-1001", adm.NurseLicense)

	p, err := f.svc.Patient(ctx, "20-30000000-1")
	require.NoError(t, err)
	assert.Equal(t, unknownName, p.GivenName)
	assert.Equal(t, "Perez", p.FamilyName)
	assert.Nil(t, p.Address, "incomplete address is not stored")

	// A second admission reuses the registered patient as is.
	again := request("20-30000000-1", model.PriorityMinorUrgent)
	again.PatientFamilyName = "Otro"
	adm2, err := f.svc.Admit(ctx, f.nurse, again)
	require.NoError(t, err)
	assert.Equal(t, "Perez", adm2.PatientFamilyName)
}

func TestAdmitWithInsurance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	providers, err := f.svc.Providers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, providers)

	req := request("20-30000000-2", model.PriorityUrgent)
	req.PatientInsurance = &model.InsuranceAssociation{Provider: providers[0], MemberNumber: " 123 "}
	_, err = f.svc.Admit(ctx, f.nurse, req)
	require.NoError(t, err)

	p, err := f.svc.Patient(ctx, "20-30000000-2")
	require.NoError(t, err)
	require.NotNil(t, p.Insurance)
	assert.Equal(t, providers[0].Name, p.Insurance.Provider.Name)
	assert.Equal(t, "123", p.Insurance.MemberNumber)

	bad := request("20-30000000-3", model.PriorityUrgent)
	bad.PatientInsurance = &model.InsuranceAssociation{Provider: model.InsuranceProvider{ID: 999}, MemberNumber: "1"}
	_, err = f.svc.Admit(ctx, f.nurse, bad)
	appErr, ok := errors.As(err)
	require.True(t, ok)
	assert.True(t, appErr.HasField("obraSocial"))
}

func TestClaimFollowsPriorityThenArrival(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, c := range []struct {
		code string
		p    model.TriagePriority
	}{
		{"20-1", model.PriorityNonUrgent},
		{"20-2", model.PriorityCritical},
		{"20-3", model.PriorityUrgent},
		{"20-4", model.PriorityCritical},
	} {
		_, err := f.svc.Admit(ctx, f.nurse, request(c.code, c.p))
		require.NoError(t, err)
	}

	_, err := f.svc.ClaimNext(ctx, f.nurse)
	assert.True(t, errors.IsForbidden(err))

	var order []string
	for {
		adm, err := f.svc.ClaimNext(ctx, f.physician)
		require.NoError(t, err)
		if adm == nil {
			break
		}
		assert.Equal(t, model.StatusInProgress, adm.Status)
		order = append(order, adm.PatientCode)
	}
	assert.Equal(t, []string{"20-2", "20-4", "20-3", "20-1"}, order)
}

func TestAttendFinalizesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Admit(ctx, f.nurse, request("20-1", model.PriorityUrgent))
	require.NoError(t, err)
	adm, err := f.svc.ClaimNext(ctx, f.physician)
	require.NoError(t, err)

	_, err = f.svc.Attend(ctx, f.physician, model.AttentionRequest{AdmissionID: adm.ID, Report: "   "})
	assert.True(t, errors.IsValidation(err))

	rec, err := f.svc.Attend(ctx, f.physician, model.AttentionRequest{AdmissionID: adm.ID, Report: " alta "})
	require.NoError(t, err)
	assert.Equal(t, "alta", rec.Report)
	assert.Equal(t, f.physician.ID, rec.PhysicianID)

	got, err := f.svc.Admission(ctx, adm.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFinalized, got.Status)

	_, err = f.svc.Attend(ctx, f.physician, model.AttentionRequest{AdmissionID: adm.ID, Report: "otra"})
	assert.True(t, errors.IsConflict(err))
}

func TestSeedIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Seed(ctx, DefaultSeed(password)))

	providers, err := f.svc.Providers(ctx)
	require.NoError(t, err)
	assert.Len(t, providers, len(DefaultSeed(password).Providers))
}

func TestCreateUserRejectsUnknownRole(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateUser(context.Background(), model.Profile{Email: "x@y.z", Role: "ADMIN"}, password)
	assert.True(t, errors.IsValidation(err))
}

func TestQueueEventsArePublished(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker := messaging.NewMemoryBroker()
	events, err := broker.Subscribe(ctx, QueueChannel)
	require.NoError(t, err)

	f := newFixture(t)
	WithBroker(broker)(f.svc)

	adm, err := f.svc.Admit(ctx, f.nurse, request("20-1", model.PriorityEmergency))
	require.NoError(t, err)
	_, err = f.svc.ClaimNext(ctx, f.physician)
	require.NoError(t, err)
	_, err = f.svc.Attend(ctx, f.physician, model.AttentionRequest{AdmissionID: adm.ID, Report: "alta"})
	require.NoError(t, err)

	var types []string
	for i := 0; i < 3; i++ {
		select {
		case raw := <-events:
			msg, err := messaging.Decode(raw)
			require.NoError(t, err)
			types = append(types, msg.Type)

			var ev QueueEvent
			require.NoError(t, json.Unmarshal(msg.Payload, &ev))
			assert.Equal(t, adm.ID, ev.AdmissionID)
		case <-time.After(time.Second):
			t.Fatalf("only %d events received", i)
		}
	}
	assert.Equal(t, []string{EventAdmissionQueued, EventAdmissionClaimed, EventAdmissionFinalized}, types)
}
