package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/ed-intake/internal/model"
	"github.com/jwalitptl/ed-intake/internal/repository"
	"github.com/jwalitptl/ed-intake/pkg/errors"
)

var base = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

func admit(t *testing.T, s *Store, code string, p model.TriagePriority, offset time.Duration) *model.Admission {
	t.Helper()
	adm := &model.Admission{
		PatientCode: code,
		Priority:    p,
		Status:      model.StatusPending,
		AdmittedAt:  model.NewTimestamp(base.Add(offset)),
	}
	require.NoError(t, s.Admissions().Create(context.Background(), adm))
	return adm
}

func codes(list []model.Admission) []string {
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, a.PatientCode)
	}
	return out
}

func TestPendingOrdersByPriorityThenArrival(t *testing.T) {
	s := NewStore()
	admit(t, s, "minor-early", model.PriorityMinorUrgent, 0)
	admit(t, s, "critical-late", model.PriorityCritical, 30*time.Minute)
	admit(t, s, "minor-late", model.PriorityMinorUrgent, 10*time.Minute)
	admit(t, s, "critical-early", model.PriorityCritical, 5*time.Minute)
	admit(t, s, "none", model.PriorityNonUrgent, -time.Hour)

	pending, err := s.Admissions().Pending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"critical-early", "critical-late", "minor-early", "minor-late", "none"}, codes(pending))

	all, err := s.Admissions().List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"minor-early", "critical-late", "minor-late", "critical-early", "none"}, codes(all))
}

func TestSameInstantFallsBackToInsertionOrder(t *testing.T) {
	s := NewStore()
	admit(t, s, "first", model.PriorityUrgent, 0)
	admit(t, s, "second", model.PriorityUrgent, 0)

	pending, err := s.Admissions().Pending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, codes(pending))
}

func TestClaimNextAndFinalize(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	empty, err := s.Admissions().ClaimNext(ctx)
	require.NoError(t, err)
	assert.Nil(t, empty)

	admit(t, s, "b", model.PriorityUrgent, 0)
	a := admit(t, s, "a", model.PriorityEmergency, time.Minute)

	claimed, err := s.Admissions().ClaimNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, a.ID, claimed.ID)
	assert.Equal(t, model.StatusInProgress, claimed.Status)

	pending, err := s.Admissions().Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, codes(pending))

	rec := &model.AttentionRecord{AdmissionID: a.ID, Report: "alta"}
	require.NoError(t, s.Admissions().Finalize(ctx, rec))
	assert.NotEmpty(t, rec.ID)

	got, err := s.Admissions().Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFinalized, got.Status)

	err = s.Admissions().Finalize(ctx, &model.AttentionRecord{AdmissionID: a.ID, Report: "again"})
	assert.True(t, errors.IsConflict(err))

	err = s.Admissions().Finalize(ctx, &model.AttentionRecord{AdmissionID: "missing", Report: "x"})
	assert.True(t, errors.IsNotFound(err))
}

func TestFinalizeRejectsPendingAdmission(t *testing.T) {
	s := NewStore()
	a := admit(t, s, "a", model.PriorityUrgent, 0)

	err := s.Admissions().Finalize(context.Background(), &model.AttentionRecord{AdmissionID: a.ID, Report: "x"})
	assert.True(t, errors.IsConflict(err))
}

func TestConcurrentClaimsAreDistinct(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	for i := 0; i < 20; i++ {
		admit(t, s, "p", model.PriorityUrgent, time.Duration(i)*time.Second)
	}

	var (
		mu   sync.Mutex
		seen = map[string]int{}
		wg   sync.WaitGroup
	)
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			adm, err := s.Admissions().ClaimNext(ctx)
			if err != nil || adm == nil {
				return
			}
			mu.Lock()
			seen[adm.ID]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 20)
	for id, n := range seen {
		assert.Equal(t, 1, n, id)
	}
}

func TestPatientsAreUniqueByCode(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	require.NoError(t, s.Patients().Create(ctx, &model.Patient{Code: "20-1", GivenName: "Ana", FamilyName: "Paz"}))
	err := s.Patients().Create(ctx, &model.Patient{Code: "20-1", GivenName: "Otra", FamilyName: "Persona"})
	assert.True(t, errors.IsConflict(err))

	_, err = s.Patients().GetByCode(ctx, "20-2")
	assert.True(t, errors.IsNotFound(err))
}

func TestPatientListPagesAndSorts(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	for _, p := range []model.Patient{
		{Code: "1", GivenName: "Ana", FamilyName: "Zapata"},
		{Code: "2", GivenName: "Bruno", FamilyName: "Acosta"},
		{Code: "3", GivenName: "Carla", FamilyName: "Medina"},
	} {
		p := p
		require.NoError(t, s.Patients().Create(ctx, &p))
	}

	page, err := s.Patients().List(ctx, model.PageRequest{Page: 0, Size: 2, SortBy: "apellido"})
	require.NoError(t, err)
	assert.Equal(t, 3, page.TotalElements)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Content, 2)
	assert.Equal(t, "Acosta", page.Content[0].FamilyName)
	assert.Equal(t, "Medina", page.Content[1].FamilyName)

	page, err = s.Patients().List(ctx, model.PageRequest{Page: 0, Size: 10, SortBy: "nombre", Direction: "desc"})
	require.NoError(t, err)
	assert.Equal(t, "Carla", page.Content[0].GivenName)
}

func TestUsersAndProviders(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	u := &repository.User{Profile: model.Profile{Email: "a@b.c", Code: "27-1", Role: model.RoleNurse}, PasswordHash: "h"}
	require.NoError(t, s.Users().Create(ctx, u))
	assert.NotEmpty(t, u.ID)
	assert.True(t, errors.IsConflict(s.Users().Create(ctx, &repository.User{Profile: model.Profile{Email: "A@B.C"}})))

	got, err := s.Users().GetByCode(ctx, "27-1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	p := &model.InsuranceProvider{Name: "OSDE"}
	require.NoError(t, s.Providers().Create(ctx, p))
	assert.NotZero(t, p.ID)
	assert.True(t, errors.IsConflict(s.Providers().Create(ctx, &model.InsuranceProvider{Name: "OSDE"})))

	list, err := s.Providers().List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
