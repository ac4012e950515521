package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/jwalitptl/ed-intake/internal/model"
	"github.com/jwalitptl/ed-intake/internal/repository"
	"github.com/jwalitptl/ed-intake/pkg/errors"
)

type admissionEntry struct {
	admission model.Admission
	seq       uint64
}

// Store keeps everything in process memory behind one mutex, so a claim is
// a single critical section.
type Store struct {
	mu         sync.Mutex
	users      map[string]*repository.User
	patients   map[string]*model.Patient
	providers  map[int]model.InsuranceProvider
	admissions map[string]*admissionEntry
	attentions map[string]model.AttentionRecord
	seq        uint64
	providerID int
}

func NewStore() *Store {
	return &Store{
		users:      make(map[string]*repository.User),
		patients:   make(map[string]*model.Patient),
		providers:  make(map[int]model.InsuranceProvider),
		admissions: make(map[string]*admissionEntry),
		attentions: make(map[string]model.AttentionRecord),
	}
}

func (s *Store) Users() repository.UserRepository           { return userRepository{s} }
func (s *Store) Patients() repository.PatientRepository     { return patientRepository{s} }
func (s *Store) Providers() repository.ProviderRepository   { return providerRepository{s} }
func (s *Store) Admissions() repository.AdmissionRepository { return admissionRepository{s} }
func (s *Store) Close() error                               { return nil }

type userRepository struct{ s *Store }

func (r userRepository) Create(_ context.Context, user *repository.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return errors.Conflict("El email ya está registrado")
		}
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	cp := *user
	r.s.users[user.ID] = &cp
	return nil
}

func (r userRepository) GetByID(_ context.Context, id string) (*repository.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u, ok := r.s.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, errors.NotFound("user", nil)
}

func (r userRepository) GetByEmail(_ context.Context, email string) (*repository.User, error) {
	return r.find(func(u *repository.User) bool { return strings.EqualFold(u.Email, email) })
}

func (r userRepository) GetByCode(_ context.Context, code string) (*repository.User, error) {
	return r.find(func(u *repository.User) bool { return u.Code == code })
}

func (r userRepository) find(match func(*repository.User) bool) (*repository.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, errors.NotFound("user", nil)
}

type patientRepository struct{ s *Store }

func (r patientRepository) Create(_ context.Context, patient *model.Patient) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.patients[patient.Code]; ok {
		return errors.Conflict("Ya existe un paciente con CUIL " + patient.Code)
	}
	if patient.ID == "" {
		patient.ID = uuid.New().String()
	}
	r.s.patients[patient.Code] = clonePatient(patient)
	return nil
}

func (r patientRepository) GetByCode(_ context.Context, code string) (*model.Patient, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p, ok := r.s.patients[code]; ok {
		return clonePatient(p), nil
	}
	return nil, errors.NotFound("patient", nil)
}

func (r patientRepository) List(_ context.Context, req model.PageRequest) (model.Page[model.Patient], error) {
	req = req.Normalize()
	r.s.mu.Lock()
	all := make([]model.Patient, 0, len(r.s.patients))
	for _, p := range r.s.patients {
		all = append(all, *clonePatient(p))
	}
	r.s.mu.Unlock()

	key := func(p model.Patient) string {
		switch req.SortBy {
		case "nombre":
			return strings.ToLower(p.GivenName)
		case "cuil":
			return p.Code
		case "email":
			return strings.ToLower(p.Email)
		default:
			return strings.ToLower(p.FamilyName)
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		ki, kj := key(all[i]), key(all[j])
		if ki == kj {
			return all[i].Code < all[j].Code
		}
		if req.Direction == "desc" {
			return ki > kj
		}
		return ki < kj
	})
	return model.NewPage(all, req), nil
}

func clonePatient(p *model.Patient) *model.Patient {
	cp := *p
	if p.Address != nil {
		addr := *p.Address
		cp.Address = &addr
	}
	if p.Insurance != nil {
		ins := *p.Insurance
		cp.Insurance = &ins
	}
	return &cp
}

type providerRepository struct{ s *Store }

func (r providerRepository) Create(_ context.Context, provider *model.InsuranceProvider) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.providers {
		if strings.EqualFold(p.Name, provider.Name) {
			return errors.Conflict("La obra social ya existe: " + provider.Name)
		}
	}
	if provider.ID == 0 {
		r.s.providerID++
		provider.ID = r.s.providerID
	} else if provider.ID > r.s.providerID {
		r.s.providerID = provider.ID
	}
	r.s.providers[provider.ID] = *provider
	return nil
}

func (r providerRepository) Get(_ context.Context, id int) (*model.InsuranceProvider, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p, ok := r.s.providers[id]; ok {
		return &p, nil
	}
	return nil, errors.NotFound("insurance provider", nil)
}

func (r providerRepository) List(_ context.Context) ([]model.InsuranceProvider, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]model.InsuranceProvider, 0, len(r.s.providers))
	for _, p := range r.s.providers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type admissionRepository struct{ s *Store }

func (r admissionRepository) Create(_ context.Context, admission *model.Admission) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if admission.ID == "" {
		admission.ID = uuid.New().String()
	}
	r.s.seq++
	r.s.admissions[admission.ID] = &admissionEntry{admission: *admission, seq: r.s.seq}
	return nil
}

func (r admissionRepository) Get(_ context.Context, id string) (*model.Admission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if e, ok := r.s.admissions[id]; ok {
		adm := e.admission
		return &adm, nil
	}
	return nil, errors.NotFound("admission", nil)
}

func (r admissionRepository) List(_ context.Context) ([]model.Admission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	entries := r.s.sorted(func(*admissionEntry) bool { return true }, func(a, b *admissionEntry) bool {
		return a.seq < b.seq
	})
	return admissionsOf(entries), nil
}

func (r admissionRepository) Pending(_ context.Context) ([]model.Admission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return admissionsOf(r.s.pending()), nil
}

func (r admissionRepository) ClaimNext(_ context.Context) (*model.Admission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	pending := r.s.pending()
	if len(pending) == 0 {
		return nil, nil
	}
	next := pending[0]
	next.admission.Status = model.StatusInProgress
	adm := next.admission
	return &adm, nil
}

func (r admissionRepository) Finalize(_ context.Context, record *model.AttentionRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.admissions[record.AdmissionID]
	if !ok {
		return errors.NotFound("admission", nil)
	}
	if !e.admission.Status.CanTransition(model.StatusFinalized) {
		return errors.Conflict("El ingreso no está en proceso de atención")
	}
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	e.admission.Status = model.StatusFinalized
	r.s.attentions[record.AdmissionID] = *record
	return nil
}

// pending must be called with mu held.
func (s *Store) pending() []*admissionEntry {
	return s.sorted(
		func(e *admissionEntry) bool { return e.admission.Status == model.StatusPending },
		func(a, b *admissionEntry) bool {
			if a.admission.Priority != b.admission.Priority || !a.admission.AdmittedAt.Equal(b.admission.AdmittedAt.Time) {
				return repository.DispatchBefore(a.admission, b.admission)
			}
			return a.seq < b.seq
		},
	)
}

func (s *Store) sorted(keep func(*admissionEntry) bool, less func(a, b *admissionEntry) bool) []*admissionEntry {
	out := make([]*admissionEntry, 0, len(s.admissions))
	for _, e := range s.admissions {
		if keep(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func admissionsOf(entries []*admissionEntry) []model.Admission {
	out := make([]model.Admission, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.admission)
	}
	return out
}
