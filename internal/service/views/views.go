package views

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/jwalitptl/ed-intake/internal/gateway"
	"github.com/jwalitptl/ed-intake/internal/model"
	"github.com/jwalitptl/ed-intake/pkg/errors"
)

type Remote interface {
	Do(ctx context.Context, req gateway.Request, out interface{}) (*gateway.Response, error)
}

// Service is the read-only side of the remote service: queue, admission
// history and the patient registry.
type Service struct {
	remote Remote
}

func NewService(remote Remote) *Service {
	return &Service{remote: remote}
}

// Queue returns the waiting admissions in the order the remote service
// chose. The order is never changed locally.
func (s *Service) Queue(ctx context.Context) ([]model.Admission, error) {
	var queue []model.Admission
	if _, err := s.remote.Do(ctx, gateway.Request{Method: http.MethodGet, Path: "/cola-atencion"}, &queue); err != nil {
		return nil, fmt.Errorf("load queue: %w", err)
	}
	if queue == nil {
		queue = []model.Admission{}
	}
	return queue, nil
}

// History returns every admission, newest first.
func (s *Service) History(ctx context.Context) ([]model.Admission, error) {
	var history []model.Admission
	if _, err := s.remote.Do(ctx, gateway.Request{Method: http.MethodGet, Path: "/ingresos"}, &history); err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if history == nil {
		history = []model.Admission{}
	}
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].AdmittedAt.After(history[j].AdmittedAt.Time)
	})
	return history, nil
}

func (s *Service) Admission(ctx context.Context, id string) (*model.Admission, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.Field("id", "is required")
	}
	var adm model.Admission
	resp, err := s.remote.Do(ctx, gateway.Request{
		Method:   http.MethodGet,
		Path:     "/ingresos/" + url.PathEscape(id),
		Endpoint: "/ingresos/{id}",
	}, &adm)
	if err != nil {
		if errors.IsRemote(err) && errors.StatusOf(err) == http.StatusNotFound {
			return nil, errors.NotFound("admission", err)
		}
		return nil, err
	}
	if resp.Empty {
		return nil, errors.NotFound("admission", nil)
	}
	return &adm, nil
}

// Patients returns one server-side page of the patient registry.
func (s *Service) Patients(ctx context.Context, req model.PageRequest) (model.Page[model.Patient], error) {
	req = req.Normalize()
	query := url.Values{}
	query.Set("page", strconv.Itoa(req.Page))
	query.Set("size", strconv.Itoa(req.Size))
	query.Set("sortBy", req.SortBy)
	query.Set("direction", req.Direction)

	var page model.Page[model.Patient]
	if _, err := s.remote.Do(ctx, gateway.Request{Method: http.MethodGet, Path: "/pacientes", Query: query}, &page); err != nil {
		return model.Page[model.Patient]{}, fmt.Errorf("list patients: %w", err)
	}
	if page.Content == nil {
		page.Content = []model.Patient{}
	}
	return page, nil
}

// LocalFilter is the result of narrowing records that were already fetched.
// It never stands for a server-side search.
type LocalFilter[T any] struct {
	Query   string
	Items   []T
	Scanned int
}

func (f LocalFilter[T]) Label() string {
	return fmt.Sprintf("local filter %q: %d of %d loaded records", f.Query, len(f.Items), f.Scanned)
}

func filter[T any](items []T, query string, fields func(T) []string) LocalFilter[T] {
	query = strings.TrimSpace(query)
	result := LocalFilter[T]{Query: query, Scanned: len(items), Items: []T{}}
	if query == "" {
		result.Items = append(result.Items, items...)
		return result
	}
	needle := strings.ToLower(query)
	for _, item := range items {
		for _, field := range fields(item) {
			if strings.Contains(strings.ToLower(field), needle) {
				result.Items = append(result.Items, item)
				break
			}
		}
	}
	return result
}

// FilterAdmissions matches on patient code, patient name and priority.
func FilterAdmissions(items []model.Admission, query string) LocalFilter[model.Admission] {
	return filter(items, query, func(a model.Admission) []string {
		return []string{a.PatientCode, a.PatientName(), string(a.Priority), a.Priority.Label()}
	})
}

// FilterPatients matches on code, name and email.
func FilterPatients(items []model.Patient, query string) LocalFilter[model.Patient] {
	return filter(items, query, func(p model.Patient) []string {
		return []string{p.Code, p.FullName(), p.Email}
	})
}
