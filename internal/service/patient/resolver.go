package patient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/jwalitptl/ed-intake/internal/gateway"
	"github.com/jwalitptl/ed-intake/internal/model"
	"github.com/jwalitptl/ed-intake/pkg/errors"
)

const DefaultMinCodeLength = 7

type Remote interface {
	Do(ctx context.Context, req gateway.Request, out interface{}) (*gateway.Response, error)
}

// Resolver looks patients up by identity code. Absence is a result, not a
// failure.
type Resolver struct {
	remote    Remote
	minLength int
}

func NewResolver(remote Remote, minLength int) *Resolver {
	if minLength <= 0 {
		minLength = DefaultMinCodeLength
	}
	return &Resolver{remote: remote, minLength: minLength}
}

func (r *Resolver) MinLength() int {
	return r.minLength
}

// Resolve returns the patient and true when the registry knows code, or nil
// and false when it answers 404. Codes shorter than the minimum are rejected
// before any request is made.
func (r *Resolver) Resolve(ctx context.Context, code string) (*model.Patient, bool, error) {
	code = strings.TrimSpace(code)
	if len(code) < r.minLength {
		return nil, false, errors.Field("cuil", fmt.Sprintf("must have at least %d characters", r.minLength))
	}

	var p model.Patient
	resp, err := r.remote.Do(ctx, gateway.Request{
		Method:   http.MethodGet,
		Path:     "/pacientes/" + url.PathEscape(code),
		Endpoint: "/pacientes/{cuil}",
	}, &p)
	if err != nil {
		if errors.IsRemote(err) && errors.StatusOf(err) == http.StatusNotFound {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("lookup patient %s: %w", code, err)
	}
	if resp.Empty {
		return nil, false, errors.Remote(resp.Status, "empty patient record for "+code)
	}
	return &p, true, nil
}
