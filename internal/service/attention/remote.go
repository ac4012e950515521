package attention

import (
	"context"
	"net/http"
	"net/url"

	"github.com/jwalitptl/ed-intake/internal/gateway"
	"github.com/jwalitptl/ed-intake/internal/model"
	"github.com/jwalitptl/ed-intake/pkg/errors"
)

type Doer interface {
	Do(ctx context.Context, req gateway.Request, out interface{}) (*gateway.Response, error)
}

// HTTPRemote implements Remote over the gateway.
type HTTPRemote struct {
	doer Doer
}

func NewHTTPRemote(doer Doer) *HTTPRemote {
	return &HTTPRemote{doer: doer}
}

func (r *HTTPRemote) ClaimNext(ctx context.Context) (*model.Admission, error) {
	var adm model.Admission
	resp, err := r.doer.Do(ctx, gateway.Request{Method: http.MethodPost, Path: "/cola-atencion/atender"}, &adm)
	if err != nil {
		return nil, err
	}
	if resp.Empty || adm.ID == "" {
		return nil, nil
	}
	return &adm, nil
}

func (r *HTTPRemote) Admission(ctx context.Context, id string) (*model.Admission, error) {
	var adm model.Admission
	resp, err := r.doer.Do(ctx, gateway.Request{
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

func (r *HTTPRemote) CreateAttention(ctx context.Context, req model.AttentionRequest) (*model.AttentionRecord, error) {
	var rec model.AttentionRecord
	if _, err := r.doer.Do(ctx, gateway.Request{Method: http.MethodPost, Path: "/atenciones", Body: req}, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
