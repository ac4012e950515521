package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/ed-intake/pkg/errors"
)

type fakeTokens struct {
	token   string
	expired int32
}

func (f *fakeTokens) Token() string { return f.token }

func (f *fakeTokens) Expire(context.Context) error {
	atomic.AddInt32(&f.expired, 1)
	f.token = ""
	return nil
}

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *fakeTokens) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	tokens := &fakeTokens{token: "tok-123"}
	return New(srv.URL+"/api", tokens), tokens
}

func TestDoSendsBearerAndDecodes(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get(HeaderXRequestID))
		assert.Equal(t, "/api/pacientes/20123456789", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]string{"cuil": "20123456789"})
	})

	var out struct {
		Cuil string `json:"cuil"`
	}
	resp, err := client.Get(context.Background(), "/pacientes/20123456789", &out)
	require.NoError(t, err)
	assert.False(t, resp.Empty)
	assert.Equal(t, "20123456789", out.Cuil)
}

func TestNoContentIsEmptySuccess(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	var out map[string]interface{}
	resp, err := client.Post(context.Background(), "/cola-atencion/atender", nil, &out)
	require.NoError(t, err)
	assert.True(t, resp.Empty)
	assert.Nil(t, out)
}

func TestUnauthorizedExpiresSession(t *testing.T) {
	client, tokens := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.Get(context.Background(), "/cola-atencion", nil)
	require.Error(t, err)
	assert.True(t, errors.IsAuthExpired(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&tokens.expired))
}

func TestUnauthorizedOnAnonymousCallIsPlainFailure(t *testing.T) {
	client, tokens := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"mensaje":"Credenciales inválidas","status":401}`))
	})

	_, err := client.Do(context.Background(), Request{Method: http.MethodPost, Path: "/auth/login", Anonymous: true}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsRemote(err))
	assert.Equal(t, "Credenciales inválidas", err.Error())
	assert.Equal(t, int32(0), atomic.LoadInt32(&tokens.expired))
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	client := New(srv.URL, &fakeTokens{})
	_, err := client.Get(context.Background(), "/ingresos", nil)
	require.Error(t, err)
	assert.True(t, errors.IsTransport(err))
	assert.Contains(t, err.Error(), "connect")
}

func TestMalformedSuccessBody(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>oops</html>`))
	})

	var out map[string]interface{}
	_, err := client.Get(context.Background(), "/ingresos", &out)
	require.Error(t, err)
	assert.True(t, errors.IsTransport(err))
	assert.False(t, errors.IsRemote(err))
	assert.Contains(t, err.Error(), "decode response from /ingresos")
}

func TestUnencodableRequestBody(t *testing.T) {
	calls := 0
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
	})

	_, err := client.Post(context.Background(), "/urgencias", map[string]interface{}{"bad": make(chan int)}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsTransport(err))
	assert.Zero(t, calls)
}

func TestDecodeErrorMessage(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"mensaje wins", 400, `{"mensaje":"El paciente no existe","message":"other"}`, "El paciente no existe"},
		{"message", 409, `{"message":"admission is not pending"}`, "admission is not pending"},
		{"error string", 500, `{"error":"Internal Server Error"}`, "Internal Server Error"},
		{"error object ignored", 500, `{"error":{"code":1}}`, "request failed with status 500"},
		{"field errors", 400, `{"errors":[{"field":"temperatura","defaultMessage":"must be positive"},{"field":"descripcion"},{"message":"cuil required"}]}`,
			"must be positive, descripcion is invalid, cuil required"},
		{"short text", 502, `upstream unavailable`, "upstream unavailable"},
		{"html", 502, `<html><body>Bad gateway</body></html>`, "request failed with status 502"},
		{"empty", 503, ``, "request failed with status 503"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decodeErrorMessage(tt.status, []byte(tt.body)))
		})
	}
}
