package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/ed-intake/internal/gateway"
	"github.com/jwalitptl/ed-intake/internal/model"
	"github.com/jwalitptl/ed-intake/internal/session"
	"github.com/jwalitptl/ed-intake/pkg/errors"
)

type fakeBackend struct {
	profileStatus int
	profileCode   string
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/auth/login":
		var req model.LoginRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Password != "secret123" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"mensaje":"Credenciales inválidas"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(model.AuthResponse{Token: "tok", Email: req.Email, Role: model.RoleNurse, ExpiresIn: 3600000})
	case "/auth/perfil":
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if f.profileStatus != 0 {
			w.WriteHeader(f.profileStatus)
			return
		}
		_ = json.NewEncoder(w).Encode(model.Profile{Email: "nurse@hospital.test", Code: f.profileCode, Role: model.RoleNurse})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newService(t *testing.T, backend *fakeBackend) (*Service, *session.MemoryStore) {
	t.Helper()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	store := session.NewMemoryStore()
	sess := session.New(store, nil)
	return NewService(gateway.New(srv.URL, sess), sess, nil), store
}

func TestLoginStoresTokenAndProfile(t *testing.T) {
	svc, store := newService(t, &fakeBackend{profileCode: "27-11111111-3"})
	ctx := context.Background()

	profile, err := svc.Login(ctx, "nurse@hospital.test", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "27-11111111-3", profile.Code)

	token, err := store.Get(ctx, session.KeyToken)
	require.NoError(t, err)
	assert.Equal(t, "tok", token)

	code, err := svc.OperatorCode(ctx)
	require.NoError(t, err)
	assert.Equal(t, "27-11111111-3", code)
}

func TestLoginRejectsBadCredentialsWithoutExpiry(t *testing.T) {
	svc, _ := newService(t, &fakeBackend{})

	_, err := svc.Login(context.Background(), "nurse@hospital.test", "wrong")
	require.Error(t, err)
	assert.True(t, errors.IsRemote(err))
	assert.Equal(t, "Credenciales inválidas", err.Error())
}

func TestLoginValidatesLocally(t *testing.T) {
	svc, _ := newService(t, &fakeBackend{})

	_, err := svc.Login(context.Background(), "not-an-email", "")
	require.Error(t, err)

	appErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, []string{"email", "password"}, appErr.FieldNames())
}

func TestRestore(t *testing.T) {
	ctx := context.Background()

	svc, store := newService(t, &fakeBackend{profileCode: "27-1"})
	_, ok, err := svc.Restore(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, session.KeyToken, "tok"))
	profile, ok, err := svc.Restore(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "27-1", profile.Code)
}

func TestRestoreEndsSessionOnRejectedProfile(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t, &fakeBackend{profileStatus: http.StatusForbidden})
	require.NoError(t, store.Set(ctx, session.KeyToken, "tok"))

	_, ok, err := svc.Restore(ctx)
	require.Error(t, err)
	assert.False(t, ok)

	_, err = store.Get(ctx, session.KeyToken)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestOperatorCodeEmptyProfile(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, &fakeBackend{})
	_, err := svc.Login(ctx, "nurse@hospital.test", "secret123")
	require.NoError(t, err)

	code, err := svc.OperatorCode(ctx)
	require.NoError(t, err)
	assert.Empty(t, code)
}
