package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/ed-intake/internal/handler"
	"github.com/jwalitptl/ed-intake/internal/middleware"
	"github.com/jwalitptl/ed-intake/internal/repository/memory"
	"github.com/jwalitptl/ed-intake/internal/router"
	"github.com/jwalitptl/ed-intake/internal/service/attention"
	"github.com/jwalitptl/ed-intake/internal/service/urgency"
	"github.com/jwalitptl/ed-intake/pkg/auth"
	"github.com/jwalitptl/ed-intake/pkg/security"
)

const password = "guardia123"

// console runs edctl commands against an in-process sandbox, sharing one
// session file between invocations like separate shell commands would.
type console struct {
	t *testing.T
}

func newConsole(t *testing.T) *console {
	t.Helper()

	svc := urgency.NewService(memory.NewStore(), security.NewBcryptHasher(bcrypt.MinCost), auth.NewJWTService("test", time.Hour), nil)
	require.NoError(t, svc.Seed(context.Background(), urgency.DefaultSeed(password)))
	r := router.NewRouter(middleware.NewAuthMiddleware(svc), handler.NewHandler(svc), router.RouterConfig{})
	r.Setup()
	srv := httptest.NewServer(r.Engine())
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("HOME", dir)
	t.Setenv("ED_API_BASE_URL", srv.URL+"/api")
	t.Setenv("ED_SESSION_BACKEND", "file")
	t.Setenv("ED_SESSION_FILE", filepath.Join(dir, "session.json"))
	t.Setenv("ED_SESSION_ENCRYPTION_KEY", strings.Repeat("0f", 32))
	t.Setenv("ED_LOG_LEVEL", "error")

	return &console{t: t}
}

func (c *console) run(args ...string) (string, error) {
	c.t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(""))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (c *console) must(args ...string) string {
	c.t.Helper()
	out, err := c.run(args...)
	require.NoError(c.t, err, "edctl %s\n%s", strings.Join(args, " "), out)
	return out
}

func vitals(extra ...string) []string {
	return append(extra,
		"--temperatura", "37.5",
		"--sistolica", "120",
		"--diastolica", "80",
		"--frecuencia-cardiaca", "88",
		"--frecuencia-respiratoria", "16",
	)
}

func TestCommandsRequireLogin(t *testing.T) {
	c := newConsole(t)

	_, err := c.run("queue")
	require.ErrorIs(t, err, errNotSignedIn)
	assert.Equal(t, 3, exitCode(err))
}

func TestWrongPassword(t *testing.T) {
	c := newConsole(t)

	_, err := c.run("login", "-e", "enfermera@guardia.local", "-p", "incorrecta")
	require.Error(t, err)
	assert.Contains(t, describe(err), "Usuario o contraseña inválidos")
}

func TestIntakeAndAttentionRoundTrip(t *testing.T) {
	c := newConsole(t)

	out := c.must("login", "-e", "enfermera@guardia.local", "-p", password)
	assert.Contains(t, out, "nurse")

	out = c.must(vitals("admit",
		"--cuil", "20-30111222-3",
		"--nombre", "Ana", "--apellido", "Paz",
		"--calle", "Belgrano", "--numero", "100", "--localidad", "Rosario",
		"--obra-social", "osde", "--afiliado", "A-77",
		"--descripcion", "dolor abdominal",
		"--nivel", "sin_urgencia",
	)...)
	assert.Contains(t, out, "new patient")
	assert.Contains(t, out, "Ana Paz")

	out = c.must(vitals("admit",
		"--cuil", "20-40222333-4",
		"--nombre", "Bruno", "--apellido", "Diaz",
		"--calle", "Mitre", "--numero", "5", "--localidad", "Rosario",
		"--descripcion", "paro cardiorrespiratorio",
		"--nivel", "CRITICA",
	)...)
	assert.Contains(t, out, "Bruno Diaz")

	// Registered patient: demographics are locked.
	out = c.must(vitals("admit",
		"--cuil", "20-30111222-3",
		"--nombre", "Otra",
		"--descripcion", "control",
		"--nivel", "URGENCIA_MENOR",
	)...)
	assert.Contains(t, out, "existing patient")
	assert.Contains(t, out, "Ana Paz")

	_, err := c.run("admit", "--cuil", "20-50333444-5", "--descripcion", "x", "--nivel", "URGENCIA")
	require.Error(t, err)
	assert.Equal(t, 2, exitCode(err))

	out = c.must("patient", "lookup", "20-30111222-3")
	assert.Contains(t, out, "OSDE #A-77")

	out = c.must("queue")
	require.Less(t, strings.Index(out, "Bruno Diaz"), strings.Index(out, "Ana Paz"))

	_, err = c.run("next")
	require.Error(t, err, "nurses cannot take patients")

	c.must("logout")
	out = c.must("login", "-e", "medico@guardia.local", "-p", password)
	assert.Contains(t, out, "physician")

	out = c.must("next")
	assert.Contains(t, out, "Bruno Diaz")

	_, err = c.run("next")
	require.ErrorIs(t, err, attention.ErrEncounterActive)

	out = c.must("resume")
	assert.Contains(t, out, "Bruno Diaz")

	out = c.must("whoami")
	assert.Contains(t, out, "Waiting:   2")
	assert.Contains(t, out, "Attending: Bruno Diaz")

	out = c.must("finalize", "-r", "estabilizado, derivado a UCO")
	assert.Contains(t, out, "filed")

	out = c.must("resume")
	assert.Contains(t, out, "No unfinished encounter")

	out = c.must("history", "--filter", "bruno")
	assert.Contains(t, out, "FINALIZADO")
	assert.Contains(t, out, "1 of 3")
}

func TestEncounterSurvivesLogout(t *testing.T) {
	c := newConsole(t)

	c.must("login", "-e", "enfermera@guardia.local", "-p", password)
	c.must(vitals("admit",
		"--cuil", "20-30111222-3",
		"--nombre", "Ana", "--apellido", "Paz",
		"--calle", "Belgrano", "--numero", "100", "--localidad", "Rosario",
		"--descripcion", "cefalea",
		"--nivel", "urgent",
	)...)
	c.must("logout")

	c.must("login", "-e", "medico@guardia.local", "-p", password)
	c.must("next")
	c.must("logout")

	out := c.must("login", "-e", "medico@guardia.local", "-p", password)
	assert.Contains(t, out, "Unfinished encounter resumed")
	assert.Contains(t, out, "Ana Paz")
}
