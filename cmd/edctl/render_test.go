package main

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jwalitptl/ed-intake/internal/service/admission"
	"github.com/jwalitptl/ed-intake/internal/service/attention"
	"github.com/jwalitptl/ed-intake/pkg/errors"
)

func TestDescribeEvent(t *testing.T) {
	assert.Equal(t, "[ingreso.creado 7]", describeEvent([]byte(`{"type":"ingreso.creado","payload":{"id":"7","estado":"PENDIENTE"}}`)))
	assert.Equal(t, "[ingreso.finalizado]", describeEvent([]byte(`{"type":"ingreso.finalizado","payload":{}}`)))
	assert.Empty(t, describeEvent([]byte("not json")))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 3, exitCode(errNotSignedIn))
	assert.Equal(t, 3, exitCode(errors.AuthExpired(nil)))
	assert.Equal(t, 3, exitCode(fmt.Errorf("%w: %w", attention.ErrStaleResponse, errors.AuthExpired(nil))))
	assert.Equal(t, 2, exitCode(errors.Field("cuil", "required")))
	assert.Equal(t, 2, exitCode(fmt.Errorf("set: %w", admission.ErrFieldLocked)))
	assert.Equal(t, 4, exitCode(errors.Transport(stderrors.New("dial tcp"))))
	assert.Equal(t, 1, exitCode(stderrors.New("boom")))
}

func TestDescribeListsEveryInvalidField(t *testing.T) {
	err := errors.Validation(
		errors.FieldError{Field: "cuil", Message: "required"},
		errors.FieldError{Field: "descripcion", Message: "required"},
	)

	assert.Equal(t, "please fix the following:\n  cuil: required\n  descripcion: required", describe(err))
	assert.Equal(t, "session expired, run edctl login", describe(errors.AuthExpired(nil)))
}
