package validator

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"

	playground "github.com/go-playground/validator/v10"

	"github.com/jwalitptl/ed-intake/pkg/errors"
)

// Validator checks tagged structs and reports failures as field errors.
type Validator interface {
	Validate(obj interface{}) error
	RegisterRule(tag string, fn func(value interface{}) bool, message string) error
}

var defaultMessages = map[string]string{
	"required": "is required",
	"email":    "must be a valid email",
	"min":      "is too short",
	"max":      "is too long",
	"gt":       "must be greater than %s",
	"gte":      "must be at least %s",
}

type validator struct {
	engine   *playground.Validate
	messages map[string]string
}

func New() Validator {
	engine := playground.New()
	engine.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	messages := make(map[string]string, len(defaultMessages))
	for k, v := range defaultMessages {
		messages[k] = v
	}
	return &validator{engine: engine, messages: messages}
}

// RegisterRule adds a custom tag backed by a predicate over the field value.
func (v *validator) RegisterRule(tag string, fn func(value interface{}) bool, message string) error {
	if err := v.engine.RegisterValidation(tag, func(fl playground.FieldLevel) bool {
		return fn(fl.Field().Interface())
	}); err != nil {
		return fmt.Errorf("register rule %q: %w", tag, err)
	}
	v.messages[tag] = message
	return nil
}

func (v *validator) Validate(obj interface{}) error {
	err := v.engine.Struct(obj)
	if err == nil {
		return nil
	}

	var verrs playground.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return err
	}

	fields := make([]errors.FieldError, 0, len(verrs))
	for _, e := range verrs {
		msg, ok := v.messages[e.Tag()]
		if !ok {
			msg = "is invalid"
		}
		if strings.Contains(msg, "%s") {
			msg = fmt.Sprintf(msg, e.Param())
		}
		fields = append(fields, errors.FieldError{Field: e.Field(), Message: msg})
	}
	return errors.Validation(fields...)
}
