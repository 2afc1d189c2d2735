// Package validation wraps go-playground/validator with the custom rules used by the dispatch API
// request bodies, and flattens validation failures into per-field messages.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/target/case-dispatch/internal/domain/model"
)

// Rule registers one custom validation on the underlying validator.
type Rule struct {
	Rule func(v *validator.Validate)
}

// Validator is a wrapper around the actual validator.
// It sets up the validator and extracts per-field messages from the underlying error.
type Validator struct {
	validator *validator.Validate
}

// New returns a validator with the dispatch rules registered and JSON field names in errors.
func New(rules ...Rule) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonFieldName)

	out := &Validator{validator: v}
	out.Register(DispatchRules()...)
	out.Register(rules...)
	return out
}

// Register adds custom rules.
func (v *Validator) Register(rules ...Rule) {
	for _, r := range rules {
		if r.Rule != nil {
			r.Rule(v.validator)
		}
	}
}

// Struct validates s and returns a *FieldErrors when any field fails.
func (v *Validator) Struct(s any) error {
	err := v.validator.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fe := &FieldErrors{Fields: make(map[string]string, len(verrs))}
	for _, e := range verrs {
		if _, seen := fe.Fields[e.Field()]; seen {
			continue
		}
		fe.Fields[e.Field()] = message(e)
		fe.order = append(fe.order, e.Field())
	}
	return fe
}

// FieldErrors maps JSON field names to a human-readable failure.
type FieldErrors struct {
	Fields map[string]string
	order  []string
}

func (e *FieldErrors) Error() string {
	parts := make([]string, 0, len(e.order))
	for _, f := range e.order {
		parts = append(parts, e.Fields[f])
	}
	return strings.Join(parts, "; ")
}

// First returns the first failing field name.
func (e *FieldErrors) First() string {
	if len(e.order) == 0 {
		return ""
	}
	return e.order[0]
}

func message(e validator.FieldError) string {
	switch e.Tag() {
	case "required", "notblank":
		return e.Field() + " is required"
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", e.Field(), e.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", e.Field(), e.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", e.Field(), e.Param())
	case "terminal_status":
		return e.Field() + " must be COMPLETED or FAILED"
	case "mail_status":
		return e.Field() + " must be one of SUBMITTED, IN_TRANSIT, DELIVERED, RETURNED"
	default:
		return fmt.Sprintf("%s failed %s validation", e.Field(), e.Tag())
	}
}

func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return f.Name
	default:
		return name
	}
}

func registerFn(tag string, fn func(fl validator.FieldLevel) bool) func(v *validator.Validate) {
	return func(v *validator.Validate) {
		_ = v.RegisterValidation(tag, fn)
	}
}

// DispatchRules returns the custom rules used by the dispatch request bodies.
func DispatchRules() []Rule {
	return []Rule{
		{Rule: registerFn("notblank", notBlankValidator)},
		{Rule: registerFn("terminal_status", terminalStatusValidator)},
		{Rule: registerFn("mail_status", mailStatusValidator)},
	}
}

func notBlankValidator(fl validator.FieldLevel) bool {
	val, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	return strings.TrimSpace(val) != ""
}

func terminalStatusValidator(fl validator.FieldLevel) bool {
	val, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	st, err := model.ParseJobStatus(val)
	return err == nil && st.Terminal()
}

func mailStatusValidator(fl validator.FieldLevel) bool {
	val, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	_, err := model.ParseMailStatus(val)
	return err == nil
}
