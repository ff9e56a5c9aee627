// Package schema holds the shape checks every accessor applies to outbound
// payloads and inbound records.
package schema

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"metawave/model"
)

var handlePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func instance() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
		_ = v.RegisterValidation("handle", func(fl validator.FieldLevel) bool {
			return handlePattern.MatchString(fl.Field().String())
		})
		validate = v
	})
	return validate
}

// FieldError describes one offending field.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

func (f FieldError) message() string {
	switch f.Rule {
	case "required":
		return f.Field + " is required"
	case "notnull":
		return f.Field + " cannot be null"
	case "handle":
		return f.Field + " must contain only letters, digits or underscores"
	case "email":
		return f.Field + " must be a valid email"
	case "datetime":
		return f.Field + " must be a YYYY-MM-DD date"
	default:
		return fmt.Sprintf("%s failed %q", f.Field, f.Rule)
	}
}

// ValidationError reports a payload that does not match its shape.
type ValidationError struct {
	Entity string
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.message())
	}
	return fmt.Sprintf("invalid %s: %s", e.Entity, strings.Join(msgs, "; "))
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func entityName(v any) string {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "payload"
	}
	return strings.ToLower(t.Name())
}

func fromValidator(entity string, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	ve := &ValidationError{Entity: entity}
	for _, fe := range verrs {
		field := fe.Field()
		// nested paths (tags[2]) keep their index
		if ns := fe.Namespace(); strings.Contains(ns, ".") {
			field = ns[strings.Index(ns, ".")+1:]
		}
		ve.Fields = append(ve.Fields, FieldError{Field: field, Rule: fe.Tag()})
	}
	return ve
}

// Validate checks a record or input against its struct tags.
func Validate(v any) error {
	if err := instance().Struct(v); err != nil {
		return fromValidator(entityName(v), err)
	}
	return nil
}

// ValidateAll checks every element of a result list.
func ValidateAll[T any](items []T) error {
	for i := range items {
		if err := Validate(&items[i]); err != nil {
			return err
		}
	}
	return nil
}

// Patch accumulates the present fields of an update input as column values,
// validating each one against the rule of the matching create field.
type Patch struct {
	entity string
	values map[string]any
	errs   []FieldError
}

func NewPatch(entity string) *Patch {
	return &Patch{entity: entity, values: make(map[string]any)}
}

// Set adds one column to the patch when o is present. A null value is only
// accepted for nullable columns; rule is a validator tag for the value.
func Set[T any](p *Patch, column string, o model.Optional[T], rule string, nullable bool) {
	if !o.Set {
		return
	}
	if o.Null {
		if !nullable {
			p.errs = append(p.errs, FieldError{Field: column, Rule: "notnull"})
			return
		}
		p.values[column] = nil
		return
	}
	if rule != "" {
		if err := instance().Var(o.Value, rule); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) && len(verrs) > 0 {
				p.errs = append(p.errs, FieldError{Field: column, Rule: verrs[0].Tag()})
			} else {
				p.errs = append(p.errs, FieldError{Field: column, Rule: rule})
			}
			return
		}
	}
	p.values[column] = o.Value
}

// Put adds a column value that needs no validation.
func (p *Patch) Put(column string, value any) {
	p.values[column] = value
}

func (p *Patch) Err() error {
	if len(p.errs) == 0 {
		return nil
	}
	return &ValidationError{Entity: p.entity, Fields: p.errs}
}

func (p *Patch) Values() map[string]any {
	return p.values
}

func (p *Patch) Empty() bool {
	return len(p.values) == 0
}
