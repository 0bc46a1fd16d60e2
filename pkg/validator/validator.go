// Package validator turns raw client payloads into clean, typed record
// maps. It coerces values per field type, applies the schema's named
// validation rules and accumulates per-field error messages instead of
// stopping at the first failure.
package validator

import (
	"context"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/bitechdev/CrudSpec/pkg/schema"
)

// Errors accumulates failed rule names per field, e.g.
// {"email": ["required", "email"]}. Clients translate rule names to
// display messages.
type Errors map[string][]string

// Add appends a failed rule for a field.
func (e Errors) Add(field, rule string) {
	e[field] = append(e[field], rule)
}

// Any reports whether any field failed.
func (e Errors) Any() bool { return len(e) > 0 }

// Mode selects which rules apply.
type Mode int

const (
	// ModeCreate validates a full payload: defaults are filled and
	// required fields must be present.
	ModeCreate Mode = iota
	// ModeUpdate validates only the fields present in the payload.
	ModeUpdate
)

// UniqueChecker reports whether a value is already taken for a field.
// excludeID, when non-nil, names the record being updated so its own
// current value does not collide with itself.
type UniqueChecker func(ctx context.Context, field string, value interface{}, excludeID interface{}) (bool, error)

// Validator validates payloads against one schema.
type Validator struct {
	schema *schema.Schema
	unique UniqueChecker
}

// Option configures a Validator.
type Option func(*Validator)

// WithUniqueChecker wires the database-backed uniqueness probe.
func WithUniqueChecker(fn UniqueChecker) Option {
	return func(v *Validator) { v.unique = fn }
}

// Failed rule names reported in Errors.
const (
	RuleRequired  = "required"
	RuleLengthMin = "length.min"
	RuleLengthMax = "length.max"
	RuleNumeric   = "numeric"
	RuleMin       = "min"
	RuleMax       = "max"
	RuleEmail     = "email"
	RulePattern   = "pattern"
	RuleMatch     = "match"
	RuleUnique    = "unique"
	RuleType      = "type"
)

// New creates a validator for a schema.
func New(s *schema.Schema, opts ...Option) *Validator {
	v := &Validator{schema: s}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate coerces and validates input. The returned map holds only
// known, editable, transformed fields; confirmation companions and
// unknown keys are dropped. A non-nil error means a rule could not be
// evaluated (for example the uniqueness probe failed), distinct from
// validation failures which land in Errors.
func (v *Validator) Validate(ctx context.Context, input map[string]interface{}, mode Mode, excludeID interface{}) (map[string]interface{}, Errors, error) {
	clean := make(map[string]interface{})
	errs := make(Errors)

	for name, f := range v.schema.Fields {
		raw, present := input[name]

		if !present {
			if mode == ModeCreate {
				if f.Default != nil {
					value, err := Transform(f, f.Default)
					if err == nil {
						clean[name] = value
					}
				} else if v.isRequired(f) {
					errs.Add(name, RuleRequired)
				}
			}
			continue
		}

		if !f.IsEditable() {
			// Handlers decide whether readonly input is an error;
			// here it is dropped, and on create the declared default
			// still applies as if the field had been absent.
			if mode == ModeCreate && f.Default != nil {
				value, err := Transform(f, f.Default)
				if err == nil {
					clean[name] = value
				}
			}
			continue
		}

		value, err := Transform(f, raw)
		if err != nil {
			errs.Add(name, RuleType)
			continue
		}

		if isEmpty(value) {
			if v.isRequired(f) {
				errs.Add(name, RuleRequired)
				continue
			}
			clean[name] = value
			continue
		}

		if err := v.applyRules(ctx, name, f, value, input, errs, excludeID); err != nil {
			return nil, nil, err
		}
		clean[name] = value
	}

	return clean, errs, nil
}

func (v *Validator) isRequired(f *schema.FieldSpec) bool {
	if f.Required {
		return true
	}
	return f.Validation != nil && f.Validation.Required
}

func (v *Validator) applyRules(ctx context.Context, name string, f *schema.FieldSpec, value interface{}, input map[string]interface{}, errs Errors, excludeID interface{}) error {
	rules := f.Validation
	if rules == nil {
		return nil
	}

	if rules.Length != nil {
		if s, ok := value.(string); ok {
			n := utf8.RuneCountInString(s)
			if rules.Length.Min != nil && n < *rules.Length.Min {
				errs.Add(name, RuleLengthMin)
			}
			if rules.Length.Max != nil && n > *rules.Length.Max {
				errs.Add(name, RuleLengthMax)
			}
		}
	}

	if rules.Numeric {
		switch value.(type) {
		case int64, float64:
		default:
			errs.Add(name, RuleNumeric)
		}
	}

	if rules.Min != nil || rules.Max != nil {
		if n, ok := asNumber(value); ok {
			if rules.Min != nil && n < *rules.Min {
				errs.Add(name, RuleMin)
			}
			if rules.Max != nil && n > *rules.Max {
				errs.Add(name, RuleMax)
			}
		}
	}

	if rules.Email {
		if s, ok := value.(string); ok && !validEmail(s) {
			errs.Add(name, RuleEmail)
		}
	}

	if rules.Pattern != "" {
		if s, ok := value.(string); ok {
			re, err := regexp.Compile(rules.Pattern)
			if err != nil {
				return fmt.Errorf("field %s: invalid pattern %q: %w", name, rules.Pattern, err)
			}
			if !re.MatchString(s) {
				errs.Add(name, RulePattern)
			}
		}
	}

	if rules.Match.Enabled {
		companion := rules.Match.CompanionFor(name)
		confirm, ok := input[companion]
		confirmValue, _ := Transform(f, confirm)
		if !ok || confirmValue != value {
			errs.Add(name, RuleMatch)
		}
	}

	if rules.Unique && v.unique != nil {
		taken, err := v.unique(ctx, name, value, excludeID)
		if err != nil {
			return fmt.Errorf("uniqueness check for %s: %w", name, err)
		}
		if taken {
			errs.Add(name, RuleUnique)
		}
	}

	return nil
}

// validEmail accepts bare local@domain addresses only: no display
// names, no whitespace (quoted or otherwise), and the domain must
// contain a dot. mail.ParseAddress alone is looser on all three.
func validEmail(s string) bool {
	if strings.ContainsAny(s, " \t") {
		return false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return false
	}
	domain := s[strings.LastIndex(s, "@")+1:]
	return strings.Contains(domain, ".")
}

func isEmpty(value interface{}) bool {
	if value == nil {
		return true
	}
	s, ok := value.(string)
	return ok && s == ""
}

func asNumber(value interface{}) (float64, bool) {
	switch n := value.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
