package dataset

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cast"
)

// DateLayout is the wire format of date fields.
const DateLayout = "2006-01-02"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// step=BASE:STEP holds when (value-BASE)/STEP is integral.
	_ = v.RegisterValidation("step", func(fl validator.FieldLevel) bool {
		base, step, ok := strings.Cut(fl.Param(), ":")
		if !ok {
			return false
		}
		b, err1 := strconv.ParseFloat(base, 64)
		s, err2 := strconv.ParseFloat(step, 64)
		if err1 != nil || err2 != nil || s <= 0 {
			return false
		}
		q := (fl.Field().Float() - b) / s
		return math.Abs(q-math.Round(q)) < 1e-9
	})
	return v
}

// ValidationError describes one failed rule. Index is the record's position
// in a batch, or 0 for a single record.
type ValidationError struct {
	Index   int    `json:"index"`
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// ValidationErrors is the list of failures for a record or batch.
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "validation passed"
	}
	parts := make([]string, 0, len(ve))
	for _, e := range ve {
		parts = append(parts, fmt.Sprintf("[%d].%s: %s", e.Index, e.Field, e.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Validate checks rec against every field: requiredness (including
// requiredWhen rules), type, format, min, max and step. Keys that are not
// fields are ignored.
func (c *Config) Validate(rec Record) ValidationErrors {
	var errs ValidationErrors
	for _, f := range c.Fields {
		if e, ok := c.validateField(f, rec); !ok {
			errs = append(errs, e)
		}
	}
	return errs
}

// ValidateAll validates each record and checks unique fields across the
// batch. Records with status delete are skipped.
func (c *Config) ValidateAll(records []Record) ValidationErrors {
	var errs ValidationErrors
	seen := make(map[string]map[string]int)

	for i, rec := range records {
		if Status(rec.String(StatusKey)) == StatusDelete {
			continue
		}
		for _, e := range c.Validate(rec) {
			e.Index = i
			errs = append(errs, e)
		}
		for _, f := range c.Fields {
			if !f.Unique || isBlank(rec[f.Name]) {
				continue
			}
			if seen[f.Name] == nil {
				seen[f.Name] = make(map[string]int)
			}
			key := cast.ToString(rec[f.Name])
			if first, dup := seen[f.Name][key]; dup {
				errs = append(errs, ValidationError{
					Index:   i,
					Field:   f.Name,
					Rule:    "unique",
					Message: fmt.Sprintf("%q duplicates record %d", key, first),
				})
				continue
			}
			seen[f.Name][key] = i
		}
	}
	return errs
}

func (c *Config) validateField(f Field, rec Record) (ValidationError, bool) {
	fail := func(rule, msg string) (ValidationError, bool) {
		return ValidationError{Field: f.Name, Rule: rule, Message: msg}, false
	}

	raw := rec[f.Name]
	if isBlank(raw) {
		if c.RequiredFor(f, rec) {
			if f.RequiredWhen != "" {
				return fail("required", fmt.Sprintf("is required when %s", f.RequiredWhen))
			}
			return fail("required", "is required")
		}
		return ValidationError{}, true
	}

	switch f.Type {
	case TypeNumber:
		n, err := toNumber(raw)
		if err != nil {
			return fail("type", "must be a number")
		}
		if f.Min != nil && validate.Var(n, "gte="+formatFloat(*f.Min)) != nil {
			return fail("min", "must be at least "+formatFloat(*f.Min))
		}
		if f.Max != nil && validate.Var(n, "lte="+formatFloat(*f.Max)) != nil {
			return fail("max", "must be at most "+formatFloat(*f.Max))
		}
		if f.Step != nil {
			base := 0.0
			if f.Min != nil {
				base = *f.Min
			}
			if validate.Var(n, "step="+formatFloat(base)+":"+formatFloat(*f.Step)) != nil {
				return fail("step", "must be a multiple of "+formatFloat(*f.Step))
			}
		}

	case TypeBoolean:
		if _, err := cast.ToBoolE(raw); err != nil {
			return fail("type", "must be a boolean")
		}

	case TypeDate:
		s, ok := raw.(string)
		if !ok || (validate.Var(s, "datetime="+DateLayout) != nil && validate.Var(s, "datetime="+time.RFC3339) != nil) {
			return fail("type", "must be a date (YYYY-MM-DD)")
		}

	case TypeString:
		s, ok := raw.(string)
		if !ok {
			return fail("type", "must be a string")
		}
		if f.Format != "" && validate.Var(s, f.Format) != nil {
			return fail("format", "must be a valid "+f.Format)
		}
	}
	return ValidationError{}, true
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
