// Package validation turns self-describing request fields into plain,
// checked records.
package validation

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/spf13/cast"
	"github.com/vmskonakanchi/ymts-crud-api/internal/model"
)

// check validates one descriptor of a known type and returns its messages
type check func(v *Validator, d model.FieldDescriptor) []string

// Validator checks field descriptors against their declared type and
// constraints. It is safe for concurrent use.
type Validator struct {
	checks   map[model.FieldType]check
	patterns sync.Map // pattern source -> *regexp.Regexp
}

// New creates a Validator covering every allowed field type
func New() *Validator {
	checks := make(map[model.FieldType]check, len(model.AllowedFieldTypes))
	for _, t := range model.AllowedFieldTypes {
		checks[t] = passThrough
	}
	checks[model.FieldTypeNumber] = checkNumber
	checks[model.FieldTypeString] = checkString

	return &Validator{checks: checks}
}

// ValidateAndProject validates every field of the batch and, when nothing
// failed, returns the rows reduced to their values. Messages are returned in
// row then key order, one entry per failing field.
func (v *Validator) ValidateAndProject(batch model.Batch) ([]model.Record, []string) {
	if errs := v.Validate(batch); len(errs) > 0 {
		return nil, errs
	}
	return Project(batch), nil
}

// Validate returns the validation messages for the batch
func (v *Validator) Validate(batch model.Batch) []string {
	errs := []string{}
	for _, row := range batch {
		for _, d := range row {
			if msg := v.validateField(d); msg != "" {
				errs = append(errs, msg)
			}
		}
	}
	return errs
}

func (v *Validator) validateField(d model.FieldDescriptor) string {
	if !d.HasType {
		return fmt.Sprintf("Type is required for %s", d.Key)
	}

	fn, ok := v.checks[d.Type]
	if !ok {
		return fmt.Sprintf("Type %s is not allowed for %s", d.Type, d.Key)
	}

	return strings.Join(fn(v, d), "\n")
}

// Project reduces each row to an ordered key/value record. Numeric strings
// declared as numbers are stored as numbers.
func Project(batch model.Batch) []model.Record {
	records := make([]model.Record, 0, len(batch))
	for _, row := range batch {
		r := make(model.Record, 0, len(row))
		for _, d := range row {
			value := d.Value
			if d.Type == model.FieldTypeNumber {
				value = normalizeNumber(value)
			}
			r = append(r, model.Field{Key: d.Key, Value: value})
		}
		records = append(records, r)
	}
	return records
}

func passThrough(v *Validator, d model.FieldDescriptor) []string {
	return nil
}

func checkNumber(v *Validator, d model.FieldDescriptor) []string {
	var errs []string
	c := d.Constraints

	n, isNumber := toNumber(d.Value)
	if !isNumber {
		errs = append(errs, fmt.Sprintf("Value %s is not a number for %s", formatValue(d.Value), d.Key))
	}

	if c.Min != nil {
		min, ok := toNumber(c.Min)
		switch {
		case !ok:
			errs = append(errs, invalidConstraint("min", c.Min, d.Key))
		case isNumber && n < min:
			errs = append(errs, fmt.Sprintf("Value %s is less than minimum value %s for %s",
				formatValue(d.Value), formatValue(c.Min), d.Key))
		}
	}

	if c.Max != nil {
		max, ok := toNumber(c.Max)
		switch {
		case !ok:
			errs = append(errs, invalidConstraint("max", c.Max, d.Key))
		case isNumber && n > max:
			errs = append(errs, fmt.Sprintf("Value %s is greater than maximum value %s for %s",
				formatValue(d.Value), formatValue(c.Max), d.Key))
		}
	}

	return append(errs, v.checkPattern(d)...)
}

func checkString(v *Validator, d model.FieldDescriptor) []string {
	var errs []string
	c := d.Constraints

	if truthy(c.Required) && !truthy(d.Value) {
		errs = append(errs, fmt.Sprintf("Value is required for %s", d.Key))
	}
	if d.Value == nil {
		return errs
	}

	s, ok := d.Value.(string)
	if !ok {
		return append(errs, fmt.Sprintf("Value %s is not a string for %s", formatValue(d.Value), d.Key))
	}
	length := float64(utf8.RuneCountInString(s))

	if c.Min != nil {
		min, ok := toNumber(c.Min)
		switch {
		case !ok:
			errs = append(errs, invalidConstraint("min", c.Min, d.Key))
		case length < min:
			errs = append(errs, fmt.Sprintf("Value %s is less than minimum length %s for %s",
				s, formatValue(c.Min), d.Key))
		}
	}

	if c.Max != nil {
		max, ok := toNumber(c.Max)
		switch {
		case !ok:
			errs = append(errs, invalidConstraint("max", c.Max, d.Key))
		case length > max:
			errs = append(errs, fmt.Sprintf("Value %s is greater than maximum length %s for %s",
				s, formatValue(c.Max), d.Key))
		}
	}

	return append(errs, v.checkPattern(d)...)
}

// checkPattern tests the textual form of the value against the pattern
func (v *Validator) checkPattern(d model.FieldDescriptor) []string {
	raw := d.Constraints.Pattern
	if !truthy(raw) {
		return nil
	}

	source, ok := raw.(string)
	if !ok {
		return []string{invalidConstraint("pattern", raw, d.Key)}
	}

	re, err := v.compile(source)
	if err != nil {
		return []string{invalidConstraint("pattern", raw, d.Key)}
	}

	value := formatValue(d.Value)
	if !re.MatchString(value) {
		return []string{fmt.Sprintf("Value %s does not match pattern %s for %s", value, source, d.Key)}
	}
	return nil
}

func (v *Validator) compile(source string) (*regexp.Regexp, error) {
	if re, ok := v.patterns.Load(source); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(source)
	if err != nil {
		return nil, err
	}
	v.patterns.Store(source, re)
	return re, nil
}

func invalidConstraint(name string, value interface{}, key string) string {
	return fmt.Sprintf("Constraint %s %s is invalid for %s", name, formatValue(value), key)
}

// toNumber reports the numeric value of v. Booleans, null, composite values
// and non-finite floats are never numbers.
func toNumber(v interface{}) (float64, bool) {
	switch v.(type) {
	case nil, bool, model.Record, []interface{}:
		return 0, false
	}
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func normalizeNumber(v interface{}) interface{} {
	s, ok := v.(string)
	if !ok {
		return v
	}
	if i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
		return i
	}
	if f, ok := toNumber(s); ok {
		return f
	}
	return v
}

// truthy follows JSON-ish truthiness: null, false, 0 and "" are false
func truthy(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case int64:
		return val != 0
	case float64:
		return val != 0 && !math.IsNaN(val)
	default:
		return true
	}
}

// formatValue renders a value the way it appears in messages
func formatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}
