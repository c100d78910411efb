// Package options implements the single-line key=value parameter format
// passed to segmentation engines and stored in the options file.
package options

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// Kind is the value type of a parameter.
type Kind int

const (
	KindInt Kind = iota
	KindFloat
	KindString
	KindVector
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindVector:
		return "vector"
	case KindBool:
		return "bool"
	}
	return "unknown"
}

// Param declares one engine parameter.
type Param struct {
	Name    string
	Kind    Kind
	Default any
}

// Schema is the ordered, fixed parameter set of one engine command.
type Schema []Param

// Options maps parameter names to int, float64, string or bool values.
// Vectors are kept as their comma-separated string.
type Options map[string]any

var (
	// ErrUnknownKey reports a key that is not part of the schema.
	ErrUnknownKey = errors.New("unknown option")
	// ErrInvalidValue reports a value that does not parse as the key's kind.
	ErrInvalidValue = errors.New("invalid option value")
)

// ConfigError describes a malformed options line or file.
type ConfigError struct {
	Key   string
	Value string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("options error for %q: %v", e.Key, e.Err)
	}
	return fmt.Sprintf("options error for %q=%q: %v", e.Key, e.Value, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// SegmentTrunk is the parameter set of the "segment trunk" command.
var SegmentTrunk = Schema{
	{Name: "scale", Kind: KindInt, Default: 8},
	{Name: "sigma", Kind: KindFloat, Default: 2.0},
	{Name: "thresholding", Kind: KindString, Default: "Mean"},
	{Name: "opening", Kind: KindInt, Default: 16},
	{Name: "closing", Kind: KindInt, Default: 8},
	{Name: "stroke", Kind: KindInt, Default: 8},
	{Name: "interpolation", Kind: KindInt, Default: 100},
	{Name: "vectors", Kind: KindVector, Default: "0.7372839,0.63264143,0.23701741,0.91958255,0.35537627,0.16755785,0.69067574,0.64728355,0.3224746"},
	{Name: "bark", Kind: KindVector, Default: "0.7898954,0.5587874,0.25262988,0.5932292,0.7353205,0.3276933,0.57844025,0.5767322,0.5768768"},
	{Name: "min", Kind: KindInt, Default: 200},
	{Name: "do", Kind: KindBool, Default: false},
}

// Lookup returns the parameter called name.
func (s Schema) Lookup(name string) (Param, bool) {
	for _, p := range s {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// Defaults returns a fresh Options holding every default value.
func (s Schema) Defaults() Options {
	o := make(Options, len(s))
	for _, p := range s {
		o[p.Name] = p.Default
	}
	return o
}

// Format serializes o as space-joined tokens in schema order, followed by
// any keys outside the schema in sorted order. True booleans are written as
// a bare key and false booleans are left out.
func Format(s Schema, o Options) string {
	var tokens []string
	seen := make(map[string]bool, len(o))
	emit := func(key string, v any) {
		seen[key] = true
		switch b := v.(type) {
		case bool:
			if b {
				tokens = append(tokens, key)
			}
		default:
			tokens = append(tokens, key+"="+formatValue(v))
		}
	}
	for _, p := range s {
		if v, ok := o[p.Name]; ok {
			emit(p.Name, v)
		}
	}
	for _, k := range slices.Sorted(maps.Keys(o)) {
		if !seen[k] {
			emit(k, o[k])
		}
	}
	return strings.Join(tokens, " ")
}

func formatValue(v any) string {
	switch x := v.(type) {
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

// Parse reads an options line. The result starts from the schema defaults
// with every boolean cleared, so a boolean is true only when its key appears.
func Parse(s Schema, line string) (Options, error) {
	o := s.Defaults()
	for _, p := range s {
		if p.Kind == KindBool {
			o[p.Name] = false
		}
	}

	for _, tok := range strings.Fields(line) {
		key, raw, hasValue := strings.Cut(tok, "=")
		p, ok := s.Lookup(key)
		if !ok {
			return nil, &ConfigError{Key: key, Value: raw, Err: ErrUnknownKey}
		}
		if !hasValue {
			if p.Kind != KindBool {
				return nil, &ConfigError{Key: key, Err: fmt.Errorf("%w: %s option needs a value", ErrInvalidValue, p.Kind)}
			}
			o[key] = true
			continue
		}
		v, err := parseValue(p.Kind, raw)
		if err != nil {
			return nil, &ConfigError{Key: key, Value: raw, Err: err}
		}
		o[key] = v
	}
	return o, nil
}

func parseValue(k Kind, raw string) (any, error) {
	switch k {
	case KindInt:
		v, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidValue, err)
		}
		return v, nil
	case KindFloat:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidValue, err)
		}
		return v, nil
	case KindBool:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidValue, err)
		}
		return v, nil
	case KindVector:
		if _, err := ParseVector(raw); err != nil {
			return nil, err
		}
		return raw, nil
	default:
		if raw == "" {
			return nil, fmt.Errorf("%w: empty string", ErrInvalidValue)
		}
		return raw, nil
	}
}

// ParseVector splits a comma-separated float list.
func ParseVector(raw string) ([]float64, error) {
	parts := strings.Split(raw, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: vector element %q", ErrInvalidValue, p)
		}
		out = append(out, v)
	}
	return out, nil
}

// Int returns the integer value of key or the fallback.
func (o Options) Int(key string, fallback int) int {
	switch v := o[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return fallback
}

// Float returns the float value of key or the fallback.
func (o Options) Float(key string, fallback float64) float64 {
	switch v := o[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return fallback
}

// Text returns the string value of key or the fallback.
func (o Options) Text(key, fallback string) string {
	if v, ok := o[key].(string); ok {
		return v
	}
	return fallback
}

// Bool reports whether key is set to true.
func (o Options) Bool(key string) bool {
	v, _ := o[key].(bool)
	return v
}

// Clone returns a shallow copy.
func (o Options) Clone() Options { return maps.Clone(o) }
