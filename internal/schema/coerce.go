package schema

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"time"

	"github.com/starford/kiln/internal/models"
	"github.com/starford/kiln/internal/toc"
)

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// defaultValue returns a fresh copy of the field default.
func (f Field) defaultValue() (any, bool) {
	if f.Default == nil {
		return nil, false
	}
	v, err := f.coerce(f.Default)
	if err != nil {
		return nil, false
	}
	return v, true
}

// coerce converts a decoded YAML value into the canonical Go value of the
// field type.
func (f Field) coerce(v any) (any, error) {
	switch f.Type {
	case TypeString, TypeText:
		return scalarString(v)
	case TypeBool:
		b, ok := v.(bool)
		if !ok {
			return nil, errors.New("must be a boolean")
		}
		return b, nil
	case TypeInt:
		n, ok := toInt64(v)
		if !ok {
			return nil, errors.New("must be an integer")
		}
		return n, nil
	case TypeNumber:
		n, ok := toFloat(v)
		if !ok {
			return nil, errors.New("must be a number")
		}
		return n, nil
	case TypeISODate:
		return isoDate(v)
	case TypeStrings:
		return stringList(v)
	case TypeEnum:
		s, err := scalarString(v)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(f.Values, s) {
			return nil, fmt.Errorf("must be one of %v", f.Values)
		}
		return s, nil
	case TypeHeadings:
		items, err := toc.ParseItems(v)
		if err != nil {
			return nil, err
		}
		return items, nil
	default:
		return nil, fmt.Errorf("unknown field type %q", f.Type)
	}
}

func scalarString(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case int, int64, uint64:
		return fmt.Sprint(s), nil
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), nil
	default:
		return "", errors.New("must be a string")
	}
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float64:
		if n == math.Trunc(n) && !math.IsInf(n, 0) {
			return int64(n), true
		}
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func isoDate(v any) (string, error) {
	switch d := v.(type) {
	case time.Time:
		return d.UTC().Format(models.ISOLayout), nil
	case string:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, d); err == nil {
				return t.UTC().Format(models.ISOLayout), nil
			}
		}
	}
	return "", errors.New("must be an ISO 8601 date")
}

func stringList(v any) ([]string, error) {
	switch l := v.(type) {
	case string:
		return []string{l}, nil
	case []string:
		return slices.Clone(l), nil
	case []any:
		out := make([]string, 0, len(l))
		for i, item := range l {
			s, err := scalarString(item)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, errors.New("must be a list of strings")
}
