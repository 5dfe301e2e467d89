package migration

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// Transformer is a function that transforms a value
type Transformer func(value any) (any, error)

// TransformerRegistry maps transformer names to their implementations
var TransformerRegistry = map[string]Transformer{
	"toString":    ToString,
	"toNumber":    ToNumber,
	"toInt":       ToInt,
	"toBool":      ToBool,
	"toDate":      ToDate,
	"toLowerCase": ToLowerCase,
	"toUpperCase": ToUpperCase,
	"trim":        Trim,
}

// TransformerNames returns the registered transformer names, sorted
func TransformerNames() []string {
	names := make([]string, 0, len(TransformerRegistry))
	for name := range TransformerRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ToString converts any value to string
func ToString(value any) (any, error) {
	if value == nil {
		return "", nil
	}
	if s, err := cast.ToStringE(value); err == nil {
		return s, nil
	}
	return fmt.Sprintf("%v", value), nil
}

// ToNumber converts a value to float64, the stored number representation
func ToNumber(value any) (any, error) {
	if value == nil {
		return 0.0, nil
	}
	if s, ok := value.(string); ok {
		value = strings.TrimSpace(s)
	}
	f, err := cast.ToFloat64E(value)
	if err != nil {
		return nil, fmt.Errorf("cannot convert %T to number: %w", value, err)
	}
	return f, nil
}

// ToInt converts a value to a whole number, truncating fractions
func ToInt(value any) (any, error) {
	f, err := ToNumber(value)
	if err != nil {
		return nil, err
	}
	return math.Trunc(f.(float64)), nil
}

// ToBool converts a value to boolean. Besides the forms accepted by
// strconv, "yes", "no", "on" and "off" are understood.
func ToBool(value any) (any, error) {
	if value == nil {
		return false, nil
	}
	if s, ok := value.(string); ok {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "yes", "on":
			return true, nil
		case "no", "off", "":
			return false, nil
		}
		value = strings.TrimSpace(s)
	}
	b, err := cast.ToBoolE(value)
	if err != nil {
		return nil, fmt.Errorf("cannot convert %v to bool: %w", value, err)
	}
	return b, nil
}

// ToDate converts strings and unix-millisecond numbers to UTC time.Time
func ToDate(value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, fmt.Errorf("cannot convert nil to date")
	case time.Time:
		return v.UTC(), nil
	case string:
		t, err := cast.ToTimeE(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("cannot convert %q to date: %w", v, err)
		}
		return t.UTC(), nil
	}
	ms, err := cast.ToInt64E(value)
	if err != nil {
		return nil, fmt.Errorf("cannot convert %T to date: %w", value, err)
	}
	return time.UnixMilli(ms).UTC(), nil
}

// ToLowerCase converts a string to lowercase
func ToLowerCase(value any) (any, error) {
	s, err := ToString(value)
	if err != nil {
		return nil, err
	}
	return strings.ToLower(s.(string)), nil
}

// ToUpperCase converts a string to uppercase
func ToUpperCase(value any) (any, error) {
	s, err := ToString(value)
	if err != nil {
		return nil, err
	}
	return strings.ToUpper(s.(string)), nil
}

// Trim removes leading and trailing whitespace from a string
func Trim(value any) (any, error) {
	s, err := ToString(value)
	if err != nil {
		return nil, err
	}
	return strings.TrimSpace(s.(string)), nil
}
