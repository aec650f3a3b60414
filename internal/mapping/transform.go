package mapping

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bianoble/sfsync/internal/source"
)

// TransformFunc converts a raw source value into a target value.
// raw is nil when the source column is NULL or absent.
type TransformFunc func(raw any) (any, error)

var transforms = map[string]TransformFunc{
	"":        stringValue,
	"string":  stringValue,
	"date":    dateValue,
	"flag":    flagValue,
	"bool":    boolValue,
	"decimal": decimalValue,
	"int":     intValue,
}

// Names returns the supported transform names.
func Names() []string {
	return []string{"string", "date", "flag", "bool", "decimal", "int"}
}

// Lookup returns the transform registered under name.
func Lookup(name string) (TransformFunc, error) {
	fn, ok := transforms[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown transform '%s' — must be one of: %s", name, strings.Join(Names(), ", "))
	}
	return fn, nil
}

func stringValue(raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	return source.FormatValue(raw), nil
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.000",
	"20060102",
}

func dateValue(raw any) (any, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return v.Format("2006-01-02"), nil
	}

	s := strings.TrimSpace(source.FormatValue(raw))
	if s == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	return nil, fmt.Errorf("cannot parse %q as a date", s)
}

// flagValue maps yes-like values to "S" and everything else to "N".
func flagValue(raw any) (any, error) {
	switch strings.ToUpper(strings.TrimSpace(source.FormatValue(raw))) {
	case "Y", "S", "SIM", "1", "TRUE":
		return "S", nil
	}
	return "N", nil
}

func boolValue(raw any) (any, error) {
	if b, ok := raw.(bool); ok {
		return b, nil
	}
	return strings.EqualFold(strings.TrimSpace(source.FormatValue(raw)), "Y"), nil
}

func decimalValue(raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	s := strings.TrimSpace(source.FormatValue(raw))
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(strings.Replace(s, ",", ".", 1))
	if err != nil {
		return nil, fmt.Errorf("cannot parse %q as a decimal: %w", s, err)
	}
	return json.Number(d.String()), nil
}

func intValue(raw any) (any, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	}
	s := strings.TrimSpace(source.FormatValue(raw))
	if s == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("cannot parse %q as an integer: %w", s, err)
	}
	return n, nil
}
