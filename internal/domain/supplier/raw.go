package supplier

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// RawRecord is one supplier-native record before normalization. Connectors
// decode whatever the upstream returns (JSON object, XML element, scraped
// DOM fields) into this shape; the transformer does the rest.
type RawRecord map[string]any

// String returns the value under key as a trimmed string, or "" when absent.
func (r RawRecord) String(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", t))
	}
}

// Decimal parses the value under key as a decimal. Currency symbols, spaces
// and thousands separators are tolerated ("R 1,234.56" parses as 1234.56).
func (r RawRecord) Decimal(key string) (decimal.Decimal, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return decimal.Zero, false
	}
	switch t := v.(type) {
	case float64:
		return decimal.NewFromFloat(t), true
	case int:
		return decimal.NewFromInt(int64(t)), true
	case string:
		return parsePrice(t)
	default:
		return decimal.Zero, false
	}
}

// Int parses the value under key as an integer, truncating floats.
func (r RawRecord) Int(key string) (int, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return int(t), true
	case int:
		return t, true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// Bool parses the value under key as a boolean. Strings like "true", "yes"
// and "1" count as true.
func (r RawRecord) Bool(key string) (bool, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return false, false
	}
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "y", "1", "available", "in stock", "instock":
			return true, true
		case "false", "no", "n", "0", "out of stock":
			return false, true
		}
		return false, false
	case float64:
		return t != 0, true
	default:
		return false, false
	}
}

// Strings returns the value under key as a string slice. Accepts []string,
// []any of strings, or a single string.
func (r RawRecord) Strings(key string) []string {
	v, ok := r[key]
	if !ok || v == nil {
		return nil
	}
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			} else if m, ok := e.(map[string]any); ok {
				// Shopify-style {"src": "..."} image objects.
				if src, ok := m["src"].(string); ok {
					out = append(out, src)
				}
			}
		}
		return out
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	default:
		return nil
	}
}

// Map returns the value under key as a nested record, or nil.
func (r RawRecord) Map(key string) RawRecord {
	v, ok := r[key]
	if !ok {
		return nil
	}
	if m, ok := v.(map[string]any); ok {
		return RawRecord(m)
	}
	return nil
}

// Key returns the record's natural key: the first non-empty value among the
// given candidate fields.
func (r RawRecord) Key(fields ...string) string {
	for _, f := range fields {
		if v := r.String(f); v != "" {
			return v
		}
	}
	return ""
}

// parsePrice strips currency noise before decimal parsing.
func parsePrice(s string) (decimal.Decimal, bool) {
	cleaned := strings.Map(func(ch rune) rune {
		switch {
		case ch >= '0' && ch <= '9':
			return ch
		case ch == '.' || ch == '-':
			return ch
		default:
			return -1
		}
	}, s)
	if cleaned == "" || cleaned == "-" || cleaned == "." {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
