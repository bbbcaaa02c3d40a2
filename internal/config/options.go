package config

import "strconv"

// Options is a loosely typed option bag decoded from JSON config.
// Accessors are tolerant of the types encoding/json produces (float64 for
// numbers, map[string]any for objects) as well as natively built values.
type Options map[string]any

// Bool returns the option as a bool, or def when absent or mistyped.
func (o Options) Bool(key string, def bool) bool {
	v, ok := o[key]
	if !ok {
		return def
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		if b, err := strconv.ParseBool(t); err == nil {
			return b
		}
	}
	return def
}

// Int returns the option as an int, or def when absent or mistyped.
func (o Options) Int(key string, def int) int {
	v, ok := o[key]
	if !ok {
		return def
	}
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	case string:
		if n, err := strconv.Atoi(t); err == nil {
			return n
		}
	}
	return def
}

// String returns the option as a string, or def when absent or mistyped.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Rune returns the first rune of a string option, or def when absent/empty.
// JSON has no rune type, so single-character strings are the config shape.
func (o Options) Rune(key string, def rune) rune {
	s := o.String(key, "")
	if s == "" {
		return def
	}
	return []rune(s)[0]
}

// StringMap returns the option as map[string]string. Non-string values in a
// JSON object are dropped. Absent or mistyped options yield an empty map.
func (o Options) StringMap(key string) map[string]string {
	out := make(map[string]string)
	v, ok := o[key]
	if !ok {
		return out
	}
	switch t := v.(type) {
	case map[string]string:
		for k, s := range t {
			out[k] = s
		}
	case map[string]any:
		for k, raw := range t {
			if s, ok := raw.(string); ok {
				out[k] = s
			}
		}
	}
	return out
}

// Any returns the raw option value, or nil when absent.
func (o Options) Any(key string) any {
	return o[key]
}
