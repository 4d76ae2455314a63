package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// settings is the untyped key space produced by viper. Keys may be spelled
// with underscores or dashes; viper lowercases them on read.
type settings map[string]interface{}

func (s settings) find(keys ...string) (interface{}, string, bool) {
	for _, key := range keys {
		for _, k := range []string{key, strings.ToLower(key)} {
			if v, ok := s[k]; ok {
				return v, k, true
			}
		}
	}
	return nil, "", false
}

// set decodes the first present key into dst using conv. Missing keys leave
// dst untouched.
func set[T any](s settings, dst *T, conv func(interface{}) (T, error), keys ...string) error {
	raw, key, ok := s.find(keys...)
	if !ok {
		return nil
	}
	v, err := conv(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = v
	return nil
}

// nested returns the map stored under key.
func (s settings) nested(key string) (settings, bool, error) {
	raw, _, ok := s.find(key)
	if !ok {
		return nil, false, nil
	}
	switch m := raw.(type) {
	case map[string]interface{}:
		return settings(m), true, nil
	case map[interface{}]interface{}:
		out := make(settings, len(m))
		for k, v := range m {
			out[fmt.Sprint(k)] = v
		}
		return out, true, nil
	}
	return nil, true, fmt.Errorf("%s: expected a map, got %T", key, raw)
}

func trimmed(v interface{}) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(s), true
}

func textValue(v interface{}) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case []byte:
		return string(x), nil
	case fmt.Stringer:
		return x.String(), nil
	}
	return fmt.Sprint(v), nil
}

func intValue(v interface{}) (int, error) {
	if s, ok := trimmed(v); ok {
		if s == "" {
			return 0, nil
		}
		return strconv.Atoi(s)
	}
	f, err := numeric(v)
	return int(f), err
}

func floatValue(v interface{}) (float64, error) {
	if s, ok := trimmed(v); ok {
		if s == "" {
			return 0, nil
		}
		return strconv.ParseFloat(s, 64)
	}
	return numeric(v)
}

func numeric(v interface{}) (float64, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case int:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case float32:
		return float64(x), nil
	case float64:
		return x, nil
	}
	return 0, fmt.Errorf("unsupported numeric type %T", v)
}

func boolValue(v interface{}) (bool, error) {
	if s, ok := trimmed(v); ok {
		if s == "" {
			return false, nil
		}
		return strconv.ParseBool(s)
	}
	switch x := v.(type) {
	case nil:
		return false, nil
	case bool:
		return x, nil
	}
	return false, fmt.Errorf("unsupported boolean type %T", v)
}

// durationValue accepts Go duration strings. Bare numbers are seconds.
func durationValue(v interface{}) (time.Duration, error) {
	if d, ok := v.(time.Duration); ok {
		return d, nil
	}
	if s, ok := trimmed(v); ok {
		if s == "" {
			return 0, nil
		}
		if d, err := time.ParseDuration(s); err == nil {
			return d, nil
		}
		secs, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		return seconds(secs), nil
	}
	secs, err := numeric(v)
	if err != nil {
		return 0, fmt.Errorf("unsupported duration type %T", v)
	}
	return seconds(secs), nil
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}
