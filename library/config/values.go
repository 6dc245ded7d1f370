package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Laisky/errors/v2"
	gconfig "github.com/Laisky/go-config/v2"
)

// Int reads an int configuration value with a default fallback.
func Int(key string, def int) int {
	return int(Int64(key, int64(def)))
}

// Int64 reads an int64 configuration value with a default fallback.
func Int64(key string, def int64) int64 {
	switch v := gconfig.S.Get(key).(type) {
	case nil:
		return def
	case int:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return def
		}
		var parsed int64
		if _, err := fmt.Sscanf(trimmed, "%d", &parsed); err != nil {
			return def
		}
		return parsed
	default:
		return def
	}
}

// Bool reads a boolean configuration value with a default fallback.
func Bool(key string, def bool) bool {
	switch v := gconfig.S.Get(key).(type) {
	case nil:
		return def
	case bool:
		return v
	case int:
		return v != 0
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return def
		}
		return parsed
	default:
		return def
	}
}

// String reads a trimmed string configuration value with a default fallback.
func String(key, def string) string {
	v := strings.TrimSpace(gconfig.S.GetString(key))
	if v == "" {
		return def
	}
	return v
}

// Int64Slice reads a list of ids, either a yaml list or a comma separated string.
func Int64Slice(key string) ([]int64, error) {
	var raw []string
	switch v := gconfig.S.Get(key).(type) {
	case nil:
		return nil, nil
	case string:
		raw = strings.Split(v, ",")
	case []any:
		for _, item := range v {
			raw = append(raw, fmt.Sprint(item))
		}
	case []int:
		for _, item := range v {
			raw = append(raw, strconv.Itoa(item))
		}
	case []int64:
		return v, nil
	default:
		return nil, errors.Errorf("%s: unsupported type %T", key, v)
	}

	ids := make([]int64, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, errors.Errorf("%s: invalid id %q", key, s)
		}
		ids = append(ids, id)
	}

	return ids, nil
}
