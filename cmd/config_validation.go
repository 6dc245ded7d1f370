package cmd

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	errors "github.com/Laisky/errors/v2"
	gconfig "github.com/Laisky/go-config/v2"
)

// configGetter retrieves raw configuration values by dotted key path.
type configGetter func(key string) any

// validateStartupConfig validates startup configuration from the shared config source.
// It returns an error when any configured value is malformed or violates constraints.
func validateStartupConfig() error {
	return validateStartupConfigWithGetter(func(key string) any {
		return gconfig.S.Get(key)
	})
}

// validateStartupConfigWithGetter validates startup configuration via a key-value getter.
// It accepts a value getter and returns nil when all configured values are valid.
func validateStartupConfigWithGetter(get configGetter) error {
	if get == nil {
		return errors.New("config getter is nil")
	}

	validationErrs := make([]string, 0)

	validateTelegramConfig(get, &validationErrs)
	validateLinksConfig(get, &validationErrs)
	validateQuotaConfig(get, &validationErrs)
	validateRetentionConfig(get, &validationErrs)
	validateStorageConfig(get, &validationErrs)
	validateDBConfig(get, &validationErrs)
	validateWebConfig(get, &validationErrs)

	if len(validationErrs) == 0 {
		return nil
	}

	return errors.Errorf("invalid configuration:\n - %s", strings.Join(validationErrs, "\n - "))
}

// validateTelegramConfig validates bot credentials and channels.
func validateTelegramConfig(get configGetter, errs *[]string) {
	validateRequiredString(get, "settings.telegram.token", errs)
	validateOptionalURL(get, "settings.telegram.api", errs)
	validateOptionalInt64NonZero(get, "settings.telegram.log_channel", errs)
	validateOptionalIntMin(get, "settings.telegram.poll_timeout_seconds", 1, errs)
	validateOptionalInt64List(get, "settings.telegram.admins", errs)
	for _, key := range []string{"total_per_sec", "total_burst", "user_per_sec", "user_burst"} {
		validateOptionalIntMin(get, "settings.telegram.throttle."+key, 0, errs)
	}

	// the bin channel is where the telegram backend keeps the blobs
	if storageBackend(get) == "telegram" {
		validateRequiredInt64NonZero(get, "settings.telegram.bin_channel", errs)
	}
}

// validateLinksConfig validates the public bases of issued links.
func validateLinksConfig(get configGetter, errs *[]string) {
	validateRequiredURL(get, "settings.links.download_base", errs)
	validateRequiredURL(get, "settings.links.stream_base", errs)
	if raw := get("settings.links.embed_base"); raw != nil {
		if v, err := parseStrictString(raw); err == nil && strings.TrimSpace(v) == "" {
			return
		}
		validateOptionalURL(get, "settings.links.embed_base", errs)
	}
}

// validateQuotaConfig validates tier limits.
// Premium must never be stricter than free.
func validateQuotaConfig(get configGetter, errs *[]string) {
	for _, tier := range []string{"free", "premium"} {
		validateOptionalInt64Min(get, "settings.quota."+tier+".max_file_size", 1, errs)
		validateOptionalIntMin(get, "settings.quota."+tier+".daily_limit", 1, errs)
	}

	freeSize, freeOK := optionalInt64(get, "settings.quota.free.max_file_size")
	premiumSize, premiumOK := optionalInt64(get, "settings.quota.premium.max_file_size")
	if freeOK && premiumOK && premiumSize < freeSize {
		appendValidationError(errs, "settings.quota.premium.max_file_size must be >= settings.quota.free.max_file_size")
	}

	freeDaily, freeOK := optionalInt64(get, "settings.quota.free.daily_limit")
	premiumDaily, premiumOK := optionalInt64(get, "settings.quota.premium.daily_limit")
	if freeOK && premiumOK && premiumDaily < freeDaily {
		appendValidationError(errs, "settings.quota.premium.daily_limit must be >= settings.quota.free.daily_limit")
	}
}

// validateRetentionConfig validates auto delete, zero disables it.
func validateRetentionConfig(get configGetter, errs *[]string) {
	validateOptionalIntMin(get, "settings.retention.auto_delete_seconds", 0, errs)
	validateOptionalIntMin(get, "settings.ingest.cleanup_timeout_seconds", 1, errs)
}

// validateStorageConfig validates the artifact backend.
func validateStorageConfig(get configGetter, errs *[]string) {
	validateOptionalOneOf(get, "settings.storage.backend", []string{"telegram", "minio"}, errs)
	validateOptionalIntMin(get, "settings.storage.retry_backoff_ms", 0, errs)
	validateOptionalIntMin(get, "settings.storage.timeout_seconds", 1, errs)

	if storageBackend(get) != "minio" {
		return
	}
	validateRequiredString(get, "settings.storage.minio.endpoint", errs)
	validateRequiredString(get, "settings.storage.minio.bucket", errs)
	validateOptionalBool(get, "settings.storage.minio.secure", errs)

	// minio reads the upload back through getFile, which the public bot api caps at 20MB
	if api := optionalString(get, "settings.telegram.api"); api == "" || isPublicBotAPI(api) {
		appendValidationError(errs, "settings.telegram.api must point to a local bot api server when settings.storage.backend is minio")
	}
	if raw := get("settings.storage.minio.endpoint"); raw != nil {
		if v, err := parseStrictString(raw); err == nil && strings.Contains(v, "://") {
			appendValidationError(errs, "settings.storage.minio.endpoint must be host[:port] without scheme")
		}
	}
}

// validateDBConfig validates persistence and the optional redis lock.
func validateDBConfig(get configGetter, errs *[]string) {
	validateOptionalOneOf(get, "settings.db.driver", []string{"mongo", "memory"}, errs)
	driver := "mongo"
	if raw := get("settings.db.driver"); raw != nil {
		if v, err := parseStrictString(raw); err == nil {
			driver = strings.ToLower(strings.TrimSpace(v))
		}
	}
	if driver == "mongo" {
		validateRequiredString(get, "settings.db.mongo.addr", errs)
	}

	validateOptionalStringNonEmpty(get, "settings.db.redis.addr", errs)
	validateOptionalIntMin(get, "settings.db.redis.db", 0, errs)
	validateOptionalIntMin(get, "settings.db.redis.lock_ttl_seconds", 1, errs)
	validateOptionalIntMin(get, "settings.db.redis.lock_refresh_seconds", 1, errs)

	ttl, ok := optionalInt64(get, "settings.db.redis.lock_ttl_seconds")
	if !ok {
		ttl = defaultRedisLockTTLSeconds
	}
	refresh, ok := optionalInt64(get, "settings.db.redis.lock_refresh_seconds")
	if !ok {
		refresh = defaultRedisLockRefreshSeconds
	}
	if refresh >= ttl {
		appendValidationError(errs, "settings.db.redis.lock_refresh_seconds must be < settings.db.redis.lock_ttl_seconds")
	}
}

// validateWebConfig validates the ops server.
func validateWebConfig(get configGetter, errs *[]string) {
	validateOptionalStringNonEmpty(get, "settings.web.listen", errs)
}

// storageBackend returns the configured backend, defaulting to telegram.
func storageBackend(get configGetter) string {
	raw := get("settings.storage.backend")
	if raw == nil {
		return "telegram"
	}
	v, err := parseStrictString(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(v))
}

// optionalString returns the configured string, empty when unset or not a string.
func optionalString(get configGetter, key string) string {
	raw := get(key)
	if raw == nil {
		return ""
	}
	v, err := parseStrictString(raw)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(v)
}

// isPublicBotAPI reports whether api is the hosted telegram bot api.
func isPublicBotAPI(api string) bool {
	u, err := url.Parse(api)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Hostname(), "api.telegram.org")
}

// optionalInt64 returns the configured integer and whether it is set and valid.
func optionalInt64(get configGetter, key string) (int64, bool) {
	raw := get(key)
	if raw == nil {
		return 0, false
	}
	v, err := parseStrictInt64(raw)
	return v, err == nil
}

// validateOptionalBool validates an optionally configured boolean key.
// It accepts a getter, the key, and an error collector pointer and appends validation errors.
func validateOptionalBool(get configGetter, key string, errs *[]string) {
	raw := get(key)
	if raw == nil {
		return
	}

	if _, ok := parseStrictBool(raw); !ok {
		appendValidationError(errs, "%s must be a boolean", key)
	}
}

// validateOptionalIntMin validates an optionally configured integer key with a minimum constraint.
// It accepts a getter, the key, a minimum value, and an error collector pointer and appends validation errors.
func validateOptionalIntMin(get configGetter, key string, min int, errs *[]string) {
	raw := get(key)
	if raw == nil {
		return
	}

	value, parseErr := parseStrictInt(raw)
	if parseErr != nil {
		appendValidationError(errs, "%s must be an integer", key)
		return
	}

	if value < min {
		appendValidationError(errs, "%s must be >= %d", key, min)
	}
}

// validateOptionalInt64Min validates an optionally configured int64 key with a minimum constraint.
// It accepts a getter, the key, a minimum value, and an error collector pointer and appends validation errors.
func validateOptionalInt64Min(get configGetter, key string, min int64, errs *[]string) {
	raw := get(key)
	if raw == nil {
		return
	}

	value, parseErr := parseStrictInt64(raw)
	if parseErr != nil {
		appendValidationError(errs, "%s must be an integer", key)
		return
	}

	if value < min {
		appendValidationError(errs, "%s must be >= %d", key, min)
	}
}

// validateOptionalInt64NonZero validates an optionally configured chat id.
func validateOptionalInt64NonZero(get configGetter, key string, errs *[]string) {
	raw := get(key)
	if raw == nil {
		return
	}

	value, parseErr := parseStrictInt64(raw)
	if parseErr != nil {
		appendValidationError(errs, "%s must be an integer", key)
		return
	}
	if value == 0 {
		appendValidationError(errs, "%s must not be 0", key)
	}
}

// validateRequiredInt64NonZero validates a mandatory chat id.
func validateRequiredInt64NonZero(get configGetter, key string, errs *[]string) {
	if get(key) == nil {
		appendValidationError(errs, "%s is required", key)
		return
	}
	validateOptionalInt64NonZero(get, key, errs)
}

// validateOptionalInt64List accepts a list of ids or a comma separated string.
func validateOptionalInt64List(get configGetter, key string, errs *[]string) {
	raw := get(key)
	if raw == nil {
		return
	}

	var items []any
	switch v := raw.(type) {
	case []any:
		items = v
	case []int:
		for _, i := range v {
			items = append(items, i)
		}
	case []int64:
		for _, i := range v {
			items = append(items, i)
		}
	case []string:
		for _, s := range v {
			items = append(items, s)
		}
	case string:
		for _, s := range strings.Split(v, ",") {
			if strings.TrimSpace(s) != "" {
				items = append(items, s)
			}
		}
	default:
		appendValidationError(errs, "%s must be a list of integers", key)
		return
	}

	for i, item := range items {
		if _, err := parseStrictInt64(item); err != nil {
			appendValidationError(errs, "%s[%d] must be an integer", key, i)
		}
	}
}

// validateOptionalOneOf validates an optionally configured enum key, case insensitive.
func validateOptionalOneOf(get configGetter, key string, allowed []string, errs *[]string) {
	raw := get(key)
	if raw == nil {
		return
	}

	value, parseErr := parseStrictString(raw)
	if parseErr != nil {
		appendValidationError(errs, "%s must be a string", key)
		return
	}

	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, a := range allowed {
		if normalized == a {
			return
		}
	}
	appendValidationError(errs, "%s must be one of [%s]", key, strings.Join(allowed, ", "))
}

// validateOptionalURL validates an optionally configured absolute URL key.
// It accepts a getter, the key, and an error collector pointer and appends validation errors.
func validateOptionalURL(get configGetter, key string, errs *[]string) {
	raw := get(key)
	if raw == nil {
		return
	}

	value, parseErr := parseStrictString(raw)
	if parseErr != nil {
		appendValidationError(errs, "%s must be a string URL", key)
		return
	}

	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		appendValidationError(errs, "%s must not be empty", key)
		return
	}

	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		appendValidationError(errs, "%s must be a valid absolute URL", key)
	}
}

// validateRequiredURL validates a mandatory absolute URL key.
func validateRequiredURL(get configGetter, key string, errs *[]string) {
	if get(key) == nil {
		appendValidationError(errs, "%s is required", key)
		return
	}
	validateOptionalURL(get, key, errs)
}

// validateOptionalStringNonEmpty validates an optionally configured non-empty string key.
// It accepts a getter, the key, and an error collector pointer and appends validation errors.
func validateOptionalStringNonEmpty(get configGetter, key string, errs *[]string) {
	raw := get(key)
	if raw == nil {
		return
	}

	value, parseErr := parseStrictString(raw)
	if parseErr != nil {
		appendValidationError(errs, "%s must be a string", key)
		return
	}

	if strings.TrimSpace(value) == "" {
		appendValidationError(errs, "%s must not be empty", key)
	}
}

// validateRequiredString validates a mandatory non-empty string key.
func validateRequiredString(get configGetter, key string, errs *[]string) {
	if get(key) == nil {
		appendValidationError(errs, "%s is required", key)
		return
	}
	validateOptionalStringNonEmpty(get, key, errs)
}

// parseStrictBool parses a value as boolean using strict conversion rules.
// It accepts a raw value and returns the parsed boolean and whether parsing succeeded.
func parseStrictBool(value any) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case int:
		return v != 0, true
	case int64:
		return v != 0, true
	case float64:
		if math.Trunc(v) != v {
			return false, false
		}
		return int64(v) != 0, true
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return false, false
		}
		switch strings.ToLower(trimmed) {
		case "true", "1", "yes":
			return true, true
		case "false", "0", "no":
			return false, true
		default:
			return false, false
		}
	default:
		return false, false
	}
}

// parseStrictInt parses a value as a strict integer.
// It accepts a raw value and returns the parsed int and an error when parsing fails.
func parseStrictInt(value any) (int, error) {
	parsed, err := parseStrictInt64(value)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	if parsed > math.MaxInt || parsed < math.MinInt {
		return 0, errors.Errorf("%d overflows int", parsed)
	}
	return int(parsed), nil
}

// parseStrictInt64 parses a value as a strict int64.
// Chat ids and byte sizes do not fit an int32, so parsing never narrows.
func parseStrictInt64(value any) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, errors.Errorf("%d overflows int64", v)
		}
		return int64(v), nil
	case float64:
		if math.Trunc(v) != v {
			return 0, errors.Errorf("%v is not an integer", v)
		}
		return int64(v), nil
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0, errors.New("empty integer string")
		}
		parsed, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			return 0, errors.Wrap(err, "parse int")
		}
		return parsed, nil
	default:
		return 0, errors.Errorf("unsupported int type %T", value)
	}
}

// parseStrictString parses a value as a strict string.
// It accepts a raw value and returns the parsed string and an error when parsing fails.
func parseStrictString(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", errors.Errorf("unsupported string type %T", value)
	}
}

// appendValidationError appends a formatted validation error to the collector.
// It accepts an error slice pointer, a format string, and format arguments, and has no return value.
func appendValidationError(errs *[]string, format string, args ...any) {
	if errs == nil {
		return
	}
	*errs = append(*errs, fmt.Sprintf(format, args...))
}
