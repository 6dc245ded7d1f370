package artifact

import (
	"strings"
	"time"

	"github.com/Laisky/filestream/library/config"
)

const (
	BackendTelegram = "telegram"
	BackendMinio    = "minio"
)

// Settings configures the store adapter and its backend.
type Settings struct {
	Backend      string
	RetryBackoff time.Duration
	Timeout      time.Duration
	Minio        MinioSettings
}

// MinioSettings configures MinioBackend.
type MinioSettings struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	Secure    bool
}

// LoadSettingsFromConfig reads settings.storage.*.
func LoadSettingsFromConfig() Settings {
	settings := Settings{
		Backend:      strings.ToLower(config.String("settings.storage.backend", BackendTelegram)),
		RetryBackoff: time.Duration(config.Int("settings.storage.retry_backoff_ms", 1000)) * time.Millisecond,
		Timeout:      time.Duration(config.Int("settings.storage.timeout_seconds", 300)) * time.Second,
		Minio: MinioSettings{
			Endpoint:  config.String("settings.storage.minio.endpoint", ""),
			AccessKey: config.String("settings.storage.minio.access_key", ""),
			SecretKey: config.String("settings.storage.minio.secret_key", ""),
			Bucket:    config.String("settings.storage.minio.bucket", ""),
			Prefix:    strings.Trim(config.String("settings.storage.minio.prefix", "filestream"), "/"),
			Secure:    config.Bool("settings.storage.minio.secure", true),
		},
	}

	if settings.RetryBackoff < 0 {
		settings.RetryBackoff = 0
	}
	if settings.Timeout <= 0 {
		settings.Timeout = 300 * time.Second
	}

	return settings
}
