package ingest

import (
	"time"

	"github.com/Laisky/filestream/internal/retention"
	"github.com/Laisky/filestream/library/config"
)

// Settings configures the pipeline.
type Settings struct {
	// Retention is the TTL of ingested files, zero or negative keeps them forever.
	Retention time.Duration
	// CleanupTimeout bounds removal of orphaned blobs and notifications.
	CleanupTimeout time.Duration
}

// LoadSettingsFromConfig reads the pipeline settings.
func LoadSettingsFromConfig() Settings {
	settings := Settings{
		Retention:      retention.DelayFromConfig(),
		CleanupTimeout: time.Duration(config.Int("settings.ingest.cleanup_timeout_seconds", 30)) * time.Second,
	}
	if settings.CleanupTimeout <= 0 {
		settings.CleanupTimeout = 30 * time.Second
	}

	return settings
}
