// Package config loads the yaml configuration into the shared go-config store.
package config

import (
	"path/filepath"

	gconfig "github.com/Laisky/go-config/v2"
	"github.com/Laisky/zap"

	"github.com/Laisky/filestream/library/log"
)

// LoadFromFile loads cfgPath into gconfig.S, panics on failure.
func LoadFromFile(cfgPath string) {
	gconfig.S.Set("cfg_dir", filepath.Dir(cfgPath))
	if err := gconfig.S.LoadFromFile(cfgPath); err != nil {
		log.Logger.Panic("load configuration",
			zap.Error(err),
			zap.String("config", cfgPath))
	}

	log.Logger.Info("load configuration",
		zap.String("config", cfgPath))
}
