// Package cmd command line
package cmd

import (
	"context"
	"fmt"

	"github.com/Laisky/errors/v2"
	gconfig "github.com/Laisky/go-config/v2"
	gcmd "github.com/Laisky/go-utils/v6/cmd"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	"github.com/spf13/cobra"

	"github.com/Laisky/filestream/library/config"
	"github.com/Laisky/filestream/library/log"
)

var rootCMD = &cobra.Command{
	Use:   "filestream",
	Short: "filestream",
	Long:  `telegram bot that turns uploaded files into shareable links`,
	Args:  gcmd.NoExtraArgs,
}

// initialize loads flags, configuration and logger, then validates the configuration.
func initialize(ctx context.Context, cmd *cobra.Command) error {
	if err := gconfig.S.BindPFlags(cmd.Flags()); err != nil {
		return errors.Wrap(err, "bind pflags")
	}

	setupSettings(ctx)
	if err := setupLogger(ctx); err != nil {
		return errors.Wrap(err, "setup logger")
	}

	if err := validateStartupConfig(); err != nil {
		return errors.Wrap(err, "validate config")
	}

	return nil
}

func setupSettings(_ context.Context) {
	// mode
	if gconfig.S.GetBool("debug") {
		fmt.Println("run in debug mode")
		gconfig.S.Set("log-level", "debug")
	} else { // prod mode
		fmt.Println("run in prod mode")
	}

	config.LoadFromFile(gconfig.S.GetString("config"))
}

func setupLogger(_ context.Context) error {
	lvl := gconfig.S.GetString("log-level")
	if err := log.Logger.ChangeLevel(logSDK.Level(lvl)); err != nil {
		return errors.Wrapf(err, "change log level to %q", lvl)
	}

	return nil
}

func init() {
	rootCMD.PersistentFlags().Bool("debug", false, "run in debug mode")
	rootCMD.PersistentFlags().StringP("config", "c", "/etc/filestream/settings.yml", "config file path")
	rootCMD.PersistentFlags().String("log-level", "info", "`debug/info/error`")
}

// Execute execute root command
func Execute() {
	if err := rootCMD.Execute(); err != nil {
		log.Logger.Panic("start", zap.Error(err))
	}
}
