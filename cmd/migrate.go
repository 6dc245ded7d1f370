package cmd

import (
	"context"

	"github.com/Laisky/errors/v2"
	gcmd "github.com/Laisky/go-utils/v6/cmd"
	"github.com/Laisky/zap"
	"github.com/spf13/cobra"

	"github.com/Laisky/filestream/internal/files"
	"github.com/Laisky/filestream/internal/quota"
	"github.com/Laisky/filestream/library/log"
)

var migrateCMD = &cobra.Command{
	Use:   "migrate",
	Short: "migrate",
	Long:  `create the mongodb indexes of users and files`,
	Args:  gcmd.NoExtraArgs,
	PreRun: func(cmd *cobra.Command, args []string) {
		if err := initialize(cmd.Context(), cmd); err != nil {
			log.Logger.Panic("init", zap.Error(err))
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		if err := migrate(cmd.Context()); err != nil {
			log.Logger.Panic("migrate", zap.Error(err))
		}
		log.Logger.Info("migrate done")
	},
}

func migrate(ctx context.Context) error {
	if driver := dbDriverFromConfig(); driver != dbDriverMongo {
		return errors.Errorf("nothing to migrate for db driver %q", driver)
	}

	db, err := connectMongo(ctx)
	if err != nil {
		return errors.WithStack(err)
	}
	defer func() {
		if err := db.Close(context.Background()); err != nil {
			log.Logger.Warn("close mongo", zap.Error(err))
		}
	}()

	if _, err = quota.NewMongoStore(ctx, db); err != nil {
		return errors.Wrap(err, "migrate users")
	}
	if _, err = files.NewMongoStore(ctx, db); err != nil {
		return errors.Wrap(err, "migrate files")
	}

	return nil
}

func init() {
	rootCMD.AddCommand(migrateCMD)
}
