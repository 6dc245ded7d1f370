package cmd

import (
	"fmt"

	gcmd "github.com/Laisky/go-utils/v6/cmd"
	"github.com/Laisky/zap"
	"github.com/spf13/cobra"

	"github.com/Laisky/filestream/library/log"
)

var checkConfigCMD = &cobra.Command{
	Use:   "check-config",
	Short: "validate the configuration file and exit",
	Args:  gcmd.NoExtraArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if err := initialize(cmd.Context(), cmd); err != nil {
			log.Logger.Panic("check config", zap.Error(err))
		}
		fmt.Println("configuration ok")
	},
}

func init() {
	rootCMD.AddCommand(checkConfigCMD)
}
