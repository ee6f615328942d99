package commands

import (
	"github.com/spf13/cobra"

	"github.com/drc-tools/drcflash/pkg/update"
)

var formatCmd = &cobra.Command{
	Use:   "format",
	Short: "Erase all DRC settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSession(cmd.Context(), update.Format, "")
	},
}

func init() {
	rootCmd.AddCommand(formatCmd)
}
