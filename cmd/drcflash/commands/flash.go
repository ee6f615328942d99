package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/drc-tools/drcflash/pkg/update"
)

var (
	flashKind   string
	flashSource string
)

var flashCmd = &cobra.Command{
	Use:   "flash",
	Short: "Flash a language pack or firmware image to the DRC",
	Long: `Stage an image and flash it to the DRC:
  --kind lang        language pack (lang.bin)
  --kind firmware    main firmware (firmware.bin, header checked)
  --source <path>    read the image from a file or s3://bucket/key instead of source-dir`,
	RunE: runFlash,
}

func init() {
	rootCmd.AddCommand(flashCmd)
	flashCmd.Flags().StringVar(&flashKind, "kind", "lang", "Update kind (lang or firmware)")
	flashCmd.Flags().StringVar(&flashSource, "source", "", "Image path or s3://bucket/key")
}

func runFlash(cmd *cobra.Command, args []string) error {
	kind, err := update.KindByName(flashKind)
	if err != nil {
		return err
	}
	if !kind.NeedsImage() {
		return fmt.Errorf("kind %q does not flash an image, use the %s command", kind.Name, kind.Name)
	}

	return runSession(cmd.Context(), kind, flashSource)
}
