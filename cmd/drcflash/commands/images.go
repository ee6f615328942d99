package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/drc-tools/drcflash/internal/config"
	"github.com/drc-tools/drcflash/pkg/errors"
	"github.com/drc-tools/drcflash/pkg/storage"
)

var imagesCmd = &cobra.Command{
	Use:   "images <s3://bucket/prefix>",
	Short: "List firmware and language pack images in S3",
	Args:  cobra.ExactArgs(1),
	RunE:  runImages,
}

func init() {
	rootCmd.AddCommand(imagesCmd)
}

func runImages(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "config load failed")
	}

	loc, err := storage.ParseURI(args[0])
	if err != nil {
		return err
	}

	client, err := storage.NewClient(cmd.Context(), cfg.S3Region)
	if err != nil {
		return errors.Wrap(err, "S3 client failed")
	}

	keys, err := client.ListObjects(cmd.Context(), loc)
	if err != nil {
		return err
	}

	if len(keys) == 0 {
		fmt.Println("No images found")
		return nil
	}

	for _, key := range keys {
		fmt.Println(storage.Location{Bucket: loc.Bucket, Key: key})
	}
	return nil
}
