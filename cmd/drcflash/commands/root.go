package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "drcflash",
	Short: "DRC firmware and language pack flasher",
	Long:  `Stages firmware and language pack images, flashes them to a Wii U GamePad (DRC) and brings it back online.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("sqlite-path", ".artifacts/journal.db", "SQLite journal path")
	flags.String("fsm-db-path", ".artifacts/fsm", "FSM BoltDB directory")
	flags.String("work-dir", "/tmp/drcflash", "Working directory for downloads and logs")
	flags.String("source-dir", ".", "Directory holding lang.bin and firmware.bin")
	flags.String("staging-dir", "/tmp/drcflash/staging", "Device-writable staging directory")
	flags.String("s3-region", "us-east-1", "S3 region")
	flags.Int("destination", 0, "Target DRC (0 or 1)")
	flags.Int64("max-image-size", 64*1024*1024, "Max image size in bytes")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.Int("fsm-max-retries", 5, "Retries per staging step before giving up")
	flags.Uint32("sim-version", 0x190c0117, "Running firmware version reported by the simulated DRC")
	flags.Duration("sim-step", 300*time.Millisecond, "Simulated transfer time per 10% of progress")

	for _, name := range []string{
		"sqlite-path", "fsm-db-path", "work-dir", "source-dir", "staging-dir",
		"s3-region", "destination", "max-image-size", "metrics-addr", "log-level",
		"fsm-max-retries", "sim-version", "sim-step",
	} {
		viper.BindPFlag(name, flags.Lookup(name))
	}
}
