package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/drc-tools/drcflash/internal/config"
	"github.com/drc-tools/drcflash/pkg/db"
	"github.com/drc-tools/drcflash/pkg/errors"
)

var historySession string

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List update sessions, or the phase log of one session",
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().StringVar(&historySession, "session", "", "Show the phase log of this session")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "config load failed")
	}

	if err := ensureDirectories(cfg.SQLitePath); err != nil {
		return err
	}

	repo, err := db.NewRepository(cfg.SQLitePath)
	if err != nil {
		return errors.Wrap(err, "db init failed")
	}
	defer repo.Close()

	if historySession != "" {
		return printPhaseLog(repo, historySession)
	}

	sessions, err := repo.List()
	if err != nil {
		return errors.Wrap(err, "list failed")
	}

	if len(sessions) == 0 {
		fmt.Println("No sessions found")
		return nil
	}

	fmt.Printf("%-36s %-9s %-8s %-9s %-5s %-20s %s\n", "SESSION", "KIND", "STATUS", "PHASE", "PCT", "CREATED", "ERROR")
	fmt.Println("--------------------------------------------------------------------------------------------------------------")

	for _, s := range sessions {
		fmt.Printf("%-36s %-9s %-8s %-9s %-5d %-20s %s\n",
			s.ID, s.Kind, s.Status, s.Phase, s.Progress, s.CreatedAt, dash(s.ErrorMessage))
	}

	return nil
}

func printPhaseLog(repo *db.Repository, id string) error {
	s, err := repo.Get(id)
	if err != nil {
		return errors.Wrap(err, "get failed")
	}
	if s == nil {
		return fmt.Errorf("session %s not found", id)
	}

	fmt.Printf("Session:  %s (%s)\n", s.ID, s.Kind)
	fmt.Printf("Source:   %s\n", dash(s.Source))
	fmt.Printf("Staged:   %s\n", dash(s.StagedPath))
	fmt.Printf("SHA256:   %s\n", dash(s.SHA256))
	fmt.Printf("Version:  %s\n\n", dash(s.ImageVersion))

	entries, err := repo.Phases(id)
	if err != nil {
		return errors.Wrap(err, "phase log failed")
	}

	fmt.Printf("%-20s %-9s %-5s %s\n", "RECORDED", "PHASE", "PCT", "MESSAGE")
	for _, e := range entries {
		fmt.Printf("%-20s %-9s %-5d %s\n", e.RecordedAt, e.Phase, e.Progress, dash(e.Message))
	}

	return nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
