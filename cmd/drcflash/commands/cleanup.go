package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/drc-tools/drcflash/internal/config"
	"github.com/drc-tools/drcflash/pkg/db"
	"github.com/drc-tools/drcflash/pkg/errors"
)

var (
	cleanupAll      bool
	cleanupSession  string
	cleanupOrphaned bool
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove staged and downloaded images",
	Long: `Remove files left behind by update sessions:
  --all              Remove the files and journal of every session
  --session <id>     Remove the files and journal of one session
  --orphaned         Remove staged or downloaded files no session owns`,
	RunE: runCleanup,
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
	cleanupCmd.Flags().BoolVar(&cleanupAll, "all", false, "Clean all sessions")
	cleanupCmd.Flags().StringVar(&cleanupSession, "session", "", "Clean one session by ID")
	cleanupCmd.Flags().BoolVar(&cleanupOrphaned, "orphaned", false, "Clean orphaned files")
}

func runCleanup(cmd *cobra.Command, args []string) error {
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

	switch {
	case cleanupAll:
		return cleanupAllSessions(repo, cfg)
	case cleanupSession != "":
		return cleanupOneSession(repo, cfg, cleanupSession)
	case cleanupOrphaned:
		n, err := cleanupOrphanedFiles(repo, cfg)
		if err != nil {
			return err
		}
		fmt.Printf("✅ Removed %d orphaned directories\n", n)
		return nil
	default:
		return fmt.Errorf("must specify --all, --session, or --orphaned")
	}
}

func cleanupAllSessions(repo *db.Repository, cfg *config.Config) error {
	sessions, err := repo.List()
	if err != nil {
		return errors.Wrap(err, "list failed")
	}

	fmt.Printf("🧹 Cleaning up %d sessions...\n", len(sessions))

	for _, s := range sessions {
		if err := cleanupSessionFiles(repo, cfg, s.ID); err != nil {
			fmt.Printf("⚠️  Failed to clean %s: %v\n", s.ID, err)
		} else {
			fmt.Printf("✅ Cleaned: %s\n", s.ID)
		}
	}

	return nil
}

func cleanupOneSession(repo *db.Repository, cfg *config.Config, id string) error {
	s, err := repo.Get(id)
	if err != nil {
		return errors.Wrap(err, "get failed")
	}
	if s == nil {
		return fmt.Errorf("session %s not found", id)
	}

	if err := cleanupSessionFiles(repo, cfg, id); err != nil {
		return errors.Wrap(err, "cleanup failed")
	}

	fmt.Printf("✅ Cleaned: %s\n", id)
	return nil
}

// cleanupSessionFiles removes the session's staged and downloaded copies, then its journal
func cleanupSessionFiles(repo *db.Repository, cfg *config.Config, id string) error {
	for _, dir := range sessionDirs(cfg, id) {
		if err := os.RemoveAll(dir); err != nil {
			return errors.Wrapf(err, "failed to remove %s", dir)
		}
	}

	if err := repo.Delete(id); err != nil {
		return errors.Wrap(err, "failed to delete journal")
	}
	return nil
}

func sessionDirs(cfg *config.Config, id string) []string {
	return []string{
		filepath.Join(cfg.StagingDir, id),
		filepath.Join(cfg.WorkDir, "downloads", id),
	}
}

// cleanupOrphanedFiles removes per-session directories with no journal row
func cleanupOrphanedFiles(repo *db.Repository, cfg *config.Config) (int, error) {
	fmt.Println("🔍 Scanning for orphaned files...")

	removed := 0
	for _, parent := range []string{cfg.StagingDir, filepath.Join(cfg.WorkDir, "downloads")} {
		entries, err := os.ReadDir(parent)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return removed, errors.Wrapf(err, "failed to read %s", parent)
		}

		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}

			s, err := repo.Get(entry.Name())
			if err != nil {
				return removed, errors.Wrap(err, "get failed")
			}
			if s != nil {
				continue
			}

			orphan := filepath.Join(parent, entry.Name())
			if err := os.RemoveAll(orphan); err != nil {
				fmt.Printf("⚠️  Failed to remove %s: %v\n", orphan, err)
				continue
			}
			fmt.Printf("🗑️  Removed orphaned directory: %s\n", orphan)
			removed++
		}
	}

	return removed, nil
}
