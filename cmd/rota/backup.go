package main

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dukerupert/rota/internal/backup"
	"github.com/dukerupert/rota/internal/config"
	"github.com/dukerupert/rota/internal/logging"
)

func newBackupManager(cfg *config.Config, logger *slog.Logger) *backup.Manager {
	b := cfg.Backup
	return backup.NewManager(backup.Config{
		Dir:        b.Dir,
		Passphrase: b.Passphrase,
		Keep:       b.Keep,
		S3: backup.S3Config{
			Endpoint:  b.S3Endpoint,
			Bucket:    b.S3Bucket,
			Region:    b.S3Region,
			AccessKey: b.S3AccessKey,
			SecretKey: b.S3SecretKey,
		},
	}, logger)
}

func newBackupCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Snapshot the database to the backup directory or bucket",
		Long: `Backup writes a consistent copy of the database. With ROTA_BACKUP_PASSPHRASE
set the copy is encrypted. With ROTA_BACKUP_S3_BUCKET and keys set it is
uploaded to S3-compatible storage instead of ROTA_BACKUP_DIR. Only the newest
ROTA_BACKUP_KEEP backups are kept.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup()
			if err != nil {
				return err
			}
			defer e.db.Close()

			res, err := newBackupManager(e.cfg, e.logger).Run(cmd.Context(), e.db)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
}

func newRestoreCommand() *cobra.Command {
	var (
		out   string
		force bool
		list  bool
	)

	cmd := &cobra.Command{
		Use:   "restore [name]",
		Short: "Restore a backup into the database path",
		Long: `Restore fetches a backup, decrypts it with ROTA_BACKUP_PASSPHRASE if needed,
checks its integrity and writes it to ROTA_DB_PATH (or --out).

Without a name the newest backup is restored. Stop the server first.
Use --list to see available backups, newest first.`,
		Args: cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)
			m := newBackupManager(cfg, logger)

			var name string
			if len(args) == 1 {
				name = args[0]
			}
			if list || name == "" {
				names, err := m.List(cmd.Context())
				if err != nil {
					return err
				}
				if list {
					for i := len(names) - 1; i >= 0; i-- {
						fmt.Fprintln(cmd.OutOrStdout(), names[i])
					}
					return nil
				}
				if len(names) == 0 {
					return backup.ErrNotFound
				}
				name = names[len(names)-1]
			}

			dst := out
			if dst == "" {
				dst = cfg.DBPath
			}
			if err := m.Restore(cmd.Context(), name, dst, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored %s to %s\n", name, dst)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Write to this path instead of ROTA_DB_PATH")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Replace an existing database file")
	cmd.Flags().BoolVar(&list, "list", false, "List available backups")
	return cmd
}
