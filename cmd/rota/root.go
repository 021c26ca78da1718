package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	firebase "firebase.google.com/go/v4"
	"github.com/spf13/cobra"
	"google.golang.org/api/option"

	"github.com/dukerupert/rota/internal/auth"
	"github.com/dukerupert/rota/internal/config"
	"github.com/dukerupert/rota/internal/database"
	"github.com/dukerupert/rota/internal/logging"
	"github.com/dukerupert/rota/internal/middleware"
	"github.com/dukerupert/rota/internal/push"
	"github.com/dukerupert/rota/internal/server"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "rota",
		Short:         "Shared household chore rotations",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newServeCommand(),
		newSweepCommand(),
		newVAPIDKeysCommand(),
		newBackupCommand(),
		newRestoreCommand(),
	)
	return root
}

// env is the state every command that touches the database shares.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *sql.DB
}

func setup() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return &env{cfg: cfg, logger: logger, db: db}, nil
}

// buildServer resolves the optional integrations from configuration and
// assembles the server. requireIdentity is false for commands that never
// serve HTTP.
func (e *env) buildServer(ctx context.Context, requireIdentity bool) (*server.Server, error) {
	cfg := e.cfg
	if requireIdentity {
		if err := cfg.ValidateServe(); err != nil {
			return nil, err
		}
	}

	opts := server.Options{
		Location:  cfg.Location,
		SweepHour: cfg.SweepHour,
	}

	hash, err := middleware.HashSecret(cfg.SweepSecret)
	if err != nil {
		return nil, err
	}
	opts.SweepSecretHash = hash
	if hash == nil {
		e.logger.Warn("ROTA_SWEEP_SECRET not set, cron endpoint disabled")
	}

	if cfg.FirebaseCredentials != "" {
		app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(cfg.FirebaseCredentials))
		if err != nil {
			return nil, fmt.Errorf("init firebase: %w", err)
		}
		fcm, err := push.NewFCMClient(ctx, app, e.logger)
		if err != nil {
			return nil, err
		}
		opts.FCM = fcm

		verifier, err := auth.NewFirebaseVerifier(ctx, app)
		if err != nil {
			return nil, err
		}
		opts.Verifier = verifier
	}
	if opts.Verifier == nil && cfg.DevAuth {
		e.logger.Warn("development auth enabled, bearer tokens are trusted as user ids")
		opts.Verifier = auth.HeaderVerifier{}
	}

	pushCfg := push.Config{
		VAPIDPublicKey:  cfg.VAPIDPublicKey,
		VAPIDPrivateKey: cfg.VAPIDPrivateKey,
		Subscriber:      cfg.VAPIDSubscriber,
	}
	if pushCfg.Enabled() {
		opts.WebPush = push.NewService(pushCfg)
	} else {
		e.logger.Info("VAPID keys not configured, web push disabled")
	}

	return server.New(e.db, opts, e.logger), nil
}
