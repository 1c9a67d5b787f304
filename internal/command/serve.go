package command

import (
	"errors"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/stolasapp/yaap/internal/app"
	"github.com/stolasapp/yaap/internal/authz"
	"github.com/stolasapp/yaap/internal/directory"
	"github.com/stolasapp/yaap/internal/server"
	"github.com/stolasapp/yaap/internal/session"
)

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "serve the auth web app",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (runErr error) {
			cfg, logger, store, err := loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			defer func() {
				if err := store.Close(); err != nil {
					runErr = errors.Join(runErr, err)
				}
			}()

			grp, ctx := errgroup.WithContext(cmd.Context())

			sessions := session.NewManager(store, cfg.SessionWindow.Std())
			users := directory.New(store)
			auth := authz.New(sessions, authz.Config{
				CookieKey:    cfg.CookieKey,
				CookieSecret: cfg.CookieSecret,
				LoginPath:    cfg.Routes.Login,
			})
			appServer := app.New(cfg, logger, auth, sessions, users)

			listener, err := server.Listen(ctx, cfg.WebAddress)
			if err != nil {
				return err
			}
			logger.InfoContext(ctx,
				"starting app server...",
				slog.String("address", cfg.WebAddress),
			)
			server.Serve(ctx, grp, appServer.Server, listener)
			return grp.Wait()
		},
	}
}
