package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/spf13/cobra"

	"github.com/stolasapp/yaap/internal/directory"
)

const demoSeedUsers = 3

func initCommand() *cobra.Command {
	var demo bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the database",
		Long: "Creates the database file and brings its schema up to date. With --demo,\n" +
			"seeds the demo accounts 'tester' and 'special_tester' (password 'pw') and a\n" +
			"few generated users.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (runErr error) {
			// Opening the store runs the migrations.
			_, logger, store, err := loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			defer func() {
				if err := store.Close(); err != nil {
					runErr = errors.Join(runErr, err)
				}
			}()

			logger.InfoContext(cmd.Context(), "database initialized")
			if !demo {
				return nil
			}

			users := directory.New(store)
			if err = seedDemoUsers(cmd.Context(), users); err != nil {
				return err
			}
			logger.InfoContext(cmd.Context(), "demo users seeded")
			return nil
		},
	}
	cmd.Flags().BoolVar(&demo, "demo", false, "seed demo users")
	return cmd
}

func seedDemoUsers(ctx context.Context, users *directory.Directory) error {
	if _, err := users.CreateUser(ctx, "tester", "pw", "tester@example.net"); err != nil {
		return err
	}
	if _, err := users.CreateUser(ctx,
		"special_tester", "pw", "special_tester@example.net", "special"); err != nil {
		return err
	}

	faker := gofakeit.New(0)
	for i := 0; i < demoSeedUsers; i++ {
		username := faker.Username()
		_, err := users.CreateUser(ctx,
			username,
			faker.Password(true, true, true, false, false, 12),
			faker.Email(),
			faker.RandomString([]string{"testers", "happy", "special"}),
		)
		if err != nil {
			return fmt.Errorf("failed to seed user %q: %w", username, err)
		}
		slog.Debug("seeded demo user", slog.String("username", username))
	}
	return nil
}
