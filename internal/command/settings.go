package command

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stolasapp/yaap/internal/storage"
)

func configureCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "configure KEY VALUE",
		Short: "Persist a settings row",
		Long: "Stores a settings row in the database. Persisted settings override the\n" +
			"configuration file at startup. Recognized keys: " +
			strings.Join(storage.SettingKeys, ", ") + ".",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) (runErr error) {
			_, logger, store, err := loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			defer func() {
				if err := store.Close(); err != nil {
					runErr = errors.Join(runErr, err)
				}
			}()

			key, value := args[0], args[1]
			if err = store.ConfigureSetting(cmd.Context(), key, value); err != nil {
				return err
			}
			logger.InfoContext(cmd.Context(), "setting stored", slog.String("key", key))
			return nil
		},
	}
}

func showCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show various information",
	}
	cmd.AddCommand(showSettingsCommand())
	return cmd
}

func showSettingsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "settings",
		Short: "Show persisted settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (runErr error) {
			_, _, store, err := loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			defer func() {
				if err := store.Close(); err != nil {
					runErr = errors.Join(runErr, err)
				}
			}()

			settings, err := store.Settings(cmd.Context())
			if err != nil {
				return err
			}
			keys := make([]string, 0, len(settings))
			for key := range settings {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			for _, key := range keys {
				fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", key, settings[key])
			}
			return nil
		},
	}
}
