package command

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/stolasapp/yaap/internal/directory"
	"github.com/stolasapp/yaap/internal/sec"
	"github.com/stolasapp/yaap/internal/session"
)

func userCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "User commands",
	}
	cmd.AddCommand(
		userCreateCommand(),
		userRemoveCommand(),
		userUpdateCommand(),
		userLogoutCommand(),
	)
	return cmd
}

func userCreateCommand() *cobra.Command {
	var groups []string
	var password string
	cmd := &cobra.Command{
		Use:   "create NAME EMAIL",
		Short: "Create user",
		Long: "Creates a user with the provided username and email. Without --password a\n" +
			"random one is generated and printed.",
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

			name, email := args[0], args[1]
			generated := false
			if password == "" {
				if password, err = sec.NewSessionKey(); err != nil {
					return err
				}
				password = password[:12]
				generated = true
			}

			users := directory.New(store)
			if _, err = users.CreateUser(cmd.Context(), name, password, email, groups...); err != nil {
				return err
			}

			logger.InfoContext(cmd.Context(), "created user",
				slog.String("name", name),
				slog.Any("groups", groups),
			)
			if generated {
				fmt.Fprintf(cmd.OutOrStdout(), "Created user %q with password %q\n", name, password)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&groups, "group", "g", nil, "group membership, repeatable")
	cmd.Flags().StringVar(&password, "password", "", "password (generated when omitted)")
	return cmd
}

func userRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove NAME",
		Short: "Remove user",
		Long: "Permanently removes the user, its memberships, and any group left without\n" +
			"members. This operation is permanent and irreversible.",
		Args: cobra.ExactArgs(1),
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

			name := args[0]
			logger = logger.With(slog.String("name", name))
			resp, err := prompt("Are you sure you want to remove this user? [y|N] ", false)
			if !bytes.Equal(resp, []byte{'y'}) || err != nil {
				logger.InfoContext(cmd.Context(), "aborted user removal")
				return err
			}

			users := directory.New(store)
			if err = users.RemoveUser(cmd.Context(), name); err != nil {
				return err
			}
			logger.InfoContext(cmd.Context(), "user removed")
			return nil
		},
	}
}

func userUpdateCommand() *cobra.Command {
	var username, email string
	var groups []string
	var setPassword, setGroups bool
	cmd := &cobra.Command{
		Use:   "update NAME",
		Short: "Update user",
		Long: "Updates one or more user attributes. --groups replaces the full membership\n" +
			"set; --password prompts for the new password.",
		Args: cobra.ExactArgs(1),
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

			name := args[0]
			users := directory.New(store)

			var updates []directory.Update
			if username != "" {
				updates = append(updates, directory.SetUsername(username))
			}
			if email != "" {
				updates = append(updates, directory.SetEmail(email))
			}
			if setGroups {
				updates = append(updates, directory.SetGroups(groups...))
			}
			if setPassword {
				passwd, err := prompt("password: ", true)
				if err != nil {
					return err
				}
				updates = append(updates, directory.SetPassword(string(passwd)))
			}
			if len(updates) == 0 {
				return errors.New("nothing to update")
			}

			for _, update := range updates {
				if err := users.UpdateUser(cmd.Context(), name, update); err != nil {
					return err
				}
			}
			logger.InfoContext(cmd.Context(), "user updated", slog.String("name", name))
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "new username")
	cmd.Flags().StringVar(&email, "email", "", "new email")
	cmd.Flags().StringSliceVar(&groups, "groups", nil, "target group set, repeatable")
	cmd.Flags().BoolVar(&setGroups, "set-groups", false, "replace the membership set with --groups")
	cmd.Flags().BoolVar(&setPassword, "password", false, "prompt for a new password")
	return cmd
}

func userLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout NAME",
		Short: "Revoke the user's session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (runErr error) {
			cfg, logger, store, err := loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			defer func() {
				if err := store.Close(); err != nil {
					runErr = errors.Join(runErr, err)
				}
			}()

			sessions := session.NewManager(store, cfg.SessionWindow.Std())
			if err = sessions.Logout(cmd.Context(), args[0]); err != nil {
				return err
			}
			logger.InfoContext(cmd.Context(), "user logged out", slog.String("name", args[0]))
			return nil
		},
	}
}
