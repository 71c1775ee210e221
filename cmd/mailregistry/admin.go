package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/songzhibin97/mailregistry/internal/registry/admin"
	"github.com/songzhibin97/mailregistry/internal/registry/auth"
	"github.com/songzhibin97/mailregistry/internal/registry/server"
	"github.com/songzhibin97/mailregistry/pkg/log"
)

type adminCreateOptions struct {
	username  string
	password  string
	firstName string
	lastName  string
}

func newAdminCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage administrator accounts",
	}

	create := &adminCreateOptions{}
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create an administrator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if cfg.Database.Type == "memory" {
				log.Default().Warn("creating an administrator in the in-memory store, it will not outlive this process")
			}

			repo, err := server.OpenRepository(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer repo.Close()

			m := admin.NewManager(repo, auth.NewPasswordHasher(cfg.Auth.BcryptCost))
			a, err := m.Create(cmd.Context(), admin.CreateInput{
				Username:  create.username,
				Password:  create.password,
				FirstName: create.firstName,
				LastName:  create.lastName,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "administrator %q created with id %d\n", a.Username, a.ID)
			return nil
		},
	}
	createCmd.Flags().StringVar(&create.username, "username", "", "login name")
	createCmd.Flags().StringVar(&create.password, "password", "", "password, at least 8 characters")
	createCmd.Flags().StringVar(&create.firstName, "first-name", "", "first name")
	createCmd.Flags().StringVar(&create.lastName, "last-name", "", "last name")
	_ = createCmd.MarkFlagRequired("username")
	_ = createCmd.MarkFlagRequired("password")

	cmd.AddCommand(createCmd)
	return cmd
}
