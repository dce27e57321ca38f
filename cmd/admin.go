/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/indicadores/apiserver/config"
	"github.com/indicadores/apiserver/internal/db"
	"github.com/indicadores/apiserver/internal/services"
	"github.com/indicadores/apiserver/internal/store"
)

var (
	adminName  string
	adminEmail string
)

// adminCmd groups operator commands for accounts.
var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Manage administrator accounts",
}

var adminCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an administrator account",
	Long: `Create an administrator account directly in the database. The password
is read from the ADMIN_PASSWORD environment variable. Usage:

	ADMIN_PASSWORD=... indicadores admin create --name "Ops" --email ops@example.com
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		password := os.Getenv("ADMIN_PASSWORD")
		if password == "" {
			return errors.New("ADMIN_PASSWORD is required")
		}

		cfg := config.LoadConfig()
		logger := config.SetupLogger(cfg)

		conn, err := db.Open(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer conn.Close()

		users := services.NewUserService(store.NewUserRepository(conn))
		user, err := users.SeedAdministrator(cmd.Context(), adminName, adminEmail, password)
		if err != nil {
			return fmt.Errorf("create administrator: %w", err)
		}
		logger.Info("administrator created", "id", user.ID, "email", user.Email)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(adminCmd)
	adminCmd.AddCommand(adminCreateCmd)

	adminCreateCmd.Flags().StringVar(&adminName, "name", "Administrator", "display name")
	adminCreateCmd.Flags().StringVar(&adminEmail, "email", "", "login e-mail")
	_ = adminCreateCmd.MarkFlagRequired("email")
}
