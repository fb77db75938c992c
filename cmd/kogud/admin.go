package main

import (
	"fmt"

	"github.com/spf13/cobra"

	kogu "github.com/nguyen10t2/IT3180-20251-Group-6-sub001"
	"github.com/nguyen10t2/IT3180-20251-Group-6-sub001/password"
	"github.com/nguyen10t2/IT3180-20251-Group-6-sub001/store/sqlite"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			// Open applies migrations; nothing else to do.
			store, err := sqlite.Open(cfg.SQLitePath)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			fmt.Println("migrations applied:", cfg.SQLitePath)
			return nil
		},
	}
}

func newSeedManagerCmd() *cobra.Command {
	var email, pass, name string

	cmd := &cobra.Command{
		Use:   "seed-manager",
		Short: "Create the initial manager account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if email == "" || pass == "" {
				return fmt.Errorf("--email and --password are required")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			store, err := sqlite.Open(cfg.SQLitePath)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			defaults := kogu.DefaultConfig().Password
			hasher, err := password.NewArgon2(password.Config{
				Memory:      defaults.Memory,
				Time:        defaults.Time,
				Parallelism: defaults.Parallelism,
				SaltLength:  defaults.SaltLength,
				KeyLength:   defaults.KeyLength,
			})
			if err != nil {
				return err
			}
			hash, err := hasher.Hash(pass)
			if err != nil {
				return err
			}

			user, err := store.CreateUser(cmd.Context(), kogu.CreateUserInput{
				Email:        email,
				PasswordHash: hash,
				FullName:     name,
				Role:         kogu.RoleManager,
				Status:       kogu.AccountActive,
			})
			if err != nil {
				return err
			}
			if err := store.MarkEmailVerified(cmd.Context(), user.UserID); err != nil {
				return err
			}

			fmt.Println("manager account created:", user.UserID)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "manager email")
	cmd.Flags().StringVar(&pass, "password", "", "manager password")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	return cmd
}
