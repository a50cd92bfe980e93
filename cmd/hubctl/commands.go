package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"controlhub/internal/pkg/validator"
	"controlhub/internal/platform/auth"
	"controlhub/internal/platform/config"
	"controlhub/internal/platform/database"
	"controlhub/internal/platform/models"
	"controlhub/internal/platform/repositories"
)

type app struct {
	configPath string
}

func newRootCommand() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:           "hubctl",
		Short:         "Operate the control hub database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&a.configPath, "config", "configs/config.yaml", "Path to config file")

	cmd.AddCommand(a.migrateCommand())
	cmd.AddCommand(a.userCommand())
	cmd.AddCommand(a.clientCommand())
	cmd.AddCommand(a.automationCommand())
	return cmd
}

// open loads config, connects and brings the schema up to date.
func (a *app) open(ctx context.Context) (*database.DB, []string, error) {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	applied, err := database.Migrate(ctx, db)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return db, applied, nil
}

func (a *app) migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SQL migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, applied, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
				return nil
			}
			for _, v := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", v)
			}
			return nil
		},
	}
}

type newUser struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	FullName string `json:"name" validate:"max=120"`
}

func (a *app) userCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "user", Short: "Manage dashboard users"}

	var in newUser
	var admin bool
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a user that can log in to the dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in.Email = strings.ToLower(strings.TrimSpace(in.Email))
			if err := validator.Struct(&in); err != nil {
				return err
			}

			hash, err := auth.HashPassword(in.Password)
			if err != nil {
				return err
			}

			db, _, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			role := models.RoleMember
			if admin {
				role = models.RoleAdmin
			}
			now := time.Now().Unix()
			user := &models.User{
				ID:           "usr_" + uuid.NewString(),
				Email:        in.Email,
				PasswordHash: hash,
				FullName:     in.FullName,
				Role:         role,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if err := repositories.NewUserRepository(db).Create(cmd.Context(), user); err != nil {
				return fmt.Errorf("create user: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), user.ID)
			return nil
		},
	}
	create.Flags().StringVar(&in.Email, "email", "", "Login email")
	create.Flags().StringVar(&in.Password, "password", "", "Initial password (min 8 characters)")
	create.Flags().StringVar(&in.FullName, "name", "", "Display name")
	create.Flags().BoolVar(&admin, "admin", false, "Grant the admin role")

	cmd.AddCommand(create)
	return cmd
}

func (a *app) clientCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "client", Short: "Manage clients"}

	var name string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a client automations can be grouped under",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			name = strings.TrimSpace(name)
			if name == "" {
				return fmt.Errorf("--name is required")
			}

			db, _, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			client := &models.Client{ID: "cli_" + uuid.NewString(), Name: name, CreatedAt: time.Now().Unix()}
			if err := repositories.NewClientRepository(db).Create(cmd.Context(), client); err != nil {
				return fmt.Errorf("create client: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), client.ID)
			return nil
		},
	}
	create.Flags().StringVar(&name, "name", "", "Client name")

	cmd.AddCommand(create)
	return cmd
}

type newAutomation struct {
	UserID   string `json:"user" validate:"required"`
	Name     string `json:"name" validate:"required,max=200"`
	ClientID string `json:"client"`
	RunURL   string `json:"run-url" validate:"omitempty,url"`
	StopURL  string `json:"stop-url" validate:"omitempty,url"`
	Status   string `json:"status" validate:"oneof=Running Stopped Error Stalled"`
}

func (a *app) automationCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "automation", Short: "Manage automations"}

	var in newAutomation
	create := &cobra.Command{
		Use:   "create",
		Short: "Register an n8n workflow for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validator.Struct(&in); err != nil {
				return err
			}

			db, _, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			now := time.Now().Unix()
			automation := &models.Automation{
				ID:             "aut_" + uuid.NewString(),
				UserID:         in.UserID,
				ClientID:       optional(in.ClientID),
				Name:           in.Name,
				Status:         models.AutomationStatus(in.Status),
				RunWebhookURL:  optional(in.RunURL),
				StopWebhookURL: optional(in.StopURL),
				CreatedAt:      now,
				UpdatedAt:      now,
			}
			if err := repositories.NewAutomationRepository(db).Create(cmd.Context(), automation); err != nil {
				return fmt.Errorf("create automation: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), automation.ID)
			return nil
		},
	}
	create.Flags().StringVar(&in.UserID, "user", "", "Owning user id")
	create.Flags().StringVar(&in.Name, "name", "", "Automation name")
	create.Flags().StringVar(&in.ClientID, "client", "", "Client id")
	create.Flags().StringVar(&in.RunURL, "run-url", "", "n8n webhook that starts the workflow")
	create.Flags().StringVar(&in.StopURL, "stop-url", "", "n8n webhook that stops the workflow")
	create.Flags().StringVar(&in.Status, "status", string(models.StatusStopped), "Initial status")

	cmd.AddCommand(create)
	return cmd
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
