package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/redpotato/backend/internal/app"
	"github.com/redpotato/backend/internal/apperrors"
	"github.com/redpotato/backend/internal/models"
)

type demoClient struct {
	name   string
	plate  string
	phone  string
	email  string
	inDays int
}

// Demo fleet covering the reminder window edges: inside it, outside it and expired.
var demoClients = []demoClient{
	{"Popescu Ion", "B-123-ABC", "+40722111222", "ion.popescu@example.com", 3},
	{"Ionescu Maria", "B-456-DEF", "+40722333444", "maria.ionescu@example.com", 5},
	{"Dumitrescu George", "B-789-GHI", "+40722555666", "george.dumitrescu@example.com", 10},
	{"Popa Ana", "B-321-JKL", "+40722777888", "ana.popa@example.com", 30},
	{"Stanescu Mihai", "B-654-MNO", "+40722999000", "mihai.stanescu@example.com", -2},
}

type demoUser struct {
	username string
	email    string
	password string
	role     string
}

// Development logins. Change the passwords before exposing the API.
var demoUsers = []demoUser{
	{"admin", "admin@serviceauto.ro", "admin123", models.RoleAdmin},
	{"operator", "operator@serviceauto.ro", "operator123", models.RoleOperator},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert demo users and clients for development",
	Long: `Insert an admin and an operator login plus a small demo fleet whose ITP
expiries fall inside, outside and before the reminder window. Users and plates
that already exist are left untouched.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			for _, d := range demoUsers {
				if err := createUser(ctx, a, d.username, d.email, d.password, d.role); err != nil {
					return err
				}
			}

			now := time.Now().In(a.Location)
			created := 0
			for _, d := range demoClients {
				client := &models.Client{
					Name:              d.name,
					LicensePlate:      d.plate,
					PhoneNumber:       d.phone,
					Email:             d.email,
					ITPExpirationDate: now.AddDate(0, 0, d.inDays),
					Active:            true,
				}
				err := a.Clients.Create(ctx, client)
				switch {
				case errors.Is(err, apperrors.ErrDuplicatePlate):
					fmt.Printf("exists   %s %s\n", d.plate, d.name)
					continue
				case err != nil:
					return fmt.Errorf("seed %s: %w", d.plate, err)
				}
				created++
				fmt.Printf("created  %s %s (ITP in %d days)\n", client.LicensePlate, client.Name, d.inDays)
			}
			fmt.Printf("Seeded %d of %d demo clients\n", created, len(demoClients))
			return nil
		})
	},
}

// createUser adds a login, reporting an existing username or email instead of failing.
func createUser(ctx context.Context, a *app.App, username, email, password, role string) error {
	user := &models.User{Username: username, Email: email, Role: role}
	if err := user.SetPassword(password); err != nil {
		return err
	}
	err := a.Users.Create(ctx, user)
	switch {
	case errors.Is(err, apperrors.ErrDuplicateUser):
		fmt.Printf("exists   user %s\n", username)
		return nil
	case err != nil:
		return fmt.Errorf("create user %s: %w", username, err)
	}
	fmt.Printf("created  user %s (%s)\n", username, role)
	return nil
}

var addUserCmd = &cobra.Command{
	Use:   "adduser <username> <email>",
	Short: "Create an API login",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		role, _ := cmd.Flags().GetString("role")
		password, _ := cmd.Flags().GetString("password")
		if role != models.RoleAdmin && role != models.RoleOperator {
			return fmt.Errorf("invalid role %q (use %s or %s)", role, models.RoleAdmin, models.RoleOperator)
		}
		if len(password) < 6 {
			return errors.New("password must have at least 6 characters")
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			return createUser(ctx, a, args[0], args[1], password, role)
		})
	},
}

func init() {
	addUserCmd.Flags().String("role", models.RoleOperator, "user role (admin, operator)")
	addUserCmd.Flags().String("password", os.Getenv("ITPCTL_PASSWORD"), "login password (default $ITPCTL_PASSWORD)")
}
