package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/redpotato/backend/internal/app"
	"github.com/redpotato/backend/internal/config"
	"github.com/redpotato/backend/internal/database"
	"github.com/redpotato/backend/internal/middleware"
	"github.com/redpotato/backend/internal/models"
	"github.com/redpotato/backend/internal/services"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the reminder job now",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			summary := a.Scheduler.RunNow(ctx)
			if outputFmt == "json" {
				if err := printJSON(summary); err != nil {
					return err
				}
			} else {
				printSummary(summary)
			}
			if !summary.Success {
				return errors.New(summary.Error)
			}
			return nil
		})
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete notifications older than the retention period",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			deleted, err := a.Scheduler.RunCleanup(ctx)
			if err != nil {
				return err
			}
			if outputFmt == "json" {
				return printJSON(map[string]int64{"deleted": deleted})
			}
			fmt.Printf("Deleted %d notification(s) created before %s\n",
				deleted, services.RetentionCutoff(time.Now().In(a.Location)).Format(time.RFC3339))
			return nil
		})
	},
}

var retryCmd = &cobra.Command{
	Use:   "retry <notification-id>",
	Short: "Re-send a notification on its original channel",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid notification id %q: %w", args[0], err)
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			res := a.Manager.Retry(ctx, id)
			if outputFmt == "json" {
				if err := printJSON(res); err != nil {
					return err
				}
			} else {
				printChannelResult(res)
			}
			if !res.Success {
				return fmt.Errorf("retry failed: %s", res.Error)
			}
			return nil
		})
	},
}

var sendCmd = &cobra.Command{
	Use:   "send <client-id> <SMS|EMAIL|BOTH>",
	Short: "Send the current reminder to one client",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid client id %q: %w", args[0], err)
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			res, err := a.Manager.SendTest(ctx, id, args[1])
			if err != nil {
				return err
			}
			if outputFmt == "json" {
				if err := printJSON(res); err != nil {
					return err
				}
			} else {
				for _, r := range []*services.ChannelResult{res.SMS, res.Email} {
					if r != nil {
						printChannelResult(*r)
					}
				}
			}
			if !res.Success {
				return errors.New("no channel accepted the message")
			}
			return nil
		})
	},
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Show the reminder and cleanup triggers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		loc, err := cfg.Location()
		if err != nil {
			return err
		}
		status := services.NewScheduler(nil, nil, nil, loc, zerolog.Nop()).Status()
		if outputFmt == "json" {
			return printJSON(map[string]interface{}{"enabled": cfg.CronEnabled, "schedule": status})
		}
		fmt.Printf("Enabled:        %t\n", cfg.CronEnabled)
		fmt.Printf("Timezone:       %s\n", status.Timezone)
		if status.NextReminder != nil {
			fmt.Printf("Next reminder:  %s (%s)\n", status.NextReminder.Format(time.RFC1123), status.ReminderSpec)
		}
		if status.NextCleanup != nil {
			fmt.Printf("Next cleanup:   %s (%s)\n", status.NextCleanup.Format(time.RFC1123), status.CleanupSpec)
		}
		return nil
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token <username>",
	Short: "Mint an operator API token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		role, _ := cmd.Flags().GetString("role")
		ttl, _ := cmd.Flags().GetDuration("ttl")
		if role != middleware.RoleAdmin && role != middleware.RoleOperator {
			return fmt.Errorf("invalid role %q (use %s or %s)", role, middleware.RoleAdmin, middleware.RoleOperator)
		}

		cfg := config.Load()
		if ttl <= 0 {
			ttl = time.Duration(cfg.JWTExpireHours) * time.Hour
		}
		secret := cfg.JWTSecret
		if cfg.JWTSecretGenerated {
			db, err := database.Open(cfg.PostgresDSN())
			if err != nil {
				return err
			}
			if err := models.AutoMigrate(db); err != nil {
				return err
			}
			if secret, err = database.EnsureJWTSecret(cmd.Context(), db); err != nil {
				return err
			}
			if sqlDB, err := db.DB(); err == nil {
				sqlDB.Close()
			}
		}

		token, err := middleware.GenerateToken(secret, args[0], role, ttl)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().String("role", middleware.RoleOperator, "token role (admin, operator)")
	tokenCmd.Flags().Duration("ttl", 0, "token lifetime (default JWT_EXPIRE_HOURS)")
}

func printSummary(s services.RunSummary) {
	fmt.Printf("%s (%s)\n", s.Message, s.Trigger)
	if s.Error != "" {
		fmt.Printf("  error: %s\n", s.Error)
	}
	fmt.Printf("  clients: %d  success: %d  failed: %d  errors: %d  skipped: %d  took: %s\n",
		s.TotalClients, s.SuccessCount, s.FailureCount, s.ErrorCount, s.SkipCount,
		s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond))
	for _, r := range s.Results {
		line := fmt.Sprintf("  %-12s %-8s", r.LicensePlate, r.Status)
		if r.DaysRemaining != nil {
			line += fmt.Sprintf(" days=%d", *r.DaysRemaining)
		}
		if r.SMS != "" {
			line += " sms=" + r.SMS
		}
		if r.Email != "" {
			line += " email=" + r.Email
		}
		if r.Reason != "" {
			line += " reason=" + r.Reason
		}
		if r.Error != "" {
			line += " error=" + r.Error
		}
		fmt.Println(line)
	}
}

func printChannelResult(r services.ChannelResult) {
	status := "sent"
	if !r.Success {
		status = "failed"
	}
	line := fmt.Sprintf("%-6s %s", r.Channel, status)
	if r.ProviderID != "" {
		line += " id=" + r.ProviderID
	}
	if r.Simulated {
		line += " (simulated)"
	}
	if r.Error != "" {
		line += " error=" + r.Error
	}
	fmt.Println(line)
}
