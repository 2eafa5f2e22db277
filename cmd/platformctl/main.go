package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"course-platform-backend/internal/app"
	"course-platform-backend/internal/config"
	"course-platform-backend/internal/models"
	"course-platform-backend/pkg/logger"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "platformctl",
		Short:         "Operator commands for the course platform",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(verifyCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(roleCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openApplication wires storage and services without the HTTP server.
func openApplication() (*app.Application, error) {
	_ = godotenv.Load()
	cfg := config.New()
	logger.Init(logger.WithLevel(cfg.LogLevel), logger.WithFormat(cfg.LogFormat))
	return app.New(cfg, app.Options{DisableHTTP: true})
}

func withApplication(timeout time.Duration, run func(ctx context.Context, application *app.Application) error) error {
	application, err := openApplication()
	if err != nil {
		return err
	}
	defer application.Shutdown(context.Background())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	return run(ctx, application)
}

func printJSON(value interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func sweepCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Verify every pending payment once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApplication(timeout, func(ctx context.Context, application *app.Application) error {
				report, err := application.Payments().Sweep(ctx)
				if printErr := printJSON(report); printErr != nil {
					return printErr
				}
				return err
			})
		},
	}

	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 10*time.Minute, "Abort the sweep after this long")
	return cmd
}

func verifyCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "verify [reference]",
		Short: "Reconcile one payment with the gateway",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApplication(timeout, func(ctx context.Context, application *app.Application) error {
				result, err := application.Payments().Verify(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(map[string]interface{}{
					"payment_id":          result.Payment.ID,
					"reference":           args[0],
					"status":              result.Status,
					"already_terminal":    result.AlreadyTerminal,
					"enrolled_course_ids": result.Enrolled,
				})
			})
		},
	}

	cmd.Flags().DurationVarP(&timeout, "timeout", "t", time.Minute, "Abort after this long")
	return cmd
}

func tokenCmd() *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token [email]",
		Short: "Issue an access token for an existing user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApplication(time.Minute, func(ctx context.Context, application *app.Application) error {
				token, user, err := application.Auth().IssueToken(ctx, args[0], ttl)
				if err != nil {
					return err
				}
				return printJSON(models.AuthResponse{Token: token, User: *user})
			})
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	return cmd
}

func roleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "role [email] [admin|instructor|student]",
		Short: "Change the role of a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApplication(time.Minute, func(ctx context.Context, application *app.Application) error {
				user, err := application.Auth().UpdateUserRole(ctx, args[0], models.UserRole(args[1]))
				if err != nil {
					return err
				}
				fmt.Printf("%s is now %s\n", user.Email, user.Role)
				return nil
			})
		},
	}
}
