// Package main is the entry point for the Alexander Auth admin CLI.
// This tool provides administrative commands for inspecting accounts and
// running maintenance against the configured store.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/prn-tf/alexander-auth/internal/config"
	"github.com/prn-tf/alexander-auth/internal/database"
	"github.com/prn-tf/alexander-auth/internal/domain"
	"github.com/prn-tf/alexander-auth/internal/lock"
	"github.com/prn-tf/alexander-auth/internal/logging"
	"github.com/prn-tf/alexander-auth/internal/repository"
	"github.com/prn-tf/alexander-auth/internal/service"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to the configuration file")
	limit := pflag.Int("limit", 20, "maximum number of users to list")
	offset := pflag.Int("offset", 0, "number of users to skip")
	pflag.Usage = printUsage
	pflag.Parse()

	args := pflag.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch args[0] {
	case "version":
		fmt.Printf("Alexander Auth Admin CLI\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)

	case "user":
		switch {
		case len(args) >= 2 && args[1] == "list":
			err = withStore(*configPath, func(ctx context.Context, store *repository.Store, cfg *config.Config) error {
				return listUsers(ctx, store, *limit, *offset)
			})
		case len(args) >= 3 && args[1] == "show":
			err = withStore(*configPath, func(ctx context.Context, store *repository.Store, cfg *config.Config) error {
				return showUser(ctx, store, args[2])
			})
		default:
			fmt.Fprintln(os.Stderr, "usage: alexander-admin user list | user show <email>")
			os.Exit(1)
		}

	case "otp":
		if len(args) < 2 || args[1] != "sweep" {
			fmt.Fprintln(os.Stderr, "usage: alexander-admin otp sweep")
			os.Exit(1)
		}
		err = withStore(*configPath, sweepOTPs)

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "alexander-admin: %v\n", err)
		os.Exit(1)
	}
}

// withStore opens the configured store without applying migrations and runs fn.
func withStore(configPath string, fn func(ctx context.Context, store *repository.Store, cfg *config.Config) error) error {
	cfg, err := config.LoadForTools(configPath)
	if err != nil {
		return err
	}
	if cfg.Database.Driver == "memory" {
		return errors.New("the memory driver keeps no data between processes")
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := database.Open(ctx, cfg.Database, false, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	return fn(ctx, store, cfg)
}

func listUsers(ctx context.Context, store *repository.Store, limit, offset int) error {
	users := service.NewUserService(store.User, store.OTP, zerolog.Nop())

	out, err := users.List(ctx, service.ListUsersInput{Limit: limit, Offset: offset})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEMAIL\tFULL NAME\tACTIVE\tVERIFIED\tCREATED")
	for _, u := range out.Users {
		fmt.Fprintf(w, "%d\t%s\t%s\t%t\t%t\t%s\n",
			u.ID, u.Email, u.FullName, u.IsActive, u.IsVerified, u.CreatedAt.Format(time.RFC3339))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\n%d of %d users\n", len(out.Users), out.TotalCount)
	return nil
}

func showUser(ctx context.Context, store *repository.Store, email string) error {
	users := service.NewUserService(store.User, store.OTP, zerolog.Nop())

	details, err := users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return fmt.Errorf("no user with email %q", domain.NormalizeEmail(email))
		}
		return err
	}

	u := details.User
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "ID:\t%d\n", u.ID)
	fmt.Fprintf(w, "Email:\t%s\n", u.Email)
	fmt.Fprintf(w, "Full name:\t%s\n", u.FullName)
	fmt.Fprintf(w, "Active:\t%t\n", u.IsActive)
	fmt.Fprintf(w, "Verified:\t%t\n", u.IsVerified)
	fmt.Fprintf(w, "Pending OTPs:\t%s\n", strconv.FormatInt(details.PendingOTPs, 10))
	fmt.Fprintf(w, "Created:\t%s\n", u.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Updated:\t%s\n", u.UpdatedAt.Format(time.RFC3339))
	return w.Flush()
}

func sweepOTPs(ctx context.Context, store *repository.Store, cfg *config.Config) error {
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}

	// A manual sweep does not coordinate with running servers; the delete
	// is idempotent.
	sweeper := service.NewOTPSweeper(store.OTP, lock.NewNoOpLocker(), nil, logger, service.SweeperConfig{
		Interval:  cfg.Sweeper.Interval,
		BatchSize: cfg.Sweeper.BatchSize,
	})

	result := sweeper.RunOnce(ctx)
	if result.Err != nil {
		return result.Err
	}
	fmt.Printf("Deleted %d expired OTPs in %s\n", result.Deleted, result.Duration.Round(time.Millisecond))
	return nil
}

func printUsage() {
	fmt.Println(`Alexander Auth Admin CLI

Usage:
  alexander-admin [--config path] <command> [arguments]

Commands:
  user list          List users (--limit, --offset)
  user show <email>  Show one user and its pending OTPs
  otp sweep          Delete expired OTP challenges now
  version            Print version information
  help               Show this help message

Examples:
  alexander-admin user list --limit 50
  alexander-admin user show ann@example.com
  alexander-admin otp sweep`)
}
