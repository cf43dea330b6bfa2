package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/target/estate-portal/config"
	"github.com/target/estate-portal/internal/bootstrap"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
	In     *os.File
	Out    io.Writer
}

func main() {
	cfg, cfgErr := bootstrap.LoadConfig()
	logger := bootstrap.InitLogger(&cfg)

	if len(os.Args) < 2 {
		if err := printUsage(os.Stdout); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when no command is provided
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		if err := writef(os.Stderr, "unknown command %q\n\n", cmdName); err != nil {
			logger.Error("print unknown command message failed", "error", err)
		}
		if err := printUsage(os.Stderr); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when command is unknown
	}

	if cfgErr != nil {
		logger.ErrorContext(context.Background(), "load config", "error", cfgErr)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmdCtx := &commandContext{
		Ctx:    ctx,
		Logger: logger,
		Config: cfg,
		In:     os.Stdin,
		Out:    os.Stdout,
	}
	if runErr := cmd.run(cmdCtx, os.Args[2:]); runErr != nil {
		logger.ErrorContext(cmdCtx.Ctx, "command failed", "command", cmdName, "error", runErr)
		stop()
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func commands() map[string]command {
	return map[string]command{
		"login": {
			name:        "login",
			description: "Sign in and save the session",
			run:         runLogin,
		},
		"register": {
			name:        "register",
			description: "Create an account and sign in",
			run:         runRegister,
		},
		"logout": {
			name:        "logout",
			description: "End the saved session",
			run:         runLogout,
		},
		"whoami": {
			name:        "whoami",
			description: "Verify the saved session and print the signed-in principal",
			run:         runWhoAmI,
		},
		"check": {
			name:        "check",
			description: "Verify the saved session; exits non-zero when signed out",
			run:         runCheck,
		},
		"refresh": {
			name:        "refresh",
			description: "Reload the profile of the signed-in principal",
			run:         runRefresh,
		},
		"dashboard": {
			name:        "dashboard",
			description: "Fetch the dashboard statistics for the signed-in role",
			run:         runDashboard,
		},
		"history": {
			name:        "history",
			description: "List recent session events (sqlite storage only)",
			run:         runHistory,
		},
	}
}

func printUsage(w io.Writer) error {
	if err := writef(w, "Usage: estatectl <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := writef(w, "Available commands:\n"); err != nil {
		return err
	}
	cmds := commands()
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := writef(w, "  %-12s %s\n", name, cmds[name].description); err != nil {
			return err
		}
	}
	return nil
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}
