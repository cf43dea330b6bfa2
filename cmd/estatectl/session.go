package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"github.com/target/estate-portal/internal/bootstrap"
	domainauth "github.com/target/estate-portal/internal/domain/auth"
	"github.com/target/estate-portal/internal/domain/dashboard"
	"github.com/target/estate-portal/internal/ports"
	"github.com/target/estate-portal/internal/service"
)

const (
	defaultCommandTimeout = 30 * time.Second
	dashboardWait         = 10 * time.Second
)

var errSignedOut = errors.New("not signed in")

type loginOptions struct {
	Email         string
	UserType      domainauth.Category
	PasswordStdin bool
}

type registerOptions struct {
	loginOptions
	Name    string
	Phone   string
	Company string
}

// openServices wires the same session core the portal server uses.
func openServices(cmdCtx *commandContext) (bootstrap.ServiceContainer, error) {
	store, err := bootstrap.OpenSessionStore(cmdCtx.Ctx, bootstrap.StorageConfig{
		Session: cmdCtx.Config.Session,
		Redis:   cmdCtx.Config.Redis,
		Logger:  cmdCtx.Logger,
	})
	if err != nil {
		return bootstrap.ServiceContainer{}, err
	}
	svc, err := bootstrap.NewServices(&bootstrap.ServiceDeps{
		Config: &cmdCtx.Config,
		Store:  store,
		Logger: cmdCtx.Logger,
	})
	if err != nil {
		if cerr := store.Close(); cerr != nil {
			cmdCtx.Logger.Warn("session store close failed", "error", cerr)
		}
		return bootstrap.ServiceContainer{}, err
	}
	return svc, nil
}

func withServices(cmdCtx *commandContext, fn func(ctx context.Context, svc bootstrap.ServiceContainer) error) error {
	svc, err := openServices(cmdCtx)
	if err != nil {
		return err
	}
	defer func() {
		svc.Poller.Stop()
		if closeErr := svc.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("close services failed", "error", closeErr)
		}
	}()

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()
	return fn(ctx, svc)
}

func parseLoginFlags(args []string) (loginOptions, error) {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	var opts loginOptions
	userType := "user"
	fs.StringVar(&opts.Email, "email", "", "account email (required)")
	fs.StringVar(&userType, "type", userType, "account type: user or client")
	fs.BoolVar(&opts.PasswordStdin, "password-stdin", false, "read the password from stdin")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	category, err := domainauth.ParseCategory(userType)
	if err != nil {
		return opts, err
	}
	opts.UserType = category
	if strings.TrimSpace(opts.Email) == "" {
		return opts, errors.New("-email is required")
	}
	return opts, nil
}

func parseRegisterFlags(args []string) (registerOptions, error) {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	var opts registerOptions
	userType := "user"
	fs.StringVar(&opts.Name, "name", "", "display name (required)")
	fs.StringVar(&opts.Email, "email", "", "account email (required)")
	fs.StringVar(&opts.Phone, "phone", "", "phone number")
	fs.StringVar(&opts.Company, "company", "", "company name (clients)")
	fs.StringVar(&userType, "type", userType, "account type: user or client")
	fs.BoolVar(&opts.PasswordStdin, "password-stdin", false, "read the password from stdin")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	category, err := domainauth.ParseCategory(userType)
	if err != nil {
		return opts, err
	}
	opts.UserType = category
	return opts, nil
}

// readPassword prompts without echo on a terminal, else reads one line.
func readPassword(in *os.File, out io.Writer, fromStdin bool) (string, error) {
	if !fromStdin && term.IsTerminal(int(in.Fd())) {
		if err := writef(out, "Password: "); err != nil {
			return "", err
		}
		pw, err := term.ReadPassword(int(in.Fd()))
		if werr := writef(out, "\n"); werr != nil && err == nil {
			err = werr
		}
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(pw), nil
	}
	return readLine(in)
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func runLogin(cmdCtx *commandContext, args []string) error {
	opts, err := parseLoginFlags(args)
	if err != nil {
		return err
	}
	password, err := readPassword(cmdCtx.In, cmdCtx.Out, opts.PasswordStdin)
	if err != nil {
		return err
	}

	return withServices(cmdCtx, func(ctx context.Context, svc bootstrap.ServiceContainer) error {
		res, err := svc.Session.Login(ctx, service.LoginInput{
			Email:    opts.Email,
			Password: password,
			Category: opts.UserType,
		})
		if err != nil {
			return authFailure(res, err)
		}
		return printSession(cmdCtx.Out, res.Session)
	})
}

func runRegister(cmdCtx *commandContext, args []string) error {
	opts, err := parseRegisterFlags(args)
	if err != nil {
		return err
	}
	password, err := readPassword(cmdCtx.In, cmdCtx.Out, opts.PasswordStdin)
	if err != nil {
		return err
	}

	in := service.RegisterInput{
		Name:     opts.Name,
		Email:    opts.Email,
		Password: password,
		Phone:    opts.Phone,
		Category: opts.UserType,
	}
	if opts.Company != "" {
		in.Extra = map[string]any{"company": opts.Company}
	}

	return withServices(cmdCtx, func(ctx context.Context, svc bootstrap.ServiceContainer) error {
		res, err := svc.Session.Register(ctx, in)
		if err != nil {
			return authFailure(res, err)
		}
		return printSession(cmdCtx.Out, res.Session)
	})
}

func authFailure(res *service.AuthResult, err error) error {
	if res != nil && res.Error != "" {
		return fmt.Errorf("%s: %w", res.Error, err)
	}
	return err
}

func runLogout(cmdCtx *commandContext, _ []string) error {
	return withServices(cmdCtx, func(ctx context.Context, svc bootstrap.ServiceContainer) error {
		if err := svc.Session.Logout(ctx); err != nil {
			return err
		}
		return writef(cmdCtx.Out, "signed out\n")
	})
}

func runCheck(cmdCtx *commandContext, _ []string) error {
	return withServices(cmdCtx, func(ctx context.Context, svc bootstrap.ServiceContainer) error {
		if !svc.Initializer.Run(ctx) {
			return errSignedOut
		}
		return writef(cmdCtx.Out, "signed in as %s\n", svc.Session.Snapshot().Category)
	})
}

func runWhoAmI(cmdCtx *commandContext, _ []string) error {
	return withServices(cmdCtx, func(ctx context.Context, svc bootstrap.ServiceContainer) error {
		if !svc.Initializer.Run(ctx) {
			return errSignedOut
		}
		return printSession(cmdCtx.Out, svc.Session.Snapshot())
	})
}

func runRefresh(cmdCtx *commandContext, _ []string) error {
	return withServices(cmdCtx, func(ctx context.Context, svc bootstrap.ServiceContainer) error {
		if !svc.Initializer.Run(ctx) {
			return errSignedOut
		}
		if err := svc.Session.RefreshUser(ctx); err != nil {
			return err
		}
		return printSession(cmdCtx.Out, svc.Session.Snapshot())
	})
}

func runDashboard(cmdCtx *commandContext, _ []string) error {
	return withServices(cmdCtx, func(ctx context.Context, svc bootstrap.ServiceContainer) error {
		if !svc.Initializer.Run(ctx) {
			return errSignedOut
		}

		svc.Poller.Mount()
		stats, err := waitForStats(ctx, svc.Poller, dashboardWait)
		if err != nil {
			return err
		}
		return printStats(cmdCtx.Out, stats)
	})
}

type statsSource interface {
	Latest() (dashboard.Stats, bool)
}

func waitForStats(ctx context.Context, src statsSource, limit time.Duration) (dashboard.Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		if stats, ok := src.Latest(); ok {
			return stats, nil
		}
		select {
		case <-ctx.Done():
			return dashboard.Stats{}, fmt.Errorf("no dashboard statistics: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func runHistory(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "number of events to show")
	if err := fs.Parse(args); err != nil {
		return err
	}

	return withServices(cmdCtx, func(ctx context.Context, svc bootstrap.ServiceContainer) error {
		if svc.Store.Events == nil {
			return errors.New("session history requires sqlite storage")
		}
		events, err := svc.Store.Events.RecentEvents(ctx, *limit)
		if err != nil {
			return err
		}
		return printEvents(cmdCtx.Out, events)
	})
}

func printSession(w io.Writer, snap domainauth.Session) error {
	if !snap.IsAuthenticated() {
		return errSignedOut
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	rows := [][2]string{
		{"Name", snap.Identity.Name()},
		{"Email", snap.Identity.Email()},
		{"ID", snap.Identity.ID()},
		{"Account type", snap.Category.String()},
		{"Role", string(snap.Role)},
	}
	for _, r := range rows {
		if err := writef(tw, "%s:\t%s\n", r[0], r[1]); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func printStats(w io.Writer, stats dashboard.Stats) error {
	keys := make([]string, 0, len(stats.Values))
	for k := range stats.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if err := writef(tw, "Dashboard (%s) at %s\n", stats.Role, stats.FetchedAt.Format(time.RFC3339)); err != nil {
		return err
	}
	for _, k := range keys {
		if err := writef(tw, "  %s\t%v\n", k, stats.Values[k]); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func printEvents(w io.Writer, events []ports.SessionEvent) error {
	if len(events) == 0 {
		return writef(w, "no session events recorded\n")
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if err := writef(tw, "WHEN\tEVENT\tACCOUNT TYPE\n"); err != nil {
		return err
	}
	for _, ev := range events {
		if err := writef(tw, "%s\t%s\t%s\n", ev.At.Format(time.RFC3339), ev.Kind, ev.Category); err != nil {
			return err
		}
	}
	return tw.Flush()
}
