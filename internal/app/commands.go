package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"

	"github.com/apptremind/remindctl/internal/apiclient"
	"github.com/apptremind/remindctl/internal/gateway"
	"github.com/apptremind/remindctl/internal/logging"
	"github.com/apptremind/remindctl/internal/logtail"
	"github.com/apptremind/remindctl/internal/prefs"
	"github.com/apptremind/remindctl/internal/session"
	"github.com/apptremind/remindctl/internal/ui"
)

// ErrUsage reports an unknown command or bad flags.
var ErrUsage = errors.New("usage")

// EnvPassword supplies the password for login and register when -password is omitted.
const EnvPassword = "REMINDCTL_PASSWORD"

type command struct {
	summary string
	run     func(ctx context.Context, r *Runtime, args []string, out io.Writer) error
}

var commands = map[string]command{
	"login":    {"sign in with email and password", runLogin},
	"register": {"create an account and sign in", runRegister},
	"whoami":   {"show the signed-in identity", runWhoami},
	"refresh":  {"rotate the stored tokens now", runRefresh},
	"logout":   {"revoke and forget the stored tokens", runLogout},
	"status":   {"show backend health and token expiry", runStatus},
	"book":     {"create a public booking", runBook},
	"watch":    {"open the interactive console", runWatch},
	"logs":     {"show recent entries from the log file", runLogs},
}

// Usage writes the command list.
func Usage(w io.Writer) {
	fmt.Fprintln(w, "usage: remindctl [-config path] <command> [flags]")
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, name := range []string{"login", "register", "whoami", "refresh", "logout", "status", "book", "watch", "logs"} {
		fmt.Fprintf(tw, "  %s\t%s\n", name, commands[name].summary)
	}
	_ = tw.Flush()
}

// Execute runs the named command against the runtime.
func (r *Runtime) Execute(ctx context.Context, name string, args []string, out io.Writer) error {
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", ErrUsage, name)
	}
	return cmd.run(ctx, r, args, out)
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUsage, fs.Name(), err)
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("%w: %s: unexpected argument %q", ErrUsage, fs.Name(), fs.Arg(0))
	}
	return nil
}

func password(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(EnvPassword)
}

func runLogin(ctx context.Context, r *Runtime, args []string, out io.Writer) error {
	fs := newFlagSet("login")
	email := fs.String("email", "", "account email")
	pw := fs.String("password", "", "account password (or $"+EnvPassword+")")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if strings.TrimSpace(*email) == "" || password(*pw) == "" {
		return fmt.Errorf("%w: login: -email and a password are required", ErrUsage)
	}

	if !r.Session.Login(ctx, *email, password(*pw)) {
		return fmt.Errorf("login failed: %w", r.Session.Snapshot().LastError)
	}
	printIdentity(out, r.Session.Snapshot())
	return nil
}

func runRegister(ctx context.Context, r *Runtime, args []string, out io.Writer) error {
	fs := newFlagSet("register")
	email := fs.String("email", "", "account email")
	pw := fs.String("password", "", "account password (or $"+EnvPassword+")")
	business := fs.String("business", "", "business name")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	req := session.RegisterRequest{Email: *email, Password: password(*pw), BusinessName: *business}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" || strings.TrimSpace(req.BusinessName) == "" {
		return fmt.Errorf("%w: register: -email, -business and a password are required", ErrUsage)
	}

	if !r.Session.Register(ctx, req) {
		return fmt.Errorf("register failed: %w", r.Session.Snapshot().LastError)
	}
	printIdentity(out, r.Session.Snapshot())
	return nil
}

func runWhoami(ctx context.Context, r *Runtime, args []string, out io.Writer) error {
	if err := parseFlags(newFlagSet("whoami"), args); err != nil {
		return err
	}
	if _, ok := r.Session.Hydrate(ctx); !ok {
		snap := r.Session.Snapshot()
		if snap.LastError != nil {
			return fmt.Errorf("%w: %w", session.ErrNoSession, snap.LastError)
		}
		return session.ErrNoSession
	}
	snap := r.Session.Snapshot()
	printIdentity(out, snap)
	if snap.LastError != nil {
		fmt.Fprintf(out, "warning: identity may be stale: %v\n", snap.LastError)
	}
	return nil
}

func runRefresh(ctx context.Context, r *Runtime, args []string, out io.Writer) error {
	if err := parseFlags(newFlagSet("refresh"), args); err != nil {
		return err
	}
	if _, ok := r.Creds.Get(ctx); !ok {
		return session.ErrNoSession
	}
	if !r.Client.Refresh(ctx) {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("refresh interrupted: %w", err)
		}
		return errors.New("refresh rejected: session cleared, sign in again")
	}
	fmt.Fprintln(out, "tokens refreshed")
	if pair, ok := r.Creds.Get(ctx); ok {
		if claims, err := pair.Claims(); err == nil && !claims.ExpiresAt().IsZero() {
			fmt.Fprintf(out, "access token expires %s\n", claims.ExpiresAt().Local().Format(time.DateTime))
		}
	}
	return nil
}

func runLogout(ctx context.Context, r *Runtime, args []string, out io.Writer) error {
	if err := parseFlags(newFlagSet("logout"), args); err != nil {
		return err
	}
	if err := r.Session.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(out, "signed out")
	return nil
}

func runStatus(ctx context.Context, r *Runtime, args []string, out io.Writer) error {
	if err := parseFlags(newFlagSet("status"), args); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "backend\t%s\n", r.Transport.BaseURL())
	fmt.Fprintf(tw, "credentials\t%s\n", r.Config.Credentials.Backend)
	fmt.Fprintf(tw, "healthz\t%s\n", probe(ctx, r.API.Healthz))
	fmt.Fprintf(tw, "readyz\t%s\n", probe(ctx, r.API.Readyz))
	fmt.Fprintf(tw, "session\t%s\n", describeSession(ctx, r, time.Now()))
	return tw.Flush()
}

func probe(ctx context.Context, fn func(context.Context) (gateway.Health, error)) string {
	health, err := fn(ctx)
	if err != nil {
		return "down (" + err.Error() + ")"
	}
	if s, ok := health["status"].(string); ok && s != "" {
		return s
	}
	return "ok"
}

func describeSession(ctx context.Context, r *Runtime, now time.Time) string {
	pair, ok := r.Creds.Get(ctx)
	if !ok {
		return "none"
	}
	claims, err := pair.Claims()
	if err != nil || claims.ExpiresAt().IsZero() {
		return "stored (expiry unknown)"
	}
	return "stored, access token " + describeExpiry(claims.ExpiresAt(), now)
}

func describeExpiry(exp, now time.Time) string {
	left := exp.Sub(now).Round(time.Second)
	if left <= 0 {
		return fmt.Sprintf("expired %s ago (refreshes on next call)", (-left).String())
	}
	return "expires in " + left.String()
}

func runBook(ctx context.Context, r *Runtime, args []string, out io.Writer) error {
	fs := newFlagSet("book")
	var req gateway.BookingRequest
	fs.StringVar(&req.BusinessID, "business", "", "business id")
	fs.StringVar(&req.StaffID, "staff", "", "staff id")
	fs.StringVar(&req.ServiceID, "service", "", "service id")
	fs.StringVar(&req.StartTime, "start", "", "slot start (RFC 3339)")
	fs.StringVar(&req.EndTime, "end", "", "slot end (RFC 3339)")
	fs.StringVar(&req.CustomerName, "name", "", "customer name")
	fs.StringVar(&req.CustomerEmail, "customer-email", "", "customer email")
	fs.StringVar(&req.CustomerPhone, "customer-phone", "", "customer phone")
	action := fs.String("action", "", "logical action name; reuse it to deduplicate re-submissions")
	retries := fs.Int("retries", 0, "re-submit on transport or server errors with the same key")
	retryWait := fs.Duration("retry-wait", time.Second, "initial wait between re-submissions")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if req.BusinessID == "" || req.StaffID == "" || req.ServiceID == "" || req.StartTime == "" || req.CustomerName == "" {
		return fmt.Errorf("%w: book: -business, -staff, -service, -start and -name are required", ErrUsage)
	}
	if *action == "" {
		*action = r.IDs.NewAction("book")
	}
	fmt.Fprintf(out, "action %s\n", *action)

	for attempt := 0; ; attempt++ {
		booking, err := r.API.Book(ctx, *action, req)
		if err == nil {
			fmt.Fprintf(out, "booked appointment %s\n", booking.AppointmentID)
			return nil
		}
		retryable := errors.Is(err, apiclient.ErrTransport) || errors.Is(err, apiclient.ErrServerError)
		if !retryable || attempt >= *retries {
			if errors.Is(err, apiclient.ErrClientError) && apiclient.StatusOf(err) == http.StatusConflict {
				return fmt.Errorf("slot no longer available: %w", err)
			}
			return err
		}
		wait := calculateBackoff(attempt, *retryWait)
		r.Log.Warn().Err(err).Str("action", *action).Dur("wait", wait).Msg("booking failed, re-submitting")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func runWatch(ctx context.Context, r *Runtime, args []string, _ io.Writer) error {
	fs := newFlagSet("watch")
	every := fs.Duration("every", r.Config.KeepaliveInterval, "keepalive and health poll interval")
	prefsPath := fs.String("prefs", prefs.DefaultPath(), "console preferences file")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	restore, err := r.detachConsole()
	if err != nil {
		return err
	}
	defer restore()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	StartKeepalive(ctx, r.Session, *every, r.Log)
	r.Session.Hydrate(ctx)

	return ui.Run(ui.Options{
		Context:   ctx,
		Session:   r.Session,
		Health:    r.API,
		Refresher: r.Client,
		BaseURL:   r.Transport.BaseURL(),
		PollTick:  *every,
		PrefsPath: *prefsPath,
	})
}

func runLogs(_ context.Context, r *Runtime, args []string, out io.Writer) error {
	fs := newFlagSet("logs")
	lines := fs.Int("n", 50, "number of lines from the end (0 for all)")
	level := fs.String("level", "", "minimum level to show")
	raw := fs.Bool("raw", false, "print JSON lines unchanged")
	color := fs.Bool("color", false, "colorize output")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	path, err := r.logFile()
	if err != nil {
		return err
	}
	threshold := zerolog.TraceLevel
	if *level != "" {
		parsed, err := logging.ParseLevel(*level)
		if err != nil {
			return fmt.Errorf("%w: logs: %v", ErrUsage, err)
		}
		threshold = parsed
	}

	tail, err := logtail.Read(path, *lines)
	if err != nil {
		return err
	}
	tail = logtail.Filter(tail, threshold)
	if *raw {
		for _, line := range tail {
			fmt.Fprintln(out, line)
		}
		return nil
	}
	return logtail.Render(out, tail, *color)
}

func printIdentity(out io.Writer, snap session.Snapshot) {
	id := snap.Identity
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "user\t%s\n", orDash(id.UserID))
	fmt.Fprintf(tw, "email\t%s\n", orDash(id.Email))
	fmt.Fprintf(tw, "business\t%s\n", orDash(id.BusinessID))
	fmt.Fprintf(tw, "role\t%s\n", orDash(id.Role))
	if !id.ExpiresAt.IsZero() {
		fmt.Fprintf(tw, "token\t%s\n", describeExpiry(id.ExpiresAt, time.Now()))
	}
	_ = tw.Flush()
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
