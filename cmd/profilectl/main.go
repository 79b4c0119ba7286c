// profilectl drives the profile API from a terminal with the same
// reconciliation the dashboard does, keeping overrides in
// ~/.healthhack_user_overrides.json.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/tazhibayda/profile-service/internal/apiclient"
	"github.com/tazhibayda/profile-service/internal/domain"
	plog "github.com/tazhibayda/profile-service/internal/log"
	"github.com/tazhibayda/profile-service/internal/reconcile"
)

const usage = `usage: profilectl [flags] <command> [command flags]

commands:
  dev-login  -sub ID [-name N] [-email E]   open a session (server needs DEV_LOGIN=true)
  show                                      print the merged profile
  refresh                                   pull identity from the provider, then reload
  update     [-name ..] [-specialty ..] [-reminder 15|30|60|120] ...
  logout                                    end the session and forget it
  forget-overrides                          drop locally cached identity fields
`

func main() {
	var (
		apiURL  string
		cookie  string
		verbose bool
	)
	flag.StringVar(&apiURL, "api", envOr("PROFILE_API", "http://localhost:8080"), "profile API base url")
	flag.StringVar(&cookie, "cookie", envOr("SESSION_COOKIE", "appSession"), "session cookie name")
	flag.BoolVar(&verbose, "v", false, "log to stderr")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage); flag.PrintDefaults() }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	lg := zap.NewNop()
	if verbose {
		l, err := plog.Init(false)
		if err != nil {
			fmt.Fprintf(os.Stderr, "init log: %v\n", err)
			os.Exit(1)
		}
		lg = l
	}

	cli, err := newCLI(apiURL, cookie, lg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := cli.run(ctx, flag.Arg(0), flag.Args()[1:]); err != nil {
		if errors.Is(err, reconcile.ErrUnauthenticated) {
			fmt.Fprintln(os.Stderr, "not signed in")
			os.Exit(3)
		}
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

type cli struct {
	api     *apiclient.Client
	session reconcile.Slot
	cache   *reconcile.OverrideCache
	lg      *zap.Logger
}

func newCLI(apiURL, cookie string, lg *zap.Logger) (*cli, error) {
	api, err := apiclient.New(apiURL, apiclient.WithCookieName(cookie))
	if err != nil {
		return nil, err
	}
	sessSlot, err := reconcile.HomeSlot("profilectl_session")
	if err != nil {
		return nil, err
	}
	overrides, err := reconcile.HomeSlot(reconcile.OverrideSlotName)
	if err != nil {
		return nil, err
	}
	c := &cli{api: api, session: sessSlot, cache: reconcile.NewOverrideCache(overrides, lg), lg: lg}
	if b, err := sessSlot.Read(); err == nil && len(b) > 0 {
		api.SetSession(string(b))
	}
	return c, nil
}

func (c *cli) saveSession() error {
	v := c.api.Session()
	if v == "" {
		return c.session.Delete()
	}
	return c.session.Write([]byte(v))
}

func (c *cli) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "dev-login":
		return c.devLogin(ctx, args)
	case "show":
		return c.show(ctx)
	case "refresh":
		if _, err := c.api.RefreshSession(ctx); err != nil {
			return err
		}
		if err := c.saveSession(); err != nil {
			return err
		}
		return c.show(ctx)
	case "update":
		return c.update(ctx, args)
	case "logout":
		if err := c.api.Logout(ctx); err != nil && !errors.Is(err, reconcile.ErrUnauthenticated) {
			c.lg.Warn("server logout", zap.Error(err))
		}
		return c.session.Delete()
	case "forget-overrides":
		return c.cache.Clear()
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (c *cli) devLogin(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("dev-login", flag.ContinueOnError)
	sub := fs.String("sub", "", "subject id, e.g. auth0|123")
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "email")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *sub == "" {
		return fmt.Errorf("dev-login: -sub is required")
	}
	if err := c.api.DevSession(ctx, domain.Identity{Subject: *sub, Name: *name, Email: *email}); err != nil {
		return err
	}
	return c.saveSession()
}

func (c *cli) load(ctx context.Context) (*reconcile.Context, error) {
	rc := reconcile.NewContext(c.api, c.api, c.cache, c.lg)
	if err := rc.Initialize(ctx); err != nil {
		return nil, err
	}
	rc.Wait()
	return rc, nil
}

func (c *cli) show(ctx context.Context) error {
	rc, err := c.load(ctx)
	if err != nil {
		return err
	}
	return printView(rc)
}

// optional string/bool flags: only flags that were given end up in the request
type optString struct{ v *string }

func (o *optString) String() string {
	if o.v == nil {
		return ""
	}
	return *o.v
}
func (o *optString) Set(s string) error { o.v = &s; return nil }

type optBool struct{ v *bool }

func (o *optBool) String() string {
	if o.v == nil {
		return ""
	}
	return strconv.FormatBool(*o.v)
}
func (o *optBool) Set(s string) error {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	o.v = &b
	return nil
}
func (o *optBool) IsBoolFlag() bool { return true }

func (c *cli) update(ctx context.Context, args []string) error {
	var (
		name, email, password, specialty, reminder optString
		emailN, smsN, apptR, patientU              optBool
	)
	fs := flag.NewFlagSet("update", flag.ContinueOnError)
	fs.Var(&name, "name", "display name")
	fs.Var(&email, "email", "email (own accounts only)")
	fs.Var(&password, "password", "new password (own accounts only)")
	fs.Var(&specialty, "specialty", "clinical specialty")
	fs.Var(&reminder, "reminder", "reminder lead time in minutes")
	fs.Var(&emailN, "email-notifications", "true|false")
	fs.Var(&smsN, "sms-notifications", "true|false")
	fs.Var(&apptR, "appointment-reminders", "true|false")
	fs.Var(&patientU, "patient-updates", "true|false")
	if err := fs.Parse(args); err != nil {
		return err
	}

	req := domain.UpdateRequest{
		Name:                 name.v,
		Email:                email.v,
		Password:             password.v,
		Specialty:            specialty.v,
		EmailNotifications:   emailN.v,
		SMSNotifications:     smsN.v,
		AppointmentReminders: apptR.v,
		PatientUpdates:       patientU.v,
	}
	if reminder.v != nil {
		var m domain.ReminderMinutes
		if err := json.Unmarshal([]byte(strconv.Quote(*reminder.v)), &m); err != nil {
			return err
		}
		req.ReminderTime = &m
	}
	req.Normalize()

	rc, err := c.load(ctx)
	if err != nil {
		return err
	}
	if err := validateFor(rc.View().User, req); err != nil {
		return err
	}
	res, err := c.api.UpdateProfile(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, res.Message)
	for _, f := range res.IgnoredFields {
		fmt.Fprintf(os.Stderr, "ignored for this account: %s\n", f)
	}

	var ov domain.IdentityOverrides
	if res.AuthUpdateSuccess {
		ov.Name = req.Name
		if !res.IsSocialConnection {
			ov.Email = req.Email
		}
	}
	if err := rc.ApplyLocalUpdate(ov, req.MetadataPatch()); err != nil {
		c.lg.Warn("local update", zap.Error(err))
	}
	if err := rc.Refresh(ctx); err != nil {
		c.lg.Warn("reload after update", zap.Error(err))
	}
	if err := printView(rc); err != nil {
		return err
	}
	if res.RequiresReauth {
		fmt.Fprintln(os.Stderr, "password changed: sign in again")
		c.api.ClearSession()
		return c.session.Delete()
	}
	return nil
}

// validateFor checks req the way the server will for this account: email and
// password of a federated account are ignored by the server, not rejected.
func validateFor(id domain.Identity, req domain.UpdateRequest) error {
	if id.Connection.Federated {
		req.DropCredentials()
	}
	return req.Validate()
}

func printView(rc *reconcile.Context) error {
	v := rc.View()
	out := map[string]interface{}{
		"user":     v.User,
		"metadata": v.Settings(),
	}
	if err := rc.Err(); err != nil {
		out["warning"] = err.Error()
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
