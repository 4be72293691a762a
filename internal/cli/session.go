package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"margem/internal/apierror"
	"margem/internal/auth"
	"margem/internal/auth/token"
	"margem/internal/session"
)

const (
	passwordEnv        = "MARGEM_ADMIN_PASSWORD"
	msgNotLoggedIn     = "Nao autenticado. Execute 'margem-admin login'."
	reasonNotLoggedIn  = "NOT_AUTHENTICATED"
	reasonInvalidInput = "INVALID_INPUT"
)

// SessionView is the printable session.
type SessionView struct {
	Authenticated bool       `json:"authenticated"`
	Email         string     `json:"email,omitempty"`
	Name          string     `json:"name,omitempty"`
	Partner       string     `json:"partner,omitempty"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
	Valid         *bool      `json:"valid,omitempty"`
}

func newSessionView(st session.State) SessionView {
	v := SessionView{Authenticated: st.IsAuthenticated}
	if st.User != nil {
		v.Email, v.Name, v.Partner = st.User.Email, st.User.Name, st.User.Partner
	}
	if c, err := token.Decode(st.Token); err == nil {
		v.ExpiresAt = c.ExpiresAt
	}
	return v
}

func (v SessionView) table(now time.Time) Table {
	t := Table{Header: []string{"FIELD", "VALUE"}}
	t.add("authenticated", yesNo(v.Authenticated))
	t.add("email", v.Email)
	if v.Name != "" {
		t.add("name", v.Name)
	}
	partner := v.Partner
	if partner == "" {
		partner = "-"
	}
	t.add("partner", partner)
	switch {
	case v.ExpiresAt == nil:
		t.add("expires", "never")
	default:
		t.add("expires", fmt.Sprintf("%s (in %s)", v.ExpiresAt.Local().Format(time.RFC3339),
			v.ExpiresAt.Sub(now).Truncate(time.Second)))
	}
	if v.Valid != nil {
		t.add("valid", yesNo(*v.Valid))
	}
	return t
}

// requireSession restores the persisted session or fails with
// ExitUnauthenticated.
func requireSession(ctx context.Context, opts *RootOptions) (*App, error) {
	app, err := opts.App(ctx)
	if err != nil {
		return nil, err
	}
	if !app.Session.Hydrate(ctx) {
		msg := msgNotLoggedIn
		if st := app.Session.State(); st.Error != "" {
			msg = st.Error
		}
		return nil, NewExitError(ExitUnauthenticated, reasonNotLoggedIn, msg)
	}
	return app, nil
}

// LoginOptions holds flags for the login command.
type LoginOptions struct {
	*RootOptions
	Email    string
	Password string
}

func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoginOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and persist the session",
		Long: `Sign in to the admin API and persist the session token.

The password is taken from --password, then from $` + passwordEnv + `, then
read as one line from stdin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Email, "email", "e", "", "operator email")
	cmd.Flags().StringVarP(&opts.Password, "password", "p", "", "operator password")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func runLogin(ctx context.Context, opts *LoginOptions) error {
	password, err := opts.password()
	if err != nil {
		return err
	}
	app, err := opts.App(ctx)
	if err != nil {
		return err
	}

	if err := app.Session.Login(ctx, auth.Credentials{Email: opts.Email, Password: password}); err != nil {
		failure := apiFailure(err)
		// a 401 here means bad credentials, not an ended session
		failure.Code = ExitFailure
		return failure
	}

	view := newSessionView(app.Session.State())
	return opts.formatter().Success(view, view.table(time.Now()))
}

func (o *LoginOptions) password() (string, error) {
	if o.Password != "" {
		return o.Password, nil
	}
	if p := os.Getenv(passwordEnv); p != "" {
		return p, nil
	}
	if o.Stdin != nil {
		line, _ := bufio.NewReader(o.Stdin).ReadString('\n')
		if p := strings.TrimRight(line, "\r\n"); p != "" {
			return p, nil
		}
	}
	return "", NewExitError(ExitCommandError, reasonInvalidInput, "senha nao informada")
}

func NewLogoutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and forget the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := rootOpts.App(ctx)
			if err != nil {
				return err
			}
			if app.Session.Hydrate(ctx) {
				app.Session.Logout(ctx)
			}
			view := newSessionView(app.Session.State())
			return rootOpts.formatter().Success(view, view.table(time.Now()))
		},
	}
}

// WhoamiOptions holds flags for the whoami command.
type WhoamiOptions struct {
	*RootOptions
	Validate bool
}

func NewWhoamiCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WhoamiOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the persisted session and when its token expires",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := requireSession(ctx, opts.RootOptions)
			if err != nil {
				return err
			}
			view := newSessionView(app.Session.State())
			if opts.Validate {
				valid := app.Session.ValidateToken(ctx)
				view.Valid = &valid
				// a rejected token has already ended the session
				if st := app.Session.State(); !valid && !st.IsAuthenticated {
					msg := st.Error
					if msg == "" {
						msg = apierror.MsgUnauthorized
					}
					return NewExitError(ExitUnauthenticated, string(apierror.CodeUnauthorized), msg)
				}
			}
			return opts.formatter().Success(view, view.table(time.Now()))
		},
	}

	cmd.Flags().BoolVar(&opts.Validate, "validate", false, "ask the API whether the token is still accepted")

	return cmd
}
