package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/connectin-session/authapi"
	"github.com/jrsteele09/connectin-session/internal/config"
	"github.com/jrsteele09/connectin-session/internal/utils"
	"github.com/jrsteele09/connectin-session/session"
	"github.com/jrsteele09/connectin-session/transport"
	"github.com/jrsteele09/connectin-session/users"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const userLoadWait = 5 * time.Second

// newRootCmd returns the CLI and a cleanup that releases whatever the
// invoked command wired up. Cleanup must run even when the command fails.
func newRootCmd() (*cobra.Command, func()) {
	var a *app

	root := &cobra.Command{
		Use:           "connectin",
		Short:         "Manage a ConnectIn session from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			a, err = newApp(cmd.Context(), config.New(), cmd.ErrOrStderr())
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			displayAppname(a.cfg.GetAppName())
			return cmd.Help()
		},
	}
	root.SetContext(context.Background())

	current := func() *app { return a }
	root.AddCommand(
		newLoginCmd(current),
		newRegisterCmd(current),
		newLogoutCmd(current),
		newWhoamiCmd(current),
		newStatusCmd(current),
		newGetCmd(current),
		newOAuthURLCmd(current),
		newOAuthCallbackCmd(current),
	)

	cleanup := func() {
		if a != nil {
			a.Close()
		}
	}
	return root, cleanup
}

// shownError has already been reported to the user
type shownError struct {
	error
}

func (e shownError) Unwrap() error { return e.error }

// fail prints the user facing message for err and returns err for the exit code
func fail(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), session.DisplayMessage(err))
	return shownError{err}
}

func newLoginCmd(current func() *app) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Log in with a username and password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := current()
			if err := a.manager.Login(cmd.Context(), args[0], password); err != nil {
				a.logger.Debug().Err(err).Msg("login")
				return fail(cmd, err)
			}
			displayAppname(a.cfg.GetAppName())
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", a.manager.User().Name())
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newRegisterCmd(current func() *app) *cobra.Command {
	var registration authapi.Registration
	cmd := &cobra.Command{
		Use:   "register <username>",
		Short: "Create an account and log in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registration.Username = args[0]
			if err := users.ValidatePasswordStrength(registration.Password); err != nil {
				return err
			}
			a := current()
			if err := a.manager.Register(cmd.Context(), registration); err != nil {
				a.logger.Debug().Err(err).Msg("register")
				return fail(cmd, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Welcome to ConnectIn, %s\n", a.manager.User().Name())
			return nil
		},
	}
	cmd.Flags().StringVarP(&registration.Password, "password", "p", "", "account password")
	cmd.Flags().StringVar(&registration.Email, "email", "", "email address")
	cmd.Flags().StringVar(&registration.DisplayName, "name", "", "display name")
	_ = cmd.MarkFlagRequired("password")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newLogoutCmd(current func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			current().manager.Logout(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func newWhoamiCmd(current func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := current()
			if !a.manager.IsAuthenticated() {
				fmt.Fprintln(cmd.OutOrStdout(), "Not logged in")
				return nil
			}
			user := utils.Value(waitForUser(cmd.Context(), a.manager, userLoadWait))
			if user.Username == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "Logged in, profile unavailable")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (@%s)\n", user.Name(), user.Username)
			if user.Avatar != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "avatar: %s\n", user.Avatar)
			}
			return nil
		},
	}
}

// waitForUser returns the session user, waiting up to timeout for a restored
// session to finish loading its profile
func waitForUser(ctx context.Context, manager *session.Manager, timeout time.Duration) *users.Summary {
	loaded := make(chan *users.Summary, 1)
	unsubscribe := manager.Subscribe(func(event session.Event) {
		if event.Kind == session.EventUserLoaded {
			select {
			case loaded <- event.Session.User:
			default:
			}
		}
	})
	defer unsubscribe()

	if user := manager.User(); user != nil {
		return user
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	select {
	case user := <-loaded:
		return user
	case <-ctx.Done():
		return manager.User()
	}
}

func newStatusCmd(current func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether a session is active and when its token expires",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := current().manager.Session()
			out := cmd.OutOrStdout()
			if !s.Authenticated() {
				fmt.Fprintln(out, "status: anonymous")
				return nil
			}
			fmt.Fprintln(out, "status: authenticated")
			fmt.Fprintf(out, "expires: %s (in %s)\n", s.ExpiresAt.Local().Format(time.RFC3339), time.Until(s.ExpiresAt).Round(time.Second))
			fmt.Fprintf(out, "refresh token: %t\n", s.RefreshToken != "")
			return nil
		},
	}
}

func newGetCmd(current func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <path>",
		Short: "GET an API path with the session credential attached",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := current()
			client := transport.NewClient(a.manager, a.cfg.GetRequestTimeout(), transport.WithLogger(a.logger))

			url := strings.TrimRight(a.cfg.GetAPIBaseURL(), "/") + "/" + strings.TrimLeft(args[0], "/")
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, url, nil)
			if err != nil {
				return errors.Wrap(err, "get NewRequest")
			}
			resp, err := client.Do(req)
			if err != nil {
				return fail(cmd, err)
			}
			defer resp.Body.Close()

			fmt.Fprintln(cmd.ErrOrStderr(), resp.Status)
			_, err = io.Copy(cmd.OutOrStdout(), resp.Body)
			if resp.StatusCode >= 400 {
				return errors.Errorf("get %s: %s", args[0], resp.Status)
			}
			return err
		},
	}
}

func newOAuthURLCmd(current func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "oauth-url <state>",
		Short: "Print the social login URL and the verifier to pass to oauth-callback",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			authURL, verifier, err := current().manager.OAuthURL(args[0])
			if err != nil {
				return fail(cmd, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), authURL)
			fmt.Fprintf(cmd.OutOrStdout(), "verifier: %s\n", verifier)
			return nil
		},
	}
}

func newOAuthCallbackCmd(current func() *app) *cobra.Command {
	var verifier string
	cmd := &cobra.Command{
		Use:   "oauth-callback <code>",
		Short: "Complete a social login with the code from the provider redirect",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := current()
			if err := a.manager.LoginWithOAuth(cmd.Context(), args[0], verifier); err != nil {
				a.logger.Debug().Err(err).Msg("oauth callback")
				return fail(cmd, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", a.manager.User().Name())
			return nil
		},
	}
	cmd.Flags().StringVar(&verifier, "verifier", "", "PKCE verifier printed by oauth-url")
	return cmd
}
