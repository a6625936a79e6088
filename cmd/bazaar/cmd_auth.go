package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/bookbazaar/bazaar/internal/auth"
)

var (
	loginEmail     string
	signupEmail    string
	signupUsername string
)

func registerAuthCommands(root *cobra.Command) {
	loginCmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		Args:  cobra.NoArgs,
		RunE:  runLogin,
	}
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "Account email (prompted when empty)")

	signupCmd := &cobra.Command{
		Use:   "signup",
		Short: "Create a new account",
		Args:  cobra.NoArgs,
		RunE:  runSignup,
	}
	signupCmd.Flags().StringVar(&signupEmail, "email", "", "Account email (prompted when empty)")
	signupCmd.Flags().StringVar(&signupUsername, "username", "", "Public username (prompted when empty)")

	logoutCmd := &cobra.Command{
		Use:   "logout",
		Short: "Sign out and remove the stored session",
		Args:  cobra.NoArgs,
		RunE:  runLogout,
	}

	whoamiCmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE:  runWhoami,
	}

	root.AddCommand(loginCmd, signupCmd, logoutCmd, whoamiCmd)
}

// prompter reads answers from the command's input, hiding passwords when
// that input is a terminal.
type prompter struct {
	in  io.Reader
	r   *bufio.Reader
	out io.Writer
}

func newPrompter(cmd *cobra.Command) *prompter {
	in := cmd.InOrStdin()
	return &prompter{in: in, r: bufio.NewReader(in), out: cmd.OutOrStdout()}
}

func (p *prompter) ask(label string) (string, error) {
	fmt.Fprint(p.out, label+": ")
	line, err := p.r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read %s: %w", label, err)
	}
	return strings.TrimSpace(line), nil
}

func (p *prompter) password(label string) (string, error) {
	if f, ok := p.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(p.out, label+": ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(p.out)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", label, err)
		}
		return string(b), nil
	}
	return p.ask(label)
}

// cmdContext returns the command's context, or Background when the command
// was invoked without Execute.
func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func runLogin(cmd *cobra.Command, args []string) error {
	svc, err := newServices()
	if err != nil {
		return err
	}
	defer svc.Close() //nolint:errcheck

	p := newPrompter(cmd)
	email := loginEmail
	if email == "" {
		if email, err = p.ask("Email"); err != nil {
			return err
		}
	}
	password, err := p.password("Password")
	if err != nil {
		return err
	}

	ctx := cmdContext(cmd)
	sess, err := svc.auth.SignIn(ctx, email, password)
	if err != nil {
		if errors.Is(err, auth.ErrSessionIssue) {
			return auth.ErrSessionIssue
		}
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", sess.User.DisplayName())

	// Replay anything queued while offline.
	if res, err := svc.market.FlushOutbox(ctx, sess); err == nil && res.Delivered > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "Delivered %d queued seller notification(s)\n", res.Delivered)
	}
	return nil
}

func runSignup(cmd *cobra.Command, args []string) error {
	svc, err := newServices()
	if err != nil {
		return err
	}
	defer svc.Close() //nolint:errcheck

	p := newPrompter(cmd)
	email, username := signupEmail, signupUsername
	if email == "" {
		if email, err = p.ask("Email"); err != nil {
			return err
		}
	}
	if username == "" {
		if username, err = p.ask("Username"); err != nil {
			return err
		}
	}
	password, err := p.password("Password")
	if err != nil {
		return err
	}

	ctx := cmdContext(cmd)
	u, err := svc.auth.SignUp(ctx, email, password, username)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Account created for %s. Confirm your email, then run `bazaar login`.\n", u.Email)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	svc, err := newServices()
	if err != nil {
		return err
	}
	defer svc.Close() //nolint:errcheck

	ctx := cmdContext(cmd)
	sess, err := svc.auth.Restore(ctx)
	if err != nil {
		return err
	}
	if sess == nil {
		fmt.Fprintln(cmd.OutOrStdout(), "Already logged out.")
		return nil
	}
	if err := svc.auth.SignOut(ctx, sess); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
	return nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	svc, err := newServices()
	if err != nil {
		return err
	}
	defer svc.Close() //nolint:errcheck

	ctx := cmdContext(cmd)
	sess, err := svc.auth.Restore(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if sess == nil {
		fmt.Fprintln(out, "Not signed in. Run `bazaar login`.")
		return nil
	}
	fmt.Fprintf(out, "%s <%s>\n", sess.User.DisplayName(), sess.User.Email)
	fmt.Fprintf(out, "user id: %s\n", sess.User.ID)
	if !sess.ExpiresAt.IsZero() {
		fmt.Fprintf(out, "session expires: %s\n", sess.ExpiresAt.Local().Format("2006-01-02 15:04"))
	}
	if n, err := svc.market.PendingNotifications(ctx, sess); err == nil && n > 0 {
		fmt.Fprintf(out, "queued notifications: %d (run `bazaar outbox flush`)\n", n)
	}
	return nil
}
