package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tenx/certdash/dashboard"
	"github.com/tenx/certdash/intent"
	"github.com/tenx/certdash/store"
)

var loginUsername string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the certificate API",
	Long: `Prompts for the password (without echo on a terminal) and stores the
returned session in the local state database.`,
	Args: cobra.NoArgs,
	RunE: withRuntime(runLogin),
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the current session",
	Args:  cobra.NoArgs,
	RunE: withRuntime(func(cmd *cobra.Command, rt *runtime, args []string) error {
		rt.store.Dispatch(intent.Logout{})
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
		return nil
	}),
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the signed-in user",
	Args:  cobra.NoArgs,
	RunE: withRuntime(func(cmd *cobra.Command, rt *runtime, args []string) error {
		out := cmd.OutOrStdout()
		v, err := dashboard.Build(rt.store.State(), rt.view)
		if errors.Is(err, dashboard.ErrLoginRequired) {
			fmt.Fprintln(out, "Not logged in.")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Signed in as %s (%s)\n", v.User.Username, v.User.Role)
		if v.User.AccountAddress != "" {
			fmt.Fprintf(out, "Account: %s\n", v.User.AccountAddress)
		}
		fmt.Fprintf(out, "API: %s\n", rt.cfg.APIURL)
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(loginCmd, logoutCmd, statusCmd)
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "Username (prompted when empty)")
}

func runLogin(cmd *cobra.Command, rt *runtime, args []string) error {
	p := newPrompter(cmd)
	username := loginUsername
	if username == "" {
		var err error
		if username, err = p.text("Username: "); err != nil {
			return err
		}
	}
	pw, err := p.password("Password: ")
	if err != nil {
		return err
	}

	a := intent.Login{Username: username, Password: intent.NewSecret(pw)}
	if err := rt.check(a); err != nil {
		return err
	}
	st, err := rt.dispatch(cmd.Context(), a, func(s store.State) bool { return !s.Auth.IsLoading })
	rt.store.Dispatch(intent.CleanAuthStatus{})
	if err != nil {
		return err
	}
	if st.Auth.Error != "" {
		return errors.New(st.Auth.Error)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Logged in successfully as %s\n", st.Auth.Session)
	return nil
}
