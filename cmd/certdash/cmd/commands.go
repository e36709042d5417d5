package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tenx/certdash/dashboard"
	"github.com/tenx/certdash/intent"
	"github.com/tenx/certdash/store"
)

var errNotLoggedIn = fmt.Errorf("%w: run \"certdash login\" first", dashboard.ErrLoginRequired)

type runFunc func(cmd *cobra.Command, rt *runtime, args []string) error

// withRuntime opens the runtime for the duration of fn.
func withRuntime(fn runFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		rt, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := rt.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
		return fn(cmd, rt, args)
	}
}

// requireSession fails unless a session is active. The check is advisory;
// the API rejects requests without a valid token.
func requireSession(rt *runtime) error {
	if rt.store.State().Auth.Session == nil {
		return errNotLoggedIn
	}
	return nil
}

// fetchCertificates reloads the list and reports a failure message as an
// error.
func fetchCertificates(ctx context.Context, rt *runtime) (store.State, error) {
	st, err := rt.dispatch(ctx, intent.FetchAll{}, func(s store.State) bool {
		return !s.Certificates.IsLoading
	})
	if err != nil {
		return st, err
	}
	return st, certificateOutcome(rt, st)
}

// certificateOutcome turns the certificate slice's error into a Go error and
// clears the transient flags.
func certificateOutcome(rt *runtime, st store.State) error {
	rt.store.Dispatch(intent.CleanUpStatus{})
	if st.Certificates.Error != "" {
		return errors.New(st.Certificates.Error)
	}
	return nil
}
