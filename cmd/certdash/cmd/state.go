package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/tenx/certdash/storage"
	"github.com/tenx/certdash/store"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect or reset the locally persisted state",
}

// ---------------------------------------------------------------------------
// Verification result types
// ---------------------------------------------------------------------------

type verifyResult struct {
	Record       string        `json:"record"`
	Scheme       string        `json:"scheme,omitempty"`
	Written      time.Time     `json:"written,omitzero"`
	Certificates int           `json:"certificates"`
	Valid        bool          `json:"valid"`
	Checks       []checkResult `json:"checks"`
}

type checkResult struct {
	Name   string `json:"name"`
	Status string `json:"status"` // "pass", "fail", "warn"
	Detail string `json:"detail,omitempty"`
}

var errStateInvalid = errors.New("persisted state is invalid")

// ---------------------------------------------------------------------------
// Core verification logic
// ---------------------------------------------------------------------------

// verifyPersisted checks a persisted record. env and getErr are the raw
// repository read; st and loadErr the decoded result.
func verifyPersisted(env *storage.Envelope, getErr error, st store.State, loadErr error, sealing bool) verifyResult {
	result := verifyResult{
		Record: store.PersistNamespace + "/" + store.PersistKey,
		Valid:  true,
	}
	pass := func(name, detail string) {
		result.Checks = append(result.Checks, checkResult{Name: name, Status: "pass", Detail: detail})
	}
	warn := func(name, detail string) {
		result.Checks = append(result.Checks, checkResult{Name: name, Status: "warn", Detail: detail})
	}
	fail := func(name, detail string) {
		result.Valid = false
		result.Checks = append(result.Checks, checkResult{Name: name, Status: "fail", Detail: detail})
	}

	// 1. Record present.
	if errors.Is(getErr, storage.ErrNotFound) {
		warn("record_present", "nothing persisted yet")
		return result
	}
	if getErr != nil {
		fail("record_present", getErr.Error())
		return result
	}
	pass("record_present", "")

	// 2. Envelope scheme.
	result.Scheme = env.Scheme
	result.Written = env.Written
	switch env.Scheme {
	case storage.SchemeAES256GCM:
		pass("envelope_scheme", "sealed")
	case storage.SchemeRaw:
		if sealing {
			warn("envelope_scheme", "stored unsealed; the next save seals it")
		} else {
			pass("envelope_scheme", "unsealed")
		}
	default:
		fail("envelope_scheme", fmt.Sprintf("unknown scheme %q", env.Scheme))
	}

	// 3. Decodes.
	if loadErr != nil {
		fail("decodes", loadErr.Error())
		return result
	}
	pass("decodes", "")

	// 4. Session.
	switch sess := st.Auth.Session; {
	case sess == nil:
		warn("session", "no session stored")
	case sess.Token == "":
		fail("session", "session has no token")
	case !sess.Role.Valid():
		fail("session", fmt.Sprintf("unknown role %q", sess.Role))
	default:
		pass("session", sess.String())
	}

	// 5. Certificate statuses and ids.
	certs := st.Certificates.Certificates
	result.Certificates = len(certs)
	seen := make(map[int]int, len(certs))
	statusOK, dupOK := true, true
	for i, c := range certs {
		if statusOK && !c.Status.Valid() {
			statusOK = false
			fail("certificate_status", fmt.Sprintf("certificate %d has unknown status %q", c.ID, c.Status))
		}
		if prev, ok := seen[c.ID]; ok && dupOK {
			dupOK = false
			fail("no_duplicate_ids", fmt.Sprintf("entry %d and entry %d share id=%d", prev, i, c.ID))
		}
		seen[c.ID] = i
	}
	if statusOK {
		pass("certificate_status", fmt.Sprintf("%d certificate(s)", len(certs)))
	}
	if dupOK {
		pass("no_duplicate_ids", "")
	}
	return result
}

// ---------------------------------------------------------------------------
// Output formatting
// ---------------------------------------------------------------------------

func printHumanResult(w io.Writer, result verifyResult) {
	fmt.Fprintf(w, "Persisted state: %s\n", result.Record)
	if result.Scheme != "" {
		fmt.Fprintf(w, "Scheme:  %s\n", result.Scheme)
	}
	if !result.Written.IsZero() {
		fmt.Fprintf(w, "Written: %s\n", result.Written.Local().Format(time.RFC1123))
	}
	fmt.Fprintf(w, "Certificates: %d\n\n", result.Certificates)

	failures, warnings := 0, 0
	for _, c := range result.Checks {
		tag := "[PASS]"
		switch c.Status {
		case "fail":
			tag = "[FAIL]"
			failures++
		case "warn":
			tag = "[WARN]"
			warnings++
		}
		if c.Detail != "" {
			fmt.Fprintf(w, "%s %s: %s\n", tag, c.Name, c.Detail)
		} else {
			fmt.Fprintf(w, "%s %s\n", tag, c.Name)
		}
	}

	fmt.Fprintln(w)
	if result.Valid {
		fmt.Fprintln(w, "Result: VALID")
	} else {
		fmt.Fprintf(w, "Result: INVALID (%d error(s), %d warning(s))\n", failures, warnings)
	}
}

func printJSONResult(w io.Writer, result verifyResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// ---------------------------------------------------------------------------
// Cobra commands
// ---------------------------------------------------------------------------

var verifyJSONOutput bool

var stateVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the persisted state record",
	Long: `Reads the persisted state record and checks that it opens with the
configured passphrase, decodes, and holds a well-formed session and
certificate list.`,
	Args: cobra.NoArgs,
	RunE: withRuntime(func(cmd *cobra.Command, rt *runtime, args []string) error {
		ctx := cmd.Context()
		env, getErr := rt.repo.Get(ctx, store.PersistNamespace, store.PersistKey)
		var st store.State
		var loadErr error
		if getErr == nil {
			st, loadErr = rt.persister.Load(ctx)
		}
		result := verifyPersisted(env, getErr, st, loadErr, rt.cfg.StatePassphrase != "")

		if verifyJSONOutput {
			if err := printJSONResult(cmd.OutOrStdout(), result); err != nil {
				return err
			}
		} else {
			printHumanResult(cmd.OutOrStdout(), result)
		}
		if !result.Valid {
			return errStateInvalid
		}
		return nil
	}),
}

var stateResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete the persisted state, including the session",
	Args:  cobra.NoArgs,
	RunE: withRuntime(func(cmd *cobra.Command, rt *runtime, args []string) error {
		if err := rt.persister.Reset(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Persisted state deleted.")
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(stateCmd)
	stateCmd.AddCommand(stateVerifyCmd, stateResetCmd)
	stateVerifyCmd.Flags().BoolVar(&verifyJSONOutput, "json", false, "Output results as JSON")
}
