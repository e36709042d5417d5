package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/tenx/certdash/certificate"
	"github.com/tenx/certdash/dashboard"
	"github.com/tenx/certdash/intent"
	"github.com/tenx/certdash/store"
)

var certificatesCmd = &cobra.Command{
	Use:     "certificates",
	Aliases: []string{"certs"},
	Short:   "List, issue and transfer certificates",
}

var listJSON bool

var certificatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the certificates visible to the signed-in user",
	Args:  cobra.NoArgs,
	RunE:  withRuntime(runCertificatesList),
}

var createFlags struct {
	userID      int
	challengeID int
	name        string
	score       string
}

var certificatesCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Issue a certificate (issuers only)",
	Args:  cobra.NoArgs,
	RunE:  withRuntime(runCertificatesCreate),
}

var actionHelp = map[certificate.Action]string{
	certificate.ActionOptIn:    "Request transfer of a certificate to your wallet",
	certificate.ActionOptOut:   "Withdraw a transfer request",
	certificate.ActionTransfer: "Approve a pending transfer (issuers only)",
	certificate.ActionRevoke:   "Revoke an approved transfer (issuers only)",
}

func init() {
	rootCmd.AddCommand(certificatesCmd)
	certificatesCmd.AddCommand(certificatesListCmd, certificatesCreateCmd)

	certificatesListCmd.Flags().BoolVar(&listJSON, "json", false, "Output the view as JSON")

	f := certificatesCreateCmd.Flags()
	f.IntVar(&createFlags.userID, "user-id", 0, "Trainee receiving the certificate")
	f.IntVar(&createFlags.challengeID, "challenge-id", 0, "Challenge the certificate is for")
	f.StringVar(&createFlags.name, "name", "", "Certificate name")
	f.StringVar(&createFlags.score, "score", "", "Score achieved")

	for _, action := range []certificate.Action{
		certificate.ActionOptIn, certificate.ActionOptOut,
		certificate.ActionTransfer, certificate.ActionRevoke,
	} {
		certificatesCmd.AddCommand(&cobra.Command{
			Use:   strings.ToLower(string(action)) + " <id>",
			Short: actionHelp[action],
			Args:  cobra.ExactArgs(1),
			RunE: withRuntime(func(cmd *cobra.Command, rt *runtime, args []string) error {
				return runCertificateAction(cmd, rt, action, args[0])
			}),
		})
	}
}

func runCertificatesList(cmd *cobra.Command, rt *runtime, args []string) error {
	if err := requireSession(rt); err != nil {
		return err
	}
	st, err := fetchCertificates(cmd.Context(), rt)
	if err != nil {
		return err
	}
	v, err := dashboard.Build(st, rt.view)
	if err != nil {
		return err
	}
	if listJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return dashboard.Render(cmd.OutOrStdout(), v)
}

func runCertificatesCreate(cmd *cobra.Command, rt *runtime, args []string) error {
	if err := requireSession(rt); err != nil {
		return err
	}
	req := certificate.CreateRequest{
		UserID:          createFlags.userID,
		ChallengeID:     createFlags.challengeID,
		CertificateName: createFlags.name,
	}
	if createFlags.score != "" {
		score, err := decimal.NewFromString(createFlags.score)
		if err != nil {
			return fmt.Errorf("invalid score %q: %w", createFlags.score, err)
		}
		req.Score = &score
	}

	a := intent.Create{Request: req}
	if err := rt.check(a); err != nil {
		return err
	}
	st, err := rt.dispatch(cmd.Context(), a, func(s store.State) bool { return !s.Certificates.IsLoading })
	if err != nil {
		return err
	}
	if err := certificateOutcome(rt, st); err != nil {
		return err
	}
	list := st.Certificates.Certificates
	created := list[len(list)-1]
	fmt.Fprintf(cmd.OutOrStdout(), "Certificate created successfully: #%d %s\n", created.ID, created.Title)
	return nil
}

func runCertificateAction(cmd *cobra.Command, rt *runtime, action certificate.Action, rawID string) error {
	if err := requireSession(rt); err != nil {
		return err
	}
	id, err := strconv.Atoi(rawID)
	if err != nil {
		return fmt.Errorf("invalid certificate id %q", rawID)
	}

	st := rt.store.State()
	c, ok := findCertificate(st, id)
	if !ok {
		if st, err = fetchCertificates(cmd.Context(), rt); err != nil {
			return err
		}
		if c, ok = findCertificate(st, id); !ok {
			return fmt.Errorf("%w: %d", dashboard.ErrUnknownCertificate, id)
		}
	}
	role := st.Auth.Session.Role
	if !certificate.Allowed(role, c.Status, action) {
		return fmt.Errorf("%w: %s is not available on certificate #%d (%s)", dashboard.ErrForbidden, action, id, c.Status)
	}

	pw, err := newPrompter(cmd).password("Password: ")
	if err != nil {
		return err
	}
	a := intent.Update{Path: action.Path(), ID: id, Password: intent.NewSecret(pw)}
	if err := rt.check(a); err != nil {
		return err
	}
	st, err = rt.dispatch(cmd.Context(), a, func(s store.State) bool { return !s.Certificates.IsLoading })
	if err != nil {
		return err
	}
	if err := certificateOutcome(rt, st); err != nil {
		return err
	}
	status := c.Status
	if updated, ok := findCertificate(st, id); ok {
		status = updated.Status
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Certificate updated successfully: #%d is now %s\n", id, status)
	return nil
}

func findCertificate(st store.State, id int) (certificate.Certificate, bool) {
	for _, c := range st.Certificates.Certificates {
		if c.ID == id {
			return c, true
		}
	}
	return certificate.Certificate{}, false
}
