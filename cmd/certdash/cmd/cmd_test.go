package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenx/certdash/auth"
	"github.com/tenx/certdash/certificate"
	"github.com/tenx/certdash/dashboard"
	"github.com/tenx/certdash/internal/fakeapi"
	"github.com/tenx/certdash/internal/form"
)

const (
	issuerID  = 1
	traineeID = 2
)

func startAPI(t *testing.T) *fakeapi.Server {
	t.Helper()
	srv := fakeapi.Start(t)
	srv.AddUser(fakeapi.User{ID: issuerID, Username: "issuer", Password: "secret", Role: auth.RoleIssuer})
	srv.AddUser(fakeapi.User{ID: traineeID, Username: "trainee", Password: "hunter2", Role: auth.RoleTrainee, AccountAddress: "0xabc"})
	return srv
}

// resetCommands restores every flag to its default and replaces every
// command's context, so runs do not leak into each other through the
// package-level command tree. Cobra keeps a subcommand's first context.
func resetCommands(c *cobra.Command, ctx context.Context) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	c.SetContext(ctx)
	for _, sub := range c.Commands() {
		resetCommands(sub, ctx)
	}
}

// client runs commands against one API with its own state directory.
type client struct {
	t       *testing.T
	apiURL  string
	dataDir string
}

func newClient(t *testing.T, srv *fakeapi.Server) *client {
	return &client{t: t, apiURL: srv.URL(), dataDir: t.TempDir()}
}

func (c *client) run(stdin string, args ...string) (string, error) {
	c.t.Helper()
	resetCommands(rootCmd, c.t.Context())
	var out bytes.Buffer
	rootCmd.SetArgs(append([]string{"--api-url", c.apiURL, "--data-dir", c.dataDir, "--log-level", "error"}, args...))
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	err := rootCmd.ExecuteContext(c.t.Context())
	return out.String(), err
}

func (c *client) mustRun(stdin string, args ...string) string {
	c.t.Helper()
	out, err := c.run(stdin, args...)
	require.NoError(c.t, err)
	return out
}

func TestVersion(t *testing.T) {
	c := newClient(t, startAPI(t))
	assert.Equal(t, "certdash dev\n", c.mustRun("", "version"))
}

func TestLoginStatusLogout(t *testing.T) {
	c := newClient(t, startAPI(t))

	out := c.mustRun("hunter2\n", "login", "--username", "trainee")
	assert.Equal(t, "Logged in successfully as trainee (Trainee)\n", out)

	out = c.mustRun("", "status")
	assert.Contains(t, out, "Signed in as trainee (Trainee)")
	assert.Contains(t, out, "Account: 0xabc")

	assert.Equal(t, "Logged out.\n", c.mustRun("", "logout"))
	assert.Equal(t, "Not logged in.\n", c.mustRun("", "status"))
}

func TestLoginPromptsForUsername(t *testing.T) {
	c := newClient(t, startAPI(t))
	out := c.mustRun("issuer\nsecret\n", "login")
	assert.Contains(t, out, "issuer (Issuer)")
}

func TestLoginInvalidCredentials(t *testing.T) {
	c := newClient(t, startAPI(t))

	_, err := c.run("wrong-password\n", "login", "--username", "trainee")
	require.Error(t, err)
	assert.Equal(t, "Invalid username or password", err.Error())
	assert.Equal(t, "Not logged in.\n", c.mustRun("", "status"))
}

func TestLoginValidationSkipsRequest(t *testing.T) {
	srv := startAPI(t)
	c := newClient(t, srv)

	_, err := c.run("ab\n", "login", "--username", "trainee")
	var fields form.Errors
	require.True(t, errors.As(err, &fields))
	assert.NotEmpty(t, fields.Field("password"))
	assert.Zero(t, srv.Requests(fakeapi.RouteLogin))
}

func TestCommandsRequireLogin(t *testing.T) {
	c := newClient(t, startAPI(t))

	_, err := c.run("", "certificates", "list")
	assert.True(t, errors.Is(err, dashboard.ErrLoginRequired))

	_, err = c.run("pw\n", "certificates", "optin", "1")
	assert.True(t, errors.Is(err, dashboard.ErrLoginRequired))
}

func TestCreateCertificate(t *testing.T) {
	srv := startAPI(t)
	issuer := newClient(t, srv)
	issuer.mustRun("secret\n", "login", "-u", "issuer")

	out := issuer.mustRun("", "certificates", "create",
		"--user-id", "2", "--challenge-id", "3", "--name", "Week 1", "--score", "91.5")
	assert.Contains(t, out, "Certificate created successfully: #1 Week 1")

	created, ok := srv.Certificate(1)
	require.True(t, ok)
	assert.Equal(t, traineeID, created.UserID)
	assert.Equal(t, issuerID, created.StaffID)
	assert.Equal(t, "91.5", created.Score.String())
}

func TestCreateCertificateGating(t *testing.T) {
	srv := startAPI(t)
	trainee := newClient(t, srv)
	trainee.mustRun("hunter2\n", "login", "-u", "trainee")

	_, err := trainee.run("", "certificates", "create", "--user-id", "2", "--challenge-id", "3", "--name", "x")
	assert.True(t, errors.Is(err, dashboard.ErrForbidden))

	issuer := newClient(t, srv)
	issuer.mustRun("secret\n", "login", "-u", "issuer")
	_, err = issuer.run("", "certificates", "create", "--challenge-id", "3")
	var fields form.Errors
	require.True(t, errors.As(err, &fields))
	assert.NotEmpty(t, fields.Field("user_id"))
	assert.NotEmpty(t, fields.Field("certificate_name"))

	_, err = issuer.run("", "certificates", "create", "--user-id", "2", "--challenge-id", "3", "--name", "x", "--score", "lots")
	assert.ErrorContains(t, err, "invalid score")
	assert.Zero(t, srv.Requests(fakeapi.RouteCreate))
}

func TestTransferFlow(t *testing.T) {
	srv := startAPI(t)
	cert := srv.AddCertificate(certificate.Certificate{UserID: traineeID, StaffID: issuerID, Title: "Blockchain Basics"})

	trainee := newClient(t, srv)
	trainee.mustRun("hunter2\n", "login", "-u", "trainee")

	out := trainee.mustRun("", "certificates", "list")
	assert.Contains(t, out, "Blockchain Basics")
	assert.Contains(t, out, "OptIn")

	id := itoa(cert.ID)
	out = trainee.mustRun("hunter2\n", "certificates", "optin", id)
	assert.Equal(t, "Certificate updated successfully: #"+id+" is now Pending\n", out)

	issuer := newClient(t, srv)
	issuer.mustRun("secret\n", "login", "-u", "issuer")

	_, err := issuer.run("wrong\n", "certificates", "transfer", id)
	assert.EqualError(t, err, "Invalid password")

	out = issuer.mustRun("secret\n", "certificates", "transfer", id)
	assert.Contains(t, out, "is now Approved")

	out = trainee.mustRun("", "certificates", "list", "--json")
	var v dashboard.View
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	require.Len(t, v.Rows, 1)
	assert.Equal(t, certificate.StatusApproved, v.Rows[0].Status)
	assert.True(t, strings.HasPrefix(v.Rows[0].ContentURL, certificate.DefaultContentGateway+"Qm"))
	assert.Equal(t, []certificate.Action{certificate.ActionOptOut}, v.Rows[0].Actions)
}

func TestActionGatingSkipsRequest(t *testing.T) {
	srv := startAPI(t)
	cert := srv.AddCertificate(certificate.Certificate{UserID: traineeID, Title: "Week 2"})

	trainee := newClient(t, srv)
	trainee.mustRun("hunter2\n", "login", "-u", "trainee")

	_, err := trainee.run("", "certificates", "transfer", itoa(cert.ID))
	assert.True(t, errors.Is(err, dashboard.ErrForbidden))

	_, err = trainee.run("", "certificates", "optout", itoa(cert.ID))
	assert.True(t, errors.Is(err, dashboard.ErrForbidden), "opt-out needs a pending request")

	_, err = trainee.run("", "certificates", "optin", "999")
	assert.True(t, errors.Is(err, dashboard.ErrUnknownCertificate))

	_, err = trainee.run("", "certificates", "optin", "abc")
	assert.ErrorContains(t, err, "invalid certificate id")

	assert.Zero(t, srv.Requests(fakeapi.RouteOptIn))
	assert.Zero(t, srv.Requests(fakeapi.RouteApprove))
}

func TestServerFailureUsesFallbackMessage(t *testing.T) {
	srv := startAPI(t)
	trainee := newClient(t, srv)
	trainee.mustRun("hunter2\n", "login", "-u", "trainee")

	srv.Reply(fakeapi.RouteList, fakeapi.Response{Status: http.StatusInternalServerError})
	_, err := trainee.run("", "certificates", "list")
	assert.EqualError(t, err, "Something went wrong! try again")
}

func TestAssetCreateWithoutWallet(t *testing.T) {
	c := newClient(t, startAPI(t))
	_, err := c.run("", "asset", "create", "--name", "cert", "--url", "https://example.com/a.json")
	assert.EqualError(t, err, "No wallet configured")
}

func TestStateVerifyAndReset(t *testing.T) {
	c := newClient(t, startAPI(t))

	out, err := c.run("", "state", "verify")
	require.NoError(t, err)
	assert.Contains(t, out, "[WARN] record_present")

	c.mustRun("hunter2\n", "login", "-u", "trainee")
	out = c.mustRun("", "state", "verify")
	assert.Contains(t, out, "[PASS] session: trainee (Trainee)")
	assert.Contains(t, out, "Result: VALID")

	out = c.mustRun("", "state", "verify", "--json")
	var result verifyResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.True(t, result.Valid)
	assert.Equal(t, "raw", result.Scheme)
	assert.False(t, result.Written.IsZero())

	assert.Equal(t, "Persisted state deleted.\n", c.mustRun("", "state", "reset"))
	assert.Equal(t, "Not logged in.\n", c.mustRun("", "status"))
	_, err = os.Stat(filepath.Join(c.dataDir, "state.db"))
	assert.NoError(t, err)
}

func TestStateSealedWithPassphrase(t *testing.T) {
	c := newClient(t, startAPI(t))
	t.Setenv("CERTDASH_STATE_PASSPHRASE", "correct horse")
	c.mustRun("hunter2\n", "login", "-u", "trainee")

	out := c.mustRun("", "state", "verify", "--json")
	var result verifyResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "aes256gcm", result.Scheme)
	assert.True(t, result.Valid)

	t.Setenv("CERTDASH_STATE_PASSPHRASE", "")
	assert.Equal(t, "Not logged in.\n", c.mustRun("", "status"), "sealed state without the passphrase falls back to defaults")
	_, err := c.run("", "state", "verify")
	assert.ErrorIs(t, err, errStateInvalid)
}

func TestServeRouter(t *testing.T) {
	c := newClient(t, startAPI(t))
	c.mustRun("hunter2\n", "login", "-u", "trainee")

	resetCommands(rootCmd, t.Context())
	require.NoError(t, rootCmd.ParseFlags([]string{"--api-url", c.apiURL, "--data-dir", c.dataDir, "--log-level", "error"}))
	rootCmd.SetErr(io.Discard)
	rt, err := openRuntime(rootCmd)
	require.NoError(t, err)
	defer rt.Close()

	srv := httptest.NewServer(newServeRouter(rt))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "OK", string(body))

	resp, err = http.Get(srv.URL + "/api/view")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var v dashboard.View
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	assert.Equal(t, "trainee", v.User.Username)
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
