package api_test

import (
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenx/certdash/api"
	"github.com/tenx/certdash/auth"
	"github.com/tenx/certdash/certificate"
	"github.com/tenx/certdash/internal/fakeapi"
	"github.com/tenx/certdash/transport"
)

type tokenHolder struct{ token string }

func (h *tokenHolder) Token() string { return h.token }

func setup(t *testing.T) (*fakeapi.Server, *api.Client, *tokenHolder) {
	t.Helper()
	srv := fakeapi.Start(t)
	srv.AddUser(fakeapi.User{ID: 1, Username: "issuer", Password: "secret", Role: auth.RoleIssuer, AccountAddress: "0xabc"})
	srv.AddUser(fakeapi.User{ID: 2, Username: "trainee", Password: "hunter2", Role: auth.RoleTrainee})

	holder := &tokenHolder{}
	tc, err := transport.New(srv.URL(), transport.WithCredentials(holder))
	require.NoError(t, err)
	return srv, api.New(tc), holder
}

func login(t *testing.T, c *api.Client, holder *tokenHolder, user, pass string) *auth.Session {
	t.Helper()
	sess, err := c.Auth.Login(t.Context(), api.LoginRequest{Username: user, Password: []byte(pass)})
	require.NoError(t, err)
	holder.token = sess.Token
	return sess
}

func TestLogin(t *testing.T) {
	_, c, holder := setup(t)

	sess := login(t, c, holder, "issuer", "secret")
	assert.NotEmpty(t, sess.Token)
	assert.Equal(t, auth.RoleIssuer, sess.Role)
	assert.Equal(t, "issuer", sess.Username)
	assert.Equal(t, "0xabc", sess.AccountAddress)
}

func TestLoginInvalidCredentials(t *testing.T) {
	_, c, _ := setup(t)

	sess, err := c.Auth.Login(t.Context(), api.LoginRequest{Username: "issuer", Password: []byte("wrong")})
	require.Error(t, err)
	assert.Nil(t, sess)
	assert.Equal(t, "Invalid username or password", transport.Message(err))
}

func TestListRequiresToken(t *testing.T) {
	_, c, _ := setup(t)

	_, err := c.Certificates.List(t.Context())
	require.Error(t, err)
	assert.Equal(t, "Unauthorized", transport.Message(err))
}

func TestListEmpty(t *testing.T) {
	_, c, holder := setup(t)
	login(t, c, holder, "issuer", "secret")

	certs, err := c.Certificates.List(t.Context())
	require.NoError(t, err)
	assert.NotNil(t, certs)
	assert.Empty(t, certs)
}

func TestCreateAndList(t *testing.T) {
	_, c, holder := setup(t)
	login(t, c, holder, "issuer", "secret")

	score := decimal.RequireFromString("91.5")
	created, err := c.Certificates.Create(t.Context(), certificate.CreateRequest{
		UserID: 2, ChallengeID: 3, CertificateName: "Week 1", Score: &score,
	})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "Week 1", created.Title)
	assert.Equal(t, certificate.StatusNoRequest, created.Status)
	assert.True(t, created.Score.Equal(score))

	certs, err := c.Certificates.List(t.Context())
	require.NoError(t, err)
	require.Len(t, certs, 1)
	assert.Equal(t, created.ID, certs[0].ID)
}

func TestCreateForbiddenForTrainee(t *testing.T) {
	_, c, holder := setup(t)
	login(t, c, holder, "trainee", "hunter2")

	_, err := c.Certificates.Create(t.Context(), certificate.CreateRequest{UserID: 2, ChallengeID: 1, CertificateName: "x"})
	require.Error(t, err)
	assert.Equal(t, "Only issuers can create certificates", transport.Message(err))
}

func TestUpdateOptIn(t *testing.T) {
	srv, c, holder := setup(t)
	cert := srv.AddCertificate(certificate.Certificate{UserID: 2, Title: "Week 1"})
	login(t, c, holder, "trainee", "hunter2")

	updated, err := c.Certificates.Update(t.Context(), certificate.PathOptIn, cert.ID, []byte("hunter2"))
	require.NoError(t, err)
	assert.Equal(t, cert.ID, updated.ID)
	assert.Equal(t, certificate.StatusPending, updated.Status)
}

func TestUpdateWrongPassword(t *testing.T) {
	srv, c, holder := setup(t)
	cert := srv.AddCertificate(certificate.Certificate{UserID: 2})
	login(t, c, holder, "trainee", "hunter2")

	_, err := c.Certificates.Update(t.Context(), certificate.PathOptIn, cert.ID, []byte("nope"))
	require.Error(t, err)
	assert.Equal(t, "Invalid password", transport.Message(err))

	stored, ok := srv.Certificate(cert.ID)
	require.True(t, ok)
	assert.Equal(t, certificate.StatusNoRequest, stored.Status)
}

func TestUpdateUnknownPathNotSent(t *testing.T) {
	srv, c, holder := setup(t)
	login(t, c, holder, "trainee", "hunter2")

	_, err := c.Certificates.Update(t.Context(), certificate.UpdatePath("optout"), 1, []byte("hunter2"))
	assert.ErrorIs(t, err, api.ErrUnknownPath)
	assert.Zero(t, srv.Requests(fakeapi.RouteOptIn))
	assert.Zero(t, srv.Requests(fakeapi.RouteApprove))
}

func TestApprove(t *testing.T) {
	srv, c, holder := setup(t)
	cert := srv.AddCertificate(certificate.Certificate{UserID: 2, Status: certificate.StatusPending})
	login(t, c, holder, "issuer", "secret")

	updated, err := c.Certificates.Update(t.Context(), certificate.PathApprove, cert.ID, []byte("secret"))
	require.NoError(t, err)
	assert.Equal(t, certificate.StatusApproved, updated.Status)
	assert.NotEmpty(t, updated.IPFSHash)
	assert.NotEmpty(t, updated.ContentURL(""))
}

func TestRejectionWithoutBody(t *testing.T) {
	srv, c, holder := setup(t)
	login(t, c, holder, "issuer", "secret")
	srv.Reply(fakeapi.RouteList, fakeapi.Response{Status: http.StatusInternalServerError})

	_, err := c.Certificates.List(t.Context())
	require.Error(t, err)
	assert.Empty(t, transport.Message(err))
	assert.ErrorIs(t, err, transport.ErrStatus)
}
