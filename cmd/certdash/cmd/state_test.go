package cmd

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenx/certdash/auth"
	"github.com/tenx/certdash/certificate"
	"github.com/tenx/certdash/storage"
	"github.com/tenx/certdash/store"
)

func checkStatus(t *testing.T, r verifyResult, name string) string {
	t.Helper()
	for _, c := range r.Checks {
		if c.Name == name {
			return c.Status
		}
	}
	t.Fatalf("no check %q", name)
	return ""
}

func TestVerify_Missing(t *testing.T) {
	r := verifyPersisted(nil, storage.ErrNotFound, store.State{}, nil, false)
	assert.True(t, r.Valid)
	assert.Equal(t, "warn", checkStatus(t, r, "record_present"))
	assert.Len(t, r.Checks, 1)
}

func TestVerify_ReadError(t *testing.T) {
	r := verifyPersisted(nil, storage.ErrClosed, store.State{}, nil, false)
	assert.False(t, r.Valid)
	assert.Equal(t, "fail", checkStatus(t, r, "record_present"))
}

func TestVerify_ValidState(t *testing.T) {
	st := store.State{
		Auth: store.AuthState{Session: &auth.Session{Token: "t", Username: "a", Role: auth.RoleIssuer}},
		Certificates: store.CertificateState{Certificates: []certificate.Certificate{
			{ID: 1, Status: certificate.StatusPending},
			{ID: 2, Status: certificate.StatusApproved},
		}},
	}
	r := verifyPersisted(storage.RawRecord([]byte("{}")), nil, st, nil, false)
	assert.True(t, r.Valid)
	assert.Equal(t, 2, r.Certificates)
	for _, c := range r.Checks {
		assert.Equal(t, "pass", c.Status, c.Name)
	}
}

func TestVerify_UnsealedWithPassphraseWarns(t *testing.T) {
	r := verifyPersisted(storage.RawRecord([]byte("{}")), nil, store.State{}, nil, true)
	assert.True(t, r.Valid)
	assert.Equal(t, "warn", checkStatus(t, r, "envelope_scheme"))
	assert.Equal(t, "warn", checkStatus(t, r, "session"))
}

func TestVerify_Failures(t *testing.T) {
	env := &storage.Envelope{Ver: 1, Scheme: storage.SchemeAES256GCM}

	r := verifyPersisted(env, nil, store.State{}, errors.New("message authentication failed"), false)
	assert.False(t, r.Valid)
	assert.Equal(t, "fail", checkStatus(t, r, "decodes"))

	st := store.State{
		Auth: store.AuthState{Session: &auth.Session{Token: "t", Role: "Admin"}},
		Certificates: store.CertificateState{Certificates: []certificate.Certificate{
			{ID: 1, Status: certificate.StatusPending},
			{ID: 1, Status: "Lost"},
		}},
	}
	r = verifyPersisted(env, nil, st, nil, false)
	assert.False(t, r.Valid)
	assert.Equal(t, "fail", checkStatus(t, r, "session"))
	assert.Equal(t, "fail", checkStatus(t, r, "certificate_status"))
	assert.Equal(t, "fail", checkStatus(t, r, "no_duplicate_ids"))

	r = verifyPersisted(&storage.Envelope{Scheme: "rot13"}, nil, store.State{}, nil, false)
	assert.Equal(t, "fail", checkStatus(t, r, "envelope_scheme"))
}

func TestPrintHumanResult(t *testing.T) {
	r := verifyPersisted(&storage.Envelope{Scheme: "rot13"}, nil, store.State{}, nil, false)
	var buf bytes.Buffer
	printHumanResult(&buf, r)
	out := buf.String()
	assert.Contains(t, out, "[FAIL] envelope_scheme")
	assert.Contains(t, out, "Result: INVALID (1 error(s), 1 warning(s))")

	buf.Reset()
	require.NoError(t, printJSONResult(&buf, r))
	assert.Contains(t, buf.String(), `"valid": false`)
}

func TestPrintHumanResultShowsWriteTime(t *testing.T) {
	env := storage.RawRecord([]byte("{}"))
	env.Written = time.Date(2024, 1, 13, 9, 30, 0, 0, time.UTC)
	r := verifyPersisted(env, nil, store.State{}, nil, false)
	assert.Equal(t, env.Written, r.Written)

	var buf bytes.Buffer
	printHumanResult(&buf, r)
	assert.Contains(t, buf.String(), "Written: ")

	buf.Reset()
	require.NoError(t, printJSONResult(&buf, r))
	assert.Contains(t, buf.String(), `"written": "2024-01-13T09:30:00Z"`)
}
