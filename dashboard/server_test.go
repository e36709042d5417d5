package dashboard

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/awnumar/memguard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenx/certdash/auth"
	"github.com/tenx/certdash/certificate"
	"github.com/tenx/certdash/events"
	"github.com/tenx/certdash/intent"
	"github.com/tenx/certdash/store"
)

func setupServer(t *testing.T, st *store.Store, opts ...ServerOption) *httptest.Server {
	t.Helper()
	opts = append([]ServerOption{WithLogger(slog.New(slog.DiscardHandler))}, opts...)
	srv := httptest.NewServer(NewServer(st, opts...).Router())
	t.Cleanup(srv.Close)
	return srv
}

func postIntent(t *testing.T, srv *httptest.Server, name, body string) (*http.Response, ErrorResponse) {
	t.Helper()
	req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, srv.URL+"/api/intents/"+name, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out ErrorResponse
	if resp.StatusCode >= 400 {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func issuerStore(certs ...certificate.Certificate) *store.Store {
	return store.New(store.WithInitialState(loggedIn(auth.RoleIssuer, certs...)))
}

func TestGetViewRequiresLogin(t *testing.T) {
	srv := setupServer(t, store.New())

	resp, err := http.Get(srv.URL + "/api/view")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
	assert.Empty(t, resp.Header.Get("Strict-Transport-Security"))
}

func TestGetView(t *testing.T) {
	st := issuerStore(certificate.Certificate{ID: 7, Title: "Final", Status: certificate.StatusPending})
	srv := setupServer(t, st)

	resp, err := http.Get(srv.URL + "/api/view")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var v View
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	assert.Equal(t, "alice", v.User.Username)
	assert.True(t, v.CanCreate)
	require.Len(t, v.Rows, 1)
	assert.Equal(t, 7, v.Rows[0].ID)
	assert.Equal(t, []certificate.Action{certificate.ActionTransfer, certificate.ActionRevoke}, v.Rows[0].Actions)
}

func TestListIntents(t *testing.T) {
	srv := setupServer(t, store.New())

	resp, err := http.Get(srv.URL + "/api/intents")
	require.NoError(t, err)
	defer resp.Body.Close()

	var names []string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&names))
	assert.Equal(t, intent.Names(), names)
}

func TestPostIntentDispatches(t *testing.T) {
	st := store.New()
	got := make(chan intent.Action, 1)
	st.AddListener(func(a intent.Action, _ store.State) { got <- a })
	srv := setupServer(t, st)

	resp, _ := postIntent(t, srv, "login", `{"username":"alice","password":"hunter2"}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	login, ok := (<-got).(intent.Login)
	require.True(t, ok)
	assert.Equal(t, "alice", login.Username)
	assert.True(t, st.State().Auth.IsLoading)
}

func TestPostIntentValidation(t *testing.T) {
	srv := setupServer(t, store.New())

	resp, body := postIntent(t, srv, "login", `{"username":"","password":"ab"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "validation failed", body.Error)
	require.Len(t, body.Fields, 2)
	assert.Equal(t, "username", body.Fields[0].Field)
	assert.Equal(t, "password", body.Fields[1].Field)
}

func TestPostIntentUnknown(t *testing.T) {
	srv := setupServer(t, store.New())

	resp, _ := postIntent(t, srv, "delete-everything", `{}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = postIntent(t, srv, "login", `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPostIntentRequiresSession(t *testing.T) {
	srv := setupServer(t, store.New())

	resp, body := postIntent(t, srv, "fetch-certificates", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, ErrLoginRequired.Error(), body.Error)

	resp, _ = postIntent(t, srv, "logout", "")
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestPostIntentRoleGating(t *testing.T) {
	certs := []certificate.Certificate{
		{ID: 1, Status: certificate.StatusNoRequest},
		{ID: 2, Status: certificate.StatusPending},
	}
	trainee := store.New(store.WithInitialState(loggedIn(auth.RoleTrainee, certs...)))
	srv := setupServer(t, trainee)

	resp, _ := postIntent(t, srv, "create-certificate", `{"user_id":1,"challenge_id":2,"certificate_name":"x"}`)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = postIntent(t, srv, "update-certificate", `{"path":"optin/approve","id":2,"password":"pw"}`)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = postIntent(t, srv, "update-certificate", `{"path":"optin","id":1,"password":"pw"}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, _ = postIntent(t, srv, "update-certificate", `{"path":"optin","id":99,"password":"pw"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = postIntent(t, srv, "update-certificate", `{"path":"burn","id":1,"password":"pw"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPostIntentCreateValidation(t *testing.T) {
	srv := setupServer(t, issuerStore())

	resp, body := postIntent(t, srv, "create-certificate", `{"user_id":0,"challenge_id":2,"certificate_name":""}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Len(t, body.Fields, 2)

	resp, _ = postIntent(t, srv, "create-certificate", `{"user_id":1,"challenge_id":2,"certificate_name":"Week 1","score":90}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestCheckLeavesOtherIntentsAlone(t *testing.T) {
	status, err := Check(store.State{}, intent.CleanAuthStatus{})
	assert.NoError(t, err)
	assert.Zero(t, status)
}

func TestSecurityHeadersHSTS(t *testing.T) {
	h := SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Contains(t, rec.Header().Get("Strict-Transport-Security"), "max-age=")

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Forwarded", "for=1.2.3.4;proto=https")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.NotEmpty(t, rec.Header().Get("Strict-Transport-Security"))
}

func TestOpenAPISpecServed(t *testing.T) {
	srv := setupServer(t, store.New())

	resp, err := http.Get(srv.URL + "/api/openapi.yaml")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, openapiSpec, body)
}

type sseEvent struct {
	name string
	data string
}

// readEvents parses the stream in the background until the body closes.
func readEvents(body io.Reader) <-chan sseEvent {
	out := make(chan sseEvent, 16)
	go func() {
		defer close(out)
		sc := bufio.NewScanner(body)
		var ev sseEvent
		for sc.Scan() {
			line := sc.Text()
			switch {
			case strings.HasPrefix(line, "event: "):
				ev.name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				ev.data = strings.TrimPrefix(line, "data: ")
			case line == "":
				out <- ev
				ev = sseEvent{}
			}
		}
	}()
	return out
}

func nextEvent(t *testing.T, events <-chan sseEvent, name string) sseEvent {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			require.True(t, ok, "stream closed")
			if ev.name == name {
				return ev
			}
		case <-timeout:
			t.Fatalf("no %q event", name)
		}
	}
}

func TestEventsStream(t *testing.T) {
	bus := events.NewInProcess()
	t.Cleanup(func() { bus.Close() })
	journal := events.NewJournal(bus.Publisher)

	st := store.New()
	st.AddListener(journal.Listener())
	srv := setupServer(t, st, WithEventSource(bus.Subscriber, journal.Topic()))

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	stream := readEvents(resp.Body)

	var first stateEvent
	require.NoError(t, json.Unmarshal([]byte(nextEvent(t, stream, "state").data), &first))
	assert.False(t, first.LoggedIn)

	st.Dispatch(intent.LoginSuccess{Session: &auth.Session{Token: "t", Username: "bob", Role: auth.RoleTrainee}})

	// State and journal events may interleave in either order.
	var next stateEvent
	var journaled events.Event
	timeout := time.After(5 * time.Second)
	for !next.LoggedIn || journaled.Type == "" {
		select {
		case ev, ok := <-stream:
			require.True(t, ok, "stream closed")
			switch ev.name {
			case "state":
				require.NoError(t, json.Unmarshal([]byte(ev.data), &next))
			case "intent":
				require.NoError(t, json.Unmarshal([]byte(ev.data), &journaled))
			}
		case <-timeout:
			t.Fatal("timed out waiting for events")
		}
	}
	require.NotNil(t, next.View)
	assert.Equal(t, "bob", next.View.User.Username)
	assert.Equal(t, "auth/LoginSuccess", journaled.Type)
}

func sendIntent(t *testing.T, srv *httptest.Server, name, body string, header http.Header) int {
	t.Helper()
	req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, srv.URL+"/api/intents/"+name, strings.NewReader(body))
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func TestPostIntentRejectsCrossSite(t *testing.T) {
	st := issuerStore()
	dispatched := make(chan intent.Action, 4)
	st.AddListener(func(a intent.Action, _ store.State) { dispatched <- a })
	srv := setupServer(t, st)
	create := `{"user_id":2,"challenge_id":1,"certificate_name":"Week 1"}`

	status := sendIntent(t, srv, "create-certificate", create, http.Header{
		"Content-Type": {"text/plain"},
		"Origin":       {"https://evil.example"},
	})
	assert.Equal(t, http.StatusForbidden, status)

	status = sendIntent(t, srv, "create-certificate", create, http.Header{
		"Content-Type": {"application/json"},
		"Origin":       {"https://evil.example"},
	})
	assert.Equal(t, http.StatusForbidden, status)

	status = sendIntent(t, srv, "logout", "", http.Header{
		"Content-Type":   {"application/json"},
		"Sec-Fetch-Site": {"cross-site"},
	})
	assert.Equal(t, http.StatusForbidden, status)

	status = sendIntent(t, srv, "logout", "", http.Header{
		"Content-Type": {"application/json"},
		"Origin":       {"null"},
	})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Empty(t, dispatched)

	status = sendIntent(t, srv, "create-certificate", create, http.Header{
		"Content-Type":   {"application/json"},
		"Origin":         {srv.URL},
		"Sec-Fetch-Site": {"same-origin"},
	})
	assert.Equal(t, http.StatusAccepted, status)
	assert.Equal(t, intent.TypeCreate, (<-dispatched).Type())
}

func TestPostIntentRequiresJSON(t *testing.T) {
	st := issuerStore()
	dispatched := make(chan intent.Action, 4)
	st.AddListener(func(a intent.Action, _ store.State) { dispatched <- a })
	srv := setupServer(t, st)
	create := `{"user_id":2,"challenge_id":1,"certificate_name":"Week 1"}`

	assert.Equal(t, http.StatusUnsupportedMediaType, sendIntent(t, srv, "create-certificate", create, http.Header{"Content-Type": {"text/plain"}}))
	assert.Equal(t, http.StatusUnsupportedMediaType, sendIntent(t, srv, "create-certificate", create, http.Header{"Content-Type": {"application/x-www-form-urlencoded"}}))
	assert.Equal(t, http.StatusUnsupportedMediaType, sendIntent(t, srv, "logout", "", nil))
	assert.Empty(t, dispatched)

	assert.Equal(t, http.StatusAccepted, sendIntent(t, srv, "create-certificate", create, http.Header{"Content-Type": {"application/json; charset=utf-8"}}))
	assert.Equal(t, intent.TypeCreate, (<-dispatched).Type())
}

func TestSameOriginPassesSafeMethods(t *testing.T) {
	h := SameOrigin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	req := httptest.NewRequest(http.MethodGet, "/api/view", nil)
	req.Header.Set("Sec-Fetch-Site", "cross-site")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCheckLoginUnreadablePassword(t *testing.T) {
	a := intent.Login{Username: "alice", Password: intent.NewSecret([]byte("hunter2"))}
	// Purge rotates the session key, so existing enclaves no longer open.
	memguard.Purge()

	status, err := Check(store.State{}, a)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.ErrorContains(t, err, "reading password")
}
