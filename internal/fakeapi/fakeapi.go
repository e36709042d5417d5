// Package fakeapi is an in-process certificate API for tests. It speaks the
// same envelope protocol as the real server and lets tests delay or fail
// individual routes.
package fakeapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tenx/certdash/auth"
	"github.com/tenx/certdash/certificate"
	"github.com/tenx/certdash/transport"
)

// Route names accepted by Delay, Reply and Requests.
const (
	RouteLogin   = "login"
	RouteList    = "list"
	RouteCreate  = "create"
	RouteOptIn   = "optin"
	RouteApprove = "approve"
)

const issuedLayout = "Mon, 02 Jan 2006 15:04:05 GMT"

// User is an account known to the server.
type User struct {
	ID             int
	Username       string
	Password       string
	Role           auth.Role
	AccountAddress string
}

// Response overrides the next reply of a route. An empty Body sends no body.
type Response struct {
	Status int
	Body   string
}

// Server is the fake API.
type Server struct {
	mu       sync.Mutex
	users    map[string]User
	tokens   map[string]User
	certs    []certificate.Certificate
	nextID   int
	delays   map[string][]time.Duration
	replies  map[string][]Response
	requests map[string]int
	now      func() time.Time

	srv *httptest.Server
}

// Start runs a server that is closed when tb finishes.
func Start(tb testing.TB) *Server {
	tb.Helper()
	s := &Server{
		users:    make(map[string]User),
		tokens:   make(map[string]User),
		nextID:   1,
		delays:   make(map[string][]time.Duration),
		replies:  make(map[string][]Response),
		requests: make(map[string]int),
		now:      time.Now,
	}
	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/login", s.handle(RouteLogin, s.login))
		r.Group(func(r chi.Router) {
			r.Use(s.requireToken)
			r.Get("/certificates", s.handle(RouteList, s.list))
			r.Post("/certificates", s.handle(RouteCreate, s.create))
			r.Put("/certificates/optin/approve/{id}", s.handle(RouteApprove, s.approve))
			r.Put("/certificates/optin/{id}", s.handle(RouteOptIn, s.optIn))
		})
	})
	s.srv = httptest.NewServer(r)
	tb.Cleanup(s.srv.Close)
	return s
}

// URL is the API base URL.
func (s *Server) URL() string { return s.srv.URL + "/api/v1" }

// Close stops the server early.
func (s *Server) Close() { s.srv.Close() }

// AddUser registers an account.
func (s *Server) AddUser(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		u.ID = len(s.users) + 1
	}
	s.users[u.Username] = u
}

// AddCertificate stores c, assigning an id when c.ID is zero.
func (s *Server) AddCertificate(c certificate.Certificate) certificate.Certificate {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == 0 {
		c.ID = s.nextID
	}
	if c.ID >= s.nextID {
		s.nextID = c.ID + 1
	}
	if c.Status == "" {
		c.Status = certificate.StatusNoRequest
	}
	if c.IssuedDate == "" {
		c.IssuedDate = s.now().UTC().Format(issuedLayout)
	}
	s.certs = append(s.certs, c)
	return c
}

// Certificate returns the stored certificate with id.
func (s *Server) Certificate(id int) (certificate.Certificate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.certs {
		if c.ID == id {
			return c, true
		}
	}
	return certificate.Certificate{}, false
}

// Delay queues per-request delays for route, consumed in order.
func (s *Server) Delay(route string, d ...time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays[route] = append(s.delays[route], d...)
}

// Reply queues canned replies for route, consumed before normal handling.
func (s *Server) Reply(route string, r ...Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies[route] = append(s.replies[route], r...)
}

// Requests returns how many requests route has received.
func (s *Server) Requests(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[route]
}

type contextKey int

const userKey contextKey = iota

func (s *Server) handle(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests[route]++
		var delay time.Duration
		if q := s.delays[route]; len(q) > 0 {
			delay, s.delays[route] = q[0], q[1:]
		}
		var canned *Response
		if q := s.replies[route]; len(q) > 0 {
			canned, s.replies[route] = &q[0], q[1:]
		}
		s.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		if canned != nil {
			w.WriteHeader(canned.Status)
			if canned.Body != "" {
				_, _ = w.Write([]byte(canned.Body))
			}
			return
		}
		next(w, r)
	}
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		s.mu.Lock()
		u, known := s.tokens[token]
		s.mu.Unlock()
		if !ok || !known {
			fail(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		r = r.WithContext(contextWithUser(r, u))
		next.ServeHTTP(w, r)
	})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	s.mu.Lock()
	u, ok := s.users[req.Username]
	if !ok || u.Password != req.Password {
		s.mu.Unlock()
		fail(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}
	token := uuid.NewString()
	s.tokens[token] = u
	s.mu.Unlock()

	ok200(w, map[string]any{
		"access_token":    token,
		"username":        u.Username,
		"account_address": u.AccountAddress,
		"role":            u.Role,
	})
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r)
	s.mu.Lock()
	out := make([]certificate.Certificate, 0, len(s.certs))
	for _, c := range s.certs {
		if u.Role == auth.RoleTrainee && c.UserID != u.ID {
			continue
		}
		out = append(out, c)
	}
	s.mu.Unlock()
	ok200(w, out)
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r)
	if u.Role != auth.RoleIssuer {
		fail(w, http.StatusForbidden, "Only issuers can create certificates")
		return
	}
	var req struct {
		UserID          int              `json:"user_id"`
		ChallengeID     int              `json:"challenge_id"`
		CertificateName string           `json:"certificate_name"`
		Score           *decimal.Decimal `json:"score"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CertificateName == "" {
		fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	c := certificate.Certificate{
		UserID:      req.UserID,
		StaffID:     u.ID,
		ChallengeID: req.ChallengeID,
		Title:       req.CertificateName,
	}
	if req.Score != nil {
		c.Score = *req.Score
	}
	ok200(w, s.AddCertificate(c))
}

func (s *Server) optIn(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r)
	if u.Role != auth.RoleTrainee {
		fail(w, http.StatusForbidden, "Only trainees can opt in")
		return
	}
	s.update(w, r, u, func(c *certificate.Certificate) string {
		if c.UserID != u.ID {
			return "Certificate not found"
		}
		switch c.Status {
		case certificate.StatusNoRequest:
			c.Status = certificate.StatusPending
		case certificate.StatusPending, certificate.StatusApproved:
			c.Status = certificate.StatusNoRequest
		default:
			return "Certificate request was denied"
		}
		return ""
	})
}

func (s *Server) approve(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r)
	if u.Role != auth.RoleIssuer {
		fail(w, http.StatusForbidden, "Only issuers can approve certificates")
		return
	}
	s.update(w, r, u, func(c *certificate.Certificate) string {
		switch c.Status {
		case certificate.StatusPending:
			c.Status = certificate.StatusApproved
			c.IPFSHash = "Qm" + strings.ReplaceAll(uuid.NewString(), "-", "")
			c.NFTID = strconv.Itoa(100000 + c.ID)
		case certificate.StatusApproved:
			c.Status = certificate.StatusDenied
		default:
			return "Certificate has no pending request"
		}
		return ""
	})
}

func (s *Server) update(w http.ResponseWriter, r *http.Request, u User, mutate func(*certificate.Certificate) string) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		fail(w, http.StatusBadRequest, "Invalid certificate id")
		return
	}
	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Password != u.Password {
		fail(w, http.StatusUnauthorized, "Invalid password")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.certs {
		if s.certs[i].ID != id {
			continue
		}
		next := s.certs[i]
		if msg := mutate(&next); msg != "" {
			fail(w, http.StatusConflict, msg)
			return
		}
		s.certs[i] = next
		ok200(w, next)
		return
	}
	fail(w, http.StatusNotFound, "Certificate not found")
}

func ok200[T any](w http.ResponseWriter, v T) {
	writeJSON(w, http.StatusOK, transport.Success(v))
}

func fail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, transport.Failure[any](msg))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
