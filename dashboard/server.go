package dashboard

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-chi/chi/v5"
	"github.com/go-openapi/runtime/middleware"

	"github.com/tenx/certdash/auth"
	"github.com/tenx/certdash/certificate"
	"github.com/tenx/certdash/intent"
	"github.com/tenx/certdash/internal/form"
	"github.com/tenx/certdash/store"
)

//go:embed openapi.yaml
var openapiSpec []byte

const maxIntentBody = 64 << 10

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields []form.FieldError `json:"fields,omitempty"`
}

// AcceptedResponse acknowledges a dispatched intent.
type AcceptedResponse struct {
	Type string `json:"type"`
}

// Server exposes the dashboard state and accepts user intents over HTTP.
type Server struct {
	store  *store.Store
	opts   Options
	logger *slog.Logger

	events message.Subscriber
	topic  string
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithViewOptions sets the view derivation options.
func WithViewOptions(opts Options) ServerOption {
	return func(s *Server) {
		s.opts = opts
	}
}

// WithLogger sets the server's logger.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithEventSource forwards journal messages from topic to event stream
// clients.
func WithEventSource(sub message.Subscriber, topic string) ServerOption {
	return func(s *Server) {
		s.events = sub
		s.topic = topic
	}
}

// NewServer creates a Server over st.
func NewServer(st *store.Store, opts ...ServerOption) *Server {
	s := &Server{
		store:  st,
		logger: slog.New(slog.NewJSONHandler(os.Stderr, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "dashboard")
	return s
}

// Router returns the HTTP routes.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/api/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})

	r.Handle("/api/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: "/api/openapi.yaml",
		Path:    "api/docs",
	}, nil))

	r.Handle("/api/redoc*", middleware.Redoc(middleware.RedocOpts{
		SpecURL: "/api/openapi.yaml",
		Path:    "api/redoc",
	}, nil))

	r.Group(func(r chi.Router) {
		r.Use(SecurityHeaders)
		r.Get("/api/view", s.GetView)
		r.Get("/api/intents", s.ListIntents)
		r.With(SameOrigin).Post("/api/intents/{name}", s.PostIntent)
		r.Get("/api/events", s.Events)
	})
	return r
}

// GetView returns the current view, or 401 when nobody is signed in.
func (s *Server) GetView(w http.ResponseWriter, r *http.Request) {
	v, err := Build(s.store.State(), s.opts)
	if errors.Is(err, ErrLoginRequired) {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// ListIntents returns the names accepted by PostIntent.
func (s *Server) ListIntents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, intent.Names())
}

// PostIntent decodes, validates and dispatches a user intent. The outcome
// arrives asynchronously through the view.
func (s *Server) PostIntent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxIntentBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	a, err := intent.Decode(chi.URLParam(r, "name"), body)
	if errors.Is(err, intent.ErrUnknownIntent) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if status, err := Check(s.store.State(), a); err != nil {
		var fields form.Errors
		if errors.As(err, &fields) {
			writeJSON(w, status, ErrorResponse{Error: "validation failed", Fields: fields})
			return
		}
		writeError(w, status, err.Error())
		return
	}

	s.store.Dispatch(a)
	s.logger.Info("intent dispatched", "type", a.Type(), "remote_addr", r.RemoteAddr)
	writeJSON(w, http.StatusAccepted, AcceptedResponse{Type: a.Type()})
}

var (
	// ErrForbidden is returned by Check when the role may not perform the
	// intent.
	ErrForbidden = errors.New("not permitted for this role")
	// ErrUnknownCertificate is returned by Check for ids not in the list.
	ErrUnknownCertificate = errors.New("unknown certificate")
)

// Check runs the client-side form validation and role gating for a before
// it is dispatched. It returns the HTTP status matching the failure. The
// gating is advisory; the server remains the authority.
func Check(st store.State, a intent.Action) (int, error) {
	switch a := a.(type) {
	case intent.Login:
		err := a.Password.Use(func(pw []byte) error {
			return auth.ValidateLogin(a.Username, pw)
		})
		var fields form.Errors
		switch {
		case err == nil:
			return 0, nil
		case errors.As(err, &fields):
			return http.StatusUnprocessableEntity, err
		default:
			return http.StatusInternalServerError, fmt.Errorf("reading password: %w", err)
		}
	case intent.Logout, intent.CleanAuthStatus:
		return 0, nil
	}

	sess := st.Auth.Session
	if sess == nil {
		return http.StatusUnauthorized, ErrLoginRequired
	}
	switch a := a.(type) {
	case intent.Create:
		if !certificate.CanCreate(sess.Role) {
			return http.StatusForbidden, ErrForbidden
		}
		if err := a.Request.Validate(); err != nil {
			return http.StatusUnprocessableEntity, err
		}
	case intent.Update:
		if !a.Path.Valid() {
			return http.StatusBadRequest, errors.New("unknown update path")
		}
		for _, c := range st.Certificates.Certificates {
			if c.ID != a.ID {
				continue
			}
			for _, action := range certificate.AvailableActions(sess.Role, c.Status) {
				if action.Path() == a.Path {
					return 0, nil
				}
			}
			return http.StatusForbidden, ErrForbidden
		}
		return http.StatusNotFound, ErrUnknownCertificate
	}
	return 0, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
