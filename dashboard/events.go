package dashboard

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tenx/certdash/events"
	"github.com/tenx/certdash/store"
)

type stateEvent struct {
	LoggedIn bool  `json:"logged_in"`
	View     *View `json:"view,omitempty"`
}

// Events streams server-sent events: a "state" event with the derived view
// after every state change and, when an event source is configured, an
// "intent" event per journal message.
func (s *Server) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ctx := r.Context()
	states, cancel := s.store.Subscribe()
	defer cancel()

	var journal <-chan *message.Message
	if s.events != nil {
		ch, err := s.events.Subscribe(ctx, s.topic)
		if err != nil {
			s.logger.Warn("event source subscribe failed", "error", err)
		} else {
			journal = ch
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-states:
			if !ok {
				return
			}
			if err := writeEvent(w, "state", s.stateEvent(st)); err != nil {
				return
			}
		case msg, ok := <-journal:
			if !ok {
				journal = nil
				continue
			}
			ev, err := events.Decode(msg)
			msg.Ack()
			if err != nil {
				s.logger.Warn("dropping undecodable journal message", "uuid", msg.UUID, "error", err)
				continue
			}
			if err := writeEvent(w, "intent", ev); err != nil {
				return
			}
		}
		flusher.Flush()
	}
}

func (s *Server) stateEvent(st store.State) stateEvent {
	v, err := Build(st, s.opts)
	if errors.Is(err, ErrLoginRequired) {
		return stateEvent{}
	}
	return stateEvent{LoggedIn: true, View: &v}
}

func writeEvent(w http.ResponseWriter, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	return err
}
