package intent

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/tenx/certdash/certificate"
)

// ErrUnknownIntent is returned by Decode for names that are not user intents.
var ErrUnknownIntent = errors.New("unknown intent")

type decoder func(payload []byte) (Action, error)

// decoders maps the public names of user-dispatchable intents. Outcome
// intents are produced only by the coordinator and are not listed.
var decoders = map[string]decoder{
	"login": func(p []byte) (Action, error) {
		var in struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := unmarshal(p, &in); err != nil {
			return nil, err
		}
		return Login{Username: in.Username, Password: NewSecret([]byte(in.Password))}, nil
	},
	"logout":             empty(Logout{}),
	"clean-auth-status":  empty(CleanAuthStatus{}),
	"fetch-certificates": empty(FetchAll{}),
	"create-certificate": func(p []byte) (Action, error) {
		var in certificate.CreateRequest
		if err := unmarshal(p, &in); err != nil {
			return nil, err
		}
		return Create{Request: in}, nil
	},
	"update-certificate": func(p []byte) (Action, error) {
		var in struct {
			Path     certificate.UpdatePath `json:"path"`
			ID       int                    `json:"id"`
			Password string                 `json:"password"`
		}
		if err := unmarshal(p, &in); err != nil {
			return nil, err
		}
		return Update{Path: in.Path, ID: in.ID, Password: NewSecret([]byte(in.Password))}, nil
	},
	"clean-up":        empty(CleanUp{}),
	"clean-up-status": empty(CleanUpStatus{}),
	"create-asset": func(p []byte) (Action, error) {
		var in CreateAsset
		if err := unmarshal(p, &in); err != nil {
			return nil, err
		}
		return in, nil
	},
	"clean-wallet-status": empty(CleanWalletStatus{}),
}

func empty(a Action) decoder {
	return func([]byte) (Action, error) { return a, nil }
}

func unmarshal(p []byte, v any) error {
	if len(p) == 0 {
		return nil
	}
	if err := json.Unmarshal(p, v); err != nil {
		return fmt.Errorf("decoding intent payload: %w", err)
	}
	return nil
}

// Decode builds the user intent called name from a JSON payload. An empty
// payload decodes as the zero intent.
func Decode(name string, payload []byte) (Action, error) {
	dec, ok := decoders[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownIntent, name)
	}
	return dec(payload)
}

// Names lists the intents Decode accepts, sorted.
func Names() []string {
	out := make([]string, 0, len(decoders))
	for name := range decoders {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
