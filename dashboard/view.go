// Package dashboard derives what the user sees from the store state and
// serves it as text or over HTTP.
package dashboard

import (
	"errors"

	"golang.org/x/text/language"

	"github.com/tenx/certdash/auth"
	"github.com/tenx/certdash/certificate"
	"github.com/tenx/certdash/store"
)

// ErrLoginRequired is returned by Build when no session is active; the
// presentation should send the user to login.
var ErrLoginRequired = errors.New("login required")

// Notification levels.
const (
	LevelSuccess = "success"
	LevelError   = "error"
)

// Options control view derivation.
type Options struct {
	Locale         language.Tag
	ContentGateway string
}

// User is the signed-in identity as displayed.
type User struct {
	Username       string    `json:"username"`
	Role           auth.Role `json:"role"`
	AccountAddress string    `json:"account_address,omitempty"`
}

// Row is one certificate line.
type Row struct {
	ID         int                  `json:"id"`
	Title      string               `json:"title"`
	IssuedDate string               `json:"issued_date"`
	Status     certificate.Status   `json:"status"`
	Score      string               `json:"score"`
	ContentURL string               `json:"content_url,omitempty"`
	NFTID      string               `json:"nft_id,omitempty"`
	Actions    []certificate.Action `json:"actions"`
}

// Notification is a transient banner tied to a slice's flags.
type Notification struct {
	Level string `json:"level"`
	Text  string `json:"text"`
}

// View is the derived presentation state.
type View struct {
	User          User           `json:"user"`
	CanCreate     bool           `json:"can_create"`
	Loading       bool           `json:"loading"`
	Rows          []Row          `json:"rows"`
	Notifications []Notification `json:"notifications,omitempty"`
	AssetTx       string         `json:"asset_tx,omitempty"`
}

// Build derives the view from st. Row actions come only from each
// certificate's status and the session role.
func Build(st store.State, opts Options) (View, error) {
	sess := st.Auth.Session
	if sess == nil {
		return View{}, ErrLoginRequired
	}
	if opts.Locale == language.Und {
		opts.Locale = DefaultLocale
	}

	v := View{
		User: User{
			Username:       sess.Username,
			Role:           sess.Role,
			AccountAddress: sess.AccountAddress,
		},
		CanCreate: certificate.CanCreate(sess.Role),
		Loading:   st.Auth.IsLoading || st.Certificates.IsLoading || st.Wallet.IsLoading,
		Rows:      make([]Row, 0, len(st.Certificates.Certificates)),
		AssetTx:   st.Wallet.TxHash,
	}
	for _, c := range st.Certificates.Certificates {
		v.Rows = append(v.Rows, Row{
			ID:         c.ID,
			Title:      c.Title,
			IssuedDate: FormatDate(c.IssuedDate, opts.Locale),
			Status:     c.Status,
			Score:      FormatScore(c.Score, opts.Locale),
			ContentURL: c.ContentURL(opts.ContentGateway),
			NFTID:      c.NFTID,
			Actions:    certificate.AvailableActions(sess.Role, c.Status),
		})
	}
	v.Notifications = notifications(st)
	return v, nil
}

func notifications(st store.State) []Notification {
	var out []Notification
	add := func(level, text string) {
		out = append(out, Notification{Level: level, Text: text})
	}
	if st.Auth.IsLoggingSuccess {
		add(LevelSuccess, "Logged in successfully")
	}
	if st.Auth.Error != "" {
		add(LevelError, st.Auth.Error)
	}
	c := st.Certificates
	if c.IsCreateSuccess {
		add(LevelSuccess, "Certificate created successfully")
	}
	if c.IsUpdateSuccess {
		add(LevelSuccess, "Certificate updated successfully")
	}
	if c.Error != "" {
		add(LevelError, c.Error)
	}
	if st.Wallet.IsCreateSuccess {
		add(LevelSuccess, "Asset created")
	}
	if st.Wallet.Error != "" {
		add(LevelError, st.Wallet.Error)
	}
	return out
}
