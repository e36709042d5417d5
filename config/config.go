// Package config resolves certdash settings from defaults, the environment
// and command-line flags. Later sources take precedence over earlier ones.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
	"golang.org/x/text/language"

	"github.com/tenx/certdash/certificate"
)

// ErrInvalid is wrapped by every configuration error.
var ErrInvalid = errors.New("invalid configuration")

// Environment variables.
const (
	EnvAPIURL              = "CERTDASH_API_URL"
	EnvDataDir             = "CERTDASH_DATA_DIR"
	EnvTimeout             = "CERTDASH_TIMEOUT"
	EnvLocale              = "CERTDASH_LOCALE"
	EnvPersistCertificates = "CERTDASH_PERSIST_CERTIFICATES"
	EnvStatePassphrase     = "CERTDASH_STATE_PASSPHRASE"
	EnvRedisURL            = "CERTDASH_REDIS_URL"
	EnvContentGateway      = "CERTDASH_CONTENT_GATEWAY"
	EnvChainRPC            = "CERTDASH_CHAIN_RPC"
	EnvWalletKey           = "CERTDASH_WALLET_KEY"
	EnvAssetRegistry       = "CERTDASH_ASSET_REGISTRY"
	EnvLogLevel            = "CERTDASH_LOG_LEVEL"
)

// Flag names.
const (
	FlagAPIURL              = "api-url"
	FlagDataDir             = "data-dir"
	FlagTimeout             = "timeout"
	FlagLocale              = "locale"
	FlagPersistCertificates = "persist-certificates"
	FlagRedisURL            = "redis-url"
	FlagContentGateway      = "content-gateway"
	FlagChainRPC            = "chain-rpc"
	FlagAssetRegistry       = "asset-registry"
	FlagLogLevel            = "log-level"
	FlagEphemeral           = "ephemeral"
)

// Config holds runtime settings for the certdash CLI and dashboard server.
type Config struct {
	// APIURL is the base URL of the certificate REST API.
	APIURL string
	// DataDir holds the persisted state database.
	DataDir string
	// Timeout bounds every API request. Zero disables it.
	Timeout time.Duration
	Locale  string
	// PersistCertificates also persists the certificate slice, not only
	// the session.
	PersistCertificates bool
	// StatePassphrase seals persisted state when non-empty. It is only
	// read from the environment.
	StatePassphrase string
	// RedisURL selects redis for storage and the event journal.
	RedisURL       string
	ContentGateway string
	// ChainRPC and WalletKey enable asset creation.
	ChainRPC  string
	WalletKey string
	// AssetRegistry receives asset transactions. Empty sends them to the
	// wallet's own address.
	AssetRegistry string
	LogLevel      string
	// Ephemeral keeps state in memory only.
	Ephemeral bool
}

// LookupFunc reads one environment variable.
type LookupFunc func(key string) (string, bool)

// Default returns the built-in settings.
func Default() Config {
	return Config{
		APIURL:         "http://127.0.0.1:5000/api/v1",
		DataDir:        defaultDataDir(),
		Timeout:        30 * time.Second,
		Locale:         "en-US",
		ContentGateway: certificate.DefaultContentGateway,
		LogLevel:       "info",
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".certdash"
	}
	return filepath.Join(home, ".certdash")
}

// Flags are the command-line overrides registered on a flag set.
type Flags struct {
	fs *pflag.FlagSet
	v  Config
}

// RegisterFlags adds the configuration flags to fs. Flag defaults show the
// built-in settings; only flags set explicitly override the environment.
func RegisterFlags(fs *pflag.FlagSet) *Flags {
	d := Default()
	f := &Flags{fs: fs}
	fs.StringVar(&f.v.APIURL, FlagAPIURL, d.APIURL, "Base URL of the certificate API")
	fs.StringVar(&f.v.DataDir, FlagDataDir, d.DataDir, "Directory for persisted state")
	fs.DurationVar(&f.v.Timeout, FlagTimeout, d.Timeout, "API request timeout (0 disables)")
	fs.StringVar(&f.v.Locale, FlagLocale, d.Locale, "Display locale (BCP 47)")
	fs.BoolVar(&f.v.PersistCertificates, FlagPersistCertificates, false, "Persist the certificate list between runs")
	fs.StringVar(&f.v.RedisURL, FlagRedisURL, "", "Redis URL for state storage and the event journal")
	fs.StringVar(&f.v.ContentGateway, FlagContentGateway, d.ContentGateway, "Gateway serving certificate content by hash")
	fs.StringVar(&f.v.ChainRPC, FlagChainRPC, "", "Ethereum JSON-RPC endpoint for asset creation")
	fs.StringVar(&f.v.AssetRegistry, FlagAssetRegistry, "", "Contract address receiving asset transactions")
	fs.StringVar(&f.v.LogLevel, FlagLogLevel, d.LogLevel, "Log level (debug, info, warn, error)")
	fs.BoolVar(&f.v.Ephemeral, FlagEphemeral, false, "Keep state in memory only")
	return f
}

// Load resolves the configuration: defaults, then lookup, then the flags
// that were set. A nil lookup reads the process environment; a nil f skips
// flags.
func Load(f *Flags, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	c := Default()
	if err := c.applyEnv(lookup); err != nil {
		return Config{}, err
	}
	if f != nil {
		f.apply(&c)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) applyEnv(lookup LookupFunc) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	strs := map[string]*string{
		EnvAPIURL:          &c.APIURL,
		EnvDataDir:         &c.DataDir,
		EnvLocale:          &c.Locale,
		EnvStatePassphrase: &c.StatePassphrase,
		EnvRedisURL:        &c.RedisURL,
		EnvContentGateway:  &c.ContentGateway,
		EnvChainRPC:        &c.ChainRPC,
		EnvWalletKey:       &c.WalletKey,
		EnvAssetRegistry:   &c.AssetRegistry,
		EnvLogLevel:        &c.LogLevel,
	}
	for key, dst := range strs {
		if v, ok := get(key); ok {
			*dst = v
		}
	}

	if v, ok := get(EnvTimeout); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalid, EnvTimeout, err)
		}
		c.Timeout = d
	}
	if v, ok := get(EnvPersistCertificates); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalid, EnvPersistCertificates, err)
		}
		c.PersistCertificates = b
	}
	return nil
}

// apply copies the flags marked changed. Cobra parses persistent flags on
// the executing subcommand's set, so Changed is checked on every flag
// instead of visiting only the flags this set parsed.
func (f *Flags) apply(c *Config) {
	f.fs.VisitAll(func(fl *pflag.Flag) {
		if !fl.Changed {
			return
		}
		switch fl.Name {
		case FlagAPIURL:
			c.APIURL = f.v.APIURL
		case FlagDataDir:
			c.DataDir = f.v.DataDir
		case FlagTimeout:
			c.Timeout = f.v.Timeout
		case FlagLocale:
			c.Locale = f.v.Locale
		case FlagPersistCertificates:
			c.PersistCertificates = f.v.PersistCertificates
		case FlagRedisURL:
			c.RedisURL = f.v.RedisURL
		case FlagContentGateway:
			c.ContentGateway = f.v.ContentGateway
		case FlagChainRPC:
			c.ChainRPC = f.v.ChainRPC
		case FlagAssetRegistry:
			c.AssetRegistry = f.v.AssetRegistry
		case FlagLogLevel:
			c.LogLevel = f.v.LogLevel
		case FlagEphemeral:
			c.Ephemeral = f.v.Ephemeral
		}
	})
}

// Validate checks the resolved settings.
func (c Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: api url %q must be an absolute http(s) URL", ErrInvalid, c.APIURL)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: timeout must not be negative", ErrInvalid)
	}
	if _, err := language.Parse(c.Locale); err != nil {
		return fmt.Errorf("%w: locale %q: %v", ErrInvalid, c.Locale, err)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if !c.Ephemeral && c.RedisURL == "" && c.DataDir == "" {
		return fmt.Errorf("%w: data dir must not be empty", ErrInvalid)
	}
	if c.WalletKey != "" && c.ChainRPC == "" {
		return fmt.Errorf("%w: wallet key requires a chain RPC endpoint", ErrInvalid)
	}
	if c.AssetRegistry != "" && !common.IsHexAddress(c.AssetRegistry) {
		return fmt.Errorf("%w: asset registry %q is not an address", ErrInvalid, c.AssetRegistry)
	}
	return nil
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("%w: log level %q", ErrInvalid, c.LogLevel)
	}
	return l, nil
}

// StatePath is the bbolt database holding persisted state.
func (c Config) StatePath() string {
	return filepath.Join(c.DataDir, "state.db")
}
