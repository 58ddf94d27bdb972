// Package config loads and stores CLI configuration in the XDG config dir.
// Only non-secret settings are kept here; secrets go to OS keychain.
//
// Values are layered by viper: defaults, then config.json, then OCCINGEST_*
// environment variables, then command-line flags bound by the caller.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"occingest/cli/internal/xdg"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. OCCINGEST_SERVER.
const EnvPrefix = "OCCINGEST"

// Keys shared by viper, the config file and flag bindings.
const (
	KeyServer         = "server"
	KeyUsername       = "username"
	KeyPassword       = "password"
	KeyProfile        = "profile"
	KeyDocumentClass  = "document_class"
	KeySessionTimeout = "session_timeout_minutes"
	KeyMsPerMB        = "ms_per_mb"
	KeyInquiry        = "batch_creation_state_inquiry"
	KeyRequestTimeout = "request_timeout_seconds"
	KeyLogLevel       = "log_level"
	KeyLogFile        = "log_file"
	KeyJournalDSN     = "journal_dsn"
	KeyNoKeychain     = "no_keychain"
)

// Config holds CLI settings. Password and JournalDSN are never written to disk.
type Config struct {
	Server        string `mapstructure:"server" json:"server,omitempty"`
	Username      string `mapstructure:"username" json:"username,omitempty"`
	Password      string `mapstructure:"password" json:"-"`
	Profile       string `mapstructure:"profile" json:"profile,omitempty"`
	DocumentClass string `mapstructure:"document_class" json:"document_class,omitempty"`

	SessionTimeoutMinutes             int  `mapstructure:"session_timeout_minutes" json:"session_timeout_minutes"`
	MillisecondsPerMegabyte           int  `mapstructure:"ms_per_mb" json:"ms_per_mb"`
	SupportsBatchCreationStateInquiry bool `mapstructure:"batch_creation_state_inquiry" json:"batch_creation_state_inquiry"`
	RequestTimeoutSeconds             int  `mapstructure:"request_timeout_seconds" json:"request_timeout_seconds"`

	LogLevel string `mapstructure:"log_level" json:"log_level"`
	LogFile  string `mapstructure:"log_file" json:"log_file,omitempty"`

	JournalDSN string `mapstructure:"journal_dsn" json:"-"`
	// NoKeychain skips the OS credential store entirely.
	NoKeychain bool `mapstructure:"no_keychain" json:"no_keychain,omitempty"`
}

// Defaults returns the built-in settings.
func Defaults() Config {
	return Config{
		SessionTimeoutMinutes:   20,
		MillisecondsPerMegabyte: 2000,
		RequestTimeoutSeconds:   100,
		LogLevel:                "info",
	}
}

// SessionTimeout is the server-side session timeout.
func (c Config) SessionTimeout() time.Duration {
	return time.Duration(c.SessionTimeoutMinutes) * time.Minute
}

// RequestTimeout bounds calls without an upload payload.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// Validate checks the settings needed to talk to a server.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Server) == "" {
		errs = append(errs, fmt.Errorf("server is not set (--server or %s_SERVER)", EnvPrefix))
	}
	if strings.TrimSpace(c.Username) == "" {
		errs = append(errs, fmt.Errorf("username is not set (--username or %s_USERNAME)", EnvPrefix))
	}
	if c.SessionTimeoutMinutes <= 0 {
		errs = append(errs, errors.New("session timeout must be positive"))
	}
	if c.MillisecondsPerMegabyte <= 0 {
		errs = append(errs, errors.New("ms per megabyte must be positive"))
	}
	if c.RequestTimeoutSeconds <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}
	return errors.Join(errs...)
}

// Path returns the path to the config file.
func Path() (string, error) {
	dir, err := xdg.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// NewViper returns a viper instance with defaults, environment overrides and,
// when it exists, the config file at path. An empty path means Path().
func NewViper(path string) (*viper.Viper, error) {
	v := viper.New()
	d := Defaults()
	v.SetDefault(KeySessionTimeout, d.SessionTimeoutMinutes)
	v.SetDefault(KeyMsPerMB, d.MillisecondsPerMegabyte)
	v.SetDefault(KeyRequestTimeout, d.RequestTimeoutSeconds)
	v.SetDefault(KeyInquiry, d.SupportsBatchCreationStateInquiry)
	v.SetDefault(KeyLogLevel, d.LogLevel)
	// registered so AutomaticEnv picks them up during Unmarshal
	for _, k := range []string{KeyServer, KeyUsername, KeyPassword, KeyProfile, KeyDocumentClass, KeyLogFile, KeyJournalDSN} {
		v.SetDefault(k, "")
	}
	v.SetDefault(KeyNoKeychain, false)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path == "" {
		p, err := Path()
		if err != nil {
			return nil, err
		}
		path = p
	}
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return v, nil
}

// FromViper decodes the layered settings.
func FromViper(v *viper.Viper) (Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("decode config: %w", err)
	}
	return c, nil
}

// Load reads configuration; a missing file yields defaults plus environment overrides.
func Load() (Config, error) {
	v, err := NewViper("")
	if err != nil {
		return Config{}, err
	}
	return FromViper(v)
}

// Save writes configuration to Path() with 0600 permissions.
func Save(c Config) error {
	p, err := Path()
	if err != nil {
		return err
	}
	return SaveTo(p, c)
}

// SaveTo writes the non-secret settings of c to path with 0600 permissions.
func SaveTo(path string, c Config) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}
