// Package config loads and validates the plugin configuration.
// The configuration is an ini file with an [onelogin] section for the
// provider connection and a [logging] section for diagnostics:
//
//	[onelogin]
//	client_id=...
//	client_secret=...
//	api_region=us
//	user_attribute=username
//	enable_factor_selection=yes
//	factor_selection_protocols=ssh,telnet
//	push_poll_interval=5
//	push_poll_timeout=60
//
//	[logging]
//	verbose=no
//
// Validation failures are CONFIGURATION_ERROR values: fatal at startup,
// never converted to a per-session deny.
package config

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/ini.v1"

	"github.com/OneIdentity/safeguard-sessions-plugin-onelogin/errors"
)

// Defaults applied when a key is absent.
const (
	DefaultAPIRegion     = "us"
	DefaultUserAttribute = "username"
	DefaultPollInterval  = 5 * time.Second
	DefaultPollTimeout   = 60 * time.Second
)

// DefaultFactorSelectionProtocols is the default protocol allowlist for the
// factor-selection dialogue.
var DefaultFactorSelectionProtocols = []string{"ssh", "telnet"}

// APIRegions lists the OneLogin API regions a configuration may select.
var APIRegions = []string{"us", "eu"}

// Config is the externally supplied configuration surface of the plugin.
type Config struct {
	// ClientID and ClientSecret are the OneLogin API credentials. Required.
	ClientID     string
	ClientSecret string

	// APIRegion selects the OneLogin API region ("us" or "eu").
	APIRegion string

	// BaseURL overrides the region-derived API endpoint. Tests use it to
	// point the client at a local fake.
	BaseURL string

	// UserAttribute is the provider attribute usernames are looked up by.
	UserAttribute string

	// EnableFactorSelection gates the !select command.
	EnableFactorSelection bool

	// FactorSelectionProtocols is the protocol allowlist for the
	// factor-selection dialogue.
	FactorSelectionProtocols []string

	// PushPollInterval is the sleep between push status queries.
	PushPollInterval time.Duration

	// PushPollTimeout is the wall-clock budget for a push approval.
	PushPollTimeout time.Duration

	// Verbose adds full diagnostic detail to provider failure logs.
	Verbose bool
}

// New returns a Config holding only defaults. Credentials must still be
// filled in before Validate passes.
func New() *Config {
	return &Config{
		APIRegion:                DefaultAPIRegion,
		UserAttribute:            DefaultUserAttribute,
		EnableFactorSelection:    true,
		FactorSelectionProtocols: DefaultFactorSelectionProtocols,
		PushPollInterval:         DefaultPollInterval,
		PushPollTimeout:          DefaultPollTimeout,
	}
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	file, err := ini.Load(path)
	if err != nil {
		return nil, errors.NewConfigurationError(
			fmt.Sprintf("cannot read configuration file %s", path), err)
	}
	return fromFile(file)
}

// Parse reads and validates configuration from raw ini data.
func Parse(data []byte) (*Config, error) {
	file, err := ini.Load(data)
	if err != nil {
		return nil, errors.NewConfigurationError("cannot parse configuration", err)
	}
	return fromFile(file)
}

func fromFile(file *ini.File) (*Config, error) {
	cfg := New()

	onelogin := file.Section("onelogin")
	cfg.ClientID = onelogin.Key("client_id").String()
	cfg.ClientSecret = onelogin.Key("client_secret").String()
	cfg.APIRegion = onelogin.Key("api_region").MustString(DefaultAPIRegion)
	cfg.BaseURL = onelogin.Key("base_url").String()
	cfg.UserAttribute = onelogin.Key("user_attribute").MustString(DefaultUserAttribute)
	cfg.EnableFactorSelection = onelogin.Key("enable_factor_selection").MustBool(true)
	cfg.PushPollInterval = time.Duration(onelogin.Key("push_poll_interval").MustInt(5)) * time.Second
	cfg.PushPollTimeout = time.Duration(onelogin.Key("push_poll_timeout").MustInt(60)) * time.Second

	if protocols := onelogin.Key("factor_selection_protocols").String(); protocols != "" {
		cfg.FactorSelectionProtocols = splitList(protocols)
	}

	logging := file.Section("logging")
	cfg.Verbose = logging.Key("verbose").MustBool(false)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration. The returned error, if any, is a
// CONFIGURATION_ERROR.
func (c *Config) Validate() error {
	if c.ClientID == "" {
		return errors.NewConfigurationError("client_id is required in the [onelogin] section", nil)
	}
	if c.ClientSecret == "" {
		return errors.NewConfigurationError("client_secret is required in the [onelogin] section", nil)
	}
	if c.BaseURL == "" && !validRegion(c.APIRegion) {
		return errors.NewConfigurationError(
			fmt.Sprintf("api_region %q is not one of %s", c.APIRegion, strings.Join(APIRegions, ", ")), nil)
	}
	if c.UserAttribute == "" {
		return errors.NewConfigurationError("user_attribute must not be empty", nil)
	}
	if c.PushPollInterval <= 0 {
		return errors.NewConfigurationError("push_poll_interval must be positive", nil)
	}
	if c.PushPollTimeout <= 0 {
		return errors.NewConfigurationError("push_poll_timeout must be positive", nil)
	}
	if c.PushPollTimeout < c.PushPollInterval {
		return errors.NewConfigurationError("push_poll_timeout must not be shorter than push_poll_interval", nil)
	}
	return nil
}

func validRegion(region string) bool {
	for _, r := range APIRegions {
		if region == r {
			return true
		}
	}
	return false
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
