package daum

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/theiauto/feedsync/internal/config"
)

// Environment selects which gateway credentials are used.
type Environment string

const (
	EnvTest Environment = "test"
	EnvProd Environment = "prod"
)

const defaultTimeout = 15 * time.Second

// ParseEnvironment maps a user supplied name to an Environment. Only
// "prod" and "production" select production; anything else is test.
func ParseEnvironment(name string) Environment {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "prod", "production":
		return EnvProd
	default:
		return EnvTest
	}
}

func (e Environment) IsProduction() bool {
	return e == EnvProd
}

// Credentials authenticate against one gateway environment.
type Credentials struct {
	ID      string
	Key     string
	BaseURL string
}

// Settings is an immutable snapshot of the syndication configuration,
// taken once per call.
type Settings struct {
	Test          Credentials
	Prod          Credentials
	PushEnabled   bool
	DryRunDefault bool
	Timeout       time.Duration
	Payload       PayloadDefaults
}

// SettingsFromConfig snapshots the daum config section.
func SettingsFromConfig(cfg *config.DaumConfig) Settings {
	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil || timeout <= 0 {
		timeout = defaultTimeout
	}

	payload := DefaultPayloadDefaults()
	payload.EnableComment = cfg.EnableCommentDefault
	if cfg.FrontBaseURL != "" {
		payload.FrontBaseURL = cfg.FrontBaseURL
	}
	if cfg.ContentIDPrefix != "" {
		payload.ContentIDPrefix = cfg.ContentIDPrefix
	}
	if cfg.FallbackWriterName != "" {
		payload.FallbackWriterName = cfg.FallbackWriterName
	}
	if cfg.FallbackWriterEmail != "" {
		payload.FallbackWriterEmail = cfg.FallbackWriterEmail
	}

	return Settings{
		Test:          credentialsFromConfig(cfg.Test),
		Prod:          credentialsFromConfig(cfg.Prod),
		PushEnabled:   cfg.IsPushEnabled(),
		DryRunDefault: cfg.DryRun,
		Timeout:       timeout,
		Payload:       payload,
	}
}

func credentialsFromConfig(c config.DaumCredentialConfig) Credentials {
	return Credentials{
		ID:      strings.TrimSpace(c.ID),
		Key:     strings.TrimSpace(c.Key),
		BaseURL: strings.TrimSpace(c.BaseURL),
	}
}

// ResolveCredentials returns the credentials for env or a *ConfigError
// listing what is missing.
func ResolveCredentials(settings Settings, env Environment) (Credentials, error) {
	creds := settings.Test
	if env.IsProduction() {
		creds = settings.Prod
	}

	var missing []string
	if creds.ID == "" {
		missing = append(missing, "id")
	}
	if creds.Key == "" {
		missing = append(missing, "key")
	}
	if creds.BaseURL == "" {
		missing = append(missing, "base_url")
	}
	if len(missing) > 0 {
		return Credentials{}, &ConfigError{Env: env, Missing: missing}
	}

	return creds, nil
}

// BasicAuthHeader builds the Authorization header value for id:key.
func BasicAuthHeader(id, key string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(id+":"+key))
}

// ConfigError means the gateway credentials for an environment are incomplete.
// It is never retried.
type ConfigError struct {
	Env     Environment
	Missing []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("daum config error: missing %s settings: %s", e.Env, strings.Join(e.Missing, ", "))
}
