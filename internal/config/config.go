// Package config loads the gateway's runtime settings from the process
// environment.
package config

import (
	"github.com/spf13/viper"

	"github.com/taskdeck/taskdeck-mcp/internal/api"
)

// DefaultAPIURL is the production Taskdeck API endpoint.
const DefaultAPIURL = "https://api.taskdeck.dev"

// envPrefix namespaces the environment variables: TASKDECK_API_KEY,
// TASKDECK_API_URL, TASKDECK_PROJECT_ID.
const envPrefix = "TASKDECK"

// Settings holds everything the transports need at startup. In stdio
// mode APIKey is the single tenant's credential; in http mode it is
// unused (credentials arrive per request) and only APIURL matters.
type Settings struct {
	// APIKey authenticates against the Taskdeck API. Never logged.
	APIKey string

	// APIURL is the backend base URL.
	APIURL string

	// ProjectID is the optional default project scope for stdio mode.
	ProjectID string
}

// Load reads the settings from the environment, applying defaults.
func Load() *Settings {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetDefault("api_url", DefaultAPIURL)

	return &Settings{
		APIKey:    v.GetString("api_key"),
		APIURL:    v.GetString("api_url"),
		ProjectID: v.GetString("project_id"),
	}
}

// RequireKey fails NotConfigured when no credential is present. Stdio
// mode calls this before serving: a missing key there is fatal, not a
// per-call condition.
func (s *Settings) RequireKey() error {
	if s.APIKey == "" {
		return &api.Error{
			Kind:    api.KindNotConfigured,
			Message: "TASKDECK_API_KEY is not set — create a key in Taskdeck and export it before starting the stdio transport",
		}
	}
	return nil
}
