package config

import "time"

// Config is the root configuration for Roam.
type Config struct {
	Gateway  GatewayConfig  `json:"gateway"`
	Models   ModelsConfig   `json:"models"`
	Events   EventsConfig   `json:"events"`
	Storage  StorageConfig  `json:"storage"`
	FollowUp FollowUpConfig `json:"followup"`
}

// GatewayConfig holds the HTTP gateway settings.
type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// ModelsConfig holds model provider configuration.
type ModelsConfig struct {
	Default   string                    `json:"default"`
	Providers map[string]ProviderConfig `json:"providers"`
}

// ProviderConfig configures a single LLM provider.
type ProviderConfig struct {
	Driver    string         `json:"driver"` // "anthropic", "openai", "ollama"
	Model     string         `json:"model"`
	BaseURL   string         `json:"base_url,omitempty"`
	Auth      AuthConfig     `json:"auth"`
	MaxTokens int            `json:"max_tokens,omitempty"`
	Timeout   Duration       `json:"timeout,omitempty"`
	Options   map[string]any `json:"options,omitempty"`
}

// AuthConfig configures API key resolution.
type AuthConfig struct {
	APIKey string `json:"api_key,omitempty"` // Direct API key or ${{ .Env.VAR }} template
	Token  string `json:"token,omitempty"`   // OAuth/Bearer token
}

// EventsConfig holds event bus settings.
type EventsConfig struct {
	BufferSize int `json:"buffer_size"`
}

// StorageConfig holds persistence settings.
type StorageConfig struct {
	DataDir string `json:"data_dir"` // default: $ROAM_PATH/data
}

// FollowUpConfig tunes the deferred follow-up workflow.
type FollowUpConfig struct {
	Delay      Duration `json:"delay"`       // delay before the first deferred attempt
	RetryDelay Duration `json:"retry_delay"` // delay before the single retry
	MaxRetries int      `json:"max_retries"`
}

// Duration wraps time.Duration for JSON unmarshaling.
type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	// Remove quotes
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}
