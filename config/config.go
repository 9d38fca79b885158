package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the research service
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Search    SearchConfig    `mapstructure:"search"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Agent     AgentConfig     `mapstructure:"agent"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug      bool          `mapstructure:"debug"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// LLMConfig contains LLM provider settings
type LLMConfig struct {
	Type        string        `mapstructure:"type"` // openai, anthropic, local, etc.
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

func (l LLMConfig) Validate() error {
	if strings.TrimSpace(l.APIKey) == "" {
		return errors.New("llm.api_key is required")
	}
	if strings.TrimSpace(l.Model) == "" {
		return errors.New("llm.model is required")
	}
	return nil
}

// SearchConfig contains web search collaborator settings
type SearchConfig struct {
	Provider     string        `mapstructure:"provider"` // duckduckgo, serper, brave
	SerperAPIKey string        `mapstructure:"serper_api_key"`
	BraveAPIKey  string        `mapstructure:"brave_api_key"`
	MaxResults   int           `mapstructure:"max_results"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// APIKey returns the credential matching the configured provider.
func (s SearchConfig) APIKey() string {
	switch s.Provider {
	case "serper":
		return s.SerperAPIKey
	case "brave":
		return s.BraveAPIKey
	}
	return ""
}

func (s SearchConfig) Validate() error {
	switch s.Provider {
	case "duckduckgo":
	case "serper":
		if strings.TrimSpace(s.SerperAPIKey) == "" {
			return errors.New("search.serper_api_key required for serper provider")
		}
	case "brave":
		if strings.TrimSpace(s.BraveAPIKey) == "" {
			return errors.New("search.brave_api_key required for brave provider")
		}
	default:
		return fmt.Errorf("unsupported search provider: %s", s.Provider)
	}
	return nil
}

// FetchConfig contains page fetch collaborator settings
type FetchConfig struct {
	Provider        string        `mapstructure:"provider"` // http, chromedp
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxContentChars int           `mapstructure:"max_content_chars"`
	UserAgent       string        `mapstructure:"user_agent"`
}

// AgentConfig contains orchestration loop settings.
// MaxSteps bounds the number of tool-dispatch rounds per user turn; the loop
// fails closed with a turn-level error once the bound is exceeded.
type AgentConfig struct {
	MaxSteps    int           `mapstructure:"max_steps"`
	TurnTimeout time.Duration `mapstructure:"turn_timeout"`
}

func (a AgentConfig) Validate() error {
	if a.MaxSteps <= 0 {
		return errors.New("agent.max_steps must be > 0")
	}
	return nil
}

// TelemetryConfig contains metrics settings
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoadConfig loads config from file with RESEARCH_* env overrides
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")

	viper.SetDefault("general.session_ttl", 12*time.Hour)
	viper.SetDefault("server.address", ":10030")
	viper.SetDefault("llm.type", "openai")
	viper.SetDefault("llm.model", "gpt-4o")
	viper.SetDefault("llm.max_tokens", 4096)
	viper.SetDefault("llm.temperature", 0.2)
	viper.SetDefault("llm.timeout", 90*time.Second)
	viper.SetDefault("search.provider", "duckduckgo")
	viper.SetDefault("search.max_results", 5)
	viper.SetDefault("search.timeout", 15*time.Second)
	viper.SetDefault("fetch.provider", "http")
	viper.SetDefault("fetch.timeout", 20*time.Second)
	viper.SetDefault("fetch.max_content_chars", 10000)
	viper.SetDefault("fetch.user_agent", "WebResearch/1.0 (+research assistant)")
	viper.SetDefault("agent.max_steps", 5)
	viper.SetDefault("agent.turn_timeout", 5*time.Minute)
	viper.SetDefault("telemetry.enabled", true)

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("RESEARCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv() // read in environment variables that match (RESEARCH_*)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
		// no config file: defaults plus env overrides
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	if err := config.LLM.Validate(); err != nil {
		panic(err)
	}
	if err := config.Search.Validate(); err != nil {
		panic(err)
	}
	if err := config.Agent.Validate(); err != nil {
		panic(err)
	}
	return &config
}
