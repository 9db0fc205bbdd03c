// Package config handles configuration loading and management for heavysql.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ShayCichocki/heavysql/pkg/models"
)

// ProjectConfigName is the project override file searched for in the working
// directory and its parents.
const ProjectConfigName = ".heavysql.yaml"

// Config holds all configuration for heavysql.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Heavy     HeavyConfig     `mapstructure:"heavy"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Server    ServerConfig    `mapstructure:"server"`
	Breaker   BreakerConfig   `mapstructure:"breaker"`
}

// AnthropicConfig holds model provider settings.
type AnthropicConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	MaxTokens  int64  `mapstructure:"max_tokens"`
	MaxRetries int    `mapstructure:"max_retries"`
	// UseBedrock routes calls through AWS Bedrock; no API key is needed.
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// HeavyConfig tunes the multi-agent analysis.
type HeavyConfig struct {
	// Agents is the number of agent slots, 1 to 4.
	Agents          int           `mapstructure:"agents"`
	PerAgentTimeout time.Duration `mapstructure:"per_agent_timeout"`
	// BatchTimeoutFactor multiplies PerAgentTimeout into the batch deadline.
	BatchTimeoutFactor float64 `mapstructure:"batch_timeout_factor"`
	// Aggregation is one of consensus, mean, max or weighted.
	Aggregation string `mapstructure:"aggregation"`
	// RoleWeights are used by weighted aggregation, keyed by role name.
	RoleWeights  map[string]float64 `mapstructure:"role_weights"`
	LLMSynthesis bool               `mapstructure:"llm_synthesis"`
	Expand       bool               `mapstructure:"expand"`
	// BatchRetries is reserved; only 0 is supported.
	BatchRetries int `mapstructure:"batch_retries"`
}

// StorageConfig holds run history settings.
type StorageConfig struct {
	// StateDB is the run history database path. Empty uses the XDG data dir.
	StateDB string `mapstructure:"state_db"`
	Persist bool   `mapstructure:"persist"`
}

// LoggingConfig holds debug log settings.
type LoggingConfig struct {
	// DebugLog is the debug log path. Empty uses the XDG data dir.
	DebugLog string `mapstructure:"debug_log"`
	Debug    bool   `mapstructure:"debug"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// BreakerConfig holds circuit breaker settings for model calls.
type BreakerConfig struct {
	// MaxFailures opens the breaker after this many consecutive failures. 0 disables it.
	MaxFailures int           `mapstructure:"max_failures"`
	Cooldown    time.Duration `mapstructure:"cooldown"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, HEAVYSQL_*)
// 2. Project config (.heavysql.yaml in current directory or parent)
// 3. User config (~/.config/heavysql/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading project config %s: %w", projectConfig, err)
		}
		if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	bindEnv(v)
	return unmarshal(v)
}

// LoadFromPath loads configuration from a specific file on top of the defaults.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	bindEnv(v)
	return unmarshal(v)
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("HEAVYSQL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("anthropic.aws_region", "AWS_REGION")
	_ = v.BindEnv("anthropic.aws_profile", "AWS_PROFILE")
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references
	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	cfg.Storage.StateDB = expandEnv(cfg.Storage.StateDB)
	cfg.Logging.DebugLog = expandEnv(cfg.Logging.DebugLog)
	return cfg, nil
}

// Save writes cfg to the user config file.
func Save(cfg *Config) error {
	return SaveTo(cfg, GetUserConfigPath())
}

// SaveTo writes cfg to path as YAML.
func SaveTo(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("anthropic.max_tokens", cfg.Anthropic.MaxTokens)
	v.Set("anthropic.max_retries", cfg.Anthropic.MaxRetries)
	v.Set("anthropic.use_bedrock", cfg.Anthropic.UseBedrock)
	v.Set("anthropic.aws_region", cfg.Anthropic.AWSRegion)
	v.Set("anthropic.aws_profile", cfg.Anthropic.AWSProfile)
	v.Set("heavy.agents", cfg.Heavy.Agents)
	v.Set("heavy.per_agent_timeout", cfg.Heavy.PerAgentTimeout.String())
	v.Set("heavy.batch_timeout_factor", cfg.Heavy.BatchTimeoutFactor)
	v.Set("heavy.aggregation", cfg.Heavy.Aggregation)
	v.Set("heavy.role_weights", cfg.Heavy.RoleWeights)
	v.Set("heavy.llm_synthesis", cfg.Heavy.LLMSynthesis)
	v.Set("heavy.expand", cfg.Heavy.Expand)
	v.Set("heavy.batch_retries", cfg.Heavy.BatchRetries)
	v.Set("storage.state_db", cfg.Storage.StateDB)
	v.Set("storage.persist", cfg.Storage.Persist)
	v.Set("logging.debug_log", cfg.Logging.DebugLog)
	v.Set("logging.debug", cfg.Logging.Debug)
	v.Set("server.addr", cfg.Server.Addr)
	v.Set("breaker.max_failures", cfg.Breaker.MaxFailures)
	v.Set("breaker.cooldown", cfg.Breaker.Cooldown.String())

	return v.WriteConfig()
}

// Validate checks value ranges. It does not check credentials; see GetAPIKey.
func (c *Config) Validate() error {
	var errs []error
	if c.Heavy.Agents < 1 || c.Heavy.Agents > models.NumAgents {
		errs = append(errs, fmt.Errorf("heavy.agents must be between 1 and %d, got %d", models.NumAgents, c.Heavy.Agents))
	}
	if c.Heavy.PerAgentTimeout <= 0 {
		errs = append(errs, fmt.Errorf("heavy.per_agent_timeout must be positive, got %s", c.Heavy.PerAgentTimeout))
	}
	if c.Heavy.BatchTimeoutFactor < 1 {
		errs = append(errs, fmt.Errorf("heavy.batch_timeout_factor must be at least 1, got %g", c.Heavy.BatchTimeoutFactor))
	}
	switch c.Heavy.Aggregation {
	case "", "consensus", "mean", "max", "weighted":
	default:
		errs = append(errs, fmt.Errorf("heavy.aggregation %q is not one of consensus, mean, max, weighted", c.Heavy.Aggregation))
	}
	roles := make([]string, 0, len(c.Heavy.RoleWeights))
	for role := range c.Heavy.RoleWeights {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	for _, role := range roles {
		if _, err := models.ParseAgentRole(role); err != nil {
			errs = append(errs, fmt.Errorf("heavy.role_weights: %w", err))
		} else if c.Heavy.RoleWeights[role] < 0 {
			errs = append(errs, fmt.Errorf("heavy.role_weights.%s must not be negative", role))
		}
	}
	if c.Heavy.BatchRetries != 0 {
		errs = append(errs, fmt.Errorf("heavy.batch_retries: only 0 is supported, got %d", c.Heavy.BatchRetries))
	}
	if c.Anthropic.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("anthropic.max_tokens must not be negative"))
	}
	if c.Breaker.MaxFailures < 0 {
		errs = append(errs, fmt.Errorf("breaker.max_failures must not be negative"))
	}
	if c.Breaker.MaxFailures > 0 && c.Breaker.Cooldown <= 0 {
		errs = append(errs, fmt.Errorf("breaker.cooldown must be positive when the breaker is enabled"))
	}
	return errors.Join(errs...)
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", d.Anthropic.Model)
	v.SetDefault("anthropic.max_tokens", d.Anthropic.MaxTokens)
	v.SetDefault("anthropic.max_retries", d.Anthropic.MaxRetries)
	v.SetDefault("anthropic.use_bedrock", false)
	v.SetDefault("anthropic.aws_region", "")
	v.SetDefault("anthropic.aws_profile", "")

	v.SetDefault("heavy.agents", d.Heavy.Agents)
	v.SetDefault("heavy.per_agent_timeout", d.Heavy.PerAgentTimeout.String())
	v.SetDefault("heavy.batch_timeout_factor", d.Heavy.BatchTimeoutFactor)
	v.SetDefault("heavy.aggregation", d.Heavy.Aggregation)
	v.SetDefault("heavy.llm_synthesis", d.Heavy.LLMSynthesis)
	v.SetDefault("heavy.expand", d.Heavy.Expand)
	v.SetDefault("heavy.batch_retries", 0)

	v.SetDefault("storage.state_db", "")
	v.SetDefault("storage.persist", d.Storage.Persist)

	v.SetDefault("logging.debug_log", "")
	v.SetDefault("logging.debug", false)

	v.SetDefault("server.addr", d.Server.Addr)

	v.SetDefault("breaker.max_failures", d.Breaker.MaxFailures)
	v.SetDefault("breaker.cooldown", d.Breaker.Cooldown.String())
}

// getUserConfigDir returns the XDG config directory for heavysql.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "heavysql")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "heavysql")
	}
	return filepath.Join(home, ".config", "heavysql")
}

// findProjectConfig searches for .heavysql.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ProjectConfigName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Anthropic: AnthropicConfig{
			Model:      "claude-sonnet-4-5-20250929",
			MaxTokens:  2048,
			MaxRetries: 2,
		},
		Heavy: HeavyConfig{
			Agents:             models.NumAgents,
			PerAgentTimeout:    120 * time.Second,
			BatchTimeoutFactor: 1.5,
			Aggregation:        "consensus",
			LLMSynthesis:       true,
			Expand:             true,
		},
		Storage: StorageConfig{
			Persist: true,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8089",
		},
		Breaker: BreakerConfig{
			MaxFailures: 5,
			Cooldown:    30 * time.Second,
		},
	}
}
