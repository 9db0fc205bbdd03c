package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/heavysql/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify heavysql configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/heavysql/config.yaml
Project-specific overrides can be placed in .heavysql.yaml`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		switch len(args) {
		case 0:
			for _, key := range configKeys {
				value, _ := getConfigValue(cfg, key)
				fmt.Printf("%s: %s\n", key, value)
			}
			fmt.Printf("(api key source: %s)\n", config.GetAPIKeySource(cfg))
			return nil
		case 1:
			value, err := getConfigValue(cfg, args[0])
			if err != nil {
				return err
			}
			fmt.Println(value)
			return nil
		default:
			return setConfigKey(cfg, args[0], args[1])
		}
	},
}

// configKeys lists the keys shown by `heavysql config`, in display order.
var configKeys = []string{
	"anthropic.api_key",
	"anthropic.model",
	"anthropic.max_tokens",
	"anthropic.max_retries",
	"anthropic.use_bedrock",
	"anthropic.aws_region",
	"anthropic.aws_profile",
	"heavy.agents",
	"heavy.per_agent_timeout",
	"heavy.batch_timeout_factor",
	"heavy.aggregation",
	"heavy.llm_synthesis",
	"heavy.expand",
	"storage.state_db",
	"storage.persist",
	"logging.debug_log",
	"logging.debug",
	"server.addr",
	"breaker.max_failures",
	"breaker.cooldown",
}

// setConfigKey sets a configuration value, validates and saves the config.
func setConfigKey(cfg *config.Config, key, value string) error {
	if err := setConfigValue(cfg, key, value); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	var err error
	if configPath != "" {
		err = config.SaveTo(cfg, configPath)
	} else {
		err = config.Save(cfg)
	}
	if err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	if strings.ToLower(key) == "anthropic.api_key" {
		value = config.MaskAPIKey(value)
	}
	fmt.Printf("Set %s = %s\n", key, value)
	return nil
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		if cfg.Anthropic.APIKey == "" {
			return "(not set)", nil
		}
		return config.MaskAPIKey(cfg.Anthropic.APIKey), nil
	case "anthropic.model":
		return cfg.Anthropic.Model, nil
	case "anthropic.max_tokens":
		return strconv.FormatInt(cfg.Anthropic.MaxTokens, 10), nil
	case "anthropic.max_retries":
		return strconv.Itoa(cfg.Anthropic.MaxRetries), nil
	case "anthropic.use_bedrock":
		return strconv.FormatBool(cfg.Anthropic.UseBedrock), nil
	case "anthropic.aws_region":
		return cfg.Anthropic.AWSRegion, nil
	case "anthropic.aws_profile":
		return cfg.Anthropic.AWSProfile, nil
	case "heavy.agents":
		return strconv.Itoa(cfg.Heavy.Agents), nil
	case "heavy.per_agent_timeout":
		return cfg.Heavy.PerAgentTimeout.String(), nil
	case "heavy.batch_timeout_factor":
		return strconv.FormatFloat(cfg.Heavy.BatchTimeoutFactor, 'g', -1, 64), nil
	case "heavy.aggregation":
		return cfg.Heavy.Aggregation, nil
	case "heavy.llm_synthesis":
		return strconv.FormatBool(cfg.Heavy.LLMSynthesis), nil
	case "heavy.expand":
		return strconv.FormatBool(cfg.Heavy.Expand), nil
	case "storage.state_db":
		return cfg.Storage.StateDB, nil
	case "storage.persist":
		return strconv.FormatBool(cfg.Storage.Persist), nil
	case "logging.debug_log":
		return cfg.Logging.DebugLog, nil
	case "logging.debug":
		return strconv.FormatBool(cfg.Logging.Debug), nil
	case "server.addr":
		return cfg.Server.Addr, nil
	case "breaker.max_failures":
		return strconv.Itoa(cfg.Breaker.MaxFailures), nil
	case "breaker.cooldown":
		return cfg.Breaker.Cooldown.String(), nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	var err error
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		cfg.Anthropic.APIKey = value
	case "anthropic.model":
		cfg.Anthropic.Model = value
	case "anthropic.max_tokens":
		cfg.Anthropic.MaxTokens, err = strconv.ParseInt(value, 10, 64)
	case "anthropic.max_retries":
		cfg.Anthropic.MaxRetries, err = strconv.Atoi(value)
	case "anthropic.use_bedrock":
		cfg.Anthropic.UseBedrock, err = strconv.ParseBool(value)
	case "anthropic.aws_region":
		cfg.Anthropic.AWSRegion = value
	case "anthropic.aws_profile":
		cfg.Anthropic.AWSProfile = value
	case "heavy.agents":
		cfg.Heavy.Agents, err = strconv.Atoi(value)
	case "heavy.per_agent_timeout":
		cfg.Heavy.PerAgentTimeout, err = time.ParseDuration(value)
	case "heavy.batch_timeout_factor":
		cfg.Heavy.BatchTimeoutFactor, err = strconv.ParseFloat(value, 64)
	case "heavy.aggregation":
		cfg.Heavy.Aggregation = value
	case "heavy.llm_synthesis":
		cfg.Heavy.LLMSynthesis, err = strconv.ParseBool(value)
	case "heavy.expand":
		cfg.Heavy.Expand, err = strconv.ParseBool(value)
	case "storage.state_db":
		cfg.Storage.StateDB = value
	case "storage.persist":
		cfg.Storage.Persist, err = strconv.ParseBool(value)
	case "logging.debug_log":
		cfg.Logging.DebugLog = value
	case "logging.debug":
		cfg.Logging.Debug, err = strconv.ParseBool(value)
	case "server.addr":
		cfg.Server.Addr = value
	case "breaker.max_failures":
		cfg.Breaker.MaxFailures, err = strconv.Atoi(value)
	case "breaker.cooldown":
		cfg.Breaker.Cooldown, err = time.ParseDuration(value)
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return nil
}
